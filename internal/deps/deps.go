package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"squash/internal/services"
)

// Requirement defines an external binary squash relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// ConfigKey names the config field that overrides Command.
	ConfigKey string
	URL       string
}

// Status reports where a requirement resolved to.
type Status struct {
	Name        string
	Command     string
	Description string
	Source      string
	Available   bool
	Detail      string
}

// Resolution sources reported in Status.Source.
const (
	SourceSidecar = "beside squash"
	SourcePath    = "PATH"
	SourceConfig  = "config"
)

const installURL = "https://ffmpeg.org/download.html"

var executable = os.Executable

// Tools returns the ffmpeg/ffprobe requirements for the configured commands.
func Tools(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{Name: "ffmpeg", Command: ffmpeg, Description: "Encodes each candidate bitrate", ConfigKey: "tools.ffmpeg", URL: installURL},
		{Name: "ffprobe", Command: ffprobe, Description: "Reads duration and source bitrate", ConfigKey: "tools.ffprobe", URL: installURL},
	}
}

// Resolve locates one requirement. A bare default name ("ffmpeg") prefers a
// binary sitting next to the squash executable and then PATH; any other
// configured value is resolved as given.
func Resolve(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{Name: req.Name, Command: cmd, Description: req.Description}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	if cmd == req.Name {
		if candidate, ok := sidecar(cmd); ok {
			status.Command = candidate
			status.Source = SourceSidecar
			status.Available = true
			return status
		}
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Command = resolved
	status.Available = true
	status.Source = SourcePath
	if cmd != req.Name {
		status.Source = SourceConfig
	}
	return status
}

// CheckBinaries resolves every requirement.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Resolve(req))
	}
	return results
}

// Require resolves every requirement and returns the resolved commands keyed
// by requirement name, or a MissingToolError for the first one not found.
func Require(requirements []Requirement) (map[string]string, error) {
	resolved := make(map[string]string, len(requirements))
	for _, req := range requirements {
		status := Resolve(req)
		if !status.Available {
			return nil, &services.MissingToolError{
				Tool:        req.Name,
				Command:     req.Command,
				Remediation: remediation(req),
			}
		}
		resolved[req.Name] = status.Command
	}
	return resolved, nil
}

func remediation(req Requirement) string {
	name := executableName(req.Name)
	parts := []string{fmt.Sprintf("install it from %s", req.URL)}
	parts = append(parts, fmt.Sprintf("place %s next to the squash binary", name))
	if req.ConfigKey != "" {
		parts = append(parts, fmt.Sprintf("or set %s in the config file", req.ConfigKey))
	}
	return strings.Join(parts, ", ")
}

// CheckWritable reports whether dir exists and the current user may create
// files in it.
func CheckWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EROFS) {
			return fmt.Errorf("%s is not writable: %w", dir, err)
		}
		return err
	}
	return nil
}

func sidecar(name string) (string, bool) {
	self, err := executable()
	if err != nil {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(self); err == nil {
		self = resolved
	}
	candidate := filepath.Join(filepath.Dir(self), executableName(name))
	info, err := os.Stat(candidate)
	if err != nil || !isExecutable(info) {
		return "", false
	}
	return candidate, true
}

func executableName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
