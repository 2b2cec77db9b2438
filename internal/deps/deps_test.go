package deps

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squash/internal/services"
	"squash/internal/testsupport"
)

func fakeExecutable(t *testing.T, path string) {
	t.Helper()
	prev := executable
	executable = func() (string, error) { return path, nil }
	t.Cleanup(func() { executable = prev })
}

func TestResolvePrefersSidecar(t *testing.T) {
	appDir := t.TempDir()
	fakeExecutable(t, filepath.Join(appDir, "squash"))
	sidecar := testsupport.WriteExecutable(t, appDir, "ffmpeg", "exit 0")

	pathDir := t.TempDir()
	testsupport.WriteExecutable(t, pathDir, "ffmpeg", "exit 0")
	t.Setenv("PATH", pathDir)

	status := Resolve(Tools("ffmpeg", "ffprobe")[0])
	if !status.Available || status.Command != sidecar || status.Source != SourceSidecar {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestResolveFallsBackToPath(t *testing.T) {
	fakeExecutable(t, filepath.Join(t.TempDir(), "squash"))
	pathDir := t.TempDir()
	onPath := testsupport.WriteExecutable(t, pathDir, "ffprobe", "exit 0")
	t.Setenv("PATH", pathDir)

	status := Resolve(Tools("ffmpeg", "ffprobe")[1])
	if !status.Available || status.Command != onPath || status.Source != SourcePath {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestResolveConfiguredPath(t *testing.T) {
	fakeExecutable(t, filepath.Join(t.TempDir(), "squash"))
	custom := testsupport.WriteExecutable(t, t.TempDir(), "ffmpeg-7", "exit 0")

	status := Resolve(Tools(custom, "ffprobe")[0])
	if !status.Available || status.Command != custom || status.Source != SourceConfig {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestCheckBinariesReportsMissing(t *testing.T) {
	fakeExecutable(t, filepath.Join(t.TempDir(), "squash"))
	t.Setenv("PATH", t.TempDir())

	results := CheckBinaries(Tools("ffmpeg", ""))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Available || !strings.Contains(results[0].Detail, `"ffmpeg" not found`) {
		t.Fatalf("unexpected ffmpeg status: %+v", results[0])
	}
	if results[1].Available || results[1].Detail != "command not configured" {
		t.Fatalf("unexpected ffprobe status: %+v", results[1])
	}
}

func TestRequireReturnsMissingToolError(t *testing.T) {
	fakeExecutable(t, filepath.Join(t.TempDir(), "squash"))
	pathDir := t.TempDir()
	ffmpeg := testsupport.WriteExecutable(t, pathDir, "ffmpeg", "exit 0")
	t.Setenv("PATH", pathDir)

	_, err := Require(Tools("ffmpeg", "ffprobe"))
	if !errors.Is(err, services.ErrMissingTool) {
		t.Fatalf("expected ErrMissingTool, got %v", err)
	}
	var missing *services.MissingToolError
	if !errors.As(err, &missing) || missing.Tool != "ffprobe" {
		t.Fatalf("expected ffprobe MissingToolError, got %#v", err)
	}
	if !strings.Contains(missing.Remediation, "tools.ffprobe") || !strings.Contains(missing.Remediation, installURL) {
		t.Fatalf("remediation lacks guidance: %q", missing.Remediation)
	}

	testsupport.WriteExecutable(t, pathDir, "ffprobe", "exit 0")
	resolved, err := Require(Tools("ffmpeg", "ffprobe"))
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if resolved["ffmpeg"] != ffmpeg {
		t.Fatalf("ffmpeg resolved to %q, want %q", resolved["ffmpeg"], ffmpeg)
	}
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	if err := CheckWritable(dir); err != nil {
		t.Fatalf("CheckWritable(tempdir): %v", err)
	}
	if err := CheckWritable(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	file := filepath.Join(dir, "f")
	testsupport.WriteFile(t, file, 1)
	if err := CheckWritable(file); err == nil {
		t.Fatal("expected error for a regular file")
	}
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}
	locked := filepath.Join(dir, "locked")
	if err := os.Mkdir(locked, 0o555); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := CheckWritable(locked); err == nil {
		t.Fatal("expected read-only directory to fail")
	}
}
