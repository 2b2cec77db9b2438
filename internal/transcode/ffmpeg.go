package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"squash/internal/logging"
	"squash/internal/services"
)

var commandContext = exec.CommandContext

// waitDelay bounds how long Wait blocks on the output pipes after the process
// has been killed on cancellation.
const waitDelay = 5 * time.Second

// FFmpeg encodes with the ffmpeg binary.
type FFmpeg struct {
	binary string
	logger *slog.Logger
}

// Option configures the FFmpeg engine.
type Option func(*FFmpeg)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if strings.TrimSpace(binary) != "" {
			f.binary = strings.TrimSpace(binary)
		}
	}
}

// WithLogger attaches a logger for command and diagnostic output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFFmpeg constructs an engine using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EncodeSettings returns the codec, container, and pixel-format flags for a tier.
func EncodeSettings(tier Tier) []string {
	codec, preset := tier.Codec()
	return []string{
		"-c:a", "aac",
		"-profile:v", "main",
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		"-c:v", codec,
		"-preset", preset,
	}
}

// BitrateArg formats a video bitrate the way ffmpeg receives it, in whole kbps.
func BitrateArg(kbps float64) string {
	return fmt.Sprintf("%.0fk", kbps)
}

// BuildArgs assembles the ffmpeg argument list (without the binary) for req.
// Progress is requested on stdout so it stays apart from stderr diagnostics.
func BuildArgs(req Request) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", req.InputPath,
		"-b:v", BitrateArg(req.VideoKbps),
		"-b:a", fmt.Sprintf("%dk", req.AudioKbps),
	}
	args = append(args, EncodeSettings(req.Tier)...)
	args = append(args, "-progress", "pipe:1", "-nostats", req.OutputPath)
	return args
}

// Encode runs ffmpeg to completion, streaming progress to req.Progress, and
// returns the size of the produced file.
func (f *FFmpeg) Encode(ctx context.Context, req Request) (Outcome, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Outcome{}, errors.New("input path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return Outcome{}, errors.New("output path required")
	}
	if !req.Tier.Valid() {
		return Outcome{}, services.Wrap(services.ErrValidation, "encode", "settings", fmt.Sprintf("unexpected quality tier %d", int(req.Tier)), nil)
	}

	args := BuildArgs(req)
	f.logger.Debug("launching ffmpeg",
		logging.String("command", f.binary+" "+strings.Join(args, " ")),
		logging.Float64("video_kbps", req.VideoKbps),
		logging.Int("audio_kbps", req.AudioKbps),
	)

	started := time.Now()
	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	cmd.WaitDelay = waitDelay
	diagnostics := &lastLineWriter{}
	cmd.Stderr = diagnostics
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Outcome{}, services.Wrap(services.ErrEncode, "encode", "start ffmpeg", "", err)
	}

	parser := NewProgressParser(req.DurationSeconds)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, ok := parser.Feed(scanner.Text())
		if ok && req.Progress != nil {
			req.Progress(update)
		}
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, services.Wrap(services.ErrCancelled, "encode", "ffmpeg", "encoding cancelled", ctxErr)
	}
	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		last := diagnostics.Last()
		f.logger.Debug("ffmpeg exited with error", logging.Int("exit_code", exitCode), logging.String("diagnostic", last))
		return Outcome{}, &services.EncodeFailureError{ExitCode: exitCode, LastDiagnostic: last, Err: waitErr}
	}
	if scanErr != nil {
		return Outcome{}, fmt.Errorf("read ffmpeg progress: %w", scanErr)
	}
	if req.Progress != nil {
		req.Progress(parser.Final())
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrEncode, "encode", "inspect output", "ffmpeg exited cleanly but produced no output", err)
	}
	return Outcome{
		BitrateKbps: req.VideoKbps,
		SizeBytes:   info.Size(),
		Elapsed:     time.Since(started),
	}, nil
}

// lastLineWriter retains the most recent non-empty line written to it.
type lastLineWriter struct {
	mu      sync.Mutex
	partial strings.Builder
	last    string
}

func (w *lastLineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' || b == '\r' {
			w.flushLocked()
			continue
		}
		w.partial.WriteByte(b)
	}
	return len(p), nil
}

func (w *lastLineWriter) flushLocked() {
	if line := strings.TrimSpace(w.partial.String()); line != "" {
		w.last = line
	}
	w.partial.Reset()
}

// Last returns the final non-empty line, including an unterminated tail.
func (w *lastLineWriter) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if tail := strings.TrimSpace(w.partial.String()); tail != "" {
		return tail
	}
	return w.last
}

var _ Engine = (*FFmpeg)(nil)
