package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"squash/internal/services"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Format Format `json:"format"`
	raw    []byte
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Probe is the validated subset of ffprobe metadata used to plan an encode.
type Probe struct {
	DurationSeconds float64
	// SourceKbps is the container bitrate in kbps, or 0 when ffprobe did not
	// report a usable value.
	SourceKbps float64
}

// HasSourceBitrate reports whether ffprobe supplied a container bitrate.
func (p Probe) HasSourceBitrate() bool {
	return p.SourceKbps > 0
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_entries", "format=duration,bit_rate", "-of", "json", "--", path) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// DurationSeconds returns the container duration in seconds, 0 when absent,
// or NaN when the field is not numeric.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// Validate converts the raw result into a Probe, rejecting unusable durations.
func (r Result) Validate() (Probe, error) {
	raw := strings.TrimSpace(r.Format.Duration)
	if raw == "" || strings.EqualFold(raw, "N/A") {
		return Probe{}, services.Wrap(services.ErrProbe, "probe", "duration", "ffprobe returned no duration", nil)
	}
	duration := r.DurationSeconds()
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Probe{}, services.Wrap(services.ErrProbe, "probe", "duration", fmt.Sprintf("invalid duration value %q", raw), nil)
	}
	if duration <= 0 {
		return Probe{}, services.Wrap(services.ErrProbe, "probe", "duration", fmt.Sprintf("duration must be positive, got %s", raw), nil)
	}
	return Probe{
		DurationSeconds: duration,
		SourceKbps:      float64(r.BitRate()) / 1000,
	}, nil
}

// CLI probes media with the ffprobe binary.
type CLI struct {
	Binary string
}

// NewCLI constructs a CLI prober for the given binary (defaults to "ffprobe").
func NewCLI(binary string) *CLI {
	return &CLI{Binary: binary}
}

// Probe runs ffprobe and validates the container duration and bitrate.
func (c *CLI) Probe(ctx context.Context, path string) (Probe, error) {
	result, err := Inspect(ctx, c.Binary, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Probe{}, services.Wrap(services.ErrCancelled, "probe", "ffprobe", "", ctxErr)
		}
		return Probe{}, services.Wrap(services.ErrProbe, "probe", "ffprobe", "failed to read input metadata", err)
	}
	return result.Validate()
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
