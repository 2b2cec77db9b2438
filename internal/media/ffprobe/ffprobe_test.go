package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"squash/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name       string
		format     Format
		wantErr    bool
		wantSource float64
	}{
		{name: "with bitrate", format: Format{Duration: "120.5", BitRate: "4500000"}, wantSource: 4500},
		{name: "missing bitrate", format: Format{Duration: "120.5"}, wantSource: 0},
		{name: "unparsable bitrate", format: Format{Duration: "120.5", BitRate: "N/A"}, wantSource: 0},
		{name: "missing duration", format: Format{BitRate: "4500000"}, wantErr: true},
		{name: "na duration", format: Format{Duration: "N/A"}, wantErr: true},
		{name: "non numeric duration", format: Format{Duration: "abc"}, wantErr: true},
		{name: "zero duration", format: Format{Duration: "0"}, wantErr: true},
		{name: "negative duration", format: Format{Duration: "-3"}, wantErr: true},
	}
	for _, tc := range cases {
		probe, err := Result{Format: tc.format}.Validate()
		if tc.wantErr {
			if !errors.Is(err, services.ErrProbe) {
				t.Fatalf("%s: expected probe failure, got %v", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if probe.DurationSeconds != 120.5 {
			t.Fatalf("%s: unexpected duration %v", tc.name, probe.DurationSeconds)
		}
		if probe.SourceKbps != tc.wantSource {
			t.Fatalf("%s: expected source %v, got %v", tc.name, tc.wantSource, probe.SourceKbps)
		}
		if probe.HasSourceBitrate() != (tc.wantSource > 0) {
			t.Fatalf("%s: HasSourceBitrate mismatch", tc.name)
		}
	}
}

func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCLIProbeParsesJSON(t *testing.T) {
	stub := writeStub(t, `cat <<'JSON'
{"format": {"duration": "42.000000", "bit_rate": "2000000"}}
JSON`)
	probe, err := NewCLI(stub).Probe(context.Background(), "/videos/in.mp4")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if probe.DurationSeconds != 42 {
		t.Fatalf("unexpected duration %v", probe.DurationSeconds)
	}
	if probe.SourceKbps != 2000 {
		t.Fatalf("unexpected source bitrate %v", probe.SourceKbps)
	}
}

func TestCLIProbeNonZeroExit(t *testing.T) {
	stub := writeStub(t, `echo "in.mp4: Invalid data found when processing input" >&2
exit 1`)
	_, err := NewCLI(stub).Probe(context.Background(), "/videos/in.mp4")
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected probe failure, got %v", err)
	}
}

func TestCLIProbeMissingDuration(t *testing.T) {
	stub := writeStub(t, `echo '{"format": {"bit_rate": "2000000"}}'`)
	_, err := NewCLI(stub).Probe(context.Background(), "/videos/in.mp4")
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected probe failure, got %v", err)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
