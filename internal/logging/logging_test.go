package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squash/internal/config"
	"squash/internal/services"
)

func TestConsoleHandlerLayout(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger = NewComponentLogger(logger, "convergence")
	ctx := services.WithStage(services.WithInput(context.Background(), "/videos/clip.mp4"), "encode")
	WithContext(ctx, logger).Info("iteration finished", Int("iteration", 2), String("decision", "lower bitrate"))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if !strings.Contains(lines[0], "INFO [convergence] clip.mp4 (encode) – iteration finished") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	for _, want := range []string{
		"    - iteration: 2",
		`    - decision: "lower bitrate"`,
		"    - input: /videos/clip.mp4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "component:") {
		t.Fatalf("component should be in the header only:\n%s", out)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", Alert("bitrate_floor"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked through warn level:\n%s", out)
	}
	if !strings.Contains(out, "WARN – shown") || !strings.Contains(out, "alert: bitrate_floor") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestConsoleHandlerGroupsAndDedupe(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Writer: &buf})
	logger.With(String("size", "old")).WithGroup("probe").Info("probed", Float64("duration", 12.5))
	logger.With(String("k", "a")).Info("dup", String("k", "b"))
	out := buf.String()
	if !strings.Contains(out, "    - probe.duration: 12.5") {
		t.Fatalf("expected grouped key:\n%s", out)
	}
	if strings.Count(out, "    - k:") != 1 || !strings.Contains(out, "    - k: b") {
		t.Fatalf("expected deduped key with last value:\n%s", out)
	}
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "01HZX")
	WithContext(ctx, logger).Error("encode failed", Error(errors.New("exit status 1")))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if payload["level"] != "error" || payload["msg"] != "encode failed" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload[FieldRunID] != "01HZX" || payload["error"] != "exit status 1" {
		t.Fatalf("unexpected fields: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key: %v", payload)
	}
}

func TestNewRejectsUnknownFormatAndLevel(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, closeFn, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello", String("input", "a.mp4"))
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("unexpected log contents: %s", data)
	}
}

func TestTeeLogger(t *testing.T) {
	var file, stderr bytes.Buffer
	base, _ := New(Options{Level: "info", Writer: &file})
	debug, _ := NewHandler(Options{Level: "debug", Writer: &stderr})
	logger := TeeLogger(base, debug)

	logger.Debug("debug only")
	logger.Info("both")

	if strings.Contains(file.String(), "debug only") {
		t.Fatalf("info handler received debug record:\n%s", file.String())
	}
	if !strings.Contains(stderr.String(), "debug only") || !strings.Contains(stderr.String(), "both") {
		t.Fatalf("debug handler missed records:\n%s", stderr.String())
	}
	if !strings.Contains(file.String(), "both") {
		t.Fatalf("info handler missed record:\n%s", file.String())
	}
}

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when all handlers are nil")
	}
	inner := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if got := newTeeHandler(nil, inner); got != inner {
		t.Fatal("expected single handler to be returned as-is")
	}
}

func TestNopAndComponentLogger(t *testing.T) {
	NewNop().Error("discarded")
	if NewComponentLogger(nil, "x") == nil {
		t.Fatal("expected logger")
	}
	if fields := ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}
