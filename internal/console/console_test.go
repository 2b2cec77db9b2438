package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"squash/internal/convergence"
	"squash/internal/transcode"
)

func newTestPrinter() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinter(&out, &errOut, false), &out, &errOut
}

func TestPrinterFormatsPrefix(t *testing.T) {
	p, out, errOut := newTestPrinter()
	p.Writeln(SeverityInfo, "hello")
	p.Writeln(SeverityError, "boom")
	if out.String() != "➤ SQUASH: hello\n" {
		t.Fatalf("unexpected stdout %q", out.String())
	}
	if errOut.String() != "➤ SQUASH: boom\n" {
		t.Fatalf("error lines belong on stderr, got %q", errOut.String())
	}
}

func TestPrinterColorize(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, &out, true)
	if !strings.Contains(p.Bold("x"), "\x1b[") {
		t.Fatal("expected ANSI styling when colorize is on")
	}
	plain := NewPrinter(&out, &out, false)
	if plain.Bold("x") != "x" {
		t.Fatalf("expected plain text, got %q", plain.Bold("x"))
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if ShouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestProgressStatus(t *testing.T) {
	got := ProgressStatus(transcode.Progress{
		Percent: 42,
		Speed:   "2.1x",
		FPS:     "48",
		Bitrate: "6600.0kbits/s",
		ETA:     125 * time.Second,
	})
	want := " 42.0% | speed 2.1x | fps 48 | br 6600.0kbits/s | eta ~2m 05s"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if ProgressStatus(transcode.Progress{Percent: -1}) != "" {
		t.Fatal("unknown progress should render empty")
	}
}

func TestPercentDelta(t *testing.T) {
	if got := PercentDelta(95, 100); got != "-5.00%" {
		t.Fatalf("got %q", got)
	}
	if got := PercentDelta(110, 100); got != "+10.00%" {
		t.Fatalf("got %q", got)
	}
}

func TestSummary(t *testing.T) {
	report := convergence.Report{
		Success:          true,
		OutputPath:       "/videos/out.mp4",
		SizeBytes:        103605568,
		TargetSizeBytes:  104857600,
		IterationsUsed:   5,
		MaxIterations:    15,
		FinalBitrateKbps: 6907.04,
		Elapsed:          3*time.Minute + 4*time.Second,
	}
	want := "Success: wrote /videos/out.mp4; final size 98.81MB (target 100.00MB, delta -1.19MB); iterations 5/15; final bitrate 6907 kbps; total time 3m 04s."
	if got := Summary(report); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
	report.Success = false
	if !strings.HasPrefix(Summary(report), "Partial: ") {
		t.Fatalf("expected partial prefix: %s", Summary(report))
	}
}

func TestStateLabel(t *testing.T) {
	if got := StateLabel("already_under_target"); got != "Already Under Target" {
		t.Fatalf("got %q", got)
	}
	if got := StateLabel(""); got != "Unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestSinkRendersIteration(t *testing.T) {
	p, out, _ := newTestPrinter()
	sink := NewSink(p, false)
	target := convergence.Target{SizeBytes: 100 * convergence.BytesPerMegabyte, TolerancePercent: 2, MaxIterations: 15}

	sink.Handle(convergence.Event{Kind: convergence.EventIterationStarted, Iteration: 1, BitrateKbps: 6656.6, Target: target})
	sink.Handle(convergence.Event{
		Kind:        convergence.EventIterationFinished,
		Iteration:   1,
		SizeBytes:   95 * convergence.BytesPerMegabyte,
		Elapsed:     65 * time.Second,
		Decision:    convergence.DecisionRaise,
		GapBytes:    5 * convergence.BytesPerMegabyte,
		Target:      target,
		BitrateKbps: 6656.6,
	})
	text := out.String()
	for _, want := range []string{
		"Iteration 1 of 15: encoding at 6657kbps with a 2% tolerance...",
		"Result: 95.00MB (-5.00%) in 1m 05s",
		"Too far below target (5.00MB gap), increasing bitrate for next iteration",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestSinkThrottlesPlainProgress(t *testing.T) {
	p, out, _ := newTestPrinter()
	sink := NewSink(p, false, WithProgressInterval(time.Hour))
	sink.Handle(convergence.Event{Kind: convergence.EventIterationStarted, Iteration: 1, Target: convergence.Target{MaxIterations: 1}})
	before := strings.Count(out.String(), "\n")
	for i := 0; i < 20; i++ {
		sink.Handle(convergence.Event{Kind: convergence.EventProgress, Progress: transcode.Progress{Percent: float64(i), Speed: "1x"}})
	}
	lines := strings.Count(out.String(), "\n") - before
	if lines != 1 {
		t.Fatalf("expected a single throttled progress line, got %d:\n%s", lines, out.String())
	}
}

func TestSinkFinishedPrintsSummary(t *testing.T) {
	p, out, _ := newTestPrinter()
	sink := NewSink(p, false)
	report := &convergence.Report{State: convergence.StateExhausted, OutputPath: "out.mp4", MaxIterations: 1, IterationsUsed: 1}
	sink.Handle(convergence.Event{Kind: convergence.EventFinished, Report: report})
	text := out.String()
	if !strings.Contains(text, "Max iterations reached") || !strings.Contains(text, "Partial: wrote out.mp4") {
		t.Fatalf("unexpected output:\n%s", text)
	}

	out.Reset()
	report.Reason = "search stalled at 38307 kbps, using best result under target"
	sink.Handle(convergence.Event{Kind: convergence.EventFinished, Report: report})
	if !strings.Contains(out.String(), "Search stalled at 38307 kbps, using best result under target.") {
		t.Fatalf("expected the stall reason, got:\n%s", out.String())
	}

	out.Reset()
	sink.Handle(convergence.Event{Kind: convergence.EventFinished, Report: &convergence.Report{State: convergence.StateFailed}})
	if out.Len() != 0 {
		t.Fatalf("failed runs print no summary, got %q", out.String())
	}
}
