package console

import (
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"squash/internal/convergence"
	"squash/internal/textutil"
)

// DefaultProgressInterval spaces plain-text progress lines on non-terminals.
const DefaultProgressInterval = 5 * time.Second

// Sink renders controller events through a Printer.
type Sink struct {
	printer     *Printer
	interactive bool
	interval    time.Duration

	bar     *progressbar.ProgressBar
	limiter *rate.Limiter
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithProgressInterval overrides the non-terminal progress cadence.
func WithProgressInterval(interval time.Duration) SinkOption {
	return func(s *Sink) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewSink builds a Sink. interactive selects the live progress bar.
func NewSink(printer *Printer, interactive bool, opts ...SinkOption) *Sink {
	s := &Sink{printer: printer, interactive: interactive, interval: DefaultProgressInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle implements convergence.Sink.
func (s *Sink) Handle(evt convergence.Event) {
	p := s.printer
	switch evt.Kind {
	case convergence.EventAnalyzing:
		p.Writef(SeverityInfo, "Analyzing %s...", p.Bold(evt.InputPath))
		p.Writef(SeverityInfo, "Current size: %s", p.Bold(textutil.FormatBytes(evt.InputSize)))
	case convergence.EventAlreadyUnderTarget:
		p.Writeln(SeveritySuccess, "Video is already at or under target size. No encoding needed.")
	case convergence.EventProbed:
		p.Writef(SeverityInfo, "Duration %s, audio %d kbps, starting at %.0f kbps %s",
			textutil.FormatSeconds(evt.DurationSeconds),
			evt.AudioKbps,
			evt.BitrateKbps,
			p.Dim(formatBounds(evt.Bounds)),
		)
	case convergence.EventIterationStarted:
		p.Writef(SeverityInfo, "Iteration %d of %d: encoding at %.0fkbps with a %g%% tolerance...",
			evt.Iteration, evt.Target.MaxIterations, evt.BitrateKbps, evt.Target.TolerancePercent)
		s.startProgress()
	case convergence.EventProgress:
		s.progress(evt)
	case convergence.EventIterationFinished:
		s.stopProgress()
		s.iterationResult(evt)
	case convergence.EventFloorReached:
		p.Writeln(SeverityWarning, "Bitrate too low. Cannot achieve target size without severe quality loss.")
	case convergence.EventFinished:
		s.stopProgress()
		s.finished(evt.Report)
	}
}

func (s *Sink) iterationResult(evt convergence.Event) {
	p := s.printer
	delta := PercentDelta(evt.SizeBytes, evt.Target.SizeBytes)
	if evt.SizeBytes < evt.Target.SizeBytes {
		delta = p.Good(delta)
	} else {
		delta = p.Bad(delta)
	}
	p.Writef(SeverityInfo, "Result: %s (%s) in %s", p.Bold(textutil.FormatBytes(evt.SizeBytes)), delta, textutil.FormatDuration(evt.Elapsed))
	switch evt.Decision {
	case convergence.DecisionConverged:
		p.Writef(SeverityInfo, "Target achieved! Moving file to %s", filepath.Base(evt.OutputPath))
	case convergence.DecisionRaise:
		p.Writef(SeverityInfo, "Too far below target (%s gap), increasing bitrate for next iteration", p.Bold(textutil.FormatBytes(evt.GapBytes)))
	case convergence.DecisionLower:
		p.Writeln(SeverityInfo, "Over target, reducing bitrate for next iteration")
	}
}

func (s *Sink) finished(report *convergence.Report) {
	if report == nil {
		return
	}
	if report.State == convergence.StateExhausted {
		s.printer.Writeln(SeverityWarning, s.printer.Caution(ExhaustedNotice(report.Reason)))
	}
	if report.WroteOutput() {
		s.printer.Writeln(SeveritySuccess, Summary(*report))
	}
}

func (s *Sink) startProgress() {
	s.stopProgress()
	if !s.interactive {
		s.limiter = rate.NewLimiter(rate.Every(s.interval), 1)
		return
	}
	s.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(s.printer.Out()),
		progressbar.OptionSetDescription("Encoding..."),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionEnableColorCodes(s.printer.Colorize()),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
	)
}

func (s *Sink) progress(evt convergence.Event) {
	status := ProgressStatus(evt.Progress)
	if s.bar != nil {
		if status != "" {
			s.bar.Describe("Encoding... " + status)
		}
		if evt.Progress.Percent >= 0 {
			_ = s.bar.Set(int(evt.Progress.Percent))
		}
		return
	}
	if s.limiter == nil || status == "" || evt.Progress.Done {
		return
	}
	if s.limiter.Allow() {
		s.printer.Writef(SeverityInfo, "Encoding... %s", s.printer.Dim(status))
	}
}

func (s *Sink) stopProgress() {
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
	s.limiter = nil
}

func formatBounds(bounds [2]float64) string {
	if bounds[1] <= 0 {
		return ""
	}
	return "(bounds " + textutil.FormatKbps(bounds[0]) + " to " + textutil.FormatKbps(bounds[1]) + ")"
}

var _ convergence.Sink = (*Sink)(nil)
