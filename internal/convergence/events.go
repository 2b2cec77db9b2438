package convergence

import (
	"time"

	"squash/internal/transcode"
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventAnalyzing fires once with the input path and its current size.
	EventAnalyzing EventKind = iota + 1
	// EventAlreadyUnderTarget fires when no encode is needed.
	EventAlreadyUnderTarget
	// EventProbed fires after the prober returns, with the derived plan.
	EventProbed
	// EventIterationStarted fires before each encode.
	EventIterationStarted
	// EventProgress relays a best-effort encoder progress update.
	EventProgress
	// EventIterationFinished fires with the measured outcome and the decision.
	EventIterationFinished
	// EventFloorReached fires when the next candidate would fall under the
	// minimum viable video bitrate.
	EventFloorReached
	// EventFinished carries the final report on every exit path that produced one.
	EventFinished
)

// Event is a notification from the controller. Fields not relevant to Kind
// are zero.
type Event struct {
	Kind       EventKind
	RunID      string
	InputPath  string
	OutputPath string
	InputSize  int64
	Target     Target

	DurationSeconds float64
	SourceKbps      float64
	AudioKbps       int
	Bounds          [2]float64

	Iteration   int
	BitrateKbps float64
	Progress    transcode.Progress
	SizeBytes   int64
	Elapsed     time.Duration
	Decision    Decision
	// GapBytes is target minus size for under-target outcomes.
	GapBytes int64

	Report *Report
}

// Sink receives controller events. Implementations must not block for long;
// the controller calls them synchronously.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Handle implements Sink.
func (f SinkFunc) Handle(evt Event) { f(evt) }

// MultiSink fans events out to every non-nil sink in order.
type MultiSink []Sink

// Handle implements Sink.
func (m MultiSink) Handle(evt Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Handle(evt)
		}
	}
}

type discardSink struct{}

func (discardSink) Handle(Event) {}
