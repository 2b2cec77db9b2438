package convergence

import (
	"fmt"
	"time"

	"squash/internal/services"
	"squash/internal/textutil"
	"squash/internal/transcode"
)

// State is the terminal state of a run.
type State int

const (
	StateAlreadyUnderTarget State = iota + 1
	StateConverged
	StateExhausted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAlreadyUnderTarget:
		return "already_under_target"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IterationRecord is one encode as it was measured.
type IterationRecord struct {
	Number      int
	BitrateKbps float64
	SizeBytes   int64
	Elapsed     time.Duration
	Decision    Decision
}

// Report is the final, immutable summary of a run.
type Report struct {
	RunID            string
	State            State
	Success          bool
	InputPath        string
	OutputPath       string
	InputSizeBytes   int64
	SizeBytes        int64
	TargetSizeBytes  int64
	IterationsUsed   int
	MaxIterations    int
	FinalBitrateKbps float64
	AudioKbps        int
	Tier             transcode.Tier
	Elapsed          time.Duration
	// Closest is the outcome reported as context when the run failed.
	Closest    *Sample
	Reason     string
	Iterations []IterationRecord
}

// DeltaBytes is the signed distance of the final size from the target.
func (r Report) DeltaBytes() int64 {
	return r.SizeBytes - r.TargetSizeBytes
}

// WroteOutput reports whether OutputPath holds a usable file.
func (r Report) WroteOutput() bool {
	switch r.State {
	case StateAlreadyUnderTarget, StateConverged, StateExhausted:
		return true
	default:
		return false
	}
}

// runRecord collects what the aggregator needs from a finished search.
type runRecord struct {
	runID      string
	job        Job
	inputSize  int64
	state      *SearchState
	iterations []IterationRecord
	startedAt  time.Time
	finishedAt time.Time
}

// aggregate copies the terminal search state into a Report.
func aggregate(rec runRecord, terminal State, reason string) Report {
	report := Report{
		RunID:           rec.runID,
		State:           terminal,
		Success:         terminal == StateConverged || terminal == StateAlreadyUnderTarget,
		InputPath:       rec.job.InputPath,
		OutputPath:      rec.job.OutputPath,
		InputSizeBytes:  rec.inputSize,
		TargetSizeBytes: rec.job.Target.SizeBytes,
		MaxIterations:   rec.job.Target.MaxIterations,
		Tier:            rec.job.Target.Tier,
		Elapsed:         rec.finishedAt.Sub(rec.startedAt),
		Reason:          reason,
		Iterations:      append([]IterationRecord(nil), rec.iterations...),
	}
	if terminal == StateAlreadyUnderTarget {
		report.OutputPath = rec.job.InputPath
		report.SizeBytes = rec.inputSize
		return report
	}
	state := rec.state
	if state == nil {
		return report
	}
	report.IterationsUsed = state.Iteration
	report.AudioKbps = state.AudioKbps
	switch terminal {
	case StateConverged, StateExhausted:
		if state.Last != nil {
			report.SizeBytes = state.Last.SizeBytes
			report.FinalBitrateKbps = state.Last.BitrateKbps
		}
	default:
		report.OutputPath = ""
		closest := state.BestOver
		if closest == nil {
			closest = state.Last
		}
		if closest != nil {
			c := *closest
			report.Closest = &c
			report.SizeBytes = c.SizeBytes
			report.FinalBitrateKbps = c.BitrateKbps
		}
	}
	return report
}

// Err returns the error a failed report surfaces to the caller, or nil.
func (r Report) Err() error {
	if r.State != StateFailed {
		return nil
	}
	msg := r.Reason
	if msg == "" {
		msg = fmt.Sprintf("could not reach target after %d iterations", r.IterationsUsed)
	}
	if r.Closest != nil {
		label := "closest over-target result"
		if r.Closest.SizeBytes < r.TargetSizeBytes {
			label = "final result"
		}
		msg = fmt.Sprintf("%s; %s was %s at %.0f kbps", msg, label, textutil.FormatBytes(r.Closest.SizeBytes), r.Closest.BitrateKbps)
	}
	return services.Wrap(services.ErrConvergence, "converge", "search", msg, nil)
}
