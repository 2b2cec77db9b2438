package convergence

import (
	"math"

	"squash/internal/bitrate"
	"squash/internal/transcode"
)

// Sample pairs a requested video bitrate with the size it produced.
type Sample struct {
	BitrateKbps float64
	SizeBytes   int64
}

// Decision is how one encode outcome moved the search.
type Decision int

const (
	DecisionNone Decision = iota
	// DecisionConverged means the outcome landed inside the tolerance band.
	DecisionConverged
	// DecisionRaise means the outcome was too far below target.
	DecisionRaise
	// DecisionLower means the outcome met or exceeded the target.
	DecisionLower
)

func (d Decision) String() string {
	switch d {
	case DecisionConverged:
		return "converged"
	case DecisionRaise:
		return "raise"
	case DecisionLower:
		return "lower"
	default:
		return "none"
	}
}

// SearchState is the controller's working state. Only the controller mutates it.
type SearchState struct {
	Bounds      bitrate.Bounds
	CurrentKbps float64
	AudioKbps   int
	Iteration   int
	BestUnder   *Sample
	BestOver    *Sample
	Last        *Sample
}

func newSearchState(initialKbps float64, bounds bitrate.Bounds, audioKbps int) *SearchState {
	return &SearchState{
		Bounds:      bounds,
		CurrentKbps: bounds.Clamp(initialKbps),
		AudioKbps:   audioKbps,
	}
}

// observe classifies an outcome at the current bitrate and tightens the bounds.
// A size equal to the target counts as over; tolerance applies below the target only.
func (s *SearchState) observe(size int64, target Target) Decision {
	sample := Sample{BitrateKbps: s.CurrentKbps, SizeBytes: size}
	s.Last = &sample
	if size < target.SizeBytes {
		if s.BestUnder == nil || size > s.BestUnder.SizeBytes {
			s.BestUnder = &sample
		}
		if target.SizeBytes-size < target.ToleranceBytes {
			return DecisionConverged
		}
		s.Bounds.MinKbps = math.Max(s.Bounds.MinKbps, s.CurrentKbps)
		return DecisionRaise
	}
	if s.BestOver == nil || size < s.BestOver.SizeBytes {
		s.BestOver = &sample
	}
	s.Bounds.MaxKbps = math.Min(s.Bounds.MaxKbps, s.CurrentKbps)
	return DecisionLower
}

// estimate returns the unclamped candidate for the next iteration: a secant
// step across the bracket when both sides are known, otherwise proportional
// scaling of the current bitrate.
func (s *SearchState) estimate(size int64, target Target) float64 {
	if s.BestUnder != nil && s.BestOver != nil {
		span := s.BestOver.SizeBytes - s.BestUnder.SizeBytes
		if span <= 0 {
			return s.Bounds.Midpoint()
		}
		slope := (s.BestOver.BitrateKbps - s.BestUnder.BitrateKbps) / float64(span)
		return s.BestUnder.BitrateKbps + float64(target.SizeBytes-s.BestUnder.SizeBytes)*slope
	}
	if size <= 0 {
		return s.Bounds.Midpoint()
	}
	return s.CurrentKbps * float64(target.SizeBytes) / float64(size)
}

// next clamps a raw estimate into the bounds, falling back to the midpoint when
// the step would be under 1 kbps. A candidate clamped to the floor is returned
// as is so the floor itself gets encoded.
func (s *SearchState) next(raw float64) float64 {
	candidate := s.Bounds.Clamp(raw)
	if candidate <= bitrate.MinVideoKbps {
		return bitrate.MinVideoKbps
	}
	if math.Abs(candidate-s.CurrentKbps) < 1 {
		if mid := s.Bounds.Midpoint(); mid != candidate {
			candidate = mid
		}
	}
	return candidate
}

// atFloor reports whether the search has already tried the minimum bitrate and
// still wants to go lower. Anything within 1 kbps of the floor counts as tried.
func (s *SearchState) atFloor(raw float64) bool {
	return raw < bitrate.MinVideoKbps && s.CurrentKbps-bitrate.MinVideoKbps < 1
}

// stalled reports whether candidate would hand the encoder the same bitrate
// argument as the encode just finished.
func (s *SearchState) stalled(candidate float64) bool {
	return transcode.BitrateArg(candidate) == transcode.BitrateArg(s.CurrentKbps)
}
