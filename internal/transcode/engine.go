package transcode

import (
	"context"
	"fmt"
	"time"
)

// Tier selects the codec/preset trade-off between encode time and compression
// efficiency at a fixed bitrate.
type Tier int

const (
	TierFast Tier = iota + 1
	TierBalanced
	TierSlow
	TierSmallest
)

// ClampTier maps a repeat-count style quality value onto a valid tier.
func ClampTier(value int) Tier {
	return Tier(min(max(value, int(TierFast)), int(TierSmallest)))
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t >= TierFast && t <= TierSmallest
}

// Codec returns the video encoder and preset for the tier.
func (t Tier) Codec() (codec, preset string) {
	switch t {
	case TierBalanced:
		return "libx265", "medium"
	case TierSlow:
		return "libx265", "slow"
	case TierSmallest:
		return "libx265", "veryslow"
	default:
		return "libx264", "medium"
	}
}

func (t Tier) String() string {
	codec, preset := t.Codec()
	return fmt.Sprintf("%d (%s/%s)", int(t), codec, preset)
}

// Request describes a single encode.
type Request struct {
	InputPath       string
	OutputPath      string
	VideoKbps       float64
	AudioKbps       int
	Tier            Tier
	DurationSeconds float64
	// Progress receives best-effort status updates; may be nil.
	Progress func(Progress)
}

// Outcome is the measured result of one encode.
type Outcome struct {
	BitrateKbps float64
	SizeBytes   int64
	Elapsed     time.Duration
}

// Engine encodes the input at the requested bitrates.
type Engine interface {
	Encode(ctx context.Context, req Request) (Outcome, error)
}
