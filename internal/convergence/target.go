package convergence

import (
	"fmt"
	"math"

	"squash/internal/services"
	"squash/internal/transcode"
)

// BytesPerMegabyte converts the user-facing size argument.
const BytesPerMegabyte = 1024 * 1024

// Limits accepted for user-supplied search parameters.
const (
	MaxTolerancePercent  = 50.0
	DefaultTolerance     = 2.0
	DefaultMaxIterations = 15
)

// Target is the validated, immutable goal of one run.
type Target struct {
	SizeBytes        int64
	ToleranceBytes   int64
	TolerancePercent float64
	MaxIterations    int
	Tier             transcode.Tier
}

// NewTarget builds a Target from a size in megabytes and a tolerance percent.
func NewTarget(sizeMB int64, tolerancePercent float64, maxIterations int, tier transcode.Tier) (Target, error) {
	if sizeMB < 1 {
		return Target{}, services.Wrap(services.ErrValidation, "validate", "size", "size must be greater than 0", nil)
	}
	if math.IsNaN(tolerancePercent) || tolerancePercent <= 0 || tolerancePercent > MaxTolerancePercent {
		return Target{}, services.Wrap(services.ErrValidation, "validate", "tolerance", fmt.Sprintf("tolerance must be between 0 and %.0f", MaxTolerancePercent), nil)
	}
	size := sizeMB * BytesPerMegabyte
	target := Target{
		SizeBytes:        size,
		ToleranceBytes:   int64(float64(size) * tolerancePercent / 100),
		TolerancePercent: tolerancePercent,
		MaxIterations:    maxIterations,
		Tier:             tier,
	}
	return target, target.Validate()
}

// Validate checks the invariants the controller relies on.
func (t Target) Validate() error {
	switch {
	case t.SizeBytes <= 0:
		return services.Wrap(services.ErrValidation, "validate", "size", "target size must be positive", nil)
	case t.ToleranceBytes < 0:
		return services.Wrap(services.ErrValidation, "validate", "tolerance", "tolerance must not be negative", nil)
	case t.MaxIterations < 1:
		return services.Wrap(services.ErrValidation, "validate", "iterations", "max iterations must be greater than 0", nil)
	case !t.Tier.Valid():
		return services.Wrap(services.ErrValidation, "validate", "quality", fmt.Sprintf("quality tier %d out of range", int(t.Tier)), nil)
	}
	return nil
}
