package bitrate

import "math"

const (
	// MinVideoKbps is the lowest video bitrate the search will request.
	MinVideoKbps = 100.0
	// DefaultAudioKbps is the audio bitrate used when the budget allows it.
	DefaultAudioKbps = 128
	// MinAudioKbps is the floor applied when audio has to be squeezed.
	MinAudioKbps = 32
	// ContainerOverhead is the share of the budget left to audio+video after
	// muxing and metadata overhead.
	ContainerOverhead = 0.97
	// SourceHeadroom is how far above the source's own video bitrate the upper
	// bound may reach.
	SourceHeadroom = 1.1
)

// Bounds is the closed bitrate interval the search is allowed to explore.
type Bounds struct {
	MinKbps float64
	MaxKbps float64
}

// Clamp pins value into the interval.
func (b Bounds) Clamp(value float64) float64 {
	return math.Min(math.Max(value, b.MinKbps), b.MaxKbps)
}

// Midpoint returns the centre of the interval.
func (b Bounds) Midpoint() float64 {
	return (b.MinKbps + b.MaxKbps) / 2
}

// TotalKbps is the combined audio+video rate that fills sizeBytes over the duration.
func TotalKbps(durationSeconds float64, sizeBytes int64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return float64(sizeBytes) * 8 / durationSeconds / 1000
}

// SelectAudioKbps returns defaultAudio unless the target is so small that full
// quality audio would starve the video of its minimum viable rate, in which
// case audio shrinks to whatever headroom remains, floored at MinAudioKbps.
func SelectAudioKbps(durationSeconds float64, targetSizeBytes int64, defaultAudio int) int {
	if durationSeconds <= 0 {
		return defaultAudio
	}
	total := TotalKbps(durationSeconds, targetSizeBytes)
	headroom := total - MinVideoKbps/ContainerOverhead
	if headroom >= float64(defaultAudio) {
		return defaultAudio
	}
	if headroom <= 0 {
		return MinAudioKbps
	}
	return max(MinAudioKbps, int(headroom))
}

// InitialTargetKbps is the first video bitrate to try: the budget minus audio,
// less container overhead, never below MinVideoKbps.
func InitialTargetKbps(durationSeconds float64, targetSizeBytes int64, audioKbps int) float64 {
	if durationSeconds <= 0 {
		return MinVideoKbps
	}
	total := TotalKbps(durationSeconds, targetSizeBytes)
	video := (total - float64(audioKbps)) * ContainerOverhead
	return math.Max(MinVideoKbps, video)
}

// InitialBounds derives the starting search interval. The upper bound is twice
// the target, capped near the source's own video bitrate when that is known
// (sourceKbps > 0), and never below the target itself.
func InitialBounds(targetKbps, sourceKbps float64, audioKbps int) Bounds {
	upper := targetKbps * 2
	if sourceKbps > 0 {
		sourceVideo := math.Max(MinVideoKbps, sourceKbps-float64(audioKbps))
		upper = math.Min(upper, sourceVideo*SourceHeadroom)
	}
	upper = math.Max(upper, targetKbps)
	return Bounds{MinKbps: MinVideoKbps, MaxKbps: upper}
}

// EstimateSourceKbps derives a source bitrate from the file size when the
// container does not report one.
func EstimateSourceKbps(fileSizeBytes int64, durationSeconds float64) float64 {
	return TotalKbps(durationSeconds, fileSizeBytes)
}
