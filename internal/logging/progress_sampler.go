package logging

// ProgressSampler thins encoder progress so the log file records one line per
// percent bucket per iteration instead of one per ffmpeg progress block.
type ProgressSampler struct {
	bucketSize    float64
	lastIteration int
	lastBucket    int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when a new iteration starts.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress update should be logged. A negative
// percent means the duration is unknown; those updates only log once per
// iteration.
func (s *ProgressSampler) ShouldLog(iteration int, percent float64) bool {
	if s == nil {
		return true
	}
	emit := false
	if iteration != s.lastIteration {
		s.lastIteration = iteration
		s.lastBucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastIteration = 0
	s.lastBucket = -1
}
