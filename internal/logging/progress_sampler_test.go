package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{9.9, false},
		{10, true},
		{15, false},
		{35, true},
		{34, false},
		{100, true},
		{100, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(1, step.percent); got != step.want {
			t.Fatalf("ShouldLog(1, %v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerNewIterationResets(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(1, 50) {
		t.Fatal("expected first update to log")
	}
	if s.ShouldLog(1, 52) {
		t.Fatal("expected same bucket to be suppressed")
	}
	if !s.ShouldLog(2, 3) {
		t.Fatal("expected new iteration to log even at a lower percent")
	}
	if !s.ShouldLog(2, 6) {
		t.Fatal("expected next bucket to log")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(1, -1) {
		t.Fatal("expected first unknown update of an iteration to log")
	}
	if s.ShouldLog(1, -1) {
		t.Fatal("expected repeated unknown updates to be suppressed")
	}
}

func TestProgressSamplerDefaultsAndReset(t *testing.T) {
	s := NewProgressSampler(0)
	if s.bucketSize != 5 {
		t.Fatalf("bucketSize = %v, want 5", s.bucketSize)
	}
	s.ShouldLog(3, 40)
	s.Reset()
	if !s.ShouldLog(3, 40) {
		t.Fatal("expected reset sampler to log again")
	}
	var nilSampler *ProgressSampler
	if !nilSampler.ShouldLog(1, 1) {
		t.Fatal("nil sampler should always log")
	}
}
