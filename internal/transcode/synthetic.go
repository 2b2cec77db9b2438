package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"squash/internal/services"
)

// SizeFunc maps a requested video bitrate to the size of the file it produces.
type SizeFunc func(videoKbps float64, audioKbps int) int64

// LinearSize models a constant-bitrate encoder: every kbit/s of combined
// stream bitrate costs duration*125 bytes.
func LinearSize(durationSeconds float64) SizeFunc {
	return func(videoKbps float64, audioKbps int) int64 {
		return int64((videoKbps + float64(audioKbps)) * durationSeconds * 125)
	}
}

// FixedSize always produces the same size regardless of bitrate.
func FixedSize(size int64) SizeFunc {
	return func(float64, int) int64 { return size }
}

// Synthetic is a deterministic Engine that writes a sparse file of the size
// returned by Size. It records every request it receives.
type Synthetic struct {
	Size SizeFunc
	// FailAt makes the Nth call (1-based) fail with a non-zero encoder exit.
	FailAt int
	// Hook runs before the output is written; it may block on ctx.
	Hook func(ctx context.Context, call int) error

	mu       sync.Mutex
	requests []Request
}

// Encode implements Engine.
func (s *Synthetic) Encode(ctx context.Context, req Request) (Outcome, error) {
	if s.Size == nil {
		return Outcome{}, errors.New("synthetic engine: size function required")
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	s.mu.Unlock()

	started := time.Now()
	if req.Progress != nil {
		req.Progress(Progress{Percent: 0, Speed: "1x"})
	}
	if s.Hook != nil {
		if err := s.Hook(ctx, call); err != nil {
			return Outcome{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, services.Wrap(services.ErrCancelled, "encode", "synthetic", "encoding cancelled", err)
	}
	if s.FailAt > 0 && call == s.FailAt {
		return Outcome{}, &services.EncodeFailureError{
			ExitCode:       1,
			LastDiagnostic: fmt.Sprintf("synthetic failure on call %d", call),
		}
	}

	size := s.Size(req.VideoKbps, req.AudioKbps)
	if size < 0 {
		size = 0
	}
	file, err := os.Create(req.OutputPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("create output: %w", err)
	}
	if err := file.Truncate(size); err != nil {
		_ = file.Close()
		return Outcome{}, fmt.Errorf("size output: %w", err)
	}
	if err := file.Close(); err != nil {
		return Outcome{}, fmt.Errorf("close output: %w", err)
	}
	if req.Progress != nil {
		req.Progress(Progress{Percent: 100, Speed: "1x", Done: true})
	}
	return Outcome{BitrateKbps: req.VideoKbps, SizeBytes: size, Elapsed: time.Since(started)}, nil
}

// Requests returns a copy of every request received so far.
func (s *Synthetic) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

var _ Engine = (*Synthetic)(nil)
