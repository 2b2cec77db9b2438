package convergence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"squash/internal/bitrate"
	"squash/internal/fileutil"
	"squash/internal/logging"
	"squash/internal/media/ffprobe"
	"squash/internal/services"
	"squash/internal/transcode"
)

// Prober extracts duration and source bitrate from the input.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Probe, error)
}

// Options tune a Controller. Zero values select defaults.
type Options struct {
	// AudioKbps is the preferred audio bitrate before squeezing.
	AudioKbps int
	// TempDir holds the temporary artifact. Empty means the output directory,
	// which keeps promotion a same-filesystem rename.
	TempDir string
	Logger  *slog.Logger
	Sink    Sink
	Now     func() time.Time
}

// Job is a single resize request.
type Job struct {
	RunID      string
	InputPath  string
	OutputPath string
	Target     Target
}

// Controller runs the bitrate search. It is not safe for concurrent Runs.
type Controller struct {
	prober    Prober
	engine    transcode.Engine
	audioKbps int
	tempDir   string
	logger    *slog.Logger
	sink      Sink
	now       func() time.Time
}

// NewController wires a controller to its prober and encoder.
func NewController(prober Prober, engine transcode.Engine, opts Options) *Controller {
	c := &Controller{
		prober:    prober,
		engine:    engine,
		audioKbps: opts.AudioKbps,
		tempDir:   strings.TrimSpace(opts.TempDir),
		logger:    opts.Logger,
		sink:      opts.Sink,
		now:       opts.Now,
	}
	if c.audioKbps <= 0 {
		c.audioKbps = bitrate.DefaultAudioKbps
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	if c.sink == nil {
		c.sink = discardSink{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Validate checks a job before any work starts.
func (j Job) Validate() error {
	if strings.TrimSpace(j.InputPath) == "" {
		return services.Wrap(services.ErrValidation, "validate", "input", "input path is required", nil)
	}
	if strings.TrimSpace(j.OutputPath) == "" {
		return services.Wrap(services.ErrValidation, "validate", "output", "output path is required", nil)
	}
	if samePath(j.InputPath, j.OutputPath) {
		return services.Wrap(services.ErrValidation, "validate", "output", "output file cannot be the same as input file", nil)
	}
	return j.Target.Validate()
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

// Run drives the search to a terminal state. Failed runs return both a Report
// describing the closest result and a classified error. Cancelled runs return
// a cancelled error; the temporary artifact is removed on every path.
func (c *Controller) Run(ctx context.Context, job Job) (Report, error) {
	if err := job.Validate(); err != nil {
		return Report{}, err
	}
	ctx = services.WithRunID(ctx, job.RunID)
	ctx = services.WithInput(ctx, job.InputPath)
	logger := logging.WithContext(ctx, c.logger)

	rec := runRecord{runID: job.RunID, job: job, startedAt: c.now()}
	target := job.Target

	info, err := os.Stat(job.InputPath)
	if err != nil {
		return Report{}, services.Wrap(services.ErrValidation, "validate", "input", "input video file does not exist", err)
	}
	if info.IsDir() {
		return Report{}, services.Wrap(services.ErrValidation, "validate", "input", "input path is a directory", nil)
	}
	rec.inputSize = info.Size()
	base := Event{RunID: job.RunID, InputPath: job.InputPath, OutputPath: job.OutputPath, InputSize: rec.inputSize, Target: target}
	c.emit(base, func(e *Event) { e.Kind = EventAnalyzing })

	if rec.inputSize <= target.SizeBytes {
		logger.Info("input already under target",
			logging.Int64("input_bytes", rec.inputSize),
			logging.Int64("target_bytes", target.SizeBytes),
		)
		rec.finishedAt = c.now()
		report := aggregate(rec, StateAlreadyUnderTarget, "")
		c.emit(base, func(e *Event) { e.Kind = EventAlreadyUnderTarget })
		c.finish(base, &report)
		return report, nil
	}

	probe, err := c.prober.Probe(services.WithStage(ctx, "probe"), job.InputPath)
	if err != nil {
		if services.IsCancelled(err) || ctx.Err() != nil {
			return c.cancelled(base, rec, nil, err)
		}
		return Report{}, err
	}
	sourceKbps := probe.SourceKbps
	if !probe.HasSourceBitrate() {
		sourceKbps = bitrate.EstimateSourceKbps(rec.inputSize, probe.DurationSeconds)
	}
	audio := bitrate.SelectAudioKbps(probe.DurationSeconds, target.SizeBytes, c.audioKbps)
	initial := bitrate.InitialTargetKbps(probe.DurationSeconds, target.SizeBytes, audio)
	bounds := bitrate.InitialBounds(initial, sourceKbps, audio)
	state := newSearchState(initial, bounds, audio)
	rec.state = state

	logger.Info("search planned",
		logging.Float64("duration_seconds", probe.DurationSeconds),
		logging.Float64("source_kbps", sourceKbps),
		logging.Int("audio_kbps", audio),
		logging.Float64("initial_kbps", state.CurrentKbps),
		logging.Float64("min_kbps", bounds.MinKbps),
		logging.Float64("max_kbps", bounds.MaxKbps),
	)
	base.DurationSeconds = probe.DurationSeconds
	base.SourceKbps = sourceKbps
	base.AudioKbps = audio
	c.emit(base, func(e *Event) {
		e.Kind = EventProbed
		e.BitrateKbps = state.CurrentKbps
		e.Bounds = [2]float64{bounds.MinKbps, bounds.MaxKbps}
	})

	tempPath, err := c.tempPath(job.OutputPath)
	if err != nil {
		return Report{}, err
	}
	defer func() {
		if err := fileutil.RemoveIfExists(tempPath); err != nil {
			logger.Warn("temporary artifact cleanup failed", logging.String("path", tempPath), logging.Error(err))
		}
	}()

	encodeCtx := services.WithStage(ctx, "encode")
	floorReached, stalled := false, false
	sampler := logging.NewProgressSampler(5)
	for state.Iteration < target.MaxIterations {
		if ctx.Err() != nil {
			return c.cancelled(base, rec, state, ctx.Err())
		}
		state.Iteration++
		iteration := state.Iteration
		current := state.CurrentKbps
		c.emit(base, func(e *Event) {
			e.Kind = EventIterationStarted
			e.Iteration = iteration
			e.BitrateKbps = current
			e.Bounds = [2]float64{state.Bounds.MinKbps, state.Bounds.MaxKbps}
		})

		outcome, err := c.engine.Encode(encodeCtx, transcode.Request{
			InputPath:       job.InputPath,
			OutputPath:      tempPath,
			VideoKbps:       current,
			AudioKbps:       audio,
			Tier:            target.Tier,
			DurationSeconds: probe.DurationSeconds,
			Progress: func(p transcode.Progress) {
				c.emit(base, func(e *Event) {
					e.Kind = EventProgress
					e.Iteration = iteration
					e.BitrateKbps = current
					e.Progress = p
				})
				if sampler.ShouldLog(iteration, p.Percent) {
					logger.Debug("encode progress",
						logging.Int("iteration", iteration),
						logging.Float64("percent", p.Percent),
						logging.String("speed", p.Speed),
						logging.Duration("eta", p.ETA),
					)
				}
			},
		})
		if err != nil {
			if services.IsCancelled(err) || ctx.Err() != nil {
				return c.cancelled(base, rec, state, err)
			}
			logger.Error("encode failed", logging.Int("iteration", iteration), logging.Error(err))
			rec.finishedAt = c.now()
			report := aggregate(rec, StateFailed, err.Error())
			c.finish(base, &report)
			return report, err
		}

		decision := state.observe(outcome.SizeBytes, target)
		var gap int64
		if outcome.SizeBytes < target.SizeBytes {
			gap = target.SizeBytes - outcome.SizeBytes
		}
		rec.iterations = append(rec.iterations, IterationRecord{
			Number:      iteration,
			BitrateKbps: current,
			SizeBytes:   outcome.SizeBytes,
			Elapsed:     outcome.Elapsed,
			Decision:    decision,
		})
		logger.Info("iteration finished",
			logging.Int("iteration", iteration),
			logging.Float64("bitrate_kbps", current),
			logging.Int64("size_bytes", outcome.SizeBytes),
			logging.String("decision", decision.String()),
			logging.Duration("elapsed", outcome.Elapsed),
		)
		c.emit(base, func(e *Event) {
			e.Kind = EventIterationFinished
			e.Iteration = iteration
			e.BitrateKbps = current
			e.SizeBytes = outcome.SizeBytes
			e.Elapsed = outcome.Elapsed
			e.Decision = decision
			e.GapBytes = gap
		})

		if decision == DecisionConverged {
			if err := fileutil.Promote(tempPath, job.OutputPath); err != nil {
				return c.promoteFailed(base, rec, logger, err)
			}
			rec.finishedAt = c.now()
			report := aggregate(rec, StateConverged, "")
			c.finish(base, &report)
			return report, nil
		}

		raw := state.estimate(outcome.SizeBytes, target)
		if state.atFloor(raw) {
			floorReached = true
			logger.Warn("bitrate floor reached",
				logging.Float64("candidate_kbps", raw),
				logging.Float64("floor_kbps", bitrate.MinVideoKbps),
				logging.Alert("bitrate_floor"),
			)
			c.emit(base, func(e *Event) {
				e.Kind = EventFloorReached
				e.Iteration = iteration
				e.BitrateKbps = raw
			})
			break
		}
		candidate := state.next(raw)
		if state.Iteration < target.MaxIterations && state.stalled(candidate) {
			stalled = true
			logger.Warn("bitrate search stalled",
				logging.Float64("bitrate_kbps", state.CurrentKbps),
				logging.Float64("candidate_kbps", candidate),
				logging.Float64("min_kbps", state.Bounds.MinKbps),
				logging.Float64("max_kbps", state.Bounds.MaxKbps),
				logging.Alert("search_stalled"),
			)
			break
		}
		state.CurrentKbps = candidate
	}

	if last := state.Last; last != nil && last.SizeBytes <= target.SizeBytes {
		if err := fileutil.Promote(tempPath, job.OutputPath); err != nil {
			return c.promoteFailed(base, rec, logger, err)
		}
		reason := "max iterations reached, using best result under target"
		if stalled {
			reason = fmt.Sprintf("search stalled at %.0f kbps, using best result under target", last.BitrateKbps)
		}
		rec.finishedAt = c.now()
		report := aggregate(rec, StateExhausted, reason)
		c.finish(base, &report)
		return report, nil
	}

	reason := fmt.Sprintf("could not reach target after %d iterations", state.Iteration)
	switch {
	case floorReached:
		reason = "bitrate too low, cannot achieve target size without severe quality loss"
	case stalled:
		reason = fmt.Sprintf("search stalled at %.0f kbps after %d iterations", state.CurrentKbps, state.Iteration)
	}
	rec.finishedAt = c.now()
	report := aggregate(rec, StateFailed, reason)
	c.finish(base, &report)
	return report, report.Err()
}

// promoteFailed records a run whose encode finished but whose output could
// not be moved into place.
func (c *Controller) promoteFailed(base Event, rec runRecord, logger *slog.Logger, cause error) (Report, error) {
	err := fmt.Errorf("promote output: %w", cause)
	logger.Error("output promotion failed", logging.String("output", rec.job.OutputPath), logging.Error(cause))
	rec.finishedAt = c.now()
	report := aggregate(rec, StateFailed, err.Error())
	c.finish(base, &report)
	return report, err
}

func (c *Controller) cancelled(base Event, rec runRecord, state *SearchState, cause error) (Report, error) {
	rec.state = state
	rec.finishedAt = c.now()
	report := aggregate(rec, StateCancelled, "encoding cancelled")
	c.finish(base, &report)
	if errors.Is(cause, services.ErrCancelled) {
		return report, cause
	}
	return report, services.Wrap(services.ErrCancelled, "converge", "run", "encoding cancelled", cause)
}

// tempPath names the per-run artifact. The output's extension is kept so the
// encoder selects the same container.
func (c *Controller) tempPath(outputPath string) (string, error) {
	dir := c.tempDir
	if dir == "" {
		dir = filepath.Dir(outputPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	ext := filepath.Ext(outputPath)
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(dir, ".squash-"+strings.ToLower(ulid.Make().String())+ext), nil
}

func (c *Controller) emit(base Event, fill func(*Event)) {
	evt := base
	fill(&evt)
	c.sink.Handle(evt)
}

func (c *Controller) finish(base Event, report *Report) {
	c.emit(base, func(e *Event) {
		e.Kind = EventFinished
		e.Report = report
	})
}
