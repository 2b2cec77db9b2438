package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"squash/internal/config"
	"squash/internal/console"
	"squash/internal/convergence"
	"squash/internal/deps"
	"squash/internal/history"
	"squash/internal/logging"
	"squash/internal/media/ffprobe"
	"squash/internal/metrics"
	"squash/internal/runlock"
	"squash/internal/services"
	"squash/internal/transcode"
)

var now = time.Now

func runSquash(cmd *cobra.Command, cc *commandContext, flags runFlags, args []string) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	input := strings.TrimSpace(args[0])
	sizeMB, err := parseSizeMB(args[1])
	if err != nil {
		return err
	}
	target, err := buildTarget(cmd, cfg, flags, sizeMB)
	if err != nil {
		return err
	}
	output := strings.TrimSpace(flags.output)
	if output == "" {
		output = defaultOutputPath(input, now())
	}

	// Nothing is written until the request and its tools check out.
	job := convergence.Job{InputPath: input, OutputPath: output, Target: target}
	if err := job.Validate(); err != nil {
		return err
	}
	if err := checkInput(input); err != nil {
		return err
	}
	if err := checkWritable(output, cfg.Paths.TempDir); err != nil {
		return err
	}
	tools, err := deps.Require(deps.Tools(cfg.Tools.FFmpeg, cfg.Tools.FFprobe))
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := console.NewPrinter(out, cmd.ErrOrStderr(), console.ShouldColorize(out))

	logger, closeLog, err := cc.logger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	logger = logging.NewComponentLogger(logger, "cli")

	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	runID := history.NewRunID()
	ctx := services.WithInput(services.WithRunID(cmd.Context(), runID), input)
	logging.WithContext(ctx, logger).Info("squash run starting",
		logging.String("output", output),
		logging.Int64("target_bytes", target.SizeBytes),
		logging.Float64("tolerance_percent", target.TolerancePercent),
		logging.Int("max_iterations", target.MaxIterations),
		logging.String("quality", target.Tier.String()),
		logging.String("ffmpeg", tools["ffmpeg"]),
		logging.String("ffprobe", tools["ffprobe"]),
	)

	sinks := convergence.MultiSink{
		console.NewSink(printer, console.IsTerminal(out),
			console.WithProgressInterval(time.Duration(cfg.Encoding.ProgressIntervalSeconds)*time.Second)),
	}
	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			logger.Warn("run history unavailable", logging.Error(err), logging.Alert("history_open"))
		} else {
			defer store.Close()
			sinks = append(sinks, history.NewRecorder(ctx, store, logger))
		}
	}
	if exporter := metrics.NewExporter(cfg.Metrics.Textfile, logger); exporter != nil {
		sinks = append(sinks, exporter)
	}

	controller := convergence.NewController(
		ffprobe.NewCLI(tools["ffprobe"]),
		transcode.NewFFmpeg(transcode.WithBinary(tools["ffmpeg"]), transcode.WithLogger(logger)),
		convergence.Options{
			AudioKbps: cfg.Encoding.AudioBitrateKbps,
			TempDir:   cfg.Paths.TempDir,
			Logger:    logger,
			Sink:      sinks,
		},
	)
	job.RunID = runID
	report, err := controller.Run(ctx, job)
	if services.IsCancelled(err) {
		printer.Writeln(console.SeverityWarning, "Encoding cancelled.")
		return err
	}
	if err != nil {
		logger.Error("squash run failed",
			logging.String(logging.FieldRunID, runID),
			logging.String("state", report.State.String()),
			logging.Error(err),
		)
		return err
	}
	logger.Info("squash run finished",
		logging.String(logging.FieldRunID, runID),
		logging.String("state", report.State.String()),
		logging.Int64("size_bytes", report.SizeBytes),
		logging.Int("iterations", report.IterationsUsed),
	)
	return nil
}

func parseSizeMB(raw string) (int64, error) {
	size, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || size < 1 {
		return 0, services.Wrap(services.ErrValidation, "validate", "size",
			fmt.Sprintf("target size must be a whole number of megabytes >= 1, got %q", raw), nil)
	}
	return size, nil
}

// buildTarget layers explicitly set flags over the configured encoding defaults.
func buildTarget(cmd *cobra.Command, cfg *config.Config, flags runFlags, sizeMB int64) (convergence.Target, error) {
	tolerance := cfg.Encoding.TolerancePercent
	if cmd.Flags().Changed("tolerance") {
		tolerance = flags.tolerance
	}
	iterations := cfg.Encoding.MaxIterations
	if cmd.Flags().Changed("iterations") {
		iterations = flags.iterations
	}
	tier := transcode.Tier(cfg.Encoding.Quality)
	if flags.quality > 0 {
		tier = transcode.ClampTier(flags.quality)
	}
	return convergence.NewTarget(sizeMB, tolerance, iterations, tier)
}

// defaultOutputPath places the result next to the input as
// <stem>-squashed-<unix nanos><ext>.
func defaultOutputPath(input string, at time.Time) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	name := fmt.Sprintf("%s-squashed-%d%s", stem, at.UnixNano(), ext)
	return filepath.Join(filepath.Dir(input), name)
}

func checkInput(input string) error {
	info, err := os.Stat(input)
	if err != nil {
		return services.Wrap(services.ErrValidation, "validate", "input", "input video file does not exist", err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "validate", "input", "input path is a directory", nil)
	}
	return nil
}

// checkWritable verifies the nearest existing ancestor of each directory the
// run writes to, since promotion creates missing output directories.
func checkWritable(output, tempDir string) error {
	dirs := []string{filepath.Dir(output)}
	if tempDir != "" {
		dirs = append(dirs, tempDir)
	}
	for _, dir := range dirs {
		existing := nearestExisting(dir)
		if err := deps.CheckWritable(existing); err != nil {
			return services.Wrap(services.ErrValidation, "validate", "output", "cannot write to "+dir, err)
		}
	}
	return nil
}

func nearestExisting(dir string) string {
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
