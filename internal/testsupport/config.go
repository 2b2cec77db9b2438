package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"squash/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// History stays enabled and lands inside the state dir; metrics stay off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.History.Path = filepath.Join(cfgVal.Paths.StateDir, "history.db")

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithTools points the ffmpeg/ffprobe commands at the given paths.
func WithTools(ffmpeg, ffprobe string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.FFmpeg = ffmpeg
		b.cfg.Tools.FFprobe = ffprobe
	}
}

// WithTempDir gives the run a dedicated temp dir under the test base dir.
func WithTempDir() ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "tmp")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir temp dir: %v", err)
		}
		b.cfg.Paths.TempDir = dir
	}
}

// WithMetricsTextfile enables the Prometheus textfile under the base dir.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Textfile = filepath.Join(b.baseDir, "metrics", "squash.prom")
	}
}

// WithoutHistory disables the SQLite run history.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithEncoding overrides the tolerance and iteration budget.
func WithEncoding(tolerancePercent float64, maxIterations int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.TolerancePercent = tolerancePercent
		b.cfg.Encoding.MaxIterations = maxIterations
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
