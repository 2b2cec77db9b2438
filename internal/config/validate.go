package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEncoding() error {
	e := c.Encoding
	if math.IsNaN(e.TolerancePercent) || e.TolerancePercent <= 0 || e.TolerancePercent > maxTolerancePercent {
		return fmt.Errorf("encoding.tolerance_percent must be in (0, %.0f]; got %v", maxTolerancePercent, e.TolerancePercent)
	}
	if e.MaxIterations < 1 {
		return fmt.Errorf("encoding.max_iterations must be at least 1; got %d", e.MaxIterations)
	}
	if e.Quality < minQuality || e.Quality > maxQuality {
		return fmt.Errorf("encoding.quality must be between %d and %d; got %d", minQuality, maxQuality, e.Quality)
	}
	if e.AudioBitrateKbps < minAudioBitrateKbps {
		return fmt.Errorf("encoding.audio_bitrate_kbps must be at least %d; got %d", minAudioBitrateKbps, e.AudioBitrateKbps)
	}
	if e.ProgressIntervalSeconds < 0 {
		return errors.New("encoding.progress_interval_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Textfile != "" && filepath.Ext(c.Metrics.Textfile) != ".prom" {
		return fmt.Errorf("metrics.textfile must end in .prom for the textfile collector; got %q", c.Metrics.Textfile)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json; got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", c.Logging.Level)
	}
	return nil
}
