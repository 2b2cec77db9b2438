package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"squash/internal/config"
	"squash/internal/logging"
)

const envFile = ".env"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := config.LoadEnv(envFile); err != nil {
			c.configErr = err
			return
		}
		cfg, path, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			if _, err := logging.ParseLevel(level); err != nil {
				c.configErr = err
				return
			}
			cfg.Logging.Level = level
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// logger opens the log file and, at debug level, mirrors records to stderr.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, func() error, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, closeFn, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := logging.ParseLevel(cfg.Logging.Level); level <= slog.LevelDebug {
		stderr, err := logging.NewHandler(logging.Options{Level: "debug", Writer: cmd.ErrOrStderr()})
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		logger = logging.TeeLogger(logger, stderr)
	}
	return logger, closeFn, nil
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
