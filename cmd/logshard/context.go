package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"logshard/internal/config"
	"logshard/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = level
			}
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// finalize re-applies normalization and validation after flags were layered
// over the loaded file.
func finalize(cfg *config.Config) error {
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("normalize config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config, outputs ...string) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// newClientLogger writes to errorLog when set. If the file cannot be opened
// a diagnostic goes to stderr and logging continues there.
func newClientLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, error) {
	if cfg.Client.ErrorLog == "" {
		return newLogger(cfg, "stderr")
	}
	logger, err := newLogger(cfg, cfg.Client.ErrorLog)
	if err == nil {
		return logger, nil
	}
	fmt.Fprintf(stderr, "logshard: cannot open error log %s: %v; logging to stderr\n", cfg.Client.ErrorLog, err)
	return newLogger(cfg, "stderr")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
