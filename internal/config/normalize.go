package config

import (
	"fmt"
	"os"
	"strings"
)

// Normalize expands paths, trims strings, applies environment overrides,
// and fills zero values with defaults. Load calls it; the cmd package calls
// it again after layering flags over the file values.
func (c *Config) Normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	if err := c.normalizeClient(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() error {
	var err error
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if strings.TrimSpace(c.Server.LogDir) == "" {
		c.Server.LogDir = defaultLogDir
	}
	if c.Server.LogDir, err = expandPath(c.Server.LogDir); err != nil {
		return fmt.Errorf("server.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Server.AccessLogDir) == "" {
		c.Server.AccessLogDir = defaultAccessLogDir
	}
	if c.Server.AccessLogDir, err = expandPath(c.Server.AccessLogDir); err != nil {
		return fmt.Errorf("server.access_log_dir: %w", err)
	}
	c.Server.Whitelist = strings.TrimSpace(c.Server.Whitelist)
	if c.Server.Whitelist == "" {
		if value, ok := os.LookupEnv("LOGSHARD_WHITELIST"); ok {
			c.Server.Whitelist = strings.TrimSpace(value)
		}
	}
	if c.Server.Whitelist, err = expandPath(c.Server.Whitelist); err != nil {
		return fmt.Errorf("server.whitelist: %w", err)
	}
	if c.Server.LedgerPath, err = expandPath(strings.TrimSpace(c.Server.LedgerPath)); err != nil {
		return fmt.Errorf("server.ledger_path: %w", err)
	}
	if c.Server.AccessLogRetentionDays < 0 {
		c.Server.AccessLogRetentionDays = 0
	}
	return nil
}

func (c *Config) normalizeClient() error {
	var err error
	c.Client.Host = strings.TrimSpace(c.Client.Host)
	c.Client.Command = strings.TrimSpace(c.Client.Command)
	if c.Client.Command == "" {
		if value, ok := os.LookupEnv("LOGSHARD_COMMAND"); ok {
			c.Client.Command = strings.TrimSpace(value)
		}
	}
	if c.Client.ErrorLog, err = expandPath(strings.TrimSpace(c.Client.ErrorLog)); err != nil {
		return fmt.Errorf("client.error_log: %w", err)
	}
	if strings.TrimSpace(c.Client.LocalDir) == "" {
		c.Client.LocalDir = defaultClientLocalDir
	}
	if c.Client.LocalDir, err = expandPath(c.Client.LocalDir); err != nil {
		return fmt.Errorf("client.local_dir: %w", err)
	}
	if c.Client.Interval == 0 {
		c.Client.Interval = defaultClientInterval
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = defaultClientTimeout
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
