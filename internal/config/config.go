package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains shard server settings.
type Server struct {
	Port         int    `toml:"port"`
	Bind         string `toml:"bind"`
	LogDir       string `toml:"log_dir"`
	AccessLogDir string `toml:"access_log_dir"`
	// StartOffset seeds the read offset of the first log file served.
	// Later files always start at zero.
	StartOffset            int64  `toml:"start_offset"`
	Whitelist              string `toml:"whitelist"`
	Compress               bool   `toml:"compress"`
	LedgerPath             string `toml:"ledger_path"`
	AccessLogRetentionDays int    `toml:"access_log_retention_days"`
}

// Client contains shard client settings.
type Client struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Command  string `toml:"command"`
	ErrorLog string `toml:"error_log"`
	Interval int    `toml:"interval"`
	Timeout  int    `toml:"timeout"`
	LocalDir string `toml:"local_dir"`
}

// Logging contains configuration for operational log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for logshard.
type Config struct {
	Server  Server  `toml:"server"`
	Client  Client  `toml:"client"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/logshard/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("logshard.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureServerDirectories creates the access log directory. The data log
// directory belongs to the external producer and is never created here.
func (c *Config) EnsureServerDirectories() error {
	if err := os.MkdirAll(c.Server.AccessLogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Server.AccessLogDir, err)
	}
	return nil
}

// EnsureClientDirectories creates the local replica directory.
func (c *Config) EnsureClientDirectories() error {
	if err := os.MkdirAll(c.Client.LocalDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Client.LocalDir, err)
	}
	return nil
}

// PollInterval returns the client poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Client.Interval) * time.Second
}

// RequestTimeout returns the client request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Client.Timeout) * time.Second
}

// ServerAddress returns the listen address for the shard server.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// ShardURL returns the shard endpoint polled by the client.
func (c *Config) ShardURL() string {
	return fmt.Sprintf("http://%s:%d/shard", c.Client.Host, c.Client.Port)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
