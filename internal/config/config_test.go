package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"logshard/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LOGSHARD_WHITELIST", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "logshard", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}
	if !filepath.IsAbs(cfg.Server.LogDir) || !filepath.IsAbs(cfg.Server.AccessLogDir) || !filepath.IsAbs(cfg.Client.LocalDir) {
		t.Fatalf("expected absolute directories, got %+v", cfg)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Server.Whitelist != "" {
		t.Fatalf("expected no whitelist by default, got %q", cfg.Server.Whitelist)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.RequestTimeout() != 5*time.Second {
		t.Fatalf("unexpected request timeout: %s", cfg.RequestTimeout())
	}
	if cfg.Logging.Format != "auto" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "logshard.toml")

	type payload struct {
		Server struct {
			Port        int    `toml:"port"`
			LogDir      string `toml:"log_dir"`
			StartOffset int64  `toml:"start_offset"`
		} `toml:"server"`
		Client struct {
			Host     string `toml:"host"`
			Port     int    `toml:"port"`
			Interval int    `toml:"interval"`
		} `toml:"client"`
	}
	custom := payload{}
	custom.Server.Port = 9000
	custom.Server.LogDir = filepath.Join(tempDir, "logs")
	custom.Server.StartOffset = 128
	custom.Client.Host = "collector.local"
	custom.Client.Port = 9000
	custom.Client.Interval = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Server.Port != 9000 || cfg.Server.StartOffset != 128 {
		t.Fatalf("unexpected server values: %+v", cfg.Server)
	}
	if cfg.Server.LogDir != filepath.Join(tempDir, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Server.LogDir)
	}
	if cfg.ShardURL() != "http://collector.local:9000/shard" {
		t.Fatalf("unexpected shard url: %q", cfg.ShardURL())
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "logshard.toml")
	if err := os.WriteFile(configPath, []byte("[server]\nprot = 80\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestEnvVarFillsWhitelist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	whitelist := filepath.Join(t.TempDir(), "allowed.txt")
	t.Setenv("LOGSHARD_WHITELIST", whitelist)
	t.Setenv("LOGSHARD_COMMAND", "gzip %s")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Whitelist != whitelist {
		t.Fatalf("expected whitelist from env, got %q", cfg.Server.Whitelist)
	}
	if cfg.Client.Command != "gzip %s" {
		t.Fatalf("expected command from env, got %q", cfg.Client.Command)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "access_log_dir") {
		t.Fatalf("sample config missing access_log_dir: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Client.Interval != 30 {
		t.Fatalf("unexpected sample values: %+v", cfg)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"port zero", func(c *config.Config) { c.Server.Port = 0 }},
		{"port too large", func(c *config.Config) { c.Server.Port = 70000 }},
		{"negative offset", func(c *config.Config) { c.Server.StartOffset = -1 }},
		{"negative interval", func(c *config.Config) { c.Client.Interval = -5 }},
		{"negative timeout", func(c *config.Config) { c.Client.Timeout = -1 }},
		{"bad client port", func(c *config.Config) { c.Client.Port = 99999 }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "chatty" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateClientRequiresHostAndPort(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateClient(); err == nil {
		t.Fatal("expected error without host")
	}
	cfg.Client.Host = "127.0.0.1"
	if err := cfg.ValidateClient(); err == nil {
		t.Fatal("expected error without port")
	}
	cfg.Client.Port = 8080
	if err := cfg.ValidateClient(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LogDir = t.TempDir()
	cfg.Logging.Format = " JSON "
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	first := cfg
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if first != cfg {
		t.Fatalf("second normalize changed config: %+v vs %+v", first, cfg)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}
