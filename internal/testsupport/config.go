package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"logshard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.Bind = "127.0.0.1"
	cfgVal.Server.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.AccessLogDir = filepath.Join(base, "access")
	cfgVal.Client.Host = "127.0.0.1"
	cfgVal.Client.Port = cfgVal.Server.Port
	cfgVal.Client.LocalDir = filepath.Join(base, "replica")
	cfgVal.Client.ErrorLog = filepath.Join(base, "client-error.log")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{cfgVal.Server.LogDir, cfgVal.Server.AccessLogDir, cfgVal.Client.LocalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithWhitelist writes the given entries to a whitelist file and points the
// server config at it.
func WithWhitelist(entries ...string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "whitelist.txt")
		WriteLines(b.t, path, entries...)
		b.cfg.Server.Whitelist = path
	}
}

// WithLedger enables the shard ledger inside the temp directory.
func WithLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.LedgerPath = filepath.Join(b.baseDir, "ledger.db")
	}
}

// WithCommand sets the client's new-file command template.
func WithCommand(command string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Client.Command = command
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Server.LogDir)
}
