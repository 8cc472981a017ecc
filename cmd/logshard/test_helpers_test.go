package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	logDir     string
	accessDir  string
	localDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("LOGSHARD_WHITELIST", "")
	t.Setenv("LOGSHARD_COMMAND", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "logshard.toml"),
		logDir:     filepath.Join(base, "logs"),
		accessDir:  filepath.Join(base, "access"),
		localDir:   filepath.Join(base, "replica"),
	}
	for _, dir := range []string{env.logDir, env.accessDir, env.localDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	writeTestConfig(t, env, 8080)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv, port int) {
	t.Helper()
	content := fmt.Sprintf(`[server]
port = %d
bind = "127.0.0.1"
log_dir = %q
access_log_dir = %q

[client]
host = "127.0.0.1"
port = %d
local_dir = %q
interval = 1
timeout = 2

[logging]
format = "json"
level = "warn"
`, port, env.logDir, env.accessDir, port, env.localDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIContext(context.Background(), args, configPath)
}

func runCLIContext(ctx context.Context, args []string, configPath string) (string, string, error) {
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
