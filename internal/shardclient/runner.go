package shardclient

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"

	"logshard/internal/logging"
)

// PathPlaceholder is replaced with the replica path in command templates.
const PathPlaceholder = "%s"

// ExpandCommand substitutes path for every placeholder in template.
func ExpandCommand(template, path string) string {
	return strings.ReplaceAll(template, PathPlaceholder, path)
}

// Runner starts the new-file command.
type Runner interface {
	Start(command string) error
}

// ShellRunner runs commands with sh -c in a new session and does not wait
// for them.
type ShellRunner struct {
	Logger *slog.Logger
}

// Start launches command and returns once the process has started.
func (r ShellRunner) Start(command string) error {
	proc := exec.Command("sh", "-c", command)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	pid := proc.Process.Pid
	go func() {
		err := proc.Wait()
		logger.Debug("new-file command exited",
			logging.Int("pid", pid),
			logging.String("command", command),
			logging.Bool("success", err == nil),
		)
	}()
	return nil
}
