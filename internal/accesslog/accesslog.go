// Package accesslog writes the server's daily request log.
//
// Each handled request produces one line:
//
//	<ip> - - [dd/Mon/yyyy HH:MM:SS] "<METHOD> <path> <proto>" <status> <message>
package accesslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"logshard/internal/logging"
	"logshard/internal/rollover"
)

const timestampLayout = "02/Jan/2006 15:04:05"

// Entry is one request as it appears in the access log.
type Entry struct {
	ClientIP string
	Time     time.Time
	Method   string
	Path     string
	Proto    string
	Status   int
	Message  string
}

// Format renders the entry as a single line including the trailing newline.
func (e Entry) Format() string {
	return fmt.Sprintf("%s - - [%s] %q %d %s\n",
		e.ClientIP,
		e.Time.UTC().Format(timestampLayout),
		e.Method+" "+e.Path+" "+e.Proto,
		e.Status,
		e.Message,
	)
}

// Options configures a Log.
type Options struct {
	Dir           string
	RetentionDays int
	Now           func() time.Time
	Logger        *slog.Logger
}

// Log appends entries to today's access log, swapping files at UTC
// midnight.
type Log struct {
	tracker       *rollover.Tracker
	dir           string
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger

	mu     sync.Mutex
	handle *os.File
}

// New constructs a Log. Call Refresh before the first Write.
func New(opts Options) *Log {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Log{
		tracker:       rollover.NewTracker(opts.Dir, rollover.AccessLogSuffix, now),
		dir:           opts.Dir,
		retentionDays: opts.RetentionDays,
		now:           now,
		logger:        logger,
	}
}

// Refresh opens today's access log if the day changed since the last call.
// An error leaves the log without a handle; callers treat it as fatal.
func (l *Log) Refresh() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	change := l.tracker.Refresh()
	if !change.Changed && l.handle != nil {
		return nil
	}
	if l.handle != nil {
		if err := l.handle.Close(); err != nil {
			logging.WarnWithContext(l.logger, "close access log failed", "access_log_close_failed",
				logging.String(logging.FieldLogPath, change.Previous),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check disk health for the access log directory"),
				logging.String(logging.FieldImpact, "previous day's access log may be incomplete"),
			)
		}
		l.handle = nil
	}

	handle, err := os.OpenFile(change.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open access log %s: %w", change.Path, err)
	}
	l.handle = handle
	l.logger.Info("access log opened",
		logging.String(logging.FieldEventType, "access_log_opened"),
		logging.String(logging.FieldLogPath, change.Path),
	)

	logging.CleanupOldLogs(l.logger, l.now(), l.retentionDays, logging.RetentionTarget{
		Dir:     l.dir,
		Pattern: "*" + rollover.AccessLogSuffix,
		Exclude: []string{change.Path},
	})
	return nil
}

// Path returns the access log currently open, or "" when none is.
func (l *Log) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == nil {
		return ""
	}
	return l.handle.Name()
}

// Write appends one entry.
func (l *Log) Write(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == nil {
		return fmt.Errorf("access log not open")
	}
	_, err := io.WriteString(l.handle, entry.Format())
	return err
}

// Close releases the current handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == nil {
		return nil
	}
	err := l.handle.Close()
	l.handle = nil
	return err
}
