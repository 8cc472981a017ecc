package rollover

import (
	"path/filepath"
	"time"
)

const (
	// LogSuffix names the externally produced data logs.
	LogSuffix = ".log"
	// AccessLogSuffix names the server's own access logs.
	AccessLogSuffix = ".access.log"

	dateLayout = "2006-01-02"
)

// DailyName returns YYYY-MM-DD<suffix> for the UTC date of t.
func DailyName(suffix string, t time.Time) string {
	return t.UTC().Format(dateLayout) + suffix
}

// DailyPath joins dir with DailyName.
func DailyPath(dir, suffix string, t time.Time) string {
	return filepath.Join(dir, DailyName(suffix, t))
}

// Change describes the outcome of a Tracker refresh.
type Change struct {
	Path     string
	Previous string
	Changed  bool
	// First is true when the tracker had never resolved a path before.
	First bool
}

// Tracker follows the daily file for one directory and suffix.
type Tracker struct {
	dir    string
	suffix string
	now    func() time.Time
	path   string
}

// NewTracker builds a tracker. A nil now uses time.Now.
func NewTracker(dir, suffix string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{dir: dir, suffix: suffix, now: now}
}

// Refresh recomputes today's path and reports whether it changed.
func (t *Tracker) Refresh() Change {
	path := DailyPath(t.dir, t.suffix, t.now())
	change := Change{Path: path, Previous: t.path}
	if path != t.path {
		change.Changed = true
		change.First = t.path == ""
		t.path = path
	}
	return change
}

// Path returns the most recently resolved path, or "" before the first Refresh.
func (t *Tracker) Path() string {
	return t.path
}
