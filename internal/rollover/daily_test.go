package rollover_test

import (
	"path/filepath"
	"testing"
	"time"

	"logshard/internal/rollover"
)

func TestDailyPathUsesUTCDate(t *testing.T) {
	eastern := time.FixedZone("UTC-5", -5*60*60)
	// 2024-01-01 21:30 at UTC-5 is already 2024-01-02 in UTC.
	ts := time.Date(2024, 1, 1, 21, 30, 0, 0, eastern)

	got := rollover.DailyPath("/var/log/app", rollover.LogSuffix, ts)
	if want := filepath.Join("/var/log/app", "2024-01-02.log"); got != want {
		t.Fatalf("unexpected path: got %q want %q", got, want)
	}
	if name := rollover.DailyName(rollover.AccessLogSuffix, ts); name != "2024-01-02.access.log" {
		t.Fatalf("unexpected access log name: %q", name)
	}
}

func TestTrackerReportsFirstAndDayChanges(t *testing.T) {
	current := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	tracker := rollover.NewTracker("/logs", rollover.LogSuffix, func() time.Time { return current })

	if tracker.Path() != "" {
		t.Fatalf("expected empty path before refresh, got %q", tracker.Path())
	}

	first := tracker.Refresh()
	if !first.Changed || !first.First || first.Path != "/logs/2024-01-01.log" {
		t.Fatalf("unexpected first change: %+v", first)
	}

	current = current.Add(30 * time.Second)
	same := tracker.Refresh()
	if same.Changed || same.First {
		t.Fatalf("expected no change within the day: %+v", same)
	}

	current = current.Add(time.Minute)
	next := tracker.Refresh()
	if !next.Changed || next.First {
		t.Fatalf("expected non-first change at midnight: %+v", next)
	}
	if next.Previous != "/logs/2024-01-01.log" || next.Path != "/logs/2024-01-02.log" {
		t.Fatalf("unexpected rollover paths: %+v", next)
	}
	if tracker.Path() != next.Path {
		t.Fatalf("tracker path not updated: %q", tracker.Path())
	}
}
