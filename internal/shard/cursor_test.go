package shard_test

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logshard/internal/shard"
	"logshard/internal/testsupport"
)

func fixedClock(ts *time.Time) func() time.Time {
	return func() time.Time { return *ts }
}

func TestCursorWorkedExample(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	logPath := filepath.Join(dir, "2024-01-01.log")
	testsupport.AppendString(t, logPath, "a\nb\nc\n")

	cursor := shard.NewCursor(shard.Options{LogDir: dir, Now: fixedClock(&now)})
	cursor.Refresh()

	first, err := cursor.Read()
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if first.Name != "2024-01-01.log" || string(first.Payload) != "a\nb\nc\n" {
		t.Fatalf("unexpected first shard: %q %q", first.Name, first.Payload)
	}
	if first.Start != 0 || first.End != 6 || first.Offset != 6 {
		t.Fatalf("unexpected offsets: %+v", first)
	}

	second, err := cursor.Read()
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !second.Empty() {
		t.Fatalf("expected empty shard, got %q", second.Payload)
	}

	testsupport.AppendString(t, logPath, "d")
	third, err := cursor.Read()
	if err != nil {
		t.Fatalf("third read: %v", err)
	}
	if !third.Empty() || third.Pending != 1 || cursor.Offset() != 7 {
		t.Fatalf("expected held-back tail, got %+v offset=%d", third, cursor.Offset())
	}

	testsupport.AppendString(t, logPath, "\ne\n")
	fourth, err := cursor.Read()
	if err != nil {
		t.Fatalf("fourth read: %v", err)
	}
	if string(fourth.Payload) != "d\ne\n" {
		t.Fatalf("expected completed tail, got %q", fourth.Payload)
	}
	if fourth.Start != 6 || fourth.End != 10 || fourth.Pending != 0 {
		t.Fatalf("unexpected offsets: %+v", fourth)
	}
}

func TestCursorSplitsAtLastNewline(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	logPath := filepath.Join(dir, "2024-05-05.log")
	testsupport.AppendString(t, logPath, "one\ntwo\nthr")

	cursor := shard.NewCursor(shard.Options{LogDir: dir, Now: fixedClock(&now)})
	cursor.Refresh()

	got, err := cursor.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got.Payload) != "one\ntwo\n" || got.Pending != 3 {
		t.Fatalf("unexpected shard: %q pending=%d", got.Payload, got.Pending)
	}

	testsupport.AppendString(t, logPath, "ee\nfo")
	got, err = cursor.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got.Payload) != "three\n" || got.Pending != 2 {
		t.Fatalf("unexpected shard: %q pending=%d", got.Payload, got.Pending)
	}
	if got.Start != 8 || got.End != 14 {
		t.Fatalf("unexpected range: %d-%d", got.Start, got.End)
	}
}

func TestCursorNeverSplitsOrRepeatsLines(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	logPath := filepath.Join(dir, "2024-02-02.log")
	testsupport.AppendString(t, logPath, "")

	cursor := shard.NewCursor(shard.Options{LogDir: dir, BlockSize: 16, Now: fixedClock(&now)})
	cursor.Refresh()

	rng := rand.New(rand.NewSource(7))
	var written, shipped bytes.Buffer
	for i := 0; i < 400; i++ {
		if rng.Intn(3) > 0 {
			chunk := randomChunk(rng)
			written.WriteString(chunk)
			testsupport.AppendString(t, logPath, chunk)
		}
		got, err := cursor.Read()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if got.Empty() {
			continue
		}
		if got.Payload[len(got.Payload)-1] != '\n' {
			t.Fatalf("payload %q does not end on a line boundary", got.Payload)
		}
		if got.Start != int64(shipped.Len()) {
			t.Fatalf("payload starts at %d, expected %d", got.Start, shipped.Len())
		}
		shipped.Write(got.Payload)
	}

	if !bytes.HasPrefix(written.Bytes(), shipped.Bytes()) {
		t.Fatal("shipped bytes are not a prefix of the written log")
	}
	rest := written.Bytes()[shipped.Len():]
	if bytes.Count(rest, []byte("\n")) > 0 && cursor.Offset() == int64(written.Len()) {
		t.Fatalf("complete lines left unshipped after the cursor caught up: %q", rest)
	}
}

func randomChunk(rng *rand.Rand) string {
	var b strings.Builder
	for n := rng.Intn(24); n > 0; n-- {
		if rng.Intn(5) == 0 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(byte('a' + rng.Intn(26)))
		}
	}
	return b.String()
}

func TestCursorBoundsReadToBlockSize(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	logPath := filepath.Join(dir, "2024-03-03.log")
	testsupport.AppendString(t, logPath, "aaaa\nbbbb\ncccc\n")

	cursor := shard.NewCursor(shard.Options{LogDir: dir, BlockSize: 8, Now: fixedClock(&now)})
	cursor.Refresh()

	got, err := cursor.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got.Payload) != "aaaa\n" || cursor.Offset() != 8 || got.Pending != 3 {
		t.Fatalf("unexpected bounded read: %q offset=%d pending=%d", got.Payload, cursor.Offset(), got.Pending)
	}
}

func TestCursorStartOffsetAppliesToFirstFileOnly(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	testsupport.AppendString(t, filepath.Join(dir, "2024-01-01.log"), "old\nnew\n")
	testsupport.AppendString(t, filepath.Join(dir, "2024-01-02.log"), "next\n")

	cursor := shard.NewCursor(shard.Options{LogDir: dir, StartOffset: 4, Now: fixedClock(&now)})
	change := cursor.Refresh()
	if !change.First || cursor.Offset() != 4 {
		t.Fatalf("expected seeded offset, got change=%+v offset=%d", change, cursor.Offset())
	}

	got, err := cursor.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got.Payload) != "new\n" {
		t.Fatalf("unexpected payload: %q", got.Payload)
	}

	now = now.Add(2 * time.Hour)
	change = cursor.Refresh()
	if !change.Changed || change.First || cursor.Offset() != 0 {
		t.Fatalf("expected reset on rollover, got change=%+v offset=%d", change, cursor.Offset())
	}
	got, err = cursor.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != "2024-01-02.log" || string(got.Payload) != "next\n" {
		t.Fatalf("unexpected payload after rollover: %q %q", got.Name, got.Payload)
	}
}

func TestCursorRolloverDropsTail(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	testsupport.AppendString(t, filepath.Join(dir, "2024-01-01.log"), "partial")

	cursor := shard.NewCursor(shard.Options{LogDir: dir, Now: fixedClock(&now)})
	cursor.Refresh()
	if _, err := cursor.Read(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if cursor.Pending() != len("partial") {
		t.Fatalf("expected tail to be held, pending=%d", cursor.Pending())
	}

	now = now.Add(2 * time.Minute)
	cursor.Refresh()
	if cursor.Pending() != 0 || cursor.Offset() != 0 {
		t.Fatalf("expected cleared state, pending=%d offset=%d", cursor.Pending(), cursor.Offset())
	}
}

func TestCursorMissingFile(t *testing.T) {
	cursor := shard.NewCursor(shard.Options{LogDir: t.TempDir()})
	if _, err := cursor.Read(); !errors.Is(err, shard.ErrNoActiveLog) {
		t.Fatalf("expected ErrNoActiveLog before refresh, got %v", err)
	}

	cursor.Refresh()
	_, err := cursor.Read()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if cursor.Offset() != 0 {
		t.Fatalf("offset moved on failed read: %d", cursor.Offset())
	}
}
