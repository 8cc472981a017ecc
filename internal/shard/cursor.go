package shard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"logshard/internal/rollover"
)

// BlockSize bounds a single read from the log file.
const BlockSize = 512 * 1024

// ErrNoActiveLog is returned by Read before any log path has been resolved.
var ErrNoActiveLog = errors.New("no active log file")

// Shard is one line-aligned slice of the active log.
type Shard struct {
	// Name is the base name of the log file, sent as the response header line.
	Name string
	Path string
	// Payload is empty when there is nothing complete to ship.
	Payload []byte
	// Start and End are file offsets of the payload's first byte and one
	// past its last byte.
	Start int64
	End   int64
	// Offset is the cursor position after the read.
	Offset int64
	// Pending is the number of held-back bytes after the read.
	Pending int
}

// Empty reports whether the shard carries no complete lines.
func (s Shard) Empty() bool {
	return len(s.Payload) == 0
}

// Options configures a Cursor.
type Options struct {
	LogDir      string
	StartOffset int64
	BlockSize   int
	Now         func() time.Time
}

// Cursor tracks what has been shipped from the daily log files.
type Cursor struct {
	tracker     *rollover.Tracker
	startOffset int64
	blockSize   int

	offset int64
	tail   []byte
}

// NewCursor constructs a cursor for the daily logs in opts.LogDir.
func NewCursor(opts Options) *Cursor {
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = BlockSize
	}
	return &Cursor{
		tracker:     rollover.NewTracker(opts.LogDir, rollover.LogSuffix, opts.Now),
		startOffset: opts.StartOffset,
		blockSize:   blockSize,
	}
}

// Refresh resolves today's log path. When the path changes the offset
// resets to zero and the tail is dropped, except on the first resolution,
// which seeds the offset from the configured start offset.
func (c *Cursor) Refresh() rollover.Change {
	change := c.tracker.Refresh()
	if change.Changed {
		if change.First {
			c.offset = c.startOffset
		} else {
			c.offset = 0
		}
		c.tail = nil
	}
	return change
}

// Path returns the active log path.
func (c *Cursor) Path() string {
	return c.tracker.Path()
}

// Offset returns the number of bytes of the active log already consumed.
func (c *Cursor) Offset() int64 {
	return c.offset
}

// Pending returns the number of held-back bytes.
func (c *Cursor) Pending() int {
	return len(c.tail)
}

// Read consumes up to one block from the active log and returns the
// complete lines available. An error means the file could not be opened or
// read and the cursor is unchanged.
func (c *Cursor) Read() (Shard, error) {
	path := c.tracker.Path()
	if path == "" {
		return Shard{}, ErrNoActiveLog
	}
	shard := Shard{Name: filepath.Base(path), Path: path, Offset: c.offset, Pending: len(c.tail)}

	data, err := c.readBlock(path)
	if err != nil {
		return shard, err
	}

	readAt := c.offset
	c.offset += int64(len(data))
	shard.Offset = c.offset

	idx := bytes.LastIndexByte(data, '\n')
	if idx < 0 {
		// No line completes in this block: hold it all back.
		c.tail = append(c.tail, data...)
		shard.Pending = len(c.tail)
		return shard, nil
	}

	complete, rest := data[:idx+1], data[idx+1:]
	shard.Start = readAt - int64(len(c.tail))
	shard.End = readAt + int64(len(complete))
	shard.Payload = make([]byte, 0, len(c.tail)+len(complete))
	shard.Payload = append(shard.Payload, c.tail...)
	shard.Payload = append(shard.Payload, complete...)

	c.tail = nil
	if len(rest) > 0 {
		c.tail = append([]byte(nil), rest...)
	}
	shard.Pending = len(c.tail)
	return shard, nil
}

func (c *Cursor) readBlock(path string) ([]byte, error) {
	file, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer file.Close()

	if _, err := file.Seek(c.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek log %s: %w", path, err)
	}

	buf := make([]byte, c.blockSize)
	n, err := io.ReadFull(file, buf)
	if err != nil && n == 0 && !isShortRead(err) {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return buf[:n], nil
}

// isShortRead reports errors that only mean fewer bytes were immediately
// available than a full block.
func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, unix.EAGAIN)
}
