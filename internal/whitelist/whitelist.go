package whitelist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
	"sync"
)

// ErrUnreadable is returned by File.Refresh when the whitelist file cannot be
// opened or read.
var ErrUnreadable = errors.New("whitelist unreadable")

// Source decides which client addresses may fetch shards.
type Source interface {
	// Refresh reloads the allow-list from its backing store.
	Refresh() error
	// Allowed reports whether ip may be served.
	Allowed(ip string) bool
}

// Set is an immutable allow-list.
type Set struct {
	entries map[string]struct{}
	order   []string
}

// Parse reads one address per line. Surrounding whitespace is trimmed and
// blank or # comment lines are skipped.
func Parse(r io.Reader) (Set, error) {
	set := Set{entries: make(map[string]struct{})}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := set.entries[line]; dup {
			continue
		}
		set.entries[line] = struct{}{}
		set.order = append(set.order, line)
	}
	if err := scanner.Err(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// Len returns the number of distinct entries.
func (s Set) Len() int {
	return len(s.order)
}

// Entries returns the entries in file order.
func (s Set) Entries() []string {
	return append([]string(nil), s.order...)
}

// Allowed reports whether ip is listed, or whether the set is empty.
func (s Set) Allowed(ip string) bool {
	if len(s.entries) == 0 {
		return true
	}
	_, ok := s.entries[ip]
	return ok
}

// Entry describes one whitelist line for diagnostics.
type Entry struct {
	Value string
	Valid bool
}

// Check reports whether each entry parses as an IP address. Invalid entries
// still take part in matching but can never equal a client address.
func (s Set) Check() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, value := range s.order {
		_, err := netip.ParseAddr(value)
		out = append(out, Entry{Value: value, Valid: err == nil})
	}
	return out
}

// File re-reads a whitelist file on every Refresh.
type File struct {
	path string

	mu  sync.RWMutex
	set Set
}

// NewFile returns a source backed by path. Nothing is read until Refresh.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Refresh loads the file and swaps in the new set after a complete read. On
// failure the previous set is retained and the error wraps ErrUnreadable.
func (f *File) Refresh() error {
	set, err := Load(f.path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.set = set
	f.mu.Unlock()
	return nil
}

// Allowed consults the most recently loaded set.
func (f *File) Allowed(ip string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.set.Allowed(ip)
}

// Load reads and parses the whitelist at path.
func Load(path string) (Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer file.Close()

	set, err := Parse(file)
	if err != nil {
		return Set{}, fmt.Errorf("%w: read %s: %w", ErrUnreadable, path, err)
	}
	return set, nil
}

// AllowAll admits every client and never touches the filesystem.
type AllowAll struct{}

// Refresh is a no-op.
func (AllowAll) Refresh() error { return nil }

// Allowed always returns true.
func (AllowAll) Allowed(string) bool { return true }
