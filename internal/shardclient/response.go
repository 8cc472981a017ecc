package shardclient

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a 200 response that does not carry a usable header line.
var ErrMalformed = errors.New("malformed shard response")

// Shard is a parsed 200 body.
type Shard struct {
	Name    string
	Payload []byte
}

// ParseShard splits body at its first newline into the log name and payload.
// Names that could escape the replica directory are rejected.
func ParseShard(body []byte) (Shard, error) {
	idx := bytes.IndexByte(body, '\n')
	if idx < 0 {
		return Shard{}, fmt.Errorf("%w: no header line", ErrMalformed)
	}
	name := string(body[:idx])
	if err := validateName(name); err != nil {
		return Shard{}, err
	}
	return Shard{Name: name, Payload: body[idx+1:]}, nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".":
		return fmt.Errorf("%w: empty log name", ErrMalformed)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: log name %q contains a path separator", ErrMalformed, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: log name %q contains ..", ErrMalformed, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: log name contains NUL", ErrMalformed)
	}
	return nil
}
