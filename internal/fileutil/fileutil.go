package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// AppendFile appends data to path, creating the file when it does not exist.
// created reports whether the file was absent before the call.
func AppendFile(path string, data []byte) (created bool, err error) {
	return AppendFileMode(path, data, 0o644)
}

// AppendFileMode is AppendFile with an explicit mode for newly created files.
func AppendFileMode(path string, data []byte, mode os.FileMode) (created bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if !errors.Is(statErr, fs.ErrNotExist) {
			return false, fmt.Errorf("stat %s: %w", path, statErr)
		}
		created = true
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = out.Close()
	}()

	n, err := out.Write(data)
	if err != nil {
		return created, err
	}
	if n != len(data) {
		return created, fmt.Errorf("short append to %s: wrote %d of %d bytes", path, n, len(data))
	}
	return created, out.Close()
}
