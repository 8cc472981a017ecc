package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendFileCreatesThenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replica.log")

	created, err := AppendFile(path, []byte("a\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected first append to create the file")
	}

	created, err = AppendFile(path, []byte("b\n"))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("expected second append to reuse the file")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a\nb\n" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestAppendFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replica.log")

	if _, err := AppendFileMode(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Fatalf("expected private permissions, got %o", info.Mode().Perm())
	}
}

func TestAppendFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "replica.log")

	if _, err := AppendFile(path, []byte("x")); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}
