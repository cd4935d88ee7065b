package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Filesystem is the local-I/O collaborator the executor depends on. A
// real implementation wraps the os package; tests substitute an
// in-memory fake.
type Filesystem interface {
	Read(absPath string) (io.ReadCloser, error)
	WriteAtomic(absPath string, content io.Reader) error
	Delete(absPath string) error
	Mkdirs(absPath string) error
	Stat(absPath string) (size int64, mtime time.Time, err error)
	SetModTime(absPath string, mtime time.Time) error
}

// OSFilesystem is the real Filesystem, backed by the host filesystem.
type OSFilesystem struct{}

func (OSFilesystem) Read(absPath string) (io.ReadCloser, error) {
	return os.Open(absPath)
}

// WriteAtomic writes content to a temp file in the same directory as
// absPath and renames it into place, so a crash mid-write never leaves a
// partial file observable at absPath.
func (OSFilesystem) WriteAtomic(absPath string, content io.Reader) error {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("executor: mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".vaultsync-*.tmp")
	if err != nil {
		return fmt.Errorf("executor: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("executor: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("executor: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("executor: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("executor: rename temp file into place: %w", err)
	}
	return nil
}

func (OSFilesystem) Delete(absPath string) error {
	err := os.Remove(absPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (OSFilesystem) Mkdirs(absPath string) error {
	return os.MkdirAll(absPath, 0o755)
}

func (OSFilesystem) Stat(absPath string) (int64, time.Time, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, time.Time{}, err
	}
	return info.Size(), info.ModTime(), nil
}

func (OSFilesystem) SetModTime(absPath string, mtime time.Time) error {
	return os.Chtimes(absPath, mtime, mtime)
}
