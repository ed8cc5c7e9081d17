package fs

import (
	iofs "io/fs"
	"os"
)

// OS implements ports.FileSystem on the host filesystem.
type OS struct{}

// NewOS returns the host filesystem.
func NewOS() OS { return OS{} }

// ReadDir lists dir.
func (OS) ReadDir(dir string) ([]iofs.DirEntry, error) { return os.ReadDir(dir) }

// Rename atomically moves oldPath to newPath, replacing an existing file.
func (OS) Rename(oldPath, newPath string) error { return os.Rename(oldPath, newPath) }

// Remove deletes path.
func (OS) Remove(path string) error { return os.Remove(path) }

// CreateFile creates path or truncates it.
func (OS) CreateFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}
