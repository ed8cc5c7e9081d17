package ports

import "io/fs"

// FileSystem is the subset of filesystem calls the crash directory needs.
// Rename must be atomic for a single file on one volume.
type FileSystem interface {
	ReadDir(dir string) ([]fs.DirEntry, error)
	Rename(oldPath, newPath string) error
	Remove(path string) error

	// CreateFile creates path, truncating any existing file.
	CreateFile(path string) error
}
