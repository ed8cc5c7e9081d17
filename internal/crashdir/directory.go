// Package crashdir owns the crash directory: it lists crash files, picks upload
// candidates and moves files between upload states by renaming them.
//
// The directory itself is created by the embedding application. Nothing here
// takes locks; callers run at most one worker per directory.
package crashdir

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	fsAdapter "github.com/bft-labs/crashship/internal/adapters/fs"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/crashfile"
	"github.com/bft-labs/crashship/pkg/log"
)

// Directory is a crash directory on disk.
type Directory struct {
	path   string
	fs     ports.FileSystem
	logger ports.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithFileSystem replaces the host filesystem.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(d *Directory) {
		d.fs = fs
	}
}

// WithLogger sets the logger used for non-fatal failures.
// If not provided, a no-op logger is used.
func WithLogger(logger ports.Logger) Option {
	return func(d *Directory) {
		d.logger = logger
	}
}

// New returns the crash directory rooted at path.
func New(path string, opts ...Option) *Directory {
	d := &Directory{
		path:   path,
		fs:     fsAdapter.NewOS(),
		logger: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the crash directory path.
func (d *Directory) Path() string { return d.path }

// UploadLogPath returns the path of the reserved upload log.
func (d *Directory) UploadLogPath() string {
	return filepath.Join(d.path, crashfile.UploadLogName)
}

// CreateScratchFile creates (or truncates) a file called name in the crash
// directory for a writer that is about to produce a new report.
func (d *Directory) CreateScratchFile(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	p := filepath.Join(d.path, name)
	if err := d.fs.CreateFile(p); err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	return p, nil
}

// Publish moves a finished scratch file to its final name inside the directory.
func (d *Directory) Publish(scratchPath, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	p := filepath.Join(d.path, name)
	if err := d.fs.Rename(scratchPath, p); err != nil {
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	return p, nil
}

// NewDumpName returns a fresh "<prefix>-<hex>.dmp" name. Dots in prefix are
// replaced so they cannot shift the base id.
func NewDumpName(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	prefix = strings.ReplaceAll(prefix, ".", "-")
	if prefix == "" {
		return id + "." + crashfile.TagDump
	}
	return prefix + "-" + id + "." + crashfile.TagDump
}

func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errors.New("crashdir: empty file name")
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("crashdir: %q is not a bare file name", name)
	case crashfile.IsUploadLog(name):
		return fmt.Errorf("crashdir: %q is reserved", name)
	}
	return nil
}
