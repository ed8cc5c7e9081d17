package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/bft-labs/crashship/pkg/crashfile"
)

// CrashFile is a snapshot of one file in the crash directory.
// Role and attempt count come from the filename alone.
type CrashFile struct {
	Path string

	// BaseID groups a dump with its sidecars; it survives every rename.
	BaseID string

	Role crashfile.Role

	// Attempts is meaningful only when HasAttempts is set; a missing counter
	// means no upload was attempted yet.
	Attempts    int
	HasAttempts bool

	ModTime time.Time
	Size    int64
}

// NewCrashFile decodes path into a CrashFile. Files outside the naming grammar get
// RoleUnknown and no attempt count.
func NewCrashFile(path string, modTime time.Time, size int64) CrashFile {
	f := CrashFile{
		Path:    path,
		BaseID:  crashfile.BaseID(path),
		ModTime: modTime,
		Size:    size,
	}
	if n, ok := crashfile.Parse(path); ok {
		f.Role = n.Role
		f.Attempts = n.Attempts
		f.HasAttempts = n.HasAttempts
	}
	return f
}

// Name returns the final path element.
func (f CrashFile) Name() string {
	return filepath.Base(f.Path)
}

// AttemptCount returns the number of recorded upload attempts, zero when none.
func (f CrashFile) AttemptCount() int {
	if !f.HasAttempts {
		return 0
	}
	return f.Attempts
}

// HasLocalID reports whether the base id ends with the caller-supplied local id.
func (f CrashFile) HasLocalID(localID string) bool {
	return localID != "" && strings.HasSuffix(f.BaseID, localID)
}

// LocalID returns the short id shown to users: the base id after its last dash.
func (f CrashFile) LocalID() string {
	if i := strings.LastIndexByte(f.BaseID, '-'); i >= 0 && i < len(f.BaseID)-1 {
		return f.BaseID[i+1:]
	}
	return f.BaseID
}
