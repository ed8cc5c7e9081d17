package crashdir

import (
	"path/filepath"
	"sort"

	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/crashfile"
)

// Predicate selects directory entries by bare file name. A nil Predicate selects all.
type Predicate func(name string) bool

// All selects every file.
var All Predicate

// WithRoles selects files whose name encodes one of roles.
func WithRoles(roles ...crashfile.Role) Predicate {
	return func(name string) bool {
		r := crashfile.RoleOf(name)
		for _, want := range roles {
			if r == want {
				return true
			}
		}
		return false
	}
}

// Temporary selects scratch files.
func Temporary(name string) bool { return crashfile.IsTemporary(name) }

// List returns a snapshot of the regular files matching pred, most recently
// modified first. A missing or unreadable directory yields an empty result.
func (d *Directory) List(pred Predicate) []domain.CrashFile {
	ents, err := d.fs.ReadDir(d.path)
	if err != nil {
		d.logger.Warn("crash dir unreadable", ports.Path(d.path), ports.Err(err))
		return nil
	}

	files := make([]domain.CrashFile, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if pred != nil && !pred(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, domain.NewCrashFile(filepath.Join(d.path, name), info.ModTime(), info.Size()))
	}

	sort.Slice(files, func(i, j int) bool { return newestFirst(files[i], files[j]) })
	return files
}

// newestFirst orders by modification time descending, then by path.
func newestFirst(a, b domain.CrashFile) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	return a.Path < b.Path
}

// FindByLocalID returns the most recent dmp, forced or skipped file whose base id
// ends with localID. Uploaded files and sidecars never match.
func (d *Directory) FindByLocalID(localID string) (domain.CrashFile, bool) {
	if localID == "" {
		return domain.CrashFile{}, false
	}
	pending := d.List(WithRoles(crashfile.RoleNotYetUploaded, crashfile.RoleForcedRetry, crashfile.RoleSkipped))
	for _, f := range pending {
		if f.HasLocalID(localID) {
			return f, true
		}
	}
	return domain.CrashFile{}, false
}

// UploadCandidates returns the dmp files with fewer than maxTries recorded attempts,
// most recent first. Forced files are not included; their caller uploads them directly.
func (d *Directory) UploadCandidates(maxTries int) []domain.CrashFile {
	dumps := d.List(WithRoles(crashfile.RoleNotYetUploaded))
	out := dumps[:0]
	for _, f := range dumps {
		if f.AttemptCount() < maxTries {
			out = append(out, f)
		}
	}
	return out
}
