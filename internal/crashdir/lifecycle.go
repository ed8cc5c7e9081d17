package crashdir

import (
	"fmt"

	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/crashfile"
)

// IncrementAttempt records one more failed upload attempt by renaming f.
// It returns the new path.
//
// If another file already has the target name the rename replaces it; there is no
// collision handling beyond last rename wins.
func (d *Directory) IncrementAttempt(f domain.CrashFile) (string, error) {
	next := crashfile.WithIncrementedAttempt(f.Path)
	if err := d.fs.Rename(f.Path, next); err != nil {
		d.logger.Warn("increment attempt: rename failed", ports.Path(f.Path), ports.Err(err))
		return "", fmt.Errorf("increment attempt %s: %w", f.Name(), err)
	}
	return next, nil
}

// RequestForcedUpload retags f as forced and clears its attempt history.
// Uploaded reports are refused with domain.ErrAlreadyUploaded.
func (d *Directory) RequestForcedUpload(f domain.CrashFile) (string, error) {
	if f.Role == crashfile.RoleUploaded {
		d.logger.Warn("refusing to force an uploaded report", ports.Path(f.Path))
		return "", fmt.Errorf("force %s: %w", f.Name(), domain.ErrAlreadyUploaded)
	}
	next := crashfile.WithForcedRole(f.Path)
	if next == f.Path {
		return next, nil
	}
	if err := d.fs.Rename(f.Path, next); err != nil {
		d.logger.Warn("force upload: rename failed", ports.Path(f.Path), ports.Err(err))
		return "", fmt.Errorf("force %s: %w", f.Name(), err)
	}
	return next, nil
}

// MarkUploaded retags f as uploaded. See markTerminal for failure handling.
func (d *Directory) MarkUploaded(f domain.CrashFile) string {
	return d.markTerminal(f, crashfile.RoleUploaded)
}

// MarkSkipped retags f as skipped. See markTerminal for failure handling.
func (d *Directory) MarkSkipped(f domain.CrashFile) string {
	return d.markTerminal(f, crashfile.RoleSkipped)
}

// markTerminal renames f into a terminal role and returns the new path. When the
// rename fails the original is deleted so it cannot be picked up again; the
// return value is then empty. If the delete fails too the file leaks until the
// retention sweep ages it out.
func (d *Directory) markTerminal(f domain.CrashFile, role crashfile.Role) string {
	next := crashfile.WithTerminalRole(f.Path, role)
	if next == f.Path {
		d.logger.Debug("no state change", ports.Path(f.Path), ports.String("role", role.String()))
		return f.Path
	}

	err := d.fs.Rename(f.Path, next)
	if err == nil {
		return next
	}
	d.logger.Warn("rename failed, deleting report",
		ports.Path(f.Path),
		ports.String("role", role.String()),
		ports.Err(err))

	if rmErr := d.fs.Remove(f.Path); rmErr != nil {
		d.logger.Error("delete after failed rename failed",
			ports.Path(f.Path),
			ports.Err(rmErr))
	}
	return ""
}

// Remove deletes f. It is used by the retention sweep, never by upload transitions.
func (d *Directory) Remove(f domain.CrashFile) error {
	return d.fs.Remove(f.Path)
}
