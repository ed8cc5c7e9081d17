package crashdir

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsAdapter "github.com/bft-labs/crashship/internal/adapters/fs"
	logAdapter "github.com/bft-labs/crashship/internal/adapters/log"
	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/pkg/crashfile"
)

// failingFS wraps the host filesystem and fails selected calls.
type failingFS struct {
	fsAdapter.OS
	renameErr error
	removeErr error
}

func (f failingFS) Rename(oldPath, newPath string) error {
	if f.renameErr != nil {
		return f.renameErr
	}
	return f.OS.Rename(oldPath, newPath)
}

func (f failingFS) Remove(path string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.OS.Remove(path)
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createFile writes name in dir with its mtime set age before baseTime.
func createFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mt := baseTime.Add(-age)
	if err := os.Chtimes(p, mt, mt); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return p
}

func names(files []domain.CrashFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name())
	}
	return out
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mustFind(t *testing.T, d *Directory, name string) domain.CrashFile {
	t.Helper()
	for _, f := range d.List(All) {
		if f.Name() == name {
			return f
		}
	}
	t.Fatalf("%s not found in %s", name, d.Path())
	return domain.CrashFile{}
}

func TestList_OrdersNewestFirstWithPathTieBreak(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "old.dmp", 3*time.Hour)
	createFile(t, dir, "b.dmp", time.Hour)
	createFile(t, dir, "a.dmp", time.Hour)
	createFile(t, dir, "new.logcat", 0)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.dmp"), 0o755))

	d := New(dir)
	assert.Equal(t, []string{"new.logcat", "a.dmp", "b.dmp", "old.dmp"}, names(d.List(All)))
	assert.Equal(t, []string{"a.dmp", "b.dmp", "old.dmp"}, names(d.List(WithRoles(crashfile.RoleNotYetUploaded))))
}

func TestList_MissingDirIsEmpty(t *testing.T) {
	rec := logAdapter.NewRecorder()
	d := New(filepath.Join(t.TempDir(), "absent"), WithLogger(rec))

	assert.Empty(t, d.List(All))
	assert.Empty(t, d.UploadCandidates(3))
	_, ok := d.FindByLocalID("x")
	assert.False(t, ok)
	assert.GreaterOrEqual(t, rec.Count("warn"), 1)
}

func TestList_TemporaryPredicate(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "a.dmp.tmp", 0)
	createFile(t, dir, "a.dmp", 0)

	assert.Equal(t, []string{"a.dmp.tmp"}, names(New(dir).List(Temporary)))
}

func TestUploadCandidates_RespectsMaxTries(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "a.dmp.try2", time.Minute)
	createFile(t, dir, "b.dmp", time.Hour)

	d := New(dir)
	assert.Equal(t, []string{"a.dmp.try2", "b.dmp"}, names(d.UploadCandidates(3)))
	assert.Equal(t, []string{"b.dmp"}, names(d.UploadCandidates(2)))
	assert.Empty(t, d.UploadCandidates(0))
}

func TestUploadCandidates_ExcludesOtherRoles(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "a.forced.try0", 0)
	createFile(t, dir, "b.up", 0)
	createFile(t, dir, "c.skipped", 0)
	createFile(t, dir, "d.logcat", 0)
	createFile(t, dir, "e.dmp7", time.Second)
	createFile(t, dir, crashfile.UploadLogName, 0)

	got := New(dir).UploadCandidates(100)
	require.Len(t, got, 1)
	assert.Equal(t, "e.dmp7", got[0].Name())
	assert.Equal(t, crashfile.RoleNotYetUploaded, got[0].Role)
}

func TestUploadCandidates_OverflowingCounterCountsAsZero(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "crash-a.dmp.try99999999999999999999", 0)

	d := New(dir)
	got := d.UploadCandidates(1)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].AttemptCount())
	assert.False(t, got[0].HasAttempts)

	f, ok := d.FindByLocalID("a")
	require.True(t, ok)
	assert.Equal(t, crashfile.RoleNotYetUploaded, f.Role)
}

func TestFindByLocalID(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "chromium-renderer-minidump-abc123.up", 0)
	createFile(t, dir, "chromium-renderer-minidump-abc123.logcat", 0)
	createFile(t, dir, "chromium-gpu-minidump-abc123.skipped", time.Hour)
	createFile(t, dir, "chromium-browser-minidump-def456.dmp1", time.Minute)

	d := New(dir)

	f, ok := d.FindByLocalID("abc123")
	require.True(t, ok)
	assert.Equal(t, "chromium-gpu-minidump-abc123.skipped", f.Name())

	f, ok = d.FindByLocalID("456")
	require.True(t, ok)
	assert.Equal(t, "chromium-browser-minidump-def456.dmp1", f.Name())

	_, ok = d.FindByLocalID("chromium")
	assert.False(t, ok, "local id matches a suffix, not a prefix")
	_, ok = d.FindByLocalID("")
	assert.False(t, ok)
}

func TestIncrementAttempt_Monotonic(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "r.dmp", 0)
	d := New(dir)

	f := mustFind(t, d, "r.dmp")
	for want := 1; want <= 4; want++ {
		next, err := d.IncrementAttempt(f)
		require.NoError(t, err)

		files := d.List(All)
		require.Len(t, files, 1)
		f = files[0]
		assert.Equal(t, next, f.Path)
		assert.Equal(t, want, f.Attempts)
		assert.True(t, f.HasAttempts)
	}
	assert.Equal(t, "r.dmp.try4", f.Name())
}

func TestIncrementAttempt_RenameFailure(t *testing.T) {
	dir := t.TempDir()
	p := createFile(t, dir, "r.dmp", 0)
	d := New(dir, WithFileSystem(failingFS{renameErr: os.ErrPermission}))

	_, err := d.IncrementAttempt(domain.NewCrashFile(p, baseTime, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.True(t, pathExists(p))
}

func TestRequestForcedUpload(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "a.dmp.try5", 0)
	createFile(t, dir, "b.skipped", 0)
	createFile(t, dir, "c.dmp", 0)
	d := New(dir)

	next, err := d.RequestForcedUpload(mustFind(t, d, "a.dmp.try5"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.forced.try0"), next)
	forced := mustFind(t, d, "a.forced.try0")
	assert.Equal(t, crashfile.RoleForcedRetry, forced.Role)
	assert.Equal(t, 0, forced.Attempts)

	next, err = d.RequestForcedUpload(mustFind(t, d, "b.skipped"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.forced"), next)

	next, err = d.RequestForcedUpload(mustFind(t, d, "c.dmp"))
	require.NoError(t, err)
	f := mustFind(t, d, filepath.Base(next))
	assert.False(t, f.HasAttempts)

	// Forcing a forced file with no history is a no-op.
	again, err := d.RequestForcedUpload(f)
	require.NoError(t, err)
	assert.Equal(t, f.Path, again)
}

func TestRequestForcedUpload_RefusesUploaded(t *testing.T) {
	dir := t.TempDir()
	p := createFile(t, dir, "a.up.try1", 0)
	rec := logAdapter.NewRecorder()
	d := New(dir, WithLogger(rec))

	_, err := d.RequestForcedUpload(mustFind(t, d, "a.up.try1"))
	require.ErrorIs(t, err, domain.ErrAlreadyUploaded)
	assert.True(t, pathExists(p), "uploaded file must be left untouched")
	assert.Equal(t, 1, rec.Count("warn"))
}

func TestMarkUploaded(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "report.dmp", 0)
	d := New(dir)

	next := d.MarkUploaded(mustFind(t, d, "report.dmp"))
	assert.Equal(t, filepath.Join(dir, "report.up"), next)
	assert.Equal(t, []string{"report.up"}, names(d.List(All)))
}

func TestMarkSkipped_KeepsHistory(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "report.forced.try2", 0)
	d := New(dir)

	next := d.MarkSkipped(mustFind(t, d, "report.forced.try2"))
	assert.Equal(t, filepath.Join(dir, "report.skipped.try2"), next)
}

func TestMarkUploaded_RenameFailureDeletes(t *testing.T) {
	dir := t.TempDir()
	p := createFile(t, dir, "report.dmp", 0)
	rec := logAdapter.NewRecorder()
	d := New(dir, WithFileSystem(failingFS{renameErr: errors.New("rename denied")}), WithLogger(rec))

	assert.Equal(t, "", d.MarkUploaded(mustFind(t, d, "report.dmp")))
	assert.False(t, pathExists(p), "original must be deleted so it is not retried")
	assert.Equal(t, 1, rec.Count("warn"))
	assert.Equal(t, 0, rec.Count("error"))
}

func TestMarkSkipped_DoubleFailureLeaks(t *testing.T) {
	dir := t.TempDir()
	p := createFile(t, dir, "report.dmp", 0)
	rec := logAdapter.NewRecorder()
	d := New(dir,
		WithFileSystem(failingFS{renameErr: errors.New("rename denied"), removeErr: errors.New("remove denied")}),
		WithLogger(rec))

	assert.Equal(t, "", d.MarkSkipped(mustFind(t, d, "report.dmp")))
	assert.True(t, pathExists(p))
	assert.Equal(t, 1, rec.Count("error"))
}

func TestMarkUploaded_NotPending(t *testing.T) {
	dir := t.TempDir()
	p := createFile(t, dir, "report.skipped", 0)
	d := New(dir)

	assert.Equal(t, p, d.MarkUploaded(mustFind(t, d, "report.skipped")))
	assert.True(t, pathExists(p))
}

// Two files that reach the same name collapse into one: last rename wins.
// This is a known gap, not a guarantee.
func TestIncrementAttempt_CollisionLastRenameWins(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "x.dmp.try1", time.Hour)
	createFile(t, dir, "x.dmp", 0)
	d := New(dir)

	next, err := d.IncrementAttempt(mustFind(t, d, "x.dmp"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x.dmp.try1"), next)

	files := d.List(All)
	require.Len(t, files, 1)
	content, err := os.ReadFile(files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "x.dmp", string(content), "the renamed file replaced the older one")
}

func TestCreateScratchFile(t *testing.T) {
	dir := t.TempDir()
	d := New(dir)

	p, err := d.CreateScratchFile("new.dmp.tmp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new.dmp.tmp"), p)
	assert.True(t, pathExists(p))

	for _, bad := range []string{"", "..", "../escape", "a/b", crashfile.UploadLogName} {
		_, err := d.CreateScratchFile(bad)
		assert.Error(t, err, bad)
	}
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	d := New(dir)

	scratch, err := d.CreateScratchFile("w.tmp")
	require.NoError(t, err)
	name := NewDumpName("chromium.renderer")
	p, err := d.Publish(scratch, name)
	require.NoError(t, err)
	assert.False(t, pathExists(scratch))

	candidates := d.UploadCandidates(1)
	require.Len(t, candidates, 1)
	assert.Equal(t, p, candidates[0].Path)
}

func TestNewDumpName(t *testing.T) {
	a := NewDumpName("chromium-renderer-minidump")
	b := NewDumpName("chromium-renderer-minidump")
	assert.NotEqual(t, a, b)

	n, ok := crashfile.Parse(a)
	require.True(t, ok)
	assert.Equal(t, crashfile.RoleNotYetUploaded, n.Role)
	assert.False(t, n.HasAttempts)
	assert.Len(t, n.BaseID(), len("chromium-renderer-minidump-")+32)

	bare := NewDumpName("")
	assert.Len(t, crashfile.BaseID(bare), 32)

	dotted := NewDumpName("a.b")
	assert.Equal(t, "a-b-", crashfile.BaseID(dotted)[:4])
}

func TestUploadLogPath(t *testing.T) {
	d := New("/var/crash")
	assert.Equal(t, filepath.Join("/var/crash", "uploads.log"), d.UploadLogPath())
}
