package crashfile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Name
		wantOK   bool
	}{
		{
			name:     "plain dump",
			filename: "abc.dmp",
			want:     Name{Stem: "abc", Role: RoleNotYetUploaded},
			wantOK:   true,
		},
		{
			name:     "dump with disambiguator and attempts",
			filename: "chromium-renderer-minidump-f297dbcb.dmp1234.try2",
			want: Name{
				Stem:          "chromium-renderer-minidump-f297dbcb",
				Role:          RoleNotYetUploaded,
				Disambiguator: "1234",
				Attempts:      2,
				HasAttempts:   true,
			},
			wantOK: true,
		},
		{
			name:     "forced with zero attempts",
			filename: "abc.forced.try0",
			want:     Name{Stem: "abc", Role: RoleForcedRetry, HasAttempts: true},
			wantOK:   true,
		},
		{
			name:     "uploaded",
			filename: "abc.up7",
			want:     Name{Stem: "abc", Role: RoleUploaded, Disambiguator: "7"},
			wantOK:   true,
		},
		{
			name:     "skipped keeps history",
			filename: "abc.skipped.try3",
			want:     Name{Stem: "abc", Role: RoleSkipped, Attempts: 3, HasAttempts: true},
			wantOK:   true,
		},
		{
			name:     "directory is ignored",
			filename: "/var/crash.dmp/abc.dmp",
			want:     Name{Stem: "abc", Role: RoleNotYetUploaded},
			wantOK:   true,
		},
		{
			name:     "overflowing counter carries no count",
			filename: "abc.dmp.try99999999999999999999",
			want:     Name{Stem: "abc", Role: RoleNotYetUploaded},
			wantOK:   true,
		},
		{
			name:     "counter appended after an overflowing one",
			filename: "abc.dmp12.try99999999999999999999.try1",
			want: Name{
				Stem:          "abc",
				Role:          RoleNotYetUploaded,
				Disambiguator: "12",
				Attempts:      1,
				HasAttempts:   true,
			},
			wantOK: true,
		},
		{name: "sidecar", filename: "abc.logcat"},
		{name: "upload log", filename: "uploads.log"},
		{name: "temp file", filename: "abc.dmp.tmp"},
		{name: "no stem", filename: ".dmp"},
		{name: "try without digits", filename: "abc.dmp.try"},
		{name: "try followed by text", filename: "abc.dmp.tryagain"},
		{name: "tag with trailing letters", filename: "abc.dmpx"},
		{name: "digits before tag", filename: "abc.1dmp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.filename)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameRoundTrip(t *testing.T) {
	roles := []Role{RoleNotYetUploaded, RoleForcedRetry, RoleSkipped}
	for _, role := range roles {
		for _, attempts := range []int{0, 1, 2, 9, 10, 123} {
			for _, disamb := range []string{"", "42"} {
				t.Run(fmt.Sprintf("%s/%d/%q", role, attempts, disamb), func(t *testing.T) {
					in := Name{
						Stem:          "report-0a1b",
						Role:          role,
						Disambiguator: disamb,
						Attempts:      attempts,
						HasAttempts:   true,
					}
					out, ok := Parse(in.String())
					require.True(t, ok, in.String())
					assert.Equal(t, in, out)

					n, ok := ParseAttemptCount(in.String())
					require.True(t, ok)
					assert.Equal(t, attempts, n)
				})
			}
		}
	}
}

func TestBaseID(t *testing.T) {
	assert.Equal(t, "abc", BaseID("abc.dmp12.try1"))
	assert.Equal(t, "abc", BaseID("/tmp/x.y/abc.logcat"))
	assert.Equal(t, "uploads", BaseID("uploads.log"))
	assert.Equal(t, "noext", BaseID("noext"))

	n, ok := Parse("a.b.dmp")
	require.True(t, ok)
	assert.Equal(t, "a.b", n.Stem)
	assert.Equal(t, "a", n.BaseID())
}

func TestRecognisers(t *testing.T) {
	assert.True(t, IsTemporary("abc.dmp.tmp"))
	assert.False(t, IsTemporary("abc.tmp.dmp"))
	assert.True(t, IsSidecar("abc.logcat"))
	assert.True(t, IsUploadLog("/crash/uploads.log"))
	assert.False(t, IsUploadLog("uploads.log.tmp"))

	assert.Equal(t, RoleUploaded, RoleOf("x.up"))
	assert.Equal(t, RoleUnknown, RoleOf("x.logcat"))
}

func TestRole_String(t *testing.T) {
	tests := []struct {
		role Role
		want string
		tag  string
	}{
		{RoleNotYetUploaded, "NotYetUploaded", "dmp"},
		{RoleForcedRetry, "ForcedRetry", "forced"},
		{RoleUploaded, "Uploaded", "up"},
		{RoleSkipped, "Skipped", "skipped"},
		{RoleUnknown, "Unknown", ""},
		{Role(99), "Unknown", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.role.String())
		assert.Equal(t, tt.tag, tt.role.Tag())
	}
}
