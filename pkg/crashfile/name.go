package crashfile

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Role is the upload state encoded in a crash file's name.
type Role int

const (
	// RoleUnknown marks files outside the naming grammar (sidecars, the upload log, strays).
	RoleUnknown Role = iota
	RoleNotYetUploaded
	RoleForcedRetry
	RoleUploaded
	RoleSkipped
)

// Tag literals as they appear in filenames.
const (
	TagDump     = "dmp"
	TagForced   = "forced"
	TagUploaded = "up"
	TagSkipped  = "skipped"
)

const (
	// TempSuffix marks scratch files that are still being written.
	TempSuffix = ".tmp"

	// SidecarSuffix marks the diagnostic log written next to a dump.
	SidecarSuffix = ".logcat"

	// UploadLogName is the reserved name of the upload record file.
	UploadLogName = "uploads.log"

	attemptMarker = ".try"
)

// String returns a human-readable representation of the role.
func (r Role) String() string {
	switch r {
	case RoleNotYetUploaded:
		return "NotYetUploaded"
	case RoleForcedRetry:
		return "ForcedRetry"
	case RoleUploaded:
		return "Uploaded"
	case RoleSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Tag returns the filename literal for the role, or "" for RoleUnknown.
func (r Role) Tag() string {
	switch r {
	case RoleNotYetUploaded:
		return TagDump
	case RoleForcedRetry:
		return TagForced
	case RoleUploaded:
		return TagUploaded
	case RoleSkipped:
		return TagSkipped
	default:
		return ""
	}
}

func roleForTag(tag string) Role {
	switch tag {
	case TagDump:
		return RoleNotYetUploaded
	case TagForced:
		return RoleForcedRetry
	case TagUploaded:
		return RoleUploaded
	case TagSkipped:
		return RoleSkipped
	default:
		return RoleUnknown
	}
}

// Name is the decoded form of a crash filename:
//
//	stem "." tag [disambiguator] [".try" attempts]
type Name struct {
	// Stem is everything before the tag segment.
	Stem string

	Role Role

	// Disambiguator holds the bare digits directly after the tag (often a pid).
	// It is opaque and preserved verbatim.
	Disambiguator string

	Attempts    int
	HasAttempts bool
}

// String rebuilds the filename.
func (n Name) String() string {
	var b strings.Builder
	b.WriteString(n.Stem)
	b.WriteByte('.')
	b.WriteString(n.Role.Tag())
	b.WriteString(n.Disambiguator)
	if n.HasAttempts {
		b.WriteString(attemptMarker)
		b.WriteString(strconv.Itoa(n.Attempts))
	}
	return b.String()
}

// BaseID returns the correlation key of a file: the part of its name before the first dot.
func (n Name) BaseID() string {
	return BaseID(n.Stem)
}

// Parse decodes a filename (or the final element of a path) against the grammar.
// It returns false for anything that does not carry exactly one known tag.
func Parse(filename string) (Name, bool) {
	name := filepath.Base(filename)
	seg, ok := locate(name)
	if !ok {
		return Name{}, false
	}
	return Name{
		Stem:          name[:seg.tagStart-1],
		Role:          seg.role,
		Disambiguator: name[seg.tagEnd:seg.suffixStart],
		Attempts:      seg.attempts,
		HasAttempts:   seg.hasAttempts,
	}, true
}

// RoleOf returns the role encoded in the filename, or RoleUnknown.
func RoleOf(filename string) Role {
	n, ok := Parse(filename)
	if !ok {
		return RoleUnknown
	}
	return n.Role
}

// BaseID returns the part of the final path element before its first dot.
func BaseID(filename string) string {
	name := filepath.Base(filename)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// IsTemporary reports whether the file is a scratch file.
func IsTemporary(filename string) bool {
	return strings.HasSuffix(filepath.Base(filename), TempSuffix)
}

// IsSidecar reports whether the file is a diagnostic log travelling with a dump.
func IsSidecar(filename string) bool {
	return strings.HasSuffix(filepath.Base(filename), SidecarSuffix)
}

// IsUploadLog reports whether the file is the reserved upload log.
func IsUploadLog(filename string) bool {
	return filepath.Base(filename) == UploadLogName
}

// segment holds byte offsets into a bare filename.
type segment struct {
	tagStart, tagEnd int
	// suffixStart is where the ".try<digits>" suffix begins, or len(name) without one.
	suffixStart int
	role        Role
	attempts    int
	hasAttempts bool
}

func locate(name string) (segment, bool) {
	seg := segment{suffixStart: len(name)}

	if i := strings.LastIndex(name, attemptMarker); i >= 0 {
		digits := name[i+len(attemptMarker):]
		if digits != "" && allDigits(digits) {
			seg.suffixStart = i
			if n, err := strconv.Atoi(digits); err == nil {
				seg.attempts = n
				seg.hasAttempts = true
			}
		}
	}
	// Counters too large for an int carry no count. Incrementing one appends a
	// fresh ".try1", so they can also sit in front of the real counter.
	for {
		i := strings.LastIndex(name[:seg.suffixStart], attemptMarker)
		if i < 0 {
			break
		}
		digits := name[i+len(attemptMarker) : seg.suffixStart]
		if digits == "" || !allDigits(digits) {
			break
		}
		if _, err := strconv.Atoi(digits); err == nil {
			break
		}
		seg.suffixStart = i
	}

	rest := name[:seg.suffixStart]
	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 {
		return segment{}, false
	}
	ext := rest[dot+1:]
	letters := strings.IndexFunc(ext, isDigit)
	if letters < 0 {
		letters = len(ext)
	}
	role := roleForTag(ext[:letters])
	if role == RoleUnknown {
		return segment{}, false
	}
	if !allDigits(ext[letters:]) {
		return segment{}, false
	}
	seg.tagStart = dot + 1
	seg.tagEnd = dot + 1 + letters
	seg.role = role
	return seg, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// allDigits is true for the empty string.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
