package crashfile

import (
	"math"
	"os"
	"strconv"
	"strings"
)

// ParseAttemptCount returns the attempt counter of a filename.
//
// The counter is the run of digits immediately after the last ".try" in the final
// path element. A ".try" followed by anything other than a digit yields no count.
func ParseAttemptCount(filename string) (int, bool) {
	_, name := splitPath(filename)
	_, _, n, ok := attemptSpan(name)
	return n, ok
}

// WithIncrementedAttempt bumps ".try<n>" to ".try<n+1>", or appends ".try1" when the
// name carries no counter yet.
func WithIncrementedAttempt(path string) string {
	dir, name := splitPath(path)
	if start, end, n, ok := attemptSpan(name); ok && n < math.MaxInt {
		return dir + name[:start] + strconv.Itoa(n+1) + name[end:]
	}
	return dir + name + attemptMarker + "1"
}

// WithForcedRole resets a positive attempt counter to zero and retags a dmp or
// skipped file as forced.
func WithForcedRole(path string) string {
	dir, name := splitPath(path)
	if start, end, n, ok := attemptSpan(name); ok && n > 0 {
		name = name[:start] + "0" + name[end:]
	}
	if seg, ok := locate(name); ok && (seg.role == RoleNotYetUploaded || seg.role == RoleSkipped) {
		name = name[:seg.tagStart] + TagForced + name[seg.tagEnd:]
	}
	return dir + name
}

// WithTerminalRole retags a dmp or forced file as up or skipped. The attempt counter
// is left alone. Any other target role returns the path unchanged.
func WithTerminalRole(path string, role Role) string {
	if role != RoleUploaded && role != RoleSkipped {
		return path
	}
	dir, name := splitPath(path)
	seg, ok := locate(name)
	if !ok || (seg.role != RoleNotYetUploaded && seg.role != RoleForcedRetry) {
		return path
	}
	return dir + name[:seg.tagStart] + role.Tag() + name[seg.tagEnd:]
}

// attemptSpan returns the byte range of the counter digits and their value.
func attemptSpan(name string) (start, end, n int, ok bool) {
	i := strings.LastIndex(name, attemptMarker)
	if i < 0 {
		return 0, 0, 0, false
	}
	start = i + len(attemptMarker)
	end = start
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == start {
		return 0, 0, 0, false
	}
	v, err := strconv.Atoi(name[start:end])
	if err != nil {
		return 0, 0, 0, false
	}
	return start, end, v, true
}

// splitPath splits after the last separator so the directory is never rewritten.
func splitPath(path string) (dir, name string) {
	i := strings.LastIndexFunc(path, func(r rune) bool {
		return r == '/' || r == os.PathSeparator
	})
	return path[:i+1], path[i+1:]
}
