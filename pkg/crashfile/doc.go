// Package crashfile encodes the upload state of a crash report in its filename.
//
// A crash file is named
//
//	stem "." tag [digits] [".try" digits]
//
// where tag is one of "dmp" (not yet uploaded), "forced" (user-requested
// re-upload), "up" (uploaded) or "skipped" (deliberately not uploaded). The bare
// digits after the tag are an opaque disambiguator that every transform keeps
// as-is; only the trailing ".try" digits count upload attempts.
//
// Everything here is pure string manipulation. Renaming files on disk is the job
// of the crash directory that uses these functions.
//
// # Usage
//
//	next := crashfile.WithIncrementedAttempt("/crash/abc.dmp123")
//	// next == "/crash/abc.dmp123.try1"
//
//	n, ok := crashfile.Parse("abc.forced.try0")
//	// n.Role == crashfile.RoleForcedRetry, n.Attempts == 0, ok == true
package crashfile
