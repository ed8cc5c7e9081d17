package domain

import "errors"

// Domain errors represent error conditions in the crashship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyUploaded is returned when a forced upload targets an uploaded report.
	ErrAlreadyUploaded = errors.New("crashship: report already uploaded")

	// ErrNotFound is returned when no crash file matches a local id.
	ErrNotFound = errors.New("crashship: crash report not found")

	// ErrPermanentFailure is returned by a sender when retrying cannot help.
	ErrPermanentFailure = errors.New("crashship: permanent upload failure")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("crashship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("crashship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("crashship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("crashship: invalid configuration")
)
