package ports

import "time"

// Metrics receives counters from the uploader and the retention sweep.
type Metrics interface {
	// IncUpload counts one report by outcome ("uploaded", "skipped", "retry", "failed").
	IncUpload(outcome string)

	// IncSweepDeleted counts one file removed by the sweep for reason.
	IncSweepDeleted(reason string)

	// IncSweepDeleteFailed counts one file the sweep could not remove.
	IncSweepDeleteFailed()

	// SweepCompleted records the end of a sweep and how many files survived it.
	SweepCompleted(at time.Time, kept int)
}
