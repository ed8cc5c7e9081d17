package domain

import "time"

// UploadRecord is one completed upload as kept in the upload log.
type UploadRecord struct {
	UploadTime time.Time
	ReportID   string
	LocalID    string
}

// Decision is the consent verdict for a pending report.
type Decision int

const (
	// DecisionUpload sends the report.
	DecisionUpload Decision = iota
	// DecisionSkip retags the report as skipped; it stays on disk for a manual force.
	DecisionSkip
)

// String returns a human-readable representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionUpload:
		return "upload"
	case DecisionSkip:
		return "skip"
	default:
		return "unknown"
	}
}
