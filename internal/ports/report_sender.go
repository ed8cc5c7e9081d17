package ports

import (
	"context"

	"github.com/bft-labs/crashship/internal/domain"
)

// ReportSender transmits one crash report to the crash server.
type ReportSender interface {
	// Send uploads the file and returns the server-assigned report id.
	// An error wrapping domain.ErrPermanentFailure means retrying is pointless;
	// any other error is transient.
	Send(ctx context.Context, file domain.CrashFile, meta SendMetadata) (string, error)
}

// SendMetadata identifies the product the crash belongs to.
type SendMetadata struct {
	// ServiceURL is the full upload endpoint.
	ServiceURL string

	ProductName    string
	ProductVersion string

	// ClientID is a stable per-installation identifier.
	ClientID string

	Hostname string
	OSArch   string
}
