package ports

import (
	"context"

	"github.com/bft-labs/crashship/internal/domain"
)

// UploadLog keeps the record of completed uploads shown in the crash list.
type UploadLog interface {
	// Append adds one record.
	Append(ctx context.Context, rec domain.UploadRecord) error

	// Read returns all records, newest first. A missing log is not an error.
	Read(ctx context.Context) ([]domain.UploadRecord, error)
}
