package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/crashship/internal/crashdir"
	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/crashfile"
)

// Upload outcomes as reported to metrics.
const (
	OutcomeUploaded = "uploaded"
	OutcomeSkipped  = "skipped"
	OutcomeRetry    = "retry"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// DefaultMaxTries is how many upload attempts a report gets before the batch
// stops offering it.
const DefaultMaxTries = 3

// UploaderConfig contains configuration for the uploader.
type UploaderConfig struct {
	MaxTries int

	// Metadata is sent with every report.
	Metadata ports.SendMetadata
}

// BatchResult summarises one upload batch.
type BatchResult struct {
	Uploaded int
	Skipped  int

	// Retried counts transient failures recorded as one more attempt.
	Retried int

	// Failed counts transient failures whose attempt could not be recorded.
	Failed int

	Canceled bool
}

// Transient reports whether any report in the batch hit a transient failure.
func (r BatchResult) Transient() bool {
	return r.Retried+r.Failed > 0
}

// Uploader drives crash files through the upload lifecycle: it picks candidates,
// asks for consent, sends, and records the outcome in the filename.
type Uploader struct {
	config    UploaderConfig
	dir       *crashdir.Directory
	sender    ports.ReportSender
	consent   ports.ConsentPolicy
	uploadLog ports.UploadLog
	metrics   ports.Metrics
	logger    ports.Logger
	now       func() time.Time
}

// NewUploader creates a new uploader with the given dependencies.
func NewUploader(
	config UploaderConfig,
	dir *crashdir.Directory,
	sender ports.ReportSender,
	consent ports.ConsentPolicy,
	uploadLog ports.UploadLog,
	metrics ports.Metrics,
	logger ports.Logger,
) *Uploader {
	if config.MaxTries <= 0 {
		config.MaxTries = DefaultMaxTries
	}
	return &Uploader{
		config:    config,
		dir:       dir,
		sender:    sender,
		consent:   consent,
		uploadLog: uploadLog,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// RunBatch uploads every pending report once, most recent first.
//
// Forced reports left over from an interrupted or failed force are retried first
// and bypass consent. Regular candidates go through the consent policy; a
// declined report is marked skipped and stays on disk until the user forces it.
func (u *Uploader) RunBatch(ctx context.Context) BatchResult {
	var res BatchResult

	forced := u.dir.List(crashdir.WithRoles(crashfile.RoleForcedRetry))
	pending := make([]domain.CrashFile, 0, len(forced))
	for _, f := range forced {
		if f.AttemptCount() < u.config.MaxTries {
			pending = append(pending, f)
		}
	}
	pending = append(pending, u.dir.UploadCandidates(u.config.MaxTries)...)

	for _, f := range pending {
		if ctx.Err() != nil {
			res.Canceled = true
			break
		}

		if f.Role == crashfile.RoleNotYetUploaded && u.consent.Decide(f) == domain.DecisionSkip {
			u.logger.Debug("upload declined", ports.Path(f.Path))
			u.dir.MarkSkipped(f)
			u.metrics.IncUpload(OutcomeSkipped)
			res.Skipped++
			continue
		}

		switch outcome, _ := u.upload(ctx, f); outcome {
		case OutcomeUploaded:
			res.Uploaded++
		case OutcomeSkipped:
			res.Skipped++
		case OutcomeRetry:
			res.Retried++
		case OutcomeFailed:
			res.Failed++
		case OutcomeCanceled:
			res.Canceled = true
		}
	}

	if res.Uploaded+res.Skipped+res.Retried+res.Failed > 0 {
		u.logger.Info("upload batch completed",
			ports.Int("uploaded", res.Uploaded),
			ports.Int("skipped", res.Skipped),
			ports.Int("retried", res.Retried),
			ports.Int("failed", res.Failed))
	}
	return res
}

// UploadForced uploads the report whose base id ends with localID right away,
// ignoring consent and the attempt limit.
//
// Returns domain.ErrNotFound when no report matches and domain.ErrAlreadyUploaded
// when the report has already been sent.
func (u *Uploader) UploadForced(ctx context.Context, localID string) error {
	f, ok := u.dir.FindByLocalID(localID)
	if !ok {
		if up, found := u.findUploaded(localID); found {
			_, err := u.dir.RequestForcedUpload(up)
			return err
		}
		return fmt.Errorf("force %q: %w", localID, domain.ErrNotFound)
	}

	path, err := u.dir.RequestForcedUpload(f)
	if err != nil {
		return err
	}
	forced := domain.NewCrashFile(path, f.ModTime, f.Size)

	outcome, err := u.upload(ctx, forced)
	switch outcome {
	case OutcomeUploaded:
		return nil
	case OutcomeSkipped:
		return fmt.Errorf("upload %s rejected: %w", forced.Name(), err)
	default:
		return fmt.Errorf("upload %s: %w", forced.Name(), err)
	}
}

// upload sends one report and records the result in its name.
func (u *Uploader) upload(ctx context.Context, f domain.CrashFile) (string, error) {
	start := time.Now()
	reportID, err := u.sender.Send(ctx, f, u.config.Metadata)
	duration := time.Since(start)

	switch {
	case err == nil:
		u.complete(ctx, f, reportID, duration)
		u.metrics.IncUpload(OutcomeUploaded)
		return OutcomeUploaded, nil

	case errors.Is(err, domain.ErrPermanentFailure):
		u.logger.Warn("upload rejected, skipping report",
			ports.Path(f.Path),
			ports.Err(err))
		u.dir.MarkSkipped(f)
		u.metrics.IncUpload(OutcomeSkipped)
		return OutcomeSkipped, err

	case ctx.Err() != nil:
		// Shutdown interrupted the send; it does not count as an attempt.
		return OutcomeCanceled, err
	}

	u.logger.Error("upload failed",
		ports.Path(f.Path),
		ports.Int("attempt", f.AttemptCount()+1),
		ports.Duration("duration", duration),
		ports.Err(err))
	if _, incErr := u.dir.IncrementAttempt(f); incErr != nil {
		u.metrics.IncUpload(OutcomeFailed)
		return OutcomeFailed, errors.Join(err, incErr)
	}
	u.metrics.IncUpload(OutcomeRetry)
	return OutcomeRetry, err
}

func (u *Uploader) complete(ctx context.Context, f domain.CrashFile, reportID string, duration time.Duration) {
	u.logger.Info("report uploaded",
		ports.Path(f.Path),
		ports.String("report_id", reportID),
		ports.Duration("duration", duration))

	u.dir.MarkUploaded(f)

	rec := domain.UploadRecord{
		UploadTime: u.now(),
		ReportID:   reportID,
		LocalID:    f.LocalID(),
	}
	if err := u.uploadLog.Append(ctx, rec); err != nil {
		u.logger.Error("failed to append upload log", ports.Err(err))
	}
}

func (u *Uploader) findUploaded(localID string) (domain.CrashFile, bool) {
	if localID == "" {
		return domain.CrashFile{}, false
	}
	for _, f := range u.dir.List(crashdir.WithRoles(crashfile.RoleUploaded)) {
		if f.HasLocalID(localID) {
			return f, true
		}
	}
	return domain.CrashFile{}, false
}
