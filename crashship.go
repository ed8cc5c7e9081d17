// Package crashship manages a directory of crash dumps: it keeps each dump's
// upload state in its filename, ships pending dumps to a crash server and sweeps
// the directory under a retention policy.
//
// Example usage:
//
//	cfg := crashship.DefaultConfig()
//	cfg.CrashDir = "/var/crash/myapp"
//	cfg.ServiceURL = "https://crash.example.com/cr/report"
//	a, err := crashship.New(cfg, crashship.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Stop()
package crashship

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	fsAdapter "github.com/bft-labs/crashship/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/crashship/internal/adapters/http"
	"github.com/bft-labs/crashship/internal/app"
	"github.com/bft-labs/crashship/internal/cliconfig"
	"github.com/bft-labs/crashship/internal/consent"
	"github.com/bft-labs/crashship/internal/crashdir"
	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/metrics"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/internal/retention"
	"github.com/bft-labs/crashship/pkg/crashfile"
	"github.com/bft-labs/crashship/pkg/log"
)

// Config holds the agent configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// CrashFile is a snapshot of one file in the crash directory.
type CrashFile = domain.CrashFile

// UploadRecord is one line of the upload log.
type UploadRecord = domain.UploadRecord

// BatchResult summarises one upload batch.
type BatchResult = app.BatchResult

// SweepResult summarises one retention sweep.
type SweepResult = retention.Result

// State represents the lifecycle state of an Agent.
type State = app.State

// Lifecycle states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// DefaultConfig returns a Config with sensible default values.
// At minimum, CrashDir must be set, and ServiceURL before anything is uploaded.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Agent owns one crash directory.
// Use New() to create an instance, then Start() for background operation or
// the one-shot methods for a single pass.
type Agent struct {
	config    Config
	dir       *crashdir.Directory
	uploadLog *fsAdapter.UploadLogFile
	service   *app.Service
	metrics   *metrics.Prom
	logger    ports.Logger
}

// New creates an agent in StateStopped, creating the crash directory if needed.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions(&http.Client{Timeout: cfg.HTTPTimeout})
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	if err := os.MkdirAll(cfg.CrashDir, 0o700); err != nil {
		return nil, fmt.Errorf("create crash dir: %w", err)
	}

	var sink ports.Metrics = metrics.Noop{}
	if o.metrics != nil {
		sink = o.metrics
	}

	dir := crashdir.New(cfg.CrashDir, crashdir.WithLogger(logger))
	uploadLog := fsAdapter.NewUploadLogFile(cfg.CrashDir)

	policy := o.consent
	if policy == nil {
		policy = consent.NewPolicy(cfg.UploadEnabled, cfg.SampleRate)
	}

	uploader := app.NewUploader(
		app.UploaderConfig{
			MaxTries: cfg.MaxTries,
			Metadata: ports.SendMetadata{
				ServiceURL:     cfg.ServiceURL,
				ProductName:    cfg.ProductName,
				ProductVersion: cfg.ProductVersion,
				ClientID:       cfg.ClientID,
				Hostname:       hostname(),
				OSArch:         runtime.GOOS + "/" + runtime.GOARCH,
			},
		},
		dir,
		httpAdapter.NewReportSender(o.httpClient, logger),
		policy,
		uploadLog,
		sink,
		logger,
	)

	sweeper := retention.New(dir,
		retention.Config{MaxAge: cfg.MaxAge, MaxGroups: cfg.MaxGroups},
		retention.WithLogger(logger),
		retention.WithMetrics(sink))

	var emitter app.EventEmitter
	if o.eventHandler != nil {
		emitter = eventEmitterWrapper{handler: o.eventHandler}
	}

	service := app.NewService(
		app.ServiceConfig{
			SweepInterval:  cfg.SweepInterval,
			UploadInterval: cfg.UploadInterval,
			Watch:          cfg.Watch,
		},
		dir, uploader, sweeper, logger, emitter)

	return &Agent{
		config:    cfg,
		dir:       dir,
		uploadLog: uploadLog,
		service:   service,
		metrics:   o.metrics,
		logger:    logger,
	}, nil
}

// Start begins sweeping and uploading in the background.
// Returns domain.ErrAlreadyRunning if already running.
func (a *Agent) Start(ctx context.Context) error {
	return a.service.Start(ctx)
}

// Stop waits for the pass in progress and stops the background loops.
func (a *Agent) Stop() error {
	return a.service.Stop()
}

// Status returns the current lifecycle state.
func (a *Agent) Status() State {
	return a.service.Status()
}

// Sweep runs one retention pass.
func (a *Agent) Sweep(ctx context.Context) SweepResult {
	return a.service.Sweep(ctx)
}

// UploadBatch runs one upload batch.
func (a *Agent) UploadBatch(ctx context.Context) BatchResult {
	return a.service.UploadBatch(ctx)
}

// RunOnce sweeps, then uploads.
func (a *Agent) RunOnce(ctx context.Context) (SweepResult, BatchResult) {
	return a.service.RunOnce(ctx)
}

// UploadForced uploads the report whose base id ends with localID now.
func (a *Agent) UploadForced(ctx context.Context, localID string) error {
	return a.service.UploadForced(ctx, localID)
}

// Pending returns the reports not uploaded yet, most recent first.
func (a *Agent) Pending() []CrashFile {
	return a.dir.List(crashdir.WithRoles(
		crashfile.RoleNotYetUploaded,
		crashfile.RoleForcedRetry,
		crashfile.RoleSkipped,
	))
}

// Uploads returns the upload log, newest first.
func (a *Agent) Uploads(ctx context.Context) ([]UploadRecord, error) {
	return a.uploadLog.Read(ctx)
}

// AddDump copies a dump written elsewhere into the crash directory under a new
// "<prefix>-<id>.dmp" name, together with an optional sidecar log. The copy is
// written to a scratch file first so the uploader never sees a partial dump.
func (a *Agent) AddDump(prefix, dumpPath, sidecarPath string) (string, error) {
	name := crashdir.NewDumpName(prefix)
	base := crashfile.BaseID(name)

	var sidecar string
	if sidecarPath != "" {
		p, err := a.importFile(sidecarPath, base+crashfile.SidecarSuffix)
		if err != nil {
			return "", err
		}
		sidecar = p
	}

	path, err := a.importFile(dumpPath, name)
	if err != nil {
		if sidecar != "" {
			if rmErr := os.Remove(sidecar); rmErr != nil {
				a.logger.Warn("failed to remove orphaned sidecar", log.Path(sidecar), log.Err(rmErr))
			}
		}
		return "", err
	}
	return path, nil
}

func (a *Agent) importFile(src, name string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	scratch, err := a.dir.CreateScratchFile(name + crashfile.TempSuffix)
	if err != nil {
		return "", err
	}
	path, err := copyAndPublish(a.dir, in, scratch, name)
	if err != nil {
		_ = os.Remove(scratch)
		return "", fmt.Errorf("import %s: %w", filepath.Base(src), err)
	}
	return path, nil
}

func copyAndPublish(dir *crashdir.Directory, in io.Reader, scratch, name string) (string, error) {
	out, err := os.OpenFile(scratch, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dir.Publish(scratch, name)
}

// MetricsHandler serves the agent's metrics, or nil when metrics are disabled.
func (a *Agent) MetricsHandler() http.Handler {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.Handler()
}

// Dir returns the crash directory path.
func (a *Agent) Dir() string {
	return a.dir.Path()
}

// hostname returns the current hostname.
func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

// LoadClientID fills cfg.ClientID from the state directory, creating one on first use.
func LoadClientID(cfg *Config) error {
	return cliconfig.LoadClientID(cfg)
}

// NewZerologLogger adapts the console logger used by the CLI.
func NewZerologLogger(level string) (log.Logger, error) {
	zl, err := cliconfig.Logger(level)
	if err != nil {
		return nil, err
	}
	return log.NewZerologAdapterWithLogger(zl), nil
}
