package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/crashship/internal/crashdir"
	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/internal/retention"
)

// Default scheduling values.
const (
	DefaultSweepInterval  = 24 * time.Hour
	DefaultUploadInterval = time.Hour
	DefaultDebounceDelay  = 2 * time.Second
)

// ServiceConfig contains configuration for the background service.
type ServiceConfig struct {
	// SweepInterval is the delay between retention sweeps.
	// Default: 24 hours
	SweepInterval time.Duration

	// UploadInterval is the delay between upload batches.
	// Default: 1 hour
	UploadInterval time.Duration

	// Watch starts a batch shortly after a new dump appears instead of waiting
	// for the next tick.
	Watch bool

	// DebounceDelay is how long the watcher waits for writes to settle.
	// Default: 2 seconds
	DebounceDelay time.Duration

	// BackoffInitial and BackoffMax bound the pause after a batch that hit
	// transient failures.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (c *ServiceConfig) setDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.UploadInterval <= 0 {
		c.UploadInterval = DefaultUploadInterval
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = DefaultDebounceDelay
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
}

// Service schedules retention sweeps and upload batches over one crash
// directory. Every pass over the directory, scheduled or on demand, runs under
// a single mutex so at most one worker touches the files at a time.
type Service struct {
	config    ServiceConfig
	dir       *crashdir.Directory
	uploader  *Uploader
	sweeper   *retention.Sweeper
	lifecycle *Lifecycle
	logger    ports.Logger

	// passMu serialises directory passes.
	passMu sync.Mutex

	// trigger wakes the upload loop; the watcher sends to it.
	trigger chan struct{}

	// mu serialises Start and Stop.
	mu sync.Mutex
}

// NewService creates a service in StateStopped.
func NewService(
	config ServiceConfig,
	dir *crashdir.Directory,
	uploader *Uploader,
	sweeper *retention.Sweeper,
	logger ports.Logger,
	emitter EventEmitter,
) *Service {
	config.setDefaults()
	return &Service{
		config:    config,
		dir:       dir,
		uploader:  uploader,
		sweeper:   sweeper,
		lifecycle: NewLifecycle(logger, emitter),
		logger:    logger,
		trigger:   make(chan struct{}, 1),
	}
}

// Sweep runs one retention pass.
func (s *Service) Sweep(ctx context.Context) retention.Result {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.sweeper.Sweep(ctx)
}

// UploadBatch runs one upload batch.
func (s *Service) UploadBatch(ctx context.Context) BatchResult {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.uploader.RunBatch(ctx)
}

// UploadForced uploads one report on the user's request.
func (s *Service) UploadForced(ctx context.Context, localID string) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.uploader.UploadForced(ctx, localID)
}

// RunOnce sweeps and then uploads, the same order the background loops start in.
func (s *Service) RunOnce(ctx context.Context) (retention.Result, BatchResult) {
	sweep := s.Sweep(ctx)
	return sweep, s.UploadBatch(ctx)
}

// Start launches the sweep loop, the upload loop and, if configured, the
// directory watcher. Both loops run once immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.lifecycle.SetCancel(cancel)

	if s.config.Watch {
		w, err := newDirWatcher(s.dir.Path(), s.config.DebounceDelay, s.Trigger, s.logger)
		if err != nil {
			// Polling still covers new dumps.
			s.logger.Warn("directory watcher disabled", ports.Path(s.dir.Path()), ports.Err(err))
		} else {
			s.lifecycle.Go(func() { w.run(runCtx) })
		}
	}

	s.lifecycle.Go(func() { s.sweepLoop(runCtx) })
	s.lifecycle.Go(func() { s.uploadLoop(runCtx) })

	return s.lifecycle.TransitionTo(StateRunning, "loops started")
}

// Stop cancels the loops and waits for the pass in progress to finish.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (s *Service) Stop() error {
	s.mu.Lock()

	if !s.lifecycle.CanStop() {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lifecycle.Cancel()
	s.mu.Unlock()

	err := s.lifecycle.Wait(ShutdownTimeout)
	if err != nil {
		_ = s.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Service) Status() State {
	return s.lifecycle.State()
}

// Trigger asks the upload loop for an early batch. It never blocks; triggers
// arriving while one is pending are merged.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Service) sweepLoop(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Service) uploadLoop(ctx context.Context) {
	bo := newBackoff(s.config.BackoffInitial, s.config.BackoffMax)

	run := func() {
		res := s.UploadBatch(ctx)
		if !res.Transient() || res.Canceled {
			bo.Reset()
			return
		}
		s.logger.Info("upload backing off", ports.Duration("delay", bo.Current()))
		_ = bo.Wait(ctx)
	}

	run()

	ticker := time.NewTicker(s.config.UploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		case <-s.trigger:
			run()
		}
	}
}
