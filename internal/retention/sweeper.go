// Package retention bounds the crash directory by age and by the number of
// report groups kept.
package retention

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/bft-labs/crashship/internal/crashdir"
	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/metrics"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/crashfile"
	"github.com/bft-labs/crashship/pkg/log"
)

const (
	// DefaultMaxAge is how long any file other than the upload log may stay.
	DefaultMaxAge = 30 * 24 * time.Hour

	// DefaultMaxGroups caps the number of base ids kept.
	DefaultMaxGroups = 10
)

// Reason explains why the sweep removed a file.
type Reason string

const (
	ReasonUploaded  Reason = "uploaded"
	ReasonTemporary Reason = "temporary"
	ReasonExpired   Reason = "expired"
	ReasonOverLimit Reason = "over_limit"
)

// Config holds the retention limits.
type Config struct {
	// MaxAge is the age past which a file is removed regardless of grouping.
	// Default: 30 days
	MaxAge time.Duration

	// MaxGroups is how many distinct base ids survive, most recent first.
	// Default: 10
	MaxGroups int
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxAge:    DefaultMaxAge,
		MaxGroups: DefaultMaxGroups,
	}
}

// Result summarises one sweep.
type Result struct {
	Deleted  map[Reason]int
	Kept     int
	Failed   int
	Canceled bool
}

// Total returns the number of files removed.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Deleted {
		n += c
	}
	return n
}

// Sweeper removes files from a crash directory. It never creates or renames.
type Sweeper struct {
	dir     *crashdir.Directory
	cfg     Config
	logger  ports.Logger
	metrics ports.Metrics
	now     func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m ports.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a sweeper for dir. Zero limits fall back to the defaults.
func New(dir *crashdir.Directory, cfg Config, opts ...Option) *Sweeper {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.MaxGroups <= 0 {
		cfg.MaxGroups = DefaultMaxGroups
	}
	s := &Sweeper{
		dir:     dir,
		cfg:     cfg,
		logger:  log.NewNoopLogger(),
		metrics: metrics.Noop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one retention pass over a single snapshot of the directory:
//
//  1. uploaded files are removed;
//  2. scratch files are removed;
//  3. walking the rest most recent first, the upload log is kept, anything older
//     than MaxAge is removed, and a file survives only if its base id is among
//     the first MaxGroups distinct base ids seen.
//
// Removal failures are logged and counted; the next sweep retries them.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	res := Result{Deleted: map[Reason]int{}}
	files := s.dir.List(crashdir.All)

	remaining := make([]domain.CrashFile, 0, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			res.Canceled = true
			return res
		}
		switch {
		case f.Role == crashfile.RoleUploaded:
			s.remove(f, ReasonUploaded, &res)
		case crashfile.IsTemporary(f.Path):
			s.remove(f, ReasonTemporary, &res)
		default:
			remaining = append(remaining, f)
		}
	}

	now := s.now()
	kept := make(map[string]struct{}, s.cfg.MaxGroups)
	for _, f := range remaining {
		if ctx.Err() != nil {
			res.Canceled = true
			return res
		}
		if crashfile.IsUploadLog(f.Path) {
			res.Kept++
			continue
		}
		if now.Sub(f.ModTime) > s.cfg.MaxAge {
			s.remove(f, ReasonExpired, &res)
			continue
		}
		if _, ok := kept[f.BaseID]; !ok && len(kept) < s.cfg.MaxGroups {
			kept[f.BaseID] = struct{}{}
		}
		if _, ok := kept[f.BaseID]; ok {
			res.Kept++
			continue
		}
		s.remove(f, ReasonOverLimit, &res)
	}

	s.metrics.SweepCompleted(now, res.Kept)
	if res.Total() > 0 || res.Failed > 0 {
		s.logger.Info("crash dir sweep completed",
			ports.Path(s.dir.Path()),
			ports.Int("uploaded", res.Deleted[ReasonUploaded]),
			ports.Int("temporary", res.Deleted[ReasonTemporary]),
			ports.Int("expired", res.Deleted[ReasonExpired]),
			ports.Int("over_limit", res.Deleted[ReasonOverLimit]),
			ports.Int("failed", res.Failed),
			ports.Int("kept", res.Kept))
	}
	return res
}

func (s *Sweeper) remove(f domain.CrashFile, reason Reason, res *Result) {
	err := s.dir.Remove(f)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("crash dir sweep: remove failed",
			ports.Path(f.Path),
			ports.String("reason", string(reason)),
			ports.Err(err))
		s.metrics.IncSweepDeleteFailed()
		res.Failed++
		return
	}
	s.logger.Debug("crash dir sweep: removed", ports.Path(f.Path), ports.String("reason", string(reason)))
	s.metrics.IncSweepDeleted(string(reason))
	res.Deleted[reason]++
}
