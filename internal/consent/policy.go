// Package consent decides whether a pending crash report may leave the machine.
package consent

import (
	"math/rand"

	"github.com/bft-labs/crashship/internal/domain"
)

// Policy implements ports.ConsentPolicy from the user's upload setting and a
// sampling rate.
type Policy struct {
	enabled    bool
	sampleRate float64
	draw       func() float64
}

// Option configures a Policy.
type Option func(*Policy)

// WithRandom replaces the sampling source, which must return values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(p *Policy) { p.draw = f }
}

// NewPolicy returns a policy. Rates are clamped to [0, 1].
func NewPolicy(enabled bool, sampleRate float64, opts ...Option) *Policy {
	switch {
	case sampleRate < 0:
		sampleRate = 0
	case sampleRate > 1:
		sampleRate = 1
	}
	p := &Policy{
		enabled:    enabled,
		sampleRate: sampleRate,
		draw:       rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide returns DecisionSkip when uploads are disabled or the report falls
// outside the sample.
func (p *Policy) Decide(domain.CrashFile) domain.Decision {
	if !p.enabled {
		return domain.DecisionSkip
	}
	if p.sampleRate >= 1 {
		return domain.DecisionUpload
	}
	if p.draw() < p.sampleRate {
		return domain.DecisionUpload
	}
	return domain.DecisionSkip
}

// Fixed is a ConsentPolicy that always returns the same decision.
type Fixed domain.Decision

// Decide returns the fixed decision.
func (f Fixed) Decide(domain.CrashFile) domain.Decision { return domain.Decision(f) }
