package crashship

import (
	"github.com/bft-labs/crashship/internal/app"
	"github.com/bft-labs/crashship/internal/metrics"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/log"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// ConsentPolicy decides whether a pending report may be uploaded.
type ConsentPolicy = ports.ConsentPolicy

// Option configures optional behavior of an Agent.
type Option func(*options)

type options struct {
	httpClient   ports.HTTPClient
	logger       ports.Logger
	consent      ports.ConsentPolicy
	metrics      *metrics.Prom
	eventHandler EventHandler
}

func defaultOptions(client HTTPClient) options {
	return options{
		httpClient: client,
		logger:     log.NewNoopLogger(),
	}
}

// WithHTTPClient sets a custom HTTP client for uploads.
// If not provided, a client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConsentPolicy replaces the policy built from UploadEnabled and SampleRate.
func WithConsentPolicy(p ConsentPolicy) Option {
	return func(o *options) {
		o.consent = p
	}
}

// WithMetrics enables Prometheus metrics under namespace; see Agent.MetricsHandler.
func WithMetrics(namespace string) Option {
	return func(o *options) {
		o.metrics = metrics.NewProm(namespace)
	}
}

// WithEventHandler sets a handler for lifecycle events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// StateChangeEvent describes one lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives lifecycle events synchronously.
type EventHandler interface {
	OnStateChange(e StateChangeEvent)
}

// eventEmitterWrapper adapts EventHandler to app.EventEmitter.
type eventEmitterWrapper struct {
	handler EventHandler
}

var _ app.EventEmitter = eventEmitterWrapper{}

func (e eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}
