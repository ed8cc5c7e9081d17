// Package metrics provides Prometheus metrics for the crash agent.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Noop implements ports.Metrics without emitting anything.
type Noop struct{}

func (Noop) IncUpload(string) {}
func (Noop) IncSweepDeleted(string) {}
func (Noop) IncSweepDeleteFailed() {}
func (Noop) SweepCompleted(time.Time, int) {}

// Prom implements ports.Metrics on its own registry so several instances can
// coexist in one process (and in tests).
type Prom struct {
	registry *prometheus.Registry

	uploads            *prometheus.CounterVec
	sweepDeleted       *prometheus.CounterVec
	sweepDeleteFailed  prometheus.Counter
	lastSweepTimestamp prometheus.Gauge
	filesKept          prometheus.Gauge
}

// NewProm creates the crash agent metrics under namespace.
func NewProm(namespace string) *Prom {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)
	return &Prom{
		registry: reg,
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Crash reports processed by the uploader, by outcome",
		}, []string{"outcome"}),
		sweepDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_total",
			Help:      "Files removed by the retention sweep, by reason",
		}, []string{"reason"}),
		sweepDeleteFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_delete_failures_total",
			Help:      "Files the retention sweep failed to remove",
		}),
		lastSweepTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time of the last completed retention sweep",
		}),
		filesKept: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_kept",
			Help:      "Files left in the crash directory after the last sweep",
		}),
	}
}

func (p *Prom) IncUpload(outcome string) { p.uploads.WithLabelValues(outcome).Inc() }

func (p *Prom) IncSweepDeleted(reason string) { p.sweepDeleted.WithLabelValues(reason).Inc() }

func (p *Prom) IncSweepDeleteFailed() { p.sweepDeleteFailed.Inc() }

func (p *Prom) SweepCompleted(at time.Time, kept int) {
	p.lastSweepTimestamp.Set(float64(at.Unix()))
	p.filesKept.Set(float64(kept))
}

// Registry returns the registry backing p.
func (p *Prom) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
