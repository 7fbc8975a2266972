// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the redboard Prometheus collectors.
type Registry struct {
	// Pipeline step timings, labeled by step and result.
	StepDuration *prometheus.HistogramVec

	// Source degradations, labeled by the sub-metric that went to zero.
	SourceFailures *prometheus.CounterVec

	// Review persistence outcomes: created / duplicate / error.
	ReviewsCreated *prometheus.CounterVec

	// Cache effectiveness for the sector snapshot cache.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

var (
	defaultRegistry *Registry
	registerOnce    sync.Once
)

// NewRegistry builds the collector set without registering it.
func NewRegistry() *Registry {
	return &Registry{
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redboard_step_duration_seconds",
				Help:    "Duration of each review pipeline step in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"step", "result"},
		),
		SourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redboard_source_failures_total",
				Help: "Total data source failures by degraded sub-metric",
			},
			[]string{"step"},
		),
		ReviewsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redboard_reviews_created_total",
				Help: "Review creation attempts by outcome",
			},
			[]string{"outcome"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redboard_sector_cache_hits_total",
			Help: "Sector cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redboard_sector_cache_misses_total",
			Help: "Sector cache misses",
		}),
	}
}

// Register attaches the collectors to a Prometheus registerer.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.StepDuration,
		r.SourceFailures,
		r.ReviewsCreated,
		r.CacheHits,
		r.CacheMisses,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the process-wide registry, registered against the
// Prometheus default registerer on first use.
func Default() *Registry {
	registerOnce.Do(func() {
		defaultRegistry = NewRegistry()
		_ = defaultRegistry.Register(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}
