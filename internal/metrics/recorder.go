package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bindery/internal/monitoring"
)

const namespace = "bindery"

// Recorder holds the relocation and monitoring collectors.
type Recorder struct {
	registry *prometheus.Registry

	items         *prometheus.CounterVec
	batches       prometheus.Counter
	batchDuration prometheus.Histogram
	reconciled    *prometheus.CounterVec
	events        *prometheus.CounterVec
}

// NewRecorder creates a registry with process and Go collectors plus the
// bindery collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: reg,
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relocation",
			Name:      "items_total",
			Help:      "Relocation items by final state and reason",
		}, []string{"state", "reason"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relocation",
			Name:      "batches_total",
			Help:      "Completed relocation batches",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relocation",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of relocation batches",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "entries_total",
			Help:      "Staged files handled by reconciliation, by resolution",
		}, []string{"resolution"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitoring",
			Name:      "events_total",
			Help:      "Debounced library change events by operation",
		}, []string{"op"}),
	}
	reg.MustRegister(r.items, r.batches, r.batchDuration, r.reconciled, r.events)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ItemFinished counts one relocation item.
func (r *Recorder) ItemFinished(state, reason string) {
	if r == nil {
		return
	}
	r.items.WithLabelValues(state, reason).Inc()
}

// BatchFinished counts a batch and observes its duration.
func (r *Recorder) BatchFinished(duration time.Duration) {
	if r == nil {
		return
	}
	r.batches.Inc()
	r.batchDuration.Observe(duration.Seconds())
}

// Reconciled counts one reconciliation entry.
func (r *Recorder) Reconciled(resolution string) {
	if r == nil {
		return
	}
	r.reconciled.WithLabelValues(resolution).Inc()
}

// MonitoredLibraries registers a gauge reporting count() at scrape time.
func (r *Recorder) MonitoredLibraries(count func() int) error {
	return r.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitoring",
		Name:      "libraries",
		Help:      "Libraries currently monitored for changes",
	}, func() float64 {
		return float64(count())
	}))
}

// CountingSink counts events before handing them to next.
func (r *Recorder) CountingSink(next monitoring.EventSink) monitoring.EventSink {
	return monitoring.SinkFunc(func(ctx context.Context, event monitoring.Event) {
		if r != nil {
			r.events.WithLabelValues(event.Op.String()).Inc()
		}
		if next != nil {
			next.HandleEvent(ctx, event)
		}
	})
}
