package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medscribe/notequeue/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EntriesEnqueued      *prometheus.CounterVec
	EntriesFinished      *prometheus.CounterVec
	ProcessingLatency    *prometheus.HistogramVec
	TranslationFallbacks prometheus.Counter
	DispatchQueueDepth   prometheus.Gauge
	ActiveEntries        *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntriesEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_entries_enqueued_total",
			Help: "Total number of queue entries created, including regenerations.",
		}, []string{"kind"}),

		EntriesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_entries_finished_total",
			Help: "Total number of queue entries that reached a terminal status.",
		}, []string{"kind", "status"}),

		ProcessingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queue_processing_seconds",
			Help:    "Time from dispatch pickup to terminal status.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"kind"}),

		TranslationFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "translation_fallbacks_total",
			Help: "Number of dispatches that generated from untranslated text after a translation failure.",
		}),

		DispatchQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Jobs accepted but not yet picked up by a dispatch worker.",
		}),

		ActiveEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_active_entries",
			Help: "Current number of active queue entries by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.EntriesEnqueued,
		m.EntriesFinished,
		m.ProcessingLatency,
		m.TranslationFallbacks,
		m.DispatchQueueDepth,
		m.ActiveEntries,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so the worker package stays import-free.
func (m *Metrics) WorkerHooks() (
	onFinished func(domain.NoteKind, domain.Status, time.Duration),
	onTranslationFallback func(),
) {
	onFinished = func(kind domain.NoteKind, status domain.Status, latency time.Duration) {
		m.EntriesFinished.WithLabelValues(string(kind), string(status)).Inc()
		m.ProcessingLatency.WithLabelValues(string(kind)).Observe(latency.Seconds())
	}
	onTranslationFallback = func() {
		m.TranslationFallbacks.Inc()
	}
	return
}

// OnEnqueued is passed to the queue service.
func (m *Metrics) OnEnqueued(kind domain.NoteKind) {
	m.EntriesEnqueued.WithLabelValues(string(kind)).Inc()
}

// ObserveSnapshot publishes the monitor's view of the active set.
func (m *Metrics) ObserveSnapshot(counts map[domain.Status]int, dispatchDepth int) {
	for status, n := range counts {
		m.ActiveEntries.WithLabelValues(string(status)).Set(float64(n))
	}
	m.DispatchQueueDepth.Set(float64(dispatchDepth))
}
