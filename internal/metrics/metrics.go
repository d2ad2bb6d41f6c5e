// Package metrics exposes recording lifecycle metrics in Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/events"
)

// states lists every session state label of the state gauge
var states = []string{"idle", "building", "playing", "draining", "stopped", "failed"}

// Metrics holds Prometheus collectors for the recorder
type Metrics struct {
	registry *prometheus.Registry

	state         *prometheus.GaugeVec
	sessionsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	warningsTotal prometheus.Counter
	bytesWritten  prometheus.Counter
	drainSeconds  prometheus.Histogram
	verifiedTotal prometheus.Counter
}

// New creates and registers the recorder collectors on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_record_state",
			Help: "Current session state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_record_sessions_total",
			Help: "Finished recording sessions by outcome and cause",
		}, []string{"outcome", "cause"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_record_errors_total",
			Help: "Failed sessions by error category",
		}, []string{"category"}),
		warningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_record_warnings_total",
			Help: "Pipeline warnings across finished sessions",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_record_bytes_written_total",
			Help: "Bytes written to output files by finished sessions",
		}),
		drainSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_record_drain_seconds",
			Help:    "Time from drain request to end-of-stream at the sink",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		verifiedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_record_verified_files_total",
			Help: "Output files that passed MP4 verification",
		}),
	}

	registry.MustRegister(
		m.state,
		m.sessionsTotal,
		m.errorsTotal,
		m.warningsTotal,
		m.bytesWritten,
		m.drainSeconds,
		m.verifiedTotal,
	)
	m.setState("idle")

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe updates the collectors from one lifecycle event
func (m *Metrics) Observe(ev events.Event) {
	switch ev.Type {
	case events.TypeTransition:
		m.setState(ev.To)

	case events.TypeFinished:
		m.sessionsTotal.WithLabelValues("stopped", ev.Cause).Inc()
		m.warningsTotal.Add(float64(ev.Warnings))
		m.bytesWritten.Add(float64(ev.BytesWritten))
		if ev.DrainSeconds > 0 {
			m.drainSeconds.Observe(ev.DrainSeconds)
		}

	case events.TypeFailed:
		m.sessionsTotal.WithLabelValues("failed", ev.Cause).Inc()
		m.warningsTotal.Add(float64(ev.Warnings))
		m.bytesWritten.Add(float64(ev.BytesWritten))
		category := ev.ErrorCategory
		if category == "" {
			category = "unknown"
		}
		m.errorsTotal.WithLabelValues(category).Inc()

	case events.TypeVerified:
		m.verifiedTotal.Inc()
	}
}

// Consume observes events from ch until it is closed or ctx is done
func (m *Metrics) Consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.Observe(ev)
		}
	}
}

// Handler returns an http.Handler that serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) setState(current string) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}
