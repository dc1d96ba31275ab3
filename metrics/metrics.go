// Package metrics exposes ledger and HTTP instrumentation to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopbook"

// Metrics holds every collector. It satisfies bookkeeping.Recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	Recalculations      *prometheus.CounterVec
	RecalculationErrors *prometheus.CounterVec
	RecalcDuration      *prometheus.HistogramVec
	MirrorSyncs         *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg. Tests pass their own registry.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		Recalculations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalculations_total",
			Help:      "Whole-ledger recalculations, by ledger.",
		}, []string{"ledger"}),
		RecalculationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalculation_errors_total",
			Help:      "Recalculations that failed and left derived fields stale.",
		}, []string{"ledger"}),
		RecalcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalculation_duration_seconds",
			Help:      "Time spent folding and writing one ledger.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"ledger"}),
		MirrorSyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_sync_total",
			Help:      "CUSTOMER_DIRECT mirror writes, by action (create, delete).",
		}, []string{"action"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
	}
}

// ObserveRecalculation records one recalculation attempt.
func (m *Metrics) ObserveRecalculation(ledger string, d time.Duration, err error) {
	m.Recalculations.WithLabelValues(ledger).Inc()
	m.RecalcDuration.WithLabelValues(ledger).Observe(d.Seconds())
	if err != nil {
		m.RecalculationErrors.WithLabelValues(ledger).Inc()
	}
}

// MirrorSynced records one mirror write.
func (m *Metrics) MirrorSynced(action string) {
	m.MirrorSyncs.WithLabelValues(action).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method string, status int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
