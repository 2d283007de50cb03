package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tourism_transport"

// Metrics holds the Prometheus collectors of the dispatch service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	operations       *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	sideEffectErrors *prometheus.CounterVec
	fareEstimates    *prometheus.HistogramVec
	locationUpdates  prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operations_total",
			Help: "Dispatch operations by name and outcome",
		}, []string{"operation", "outcome"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_transitions_total",
			Help: "Transport request status transitions",
		}, []string{"from", "to"}),
		sideEffectErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "side_effect_errors_total",
			Help: "Best-effort side effects that failed",
		}, []string{"effect"}),
		fareEstimates: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fare_estimate",
			Help:    "Estimated fares by vehicle type",
			Buckets: []float64{50, 75, 100, 150, 200, 300, 500, 1000},
		}, []string{"vehicle_type"}),
		locationUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "driver_location_updates_total",
			Help: "Driver location pings received",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total HTTP requests handled",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

// Operation counts one gateway operation. outcome is "ok" or an error code.
func (m *Metrics) Operation(name, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// SideEffectFailed counts a failed best-effort side effect such as a booking
// sync, an event publish or a driver statistics update.
func (m *Metrics) SideEffectFailed(effect string) {
	if m == nil {
		return
	}
	m.sideEffectErrors.WithLabelValues(effect).Inc()
}

func (m *Metrics) FareEstimated(vehicleType string, total float64) {
	if m == nil {
		return
	}
	m.fareEstimates.WithLabelValues(vehicleType).Observe(total)
}

func (m *Metrics) LocationUpdated() {
	if m == nil {
		return
	}
	m.locationUpdates.Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
}
