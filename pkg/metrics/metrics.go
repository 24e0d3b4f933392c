// Package metrics exposes the Prometheus metrics shared by the Authority,
// Worker, and Synchronizer services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PermissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_permissions_total",
			Help: "Total number of permissions added",
		},
	)

	WindowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warden_window_duration_seconds",
			Help:    "Duration of one full advance/update/sync/promote window",
			Buckets: prometheus.DefBuckets,
		},
	)

	WitnessRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warden_witness_refresh_duration_seconds",
			Help:    "Duration of the Worker's batched parallel witness refresh",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_action_requests_total",
			Help: "Total number of action requests by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_http_requests_total",
			Help: "Total number of HTTP requests by service, path, and status",
		},
		[]string{"service", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(PermissionsTotal)
	prometheus.MustRegister(WindowDuration)
	prometheus.MustRegister(WitnessRefreshDuration)
	prometheus.MustRegister(ActionRequestsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler returns the Prometheus HTTP handler for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an in-flight operation for later observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
