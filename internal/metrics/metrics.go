// Package metrics exposes Prometheus collectors for the reservation engine
// and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parkalot"

var (
	// ReservationsCreated counts persisted reservations.
	// Labels: kind (one_time, recurring_base, chain_member)
	ReservationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reservations",
		Name:      "created_total",
		Help:      "Reservations persisted, by kind",
	}, []string{"kind"})

	// ValidationFailures counts rejected submissions.
	// Labels: operation (create, update), field, code
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reservations",
		Name:      "validation_failures_total",
		Help:      "Validation failures by operation, field and error code",
	}, []string{"operation", "field", "code"})

	// Extensions counts applied extension edits.
	// Labels: direction (increase, decrease)
	Extensions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reservations",
		Name:      "extensions_total",
		Help:      "Extension edits applied",
	}, []string{"direction"})

	// Cancellations counts cancelled reservations.
	Cancellations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reservations",
		Name:      "cancelled_total",
		Help:      "Reservations cancelled",
	})

	// Completed counts reservations closed by housekeeping.
	Completed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "housekeeping",
		Name:      "completed_total",
		Help:      "Reservations marked completed after their end time",
	})

	// LoginAttempts counts login attempts.
	// Labels: result (success, failure, throttled)
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by result",
	}, []string{"result"})

	// RequestDuration measures HTTP handler latency.
	// Labels: method, status
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "status"})
)

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method string, status int, elapsed time.Duration) {
	RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
