package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookswap_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_requests_submitted_total",
		Help: "Count of exchange request submissions by result",
	}, []string{"result"})

	requestsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_requests_decided_total",
		Help: "Count of exchange request decisions by decision and result",
	}, []string{"decision", "result"})

	exchangeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_exchange_conflicts_total",
		Help: "Count of rejected exchange actions by reason",
	}, []string{"reason"})

	availableBooks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookswap_available_books",
		Help: "Number of books currently marked available",
	})

	pendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookswap_pending_requests",
		Help: "Number of requests still awaiting a decision",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSubmission records a request submission attempt with a result label.
func ObserveSubmission(result string) {
	requestsSubmitted.WithLabelValues(result).Inc()
}

// ObserveDecision records a decision attempt with decision and result labels.
func ObserveDecision(decision, result string) {
	requestsDecided.WithLabelValues(decision, result).Inc()
}

// ObserveConflict increments the conflict counter for the given reason.
func ObserveConflict(reason string) {
	exchangeConflicts.WithLabelValues(reason).Inc()
}

// SetAvailableBooks sets the available-books gauge.
func SetAvailableBooks(count int) {
	if count < 0 {
		count = 0
	}
	availableBooks.Set(float64(count))
}

// SetPendingRequests sets the pending-requests gauge.
func SetPendingRequests(count int) {
	if count < 0 {
		count = 0
	}
	pendingRequests.Set(float64(count))
}
