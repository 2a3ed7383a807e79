// Package metrics exposes the application's Prometheus collectors, grounded
// on the teacher's internal/app/metrics.metrics.go (registry-plus-helpers
// shape), generalized from blockchain-specific counters to the marketplace
// components this module actually runs.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hustlexp",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hustlexp",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hustlexp",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	outboxClaims = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hustlexp",
		Subsystem: "outbox",
		Name:      "rows_claimed_total",
		Help:      "Total number of outbox rows claimed by the dispatcher.",
	}, []string{"queue"})

	outboxDispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hustlexp",
		Subsystem: "outbox",
		Name:      "dispatches_total",
		Help:      "Total number of outbox row deliveries, by result.",
	}, []string{"event_type", "result"})

	outboxDispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hustlexp",
		Subsystem: "outbox",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of a single outbox row handler invocation.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"event_type"})

	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hustlexp",
		Subsystem: "webhook",
		Name:      "stripe_events_total",
		Help:      "Total Stripe webhook deliveries, by result.",
	}, []string{"type", "result"})

	escrowTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hustlexp",
		Subsystem: "escrow",
		Name:      "transitions_total",
		Help:      "Total escrow state transitions.",
	}, []string{"to_state"})

	supplyGateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hustlexp",
		Subsystem: "supply",
		Name:      "gate_decisions_total",
		Help:      "Total supply admission gate decisions.",
	}, []string{"decision"})

	correctionsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hustlexp",
		Subsystem: "correction",
		Name:      "applied_total",
		Help:      "Total corrections applied, by type.",
	}, []string{"type"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		outboxClaims,
		outboxDispatches,
		outboxDispatchDuration,
		webhookEvents,
		escrowTransitions,
		supplyGateDecisions,
		correctionsApplied,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordOutboxClaim records a batch claim from a given queue.
func RecordOutboxClaim(queue string, n int) {
	if n <= 0 {
		return
	}
	outboxClaims.WithLabelValues(queue).Add(float64(n))
}

// RecordOutboxDispatch records a single handler invocation's outcome.
func RecordOutboxDispatch(eventType string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	outboxDispatches.WithLabelValues(eventType, result).Inc()
	outboxDispatchDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordWebhookEvent records a Stripe webhook delivery outcome.
func RecordWebhookEvent(eventType, result string) {
	webhookEvents.WithLabelValues(eventType, result).Inc()
}

// RecordEscrowTransition records an escrow reaching toState.
func RecordEscrowTransition(toState string) {
	escrowTransitions.WithLabelValues(toState).Inc()
}

// RecordSupplyGateDecision records a supply admission gate outcome.
func RecordSupplyGateDecision(decision string) {
	supplyGateDecisions.WithLabelValues(decision).Inc()
}

// RecordCorrectionApplied records a correction of the given type being applied.
func RecordCorrectionApplied(correctionType string) {
	correctionsApplied.WithLabelValues(correctionType).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	return "/" + parts[0]
}
