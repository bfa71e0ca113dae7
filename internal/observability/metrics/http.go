package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	evidenceRequestsTotal *prometheus.CounterVec
	evidenceItems         *prometheus.HistogramVec
	evidenceDuration      *prometheus.HistogramVec
	degradedTotal         *prometheus.CounterVec
	accessDecisionsTotal  *prometheus.CounterVec
	claimVerdictsTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "evp",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	evidenceRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evp",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total evidence queries by requester role and outcome.",
		},
		[]string{"service", "role", "outcome"},
	)
	evidenceItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evp",
			Subsystem: "pipeline",
			Name:      "evidence_items",
			Help:      "Distribution of evidence items per successful query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 12, 20},
		},
		[]string{"service"},
	)
	evidenceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evp",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Evidence pipeline execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evp",
			Subsystem: "pipeline",
			Name:      "degraded_total",
			Help:      "Total degraded evidence packs by reason.",
		},
		[]string{"service", "reason"},
	)
	accessDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evp",
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Total access decisions by role and decision.",
		},
		[]string{"service", "role", "decision"},
	)
	claimVerdictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evp",
			Subsystem: "verify",
			Name:      "claim_verdicts_total",
			Help:      "Total verified answer claims by verdict.",
		},
		[]string{"service", "verdict"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		evidenceRequestsTotal,
		evidenceItems,
		evidenceDuration,
		degradedTotal,
		accessDecisionsTotal,
		claimVerdictsTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		evidenceRequestsTotal: evidenceRequestsTotal,
		evidenceItems:         evidenceItems,
		evidenceDuration:      evidenceDuration,
		degradedTotal:         degradedTotal,
		accessDecisionsTotal:  accessDecisionsTotal,
		claimVerdictsTotal:    claimVerdictsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/evidence/"):
		return "/v1/evidence/query"
	case strings.HasPrefix(path, "/v1/answers/"):
		return "/v1/answers/verify"
	default:
		return path
	}
}

// RecordEvidenceQuery observes one completed pipeline run. Outcome is
// "ok" or "degraded" for successes; denials and failures go through
// RecordAccessDecision and the HTTP status counter instead.
func (m *HTTPServerMetrics) RecordEvidenceQuery(service, role string, items int, degraded bool, duration time.Duration) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	if role == "" {
		role = "unknown"
	}
	m.evidenceRequestsTotal.WithLabelValues(service, role, outcome).Inc()
	m.evidenceItems.WithLabelValues(service).Observe(float64(items))
	m.evidenceDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordDegradedReason(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.degradedTotal.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordAccessDecision(service, role, decision string) {
	if role == "" {
		role = "unknown"
	}
	if decision == "" {
		decision = "unknown"
	}
	m.accessDecisionsTotal.WithLabelValues(service, role, decision).Inc()
}

func (m *HTTPServerMetrics) RecordClaimVerdict(service, verdict string) {
	if verdict == "" {
		verdict = "unknown"
	}
	m.claimVerdictsTotal.WithLabelValues(service, verdict).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
