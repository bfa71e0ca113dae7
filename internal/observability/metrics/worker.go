package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	appendTotal    *prometheus.CounterVec
	appendDuration *prometheus.HistogramVec
	appendInFlight prometheus.Gauge
	queueLag       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	appendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evp",
			Subsystem: "worker",
			Name:      "audit_append_total",
			Help:      "Total persisted audit records by status.",
		},
		[]string{"service", "status"},
	)
	appendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evp",
			Subsystem: "worker",
			Name:      "audit_append_duration_seconds",
			Help:      "Audit record persistence duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	appendInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "evp",
			Subsystem: "worker",
			Name:      "audit_append_in_flight",
			Help:      "Number of in-flight audit record writes.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evp",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between the access decision and its persistence.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(appendTotal, appendDuration, appendInFlight, queueLag)

	return &WorkerMetrics{
		registry:       registry,
		appendTotal:    appendTotal,
		appendDuration: appendDuration,
		appendInFlight: appendInFlight,
		queueLag:       queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartAppend() {
	m.appendInFlight.Inc()
}

func (m *WorkerMetrics) FinishAppend(service string, duration time.Duration, err error) {
	m.appendInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.appendTotal.WithLabelValues(service, status).Inc()
	m.appendDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
