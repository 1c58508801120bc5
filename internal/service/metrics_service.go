package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	attemptsGraded  *prometheus.CounterVec
	certificates    prometheus.Counter
	exportsRendered *prometheus.CounterVec
	bankCacheHits   prometheus.Counter
	bankCacheMisses prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	attemptsGraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_attempts_graded_total",
		Help: "Total graded exam attempts",
	}, []string{"outcome"})

	certificates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "course_certificates_issued_total",
		Help: "Total course certificates issued",
	})

	exportsRendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "result_exports_rendered_total",
		Help: "Total rendered result exports",
	}, []string{"format", "status"})

	bankCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "question_bank_cache_hits_total",
		Help: "Question bank cache hits",
	})

	bankCacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "question_bank_cache_misses_total",
		Help: "Question bank cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, attemptsGraded, certificates, exportsRendered, bankCacheHits, bankCacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		attemptsGraded:  attemptsGraded,
		certificates:    certificates,
		exportsRendered: exportsRendered,
		bankCacheHits:   bankCacheHits,
		bankCacheMisses: bankCacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAttempt counts one graded attempt.
func (m *MetricsService) RecordAttempt(passed bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.attemptsGraded.WithLabelValues(outcome).Inc()
}

// RecordCertificate counts one issued certificate.
func (m *MetricsService) RecordCertificate() {
	if m == nil {
		return
	}
	m.certificates.Inc()
}

// RecordExport counts one finished or failed export render.
func (m *MetricsService) RecordExport(format string, success bool) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "finished"
	}
	m.exportsRendered.WithLabelValues(format, status).Inc()
}

// RecordBankCache counts a question bank cache lookup.
func (m *MetricsService) RecordBankCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.bankCacheHits.Inc()
		return
	}
	m.bankCacheMisses.Inc()
}
