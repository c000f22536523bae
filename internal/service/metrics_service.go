package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the register API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	promotionBatches  *prometheus.CounterVec
	studentsPromoted  prometheus.Counter
	fieldChanges      *prometheus.CounterVec
	fieldActivations  prometheus.Counter
	statusTransitions prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	promotionBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_batches_total",
		Help: "Bulk promotion batches by result",
	}, []string{"result"})

	studentsPromoted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "students_promoted_total",
		Help: "Enrollment records committed by promotion batches",
	})

	fieldChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "field_changes_total",
		Help: "Accepted field-change requests by mode",
	}, []string{"mode"})

	fieldActivations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "field_activations_total",
		Help: "Staged field changes applied by the activation sweep",
	})

	statusTransitions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "status_transitions_total",
		Help: "Status interval transitions",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, promotionBatches, studentsPromoted, fieldChanges, fieldActivations,
		statusTransitions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		promotionBatches:  promotionBatches,
		studentsPromoted:  studentsPromoted,
		fieldChanges:      fieldChanges,
		fieldActivations:  fieldActivations,
		statusTransitions: statusTransitions,
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordPromotionBatch counts a bulk promotion outcome.
func (m *MetricsService) RecordPromotionBatch(committed int, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
		m.studentsPromoted.Add(float64(committed))
	}
	m.promotionBatches.WithLabelValues(result).Inc()
}

// RecordFieldChange counts an accepted field-change request.
func (m *MetricsService) RecordFieldChange(staged bool) {
	if m == nil {
		return
	}
	mode := "immediate"
	if staged {
		mode = "staged"
	}
	m.fieldChanges.WithLabelValues(mode).Inc()
}

// RecordFieldActivations counts staged changes applied by the sweep.
func (m *MetricsService) RecordFieldActivations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fieldActivations.Add(float64(n))
}

// RecordStatusTransition counts a status timeline transition.
func (m *MetricsService) RecordStatusTransition() {
	if m == nil {
		return
	}
	m.statusTransitions.Inc()
}
