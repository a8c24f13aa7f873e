package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling engine.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	bookings         *prometheus.CounterVec
	bookedSlots      prometheus.Counter
	classChanges     *prometheus.CounterVec
	slotsGenerated   prometheus.Counter
	overReleases     prometheus.Counter
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	staleCacheWrites prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors on a private registry.
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

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_bookings_total",
		Help: "Booking attempts by kind (single|batch) and result code",
	}, []string{"kind", "result"})

	bookedSlots := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_booked_slots_total",
		Help: "Slots successfully bound to a student course",
	})

	classChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_class_changes_total",
		Help: "Reschedule/cancel requests by action and outcome or error code",
	}, []string{"action", "result"})

	slotsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_slots_generated_total",
		Help: "Slots persisted from availability templates",
	})

	overReleases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_ledger_over_release_total",
		Help: "Credit releases rejected because they would exceed purchased classes",
	})

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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	staleCacheWrites := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_slot_cache_stale_writes_total",
		Help: "Slot directory reads not cached because slots changed while they ran",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, bookings, bookedSlots, classChanges,
		slotsGenerated, overReleases, cacheLatency, cacheWrite, cacheHits, cacheMisses, staleCacheWrites, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		bookings:         bookings,
		bookedSlots:      bookedSlots,
		classChanges:     classChanges,
		slotsGenerated:   slotsGenerated,
		overReleases:     overReleases,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		staleCacheWrites: staleCacheWrites,
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordBooking counts a booking attempt; slots is the number of slots bound on success.
func (m *MetricsService) RecordBooking(kind string, err error, slots int) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(kind, resultLabel(err)).Inc()
	if err == nil {
		m.bookedSlots.Add(float64(slots))
	}
}

// RecordClassChange counts a workflow request by action and outcome (or error code).
func (m *MetricsService) RecordClassChange(action, result string) {
	if m == nil {
		return
	}
	m.classChanges.WithLabelValues(action, result).Inc()
}

// RecordSlotsGenerated counts slots persisted from a template.
func (m *MetricsService) RecordSlotsGenerated(n int) {
	if m == nil {
		return
	}
	m.slotsGenerated.Add(float64(n))
}

// RecordOverRelease counts ledger invariant breaches.
func (m *MetricsService) RecordOverRelease() {
	if m == nil {
		return
	}
	m.overReleases.Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordStaleCacheWrite counts directory reads dropped because a newer cache generation exists.
func (m *MetricsService) RecordStaleCacheWrite() {
	if m == nil {
		return
	}
	m.staleCacheWrites.Inc()
}
