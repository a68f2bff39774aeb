package service

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, sync runs and the relationship cache.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	syncRecords     *prometheus.CounterVec
	syncRollbacks   prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
	runCount       uint64
}

// NewMetricsService registers the collectors on a private registry.
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

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Total sync runs by mode and outcome",
	}, []string{"mode", "outcome"})

	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Wall time of sync runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"mode"})

	syncRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_total",
		Help: "Records processed by entity kind and outcome",
	}, []string{"kind", "outcome"})

	syncRollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_rollbacks_total",
		Help: "Sync runs that were rolled back",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relationship_cache_hits_total",
		Help: "Relationship cache hits",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relationship_cache_misses_total",
		Help: "Relationship cache misses",
	})

	registry.MustRegister(requestDuration, requestTotal, syncRuns, syncDuration, syncRecords, syncRollbacks, cacheHits, cacheMisses)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncRuns:        syncRuns,
		syncDuration:    syncDuration,
		syncRecords:     syncRecords,
		syncRollbacks:   syncRollbacks,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveSyncRun records the outcome of one sync run.
func (s *MetricsService) ObserveSyncRun(mode string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	s.syncRuns.WithLabelValues(mode, outcome).Inc()
	s.syncDuration.WithLabelValues(mode).Observe(duration.Seconds())
	atomic.AddUint64(&s.runCount, 1)
}

// ObserveSyncRecords folds one run's per-kind counters into the totals.
func (s *MetricsService) ObserveSyncRecords(kind string, counts models.EntityCounts) {
	if counts.Created > 0 {
		s.syncRecords.WithLabelValues(kind, "created").Add(float64(counts.Created))
	}
	if counts.Updated > 0 {
		s.syncRecords.WithLabelValues(kind, "updated").Add(float64(counts.Updated))
	}
	if counts.Skipped > 0 {
		s.syncRecords.WithLabelValues(kind, "skipped").Add(float64(counts.Skipped))
	}
}

// ObserveRollback counts one rolled-back run.
func (s *MetricsService) ObserveRollback() {
	s.syncRollbacks.Inc()
}

// ObserveCache records a relationship cache lookup.
func (s *MetricsService) ObserveCache(hit bool) {
	if hit {
		s.cacheHits.Inc()
		atomic.AddUint64(&s.cacheHitCount, 1)
		return
	}
	s.cacheMisses.Inc()
	atomic.AddUint64(&s.cacheMissCount, 1)
}

// MetricsSnapshot is a lightweight summary for API consumption, cheaper
// than scraping and parsing the Prometheus exposition format.
type MetricsSnapshot struct {
	SyncRuns      uint64  `json:"sync_runs"`
	CacheHits     uint64  `json:"cache_hits"`
	CacheMisses   uint64  `json:"cache_misses"`
	CacheHitRatio float64 `json:"cache_hit_ratio"`
}

// Snapshot returns the current counters.
func (s *MetricsService) Snapshot() MetricsSnapshot {
	hits := atomic.LoadUint64(&s.cacheHitCount)
	misses := atomic.LoadUint64(&s.cacheMissCount)
	snapshot := MetricsSnapshot{
		SyncRuns:    atomic.LoadUint64(&s.runCount),
		CacheHits:   hits,
		CacheMisses: misses,
	}
	if total := hits + misses; total > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(total)
	}
	return snapshot
}
