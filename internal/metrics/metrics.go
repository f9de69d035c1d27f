// Package metrics exposes the Prometheus collectors for the pipeline:
// cache gateway (C1), log query client (C2), orchestrator (C11), and LLM
// provider calls (C6). Collectors are package-level; the promauto ones
// register with the default registry at package init, and NewServer
// registers the rest exactly once, mirroring the teacher's
// internal/metrics.MetricsServer and safeRegister pattern.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// Cache gateway (C1)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_cache_hits_total",
			Help: "Total cache hits by tier",
		},
		[]string{"tier", "cache_type"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_cache_misses_total",
			Help: "Total cache misses by cache type",
		},
		[]string{"cache_type"},
	)
	CacheSetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_cache_sets_total",
			Help: "Total cache writes by tier",
		},
		[]string{"tier", "cache_type"},
	)
	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_cache_evictions_total",
			Help: "Total L1 LRU evictions",
		},
		[]string{"cache_type"},
	)
	CacheCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_cache_coalesced_total",
			Help: "Total single-flight coalesced callers",
		},
		[]string{"cache_type"},
	)
	CacheL2PingStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logforensics_cache_l2_ping_status",
		Help: "L2 cache store health (1 = reachable, 0 = unreachable)",
	})

	// Log query client (C2)
	LokiQueryHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_loki_query_hits_total",
			Help: "Total Loki result cache hits",
		},
		[]string{"tier"},
	)
	LokiQueryMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logforensics_loki_query_misses_total",
		Help: "Total Loki result cache misses",
	})
	LokiDownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logforensics_loki_downloads_total",
		Help: "Total Loki query downloads performed",
	})
	LokiErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_loki_errors_total",
			Help: "Total Loki query errors by class",
		},
		[]string{"class"},
	)
	LokiBytesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logforensics_loki_bytes_saved_total",
		Help: "Total bytes served from the Loki result cache instead of downloaded",
	})

	// Orchestrator (C11)
	OrchestratorStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logforensics_orchestrator_stage_duration_seconds",
			Help:    "Time spent in each orchestrator stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	OrchestratorRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_orchestrator_runs_total",
			Help: "Total orchestrator runs by terminal status",
		},
		[]string{"status"},
	)

	// LLM provider calls (C6)
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logforensics_llm_calls_total",
			Help: "Total LLM provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	LLMCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logforensics_llm_call_duration_seconds",
			Help:    "LLM provider call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	// Relevance analyzer (C10)
	RelevanceIgnoredByRuleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logforensics_relevance_ignored_by_rule_total",
		Help: "Traces classified ignored by the pre-filter without an LLM call",
	})
)

var metricsRegisteredOnce sync.Once

// safeRegister registers a collector, swallowing duplicate-registration
// panics so tests and repeated server construction don't abort.
func safeRegister(collector prometheus.Collector) {
	defer func() {
		recover()
	}()
	prometheus.MustRegister(collector)
}

// Server exposes /metrics and /health over HTTP.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer registers all collectors (once) and returns a metrics server
// listening on addr.
func NewServer(addr string, logger *logrus.Logger) *Server {
	metricsRegisteredOnce.Do(func() {
		safeRegister(CacheHitsTotal)
		safeRegister(CacheMissesTotal)
		safeRegister(CacheSetsTotal)
		safeRegister(CacheEvictionsTotal)
		safeRegister(CacheCoalescedTotal)
		safeRegister(CacheL2PingStatus)
		safeRegister(LokiQueryHitsTotal)
		safeRegister(LokiQueryMissesTotal)
		safeRegister(LokiDownloadsTotal)
		safeRegister(LokiErrorsTotal)
		safeRegister(LokiBytesSaved)
		safeRegister(OrchestratorStageDuration)
		safeRegister(OrchestratorRunsTotal)
		safeRegister(LLMCallsTotal)
		safeRegister(LLMCallDuration)
		safeRegister(RelevanceIgnoredByRuleTotal)
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start begins serving metrics in the background.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics server error")
		}
	}()
	return nil
}

// Stop shuts down the metrics server.
func (s *Server) Stop() error {
	s.logger.Info("stopping metrics server")
	return s.server.Close()
}

// Convenience recorders, one per component, mirroring the teacher's
// package-level Record* helper functions.

func RecordCacheHit(tier, cacheType string) {
	CacheHitsTotal.WithLabelValues(tier, cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

func RecordCacheSet(tier, cacheType string) {
	CacheSetsTotal.WithLabelValues(tier, cacheType).Inc()
}

func RecordCacheEviction(cacheType string) {
	CacheEvictionsTotal.WithLabelValues(cacheType).Inc()
}

func RecordCacheCoalesced(cacheType string) {
	CacheCoalescedTotal.WithLabelValues(cacheType).Inc()
}

func SetCacheL2PingStatus(reachable bool) {
	if reachable {
		CacheL2PingStatus.Set(1)
	} else {
		CacheL2PingStatus.Set(0)
	}
}

func RecordLokiQueryHit(tier string) {
	LokiQueryHitsTotal.WithLabelValues(tier).Inc()
}

func RecordLokiQueryMiss() {
	LokiQueryMissesTotal.Inc()
}

func RecordLokiDownload() {
	LokiDownloadsTotal.Inc()
}

func RecordLokiError(class string) {
	LokiErrorsTotal.WithLabelValues(class).Inc()
}

func RecordLokiBytesSaved(n int64) {
	LokiBytesSaved.Add(float64(n))
}

func RecordOrchestratorStage(stage string, d time.Duration) {
	OrchestratorStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func RecordOrchestratorRun(status string) {
	OrchestratorRunsTotal.WithLabelValues(status).Inc()
}

func RecordLLMCall(provider, outcome string, d time.Duration) {
	LLMCallsTotal.WithLabelValues(provider, outcome).Inc()
	LLMCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordRelevanceIgnoredByRule() {
	RelevanceIgnoredByRuleTotal.Inc()
}
