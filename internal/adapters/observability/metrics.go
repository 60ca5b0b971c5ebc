package observability

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "capcorn", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "capcorn", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	BridgeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "capcorn", Name: "bridge_requests_total", Help: "Outbound bridge requests."},
		[]string{"endpoint", "status"},
	)
	BridgeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "capcorn", Name: "bridge_request_duration_seconds",
			Help:    "Outbound bridge request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "capcorn", Name: "sync_runs_total", Help: "Full synchronization runs."},
		[]string{"result"}, // result: ok|partial|refused
	)
	ResourceSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "capcorn", Name: "resource_syncs_total", Help: "Per-resource sync outcomes."},
		[]string{"kind", "result"}, // result: ok|error
	)
	ResourceSyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "capcorn", Name: "resource_sync_duration_seconds",
			Help:    "Per-resource sync duration seconds.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "capcorn", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, BridgeRequests, BridgeLatency,
		SyncRuns, ResourceSyncs, ResourceSyncDuration, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveBridge(endpoint string, status int, dur time.Duration) {
	BridgeRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	BridgeLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func ObserveResourceSync(kind string, err error, dur time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ResourceSyncs.WithLabelValues(kind, result).Inc()
	ResourceSyncDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

func ObserveRun(result string) { SyncRuns.WithLabelValues(result).Inc() }

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
