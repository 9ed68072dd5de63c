// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundtrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_tle_dataset_satellites",
			Help: "Number of satellites in the current TLE dataset.",
		},
	)

	tleDatasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_tle_dataset_age_seconds",
			Help: "Age of the current TLE dataset in seconds.",
		},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_tle_fetches_total",
			Help: "Total TLE catalog fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_propagation_duration_seconds",
			Help:    "Duration of whole-catalog snapshot propagation.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
	)

	propagationSatellitesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_propagation_satellites_total",
			Help: "Satellites propagated by outcome.",
		},
		[]string{"outcome"},
	)

	propagationWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_propagation_workers",
			Help: "Configured propagation worker pool size.",
		},
	)

	trackDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_track_generation_duration_seconds",
			Help:    "Duration of ground track generation.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
		},
	)

	trackPointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_track_points_total",
			Help: "Total ground track points generated.",
		},
	)

	trackExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_track_exports_total",
			Help: "Track exports by format.",
		},
		[]string{"format"},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_snapshot_cache_entries",
			Help: "Number of snapshots currently cached.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_snapshot_cache_hits_total",
			Help: "Snapshot cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_snapshot_cache_misses_total",
			Help: "Snapshot cache misses.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_snapshot_cache_evictions_total",
			Help: "Snapshot cache entries evicted.",
		},
	)

	cacheRegenerationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_snapshot_cache_regeneration_errors_total",
			Help: "Failures while generating snapshots for the cache.",
		},
	)

	cacheRegenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_snapshot_cache_regeneration_duration_seconds",
			Help:    "Duration of snapshot generation for the cache.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	cacheGracePeriodActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_snapshot_cache_grace_period_active",
			Help: "1 while the cache is rebuilding after a TLE dataset change.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_connections_total",
			Help: "SSE stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_streams_active",
			Help: "Currently connected SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		tleDatasetCount,
		tleDatasetAgeSeconds,
		tleFetchesTotal,
		propagationDurationSeconds,
		propagationSatellitesTotal,
		propagationWorkersActive,
		trackDurationSeconds,
		trackPointsTotal,
		trackExportsTotal,
		cacheEntries,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheRegenerationErrors,
		cacheRegenerationDuration,
		cacheGracePeriodActive,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// knownRoutes are the fixed paths the server registers. Anything else is
// either a parameterized track route or noise from scanners.
var knownRoutes = map[string]struct{}{
	"/":                        {},
	"/app.js":                  {},
	"/styles.css":              {},
	"/healthz":                 {},
	"/readyz":                  {},
	"/metrics":                 {},
	"/api/v1/satellites":       {},
	"/api/v1/timezones":        {},
	"/api/v1/track":            {},
	"/api/v1/track/csv":        {},
	"/api/v1/tle/metadata":     {},
	"/api/v1/tle/refresh":      {},
	"/api/v1/positions":        {},
	"/api/v1/stream/positions": {},
	"/api/v1/passes":           {},
}

// normalizeRoute collapses parameterized paths so the path label stays
// bounded. /api/v1/track/25544 and /api/v1/track/43013/csv both map to a
// single {norad_id} route; unrecognized paths share one "other" bucket.
func normalizeRoute(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/track/"); ok {
		id, suffix, _ := strings.Cut(rest, "/")
		if _, err := strconv.Atoi(id); err == nil {
			switch suffix {
			case "":
				return "/api/v1/track/{norad_id}"
			case "csv":
				return "/api/v1/track/{norad_id}/csv"
			case "msgpack":
				return "/api/v1/track/{norad_id}/msgpack"
			}
		}
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// SetTLEDatasetCount publishes the number of satellites in the dataset.
func SetTLEDatasetCount(n int) {
	tleDatasetCount.Set(float64(n))
}

// SetTLEDatasetAge publishes the age of the dataset in seconds.
func SetTLEDatasetAge(seconds float64) {
	tleDatasetAgeSeconds.Set(seconds)
}

// IncTLEFetch records one catalog fetch attempt ("success" or "error").
func IncTLEFetch(outcome string) {
	tleFetchesTotal.WithLabelValues(outcome).Inc()
}

// RecordPropagation records one whole-catalog snapshot propagation.
func RecordPropagation(d time.Duration, success, failed int) {
	propagationDurationSeconds.Observe(d.Seconds())
	propagationSatellitesTotal.WithLabelValues("success").Add(float64(success))
	propagationSatellitesTotal.WithLabelValues("error").Add(float64(failed))
}

// SetPropagationWorkersActive publishes the worker pool size.
func SetPropagationWorkersActive(n int) {
	propagationWorkersActive.Set(float64(n))
}

// RecordTrackGeneration records one ground track generation.
func RecordTrackGeneration(d time.Duration, points int) {
	trackDurationSeconds.Observe(d.Seconds())
	trackPointsTotal.Add(float64(points))
}

// IncTrackExport records one track export ("json", "csv" or "msgpack").
func IncTrackExport(format string) {
	trackExportsTotal.WithLabelValues(format).Inc()
}

// SetCacheEntries publishes the snapshot cache size.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// IncCacheHits records a snapshot cache hit.
func IncCacheHits() {
	cacheHitsTotal.Inc()
}

// IncCacheMisses records a snapshot cache miss.
func IncCacheMisses() {
	cacheMissesTotal.Inc()
}

// AddCacheEvictions records n evicted snapshots.
func AddCacheEvictions(n int) {
	cacheEvictionsTotal.Add(float64(n))
}

// IncCacheRegenerationErrors records a failed snapshot generation.
func IncCacheRegenerationErrors() {
	cacheRegenerationErrors.Inc()
}

// ObserveCacheRegenerationDuration records a snapshot generation duration.
func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenerationDuration.Observe(d.Seconds())
}

// SetCacheGracePeriodActive publishes whether a cache rebuild is in progress.
func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGracePeriodActive.Set(1)
	} else {
		cacheGracePeriodActive.Set(0)
	}
}

// IncStreamConnections records a stream "connect" or "disconnect" event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamsActive increments the active stream gauge.
func IncStreamsActive() {
	streamsActive.Inc()
}

// DecStreamsActive decrements the active stream gauge.
func DecStreamsActive() {
	streamsActive.Dec()
}

// IncStreamMessages records one SSE data message.
func IncStreamMessages() {
	streamMessagesTotal.Inc()
}

// AddStreamBytes records bytes written to a stream.
func AddStreamBytes(n int64) {
	streamBytesTotal.Add(float64(n))
}

// IncStreamErrors records a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}
