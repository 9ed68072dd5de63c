package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/auth"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/cache"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/health"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/stream"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/track"
)

// TLEConfig holds TLE source configuration loaded from environment variables
// and the optional config file.
type TLEConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(
	addr string,
	logger *slog.Logger,
	authCfg auth.Config,
	store *tle.Store,
	tleCfg TLEConfig,
	gen *track.Generator,
	snapCache *cache.SnapshotCache,
	streamHandler *stream.Handler,
	timezones []string,
	webContent fs.FS,
) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return store.Get() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/satellites", satellitesHandler(store))
	mux.HandleFunc("GET /api/v1/timezones", timezonesHandler(timezones))

	mux.HandleFunc("GET /api/v1/track/{norad_id}", catalogTrackHandler(logger, store, gen, formatJSON))
	mux.HandleFunc("GET /api/v1/track/{norad_id}/csv", catalogTrackHandler(logger, store, gen, formatCSV))
	mux.HandleFunc("GET /api/v1/track/{norad_id}/msgpack", catalogTrackHandler(logger, store, gen, formatMsgpack))
	mux.HandleFunc("POST /api/v1/track", customTrackHandler(logger, gen, formatJSON))
	mux.HandleFunc("POST /api/v1/track/csv", customTrackHandler(logger, gen, formatCSV))

	mux.HandleFunc("GET /api/v1/tle/metadata", tleMetadataHandler(store))
	mux.HandleFunc("POST /api/v1/tle/refresh", tleRefreshHandler(logger, store, tleCfg))

	mux.HandleFunc("GET /api/v1/positions", positionsHandler(snapCache))
	mux.HandleFunc("GET /api/v1/stream/positions", streamHandler.HandlePositions)

	mux.HandleFunc("GET /api/v1/passes", passesHandler(logger, store))

	// Embedded frontend; FileServer serves index.html at the root.
	mux.Handle("GET /", http.FileServerFS(webContent))

	// Middleware chain: metrics -> request id -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestIDMiddleware assigns each request a UUID (or keeps the caller's
// X-Request-ID) and echoes it in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID returns the request ID from ctx, or "".
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", requestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.statusCode,
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
