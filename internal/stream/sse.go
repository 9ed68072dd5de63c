// Package stream implements Server-Sent Events (SSE) streaming of live
// sub-satellite positions. Clients connect via GET /api/v1/stream/positions
// and receive a continuous stream of snapshot batches from the cache.
//
// SSE message format:
//
//	data: {"type":"position_batch","t":"2026-08-31T04:00:00Z","sat":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","dataset_epoch":"...","tle_age_seconds":1800}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// timeout. Reconnecting clients receive a fresh metadata message on each
// connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/cache"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/httputil"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/propagation"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // max concurrent streams per IP (default 10)
	KeepaliveInterval  time.Duration // keep-alive ping interval (default 30s)
	TrustProxy         bool          // trust X-Forwarded-For for rate limiting
}

// Handler manages SSE streaming connections.
type Handler struct {
	cache   *cache.SnapshotCache
	store   *tle.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

func NewHandler(snapCache *cache.SnapshotCache, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		cache:   snapCache,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// streamParams are the validated query parameters of one stream request.
type streamParams struct {
	step   int // seconds between batches
	trail  int // past subpoints per satellite
	onlyID int // 0 means the whole catalog
}

// parseStreamParams validates step (1-60, default 5), trail (0-120,
// default 20), and id (positive NORAD ID, default all).
func parseStreamParams(r *http.Request) (streamParams, error) {
	p := streamParams{step: 5, trail: 20}

	if v := r.URL.Query().Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			return p, fmt.Errorf("invalid step parameter, must be 1-60")
		}
		p.step = n
	}
	if v := r.URL.Query().Get("trail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 120 {
			return p, fmt.Errorf("invalid trail parameter, must be 0-120")
		}
		p.trail = n
	}
	if v := r.URL.Query().Get("id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid id parameter")
		}
		p.onlyID = n
	}
	return p, nil
}

func jsonError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?step=5&trail=20&id=25544
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	params, err := parseStreamParams(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		jsonError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step", params.step,
		"only_id", params.onlyID,
	)

	var c *conn
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		var sent, bytes int64
		if c != nil {
			sent, bytes = c.messagesSent, c.bytesSent
		}
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages_sent", sent,
			"bytes_sent", bytes,
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The server-wide WriteTimeout would kill this long-lived connection;
	// per-write deadlines in conn take over instead.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c = &conn{w: w, flusher: flusher, rc: rc, ip: ip, logger: h.logger}

	// Jittered retry interval (3-7s) so a restart does not trigger a
	// synchronized reconnect storm.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if ds := h.store.Get(); ds != nil {
		meta := metadataMessage{
			Type:         "metadata",
			DatasetEpoch: ds.FetchedAt.UTC().Format(time.RFC3339),
			TLEAge:       int(time.Since(ds.FetchedAt).Seconds()),
		}
		if err := c.emit(meta); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	h.pump(r, c, params)
}

// pump is the steady-state loop: one batch per step tick, keepalives when
// nothing was sent for a while, exit on client disconnect or write failure.
func (h *Handler) pump(r *http.Request, c *conn, params streamParams) {
	ticker := time.NewTicker(time.Duration(params.step) * time.Second)
	defer ticker.Stop()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case t := <-ticker.C:
			snap := h.cache.Get(t)
			if snap == nil {
				metrics.IncStreamErrors("cache_miss")
				h.logger.Debug("stream cache miss",
					"timestamp", h.cache.RoundToStep(t).UTC().Format(time.RFC3339),
					"remote_ip", c.ip,
				)
				continue
			}

			var trailSnaps []*propagation.Snapshot
			if params.trail > 0 {
				trailSnaps = h.cache.GetRecent(t, params.trail)
			}

			data, err := json.Marshal(buildBatchMessage(snap, trailSnaps, params.onlyID))
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", c.ip, "error", err)
				continue
			}
			if err := c.emitRaw(data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", c.ip, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.comment(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", c.ip, "error", err)
				return
			}
		}
	}
}

// buildBatchMessage formats a snapshot into the SSE batch payload. With
// trail snapshots, each satellite carries its past subpoints oldest first.
// A non-zero onlyID drops every other satellite.
func buildBatchMessage(snap *propagation.Snapshot, trailSnaps []*propagation.Snapshot, onlyID int) positionBatchMessage {
	var trailIndex map[int][][3]float64
	if len(trailSnaps) > 0 {
		trailIndex = make(map[int][][3]float64, len(snap.Satellites))
		for _, ts := range trailSnaps {
			for _, s := range ts.Satellites {
				if onlyID != 0 && s.NORADID != onlyID {
					continue
				}
				trailIndex[s.NORADID] = append(trailIndex[s.NORADID], [3]float64{s.LatDeg, s.LonDeg, s.AltitudeKm})
			}
		}
	}

	sats := make([]satPayload, 0, len(snap.Satellites))
	for _, s := range snap.Satellites {
		if onlyID != 0 && s.NORADID != onlyID {
			continue
		}
		sats = append(sats, satPayload{
			ID:   s.NORADID,
			Name: s.Name,
			P:    [3]float64{s.LatDeg, s.LonDeg, s.AltitudeKm},
			Tr:   trailIndex[s.NORADID],
		})
	}
	return positionBatchMessage{
		Type: "position_batch",
		T:    snap.Timestamp.UTC().Format(time.RFC3339),
		Sat:  sats,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type         string `json:"type"`
	DatasetEpoch string `json:"dataset_epoch"`
	TLEAge       int    `json:"tle_age_seconds"`
}

type positionBatchMessage struct {
	Type string       `json:"type"`
	T    string       `json:"t"`
	Sat  []satPayload `json:"sat"`
}

// satPayload carries [lat_deg, lon_deg, alt_km] triples.
type satPayload struct {
	ID   int          `json:"id"`
	Name string       `json:"name,omitempty"`
	P    [3]float64   `json:"p"`
	Tr   [][3]float64 `json:"tr,omitempty"`
}
