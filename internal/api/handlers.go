package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/cache"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/passes"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/track"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/transform"
)

// trackFormat selects the response encoding for a track request.
type trackFormat int

const (
	formatJSON trackFormat = iota
	formatCSV
	formatMsgpack
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// satellitesHandler lists the catalog sorted by name, with dataset metadata.
func satellitesHandler(store *tle.Store) http.HandlerFunc {
	type satInfo struct {
		NORADID int    `json:"norad_id"`
		Name    string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
			return
		}

		sats := make([]satInfo, 0, len(ds.Satellites))
		for _, e := range ds.Satellites {
			sats = append(sats, satInfo{NORADID: e.NORADID, Name: e.Name})
		}
		sort.Slice(sats, func(i, j int) bool {
			if sats[i].Name != sats[j].Name {
				return sats[i].Name < sats[j].Name
			}
			return sats[i].NORADID < sats[j].NORADID
		})

		writeJSON(w, http.StatusOK, map[string]any{
			"source":     ds.Source,
			"fetched_at": ds.FetchedAt.UTC().Format(time.RFC3339),
			"count":      len(sats),
			"satellites": sats,
		})
	}
}

// timezonesHandler returns the display-timezone choices for the UI.
func timezonesHandler(timezones []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"timezones": timezones})
	}
}

// windowParams parses the simulation window from query values: duration in
// minutes, step in seconds, tz as an IANA zone, start as RFC3339.
func windowParams(q url.Values) (track.Request, error) {
	var req track.Request

	if v := q.Get("duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid duration %q: must be minutes", v)
		}
		req.Duration = time.Duration(n) * time.Minute
	}

	if v := q.Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid step %q: must be seconds", v)
		}
		req.Step = time.Duration(n) * time.Second
	}

	if v := q.Get("tz"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return req, fmt.Errorf("unknown timezone %q", v)
		}
		req.Location = loc
	}

	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return req, fmt.Errorf("invalid start %q: must be RFC3339", v)
		}
		req.Start = t
	}

	return req, nil
}

// writeTrack encodes a generated track in the requested format.
func writeTrack(w http.ResponseWriter, logger *slog.Logger, t *track.Track, format trackFormat) {
	switch format {
	case formatCSV:
		// Encode to a buffer first so an encoding failure can still produce
		// an error status instead of a truncated download.
		var buf bytes.Buffer
		if err := t.WriteCSV(&buf); err != nil {
			logger.Error("csv encode failed", "error", err)
			writeError(w, http.StatusInternalServerError, "csv encoding failed")
			return
		}
		metrics.IncTrackExport("csv")
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", track.CSVFilename(t.Name)))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())

	case formatMsgpack:
		data, err := t.Msgpack()
		if err != nil {
			logger.Error("msgpack encode failed", "error", err)
			writeError(w, http.StatusInternalServerError, "msgpack encoding failed")
			return
		}
		metrics.IncTrackExport("msgpack")
		w.Header().Set("Content-Type", "application/x-msgpack")
		w.WriteHeader(http.StatusOK)
		w.Write(data)

	default:
		metrics.IncTrackExport("json")
		writeJSON(w, http.StatusOK, t)
	}
}

// catalogTrackHandler serves GET /api/v1/track/{norad_id}[...] for catalog
// satellites.
func catalogTrackHandler(logger *slog.Logger, store *tle.Store, gen *track.Generator, format trackFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		noradID, err := strconv.Atoi(r.PathValue("norad_id"))
		if err != nil || noradID < 1 {
			writeError(w, http.StatusBadRequest, "invalid norad_id")
			return
		}

		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
			return
		}

		entry := ds.ByNORADID(noradID)
		if entry == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("satellite %d not in catalog", noradID))
			return
		}

		req, err := windowParams(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Entry = *entry

		t, err := gen.Generate(r.Context(), req)
		if err != nil {
			if strings.Contains(err.Error(), "out of range") {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("track generation failed", "norad_id", noradID, "error", err)
			writeError(w, http.StatusInternalServerError, "track generation failed")
			return
		}

		writeTrack(w, logger, t, format)
	}
}

// customTrackRequest is the POST body for user-supplied element sets.
type customTrackRequest struct {
	Name     string `json:"name"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	Duration int    `json:"duration,omitempty"` // minutes
	Step     int    `json:"step,omitempty"`     // seconds
	TZ       string `json:"tz,omitempty"`
	Start    string `json:"start,omitempty"` // RFC3339
}

// customTrackHandler serves POST /api/v1/track[...] for user-supplied TLEs.
// Malformed element text yields 400 with the parse error, never a crash.
func customTrackHandler(logger *slog.Logger, gen *track.Generator, format trackFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body customTrackRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		name := body.Name
		if name == "" {
			name = "CUSTOM_SAT"
		}

		entry, err := tle.ParseSingle(name, body.Line1, body.Line2)
		if err != nil {
			writeError(w, http.StatusBadRequest, "error parsing TLE: "+err.Error())
			return
		}

		q := url.Values{}
		if body.Duration != 0 {
			q.Set("duration", strconv.Itoa(body.Duration))
		}
		if body.Step != 0 {
			q.Set("step", strconv.Itoa(body.Step))
		}
		if body.TZ != "" {
			q.Set("tz", body.TZ)
		}
		if body.Start != "" {
			q.Set("start", body.Start)
		}
		req, err := windowParams(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Entry = entry

		t, err := gen.Generate(r.Context(), req)
		if err != nil {
			if strings.Contains(err.Error(), "out of range") {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			// SGP4 init failures on structurally valid but physically
			// nonsensical elements surface here.
			writeError(w, http.StatusBadRequest, "error parsing TLE: "+err.Error())
			return
		}

		writeTrack(w, logger, t, format)
	}
}

// tleMetadataHandler reports the current dataset's provenance and age.
func tleMetadataHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			writeJSON(w, http.StatusOK, map[string]any{"loaded": false})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"loaded":      true,
			"source":      ds.Source,
			"fetched_at":  ds.FetchedAt.UTC().Format(time.RFC3339),
			"age_seconds": int(time.Since(ds.FetchedAt).Seconds()),
			"count":       len(ds.Satellites),
			"epoch_min":   ds.EpochRange.Min.UTC().Format(time.RFC3339),
			"epoch_max":   ds.EpochRange.Max.UTC().Format(time.RFC3339),
		})
	}
}

// tleRefreshHandler fetches the catalog now and swaps the dataset in.
func tleRefreshHandler(logger *slog.Logger, store *tle.Store, cfg TLEConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.EnableFetch {
			writeError(w, http.StatusForbidden, "TLE fetching is disabled")
			return
		}

		// One fetch at a time; concurrent refreshes would hammer the source.
		store.Lock()
		defer store.Unlock()

		fetcher := tle.NewFetcher(cfg.SourceURL, logger, cfg.ExtraSourceURLs...)

		data, err := fetcher.Fetch(r.Context())
		if err != nil {
			metrics.IncTLEFetch("error")
			logger.Error("TLE fetch failed", "error", err)
			writeError(w, http.StatusBadGateway, "TLE fetch failed: "+err.Error())
			return
		}

		entries, err := tle.Parse(bytes.NewReader(data), logger)
		if err != nil {
			metrics.IncTLEFetch("error")
			writeError(w, http.StatusBadGateway, "TLE parse failed: "+err.Error())
			return
		}
		if len(entries) == 0 {
			metrics.IncTLEFetch("error")
			writeError(w, http.StatusBadGateway, "TLE source returned no usable entries")
			return
		}

		now := time.Now()
		store.Set(&tle.Dataset{
			Source:     fetcher.SourceURL(),
			FetchedAt:  now,
			EpochRange: tle.EpochRangeOf(entries),
			Satellites: entries,
		})
		metrics.IncTLEFetch("success")
		metrics.SetTLEDatasetCount(len(entries))

		diskCache := tle.NewCache(cfg.CacheDir, cfg.MaxFiles)
		if err := diskCache.Write(data, now); err != nil {
			logger.Warn("failed to write TLE disk cache", "error", err)
		}

		logger.Info("TLE dataset refreshed", "count", len(entries), "source", fetcher.SourceURL())
		writeJSON(w, http.StatusOK, map[string]any{
			"count":      len(entries),
			"source":     fetcher.SourceURL(),
			"fetched_at": now.UTC().Format(time.RFC3339),
		})
	}
}

// positionsHandler serves the latest whole-catalog snapshot.
func positionsHandler(snapCache *cache.SnapshotCache) http.HandlerFunc {
	type satPos struct {
		NORADID    int     `json:"norad_id"`
		Name       string  `json:"name,omitempty"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		AltitudeKm float64 `json:"altitude_km"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		snap := snapCache.GetLatest()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "no position snapshot available yet")
			return
		}

		sats := make([]satPos, len(snap.Satellites))
		for i, s := range snap.Satellites {
			sats[i] = satPos{
				NORADID:    s.NORADID,
				Name:       s.Name,
				Latitude:   s.LatDeg,
				Longitude:  s.LonDeg,
				AltitudeKm: s.AltitudeKm,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp":  snap.Timestamp.UTC().Format(time.RFC3339),
			"satellites": sats,
		})
	}
}

// passesHandler predicts passes over an observer for selected satellites.
// GET /api/v1/passes?lat=..&lon=..&alt=0&ids=25544,20580&horizon_hours=24&min_elevation=10
func passesHandler(logger *slog.Logger, store *tle.Store) http.HandlerFunc {
	const maxSatellites = 10

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil || lat < -90 || lat > 90 {
			writeError(w, http.StatusBadRequest, "lat must be a number in [-90, 90]")
			return
		}
		lon, err := strconv.ParseFloat(q.Get("lon"), 64)
		if err != nil || lon < -180 || lon > 180 {
			writeError(w, http.StatusBadRequest, "lon must be a number in [-180, 180]")
			return
		}

		alt := 0.0
		if v := q.Get("alt"); v != "" {
			alt, err = strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "alt must be meters above the ellipsoid")
				return
			}
		}

		horizonHours := 24.0
		if v := q.Get("horizon_hours"); v != "" {
			horizonHours, err = strconv.ParseFloat(v, 64)
			if err != nil || horizonHours <= 0 || horizonHours > 72 {
				writeError(w, http.StatusBadRequest, "horizon_hours must be in (0, 72]")
				return
			}
		}

		minElevation := 10.0
		if v := q.Get("min_elevation"); v != "" {
			minElevation, err = strconv.ParseFloat(v, 64)
			if err != nil || minElevation < 0 || minElevation >= 90 {
				writeError(w, http.StatusBadRequest, "min_elevation must be in [0, 90)")
				return
			}
		}

		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
			return
		}

		idsParam := q.Get("ids")
		if idsParam == "" {
			writeError(w, http.StatusBadRequest, "ids is required (comma-separated NORAD IDs)")
			return
		}
		var entries []tle.Entry
		for _, part := range strings.Split(idsParam, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid NORAD ID %q", part))
				return
			}
			entry := ds.ByNORADID(id)
			if entry == nil {
				writeError(w, http.StatusNotFound, fmt.Sprintf("satellite %d not in catalog", id))
				return
			}
			entries = append(entries, *entry)
		}
		if len(entries) > maxSatellites {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d satellites per request", maxSatellites))
			return
		}

		req := passes.Request{
			Observer:     transform.NewObserverPosition(lat, lon, alt),
			Entries:      entries,
			Start:        time.Now().UTC(),
			HorizonHours: horizonHours,
			MinElevation: minElevation,
			MaxPasses:    20,
		}

		start := time.Now()
		results := passes.Predict(r.Context(), req)
		logger.Debug("pass prediction complete",
			"satellites", len(entries),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		writeJSON(w, http.StatusOK, map[string]any{
			"observer": map[string]float64{"lat": lat, "lon": lon, "alt": alt},
			"results":  results,
		})
	}
}
