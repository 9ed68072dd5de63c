package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/api"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/auth"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/cache"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/config"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/propagation"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/stream"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/track"
	"github.com/nilabh-astrophysics/satellite-tracker1/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("GROUNDTRACK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	cfgFile := loadConfigFile(logger)

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	tleCfg := loadTLEConfig(logger, cfgFile)
	store := tle.NewStore()
	tleCache := tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles)

	// Attempt to load cached TLE data on startup.
	data, ts, err := tleCache.LoadLatest()
	if err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	} else {
		entries, err := tle.Parse(bytes.NewReader(data), logger)
		if err != nil {
			logger.Warn("failed to parse cached TLE data", "error", err)
		} else if len(entries) > 0 {
			store.Set(&tle.Dataset{
				Source:     "cache",
				FetchedAt:  ts,
				EpochRange: tle.EpochRangeOf(entries),
				Satellites: entries,
			})
			metrics.SetTLEDatasetCount(len(entries))
			logger.Info("loaded TLE data from cache", "count", len(entries), "cached_at", ts.Format(time.RFC3339))
		}
	}

	propCfg := loadPropConfig(logger)
	prop := propagation.NewPropagator(store, propCfg, logger)
	metrics.SetPropagationWorkersActive(propCfg.Workers)

	gen := track.NewGenerator(prop)

	cacheCfg := loadCacheConfig(logger, propCfg)
	snapCache := cache.NewSnapshotCache(cacheCfg, prop, store, logger)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(snapCache, store, streamCfg, logger)

	srv := api.NewServer(addr, logger, authCfg, store, tleCfg, gen, snapCache, streamHandler, cfgFile.Timezones, web.Assets)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start cache background worker.
	go snapCache.Start(ctx)

	// Keep the catalog fresh: fetch at startup when stale, then periodically.
	if tleCfg.EnableFetch {
		go refreshLoop(ctx, logger, store, tleCache, tleCfg)
	}

	// Background goroutine to update TLE dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age, ok := store.Age(); ok {
					metrics.SetTLEDatasetAge(age.Seconds())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "tle_fetch_enabled", tleCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refreshLoop fetches the catalog when the current dataset is missing or
// older than MaxAge, then re-checks every 10 minutes.
func refreshLoop(ctx context.Context, logger *slog.Logger, store *tle.Store, diskCache *tle.Cache, cfg api.TLEConfig) {
	refresh := func() {
		if age, ok := store.Age(); ok && age < cfg.MaxAge {
			return
		}

		store.Lock()
		defer store.Unlock()

		// Re-check under the lock; a concurrent manual refresh may have won.
		if age, ok := store.Age(); ok && age < cfg.MaxAge {
			return
		}

		fetcher := tle.NewFetcher(cfg.SourceURL, logger, cfg.ExtraSourceURLs...)
		fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		data, err := fetcher.Fetch(fetchCtx)
		if err != nil {
			metrics.IncTLEFetch("error")
			logger.Warn("background TLE fetch failed", "error", err)
			return
		}
		entries, err := tle.Parse(bytes.NewReader(data), logger)
		if err != nil || len(entries) == 0 {
			metrics.IncTLEFetch("error")
			logger.Warn("background TLE fetch returned no usable entries", "error", err)
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
		if err := diskCache.Write(data, now); err != nil {
			logger.Warn("failed to write TLE disk cache", "error", err)
		}
		logger.Info("TLE dataset refreshed in background", "count", len(entries))
	}

	refresh()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func loadConfigFile(logger *slog.Logger) *config.File {
	path := os.Getenv("GROUNDTRACK_CONFIG")
	if path == "" {
		return config.Default()
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("invalid config file", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded config file", "path", path)
	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("GROUNDTRACK_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("GROUNDTRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("GROUNDTRACK_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("GROUNDTRACK_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadPropConfig(logger *slog.Logger) propagation.PropConfig {
	cfg := propagation.PropConfig{
		Workers: runtime.NumCPU(),
		Step:    5 * time.Second,
		Horizon: 600 * time.Second,
	}

	if v := os.Getenv("GROUNDTRACK_PROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_PROP_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("GROUNDTRACK_SNAPSHOT_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_SNAPSHOT_STEP value, using default", "value", v, "default", 5)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GROUNDTRACK_SNAPSHOT_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_SNAPSHOT_HORIZON value, using default", "value", v, "default", 600)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	logger.Info("propagation config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger, propCfg propagation.PropConfig) cache.Config {
	cfg := cache.Config{
		Step:        propCfg.Step,
		Horizon:     propCfg.Horizon,
		GracePeriod: 30 * time.Second,
		Buffer:      60 * time.Second,
	}

	if v := os.Getenv("GROUNDTRACK_CACHE_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_CACHE_STEP value, using propagation step", "value", v)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GROUNDTRACK_CACHE_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_CACHE_HORIZON value, using propagation horizon", "value", v)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GROUNDTRACK_CACHE_GRACE_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_CACHE_GRACE_PERIOD value, using default", "value", v, "default", 30)
		} else {
			cfg.GracePeriod = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GROUNDTRACK_CACHE_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_CACHE_BUFFER value, using default", "value", v, "default", 60)
		} else {
			cfg.Buffer = time.Duration(n) * time.Second
		}
	}

	logger.Info("cache config",
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
		"grace_period_seconds", cfg.GracePeriod.Seconds(),
		"buffer_seconds", cfg.Buffer.Seconds(),
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("GROUNDTRACK_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("GROUNDTRACK_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GROUNDTRACK_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GROUNDTRACK_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid GROUNDTRACK_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadTLEConfig(logger *slog.Logger, cfgFile *config.File) api.TLEConfig {
	cfg := api.TLEConfig{
		EnableFetch:     true,
		SourceURL:       cfgFile.TLE.SourceURL,
		ExtraSourceURLs: cfgFile.TLE.ExtraURLs,
		CacheDir:        cfgFile.TLE.CacheDir,
		MaxFiles:        cfgFile.TLE.MaxFiles,
		MaxAge:          24 * time.Hour,
	}

	if v := os.Getenv("GROUNDTRACK_ENABLE_TLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid GROUNDTRACK_ENABLE_TLE_FETCH value, defaulting to false", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("GROUNDTRACK_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("GROUNDTRACK_TLE_EXTRA_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		cfg.ExtraSourceURLs = urls
	}

	if v := os.Getenv("GROUNDTRACK_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("GROUNDTRACK_TLE_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn("invalid GROUNDTRACK_TLE_MAX_AGE value, defaulting to 86400", "value", v)
		} else {
			cfg.MaxAge = time.Duration(seconds) * time.Second
		}
	}

	logger.Info("TLE config",
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
	)

	return cfg
}
