// Package cache maintains a rolling window of whole-catalog snapshots.
//
// A snapshot fixes every catalog satellite's sub-satellite point at one step
// boundary. The window [now, now+horizon] stays filled: a background loop
// produces frames at the leading edge while expired ones fall off the back.
// Swapping in a new catalog rebuilds the window without blocking readers.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/propagation"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Step        time.Duration // snapshot interval (default 5s)
	Horizon     time.Duration // how far ahead to cache (default 600s)
	GracePeriod time.Duration // TLE cutover grace period (default 30s)
	Buffer      time.Duration // keep frames this long past expiry (default 60s)
}

// snapshotFrame wraps a snapshot with generation metadata.
type snapshotFrame struct {
	Snapshot    *propagation.Snapshot
	GeneratedAt time.Time
}

// SnapshotCache is the rolling in-memory window. Safe for concurrent use.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[time.Time]*snapshotFrame

	config Config
	prop   *propagation.Propagator
	store  *tle.Store
	logger *slog.Logger

	// Dataset generation the window was built from.
	currentFetchedAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	inGracePeriod atomic.Bool
}

func NewSnapshotCache(config Config, prop *propagation.Propagator, store *tle.Store, logger *slog.Logger) *SnapshotCache {
	logger.Info("snapshot cache initialized",
		"step_seconds", config.Step.Seconds(),
		"horizon_seconds", config.Horizon.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"grace_period_seconds", config.GracePeriod.Seconds(),
	)
	return &SnapshotCache{
		entries: make(map[time.Time]*snapshotFrame),
		config:  config,
		prop:    prop,
		store:   store,
		logger:  logger,
	}
}

// RoundToStep normalizes t to its step boundary so lookups hit the frames
// the generator wrote. Conversion to UTC first: SGP4 and GMST both take
// UTC components.
func (c *SnapshotCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Get returns the snapshot covering t, or nil when it is not cached.
func (c *SnapshotCache) Get(t time.Time) *propagation.Snapshot {
	key := c.RoundToStep(t)

	c.mu.RLock()
	f, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		metrics.IncCacheMisses()
		return nil
	}
	c.hits.Add(1)
	metrics.IncCacheHits()
	return f.Snapshot
}

// GetRecent returns up to count snapshots at and before t, oldest first.
// Gaps in the window are skipped. Used for short ground-track trails.
func (c *SnapshotCache) GetRecent(t time.Time, count int) []*propagation.Snapshot {
	if count <= 0 {
		return nil
	}
	key := c.RoundToStep(t)

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*propagation.Snapshot, 0, count)
	for i := count - 1; i >= 0; i-- {
		if f, ok := c.entries[key.Add(-time.Duration(i)*c.config.Step)]; ok {
			result = append(result, f.Snapshot)
		}
	}
	return result
}

// GetLatest returns the newest snapshot not after the current time,
// scanning back a few steps to tolerate a briefly-lagging generator.
func (c *SnapshotCache) GetLatest() *propagation.Snapshot {
	now := c.RoundToStep(time.Now())

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < 10; i++ {
		if f, ok := c.entries[now.Add(-time.Duration(i)*c.config.Step)]; ok {
			c.hits.Add(1)
			metrics.IncCacheHits()
			return f.Snapshot
		}
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// put stores a snapshot. Caller must not hold mu.
func (c *SnapshotCache) put(snap *propagation.Snapshot) {
	key := c.RoundToStep(snap.Timestamp)
	f := &snapshotFrame{Snapshot: snap, GeneratedAt: time.Now()}

	c.mu.Lock()
	c.entries[key] = f
	c.mu.Unlock()

	c.publishSize()
}

// evictExpired drops frames older than now minus the buffer.
func (c *SnapshotCache) evictExpired() int {
	cutoff := time.Now().Add(-c.config.Buffer)

	c.mu.Lock()
	var removed int
	for ts := range c.entries {
		if ts.Before(cutoff) {
			delete(c.entries, ts)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.publishSize()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

// replaceAll swaps the whole window in one assignment, used by cutover.
func (c *SnapshotCache) replaceAll(frames map[time.Time]*snapshotFrame) {
	c.mu.Lock()
	c.entries = frames
	c.mu.Unlock()
	c.publishSize()
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries         int
	SizeBytes       int64
	OldestTimestamp time.Time
	NewestTimestamp time.Time
	Hits            int64
	Misses          int64
	Evictions       int64
	InGracePeriod   bool
}

func (c *SnapshotCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	var oldest, newest time.Time
	for ts := range c.entries {
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	c.mu.RUnlock()

	return Stats{
		Entries:         count,
		SizeBytes:       c.estimateSizeBytes(),
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		InGracePeriod:   c.inGracePeriod.Load(),
	}
}

// estimateSizeBytes roughly sizes the window: per-satellite structs plus
// name strings, fixed per-frame overhead, and map buckets.
func (c *SnapshotCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, f := range c.entries {
		if f.Snapshot == nil {
			continue
		}
		total += int64(len(f.Snapshot.Satellites)) * int64(unsafe.Sizeof(propagation.SatellitePoint{}))
		for _, s := range f.Snapshot.Satellites {
			total += int64(len(s.Name))
		}
		total += 80 // timestamp + slice header + frame pointer + GeneratedAt
	}
	return total + int64(len(c.entries))*8
}

func (c *SnapshotCache) publishSize() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()
	metrics.SetCacheEntries(count)
}
