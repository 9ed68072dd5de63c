package cache

import (
	"context"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
)

// Start runs the maintenance loop: wait for a catalog, fill the whole
// [now, now+horizon] window, then each step advance the leading edge, drop
// expired frames, and cut over when the catalog is replaced. Blocks until
// ctx is cancelled.
func (c *SnapshotCache) Start(ctx context.Context) {
	if !c.awaitDataset(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := time.NewTicker(c.config.Step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("snapshot cache generator stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// awaitDataset polls the store until an element-set dataset exists.
// Returns false when ctx ends first.
func (c *SnapshotCache) awaitDataset(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("snapshot cache waiting for TLE data...")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("TLE data available, starting cache warmup")
				return true
			}
		}
	}
}

// fillWindow propagates one snapshot per step across the whole horizon,
// handing each to sink. Returns how many frames were produced; a false
// second return means ctx was cancelled partway.
func (c *SnapshotCache) fillWindow(ctx context.Context, sink func(s snapshotFrame)) (int, bool) {
	from := c.RoundToStep(time.Now())
	frames := int(c.config.Horizon/c.config.Step) + 1

	produced := 0
	for i := 0; i < frames; i++ {
		if ctx.Err() != nil {
			return produced, false
		}

		target := from.Add(time.Duration(i) * c.config.Step)
		snap, err := c.prop.SnapshotAt(ctx, target)
		if err != nil {
			c.logger.Warn("window propagation failed",
				"timestamp", target.UTC().Format(time.RFC3339),
				"error", err,
			)
			metrics.IncCacheRegenerationErrors()
			continue
		}
		sink(snapshotFrame{Snapshot: snap, GeneratedAt: time.Now()})
		produced++
	}
	return produced, true
}

// warmup fills the cache for [now, now+horizon] from the current dataset.
func (c *SnapshotCache) warmup(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	c.currentFetchedAt = ds.FetchedAt

	start := time.Now()
	generated, _ := c.fillWindow(ctx, func(f snapshotFrame) {
		c.put(f.Snapshot)
	})

	c.logger.Info("snapshot cache warmup complete",
		"generated", generated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (c *SnapshotCache) tick(ctx context.Context) {
	if c.tleChanged() {
		c.performCutover(ctx)
		return
	}
	c.extendLeadingEdge(ctx)
	c.evictExpired()
}

// extendLeadingEdge produces the frame at now+horizon unless it already exists.
func (c *SnapshotCache) extendLeadingEdge(ctx context.Context) {
	target := c.RoundToStep(time.Now().Add(c.config.Horizon))
	if c.Get(target) != nil {
		return
	}

	start := time.Now()
	snap, err := c.prop.SnapshotAt(ctx, target)
	if err != nil {
		c.logger.Warn("leading edge generation failed",
			"timestamp", target.UTC().Format(time.RFC3339),
			"error", err,
		)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.put(snap)
	metrics.ObserveCacheRegenerationDuration(time.Since(start))
}
