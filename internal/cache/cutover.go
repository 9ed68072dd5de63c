package cache

import (
	"context"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
)

// tleChanged reports whether the store holds a newer dataset than the one
// the current window was built from.
func (c *SnapshotCache) tleChanged() bool {
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	return !ds.FetchedAt.Equal(c.currentFetchedAt)
}

// performCutover rebuilds the window from the new dataset. The old frames
// keep serving reads while the replacement is built; the swap at the end is
// a single map assignment under the lock, and the grace-period flag tells
// readers that frames may briefly come from the previous dataset.
func (c *SnapshotCache) performCutover(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	c.logger.Info("TLE cutover starting",
		"old_dataset_fetched_at", c.currentFetchedAt.UTC().Format(time.RFC3339),
		"new_dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)

	c.inGracePeriod.Store(true)
	metrics.SetCacheGracePeriodActive(true)
	defer func() {
		c.inGracePeriod.Store(false)
		metrics.SetCacheGracePeriodActive(false)
	}()

	start := time.Now()
	rebuilt := make(map[time.Time]*snapshotFrame)
	generated, done := c.fillWindow(ctx, func(f snapshotFrame) {
		frame := f
		rebuilt[c.RoundToStep(f.Snapshot.Timestamp)] = &frame
	})
	if !done {
		c.logger.Warn("cutover cancelled by context")
		return
	}

	c.replaceAll(rebuilt)
	c.currentFetchedAt = ds.FetchedAt

	c.logger.Info("TLE cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"entries_replaced", generated,
	)
}
