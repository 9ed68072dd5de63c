package cache

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/propagation"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
)

// ISS test elements.
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func issDataset(source string, fetchedAt time.Time) *tle.Dataset {
	return &tle.Dataset{
		Source:    source,
		FetchedAt: fetchedAt,
		Satellites: []tle.Entry{
			{NORADID: 25544, Name: "ISS", Line1: issLine1, Line2: issLine2},
		},
	}
}

// newTestCache builds a cache over a one-satellite store with a 5s step,
// 30s horizon, and 10s buffer; mutate adjusts the config before building.
func newTestCache(mutate func(*Config)) (*SnapshotCache, *propagation.Propagator, *tle.Store) {
	store := tle.NewStore()
	store.Set(issDataset("test", time.Now()))

	prop := propagation.NewPropagator(store,
		propagation.PropConfig{Workers: 2, Step: 5 * time.Second, Horizon: 30 * time.Second},
		testLogger())

	cfg := Config{
		Step:        5 * time.Second,
		Horizon:     30 * time.Second,
		GracePeriod: 5 * time.Second,
		Buffer:      10 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewSnapshotCache(cfg, prop, store, testLogger()), prop, store
}

func mustSnapshot(t *testing.T, prop *propagation.Propagator, at time.Time) *propagation.Snapshot {
	t.Helper()
	snap, err := prop.SnapshotAt(context.Background(), at)
	if err != nil {
		t.Fatalf("SnapshotAt(%v): %v", at, err)
	}
	return snap
}

func TestSnapshotCache(t *testing.T) {
	c, prop, _ := newTestCache(nil)

	target := time.Now().Truncate(5 * time.Second)
	c.put(mustSnapshot(t, prop, target))

	got := c.Get(target)
	if got == nil {
		t.Fatal("expected cache hit, got nil")
	}
	if !got.Timestamp.Equal(target) {
		t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, target)
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("entries: got %d, want 1", stats.Entries)
	}
	if stats.Hits < 1 {
		t.Errorf("hits: got %d, want >= 1", stats.Hits)
	}
}

func TestRoundToStep(t *testing.T) {
	c, _, _ := newTestCache(nil)

	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 2, 6, 12, 0, 3, 0, time.UTC), time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)},
		{time.Date(2026, 2, 6, 12, 0, 7, 0, time.UTC), time.Date(2026, 2, 6, 12, 0, 5, 0, time.UTC)},
		{time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC), time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := c.RoundToStep(tt.in); !got.Equal(tt.want) {
			t.Errorf("RoundToStep(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCacheMiss(t *testing.T) {
	c, _, _ := newTestCache(nil)

	if got := c.Get(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)); got != nil {
		t.Fatal("expected nil for cache miss")
	}
	if misses := c.Stats().Misses; misses < 1 {
		t.Errorf("misses: got %d, want >= 1", misses)
	}
}

func TestEvictExpired(t *testing.T) {
	// Zero buffer: anything in the past is immediately evictable.
	c, prop, _ := newTestCache(func(cfg *Config) { cfg.Buffer = 0 })

	past := time.Now().Add(-2 * time.Minute).Truncate(5 * time.Second)
	future := time.Now().Add(time.Minute).Truncate(5 * time.Second)
	c.put(mustSnapshot(t, prop, past))
	c.put(mustSnapshot(t, prop, future))

	if n := c.Stats().Entries; n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	if removed := c.evictExpired(); removed != 1 {
		t.Errorf("expected 1 eviction, got %d", removed)
	}
	if c.Get(past) != nil {
		t.Error("past frame should have been evicted")
	}
	if c.Get(future) == nil {
		t.Error("future frame should remain")
	}
}

func TestWarmup(t *testing.T) {
	// 15s horizon at 5s step fills 4 frames.
	c, _, _ := newTestCache(func(cfg *Config) { cfg.Horizon = 15 * time.Second })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.warmup(ctx)

	stats := c.Stats()
	want := int(c.config.Horizon/c.config.Step) + 1
	if stats.Entries < want {
		t.Errorf("warmup generated %d frames, expected >= %d", stats.Entries, want)
	}
	if c.GetLatest() == nil {
		t.Fatal("GetLatest returned nil after warmup")
	}
}

func TestTLECutover(t *testing.T) {
	c, _, store := newTestCache(func(cfg *Config) { cfg.Horizon = 10 * time.Second })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.warmup(ctx)
	if c.Stats().Entries == 0 {
		t.Fatal("no frames after warmup")
	}

	// A refresh swaps in a dataset with a later FetchedAt.
	store.Set(issDataset("updated", time.Now().Add(time.Second)))

	if !c.tleChanged() {
		t.Fatal("tleChanged should report the dataset swap")
	}

	c.performCutover(ctx)

	if c.inGracePeriod.Load() {
		t.Error("grace period flag should clear after cutover")
	}
	if c.Stats().Entries == 0 {
		t.Fatal("no frames after cutover")
	}
	if c.tleChanged() {
		t.Error("tleChanged should be false once the window is rebuilt")
	}
}

func TestGetRecent(t *testing.T) {
	c, prop, _ := newTestCache(nil)

	base := time.Now().Truncate(5 * time.Second)
	for i := 0; i < 4; i++ {
		c.put(mustSnapshot(t, prop, base.Add(time.Duration(i)*5*time.Second)))
	}

	recent := c.GetRecent(base.Add(15*time.Second), 3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent snapshots, got %d", len(recent))
	}
	// Oldest first, ending at the requested time.
	for i := 1; i < len(recent); i++ {
		if !recent[i].Timestamp.After(recent[i-1].Timestamp) {
			t.Errorf("recent snapshots not ascending at %d", i)
		}
	}
}

func TestGetLatestEmpty(t *testing.T) {
	c, _, _ := newTestCache(nil)
	if got := c.GetLatest(); got != nil {
		t.Fatal("expected nil from empty cache")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _, _ := newTestCache(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go c.Start(ctx)

	// Give warmup time to complete.
	time.Sleep(3 * time.Second)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.GetLatest()
				c.Get(time.Now())
				c.Stats()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("timeout waiting for concurrent reads")
		}
	}
}

func TestSizeEstimation(t *testing.T) {
	c, _, _ := newTestCache(func(cfg *Config) { cfg.Horizon = 10 * time.Second })
	c.warmup(context.Background())

	size := c.Stats().SizeBytes
	if size <= 0 {
		t.Errorf("expected positive size estimate, got %d", size)
	}
	if size > 10000 {
		t.Errorf("size estimate too large for one satellite: %d bytes", size)
	}
}
