package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
)

// propSet is the initialized SGP4 state for one dataset generation.
// Immutable once published, so readers need no lock.
type propSet struct {
	byID      map[int]*SGP4Propagator
	fetchedAt time.Time
}

// Propagator turns the active catalog into whole-catalog position
// snapshots. SGP4 initialization is expensive relative to a single
// propagation step, so initialized propagators are kept per dataset
// generation and rebuilt only when the catalog is replaced.
type Propagator struct {
	store  *tle.Store
	pool   *WorkerPool
	config PropConfig
	logger *slog.Logger

	current atomic.Pointer[propSet]
	buildMu sync.Mutex
}

func NewPropagator(store *tle.Store, config PropConfig, logger *slog.Logger) *Propagator {
	return &Propagator{
		store:  store,
		pool:   NewWorkerPool(config.Workers, logger),
		config: config,
		logger: logger,
	}
}

func (p *Propagator) Config() PropConfig {
	return p.config
}

// ForEntry returns a ready propagator for entry, reusing the dataset cache
// when the entry belongs to the active catalog. Ad-hoc element sets get a
// fresh propagator; the error reports why SGP4 rejected them.
func (p *Propagator) ForEntry(entry tle.Entry) (*SGP4Propagator, error) {
	if ds := p.store.Get(); ds != nil {
		if sp, ok := p.propsFor(ds)[entry.NORADID]; ok {
			return sp, nil
		}
	}
	return NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
}

// propsFor returns the initialized propagators for ds, rebuilding on a
// generation change. Double-checked so concurrent callers rebuild at most
// once per generation.
func (p *Propagator) propsFor(ds *tle.Dataset) map[int]*SGP4Propagator {
	if set := p.current.Load(); set != nil && set.fetchedAt.Equal(ds.FetchedAt) {
		return set.byID
	}

	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	if set := p.current.Load(); set != nil && set.fetchedAt.Equal(ds.FetchedAt) {
		return set.byID
	}

	set := p.buildPropSet(ds)
	p.current.Store(set)
	return set.byID
}

func (p *Propagator) buildPropSet(ds *tle.Dataset) *propSet {
	byID := make(map[int]*SGP4Propagator, len(ds.Satellites))
	var skipped int
	for _, entry := range ds.Satellites {
		if _, ok := byID[entry.NORADID]; ok {
			continue
		}
		sp, err := NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
		if err != nil {
			p.logger.Warn("sgp4 cache init failed", "norad_id", entry.NORADID, "error", err)
			skipped++
			continue
		}
		byID[entry.NORADID] = sp
	}

	p.logger.Info("sgp4 propagator cache rebuilt",
		"cached", len(byID),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	return &propSet{byID: byID, fetchedAt: ds.FetchedAt}
}

// SnapshotAt propagates every catalog satellite to targetTime.
func (p *Propagator) SnapshotAt(ctx context.Context, targetTime time.Time) (*Snapshot, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, fmt.Errorf("no TLE dataset loaded")
	}

	start := time.Now()
	points, successCount, errorCount := p.pool.SubpointBatch(ctx, ds.Satellites, targetTime, p.propsFor(ds))
	duration := time.Since(start)

	metrics.RecordPropagation(duration, successCount, errorCount)
	p.logger.Debug("snapshot complete",
		"target_time", targetTime.UTC().Format(time.RFC3339),
		"success", successCount,
		"errors", errorCount,
		"duration_ms", duration.Milliseconds(),
	)

	return &Snapshot{Timestamp: targetTime, Satellites: points}, nil
}
