package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/transform"
)

// subpointJob is a unit of work for the worker pool.
type subpointJob struct {
	entry      tle.Entry
	prop       *SGP4Propagator
	targetTime time.Time
	gmst       float64 // precomputed GMST for targetTime
}

// subpointResult is the output of a single satellite propagation.
type subpointResult struct {
	point   SatellitePoint
	err     error
	noradID int
}

// WorkerPool manages a fixed number of goroutines for parallel SGP4 propagation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// SubpointBatch computes the sub-satellite point of every entry at targetTime
// using the worker pool. Entries without a preinitialized propagator in props
// and entries that fail to propagate are logged and skipped. Returns the
// points plus success and error counts.
func (wp *WorkerPool) SubpointBatch(ctx context.Context, entries []tle.Entry, targetTime time.Time, props map[int]*SGP4Propagator) ([]SatellitePoint, int, int) {
	if len(entries) == 0 {
		return nil, 0, 0
	}

	// GMST is the same for every satellite at this instant.
	gmst := transform.GMST(targetTime)

	jobs := make(chan subpointJob, wp.workers*2)
	results := make(chan subpointResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := subpointSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for _, entry := range entries {
			prop, ok := props[entry.NORADID]
			if !ok {
				continue
			}
			job := subpointJob{
				entry:      entry,
				prop:       prop,
				targetTime: targetTime,
				gmst:       gmst,
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	points := make([]SatellitePoint, 0, len(entries))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("propagation failed",
				"norad_id", result.noradID,
				"error", result.err,
			)
			continue
		}
		successCount++
		points = append(points, result.point)
	}

	return points, successCount, errorCount
}

// subpointSingle computes one satellite's sub-satellite point.
func subpointSingle(job subpointJob) subpointResult {
	geo, err := job.prop.SubpointAtWithGMST(job.targetTime, job.gmst)
	if err != nil {
		return subpointResult{noradID: job.entry.NORADID, err: err}
	}

	return subpointResult{
		noradID: job.entry.NORADID,
		point: SatellitePoint{
			NORADID:    job.entry.NORADID,
			Name:       job.entry.Name,
			LatDeg:     geo.LatDeg,
			LonDeg:     geo.LonDeg,
			AltitudeKm: geo.AltM / 1000.0,
		},
	}
}
