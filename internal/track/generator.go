// Package track builds ground tracks: the sequence of sub-satellite points
// traced by a satellite over a simulation window, one row per time step.
package track

import (
	"context"
	"fmt"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/propagation"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
)

// Simulation window limits, matching the UI controls.
const (
	MinDuration = 30 * time.Minute
	MaxDuration = 240 * time.Minute
	MinStep     = 10 * time.Second
	MaxStep     = 120 * time.Second

	DefaultDuration = 90 * time.Minute
	DefaultStep     = 30 * time.Second
)

// displayTimeLayout is the timestamp format shown in the table and CSV.
const displayTimeLayout = "2006-01-02 15:04:05"

// Request describes one ground track computation.
type Request struct {
	Entry    tle.Entry
	Start    time.Time      // UTC instant of the first point
	Duration time.Duration  // simulation window length
	Step     time.Duration  // interval between points
	Location *time.Location // timezone for display timestamps
}

// Point is one row of the ground track table.
type Point struct {
	Time       time.Time `json:"-"`
	Timestamp  string    `json:"timestamp"` // localized display time
	LatDeg     float64   `json:"latitude"`
	LonDeg     float64   `json:"longitude"`
	AltitudeKm float64   `json:"altitude_km"`
}

// Track is a complete ground track table for one satellite.
type Track struct {
	Name        string    `json:"name"`
	NORADID     int       `json:"norad_id"`
	Start       time.Time `json:"start"`
	DurationMin int       `json:"duration_minutes"`
	StepSec     int       `json:"step_seconds"`
	Timezone    string    `json:"timezone"`
	Points      []Point   `json:"points"`
}

// Generator computes ground tracks from element sets.
type Generator struct {
	prop *propagation.Propagator
}

// NewGenerator creates a Generator backed by the given propagator, whose
// per-dataset SGP4 cache is reused for catalog satellites.
func NewGenerator(prop *propagation.Propagator) *Generator {
	return &Generator{prop: prop}
}

// normalize applies defaults and validates the window parameters.
func (r *Request) normalize() error {
	if r.Start.IsZero() {
		r.Start = time.Now().UTC()
	}
	r.Start = r.Start.UTC()
	if r.Duration == 0 {
		r.Duration = DefaultDuration
	}
	if r.Step == 0 {
		r.Step = DefaultStep
	}
	if r.Location == nil {
		r.Location = time.UTC
	}

	if r.Duration < MinDuration || r.Duration > MaxDuration {
		return fmt.Errorf("duration %s out of range [%s, %s]", r.Duration, MinDuration, MaxDuration)
	}
	if r.Step < MinStep || r.Step > MaxStep {
		return fmt.Errorf("step %s out of range [%s, %s]", r.Step, MinStep, MaxStep)
	}
	return nil
}

// Generate computes the ground track for req. The table has one point per
// step in [start, start+duration), timestamps strictly increasing. A point
// that fails to propagate aborts the whole track: a partial table would break
// the one-row-per-step contract.
func (g *Generator) Generate(ctx context.Context, req Request) (*Track, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	prop, err := g.prop.ForEntry(req.Entry)
	if err != nil {
		return nil, err
	}

	numPoints := int(req.Duration / req.Step)
	points := make([]Point, 0, numPoints)

	start := time.Now()
	for i := 0; i < numPoints; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		t := req.Start.Add(time.Duration(i) * req.Step)
		geo, err := prop.SubpointAt(t)
		if err != nil {
			return nil, fmt.Errorf("point %d at %s: %w", i, t.Format(time.RFC3339), err)
		}

		points = append(points, Point{
			Time:       t,
			Timestamp:  t.In(req.Location).Format(displayTimeLayout),
			LatDeg:     geo.LatDeg,
			LonDeg:     geo.LonDeg,
			AltitudeKm: geo.AltM / 1000.0,
		})
	}
	metrics.RecordTrackGeneration(time.Since(start), len(points))

	return &Track{
		Name:        req.Entry.Name,
		NORADID:     req.Entry.NORADID,
		Start:       req.Start,
		DurationMin: int(req.Duration.Minutes()),
		StepSec:     int(req.Step.Seconds()),
		Timezone:    req.Location.String(),
		Points:      points,
	}, nil
}
