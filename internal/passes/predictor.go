// Package passes predicts when satellites rise above an observer's horizon.
package passes

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/propagation"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Elevation float64   `json:"elevation"` // degrees above observer's horizon (0-90)
}

// PassEvent describes a single satellite pass over an observer location.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track"`
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	NORADID int         `json:"norad_id"`
	Name    string      `json:"name,omitempty"`
	Passes  []PassEvent `json:"passes"`
	Error   string      `json:"error,omitempty"`
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Observer     transform.ObserverPosition
	Entries      []tle.Entry
	Start        time.Time
	HorizonHours float64
	MinElevation float64 // degrees
	MaxPasses    int
}

const (
	coarseStep = 30 * time.Second // above-horizon detection
	fineStep   = time.Second      // rise/set refinement
	trackStep  = 10 * time.Second // ground track sampling
	minPassDur = 10 * time.Second
)

// Predict computes passes for every requested satellite. Satellites are
// independent, so each runs in its own goroutine behind a semaphore sized
// to the CPU count; results keep the input order.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	results := make([]SatellitePasses, len(req.Entries))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, entry := range req.Entries {
		wg.Add(1)
		go func(idx int, e tle.Entry) {
			defer wg.Done()
			results[idx] = SatellitePasses{NORADID: e.NORADID, Name: e.Name}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Error = "cancelled"
				return
			}

			passes, err := predictSatellite(ctx, req, e)
			if err != nil {
				results[idx].Error = err.Error()
				return
			}
			results[idx].Passes = passes
		}(i, entry)
	}

	wg.Wait()
	return results
}

// sample is one observation of a satellite from the configured observer.
type sample struct {
	t    time.Time
	la   transform.LookAngles
	ecef transform.PositionECEF
}

func observe(prop *propagation.SGP4Propagator, obs transform.ObserverPosition, t time.Time) (sample, error) {
	teme, err := prop.Propagate(t)
	if err != nil {
		return sample{}, err
	}
	ecef := transform.TEMEToECEF(teme, t)
	return sample{
		t:    t,
		la:   transform.ECEFToLookAngles(obs, ecef.X, ecef.Y, ecef.Z),
		ecef: ecef,
	}, nil
}

// predictSatellite coarse-scans the horizon window for above-horizon
// moments, then refines each hit into a full pass.
func predictSatellite(ctx context.Context, req Request, entry tle.Entry) ([]PassEvent, error) {
	prop, err := propagation.NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		return nil, fmt.Errorf("sgp4 init: %w", err)
	}

	end := req.Start.Add(time.Duration(req.HorizonHours * float64(time.Hour)))
	var passes []PassEvent

	for t := req.Start; t.Before(end) && len(passes) < req.MaxPasses; {
		if ctx.Err() != nil {
			return passes, nil
		}

		s, err := observe(prop, req.Observer, t)
		if err != nil || s.la.ElevationDeg <= 0 {
			t = t.Add(coarseStep)
			continue
		}

		pass, windowEnd := refinePass(ctx, prop, req.Observer, t, req.Start, end, req.MinElevation)
		if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
			passes = append(passes, *pass)
		}
		t = windowEnd.Add(coarseStep)
	}

	return passes, nil
}

// passBuilder accumulates fine-scan samples into one PassEvent.
type passBuilder struct {
	minElev          float64
	rise, peak, last sample
	track            []GroundTrackPoint
	active           bool
	closed           bool
}

// feed consumes one sample. It returns true once the pass has set and the
// caller can stop scanning.
func (b *passBuilder) feed(s sample) bool {
	above := s.la.ElevationDeg >= b.minElev

	switch {
	case above && !b.active:
		b.active = true
		b.rise, b.peak = s, s
		b.sampleTrack(s)
	case above:
		if s.la.ElevationDeg > b.peak.la.ElevationDeg {
			b.peak = s
		}
		b.sampleTrack(s)
	case b.active:
		b.last = s
		b.closed = true
		return true
	}
	return false
}

// sampleTrack records a ground-track point every trackStep since rise.
func (b *passBuilder) sampleTrack(s sample) {
	if int(s.t.Sub(b.rise.t).Seconds())%int(trackStep.Seconds()) != 0 {
		return
	}
	geo := transform.ECEFToGeodetic(s.ecef.X, s.ecef.Y, s.ecef.Z)
	b.track = append(b.track, GroundTrackPoint{
		Time:      s.t,
		Latitude:  geo.LatDeg,
		Longitude: geo.LonDeg,
		Altitude:  geo.AltM,
		Elevation: s.la.ElevationDeg,
	})
}

func (b *passBuilder) event() *PassEvent {
	if !b.active || !b.closed {
		return nil
	}
	return &PassEvent{
		StartTime:        b.rise.t,
		MaxElevationTime: b.peak.t,
		EndTime:          b.last.t,
		DurationSeconds:  b.last.t.Sub(b.rise.t).Seconds(),
		MaxElevation:     b.peak.la.ElevationDeg,
		AzimuthAtMax:     b.peak.la.AzimuthDeg,
		StartAzimuth:     b.rise.la.AzimuthDeg,
		EndAzimuth:       b.last.la.AzimuthDeg,
		GroundTrack:      b.track,
	}
}

// refinePass fine-scans around a coarse above-horizon hit: it backs up one
// coarse step to catch the actual rise, then walks forward until the
// satellite sets or the window ends. Returns the pass (nil when no complete
// pass was found) and the time scanning stopped.
func refinePass(ctx context.Context, prop *propagation.SGP4Propagator, obs transform.ObserverPosition, coarseHit, windowStart, windowEnd time.Time, minElev float64) (*PassEvent, time.Time) {
	t := coarseHit.Add(-coarseStep)
	if t.Before(windowStart) {
		t = windowStart
	}

	b := &passBuilder{minElev: minElev}
	for ; t.Before(windowEnd); t = t.Add(fineStep) {
		if ctx.Err() != nil {
			break
		}
		s, err := observe(prop, obs, t)
		if err != nil {
			continue
		}
		if b.feed(s) {
			break
		}
	}

	// Still above the horizon at the window edge: close the pass there.
	if b.active && !b.closed {
		if s, err := observe(prop, obs, t); err == nil {
			if s.la.ElevationDeg > b.peak.la.ElevationDeg {
				b.peak = s
			}
			b.last = s
		} else {
			b.last = sample{t: t}
		}
		b.closed = true
	}

	if ev := b.event(); ev != nil {
		return ev, ev.EndTime
	}
	return nil, t
}
