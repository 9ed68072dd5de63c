package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go (no CGO), widely adopted, explicit TEME output, includes a GMST
// implementation usable for cross-validation in tests.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not
// visible to the caller. Propagation failures are detected by checking the
// output for NaN/Inf and unreasonable position magnitudes.

// SGP4Propagator wraps the go-satellite library for a single satellite.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines.
//
// Pre-validates the line format before handing it to the library, because
// go-satellite calls log.Fatal on malformed input (which would kill the
// process on a user-supplied element set).
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Propagate computes the satellite state at t (treated as UTC).
// Returns position and velocity in the TEME frame (km, km/s).
func (p *SGP4Propagator) Propagate(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}

	// Sanity check: magnitude between low orbit and a bit beyond GEO.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, mag)
	}

	return transform.PositionTEME{
		X:  pos.X,
		Y:  pos.Y,
		Z:  pos.Z,
		VX: vel.X,
		VY: vel.Y,
		VZ: vel.Z,
	}, nil
}

// SubpointAt computes the sub-satellite point at t: geodetic latitude and
// longitude in degrees, altitude in meters above the WGS-84 ellipsoid.
func (p *SGP4Propagator) SubpointAt(t time.Time) (transform.GeodeticPoint, error) {
	teme, err := p.Propagate(t)
	if err != nil {
		return transform.GeodeticPoint{}, err
	}
	ecef := transform.TEMEToECEF(teme, t)
	return transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z), nil
}

// SubpointAtWithGMST is SubpointAt with a precomputed GMST angle, for batch
// callers propagating many satellites to the same instant.
func (p *SGP4Propagator) SubpointAtWithGMST(t time.Time, gmst float64) (transform.GeodeticPoint, error) {
	teme, err := p.Propagate(t)
	if err != nil {
		return transform.GeodeticPoint{}, err
	}
	ecef := transform.TEMEToECEFWithGMST(teme, gmst)
	return transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z), nil
}
