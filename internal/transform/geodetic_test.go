package transform

import (
	"math"
	"testing"
)

// TestECEFToGeodeticRoundTrip verifies that converting geodetic coordinates to
// ECEF and back recovers the original point.
func TestECEFToGeodeticRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		latDeg float64
		lonDeg float64
		altM   float64
	}{
		{"equator prime meridian", 0, 0, 0},
		{"mid latitude", 45.5, -122.6, 100},
		{"southern hemisphere", -33.87, 151.21, 50},
		{"high latitude", 78.2, 15.6, 0},
		{"near dateline east", 10, 179.9, 400000},
		{"near dateline west", 10, -179.9, 400000},
		{"LEO altitude", 51.6, 0, 420000},
		{"GEO altitude", 0, 75, 35786000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := NewObserverPosition(tt.latDeg, tt.lonDeg, tt.altM)
			got := ECEFToGeodetic(obs.ECEFx, obs.ECEFy, obs.ECEFz)

			if math.Abs(got.LatDeg-tt.latDeg) > 1e-6 {
				t.Errorf("latitude: got %.8f, want %.8f", got.LatDeg, tt.latDeg)
			}
			if math.Abs(got.LonDeg-tt.lonDeg) > 1e-6 {
				t.Errorf("longitude: got %.8f, want %.8f", got.LonDeg, tt.lonDeg)
			}
			if math.Abs(got.AltM-tt.altM) > 0.01 {
				t.Errorf("altitude: got %.4f m, want %.4f m", got.AltM, tt.altM)
			}
		})
	}
}

// TestECEFToGeodeticPoles verifies the near-pole altitude branch where
// cos(lat) approaches zero.
func TestECEFToGeodeticPoles(t *testing.T) {
	// Directly above the north pole at 500 km.
	const polarRadius = 6356752.314245
	got := ECEFToGeodetic(0, 0, polarRadius+500000)

	if math.Abs(got.LatDeg-90) > 1e-4 {
		t.Errorf("polar latitude: got %.6f, want 90", got.LatDeg)
	}
	if math.Abs(got.AltM-500000) > 1.0 {
		t.Errorf("polar altitude: got %.1f m, want 500000", got.AltM)
	}

	// South pole.
	got = ECEFToGeodetic(0, 0, -(polarRadius + 500000))
	if math.Abs(got.LatDeg+90) > 1e-4 {
		t.Errorf("south polar latitude: got %.6f, want -90", got.LatDeg)
	}
}

// TestNormalizeLonDeg verifies longitude wrapping into (-180, 180].
func TestNormalizeLonDeg(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{181, -179},
		{-181, 179},
		{360, 0},
		{540, 180},
		{-540, 180},
	}
	for _, tt := range tests {
		if got := normalizeLonDeg(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("normalizeLonDeg(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewObserverPosition_ECEFMagnitude(t *testing.T) {
	// Observer at sea level should have ECEF magnitude close to Earth radius.
	obs := NewObserverPosition(0, 0, 0) // equator, prime meridian
	mag := math.Sqrt(obs.ECEFx*obs.ECEFx + obs.ECEFy*obs.ECEFy + obs.ECEFz*obs.ECEFz)

	// WGS-84 equatorial radius is 6378137 m.
	if math.Abs(mag-6378137.0) > 1.0 {
		t.Errorf("equatorial observer ECEF magnitude = %.1f m, want ~6378137 m", mag)
	}

	// Observer at north pole: magnitude should be ~6356752 m (polar radius).
	obs2 := NewObserverPosition(90, 0, 0)
	mag2 := math.Sqrt(obs2.ECEFx*obs2.ECEFx + obs2.ECEFy*obs2.ECEFy + obs2.ECEFz*obs2.ECEFz)
	if math.Abs(mag2-6356752.3) > 1.0 {
		t.Errorf("polar observer ECEF magnitude = %.1f m, want ~6356752 m", mag2)
	}
}

func TestECEFToLookAngles_DirectlyOverhead(t *testing.T) {
	// Observer at equator, prime meridian. Satellite directly above at 400 km.
	obs := NewObserverPosition(0, 0, 0)

	satAlt := 400000.0
	la := ECEFToLookAngles(obs, obs.ECEFx+satAlt, obs.ECEFy, obs.ECEFz)

	if math.Abs(la.ElevationDeg-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-400.0) > 1.0 {
		t.Errorf("overhead range = %.2f km, want ~400", la.RangeKm)
	}
}

func TestECEFToLookAngles_AzimuthDirections(t *testing.T) {
	// Observer at equator, prime meridian.
	obs := NewObserverPosition(0, 0, 0)

	// Satellite to the north (higher latitude, same longitude).
	satN := NewObserverPosition(10, 0, 400000)
	laN := ECEFToLookAngles(obs, satN.ECEFx, satN.ECEFy, satN.ECEFz)
	if laN.AzimuthDeg > 30 && laN.AzimuthDeg < 330 {
		t.Errorf("northward azimuth = %.2f deg, want near 0/360", laN.AzimuthDeg)
	}

	// Satellite to the east (same latitude, higher longitude).
	satE := NewObserverPosition(0, 10, 400000)
	laE := ECEFToLookAngles(obs, satE.ECEFx, satE.ECEFy, satE.ECEFz)
	if math.Abs(laE.AzimuthDeg-90.0) > 30 {
		t.Errorf("eastward azimuth = %.2f deg, want near 90", laE.AzimuthDeg)
	}

	// Satellite to the south (lower latitude, same longitude).
	satS := NewObserverPosition(-10, 0, 400000)
	laS := ECEFToLookAngles(obs, satS.ECEFx, satS.ECEFy, satS.ECEFz)
	if math.Abs(laS.AzimuthDeg-180.0) > 30 {
		t.Errorf("southward azimuth = %.2f deg, want near 180", laS.AzimuthDeg)
	}
}

func TestECEFToLookAngles_RangePositive(t *testing.T) {
	obs := NewObserverPosition(40.7128, -74.006, 10) // NYC
	la := ECEFToLookAngles(obs, 6778000.0, 0, 0)
	if la.RangeKm <= 0 {
		t.Errorf("range should be positive, got %.2f km", la.RangeKm)
	}
}
