package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

func degrees(rad float64) float64 { return rad * 180.0 / math.Pi }
func radians(deg float64) float64 { return deg * math.Pi / 180.0 }

// primeVertical is N, the ellipsoid's radius of curvature in the prime
// vertical at the given latitude sine.
func primeVertical(sinLat float64) float64 {
	return wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
}

// GeodeticPoint is a sub-satellite point: latitude/longitude in degrees,
// altitude in meters above the WGS-84 ellipsoid.
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// ECEFToGeodetic converts ECEF meters to geodetic coordinates with the
// iterative Bowring method. Two or three iterations converge for Earth
// orbits; five are run for margin.
func ECEFToGeodetic(x, y, z float64) GeodeticPoint {
	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		lat = math.Atan2(z+wgs84E2*primeVertical(sinLat)*sinLat, p)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	N := primeVertical(sinLat)

	// Near the poles cosLat vanishes, so derive altitude from z instead.
	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: degrees(lat),
		LonDeg: normalizeLonDeg(degrees(lon)),
		AltM:   alt,
	}
}

// normalizeLonDeg wraps a longitude into (-180, 180].
func normalizeLonDeg(lon float64) float64 {
	for lon <= -180 {
		lon += 360
	}
	for lon > 180 {
		lon -= 360
	}
	return lon
}

// ObserverPosition is a ground station in both geodetic and ECEF frames.
// The ECEF coordinates are computed once and reused for every satellite
// the observer is compared against.
type ObserverPosition struct {
	LatRad, LonRad, AltM float64 // geodetic (radians, meters above ellipsoid)
	ECEFx, ECEFy, ECEFz  float64 // precomputed ECEF (meters)
}

// NewObserverPosition builds an ObserverPosition from degrees latitude and
// longitude and meters altitude.
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	lat, lon := radians(latDeg), radians(lonDeg)
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	N := primeVertical(sinLat)

	return ObserverPosition{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		ECEFx:  (N + altM) * cosLat * math.Cos(lon),
		ECEFy:  (N + altM) * cosLat * math.Sin(lon),
		ECEFz:  (N*(1-wgs84E2) + altM) * sinLat,
	}
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// sezComponents rotates the observer-to-satellite vector into the
// South-East-Zenith topocentric frame (Vallado section 4.4).
func sezComponents(obs ObserverPosition, dx, dy, dz float64) (s, e, z float64) {
	sinLat, cosLat := math.Sin(obs.LatRad), math.Cos(obs.LatRad)
	sinLon, cosLon := math.Sin(obs.LonRad), math.Cos(obs.LonRad)

	s = sinLat*cosLon*dx + sinLat*sinLon*dy - cosLat*dz
	e = -sinLon*dx + cosLon*dy
	z = cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz
	return s, e, z
}

// ECEFToLookAngles computes azimuth, elevation, and range from an observer
// to a satellite position in ECEF meters.
func ECEFToLookAngles(obs ObserverPosition, satX, satY, satZ float64) LookAngles {
	s, e, z := sezComponents(obs, satX-obs.ECEFx, satY-obs.ECEFy, satZ-obs.ECEFz)
	rng := math.Sqrt(s*s + e*e + z*z)

	// North = -South in SEZ; azimuth runs clockwise from North.
	az := math.Atan2(e, -s)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   degrees(az),
		ElevationDeg: degrees(math.Asin(z / rng)),
		RangeKm:      rng / 1000.0,
	}
}
