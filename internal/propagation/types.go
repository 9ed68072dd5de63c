package propagation

import "time"

// Snapshot holds the sub-satellite points of all catalog satellites at a
// single instant.
type Snapshot struct {
	Timestamp  time.Time
	Satellites []SatellitePoint
}

// SatellitePoint is one satellite's sub-satellite point at a snapshot time.
type SatellitePoint struct {
	NORADID    int
	Name       string
	LatDeg     float64
	LonDeg     float64
	AltitudeKm float64
}

// PropConfig holds propagation configuration loaded from environment variables.
type PropConfig struct {
	Workers int           // Worker pool size (default: runtime.NumCPU())
	Step    time.Duration // Snapshot interval (default: 5s)
	Horizon time.Duration // Snapshot cache horizon (default: 600s)
}
