package track

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleTrack() *Track {
	return &Track{
		Name:        issName,
		NORADID:     25544,
		Start:       time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		DurationMin: 90,
		StepSec:     30,
		Timezone:    "UTC",
		Points: []Point{
			{Timestamp: "2024-04-10 12:00:00", LatDeg: 12.345678901234, LonDeg: -98.7654321, AltitudeKm: 417.123456},
			{Timestamp: "2024-04-10 12:00:30", LatDeg: 13.5, LonDeg: -97.25, AltitudeKm: 417.5},
			{Timestamp: "2024-04-10 12:01:00", LatDeg: 14.712, LonDeg: 180.0, AltitudeKm: 418.0},
		},
	}
}

func TestCSVFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"ISS (ZARYA)", "iss_(zarya)_ground_track.csv"},
		{"STARLINK-1007", "starlink-1007_ground_track.csv"},
		{"My Custom Sat", "my_custom_sat_ground_track.csv"},
		{"", "satellite_ground_track.csv"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CSVFilename(tc.name))
	}
}

func TestWriteCSV(t *testing.T) {
	tr := sampleTrack()

	var buf bytes.Buffer
	require.NoError(t, tr.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + 3 points

	assert.Equal(t, []string{"Timestamp", "Latitude", "Longitude", "Altitude (km)"}, records[0])

	// Every value must round-trip to the exact float in the table.
	for i, p := range tr.Points {
		rec := records[i+1]
		assert.Equal(t, p.Timestamp, rec[0])

		lat, err := strconv.ParseFloat(rec[1], 64)
		require.NoError(t, err)
		assert.Equal(t, p.LatDeg, lat, "row %d latitude", i)

		lon, err := strconv.ParseFloat(rec[2], 64)
		require.NoError(t, err)
		assert.Equal(t, p.LonDeg, lon, "row %d longitude", i)

		alt, err := strconv.ParseFloat(rec[3], 64)
		require.NoError(t, err)
		assert.Equal(t, p.AltitudeKm, alt, "row %d altitude", i)
	}
}

func TestWriteCSVEmptyTrack(t *testing.T) {
	tr := &Track{Name: "EMPTY"}

	var buf bytes.Buffer
	require.NoError(t, tr.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}

func TestMsgpackColumns(t *testing.T) {
	tr := sampleTrack()

	data, err := tr.Msgpack()
	require.NoError(t, err)

	var decoded msgpackTrack
	require.NoError(t, msgpack.Unmarshal(data, &decoded))

	assert.Equal(t, tr.Name, decoded.Name)
	assert.Equal(t, tr.NORADID, decoded.NORADID)
	assert.Equal(t, tr.Timezone, decoded.Timezone)
	require.Len(t, decoded.Timestamps, len(tr.Points))
	for i, p := range tr.Points {
		assert.Equal(t, p.Timestamp, decoded.Timestamps[i])
		assert.Equal(t, p.LatDeg, decoded.Latitudes[i])
		assert.Equal(t, p.LonDeg, decoded.Longitudes[i])
		assert.Equal(t, p.AltitudeKm, decoded.Altitudes[i])
	}
}
