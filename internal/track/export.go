package track

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// csvHeader matches the displayed table columns exactly, so the download and
// the on-screen table are the same data.
var csvHeader = []string{"Timestamp", "Latitude", "Longitude", "Altitude (km)"}

// CSVFilename derives the download filename from the satellite name:
// spaces become underscores, lowercased, with a fixed suffix.
func CSVFilename(name string) string {
	if name == "" {
		name = "satellite"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_")) + "_ground_track.csv"
}

// WriteCSV writes the track table to w, one record per point.
// Floats use the shortest representation that round-trips, so the exported
// values are identical to the JSON table.
func (t *Track) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, p := range t.Points {
		rec := []string{
			p.Timestamp,
			strconv.FormatFloat(p.LatDeg, 'f', -1, 64),
			strconv.FormatFloat(p.LonDeg, 'f', -1, 64),
			strconv.FormatFloat(p.AltitudeKm, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing CSV record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// msgpackTrack is the compact column-oriented wire form of a track.
type msgpackTrack struct {
	Name       string    `msgpack:"name"`
	NORADID    int       `msgpack:"norad_id"`
	Timezone   string    `msgpack:"tz"`
	Timestamps []string  `msgpack:"ts"`
	Latitudes  []float64 `msgpack:"lat"`
	Longitudes []float64 `msgpack:"lon"`
	Altitudes  []float64 `msgpack:"alt_km"`
}

// Msgpack encodes the track in a column-oriented MessagePack layout, which
// is considerably smaller than the row-oriented JSON for long tracks.
func (t *Track) Msgpack() ([]byte, error) {
	mt := msgpackTrack{
		Name:       t.Name,
		NORADID:    t.NORADID,
		Timezone:   t.Timezone,
		Timestamps: make([]string, len(t.Points)),
		Latitudes:  make([]float64, len(t.Points)),
		Longitudes: make([]float64, len(t.Points)),
		Altitudes:  make([]float64, len(t.Points)),
	}
	for i, p := range t.Points {
		mt.Timestamps[i] = p.Timestamp
		mt.Latitudes[i] = p.LatDeg
		mt.Longitudes[i] = p.LonDeg
		mt.Altitudes[i] = p.AltitudeKm
	}
	return msgpack.Marshal(mt)
}
