package tle

import "time"

// Entry represents a single satellite's two-line element set.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset represents a complete set of TLE data from a source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// ByNORADID returns the entry with the given catalog number, or nil.
func (d *Dataset) ByNORADID(id int) *Entry {
	for i := range d.Satellites {
		if d.Satellites[i].NORADID == id {
			return &d.Satellites[i]
		}
	}
	return nil
}

// EpochRangeOf computes the min/max epoch over entries.
// Zero range for an empty slice.
func EpochRangeOf(entries []Entry) EpochRange {
	if len(entries) == 0 {
		return EpochRange{}
	}
	r := EpochRange{Min: entries[0].Epoch, Max: entries[0].Epoch}
	for _, e := range entries[1:] {
		if e.Epoch.Before(r.Min) {
			r.Min = e.Epoch
		}
		if e.Epoch.After(r.Max) {
			r.Max = e.Epoch
		}
	}
	return r
}
