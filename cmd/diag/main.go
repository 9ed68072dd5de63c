package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/propagation"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/tle"
	"github.com/nilabh-astrophysics/satellite-tracker1/internal/track"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	path := "/tmp/groundtrack/tle"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	var data []byte
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		cached, ts, err := tle.NewCache(path, 5).LoadLatest()
		if err != nil {
			fmt.Println("ERROR reading TLE cache:", err)
			os.Exit(1)
		}
		fmt.Printf("Using cache file from %v\n", ts.Format(time.RFC3339))
		data = cached
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Println("ERROR reading TLE file:", err)
			os.Exit(1)
		}
		data = raw
	}

	entries, err := tle.Parse(bytes.NewReader(data), logger)
	if err != nil {
		fmt.Println("ERROR parsing TLE:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d TLE entries\n", len(entries))
	if len(entries) == 0 {
		os.Exit(1)
	}
	entry := entries[0]
	fmt.Printf("First entry: %s (NORAD %d) epoch %v\n", entry.Name, entry.NORADID, entry.Epoch)

	store := tle.NewStore()
	store.Set(&tle.Dataset{
		Source:     path,
		FetchedAt:  time.Now(),
		EpochRange: tle.EpochRangeOf(entries),
		Satellites: entries,
	})

	prop := propagation.NewPropagator(store, propagation.PropConfig{
		Workers: runtime.NumCPU(),
		Step:    5 * time.Second,
		Horizon: 600 * time.Second,
	}, logger)

	gen := track.NewGenerator(prop)
	tr, err := gen.Generate(context.Background(), track.Request{
		Entry:    entry,
		Start:    time.Now().UTC(),
		Duration: 90 * time.Minute,
		Step:     30 * time.Second,
		Location: time.UTC,
	})
	if err != nil {
		fmt.Println("ERROR generating track:", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d track points over %d minutes\n", len(tr.Points), tr.DurationMin)
	for i, p := range tr.Points {
		if i < 3 || i >= len(tr.Points)-3 {
			fmt.Printf("  %s  lat=%9.4f  lon=%9.4f  alt=%8.2f km\n",
				p.Timestamp, p.LatDeg, p.LonDeg, p.AltitudeKm)
		} else if i == 3 {
			fmt.Println("  ...")
		}
	}
}
