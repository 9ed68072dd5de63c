// Package config loads the optional YAML service configuration.
//
// Everything here can also be set (and is overridden) by environment
// variables in cmd/groundtrack; the file exists for the list-valued settings
// that are awkward as env vars: catalog sources and the timezone choices
// offered by the UI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML configuration.
type File struct {
	TLE struct {
		SourceURL string   `yaml:"source_url"`
		ExtraURLs []string `yaml:"extra_urls"`
		CacheDir  string   `yaml:"cache_dir"`
		MaxFiles  int      `yaml:"max_files"`
	} `yaml:"tle"`

	// Timezones offered in the display-timezone selector. Any IANA zone is
	// accepted in track requests; this list only seeds the UI.
	Timezones []string `yaml:"timezones"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *File {
	f := &File{}
	f.TLE.SourceURL = "https://celestrak.org/NORAD/elements/stations.txt"
	f.TLE.CacheDir = "/tmp/groundtrack/tle"
	f.TLE.MaxFiles = 5
	f.Timezones = []string{"UTC", "Asia/Kolkata", "US/Eastern", "Europe/London"}
	return f
}

// Load reads and validates the YAML file at path. Missing fields keep their
// defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if f.TLE.MaxFiles < 1 {
		return nil, fmt.Errorf("tle.max_files must be >= 1, got %d", f.TLE.MaxFiles)
	}
	if len(f.Timezones) == 0 {
		return nil, fmt.Errorf("timezones must not be empty")
	}
	for _, tz := range f.Timezones {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
		}
	}

	return f, nil
}
