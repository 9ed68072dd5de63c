package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	f := Default()
	assert.Equal(t, "https://celestrak.org/NORAD/elements/stations.txt", f.TLE.SourceURL)
	assert.Equal(t, "/tmp/groundtrack/tle", f.TLE.CacheDir)
	assert.Equal(t, 5, f.TLE.MaxFiles)
	assert.Contains(t, f.Timezones, "UTC")
	assert.Contains(t, f.Timezones, "Asia/Kolkata")
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
tle:
  source_url: https://example.com/catalog.txt
  extra_urls:
    - https://example.com/more.txt
  cache_dir: /var/lib/groundtrack/tle
  max_files: 3
timezones:
  - UTC
  - Europe/Berlin
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/catalog.txt", f.TLE.SourceURL)
	assert.Equal(t, []string{"https://example.com/more.txt"}, f.TLE.ExtraURLs)
	assert.Equal(t, "/var/lib/groundtrack/tle", f.TLE.CacheDir)
	assert.Equal(t, 3, f.TLE.MaxFiles)
	assert.Equal(t, []string{"UTC", "Europe/Berlin"}, f.Timezones)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
timezones:
  - UTC
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().TLE.SourceURL, f.TLE.SourceURL)
	assert.Equal(t, 5, f.TLE.MaxFiles)
	assert.Equal(t, []string{"UTC"}, f.Timezones)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "tle: [not a map"},
		{"bad max_files", "tle:\n  max_files: 0\ntimezones:\n  - UTC\n"},
		{"empty timezones", "timezones: []\n"},
		{"unknown timezone", "timezones:\n  - Mars/Olympus\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
