package tle

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const snapshotPattern = "tle_%d.txt"

// Cache keeps recent catalog downloads on disk so a restart can serve
// element sets before the first network fetch completes. Files are named by
// fetch time; anything else in the directory is left alone.
type Cache struct {
	dir      string
	maxFiles int
}

func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Write stores a catalog snapshot stamped with its fetch time, then drops
// the oldest snapshots past the retention limit.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	name := fmt.Sprintf(snapshotPattern, ts.Unix())
	if err := os.WriteFile(filepath.Join(c.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	for len(snaps) > c.maxFiles {
		old := snaps[0]
		snaps = snaps[1:]
		if err := os.Remove(filepath.Join(c.dir, old.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", old.name, err)
		}
	}
	return nil
}

// LoadLatest returns the newest snapshot and its fetch time.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, fmt.Errorf("no cache files found")
	}
	newest := snaps[len(snaps)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, newest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, newest.ts, nil
}

type snapshot struct {
	name string
	ts   time.Time
}

// snapshots lists recognized cache files sorted oldest first. A missing
// directory is the same as an empty one.
func (c *Cache) snapshots() ([]snapshot, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var snaps []snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stamp, ok := strings.CutPrefix(e.Name(), "tle_")
		if !ok {
			continue
		}
		stamp, ok = strings.CutSuffix(stamp, ".txt")
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{name: e.Name(), ts: time.Unix(unix, 0)})
	}

	slices.SortFunc(snaps, func(a, b snapshot) int {
		return a.ts.Compare(b.ts)
	})
	return snaps, nil
}
