package tle

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestCacheWriteAndLoadLatest verifies round-tripping through the disk cache.
func TestCacheWriteAndLoadLatest(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 5)

	old := []byte("old catalog\n")
	recent := []byte("recent catalog\n")

	t0 := time.Unix(1700000000, 0)
	if err := c.Write(old, t0); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := c.Write(recent, t0.Add(time.Hour)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, ts, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(data) != string(recent) {
		t.Errorf("expected newest file contents, got %q", data)
	}
	if !ts.Equal(t0.Add(time.Hour)) {
		t.Errorf("expected timestamp %v, got %v", t0.Add(time.Hour), ts)
	}
}

// TestCachePrune verifies that old files beyond maxFiles are removed.
func TestCachePrune(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 2)

	t0 := time.Unix(1700000000, 0)
	for i := 0; i < 4; i++ {
		if err := c.Write([]byte("data"), t0.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files after pruning, got %d", len(entries))
	}

	// The two newest timestamps must survive.
	for _, want := range []time.Time{t0.Add(2 * time.Hour), t0.Add(3 * time.Hour)} {
		name := filepath.Join(dir, fmt.Sprintf("tle_%d.txt", want.Unix()))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected %s to survive pruning: %v", name, err)
		}
	}
}

// TestCacheLoadLatestEmpty verifies the error path when no cache exists.
func TestCacheLoadLatestEmpty(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "missing"), 5)
	if _, _, err := c.LoadLatest(); err == nil {
		t.Fatal("expected error for empty cache, got nil")
	}
}

// TestCacheIgnoresForeignFiles verifies non-cache files in the directory are skipped.
func TestCacheIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewCache(dir, 5)
	ts := time.Unix(1700000000, 0)
	if err := c.Write([]byte("catalog"), ts); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, got, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(data) != "catalog" || !got.Equal(ts) {
		t.Errorf("unexpected load result: %q at %v", data, got)
	}
}
