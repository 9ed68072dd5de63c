package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the active element-set dataset. Reads are lock-free so request
// handlers never block behind a refresh; the embedded mutex only serializes
// the fetch-and-swap path.
type Store struct {
	current atomic.Pointer[Dataset]
	fetchMu sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the active dataset, nil before the first load.
func (s *Store) Get() *Dataset {
	return s.current.Load()
}

// Set swaps in a new dataset. Existing readers keep the dataset they
// already loaded.
func (s *Store) Set(ds *Dataset) {
	s.current.Store(ds)
}

// Age reports how long ago the active dataset was fetched. ok is false
// before the first load.
func (s *Store) Age() (age time.Duration, ok bool) {
	ds := s.current.Load()
	if ds == nil {
		return 0, false
	}
	return time.Since(ds.FetchedAt), true
}

// Lock takes the fetch mutex. Hold it across fetch, parse, and Set so
// concurrent refreshes cannot interleave.
func (s *Store) Lock() { s.fetchMu.Lock() }

// Unlock releases the fetch mutex.
func (s *Store) Unlock() { s.fetchMu.Unlock() }
