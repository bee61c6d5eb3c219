// Package store implements the signal cache: the current value of every
// signal path the engine has ever seen. It has no TTL and no size bound; it
// is a single-writer structure, exclusively owned and mutated by the
// engine's operation loop, so it takes no lock of its own.
package store

import "github.com/vehicle-signal/vis-server/internal/codec"

// Store is the signal cache keyed by the case-folded path. display retains
// the original casing of the first path ever put, for snapshot output.
type Store struct {
	values  map[string]codec.Value
	display map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[string]codec.Value), display: make(map[string]string)}
}

// Get returns the cached value for path and whether one has ever been put.
func (s *Store) Get(path codec.Path) (codec.Value, bool) {
	v, ok := s.values[path.Fold()]
	return v, ok
}

// Put records the latest value observed for path.
func (s *Store) Put(path codec.Path, value codec.Value) {
	key := path.Fold()
	s.values[key] = value
	if _, exists := s.display[key]; !exists {
		s.display[key] = path.String()
	}
}

// Len reports how many distinct paths have a cached value, for diagnostics.
func (s *Store) Len() int {
	return len(s.values)
}

// Snapshot returns every cached path (in its originally observed casing)
// and its current value, for the debug signal-listing endpoint.
func (s *Store) Snapshot() map[string]codec.Value {
	out := make(map[string]codec.Value, len(s.values))
	for key, value := range s.values {
		out[s.display[key]] = value
	}
	return out
}
