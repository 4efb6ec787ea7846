// Package state owns the in-memory working set of territories.
//
// The list is only ever replaced wholesale by a load; readers receive copies.
// Loads are serialized through LockLoad so the last load to finish is the one
// that remains, and a failed load leaves the previous list in place.
package state

import (
	"strings"
	"sync"
	"time"

	"territorios/internal/domain/territory"
)

// State is the single application-state object shared by all handlers.
type State struct {
	mu          sync.RWMutex
	territories []territory.Territory
	index       map[string]int
	loadedAt    time.Time
	generation  uint64
	lastErr     error
	lastErrAt   time.Time
	saving      int

	loadMu sync.Mutex
}

// Snapshot describes the load state without exposing the list.
type Snapshot struct {
	Count      int
	LoadedAt   time.Time
	Generation uint64
	LastError  string
	LastErrAt  time.Time
	Stale      bool
	Saving     bool
}

// New creates an empty State.
func New() *State {
	return &State{index: make(map[string]int)}
}

// Replace swaps in a freshly loaded list and clears any load error.
// PRE: ids in list are unique
// POST: Generation incremented; previous list discarded
func (s *State) Replace(list []territory.Territory, at time.Time) {
	copied := make([]territory.Territory, len(list))
	index := make(map[string]int, len(list))
	for i, t := range list {
		copied[i] = t.Clone()
		index[strings.TrimSpace(t.ID)] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.territories = copied
	s.index = index
	s.loadedAt = at
	s.generation++
	s.lastErr = nil
	s.lastErrAt = time.Time{}
}

// RecordLoadFailure keeps the current list and remembers the failure.
// POST: list unchanged; Snapshot().Stale is true
func (s *State) RecordLoadFailure(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = at
}

// LastLoadError returns the error of the most recent load, or nil.
func (s *State) LastLoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// All returns a copy of the full list in load order.
func (s *State) All() []territory.Territory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]territory.Territory, len(s.territories))
	for i, t := range s.territories {
		out[i] = t.Clone()
	}
	return out
}

// Get looks up a territory by id in the full list.
// POST: ok is false when the id is unknown
func (s *State) Get(id string) (territory.Territory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[strings.TrimSpace(id)]
	if !ok {
		return territory.Territory{}, false
	}
	return s.territories[i].Clone(), true
}

// LockLoad serializes loads. The returned func must be called exactly once.
func (s *State) LockLoad() (unlock func()) {
	s.loadMu.Lock()
	return s.loadMu.Unlock
}

// BeginSave marks a save in flight. The release func is idempotent and must
// be deferred so the busy flag clears on every return path.
func (s *State) BeginSave() (release func()) {
	s.mu.Lock()
	s.saving++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.saving--
			s.mu.Unlock()
		})
	}
}

// Saving reports whether any save is in flight.
func (s *State) Saving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saving > 0
}

// Snapshot returns the current load state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Count:      len(s.territories),
		LoadedAt:   s.loadedAt,
		Generation: s.generation,
		LastErrAt:  s.lastErrAt,
		Stale:      s.lastErr != nil,
		Saving:     s.saving > 0,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}
