package tone

import "sync/atomic"

// Store publishes Params from the control side to the audio callback.
//
// Set swaps in a freshly allocated immutable value; Snapshot loads the
// pointer and copies it. The reader never blocks, never allocates and always
// sees all three fields from the same Set.
type Store struct {
	cur     atomic.Pointer[Params]
	version atomic.Uint64
}

// NewStore returns a store holding initial.
func NewStore(initial Params) *Store {
	s := &Store{}
	s.Set(initial)
	return s
}

// Set publishes p. No validation is performed.
func (s *Store) Set(p Params) {
	np := p
	s.cur.Store(&np)
	s.version.Add(1)
}

// Snapshot returns the most recently published parameters.
func (s *Store) Snapshot() Params {
	if p := s.cur.Load(); p != nil {
		return *p
	}
	return Params{}
}

// Version increments on every Set.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Update applies fn to the current snapshot and publishes the result.
// Concurrent writers race on a last-writer-wins basis; there is one writer
// in practice (the control side).
func (s *Store) Update(fn func(Params) Params) Params {
	p := fn(s.Snapshot())
	s.Set(p)
	return p
}
