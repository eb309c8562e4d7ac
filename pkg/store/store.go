package store

import (
	"sync"
)

// Store holds the broadcast value set together with the per-peer gossip
// frontier: for each peer, the values we have not yet seen acknowledged by
// it. Both live under one mutex because a frontier entry cleared
// concurrently with an insert for the same peer would lose a delivery.
// The value set only ever grows; broadcast never deletes.
type Store struct {
	mu       sync.Mutex
	values   map[int64]struct{}
	frontier map[string]map[int64]struct{}
}

func New() *Store {
	return &Store{
		values:   make(map[int64]struct{}),
		frontier: make(map[string]map[int64]struct{}),
	}
}

// Add inserts a value and marks it pending for every peer except exclude
// (the node we learned it from, so we don't echo it straight back).
// Returns false without touching the frontier when the value was already
// known, which makes concurrent inserts of the same value idempotent.
func (s *Store) Add(v int64, peers []string, exclude string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[v]; ok {
		return false
	}
	s.values[v] = struct{}{}
	for _, p := range peers {
		if p == exclude {
			continue
		}
		f, ok := s.frontier[p]
		if !ok {
			f = make(map[int64]struct{})
			s.frontier[p] = f
		}
		f[v] = struct{}{}
	}
	return true
}

func (s *Store) Contains(v int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[v]
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Snapshot returns a copy of the full value set, in no particular order.
func (s *Store) Snapshot() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.values))
	for v := range s.values {
		out = append(out, v)
	}
	return out
}

// Pending returns a copy of the values awaiting acknowledgment from peer.
func (s *Store) Pending(peer string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frontier[peer]
	if len(f) == 0 {
		return nil
	}
	out := make([]int64, 0, len(f))
	for v := range f {
		out = append(out, v)
	}
	return out
}

// PendingPeers returns the peers with a non-empty frontier.
func (s *Store) PendingPeers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.frontier))
	for p, f := range s.frontier {
		if len(f) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Drain removes the given values from peer's frontier after a positive
// acknowledgment. Values inserted for the peer after the acknowledged
// batch was sent stay pending for the next round.
func (s *Store) Drain(peer string, vals []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.frontier[peer]
	if !ok {
		return
	}
	for _, v := range vals {
		delete(f, v)
	}
	if len(f) == 0 {
		delete(s.frontier, peer)
	}
}
