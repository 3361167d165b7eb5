// Package store keeps the bounded in-memory history of execution events.
//
// Store is a ring of fixed capacity with a secondary pid index. Eviction is
// oldest-first, so the entry leaving the ring is always the oldest entry of
// its pid; the index holds per-pid FIFOs of ring sequence numbers and drops
// the front on eviction. Both structures change under one write lock, so a
// reader sees each insert entirely or not at all.
//
// The store is written by a single consumer and read by any number of API
// handlers. Events are copied on insert and must be treated as read-only by
// callers.
package store

import (
	"sync"

	"github.com/mrzor/exec-monitor/internal/execevent"
)

// DefaultCapacity is the number of events retained.
const DefaultCapacity = 500

type slot struct {
	seq uint64
	ev  execevent.Event
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	Len      int
	Cap      int
	Inserted uint64
	Evicted  uint64
}

// Store is a bounded, concurrency-safe event history.
type Store struct {
	mu      sync.RWMutex
	ring    []slot
	next    uint64              // sequence assigned to the next insert
	size    int                 // occupied slots
	byPID   map[uint32][]uint64 // pid -> sequences, oldest first
	evicted uint64
}

// New creates a store holding at most capacity events.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		ring:  make([]slot, capacity),
		byPID: make(map[uint32][]uint64),
	}
}

// Insert appends ev, evicting the oldest event when the store is full.
func (s *Store) Insert(ev execevent.Event) {
	ev = ev.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	capacity := uint64(len(s.ring))
	if s.size == len(s.ring) {
		oldest := &s.ring[(s.next-capacity)%capacity]
		s.unindex(oldest.ev.PID, oldest.seq)
		*oldest = slot{}
		s.size--
		s.evicted++
	}

	s.ring[s.next%capacity] = slot{seq: s.next, ev: ev}
	s.byPID[ev.PID] = append(s.byPID[ev.PID], s.next)
	s.next++
	s.size++
}

// unindex removes seq from the front of pid's FIFO.
func (s *Store) unindex(pid uint32, seq uint64) {
	seqs := s.byPID[pid]
	if len(seqs) == 0 || seqs[0] != seq {
		// unreachable while the ring and index are updated together
		return
	}
	if len(seqs) == 1 {
		delete(s.byPID, pid)
		return
	}
	s.byPID[pid] = seqs[1:]
}

// Recent returns up to n events, newest first.
func (s *Store) Recent(n int) []execevent.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > s.size {
		n = s.size
	}
	if n <= 0 {
		return []execevent.Event{}
	}

	capacity := uint64(len(s.ring))
	out := make([]execevent.Event, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, s.ring[(s.next-uint64(i))%capacity].ev)
	}
	return out
}

// ByPID returns every retained event for pid, newest first.
// The second result is false when no event for pid is retained.
func (s *Store) ByPID(pid uint32) ([]execevent.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seqs := s.byPID[pid]
	if len(seqs) == 0 {
		return nil, false
	}

	capacity := uint64(len(s.ring))
	out := make([]execevent.Event, 0, len(seqs))
	for i := len(seqs) - 1; i >= 0; i-- {
		out = append(out, s.ring[seqs[i]%capacity].ev)
	}
	return out, true
}

// Len returns the number of retained events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Cap returns the capacity.
func (s *Store) Cap() int {
	return len(s.ring)
}

// Stats returns occupancy and lifetime totals.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Len:      s.size,
		Cap:      len(s.ring),
		Inserted: s.next,
		Evicted:  s.evicted,
	}
}
