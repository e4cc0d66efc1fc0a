// Package viewstore keeps per-console-session view state in memory: tap selections,
// open trilateration viewers. Entries are dropped with their session or after sitting
// idle.
package viewstore

import (
	"sync"
	"time"
)

type key struct {
	session string
	name    string
}

type entry[V any] struct {
	value      V
	createdAt  time.Time
	lastAccess time.Time
}

// Store maps (console session, name) to a value of type V.
type Store[V any] struct {
	mu    sync.Mutex
	items map[key]*entry[V]
	now   func() time.Time
}

func New[V any](now func() time.Time) *Store[V] {
	if now == nil {
		now = time.Now
	}
	return &Store[V]{items: make(map[key]*entry[V]), now: now}
}

func (s *Store[V]) Put(session, name string, v V) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key{session, name}] = &entry[V]{value: v, createdAt: now, lastAccess: now}
}

// Get returns the value and marks it accessed.
func (s *Store[V]) Get(session, name string) (V, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key{session, name}]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastAccess = now
	return e.value, true
}

// GetOrCreate returns the existing value or stores the one built by mk. mk runs with
// the store locked and must not call back into it.
func (s *Store[V]) GetOrCreate(session, name string, mk func() V) V {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{session, name}
	if e, ok := s.items[k]; ok {
		e.lastAccess = now
		return e.value
	}
	v := mk()
	s.items[k] = &entry[V]{value: v, createdAt: now, lastAccess: now}
	return v
}

func (s *Store[V]) Delete(session, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key{session, name})
}

// DropSession removes every entry of a console session and returns how many there were.
func (s *Store[V]) DropSession(session string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.items {
		if k.session == session {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// EvictIdle removes entries not accessed since cutoff.
func (s *Store[V]) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.items {
		if e.lastAccess.Before(cutoff) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
