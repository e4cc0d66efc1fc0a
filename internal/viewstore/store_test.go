package viewstore

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestStore_GetOrCreateReusesValue(t *testing.T) {
	s := New[*int](nil)
	built := 0
	mk := func() *int {
		built++
		v := built
		return &v
	}

	a := s.GetOrCreate("sess-1", "taps", mk)
	b := s.GetOrCreate("sess-1", "taps", mk)
	if a != b || built != 1 {
		t.Fatalf("expected one build and the same value, built=%d", built)
	}
	if c := s.GetOrCreate("sess-2", "taps", mk); c == a {
		t.Fatalf("sessions must not share values")
	}
}

func TestStore_EvictIdleUsesLastAccess(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := New[string](c.now)

	s.Put("sess-1", "a", "old")
	s.Put("sess-1", "b", "touched")

	c.t = c.t.Add(30 * time.Minute)
	if _, ok := s.Get("sess-1", "b"); !ok {
		t.Fatalf("expected b to exist")
	}

	if n := s.EvictIdle(c.t.Add(-10 * time.Minute)); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, ok := s.Get("sess-1", "a"); ok {
		t.Fatalf("expected a to be evicted")
	}
	if v, ok := s.Get("sess-1", "b"); !ok || v != "touched" {
		t.Fatalf("expected b to survive, got %q %v", v, ok)
	}
}

func TestStore_DropSession(t *testing.T) {
	s := New[int](nil)
	s.Put("sess-1", "a", 1)
	s.Put("sess-1", "b", 2)
	s.Put("sess-2", "a", 3)

	if n := s.DropSession("sess-1"); n != 2 {
		t.Fatalf("expected 2 dropped, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", s.Len())
	}
	s.Delete("sess-2", "a")
	if s.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}
