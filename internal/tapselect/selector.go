// Package tapselect tracks which capture taps a console user has selected and whether the
// current view scopes its queries by them.
package tapselect

import (
	"sync"

	"github.com/google/uuid"
)

type Selector struct {
	mu       sync.Mutex
	selected []uuid.UUID
	holders  int
}

func New(selected ...uuid.UUID) *Selector {
	s := &Selector{}
	s.Set(selected)
	return s
}

// Set replaces the selection. Duplicates are dropped, order is kept.
func (s *Selector) Set(taps []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(taps))
	out := make([]uuid.UUID, 0, len(taps))
	for _, t := range taps {
		if t == uuid.Nil {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	s.mu.Lock()
	s.selected = out
	s.mu.Unlock()
}

// Selected returns a copy of the current selection.
func (s *Selector) Selected() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.selected))
	copy(out, s.selected)
	return out
}

// Enable marks the selector as in use by a view and returns the matching release. The
// release is safe to call more than once; only the first call counts.
func (s *Selector) Enable() (release func()) {
	s.mu.Lock()
	s.holders++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.holders--
			s.mu.Unlock()
		})
	}
}

// Enabled reports whether any view currently holds the selector.
func (s *Selector) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holders > 0
}

// Strings renders the selection for query parameters.
func (s *Selector) Strings() []string {
	sel := s.Selected()
	out := make([]string, 0, len(sel))
	for _, t := range sel {
		out = append(out, t.String())
	}
	return out
}
