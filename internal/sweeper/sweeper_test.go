package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/session"
	"nzyme_console/console-go/internal/viewstore"
)

type fakeSessions struct {
	deleteIdleFn func(ctx context.Context, cutoff time.Time) ([]string, error)
}

func (f *fakeSessions) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	return f.deleteIdleFn(ctx, cutoff)
}

func TestRunOnce_DeletesIdleSessionsAndTheirViews(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := session.NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, session.Record{ID: "old", Token: "t1", CreatedAt: now.Add(-3 * time.Hour), LastSeenAt: now.Add(-2 * time.Hour)})
	_ = store.Put(ctx, session.Record{ID: "fresh", Token: "t2", CreatedAt: now, LastSeenAt: now})

	views := viewstore.New[int](clock)
	views.Put("old", "taps", 1)
	views.Put("fresh", "taps", 2)

	s := New(zerolog.Nop(), store, Options{IdleTTL: time.Hour, Views: []Views{views}, Now: clock}, nil)
	n, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one swept session, got %d", n)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected old session to be gone, got %v", err)
	}
	if _, ok := views.Get("old", "taps"); ok {
		t.Fatalf("expected views of the old session to be dropped")
	}
	if _, ok := views.Get("fresh", "taps"); !ok {
		t.Fatalf("expected views of the fresh session to survive")
	}
}

func TestRunOnce_UsesTTLCutoff(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var got time.Time
	f := &fakeSessions{deleteIdleFn: func(_ context.Context, cutoff time.Time) ([]string, error) {
		got = cutoff
		return nil, nil
	}}

	s := New(zerolog.Nop(), f, Options{IdleTTL: 30 * time.Minute, Now: func() time.Time { return now }}, nil)
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if want := now.Add(-30 * time.Minute); !got.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, got)
	}
}

func TestRun_StopsOnContextCancelAndSurvivesErrors(t *testing.T) {
	calls := make(chan struct{}, 8)
	f := &fakeSessions{deleteIdleFn: func(context.Context, time.Time) ([]string, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil, errors.New("db down")
	}}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(zerolog.Nop(), f, Options{Interval: 5 * time.Millisecond}, nil)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}

func TestBackoffDuration(t *testing.T) {
	base := time.Minute
	if got := backoffDuration(base, 0); got != base {
		t.Fatalf("expected base interval, got %v", got)
	}
	if got := backoffDuration(base, 2); got != 4*time.Minute {
		t.Fatalf("expected 4m, got %v", got)
	}
	if got := backoffDuration(base, 20); got != 30*time.Minute {
		t.Fatalf("expected cap of 30m, got %v", got)
	}
}
