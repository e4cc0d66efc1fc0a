package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/metrics"
)

// Sessions is the part of the console session store the sweeper needs.
//
// session.MemoryStore and session.PostgresStore satisfy this.
type Sessions interface {
	DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Views is in-memory view state keyed by console session. viewstore.Store satisfies this.
type Views interface {
	DropSession(session string) int
	EvictIdle(cutoff time.Time) int
}

type Sweeper struct {
	log      zerolog.Logger
	sessions Sessions
	views    []Views
	idleTTL  time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Options struct {
	IdleTTL  time.Duration
	Interval time.Duration
	Views    []Views
	Now      func() time.Time
}

func New(log zerolog.Logger, sessions Sessions, opts Options, m *metrics.Metrics) *Sweeper {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	iv := opts.Interval
	if iv <= 0 {
		iv = time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		log:      log,
		sessions: sessions,
		views:    opts.Views,
		idleTTL:  ttl,
		interval: iv,
		metrics:  m,
		now:      now,
	}
}

// Run sweeps every interval until ctx is done. Failing sweeps back off.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.sessions == nil {
		return
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(s.interval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = time.Minute
	}
	if failures <= 0 {
		return base
	}

	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 30*time.Minute {
		return 30 * time.Minute
	}
	return d
}

// RunOnce deletes console sessions idle for longer than the TTL together with their view
// state, then evicts view state that was not touched within the TTL.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.metrics.IncSweepRun()
	cutoff := s.now().Add(-s.idleTTL)

	ids, err := s.sessions.DeleteIdle(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return 0, err
	}
	s.metrics.AddSweptSessions(int64(len(ids)))

	var views int
	for _, v := range s.views {
		for _, id := range ids {
			views += v.DropSession(id)
		}
		views += v.EvictIdle(cutoff)
	}

	if len(ids) > 0 || views > 0 {
		s.log.Info().Int("sessions", len(ids)).Int("views", views).Msg("swept idle console state")
	}
	return len(ids), nil
}
