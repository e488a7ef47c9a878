package sessions

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentrt/agentrt/internal/observability"
)

// defaultSweepSchedule runs the durable sweep every five minutes.
const defaultSweepSchedule = "*/5 * * * *"

// Sweeper periodically deletes sessions from the durable store whose
// updated_at is older than the TTL. It backstops the per-access in-memory
// timers: after a crash-restart, rehydrated sessions have rows on disk but
// no live timer until the next access, and the sweep catches those.
type Sweeper struct {
	store  Store
	ttl    time.Duration
	logger *observability.Logger
	cron   *cron.Cron
}

// NewSweeper builds a Sweeper over store. schedule is a cron expression;
// empty selects the default.
func NewSweeper(store Store, ttl time.Duration, schedule string, logger *observability.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}

	s := &Sweeper{
		store:  store,
		ttl:    ttl,
		logger: logger,
		cron:   cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins sweeping in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.ttl)
	dropped, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		s.logger.Warn(ctx, "session sweep failed", "error", err)
		return
	}
	if dropped > 0 {
		s.logger.Info(ctx, "session sweep dropped expired sessions", "count", dropped)
	}
}
