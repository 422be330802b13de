package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Strategy selects how phase deadlines are delivered to the engine.
type Strategy string

const (
	// StrategyTimer arms one in-process timer per scheduled phase.
	StrategyTimer Strategy = "timer"
	// StrategyPoll scans the datastore for expired deadlines on a fixed
	// interval.
	StrategyPoll Strategy = "poll"

	DefaultPollInterval = time.Second
)

func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyTimer:
		return StrategyTimer, nil
	case StrategyPoll:
		return StrategyPoll, nil
	default:
		return "", fmt.Errorf("unknown scheduler strategy %q", raw)
	}
}

// FireFunc receives a phase expiry. Deliveries are at-least-once and may be
// stale; the receiver re-checks the token.
type FireFunc func(ctx context.Context, sessionID string, token int64)

// DueFunc lists the phase expiries that are due at now.
type DueFunc func(ctx context.Context, now time.Time) ([]TimerRef, error)

// Scheduler is a delayed-callback facility. There is no cancellation:
// superseded callbacks still fire and are discarded by the token check.
type Scheduler interface {
	RunAfter(d time.Duration, sessionID string, token int64)
	// Run blocks until ctx is done.
	Run(ctx context.Context) error
}

func NewScheduler(strategy Strategy, pollInterval time.Duration, fire FireFunc, due DueFunc, now func() time.Time) (Scheduler, error) {
	switch strategy {
	case StrategyTimer, "":
		return newTimerScheduler(fire), nil
	case StrategyPoll:
		if pollInterval <= 0 {
			pollInterval = DefaultPollInterval
		}
		return &pollScheduler{interval: pollInterval, fire: fire, due: due, now: now}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler strategy %q", strategy)
	}
}

type timerScheduler struct {
	mu     sync.Mutex
	ctx    context.Context
	fire   FireFunc
	timers map[*time.Timer]struct{}
	closed bool
}

func newTimerScheduler(fire FireFunc) *timerScheduler {
	return &timerScheduler{
		ctx:    context.Background(),
		fire:   fire,
		timers: make(map[*time.Timer]struct{}),
	}
}

func (s *timerScheduler) RunAfter(d time.Duration, sessionID string, token int64) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		ctx, closed := s.ctx, s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.fire(ctx, sessionID, token)
	})
	s.timers[timer] = struct{}{}
}

func (s *timerScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	<-ctx.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for timer := range s.timers {
		timer.Stop()
	}
	clear(s.timers)
	return nil
}

type pollScheduler struct {
	interval time.Duration
	fire     FireFunc
	due      DueFunc
	now      func() time.Time
}

// RunAfter is a no-op: the deadline is already persisted on the session and
// the next poll picks it up.
func (s *pollScheduler) RunAfter(time.Duration, string, int64) {}

func (s *pollScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *pollScheduler) tick(ctx context.Context) {
	refs, err := s.due(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("poll due timers failed")
		return
	}
	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		s.fire(ctx, ref.SessionID, ref.Token)
	}
}
