package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type scheduledCall struct {
	delay     time.Duration
	sessionID string
	token     int64
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []scheduledCall
}

func (s *recordingScheduler) RunAfter(d time.Duration, sessionID string, token int64) {
	s.mu.Lock()
	s.calls = append(s.calls, scheduledCall{delay: d, sessionID: sessionID, token: token})
	s.mu.Unlock()
}

func (s *recordingScheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *recordingScheduler) last() (scheduledCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return scheduledCall{}, false
	}
	return s.calls[len(s.calls)-1], true
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes map[string]int
}

func (n *recordingNotifier) SessionChanged(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.changes == nil {
		n.changes = make(map[string]int)
	}
	n.changes[sessionID]++
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("id-%05d", next)
	}
}

type testHarness struct {
	engine    *Engine
	store     *MemoryStore
	clock     *manualClock
	scheduler *recordingScheduler
	notifier  *recordingNotifier
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	return newWrappedHarness(t, unwrapped)
}

func unwrapped(store *MemoryStore) Datastore { return store }

// newWrappedHarness runs the engine on top of wrap(store) while the harness
// helpers keep reading the underlying memory store directly.
func newWrappedHarness(t *testing.T, wrap func(*MemoryStore) Datastore) *testHarness {
	t.Helper()
	return newCatalogHarness(t, wrap, NewStaticCatalog([]Template{{Name: "drake", Slots: 2}}, 0, 7))
}

func newCatalogHarness(t *testing.T, wrap func(*MemoryStore) Datastore, catalog Catalog) *testHarness {
	t.Helper()
	h := &testHarness{
		store:     NewMemoryStore(),
		clock:     newManualClock(),
		scheduler: &recordingScheduler{},
		notifier:  &recordingNotifier{},
	}
	engine, err := NewEngine(wrap(h.store), Options{
		Scheduler: h.scheduler,
		Catalog:   catalog,
		Notifier:  h.notifier,
		Now:       h.clock.Now,
		NewID:     sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.engine = engine
	return h
}

func testConfig(rounds int) Config {
	cfg := DefaultConfig()
	cfg.RoundCount = rounds
	cfg.CreationDuration = 60 * time.Second
	return cfg
}

// startGame creates a session hosted by the first player, joins the rest and
// starts it.
func (h *testHarness) startGame(t *testing.T, cfg Config, players ...string) string {
	t.Helper()
	ctx := context.Background()
	id, err := h.engine.CreateSession(ctx, players[0], cfg)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, player := range players[1:] {
		if err := h.engine.JoinSession(ctx, id, player); err != nil {
			t.Fatalf("join %s: %v", player, err)
		}
	}
	if err := h.engine.StartSession(ctx, id, players[0]); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return id
}

func (h *testHarness) session(t *testing.T, id string) *Session {
	t.Helper()
	var session *Session
	err := h.store.Tx(context.Background(), func(tx Tx) error {
		var err error
		session, err = tx.Session(id, LockNone)
		return err
	})
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return session
}

func (h *testHarness) finalizeAll(t *testing.T, id string, players ...string) {
	t.Helper()
	round := h.session(t, id).CurrentRound
	for _, player := range players {
		if err := h.engine.FinalizeEntry(context.Background(), id, player, round); err != nil {
			t.Fatalf("finalize %s: %v", player, err)
		}
	}
}

func (h *testHarness) activeSubmission(t *testing.T, id string) *Submission {
	t.Helper()
	session := h.session(t, id)
	submissionID, ok := session.ActiveSubmissionID()
	if !ok {
		t.Fatalf("no active submission in status %s", session.Status)
	}
	var sub *Submission
	err := h.store.Tx(context.Background(), func(tx Tx) error {
		var err error
		sub, err = tx.Submission(submissionID)
		return err
	})
	if err != nil {
		t.Fatalf("load submission: %v", err)
	}
	return sub
}

// forceUntil lets the host skip phases until the session reaches status.
func (h *testHarness) forceUntil(t *testing.T, id, hostID string, status Status) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if h.session(t, id).Status == status {
			return
		}
		if err := h.engine.ForceAdvance(context.Background(), id, hostID); err != nil {
			t.Fatalf("force advance: %v", err)
		}
	}
	t.Fatalf("session never reached %s", status)
}

func (h *testHarness) transitions(id string, from Status) int {
	count := 0
	for _, event := range h.store.Events() {
		if event.SessionID == id && event.Type == EventSessionAdvanced && event.Payload.From == from {
			count++
		}
	}
	return count
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// failingStore passes transactions through until fail is armed, then runs
// the hook once committed work should be interrupted.
type failingStore struct {
	*MemoryStore
	mu      sync.Mutex
	armed   bool
	allowed int
	onFail  func() error
}

// failAfter lets n more transactions commit and handles every later one
// with onFail.
func (s *failingStore) failAfter(n int, onFail func() error) {
	s.mu.Lock()
	s.armed = true
	s.allowed = n
	s.onFail = onFail
	s.mu.Unlock()
}

func (s *failingStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	var hook func() error
	if s.armed {
		if s.allowed > 0 {
			s.allowed--
		} else {
			hook = s.onFail
		}
	}
	s.mu.Unlock()
	if hook != nil {
		if err := hook(); err != nil {
			return err
		}
	}
	return s.MemoryStore.Tx(ctx, fn)
}
