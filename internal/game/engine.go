package game

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxRosterSize  = 12
	maxPlayerIDLen = 64
)

var tracer = otel.Tracer("meme-party/internal/game")

// Notifier is told about every committed change to a session.
type Notifier interface {
	SessionChanged(sessionID string)
}

type Options struct {
	Strategy     Strategy
	PollInterval time.Duration
	// Scheduler overrides Strategy when set.
	Scheduler Scheduler
	Catalog   Catalog
	Notifier  Notifier
	Now       func() time.Time
	NewID     func() string
}

// Engine exposes the session entry points. Each call is one datastore
// transaction followed by optional progression work.
type Engine struct {
	store     Datastore
	ctrl      *Controller
	subs      *SubmissionTracker
	votes     *VoteTracker
	catalog   Catalog
	notifier  Notifier
	scheduler Scheduler
	now       func() time.Time
	newID     func() string
}

func NewEngine(store Datastore, opts Options) (*Engine, error) {
	e := &Engine{
		store:    store,
		catalog:  opts.Catalog,
		notifier: opts.Notifier,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	e.scheduler = opts.Scheduler
	if e.scheduler == nil {
		sched, err := NewScheduler(opts.Strategy, opts.PollInterval, e.HandleTimer, e.dueTimers, e.now)
		if err != nil {
			return nil, err
		}
		e.scheduler = sched
	}
	e.subs = &SubmissionTracker{catalog: opts.Catalog, newID: e.newID}
	e.votes = &VoteTracker{newID: e.newID}
	e.ctrl = &Controller{
		store:     store,
		scheduler: e.scheduler,
		subs:      e.subs,
		votes:     e.votes,
		now:       e.now,
		newID:     e.newID,
		notify:    e.changed,
	}
	return e, nil
}

func (e *Engine) changed(sessionID string) {
	if e.notifier != nil {
		e.notifier.SessionChanged(sessionID)
	}
}

// Run re-arms the deadline of every active session and then drives the
// scheduler until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	var refs []TimerRef
	err := e.store.Tx(ctx, func(tx Tx) error {
		var err error
		refs, err = tx.ActiveTimers()
		return err
	})
	if err != nil {
		return err
	}
	now := e.now()
	for _, ref := range refs {
		e.scheduler.RunAfter(ref.Deadline.Sub(now), ref.SessionID, ref.Token)
	}
	log.Info().Int("sessions", len(refs)).Msg("phase timers resumed")
	return e.scheduler.Run(ctx)
}

// HandleTimer is the scheduler callback.
func (e *Engine) HandleTimer(ctx context.Context, sessionID string, token int64) {
	ctx, span := startSpan(ctx, "game.HandleTimer", sessionID)
	span.SetAttributes(attribute.Int64("session.token", token))
	_, err := e.ctrl.Expire(ctx, sessionID, token)
	endSpan(span, err)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Int64("token", token).Msg("phase expiry failed")
	}
}

func (e *Engine) dueTimers(ctx context.Context, now time.Time) ([]TimerRef, error) {
	var refs []TimerRef
	err := e.store.Tx(ctx, func(tx Tx) error {
		var err error
		refs, err = tx.DueTimers(now)
		return err
	})
	return refs, err
}

func (e *Engine) CreateSession(ctx context.Context, hostID string, cfg Config) (id string, err error) {
	ctx, span := startSpan(ctx, "game.CreateSession", "")
	defer func() { endSpan(span, err) }()

	if err := validatePlayerID(hostID); err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	at := e.now()
	session := &Session{
		ID:          e.newID(),
		HostID:      hostID,
		Status:      StatusWaiting,
		TotalRounds: cfg.RoundCount,
		Roster:      []string{hostID},
		Config:      cfg,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	err = e.store.Tx(ctx, func(tx Tx) error {
		if err := tx.InsertSession(session); err != nil {
			return err
		}
		return tx.AppendEvent(&Event{
			ID:        e.newID(),
			SessionID: session.ID,
			PlayerID:  hostID,
			Type:      EventSessionCreated,
			Payload:   EventPayload{To: StatusWaiting, RoundCount: cfg.RoundCount},
			CreatedAt: at,
		})
	})
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("session.id", session.ID))
	log.Info().Str("session_id", session.ID).Str("host_id", hostID).Int("rounds", cfg.RoundCount).Msg("session created")
	return session.ID, nil
}

// JoinSession adds a player to a waiting session. Joining twice is a no-op.
func (e *Engine) JoinSession(ctx context.Context, sessionID, playerID string) (err error) {
	ctx, span := startSpan(ctx, "game.JoinSession", sessionID)
	defer func() { endSpan(span, err) }()

	if err := validatePlayerID(playerID); err != nil {
		return err
	}
	joined := false
	err = e.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockUpdate)
		if err != nil {
			return err
		}
		if session.HasPlayer(playerID) {
			return nil
		}
		if session.Status != StatusWaiting {
			return validationf("cannot join: game has already started")
		}
		if len(session.Roster) >= maxRosterSize {
			return validationf("lobby is full")
		}
		at := e.now()
		session.Roster = append(session.Roster, playerID)
		session.UpdatedAt = at
		if err := tx.SaveSession(session); err != nil {
			return err
		}
		joined = true
		return tx.AppendEvent(&Event{
			ID:        e.newID(),
			SessionID: sessionID,
			PlayerID:  playerID,
			Type:      EventPlayerJoined,
			CreatedAt: at,
		})
	})
	if err != nil {
		return err
	}
	if joined {
		log.Info().Str("session_id", sessionID).Str("player_id", playerID).Msg("player joined")
		e.changed(sessionID)
	}
	return nil
}

func (e *Engine) StartSession(ctx context.Context, sessionID, callerID string) (err error) {
	ctx, span := startSpan(ctx, "game.StartSession", sessionID)
	defer func() { endSpan(span, err) }()
	return e.ctrl.Start(ctx, sessionID, callerID)
}

func (e *Engine) ForceAdvance(ctx context.Context, sessionID, callerID string) (err error) {
	ctx, span := startSpan(ctx, "game.ForceAdvance", sessionID)
	defer func() { endSpan(span, err) }()
	return e.ctrl.ForceAdvance(ctx, sessionID, callerID)
}

// SubmitEntry replaces the player's entry content while it is still open.
func (e *Engine) SubmitEntry(ctx context.Context, sessionID, playerID string, round int, content json.RawMessage) (err error) {
	ctx, span := startSpan(ctx, "game.SubmitEntry", sessionID)
	defer func() { endSpan(span, err) }()

	return e.store.Tx(ctx, func(tx Tx) error {
		session, err := e.openRound(tx, sessionID, playerID, round)
		if err != nil {
			return err
		}
		_, err = e.subs.Update(tx, session.ID, round, playerID, content, e.now())
		return err
	})
}

// FinalizeEntry locks the player's entry and advances the phase early once
// the whole roster has finalized.
func (e *Engine) FinalizeEntry(ctx context.Context, sessionID, playerID string, round int) (err error) {
	ctx, span := startSpan(ctx, "game.FinalizeEntry", sessionID)
	defer func() { endSpan(span, err) }()

	var exp expectation
	err = e.store.Tx(ctx, func(tx Tx) error {
		session, err := e.openRound(tx, sessionID, playerID, round)
		if err != nil {
			return err
		}
		at := e.now()
		sub, err := e.subs.MarkSubmitted(tx, session.ID, round, playerID, at)
		if err != nil {
			return err
		}
		exp = expect(session)
		return tx.AppendEvent(&Event{
			ID:        e.newID(),
			SessionID: sessionID,
			Round:     round,
			PlayerID:  playerID,
			Type:      EventEntryFinalized,
			Payload:   EventPayload{SubmissionID: sub.ID},
			CreatedAt: at,
		})
	})
	if err != nil {
		return err
	}
	e.changed(sessionID)
	e.advanceEarly(ctx, sessionID, exp)
	return nil
}

// advanceEarly runs after the caller's action has committed, so its failure
// is logged and never reported as the action's failure. A missed early
// advance is picked up by the phase deadline.
func (e *Engine) advanceEarly(ctx context.Context, sessionID string, exp expectation) {
	if _, err := e.ctrl.TryEarly(context.WithoutCancel(ctx), sessionID, exp); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("early completion check failed")
	}
}

func (e *Engine) openRound(tx Tx, sessionID, playerID string, round int) (*Session, error) {
	session, err := tx.Session(sessionID, LockShare)
	if err != nil {
		return nil, err
	}
	if !session.HasPlayer(playerID) {
		return nil, authorizationf("player is not part of this session")
	}
	if session.Status != StatusCreating {
		return nil, validationf("entries are closed while the session is %s", session.Status)
	}
	if round != session.CurrentRound {
		return nil, validationf("round %d is not the current round", round)
	}
	return session, nil
}

// CastVote records a vote on the entry currently under vote and advances
// early once every eligible voter has voted.
func (e *Engine) CastVote(ctx context.Context, sessionID, voterID string, round int, submissionID string, value int) (err error) {
	ctx, span := startSpan(ctx, "game.CastVote", sessionID)
	defer func() { endSpan(span, err) }()

	var exp expectation
	err = e.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockShare)
		if err != nil {
			return err
		}
		if !session.HasPlayer(voterID) {
			return authorizationf("player is not part of this session")
		}
		if session.Status != StatusVoting {
			return validationf("voting is closed while the session is %s", session.Status)
		}
		if round != session.CurrentRound {
			return validationf("round %d is not the current round", round)
		}
		active, ok := session.ActiveSubmissionID()
		if !ok {
			return validationf("no entry is open for voting")
		}
		if active != submissionID {
			if _, err := tx.Submission(submissionID); err != nil {
				return err
			}
			return validationf("entry is not open for voting")
		}
		at := e.now()
		if _, err := e.votes.CastVote(tx, session, round, voterID, submissionID, value, at); err != nil {
			return err
		}
		exp = expect(session)
		return tx.AppendEvent(&Event{
			ID:        e.newID(),
			SessionID: sessionID,
			Round:     round,
			PlayerID:  voterID,
			Type:      EventVoteCast,
			Payload:   EventPayload{SubmissionID: submissionID, Value: value},
			CreatedAt: at,
		})
	})
	if err != nil {
		return err
	}
	e.changed(sessionID)
	e.advanceEarly(ctx, sessionID, exp)
	return nil
}

// SubmissionScore returns the sum of all vote values recorded for the entry.
func (e *Engine) SubmissionScore(ctx context.Context, submissionID string) (int, error) {
	var score int
	err := e.store.Tx(ctx, func(tx Tx) error {
		var err error
		score, err = e.votes.SubmissionScore(tx, submissionID)
		return err
	})
	return score, err
}

func (e *Engine) PlayerTotalScore(ctx context.Context, sessionID, playerID string) (int, error) {
	var total int
	err := e.store.Tx(ctx, func(tx Tx) error {
		if _, err := tx.Session(sessionID, LockNone); err != nil {
			return err
		}
		var err error
		total, err = e.votes.PlayerTotalScore(tx, sessionID, playerID)
		return err
	})
	return total, err
}

// Templates lists the read-only content catalog.
func (e *Engine) Templates() []Template {
	if e.catalog == nil {
		return []Template{}
	}
	return e.catalog.Templates()
}

// Cleanup deletes sessions created more than olderThan ago together with
// their entries, votes and events.
func (e *Engine) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	threshold := e.now().Add(-olderThan)
	var removed []string
	err := e.store.Tx(ctx, func(tx Tx) error {
		ids, err := tx.SessionsCreatedBefore(threshold)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.DeleteSession(id); err != nil {
				return err
			}
		}
		removed = ids
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range removed {
		e.changed(id)
	}
	if len(removed) > 0 {
		log.Info().Int("sessions", len(removed)).Time("threshold", threshold).Msg("outdated sessions removed")
	}
	return len(removed), nil
}

func validatePlayerID(playerID string) error {
	trimmed := strings.TrimSpace(playerID)
	if trimmed == "" {
		return validationf("player id is required")
	}
	if trimmed != playerID || len(playerID) > maxPlayerIDLen {
		return validationf("player id is malformed")
	}
	return nil
}

func startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if sessionID != "" {
		span.SetAttributes(attribute.String("session.id", sessionID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
