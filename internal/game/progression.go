package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	reasonStart    = "start"
	reasonTimeout  = "timeout"
	reasonEarly    = "all_done"
	reasonForced   = "forced"
	noVotingIndex  = -1
	maxEarlyChains = 64
)

// expectation is what a caller believes the session looks like. A transition
// only runs when the reloaded session still matches it.
type expectation struct {
	status      Status
	token       int64
	votingIndex int
}

func expect(session *Session) expectation {
	return expectation{
		status:      session.Status,
		token:       session.PhaseToken,
		votingIndex: session.votingIndexOr(noVotingIndex),
	}
}

func (e expectation) matches(session *Session) bool {
	return session.Status == e.status &&
		session.PhaseToken == e.token &&
		session.votingIndexOr(noVotingIndex) == e.votingIndex
}

// transitionRecord describes a committed transition for post-commit work.
type transitionRecord struct {
	sessionID string
	from      Status
	to        Status
	round     int
	token     int64
	deadline  *time.Time
	reason    string
	next      expectation
}

type phaseTransition struct {
	advance func(c *Controller, tx Tx, session *Session, at time.Time) error
}

var phaseTransitions = map[Status]phaseTransition{
	StatusCreating: {
		advance: func(c *Controller, tx Tx, session *Session, at time.Time) error {
			subs, err := tx.RoundSubmissions(session.ID, session.CurrentRound)
			if err != nil {
				return err
			}
			order := VotingOrder(subs)
			if len(order) == 0 {
				session.Status = StatusRoundResults
				session.VotingOrder = nil
				return nil
			}
			first := 0
			session.Status = StatusVoting
			session.VotingOrder = order
			session.VotingIndex = &first
			return nil
		},
	},
	StatusVoting: {
		advance: func(c *Controller, tx Tx, session *Session, at time.Time) error {
			next := session.votingIndexOr(noVotingIndex) + 1
			if next > 0 && next < len(session.VotingOrder) {
				session.VotingIndex = &next
				return nil
			}
			session.Status = StatusRoundResults
			return nil
		},
	},
	StatusRoundResults: {
		advance: func(c *Controller, tx Tx, session *Session, at time.Time) error {
			if session.CurrentRound < session.TotalRounds {
				return c.enterCreating(tx, session, session.CurrentRound+1, at)
			}
			session.Status = StatusFinalResults
			return nil
		},
	},
	StatusFinalResults: {
		advance: func(c *Controller, tx Tx, session *Session, at time.Time) error {
			session.Status = StatusFinished
			return nil
		},
	},
}

// Controller is the only writer of status, deadline, token, voting index
// and current round.
type Controller struct {
	store     Datastore
	scheduler Scheduler
	subs      *SubmissionTracker
	votes     *VoteTracker
	now       func() time.Time
	newID     func() string
	notify    func(sessionID string)
}

func (c *Controller) enterCreating(tx Tx, session *Session, round int, at time.Time) error {
	session.Status = StatusCreating
	session.CurrentRound = round
	session.VotingOrder = nil
	return c.subs.SeedRound(tx, session, round, at)
}

// commit finalises a transition whose status fields were already changed by
// an advance function: new token, fresh deadline, persisted row and event.
func (c *Controller) commit(tx Tx, session *Session, from Status, at time.Time, reason string) (*transitionRecord, error) {
	to := session.Status
	if !from.CanTransitionTo(to) {
		return nil, validationf("cannot move from %s to %s", from, to)
	}
	session.PhaseToken++
	if to.Timed() {
		deadline := at.Add(session.Config.PhaseDuration(to))
		session.PhaseDeadline = &deadline
	} else {
		session.PhaseDeadline = nil
	}
	if to != StatusVoting {
		session.VotingIndex = nil
	}
	session.UpdatedAt = at
	if err := tx.SaveSession(session); err != nil {
		return nil, err
	}
	payload := EventPayload{
		From:        from,
		To:          to,
		Token:       session.PhaseToken,
		Reason:      reason,
		VotingIndex: session.VotingIndex,
	}
	if err := tx.AppendEvent(&Event{
		ID:        c.newID(),
		SessionID: session.ID,
		Round:     session.CurrentRound,
		Type:      EventSessionAdvanced,
		Payload:   payload,
		CreatedAt: at,
	}); err != nil {
		return nil, err
	}
	return &transitionRecord{
		sessionID: session.ID,
		from:      from,
		to:        to,
		round:     session.CurrentRound,
		token:     session.PhaseToken,
		deadline:  session.PhaseDeadline,
		reason:    reason,
		next:      expect(session),
	}, nil
}

// step runs the transition out of the session's current phase. Timer expiry
// and host override share it.
func (c *Controller) step(tx Tx, session *Session, at time.Time, reason string) (*transitionRecord, error) {
	transition, ok := phaseTransitions[session.Status]
	if !ok {
		return nil, validationf("session is %s; nothing to advance", session.Status)
	}
	from := session.Status
	if err := transition.advance(c, tx, session, at); err != nil {
		return nil, err
	}
	return c.commit(tx, session, from, at, reason)
}

// Start moves a waiting session into the first creating phase.
func (c *Controller) Start(ctx context.Context, sessionID, callerID string) error {
	var rec *transitionRecord
	err := c.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockUpdate)
		if err != nil {
			return err
		}
		if session.HostID != callerID {
			return authorizationf("only the host can start the game")
		}
		if session.Status != StatusWaiting {
			return validationf("game has already started")
		}
		if len(session.Roster) == 0 {
			return validationf("no players have joined")
		}
		at := c.now()
		if err := c.enterCreating(tx, session, 1, at); err != nil {
			return err
		}
		rec, err = c.commit(tx, session, StatusWaiting, at, reasonStart)
		return err
	})
	if err != nil {
		return err
	}
	c.after(ctx, rec)
	return nil
}

// Expire handles a scheduled deadline for the phase identified by token.
// Stale or duplicate deliveries return false with no error.
func (c *Controller) Expire(ctx context.Context, sessionID string, token int64) (bool, error) {
	var (
		rec   *transitionRecord
		rearm time.Duration
		stale bool
	)
	err := c.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockUpdate)
		if err != nil {
			return err
		}
		if session.PhaseToken != token || !session.Status.Timed() || session.PhaseDeadline == nil {
			stale = true
			return nil
		}
		at := c.now()
		if at.Before(*session.PhaseDeadline) {
			rearm = session.PhaseDeadline.Sub(at)
			return nil
		}
		rec, err = c.step(tx, session, at, reasonTimeout)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stale {
		log.Debug().Str("session_id", sessionID).Int64("token", token).Msg("stale timer ignored")
		return false, nil
	}
	if rec == nil {
		c.scheduler.RunAfter(rearm, sessionID, token)
		return false, nil
	}
	c.after(ctx, rec)
	return true, nil
}

// ForceAdvance lets the host end the current phase now. It takes the same
// path as an expired deadline.
func (c *Controller) ForceAdvance(ctx context.Context, sessionID, callerID string) error {
	var rec *transitionRecord
	err := c.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockUpdate)
		if err != nil {
			return err
		}
		if session.HostID != callerID {
			return authorizationf("only the host can advance the game")
		}
		if !session.Status.Timed() {
			return validationf("session is %s; nothing to advance", session.Status)
		}
		at := c.now()
		session.PhaseDeadline = &at
		rec, err = c.step(tx, session, at, reasonForced)
		return err
	})
	if err != nil {
		return err
	}
	c.after(ctx, rec)
	return nil
}

// TryEarly advances the phase described by exp if every required action for
// it has happened. It is a no-op when the phase already moved on.
func (c *Controller) TryEarly(ctx context.Context, sessionID string, exp expectation) (bool, error) {
	rec, err := c.tryEarly(ctx, sessionID, exp)
	if err != nil || rec == nil {
		return false, err
	}
	c.after(ctx, rec)
	return true, nil
}

func (c *Controller) tryEarly(ctx context.Context, sessionID string, exp expectation) (*transitionRecord, error) {
	var rec *transitionRecord
	err := c.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockUpdate)
		if err != nil {
			return err
		}
		if !exp.matches(session) {
			return nil
		}
		done, err := c.phaseComplete(tx, session)
		if err != nil || !done {
			return err
		}
		rec, err = c.step(tx, session, c.now(), reasonEarly)
		return err
	})
	return rec, err
}

// phaseComplete is the early-completion predicate. Result phases are display
// only and never complete early.
func (c *Controller) phaseComplete(tx Tx, session *Session) (bool, error) {
	switch session.Status {
	case StatusCreating:
		return c.subs.IsRoundComplete(tx, session, session.CurrentRound)
	case StatusVoting:
		submissionID, ok := session.ActiveSubmissionID()
		if !ok {
			return false, nil
		}
		return c.votes.IsSubmissionFullyVoted(tx, session, submissionID)
	default:
		return false, nil
	}
}

// after performs post-commit work: arm the next deadline, tell subscribers,
// and chain into the next phase if it is already complete on entry.
func (c *Controller) after(ctx context.Context, rec *transitionRecord) {
	for i := 0; rec != nil && i < maxEarlyChains; i++ {
		log.Info().
			Str("session_id", rec.sessionID).
			Str("from", string(rec.from)).
			Str("to", string(rec.to)).
			Int("round", rec.round).
			Int64("token", rec.token).
			Str("reason", rec.reason).
			Msg("session advanced")
		if rec.deadline != nil {
			c.scheduler.RunAfter(rec.deadline.Sub(c.now()), rec.sessionID, rec.token)
		}
		if c.notify != nil {
			c.notify(rec.sessionID)
		}
		next, err := c.tryEarly(ctx, rec.sessionID, rec.next)
		if err != nil {
			log.Error().Err(err).Str("session_id", rec.sessionID).Msg("early completion check failed")
			return
		}
		rec = next
	}
}
