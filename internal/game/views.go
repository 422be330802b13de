package game

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

type SubmissionView struct {
	ID        string          `json:"id"`
	PlayerID  string          `json:"player_id"`
	Round     int             `json:"round"`
	Content   json.RawMessage `json:"content"`
	Submitted bool            `json:"submitted"`
}

func submissionView(sub *Submission) *SubmissionView {
	return &SubmissionView{
		ID:        sub.ID,
		PlayerID:  sub.PlayerID,
		Round:     sub.Round,
		Content:   sub.Content,
		Submitted: sub.Submitted,
	}
}

// SessionView is what a single participant sees. Every field except the
// viewer-specific flags is identical for all viewers at the same moment.
type SessionView struct {
	SessionID   string        `json:"session_id"`
	HostID      string        `json:"host_id"`
	Status      Status        `json:"status"`
	Round       int           `json:"round"`
	TotalRounds int           `json:"total_rounds"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Remaining   time.Duration `json:"-"`
	RemainingMs int64         `json:"remaining_ms"`
	PhaseToken  int64         `json:"phase_token"`
	Roster      []string      `json:"roster"`
	VotingIndex *int          `json:"voting_index,omitempty"`
	VotingCount int           `json:"voting_count"`

	ActiveSubmission *SubmissionView `json:"active_submission,omitempty"`
	IsOwnSubmission  bool            `json:"is_own_submission"`
	HasVoted         bool            `json:"has_voted"`
	// OwnEntry is the viewer's entry for the current round while creating.
	OwnEntry *SubmissionView `json:"own_entry,omitempty"`
}

func (e *Engine) GetSessionView(ctx context.Context, sessionID, viewerID string) (view *SessionView, err error) {
	ctx, span := startSpan(ctx, "game.GetSessionView", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockNone)
		if err != nil {
			return err
		}
		if !session.HasPlayer(viewerID) {
			return authorizationf("player is not part of this session")
		}
		view = &SessionView{
			SessionID:   session.ID,
			HostID:      session.HostID,
			Status:      session.Status,
			Round:       session.CurrentRound,
			TotalRounds: session.TotalRounds,
			PhaseToken:  session.PhaseToken,
			Roster:      append([]string(nil), session.Roster...),
			VotingCount: len(session.VotingOrder),
		}
		if session.PhaseDeadline != nil {
			deadline := *session.PhaseDeadline
			view.Deadline = &deadline
			if remaining := deadline.Sub(e.now()); remaining > 0 {
				view.Remaining = remaining
				view.RemainingMs = remaining.Milliseconds()
			}
		}
		if session.VotingIndex != nil {
			idx := *session.VotingIndex
			view.VotingIndex = &idx
		}

		switch session.Status {
		case StatusCreating:
			sub, err := tx.SubmissionFor(session.ID, session.CurrentRound, viewerID)
			if err == nil {
				view.OwnEntry = submissionView(sub)
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
		case StatusVoting:
			submissionID, ok := session.ActiveSubmissionID()
			if !ok {
				return nil
			}
			sub, err := tx.Submission(submissionID)
			if err != nil {
				return err
			}
			view.ActiveSubmission = submissionView(sub)
			view.IsOwnSubmission = sub.PlayerID == viewerID
			if _, err := tx.VoteBy(viewerID, submissionID); err == nil {
				view.HasVoted = true
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

type EntryResult struct {
	SubmissionID string          `json:"submission_id"`
	PlayerID     string          `json:"player_id"`
	Round        int             `json:"round"`
	Content      json.RawMessage `json:"content"`
	Score        int             `json:"score"`
	Votes        int             `json:"votes"`
}

type RoundResults struct {
	Round      int           `json:"round"`
	Entries    []EntryResult `json:"entries"`
	TotalVotes int           `json:"total_votes"`
}

type PlayerScore struct {
	PlayerID   string `json:"player_id"`
	TotalScore int    `json:"total_score"`
}

type FinalResults struct {
	Entries    []EntryResult `json:"entries"`
	Players    []PlayerScore `json:"players"`
	TotalVotes int           `json:"total_votes"`
}

// RoundStats ranks the entries of a started round by score.
func (e *Engine) RoundStats(ctx context.Context, sessionID, viewerID string, round int) (results *RoundResults, err error) {
	ctx, span := startSpan(ctx, "game.RoundStats", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockNone)
		if err != nil {
			return err
		}
		if !session.HasPlayer(viewerID) {
			return authorizationf("player is not part of this session")
		}
		if round < 1 || round > session.CurrentRound {
			return validationf("round %d has not been played", round)
		}
		subs, err := tx.RoundSubmissions(session.ID, round)
		if err != nil {
			return err
		}
		entries, total, err := e.entryResults(tx, subs)
		if err != nil {
			return err
		}
		results = &RoundResults{Round: round, Entries: entries, TotalVotes: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FinalStats ranks every entry of the session and every roster member by
// total score.
func (e *Engine) FinalStats(ctx context.Context, sessionID, viewerID string) (results *FinalResults, err error) {
	ctx, span := startSpan(ctx, "game.FinalStats", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.store.Tx(ctx, func(tx Tx) error {
		session, err := tx.Session(sessionID, LockNone)
		if err != nil {
			return err
		}
		if !session.HasPlayer(viewerID) {
			return authorizationf("player is not part of this session")
		}
		subs, err := tx.SessionSubmissions(session.ID)
		if err != nil {
			return err
		}
		entries, total, err := e.entryResults(tx, subs)
		if err != nil {
			return err
		}
		totals := make(map[string]int, len(session.Roster))
		for _, entry := range entries {
			totals[entry.PlayerID] += entry.Score
		}
		players := make([]PlayerScore, 0, len(session.Roster))
		for _, playerID := range session.Roster {
			players = append(players, PlayerScore{PlayerID: playerID, TotalScore: totals[playerID]})
		}
		sort.SliceStable(players, func(i, j int) bool {
			return players[i].TotalScore > players[j].TotalScore
		})
		results = &FinalResults{Entries: entries, Players: players, TotalVotes: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) entryResults(tx Tx, subs []Submission) ([]EntryResult, int, error) {
	sortSubmissions(subs)
	entries := make([]EntryResult, 0, len(subs))
	total := 0
	for _, sub := range subs {
		votes, err := tx.SubmissionVotes(sub.ID)
		if err != nil {
			return nil, 0, err
		}
		score := 0
		for _, vote := range votes {
			score += vote.Value
		}
		total += len(votes)
		entries = append(entries, EntryResult{
			SubmissionID: sub.ID,
			PlayerID:     sub.PlayerID,
			Round:        sub.Round,
			Content:      sub.Content,
			Score:        score,
			Votes:        len(votes),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries, total, nil
}
