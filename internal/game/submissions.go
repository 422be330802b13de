package game

import (
	"encoding/json"
	"errors"
	"sort"
	"time"
)

const maxContentBytes = 16 * 1024

// SubmissionTracker owns per-round entries.
type SubmissionTracker struct {
	catalog Catalog
	newID   func() string
}

func (t *SubmissionTracker) defaultContent(exclude []string) (json.RawMessage, error) {
	if t.catalog == nil {
		return emptyContent(), nil
	}
	return t.catalog.DefaultContent(exclude)
}

// offered collects the templates already offered anywhere in the session.
func (t *SubmissionTracker) offered(tx Tx, sessionID string) ([]string, error) {
	if t.catalog == nil {
		return nil, nil
	}
	subs, err := tx.SessionSubmissions(sessionID)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, sub := range subs {
		names = append(names, offeredTemplates(sub.Content)...)
	}
	return names, nil
}

// CreateIfAbsent seeds the default entry for a player. Existing entries are
// returned untouched.
func (t *SubmissionTracker) CreateIfAbsent(tx Tx, sessionID string, round int, playerID string, at time.Time) (*Submission, error) {
	existing, err := tx.SubmissionFor(sessionID, round, playerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	exclude, err := t.offered(tx, sessionID)
	if err != nil {
		return nil, err
	}
	content, err := t.defaultContent(exclude)
	if err != nil {
		return nil, err
	}
	sub := &Submission{
		ID:        t.newID(),
		SessionID: sessionID,
		PlayerID:  playerID,
		Round:     round,
		Content:   content,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := tx.InsertSubmission(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// SeedRound creates the default entry of every roster member in roster order.
func (t *SubmissionTracker) SeedRound(tx Tx, session *Session, round int, at time.Time) error {
	for _, playerID := range session.Roster {
		if _, err := t.CreateIfAbsent(tx, session.ID, round, playerID, at); err != nil {
			return err
		}
	}
	return nil
}

func (t *SubmissionTracker) Update(tx Tx, sessionID string, round int, playerID string, content json.RawMessage, at time.Time) (*Submission, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	sub, err := t.CreateIfAbsent(tx, sessionID, round, playerID, at)
	if err != nil {
		return nil, err
	}
	if sub.Submitted {
		return nil, conflictf("entry already submitted")
	}
	sub.Content = content
	sub.UpdatedAt = at
	if err := tx.SaveSubmission(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (t *SubmissionTracker) MarkSubmitted(tx Tx, sessionID string, round int, playerID string, at time.Time) (*Submission, error) {
	sub, err := t.CreateIfAbsent(tx, sessionID, round, playerID, at)
	if err != nil {
		return nil, err
	}
	if sub.Submitted {
		return nil, conflictf("entry already submitted")
	}
	sub.Submitted = true
	sub.UpdatedAt = at
	if err := tx.SaveSubmission(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// IsRoundComplete reports whether every current roster member has a
// submitted entry for the round.
func (t *SubmissionTracker) IsRoundComplete(tx Tx, session *Session, round int) (bool, error) {
	subs, err := tx.RoundSubmissions(session.ID, round)
	if err != nil {
		return false, err
	}
	submitted := make(map[string]bool, len(subs))
	for _, sub := range subs {
		if sub.Submitted {
			submitted[sub.PlayerID] = true
		}
	}
	if len(session.Roster) == 0 {
		return false, nil
	}
	for _, playerID := range session.Roster {
		if !submitted[playerID] {
			return false, nil
		}
	}
	return true, nil
}

// VotingOrder fixes the order in which a round's entries are voted on:
// creation time ascending, ties broken by ID. Entries are included whether or
// not they were submitted.
func VotingOrder(subs []Submission) []string {
	sorted := append([]Submission(nil), subs...)
	sortSubmissions(sorted)
	ids := make([]string, 0, len(sorted))
	for _, sub := range sorted {
		ids = append(ids, sub.ID)
	}
	return ids
}

func sortSubmissions(subs []Submission) {
	sort.SliceStable(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
}

func validateContent(content json.RawMessage) error {
	if len(content) == 0 {
		return validationf("content is required")
	}
	if len(content) > maxContentBytes {
		return validationf("content must be %d bytes or fewer", maxContentBytes)
	}
	if !json.Valid(content) {
		return validationf("content must be valid JSON")
	}
	if string(content) == "null" {
		return validationf("content is required")
	}
	return nil
}
