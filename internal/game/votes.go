package game

import (
	"errors"
	"time"
)

// VoteTracker validates and records votes and aggregates scores.
type VoteTracker struct {
	newID func() string
}

// CastVote records one vote and adds its value to the submission's cached
// score. Phase checks are the caller's responsibility.
func (v *VoteTracker) CastVote(tx Tx, session *Session, round int, voterID, submissionID string, value int, at time.Time) (*Vote, error) {
	if !validVoteValue(value) {
		return nil, validationf("vote value must be -1, 0 or 1")
	}
	if !session.HasPlayer(voterID) {
		return nil, authorizationf("player is not part of this session")
	}
	sub, err := tx.Submission(submissionID)
	if err != nil {
		return nil, err
	}
	if sub.SessionID != session.ID || sub.Round != round {
		return nil, validationf("submission does not belong to round %d", round)
	}
	if sub.PlayerID == voterID {
		return nil, conflictf("cannot vote on your own entry")
	}
	if _, err := tx.VoteBy(voterID, submissionID); err == nil {
		return nil, conflictf("already voted on this entry")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	vote := &Vote{
		ID:           v.newID(),
		SessionID:    session.ID,
		Round:        round,
		VoterID:      voterID,
		SubmissionID: submissionID,
		Value:        value,
		CreatedAt:    at,
	}
	if err := tx.InsertVote(vote); err != nil {
		return nil, err
	}
	if err := tx.AddSubmissionScore(submissionID, value); err != nil {
		return nil, err
	}
	return vote, nil
}

// EligibleVoters is the roster minus the submission's owner.
func EligibleVoters(session *Session, sub *Submission) []string {
	voters := make([]string, 0, len(session.Roster))
	for _, playerID := range session.Roster {
		if playerID != sub.PlayerID {
			voters = append(voters, playerID)
		}
	}
	return voters
}

func (v *VoteTracker) IsSubmissionFullyVoted(tx Tx, session *Session, submissionID string) (bool, error) {
	sub, err := tx.Submission(submissionID)
	if err != nil {
		return false, err
	}
	votes, err := tx.SubmissionVotes(submissionID)
	if err != nil {
		return false, err
	}
	eligible := EligibleVoters(session, sub)
	received := 0
	for _, vote := range votes {
		if vote.VoterID != sub.PlayerID && session.HasPlayer(vote.VoterID) {
			received++
		}
	}
	return received >= len(eligible), nil
}

// SubmissionScore is the plain sum of all recorded vote values.
func (v *VoteTracker) SubmissionScore(tx Tx, submissionID string) (int, error) {
	votes, err := tx.SubmissionVotes(submissionID)
	if err != nil {
		return 0, err
	}
	score := 0
	for _, vote := range votes {
		score += vote.Value
	}
	return score, nil
}

// PlayerTotalScore sums the scores of the player's own entries across all
// rounds. Votes the player cast never count towards it.
func (v *VoteTracker) PlayerTotalScore(tx Tx, sessionID, playerID string) (int, error) {
	subs, err := tx.SessionSubmissions(sessionID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, sub := range subs {
		if sub.PlayerID != playerID {
			continue
		}
		score, err := v.SubmissionScore(tx, sub.ID)
		if err != nil {
			return 0, err
		}
		total += score
	}
	return total, nil
}
