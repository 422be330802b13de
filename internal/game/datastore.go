package game

import (
	"context"
	"time"
)

type LockMode int

const (
	LockNone LockMode = iota
	// LockShare is taken by participant actions that validate against the
	// current phase; they do not block each other.
	LockShare
	// LockUpdate is taken by transitions.
	LockUpdate
)

// Datastore runs fn as one atomic unit. Any error returned by fn rolls back
// every write made through tx.
type Datastore interface {
	Tx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes available inside a transaction.
// Lookups that find nothing return an error wrapping ErrNotFound.
type Tx interface {
	Session(id string, lock LockMode) (*Session, error)
	InsertSession(session *Session) error
	SaveSession(session *Session) error
	DeleteSession(id string) error

	Submission(id string) (*Submission, error)
	SubmissionFor(sessionID string, round int, playerID string) (*Submission, error)
	RoundSubmissions(sessionID string, round int) ([]Submission, error)
	SessionSubmissions(sessionID string) ([]Submission, error)
	InsertSubmission(sub *Submission) error
	SaveSubmission(sub *Submission) error
	AddSubmissionScore(id string, delta int) error

	VoteBy(voterID, submissionID string) (*Vote, error)
	// InsertVote returns an error wrapping ErrConflict when the voter already
	// voted on the submission.
	InsertVote(vote *Vote) error
	SubmissionVotes(submissionID string) ([]Vote, error)

	AppendEvent(event *Event) error

	// DueTimers lists active sessions whose deadline is at or before now.
	DueTimers(now time.Time) ([]TimerRef, error)
	// ActiveTimers lists every session that currently has a deadline.
	ActiveTimers() ([]TimerRef, error)
	// SessionsCreatedBefore lists session IDs older than the threshold.
	SessionsCreatedBefore(threshold time.Time) ([]string, error)
}

// TimerRef identifies one scheduled phase expiry.
type TimerRef struct {
	SessionID string
	Token     int64
	Deadline  time.Time
}
