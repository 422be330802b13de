package game

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Datastore. Transactions are serialised by a
// single mutex and applied copy-on-write, so a failing transaction leaves no
// trace.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	sessions    map[string]*Session
	submissions map[string]*Submission
	votes       map[string]*Vote
	events      []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			sessions:    make(map[string]*Session),
			submissions: make(map[string]*Submission),
			votes:       make(map[string]*Vote),
		},
	}
}

func (m *MemoryStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	working := m.state.clone()
	if err := fn(&memTx{state: &working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

// Events returns a copy of the event log, oldest first.
func (m *MemoryStore) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.events)
}

func (s memState) clone() memState {
	out := memState{
		sessions:    make(map[string]*Session, len(s.sessions)),
		submissions: make(map[string]*Submission, len(s.submissions)),
		votes:       make(map[string]*Vote, len(s.votes)),
		events:      slices.Clone(s.events),
	}
	for id, session := range s.sessions {
		out.sessions[id] = session.Clone()
	}
	for id, sub := range s.submissions {
		copied := *sub
		copied.Content = slices.Clone(sub.Content)
		out.submissions[id] = &copied
	}
	for id, vote := range s.votes {
		copied := *vote
		out.votes[id] = &copied
	}
	return out
}

type memTx struct {
	state *memState
}

func (t *memTx) Session(id string, _ LockMode) (*Session, error) {
	session, ok := t.state.sessions[id]
	if !ok {
		return nil, notFoundf("session %s", id)
	}
	return session.Clone(), nil
}

func (t *memTx) InsertSession(session *Session) error {
	if _, ok := t.state.sessions[session.ID]; ok {
		return conflictf("session %s already exists", session.ID)
	}
	t.state.sessions[session.ID] = session.Clone()
	return nil
}

func (t *memTx) SaveSession(session *Session) error {
	if _, ok := t.state.sessions[session.ID]; !ok {
		return notFoundf("session %s", session.ID)
	}
	t.state.sessions[session.ID] = session.Clone()
	return nil
}

func (t *memTx) DeleteSession(id string) error {
	delete(t.state.sessions, id)
	for subID, sub := range t.state.submissions {
		if sub.SessionID == id {
			delete(t.state.submissions, subID)
		}
	}
	for voteID, vote := range t.state.votes {
		if vote.SessionID == id {
			delete(t.state.votes, voteID)
		}
	}
	t.state.events = slices.DeleteFunc(t.state.events, func(e Event) bool {
		return e.SessionID == id
	})
	return nil
}

func (t *memTx) Submission(id string) (*Submission, error) {
	sub, ok := t.state.submissions[id]
	if !ok {
		return nil, notFoundf("submission %s", id)
	}
	copied := *sub
	return &copied, nil
}

func (t *memTx) SubmissionFor(sessionID string, round int, playerID string) (*Submission, error) {
	for _, sub := range t.state.submissions {
		if sub.SessionID == sessionID && sub.Round == round && sub.PlayerID == playerID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, notFoundf("submission for player %s in round %d", playerID, round)
}

func (t *memTx) RoundSubmissions(sessionID string, round int) ([]Submission, error) {
	return t.collectSubmissions(func(sub *Submission) bool {
		return sub.SessionID == sessionID && sub.Round == round
	}), nil
}

func (t *memTx) SessionSubmissions(sessionID string) ([]Submission, error) {
	return t.collectSubmissions(func(sub *Submission) bool {
		return sub.SessionID == sessionID
	}), nil
}

func (t *memTx) collectSubmissions(match func(*Submission) bool) []Submission {
	out := make([]Submission, 0)
	for _, sub := range t.state.submissions {
		if match(sub) {
			out = append(out, *sub)
		}
	}
	sortSubmissions(out)
	return out
}

func (t *memTx) InsertSubmission(sub *Submission) error {
	if _, err := t.SubmissionFor(sub.SessionID, sub.Round, sub.PlayerID); err == nil {
		return conflictf("submission for player %s in round %d already exists", sub.PlayerID, sub.Round)
	}
	copied := *sub
	t.state.submissions[sub.ID] = &copied
	return nil
}

func (t *memTx) SaveSubmission(sub *Submission) error {
	if _, ok := t.state.submissions[sub.ID]; !ok {
		return notFoundf("submission %s", sub.ID)
	}
	copied := *sub
	t.state.submissions[sub.ID] = &copied
	return nil
}

func (t *memTx) AddSubmissionScore(id string, delta int) error {
	sub, ok := t.state.submissions[id]
	if !ok {
		return notFoundf("submission %s", id)
	}
	sub.Score += delta
	return nil
}

func (t *memTx) VoteBy(voterID, submissionID string) (*Vote, error) {
	for _, vote := range t.state.votes {
		if vote.VoterID == voterID && vote.SubmissionID == submissionID {
			copied := *vote
			return &copied, nil
		}
	}
	return nil, notFoundf("vote by %s on %s", voterID, submissionID)
}

func (t *memTx) InsertVote(vote *Vote) error {
	if _, err := t.VoteBy(vote.VoterID, vote.SubmissionID); err == nil {
		return conflictf("already voted on this submission")
	}
	copied := *vote
	t.state.votes[vote.ID] = &copied
	return nil
}

func (t *memTx) SubmissionVotes(submissionID string) ([]Vote, error) {
	out := make([]Vote, 0)
	for _, vote := range t.state.votes {
		if vote.SubmissionID == submissionID {
			out = append(out, *vote)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) AppendEvent(event *Event) error {
	t.state.events = append(t.state.events, *event)
	return nil
}

func (t *memTx) DueTimers(now time.Time) ([]TimerRef, error) {
	refs, _ := t.ActiveTimers()
	return slices.DeleteFunc(refs, func(ref TimerRef) bool {
		return ref.Deadline.After(now)
	}), nil
}

func (t *memTx) ActiveTimers() ([]TimerRef, error) {
	refs := make([]TimerRef, 0)
	for _, session := range t.state.sessions {
		if session.PhaseDeadline == nil || !session.Status.Timed() {
			continue
		}
		refs = append(refs, TimerRef{
			SessionID: session.ID,
			Token:     session.PhaseToken,
			Deadline:  *session.PhaseDeadline,
		})
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Deadline.Before(refs[j].Deadline)
	})
	return refs, nil
}

func (t *memTx) SessionsCreatedBefore(threshold time.Time) ([]string, error) {
	ids := make([]string, 0)
	for id, session := range t.state.sessions {
		if session.CreatedAt.Before(threshold) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
