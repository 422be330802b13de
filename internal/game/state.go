package game

import (
	"encoding/json"
	"slices"
	"time"
)

type Status string

const (
	StatusWaiting      Status = "waiting"
	StatusCreating     Status = "creating"
	StatusVoting       Status = "voting"
	StatusRoundResults Status = "round_results"
	StatusFinalResults Status = "final_results"
	StatusFinished     Status = "finished"
)

// Timed reports whether the status carries a phase deadline.
func (s Status) Timed() bool {
	switch s {
	case StatusCreating, StatusVoting, StatusRoundResults, StatusFinalResults:
		return true
	default:
		return false
	}
}

var statusTransitions = map[Status][]Status{
	StatusWaiting:      {StatusCreating},
	StatusCreating:     {StatusVoting, StatusRoundResults},
	StatusVoting:       {StatusVoting, StatusRoundResults},
	StatusRoundResults: {StatusCreating, StatusFinalResults},
	StatusFinalResults: {StatusFinished},
}

func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(statusTransitions[s], target)
}

const (
	DefaultRoundCount           = 3
	DefaultCreationDuration     = 90 * time.Second
	DefaultVoteDurationPerEntry = 20 * time.Second
	DefaultResultsDuration      = 10 * time.Second
	DefaultFinalResultsDuration = 10 * time.Second

	maxRoundCount = 10
	maxDuration   = time.Hour
)

type Config struct {
	RoundCount           int           `json:"round_count"`
	CreationDuration     time.Duration `json:"creation_duration"`
	VoteDurationPerEntry time.Duration `json:"vote_duration_per_entry"`
	ResultsDuration      time.Duration `json:"results_duration"`
	// FinalResultsDuration falls back to ResultsDuration when zero.
	FinalResultsDuration time.Duration `json:"final_results_duration"`
}

func DefaultConfig() Config {
	return Config{
		RoundCount:           DefaultRoundCount,
		CreationDuration:     DefaultCreationDuration,
		VoteDurationPerEntry: DefaultVoteDurationPerEntry,
		ResultsDuration:      DefaultResultsDuration,
		FinalResultsDuration: DefaultFinalResultsDuration,
	}
}

func (c Config) Validate() error {
	if c.RoundCount < 1 || c.RoundCount > maxRoundCount {
		return validationf("round count must be between 1 and %d", maxRoundCount)
	}
	durations := []struct {
		label string
		value time.Duration
	}{
		{"creation duration", c.CreationDuration},
		{"vote duration", c.VoteDurationPerEntry},
		{"results duration", c.ResultsDuration},
	}
	for _, d := range durations {
		if d.value <= 0 || d.value > maxDuration {
			return validationf("%s must be between 1s and %s", d.label, maxDuration)
		}
	}
	if c.FinalResultsDuration < 0 || c.FinalResultsDuration > maxDuration {
		return validationf("final results duration must be at most %s", maxDuration)
	}
	return nil
}

// PhaseDuration returns how long a freshly entered phase lasts.
func (c Config) PhaseDuration(status Status) time.Duration {
	switch status {
	case StatusCreating:
		return c.CreationDuration
	case StatusVoting:
		return c.VoteDurationPerEntry
	case StatusRoundResults:
		return c.ResultsDuration
	case StatusFinalResults:
		if c.FinalResultsDuration > 0 {
			return c.FinalResultsDuration
		}
		return c.ResultsDuration
	default:
		return 0
	}
}

// Session is the persisted progression record of one game.
type Session struct {
	ID           string
	HostID       string
	Status       Status
	CurrentRound int
	TotalRounds  int
	// PhaseDeadline is set iff Status.Timed().
	PhaseDeadline *time.Time
	PhaseToken    int64
	// VotingIndex is set iff Status == StatusVoting and indexes VotingOrder.
	VotingIndex *int
	VotingOrder []string
	Roster      []string
	Config      Config
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.PhaseDeadline != nil {
		deadline := *s.PhaseDeadline
		out.PhaseDeadline = &deadline
	}
	if s.VotingIndex != nil {
		index := *s.VotingIndex
		out.VotingIndex = &index
	}
	out.VotingOrder = slices.Clone(s.VotingOrder)
	out.Roster = slices.Clone(s.Roster)
	return &out
}

func (s *Session) HasPlayer(playerID string) bool {
	return slices.Contains(s.Roster, playerID)
}

// ActiveSubmissionID returns the submission currently under vote.
func (s *Session) ActiveSubmissionID() (string, bool) {
	if s.Status != StatusVoting || s.VotingIndex == nil {
		return "", false
	}
	i := *s.VotingIndex
	if i < 0 || i >= len(s.VotingOrder) {
		return "", false
	}
	return s.VotingOrder[i], true
}

func (s *Session) votingIndexOr(fallback int) int {
	if s.VotingIndex == nil {
		return fallback
	}
	return *s.VotingIndex
}

// Submission is one player's entry for one round. Content is opaque.
type Submission struct {
	ID        string
	SessionID string
	PlayerID  string
	Round     int
	Content   json.RawMessage
	Submitted bool
	Score     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Vote struct {
	ID           string
	SessionID    string
	Round        int
	VoterID      string
	SubmissionID string
	Value        int
	CreatedAt    time.Time
}

func validVoteValue(value int) bool {
	return value >= -1 && value <= 1
}

const (
	EventSessionCreated  = "session_created"
	EventPlayerJoined    = "player_joined"
	EventSessionAdvanced = "session_advanced"
	EventEntryFinalized  = "entry_finalized"
	EventVoteCast        = "vote_cast"
)

type Event struct {
	ID        string
	SessionID string
	Round     int
	PlayerID  string
	Type      string
	Payload   EventPayload
	CreatedAt time.Time
}

type EventPayload struct {
	From         Status `json:"from,omitempty"`
	To           Status `json:"to,omitempty"`
	Token        int64  `json:"token,omitempty"`
	Reason       string `json:"reason,omitempty"`
	VotingIndex  *int   `json:"voting_index,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
	Value        int    `json:"value,omitempty"`
	RoundCount   int    `json:"round_count,omitempty"`
}
