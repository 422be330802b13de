package db

import (
	"time"

	"gorm.io/datatypes"

	"meme-party/internal/game"
)

type Game struct {
	ID            string                          `gorm:"primaryKey;size:36"`
	HostID        string                          `gorm:"size:64;not null"`
	Status        string                          `gorm:"size:32;not null;index"`
	CurrentRound  int                             `gorm:"not null;default:0"`
	TotalRounds   int                             `gorm:"not null"`
	PhaseDeadline *time.Time                      `gorm:"index"`
	PhaseToken    int64                           `gorm:"not null;default:0"`
	VotingIndex   *int                            `gorm:"default:null"`
	VotingOrder   datatypes.JSONSlice[string]     `gorm:"not null"`
	Settings      datatypes.JSONType[game.Config] `gorm:"not null"`
	CreatedAt     time.Time                       `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt     time.Time                       `gorm:"not null;autoUpdateTime:false"`
	Players       []Player
}

type Player struct {
	ID       uint      `gorm:"primaryKey"`
	GameID   string    `gorm:"size:36;not null;uniqueIndex:idx_players_game_player"`
	PlayerID string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_player"`
	Position int       `gorm:"not null"`
	JoinedAt time.Time `gorm:"not null"`
}

type Submission struct {
	ID        string         `gorm:"primaryKey;size:36"`
	GameID    string         `gorm:"size:36;not null;uniqueIndex:idx_submissions_game_round_player;index:idx_submissions_game_round"`
	Round     int            `gorm:"not null;uniqueIndex:idx_submissions_game_round_player;index:idx_submissions_game_round"`
	PlayerID  string         `gorm:"size:64;not null;uniqueIndex:idx_submissions_game_round_player"`
	Content   datatypes.JSON `gorm:"not null"`
	Submitted bool           `gorm:"not null;default:false"`
	Score     int            `gorm:"not null;default:0"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime:false"`
}

type Vote struct {
	ID           string    `gorm:"primaryKey;size:36"`
	GameID       string    `gorm:"size:36;not null;index:idx_votes_game_round"`
	Round        int       `gorm:"not null;index:idx_votes_game_round"`
	VoterID      string    `gorm:"size:64;not null;uniqueIndex:idx_votes_voter_submission"`
	SubmissionID string    `gorm:"size:36;not null;index;uniqueIndex:idx_votes_voter_submission"`
	Value        int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false"`
}

type Event struct {
	ID        string                                `gorm:"primaryKey;size:36"`
	GameID    string                                `gorm:"size:36;index;not null"`
	Round     int                                   `gorm:"not null;default:0"`
	PlayerID  *string                               `gorm:"size:64"`
	Type      string                                `gorm:"size:64;not null"`
	Payload   datatypes.JSONType[game.EventPayload] `gorm:"not null"`
	CreatedAt time.Time                             `gorm:"not null;autoCreateTime:false"`
}

// Template is one row of the read-only content catalog.
type Template struct {
	ID        uint                        `gorm:"primaryKey"`
	Name      string                      `gorm:"size:128;not null;uniqueIndex"`
	ImageURL  string                      `gorm:"size:512;not null;default:''"`
	Slots     int                         `gorm:"not null;default:2"`
	Example   datatypes.JSONSlice[string] `gorm:"not null"`
	CreatedAt time.Time                   `gorm:"not null"`
	UpdatedAt time.Time                   `gorm:"not null"`
}
