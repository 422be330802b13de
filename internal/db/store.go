package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meme-party/internal/game"
)

var timedStatuses = []string{
	string(game.StatusCreating),
	string(game.StatusVoting),
	string(game.StatusRoundResults),
	string(game.StatusFinalResults),
}

// Store is the gorm-backed game.Datastore.
type Store struct {
	conn *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) Tx(ctx context.Context, fn func(tx game.Tx) error) error {
	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Session(id string, lock game.LockMode) (*game.Session, error) {
	query := t.db
	switch lock {
	case game.LockShare:
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthShare})
	case game.LockUpdate:
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	var record Game
	if err := query.Where("id = ?", id).Take(&record).Error; err != nil {
		return nil, notFound(err, "session %s", id)
	}
	var players []Player
	if err := t.db.Where("game_id = ?", id).Order("position ASC").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return toSession(&record, players), nil
}

func (t *gormTx) InsertSession(session *game.Session) error {
	record := fromSession(session)
	if err := t.db.Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session %s already exists", game.ErrConflict, session.ID)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return t.syncRoster(session)
}

func (t *gormTx) SaveSession(session *game.Session) error {
	record := fromSession(session)
	result := t.db.Model(&Game{}).Where("id = ?", session.ID).Updates(map[string]any{
		"host_id":        record.HostID,
		"status":         record.Status,
		"current_round":  record.CurrentRound,
		"total_rounds":   record.TotalRounds,
		"phase_deadline": record.PhaseDeadline,
		"phase_token":    record.PhaseToken,
		"voting_index":   record.VotingIndex,
		"voting_order":   record.VotingOrder,
		"settings":       record.Settings,
		"updated_at":     record.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("save session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: session %s", game.ErrNotFound, session.ID)
	}
	return t.syncRoster(session)
}

// syncRoster inserts roster members that have no row yet. The roster only
// ever grows.
func (t *gormTx) syncRoster(session *game.Session) error {
	var existing []string
	if err := t.db.Model(&Player{}).Where("game_id = ?", session.ID).Pluck("player_id", &existing).Error; err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, playerID := range existing {
		known[playerID] = true
	}
	for position, playerID := range session.Roster {
		if known[playerID] {
			continue
		}
		player := Player{
			GameID:   session.ID,
			PlayerID: playerID,
			Position: position,
			JoinedAt: session.UpdatedAt,
		}
		if err := t.db.Create(&player).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: player %s already joined", game.ErrConflict, playerID)
			}
			return fmt.Errorf("insert player: %w", err)
		}
	}
	return nil
}

func (t *gormTx) DeleteSession(id string) error {
	for _, model := range []any{&Vote{}, &Submission{}, &Event{}, &Player{}} {
		if err := t.db.Where("game_id = ?", id).Delete(model).Error; err != nil {
			return fmt.Errorf("delete session rows: %w", err)
		}
	}
	if err := t.db.Where("id = ?", id).Delete(&Game{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (t *gormTx) Submission(id string) (*game.Submission, error) {
	var record Submission
	if err := t.db.Where("id = ?", id).Take(&record).Error; err != nil {
		return nil, notFound(err, "submission %s", id)
	}
	return toSubmission(&record), nil
}

func (t *gormTx) SubmissionFor(sessionID string, round int, playerID string) (*game.Submission, error) {
	var record Submission
	err := t.db.Where("game_id = ? AND round = ? AND player_id = ?", sessionID, round, playerID).Take(&record).Error
	if err != nil {
		return nil, notFound(err, "submission for %s in round %d", playerID, round)
	}
	return toSubmission(&record), nil
}

func (t *gormTx) RoundSubmissions(sessionID string, round int) ([]game.Submission, error) {
	return t.findSubmissions(t.db.Where("game_id = ? AND round = ?", sessionID, round))
}

func (t *gormTx) SessionSubmissions(sessionID string) ([]game.Submission, error) {
	return t.findSubmissions(t.db.Where("game_id = ?", sessionID))
}

func (t *gormTx) findSubmissions(query *gorm.DB) ([]game.Submission, error) {
	var records []Submission
	if err := query.Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	subs := make([]game.Submission, 0, len(records))
	for i := range records {
		subs = append(subs, *toSubmission(&records[i]))
	}
	return subs, nil
}

func (t *gormTx) InsertSubmission(sub *game.Submission) error {
	if err := t.db.Create(fromSubmission(sub)).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: entry already exists", game.ErrConflict)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (t *gormTx) SaveSubmission(sub *game.Submission) error {
	result := t.db.Model(&Submission{}).Where("id = ?", sub.ID).Updates(map[string]any{
		"content":    datatypes.JSON(sub.Content),
		"submitted":  sub.Submitted,
		"updated_at": sub.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("save submission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: submission %s", game.ErrNotFound, sub.ID)
	}
	return nil
}

func (t *gormTx) AddSubmissionScore(id string, delta int) error {
	result := t.db.Model(&Submission{}).Where("id = ?", id).UpdateColumn("score", gorm.Expr("score + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("update score: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: submission %s", game.ErrNotFound, id)
	}
	return nil
}

func (t *gormTx) VoteBy(voterID, submissionID string) (*game.Vote, error) {
	var record Vote
	if err := t.db.Where("voter_id = ? AND submission_id = ?", voterID, submissionID).Take(&record).Error; err != nil {
		return nil, notFound(err, "vote by %s on %s", voterID, submissionID)
	}
	vote := toVote(&record)
	return &vote, nil
}

func (t *gormTx) InsertVote(vote *game.Vote) error {
	record := Vote{
		ID:           vote.ID,
		GameID:       vote.SessionID,
		Round:        vote.Round,
		VoterID:      vote.VoterID,
		SubmissionID: vote.SubmissionID,
		Value:        vote.Value,
		CreatedAt:    vote.CreatedAt,
	}
	if err := t.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already voted on this entry", game.ErrConflict)
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (t *gormTx) SubmissionVotes(submissionID string) ([]game.Vote, error) {
	var records []Vote
	if err := t.db.Where("submission_id = ?", submissionID).Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	votes := make([]game.Vote, 0, len(records))
	for i := range records {
		votes = append(votes, toVote(&records[i]))
	}
	return votes, nil
}

func (t *gormTx) AppendEvent(event *game.Event) error {
	record := Event{
		ID:        event.ID,
		GameID:    event.SessionID,
		Round:     event.Round,
		Type:      event.Type,
		Payload:   datatypes.NewJSONType(event.Payload),
		CreatedAt: event.CreatedAt,
	}
	if event.PlayerID != "" {
		playerID := event.PlayerID
		record.PlayerID = &playerID
	}
	if err := t.db.Create(&record).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (t *gormTx) DueTimers(now time.Time) ([]game.TimerRef, error) {
	return t.timers(t.db.Where("phase_deadline <= ?", now))
}

func (t *gormTx) ActiveTimers() ([]game.TimerRef, error) {
	return t.timers(t.db)
}

func (t *gormTx) timers(query *gorm.DB) ([]game.TimerRef, error) {
	var records []Game
	err := query.
		Select("id", "phase_token", "phase_deadline").
		Where("phase_deadline IS NOT NULL AND status IN ?", timedStatuses).
		Order("phase_deadline ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	refs := make([]game.TimerRef, 0, len(records))
	for _, record := range records {
		refs = append(refs, game.TimerRef{
			SessionID: record.ID,
			Token:     record.PhaseToken,
			Deadline:  record.PhaseDeadline.UTC(),
		})
	}
	return refs, nil
}

func (t *gormTx) SessionsCreatedBefore(threshold time.Time) ([]string, error) {
	var ids []string
	if err := t.db.Model(&Game{}).Where("created_at < ?", threshold).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list outdated sessions: %w", err)
	}
	return ids, nil
}

func toSession(record *Game, players []Player) *game.Session {
	roster := make([]string, 0, len(players))
	for _, player := range players {
		roster = append(roster, player.PlayerID)
	}
	session := &game.Session{
		ID:           record.ID,
		HostID:       record.HostID,
		Status:       game.Status(record.Status),
		CurrentRound: record.CurrentRound,
		TotalRounds:  record.TotalRounds,
		PhaseToken:   record.PhaseToken,
		VotingIndex:  record.VotingIndex,
		VotingOrder:  []string(record.VotingOrder),
		Roster:       roster,
		Config:       record.Settings.Data(),
		CreatedAt:    record.CreatedAt.UTC(),
		UpdatedAt:    record.UpdatedAt.UTC(),
	}
	if record.PhaseDeadline != nil {
		deadline := record.PhaseDeadline.UTC()
		session.PhaseDeadline = &deadline
	}
	return session
}

func fromSession(session *game.Session) *Game {
	order := datatypes.JSONSlice[string](session.VotingOrder)
	if order == nil {
		order = datatypes.JSONSlice[string]{}
	}
	return &Game{
		ID:            session.ID,
		HostID:        session.HostID,
		Status:        string(session.Status),
		CurrentRound:  session.CurrentRound,
		TotalRounds:   session.TotalRounds,
		PhaseDeadline: session.PhaseDeadline,
		PhaseToken:    session.PhaseToken,
		VotingIndex:   session.VotingIndex,
		VotingOrder:   order,
		Settings:      datatypes.NewJSONType(session.Config),
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
}

func toSubmission(record *Submission) *game.Submission {
	return &game.Submission{
		ID:        record.ID,
		SessionID: record.GameID,
		PlayerID:  record.PlayerID,
		Round:     record.Round,
		Content:   []byte(record.Content),
		Submitted: record.Submitted,
		Score:     record.Score,
		CreatedAt: record.CreatedAt.UTC(),
		UpdatedAt: record.UpdatedAt.UTC(),
	}
}

func fromSubmission(sub *game.Submission) *Submission {
	return &Submission{
		ID:        sub.ID,
		GameID:    sub.SessionID,
		Round:     sub.Round,
		PlayerID:  sub.PlayerID,
		Content:   datatypes.JSON(sub.Content),
		Submitted: sub.Submitted,
		Score:     sub.Score,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

func toVote(record *Vote) game.Vote {
	return game.Vote{
		ID:           record.ID,
		SessionID:    record.GameID,
		Round:        record.Round,
		VoterID:      record.VoterID,
		SubmissionID: record.SubmissionID,
		Value:        record.Value,
		CreatedAt:    record.CreatedAt.UTC(),
	}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", game.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
