package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-arena/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchConflict           = errors.New("match conflict: round position already taken")
	ErrMatchParticipantInvalid = errors.New("match participant conflict or invalid")
	ErrMatchSlotsAssigned      = errors.New("match participant slots are already assigned")
	ErrMatchStatusNotMatched   = errors.New("match is not in the expected status")
)

const matchColumns = `id, tournament_id, round, position, participant1_id, participant2_id, score1, score2, status, created_at, updated_at`

type MatchRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, matches []models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, round int) ([]models.Match, error)
	CountUnfinishedInRound(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, round int) (int, error)
	// UpdateScore writes the score only while the match is pending or in progress.
	UpdateScore(ctx context.Context, exec SQLExecutor, id uuid.UUID, score1, score2 int, status models.MatchStatus) error
	// UpdateStatus moves the match to next only if its current status is one of from.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, from []models.MatchStatus, next models.MatchStatus) error
	// AssignParticipants fills both slots of a match whose slots are still empty.
	AssignParticipants(ctx context.Context, exec SQLExecutor, id uuid.UUID, p1, p2 uuid.UUID) error
	CancelOpen(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error
}

type sqlMatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) MatchRepository {
	return &sqlMatchRepository{db: db}
}

func (r *sqlMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *sqlMatchRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	now := time.Now().UTC()
	for i := range matches {
		if matches[i].CreatedAt.IsZero() {
			matches[i].CreatedAt = now
		}
		matches[i].UpdatedAt = now
	}

	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES (:id, :tournament_id, :round, :position, :participant1_id, :participant2_id, :score1, :score2, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, executor, query, matches); err != nil {
		switch classifyConstraint(err) {
		case constraintUnique:
			return ErrMatchConflict
		case constraintForeignKey:
			return ErrMatchParticipantInvalid
		}
		return fmt.Errorf("failed to insert matches: %w", err)
	}
	return nil
}

func (r *sqlMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + matchColumns + ` FROM matches WHERE id = ?`)

	m := &models.Match{}
	if err := sqlx.GetContext(ctx, executor, m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return m, nil
}

func (r *sqlMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]models.Match, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = ? ORDER BY round ASC, position ASC`)

	matches := make([]models.Match, 0)
	if err := sqlx.SelectContext(ctx, executor, &matches, query, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %s: %w", tournamentID, err)
	}
	return matches, nil
}

func (r *sqlMatchRepository) ListByRound(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, round int) ([]models.Match, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = ? AND round = ? ORDER BY position ASC`)

	matches := make([]models.Match, 0)
	if err := sqlx.SelectContext(ctx, executor, &matches, query, tournamentID, round); err != nil {
		return nil, fmt.Errorf("failed to query round %d matches for tournament %s: %w", round, tournamentID, err)
	}
	return matches, nil
}

func (r *sqlMatchRepository) CountUnfinishedInRound(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, round int) (int, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND round = ? AND status <> ?`)

	var count int
	if err := sqlx.GetContext(ctx, executor, &count, query, tournamentID, round, models.MatchFinished); err != nil {
		return 0, fmt.Errorf("failed to count unfinished round %d matches for tournament %s: %w", round, tournamentID, err)
	}
	return count, nil
}

func (r *sqlMatchRepository) UpdateScore(ctx context.Context, exec SQLExecutor, id uuid.UUID, score1, score2 int, status models.MatchStatus) error {
	executor := r.getExecutor(exec)
	query, args, err := sqlx.In(`UPDATE matches SET score1 = ?, score2 = ?, status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		score1, score2, status, time.Now().UTC(), id,
		[]models.MatchStatus{models.MatchPending, models.MatchInProgress})
	if err != nil {
		return fmt.Errorf("UpdateScore: failed to build query: %w", err)
	}

	result, err := executor.ExecContext(ctx, executor.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("UpdateScore: failed to execute query for match %s: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrMatchStatusNotMatched); err != nil {
		if _, getErr := r.GetByID(ctx, executor, id); errors.Is(getErr, ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	return nil
}

func (r *sqlMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, from []models.MatchStatus, next models.MatchStatus) error {
	executor := r.getExecutor(exec)
	if len(from) == 0 {
		return fmt.Errorf("UpdateStatus: no source statuses given for match %s", id)
	}

	query, args, err := sqlx.In(`UPDATE matches SET status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		next, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("UpdateStatus: failed to build query: %w", err)
	}

	result, err := executor.ExecContext(ctx, executor.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("UpdateStatus: failed to execute query for match %s: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrMatchStatusNotMatched); err != nil {
		if _, getErr := r.GetByID(ctx, executor, id); errors.Is(getErr, ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	return nil
}

func (r *sqlMatchRepository) AssignParticipants(ctx context.Context, exec SQLExecutor, id uuid.UUID, p1, p2 uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`
		UPDATE matches
		SET participant1_id = ?, participant2_id = ?, updated_at = ?
		WHERE id = ? AND participant1_id IS NULL AND participant2_id IS NULL`)

	result, err := executor.ExecContext(ctx, query, p1, p2, time.Now().UTC(), id)
	if err != nil {
		if classifyConstraint(err) == constraintForeignKey {
			return ErrMatchParticipantInvalid
		}
		return fmt.Errorf("AssignParticipants: failed to execute query for match %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchSlotsAssigned)
}

func (r *sqlMatchRepository) CancelOpen(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error {
	executor := r.getExecutor(exec)
	query, args, err := sqlx.In(`UPDATE matches SET status = ?, updated_at = ? WHERE tournament_id = ? AND status IN (?)`,
		models.MatchCancelled, time.Now().UTC(), tournamentID,
		[]models.MatchStatus{models.MatchPending, models.MatchInProgress, models.MatchPaused})
	if err != nil {
		return fmt.Errorf("CancelOpen: failed to build query: %w", err)
	}
	if _, err := executor.ExecContext(ctx, executor.Rebind(query), args...); err != nil {
		return fmt.Errorf("CancelOpen: failed to cancel matches of tournament %s: %w", tournamentID, err)
	}
	return nil
}
