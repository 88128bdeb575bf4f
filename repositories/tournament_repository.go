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
	ErrTournamentNotFound         = errors.New("tournament not found")
	ErrTournamentConflict         = errors.New("tournament id conflict")
	ErrTournamentStatusNotMatched = errors.New("tournament is not in the expected status")
)

const tournamentColumns = `id, creator_id, size, current_round, max_score, status, winner_participant_id, created_at, updated_at`

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Tournament, error)
	// UpdateStatus moves the tournament to next only if its current status is one of from.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, from []models.TournamentStatus, next models.TournamentStatus) error
	UpdateRound(ctx context.Context, exec SQLExecutor, id uuid.UUID, round int) error
	Finish(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerParticipantID uuid.UUID) error
}

type sqlTournamentRepository struct {
	db *sqlx.DB
}

func NewTournamentRepository(db *sqlx.DB) TournamentRepository {
	return &sqlTournamentRepository{db: db}
}

func (r *sqlTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *sqlTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
		INSERT INTO tournaments (` + tournamentColumns + `)
		VALUES (:id, :creator_id, :size, :current_round, :max_score, :status, :winner_participant_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, executor, query, t); err != nil {
		if classifyConstraint(err) == constraintUnique {
			return ErrTournamentConflict
		}
		return fmt.Errorf("failed to insert tournament %s: %w", t.ID, err)
	}
	return nil
}

func (r *sqlTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = ?`)

	t := &models.Tournament{}
	if err := sqlx.GetContext(ctx, executor, t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %s: %w", id, err)
	}
	return t, nil
}

func (r *sqlTournamentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Tournament, error) {
	query := r.db.Rebind(`
		SELECT t.id, t.creator_id, t.size, t.current_round, t.max_score, t.status,
		       t.winner_participant_id, t.created_at, t.updated_at
		FROM tournaments t
		JOIN participants p ON p.tournament_id = t.id
		WHERE p.user_id = ?
		ORDER BY t.created_at DESC`)

	tournaments := make([]models.Tournament, 0)
	if err := sqlx.SelectContext(ctx, r.db, &tournaments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list tournaments for user %s: %w", userID, err)
	}
	return tournaments, nil
}

func (r *sqlTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, from []models.TournamentStatus, next models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	if len(from) == 0 {
		return fmt.Errorf("UpdateStatus: no source statuses given for tournament %s", id)
	}

	query, args, err := sqlx.In(`UPDATE tournaments SET status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		next, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("UpdateStatus: failed to build query: %w", err)
	}

	result, err := executor.ExecContext(ctx, executor.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("UpdateStatus: failed to execute query for tournament %s: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrTournamentStatusNotMatched); err != nil {
		// Отличаем "нет такого турнира" от "статус не совпал".
		if _, getErr := r.GetByID(ctx, executor, id); errors.Is(getErr, ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	return nil
}

func (r *sqlTournamentRepository) UpdateRound(ctx context.Context, exec SQLExecutor, id uuid.UUID, round int) error {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`UPDATE tournaments SET current_round = ?, updated_at = ? WHERE id = ?`)

	result, err := executor.ExecContext(ctx, query, round, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("UpdateRound: failed to execute query for tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *sqlTournamentRepository) Finish(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerParticipantID uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`
		UPDATE tournaments
		SET status = ?, winner_participant_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`)

	result, err := executor.ExecContext(ctx, query,
		models.TournamentFinished, winnerParticipantID, time.Now().UTC(), id, models.TournamentInProgress)
	if err != nil {
		return fmt.Errorf("Finish: failed to execute query for tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStatusNotMatched)
}
