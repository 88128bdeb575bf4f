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
	ErrParticipantNotFound          = errors.New("participant not found")
	ErrParticipantConflict          = errors.New("participant conflict: user already registered for this tournament")
	ErrParticipantTournamentInvalid = errors.New("participant tournament conflict or invalid")
	ErrParticipantNotPending        = errors.New("participant is not pending")
)

const participantColumns = `id, tournament_id, user_id, status, created_at`

type ParticipantRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, participants []models.Participant) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Participant, error)
	GetByTournamentAndUser(ctx context.Context, exec SQLExecutor, tournamentID, userID uuid.UUID) (*models.Participant, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]models.Participant, error)
	// Accept moves a pending participant to accepted.
	Accept(ctx context.Context, exec SQLExecutor, id uuid.UUID) error
	CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, status models.ParticipantStatus) (int, error)
}

type sqlParticipantRepository struct {
	db *sqlx.DB
}

func NewParticipantRepository(db *sqlx.DB) ParticipantRepository {
	return &sqlParticipantRepository{db: db}
}

func (r *sqlParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *sqlParticipantRepository) CreateBatch(ctx context.Context, exec SQLExecutor, participants []models.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	now := time.Now().UTC()
	for i := range participants {
		if participants[i].CreatedAt.IsZero() {
			participants[i].CreatedAt = now
		}
	}

	query := `
		INSERT INTO participants (` + participantColumns + `)
		VALUES (:id, :tournament_id, :user_id, :status, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, executor, query, participants); err != nil {
		switch classifyConstraint(err) {
		case constraintUnique:
			return ErrParticipantConflict
		case constraintForeignKey:
			return ErrParticipantTournamentInvalid
		}
		return fmt.Errorf("failed to insert participants: %w", err)
	}
	return nil
}

func (r *sqlParticipantRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + participantColumns + ` FROM participants WHERE id = ?`)

	p := &models.Participant{}
	if err := sqlx.GetContext(ctx, executor, p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant %s: %w", id, err)
	}
	return p, nil
}

func (r *sqlParticipantRepository) GetByTournamentAndUser(ctx context.Context, exec SQLExecutor, tournamentID, userID uuid.UUID) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + participantColumns + ` FROM participants WHERE tournament_id = ? AND user_id = ?`)

	p := &models.Participant{}
	if err := sqlx.GetContext(ctx, executor, p, query, tournamentID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant of user %s in tournament %s: %w", userID, tournamentID, err)
	}
	return p, nil
}

func (r *sqlParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]models.Participant, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + participantColumns + ` FROM participants WHERE tournament_id = ? ORDER BY created_at ASC, id ASC`)

	participants := make([]models.Participant, 0)
	if err := sqlx.SelectContext(ctx, executor, &participants, query, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %s: %w", tournamentID, err)
	}
	return participants, nil
}

func (r *sqlParticipantRepository) Accept(ctx context.Context, exec SQLExecutor, id uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`UPDATE participants SET status = ? WHERE id = ? AND status = ?`)

	result, err := executor.ExecContext(ctx, query, models.ParticipantAccepted, id, models.ParticipantPending)
	if err != nil {
		return fmt.Errorf("failed to accept participant %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotPending)
}

func (r *sqlParticipantRepository) CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, status models.ParticipantStatus) (int, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT COUNT(*) FROM participants WHERE tournament_id = ? AND status = ?`)

	var count int
	if err := sqlx.GetContext(ctx, executor, &count, query, tournamentID, status); err != nil {
		return 0, fmt.Errorf("failed to count %s participants for tournament %s: %w", status, tournamentID, err)
	}
	return count, nil
}
