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

var ErrSettingsNotFound = errors.New("match settings not found")

type SettingsRepository interface {
	GetByUser(ctx context.Context, exec SQLExecutor, userID uuid.UUID) (*models.MatchSettings, error)
	Upsert(ctx context.Context, settings *models.MatchSettings) error
}

type sqlSettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) SettingsRepository {
	return &sqlSettingsRepository{db: db}
}

func (r *sqlSettingsRepository) GetByUser(ctx context.Context, exec SQLExecutor, userID uuid.UUID) (*models.MatchSettings, error) {
	executor := exec
	if executor == nil {
		executor = r.db
	}
	query := executor.Rebind(`SELECT user_id, max_score, updated_at FROM match_settings WHERE user_id = ?`)

	s := &models.MatchSettings{}
	if err := sqlx.GetContext(ctx, executor, s, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get match settings of user %s: %w", userID, err)
	}
	return s, nil
}

func (r *sqlSettingsRepository) Upsert(ctx context.Context, s *models.MatchSettings) error {
	s.UpdatedAt = time.Now().UTC()
	// ON CONFLICT ... DO UPDATE понимают и Postgres, и SQLite.
	query := `
		INSERT INTO match_settings (user_id, max_score, updated_at)
		VALUES (:user_id, :max_score, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET max_score = excluded.max_score, updated_at = excluded.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, s); err != nil {
		return fmt.Errorf("failed to upsert match settings of user %s: %w", s.UserID, err)
	}
	return nil
}
