package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchSettings хранит настройки матчей пользователя, создающего турнир.
type MatchSettings struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	MaxScore  int       `json:"max_score" db:"max_score"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
