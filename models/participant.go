package models

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantStatus string

const (
	ParticipantCreator  ParticipantStatus = "creator"
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantAccepted ParticipantStatus = "accepted"
)

type Participant struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	TournamentID uuid.UUID         `json:"tournament_id" db:"tournament_id"`
	UserID       uuid.UUID         `json:"user_id" db:"user_id"`
	Status       ParticipantStatus `json:"status" db:"status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}
