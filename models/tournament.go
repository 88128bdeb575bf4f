package models

import (
	"math/bits"
	"time"

	"github.com/google/uuid"
)

// TournamentStatus представляет статусы турнира, соответствующие значениям в БД.
type TournamentStatus string

const (
	TournamentPending    TournamentStatus = "pending"
	TournamentInProgress TournamentStatus = "in_progress"
	TournamentFinished   TournamentStatus = "finished"
	TournamentCancelled  TournamentStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentFinished || s == TournamentCancelled
}

// Tournament представляет турнир с сеткой на выбывание.
type Tournament struct {
	ID                  uuid.UUID        `json:"id" db:"id"`
	CreatorID           uuid.UUID        `json:"creator_id" db:"creator_id"`
	Size                int              `json:"size" db:"size"`
	CurrentRound        int              `json:"current_round" db:"current_round"`
	MaxScore            int              `json:"max_score" db:"max_score"`
	Status              TournamentStatus `json:"status" db:"status"`
	WinnerParticipantID *uuid.UUID       `json:"winner_participant_id,omitempty" db:"winner_participant_id"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}

// Rounds returns the number of rounds of a single-elimination bracket of this size.
func (t Tournament) Rounds() int {
	if t.Size < 2 {
		return 0
	}
	return bits.Len(uint(t.Size)) - 1
}

// IsFinalRound reports whether round is the last round of the bracket.
func (t Tournament) IsFinalRound(round int) bool {
	return round == t.Rounds()
}
