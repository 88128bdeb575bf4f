package models

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
	MatchCancelled  MatchStatus = "cancelled"
	MatchPaused     MatchStatus = "paused"
)

// IsTerminal reports whether the match can no longer be played.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchFinished || s == MatchCancelled
}

// Match is the persisted bracket match. Participant slots stay nil until the
// bracket assigns them and never change afterwards.
type Match struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	TournamentID   uuid.UUID   `json:"tournament_id" db:"tournament_id"`
	Round          int         `json:"round" db:"round"`
	Position       int         `json:"position" db:"position"`
	Participant1ID *uuid.UUID  `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID *uuid.UUID  `json:"participant2_id,omitempty" db:"participant2_id"`
	Score1         int         `json:"score1" db:"score1"`
	Score2         int         `json:"score2" db:"score2"`
	Status         MatchStatus `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// Ready reports whether both slots are assigned.
func (m Match) Ready() bool {
	return m.Participant1ID != nil && m.Participant2ID != nil
}

// Slot returns 1 or 2 for the slot occupied by participantID, 0 otherwise.
func (m Match) Slot(participantID uuid.UUID) int {
	switch {
	case m.Participant1ID != nil && *m.Participant1ID == participantID:
		return 1
	case m.Participant2ID != nil && *m.Participant2ID == participantID:
		return 2
	}
	return 0
}

// Winner returns the participant with the higher score of a finished match.
func (m Match) Winner() *uuid.UUID {
	if m.Status != MatchFinished || !m.Ready() || m.Score1 == m.Score2 {
		return nil
	}
	if m.Score1 > m.Score2 {
		return m.Participant1ID
	}
	return m.Participant2ID
}

// Loser is the counterpart of Winner.
func (m Match) Loser() *uuid.UUID {
	w := m.Winner()
	if w == nil {
		return nil
	}
	if *w == *m.Participant1ID {
		return m.Participant2ID
	}
	return m.Participant1ID
}
