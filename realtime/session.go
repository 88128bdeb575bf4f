package realtime

import (
	"slices"
	"sync"

	"github.com/Dosada05/tournament-arena/models"
	"github.com/google/uuid"
)

// Player is one side of a live session.
type Player struct {
	UserID        uuid.UUID `json:"user_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	ConnectionID  string    `json:"connection_id"`
	Accepted      bool      `json:"accepted"`
	Paddle        []float64 `json:"paddle,omitempty"`
	Score         int       `json:"score"`
}

// SessionState is the mutable part of a session. Handlers work on a copy
// and store it back only after the durable write succeeded.
type SessionState struct {
	MatchID      uuid.UUID          `json:"match_id"`
	TournamentID uuid.UUID          `json:"tournament_id"`
	Players      [2]Player          `json:"players"`
	Status       models.MatchStatus `json:"status"`
}

func (s SessionState) clone() SessionState {
	out := s
	for i := range out.Players {
		out.Players[i].Paddle = slices.Clone(s.Players[i].Paddle)
	}
	return out
}

func (s SessionState) slotOf(connectionID string) int {
	for i, p := range s.Players {
		if p.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

func (s SessionState) allAccepted() bool {
	return s.Players[0].Accepted && s.Players[1].Accepted
}

func (s SessionState) connections() []string {
	return []string{s.Players[0].ConnectionID, s.Players[1].ConnectionID}
}

// Session is the live state of one match. mu serializes the handlers of the
// match; it is always taken before the dispatcher's table lock.
type Session struct {
	mu     sync.Mutex
	state  SessionState
	closed bool
}
