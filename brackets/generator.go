package brackets

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotEnoughParticipants = errors.New("not enough participants to generate a bracket (minimum 2)")
	ErrBracketSizeNotPower   = errors.New("bracket size must be a power of two")
	ErrDuplicateParticipant  = errors.New("participant appears more than once")
	ErrSeedCountMismatch     = errors.New("number of winners does not match the open slots of the round")
)

// BracketMatch is one generated match. Round-1 matches carry both
// participants, later rounds are placeholders with nil slots.
type BracketMatch struct {
	Round          int
	Position       int
	Participant1ID *uuid.UUID
	Participant2ID *uuid.UUID
}

// SlotAssignment fills an existing placeholder match.
type SlotAssignment struct {
	MatchID        uuid.UUID
	Participant1ID uuid.UUID
	Participant2ID uuid.UUID
}

type GenerateBracketParams struct {
	ParticipantIDs []uuid.UUID
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)
	// SeedRound pairs the winners of a finished round into the placeholder
	// matches of the next one, given in position order.
	SeedRound(winners []uuid.UUID, placeholders []uuid.UUID) ([]SlotAssignment, error)

	GetName() string
}
