package brackets

import (
	"context"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/google/uuid"
)

// Picker returns a uniformly random index in [0, n).
type Picker func(n int) int

type SingleEliminationGenerator struct {
	pick Picker
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{pick: rand.Intn}
}

// NewSingleEliminationGeneratorWithPicker is used where the draw must be reproducible.
func NewSingleEliminationGeneratorWithPicker(pick Picker) BracketGenerator {
	return &SingleEliminationGenerator{pick: pick}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// Rounds returns log2(size) for a power-of-two size and 0 otherwise.
func Rounds(size int) int {
	if size < 2 || size&(size-1) != 0 {
		return 0
	}
	return bits.Len(uint(size)) - 1
}

func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	n := len(params.ParticipantIDs)
	if n < 2 {
		return nil, ErrNotEnoughParticipants
	}
	rounds := Rounds(n)
	if rounds == 0 {
		return nil, fmt.Errorf("%w: got %d participants", ErrBracketSizeNotPower, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs, err := g.pair(params.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	matches := make([]*BracketMatch, 0, n-1)
	for i, p := range pairs {
		p1, p2 := p[0], p[1]
		matches = append(matches, &BracketMatch{
			Round:          1,
			Position:       i + 1,
			Participant1ID: &p1,
			Participant2ID: &p2,
		})
	}
	for r, inRound := 2, n/4; r <= rounds; r, inRound = r+1, inRound/2 {
		for pos := 1; pos <= inRound; pos++ {
			matches = append(matches, &BracketMatch{Round: r, Position: pos})
		}
	}
	return matches, nil
}

func (g *SingleEliminationGenerator) SeedRound(winners []uuid.UUID, placeholders []uuid.UUID) ([]SlotAssignment, error) {
	if len(winners) != 2*len(placeholders) || len(placeholders) == 0 {
		return nil, fmt.Errorf("%w: %d winners for %d matches", ErrSeedCountMismatch, len(winners), len(placeholders))
	}
	pairs, err := g.pair(winners)
	if err != nil {
		return nil, err
	}

	out := make([]SlotAssignment, len(pairs))
	for i, p := range pairs {
		out[i] = SlotAssignment{MatchID: placeholders[i], Participant1ID: p[0], Participant2ID: p[1]}
	}
	return out, nil
}

// pair draws slot 1 and then slot 2 uniformly from the remaining pool until
// it is empty.
func (g *SingleEliminationGenerator) pair(ids []uuid.UUID) ([][2]uuid.UUID, error) {
	if len(ids)%2 != 0 {
		return nil, fmt.Errorf("%w: odd count %d", ErrBracketSizeNotPower, len(ids))
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	pool := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, id)
		}
		seen[id] = struct{}{}
		pool = append(pool, id)
	}

	draw := func() uuid.UUID {
		i := g.pick(len(pool))
		id := pool[i]
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
		return id
	}

	pairs := make([][2]uuid.UUID, 0, len(ids)/2)
	for len(pool) > 0 {
		first := draw()
		second := draw()
		pairs = append(pairs, [2]uuid.UUID{first, second})
	}
	return pairs, nil
}
