package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-arena/brackets"
	"github.com/Dosada05/tournament-arena/db/dbtest"
	"github.com/Dosada05/tournament-arena/locks"
	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/repositories"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type recordingArchiver struct {
	mu       sync.Mutex
	archived []uuid.UUID
}

func (a *recordingArchiver) Archive(_ context.Context, t *models.Tournament) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, t.ID)
	return "https://cdn.example.com/brackets/" + t.ID.String() + ".json", nil
}

type env struct {
	db           *sqlx.DB
	tournaments  TournamentService
	matches      MatchService
	settingsRepo repositories.SettingsRepository
	matchRepo    repositories.MatchRepository
	locks        *locks.KeyedMutex[uuid.UUID]
	archiver     *recordingArchiver
	logger       *slog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	database := dbtest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tournamentRepo := repositories.NewTournamentRepository(database)
	participantRepo := repositories.NewParticipantRepository(database)
	matchRepo := repositories.NewMatchRepository(database)
	settingsRepo := repositories.NewSettingsRepository(database)
	tournamentLocks := locks.NewKeyedMutex[uuid.UUID]()
	archiver := &recordingArchiver{}

	tournaments := NewTournamentService(database, tournamentRepo, participantRepo, matchRepo, settingsRepo,
		brackets.NewSingleEliminationGenerator(), tournamentLocks, logger)
	matches := NewMatchService(database, tournamentRepo, participantRepo, matchRepo, tournaments,
		archiver, tournamentLocks, logger)

	return &env{
		db:           database,
		tournaments:  tournaments,
		matches:      matches,
		settingsRepo: settingsRepo,
		matchRepo:    matchRepo,
		locks:        tournamentLocks,
		archiver:     archiver,
		logger:       logger,
	}
}

func (e *env) users(t *testing.T, n, maxScore int) []uuid.UUID {
	t.Helper()
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
		_, err := e.tournaments.UpdateSettings(context.Background(), out[i], maxScore)
		require.NoError(t, err)
	}
	return out
}

// userOf maps the participants of a tournament to their users.
func userOf(t *models.Tournament) map[uuid.UUID]uuid.UUID {
	out := make(map[uuid.UUID]uuid.UUID, len(t.Participants))
	for _, p := range t.Participants {
		out[p.ID] = p.UserID
	}
	return out
}

func matchesInRound(t *models.Tournament, round int) []models.Match {
	var out []models.Match
	for _, m := range t.Matches {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}

// playOut scores maxScore points for the slot-1 player of match.
func (e *env) playOut(t *testing.T, tournament *models.Tournament, match models.Match) *PointResult {
	t.Helper()
	winner := userOf(tournament)[*match.Participant1ID]
	var result *PointResult
	for i := 0; i < tournament.MaxScore; i++ {
		var err error
		result, err = e.matches.RecordPoint(context.Background(), match.ID, winner)
		require.NoError(t, err)
	}
	require.True(t, result.MatchFinished)
	return result
}

func (e *env) acceptAll(t *testing.T, tournament *models.Tournament) *models.Tournament {
	t.Helper()
	var err error
	for _, p := range tournament.Participants {
		tournament, err = e.tournaments.AcceptParticipation(context.Background(), tournament.ID, p.UserID)
		require.NoError(t, err)
	}
	return tournament
}
