package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-arena/brackets"
	"github.com/Dosada05/tournament-arena/locks"
	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/repositories"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

// RoundOutcome describes what advancing a finished round changed.
type RoundOutcome struct {
	FinishedRound       int                       `json:"finished_round"`
	NextRound           int                       `json:"next_round,omitempty"`
	Assignments         []brackets.SlotAssignment `json:"assignments,omitempty"`
	TournamentFinished  bool                      `json:"tournament_finished"`
	WinnerParticipantID *uuid.UUID                `json:"winner_participant_id,omitempty"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, creatorID uuid.UUID, userIDs []uuid.UUID) (*models.Tournament, error)
	// AdvanceRound seeds the next round with the winners of finishedRound, or
	// finishes the tournament after its final round. It runs on the caller's
	// transaction; the caller must hold the tournament lock.
	AdvanceRound(ctx context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID, finishedRound int) (*RoundOutcome, error)
	AcceptParticipation(ctx context.Context, tournamentID, userID uuid.UUID) (*models.Tournament, error)
	DeclineParticipation(ctx context.Context, tournamentID, userID uuid.UUID) (*models.Tournament, error)
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	ListUserTournaments(ctx context.Context, userID uuid.UUID) ([]models.Tournament, error)
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.MatchSettings, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, maxScore int) (*models.MatchSettings, error)
}

type tournamentService struct {
	db              *sqlx.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	settingsRepo    repositories.SettingsRepository
	generator       brackets.BracketGenerator
	tournamentLocks *locks.KeyedMutex[uuid.UUID]
	logger          *slog.Logger
}

func NewTournamentService(
	db *sqlx.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	settingsRepo repositories.SettingsRepository,
	generator brackets.BracketGenerator,
	tournamentLocks *locks.KeyedMutex[uuid.UUID],
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		settingsRepo:    settingsRepo,
		generator:       generator,
		tournamentLocks: tournamentLocks,
		logger:          logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, creatorID uuid.UUID, userIDs []uuid.UUID) (*models.Tournament, error) {
	if !isValidBracketSize(len(userIDs)) {
		return nil, fmt.Errorf("%w: got %d participants", ErrInvalidBracketSize, len(userIDs))
	}
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			return nil, ErrDuplicateParticipant
		}
		seen[id] = struct{}{}
	}
	if _, ok := seen[creatorID]; !ok {
		return nil, ErrCreatorNotParticipant
	}

	settings, err := s.settingsRepo.GetByUser(ctx, nil, creatorID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	tournament := &models.Tournament{
		ID:           uuid.New(),
		CreatorID:    creatorID,
		Size:         len(userIDs),
		CurrentRound: 1,
		MaxScore:     settings.MaxScore,
		Status:       models.TournamentPending,
	}
	participantStatus := models.ParticipantPending
	// Дуэль стартует сразу, без подтверждения.
	if tournament.Size == 2 {
		tournament.Status = models.TournamentInProgress
		participantStatus = models.ParticipantAccepted
	}

	participants := make([]models.Participant, len(userIDs))
	participantIDs := make([]uuid.UUID, len(userIDs))
	for i, userID := range userIDs {
		participants[i] = models.Participant{
			ID:           uuid.New(),
			TournamentID: tournament.ID,
			UserID:       userID,
			Status:       participantStatus,
		}
		participantIDs[i] = participants[i].ID
	}

	generated, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{ParticipantIDs: participantIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s bracket: %w", s.generator.GetName(), err)
	}
	matches := make([]models.Match, len(generated))
	for i, bm := range generated {
		matches[i] = models.Match{
			ID:             uuid.New(),
			TournamentID:   tournament.ID,
			Round:          bm.Round,
			Position:       bm.Position,
			Participant1ID: bm.Participant1ID,
			Participant2ID: bm.Participant2ID,
			Status:         models.MatchPending,
		}
	}

	err = repositories.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.tournamentRepo.Create(ctx, tx, tournament); err != nil {
			return fmt.Errorf("create tournament: %w", err)
		}
		if err := s.participantRepo.CreateBatch(ctx, tx, participants); err != nil {
			return fmt.Errorf("create participants: %w", err)
		}
		if err := s.matchRepo.CreateBatch(ctx, tx, matches); err != nil {
			return fmt.Errorf("create matches: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	tournament.Participants = participants
	tournament.Matches = matches
	s.logger.Info("tournament created",
		slog.String("tournament_id", tournament.ID.String()),
		slog.Int("size", tournament.Size),
		slog.String("status", string(tournament.Status)),
		slog.Any("users", participantUserIDs(participants)))
	return tournament, nil
}

func (s *tournamentService) AdvanceRound(ctx context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID, finishedRound int) (*RoundOutcome, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, consistencyError("tournament %s not found while advancing round %d", tournamentID, finishedRound)
		}
		return nil, err
	}

	finished, err := s.matchRepo.ListByRound(ctx, exec, tournamentID, finishedRound)
	if err != nil {
		return nil, err
	}
	if len(finished) == 0 {
		return nil, consistencyError("tournament %s has no matches in round %d", tournamentID, finishedRound)
	}
	winners := make([]uuid.UUID, 0, len(finished))
	for _, m := range finished {
		w := m.Winner()
		if w == nil {
			return nil, consistencyError("no winner retrievable for match %s of round %d", m.ID, finishedRound)
		}
		winners = append(winners, *w)
	}

	outcome := &RoundOutcome{FinishedRound: finishedRound}

	if tournament.IsFinalRound(finishedRound) {
		if len(winners) != 1 {
			return nil, consistencyError("final round of tournament %s has %d winners", tournamentID, len(winners))
		}
		if err := s.tournamentRepo.Finish(ctx, exec, tournamentID, winners[0]); err != nil {
			if errors.Is(err, repositories.ErrTournamentStatusNotMatched) {
				return nil, consistencyError("tournament %s is %s, cannot finish it", tournamentID, tournament.Status)
			}
			return nil, err
		}
		outcome.TournamentFinished = true
		outcome.WinnerParticipantID = &winners[0]
		s.logger.Info("tournament finished",
			slog.String("tournament_id", tournamentID.String()),
			slog.String("winner_participant_id", winners[0].String()))
		return outcome, nil
	}

	nextRound := finishedRound + 1
	next, err := s.matchRepo.ListByRound(ctx, exec, tournamentID, nextRound)
	if err != nil {
		return nil, err
	}
	placeholders := make([]uuid.UUID, 0, len(next))
	for _, m := range next {
		if m.Participant1ID == nil && m.Participant2ID == nil {
			placeholders = append(placeholders, m.ID)
		}
	}
	if len(placeholders) == 0 || len(placeholders) != len(next) {
		return nil, consistencyError("round %d of tournament %s has no open matches to fill", nextRound, tournamentID)
	}

	assignments, err := s.generator.SeedRound(winners, placeholders)
	if err != nil {
		return nil, consistencyError("seeding round %d of tournament %s: %v", nextRound, tournamentID, err)
	}
	for _, a := range assignments {
		if err := s.matchRepo.AssignParticipants(ctx, exec, a.MatchID, a.Participant1ID, a.Participant2ID); err != nil {
			if errors.Is(err, repositories.ErrMatchSlotsAssigned) {
				return nil, consistencyError("match %s of round %d was already seeded", a.MatchID, nextRound)
			}
			return nil, err
		}
	}
	if err := s.tournamentRepo.UpdateRound(ctx, exec, tournamentID, nextRound); err != nil {
		return nil, err
	}

	outcome.NextRound = nextRound
	outcome.Assignments = assignments
	s.logger.Info("tournament round advanced",
		slog.String("tournament_id", tournamentID.String()),
		slog.Int("round", nextRound))
	return outcome, nil
}

func (s *tournamentService) AcceptParticipation(ctx context.Context, tournamentID, userID uuid.UUID) (*models.Tournament, error) {
	unlock, err := s.tournamentLocks.Lock(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = repositories.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if tournament.Status != models.TournamentPending {
			return ErrTournamentNotPending
		}
		participant, err := s.participantRepo.GetByTournamentAndUser(ctx, tx, tournamentID, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return ErrNotTournamentParticipant
			}
			return err
		}
		if err := s.participantRepo.Accept(ctx, tx, participant.ID); err != nil {
			return err
		}

		pending, err := s.participantRepo.CountByStatus(ctx, tx, tournamentID, models.ParticipantPending)
		if err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}
		return s.tournamentRepo.UpdateStatus(ctx, tx, tournamentID,
			[]models.TournamentStatus{models.TournamentPending}, models.TournamentInProgress)
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.Info("participation accepted",
		slog.String("tournament_id", tournamentID.String()),
		slog.String("user_id", userID.String()))
	return s.GetTournament(ctx, tournamentID)
}

func (s *tournamentService) DeclineParticipation(ctx context.Context, tournamentID, userID uuid.UUID) (*models.Tournament, error) {
	unlock, err := s.tournamentLocks.Lock(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = repositories.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if tournament.Status.IsTerminal() {
			return ErrTournamentClosed
		}
		if _, err := s.participantRepo.GetByTournamentAndUser(ctx, tx, tournamentID, userID); err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return ErrNotTournamentParticipant
			}
			return err
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, tx, tournamentID,
			[]models.TournamentStatus{models.TournamentPending, models.TournamentInProgress}, models.TournamentCancelled); err != nil {
			return err
		}
		return s.matchRepo.CancelOpen(ctx, tx, tournamentID)
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.Info("tournament cancelled by participant",
		slog.String("tournament_id", tournamentID.String()),
		slog.String("user_id", userID.String()))
	return s.GetTournament(ctx, tournamentID)
}

func (s *tournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	var (
		tournament   *models.Tournament
		participants []models.Participant
		matches      []models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.tournamentRepo.GetByID(gCtx, nil, id)
		if err != nil {
			return err
		}
		tournament = t
		return nil
	})
	g.Go(func() error {
		p, err := s.participantRepo.ListByTournament(gCtx, nil, id)
		if err != nil {
			return err
		}
		participants = p
		return nil
	})
	g.Go(func() error {
		m, err := s.matchRepo.ListByTournament(gCtx, nil, id)
		if err != nil {
			return err
		}
		matches = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, handleRepositoryError(err)
	}

	tournament.Participants = participants
	tournament.Matches = matches
	return tournament, nil
}

func (s *tournamentService) ListUserTournaments(ctx context.Context, userID uuid.UUID) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments of user %s: %w", userID, err)
	}
	return tournaments, nil
}

func (s *tournamentService) GetSettings(ctx context.Context, userID uuid.UUID) (*models.MatchSettings, error) {
	settings, err := s.settingsRepo.GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return settings, nil
}

func (s *tournamentService) UpdateSettings(ctx context.Context, userID uuid.UUID, maxScore int) (*models.MatchSettings, error) {
	if maxScore <= 0 {
		return nil, ErrInvalidMaxScore
	}
	settings := &models.MatchSettings{UserID: userID, MaxScore: maxScore}
	if err := s.settingsRepo.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
