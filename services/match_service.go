package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-arena/locks"
	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/repositories"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PointResult is the state of a match after one scored point.
type PointResult struct {
	Match         models.Match  `json:"match"`
	MatchFinished bool          `json:"match_finished"`
	Round         *RoundOutcome `json:"round,omitempty"`
}

// PlayableMatch is a match with both participants resolved.
type PlayableMatch struct {
	Match        models.Match       `json:"match"`
	Tournament   models.Tournament  `json:"tournament"`
	Participant1 models.Participant `json:"participant1"`
	Participant2 models.Participant `json:"participant2"`
}

// Opponent returns the user playing against userID, or false if userID does not play.
func (p *PlayableMatch) Opponent(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case p.Participant1.UserID:
		return p.Participant2.UserID, true
	case p.Participant2.UserID:
		return p.Participant1.UserID, true
	}
	return uuid.Nil, false
}

type MatchService interface {
	RecordPoint(ctx context.Context, matchID, scoringUserID uuid.UUID) (*PointResult, error)
	UserStillInContention(ctx context.Context, tournamentID, userID uuid.UUID) (bool, error)
	GetPlayableMatch(ctx context.Context, matchID uuid.UUID) (*PlayableMatch, error)
	// SetLiveStatus persists a live session transition (start, pause, resume).
	SetLiveStatus(ctx context.Context, matchID uuid.UUID, status models.MatchStatus) error
}

type matchService struct {
	db                *sqlx.DB
	tournamentRepo    repositories.TournamentRepository
	participantRepo   repositories.ParticipantRepository
	matchRepo         repositories.MatchRepository
	tournamentService TournamentService
	archiver          BracketArchiver
	tournamentLocks   *locks.KeyedMutex[uuid.UUID]
	logger            *slog.Logger
}

func NewMatchService(
	db *sqlx.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	tournamentService TournamentService,
	archiver BracketArchiver,
	tournamentLocks *locks.KeyedMutex[uuid.UUID],
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:                db,
		tournamentRepo:    tournamentRepo,
		participantRepo:   participantRepo,
		matchRepo:         matchRepo,
		tournamentService: tournamentService,
		archiver:          archiver,
		tournamentLocks:   tournamentLocks,
		logger:            logger,
	}
}

var liveTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchInProgress: {models.MatchPending, models.MatchPaused, models.MatchInProgress},
	models.MatchPaused:     {models.MatchInProgress, models.MatchPaused},
}

func (s *matchService) RecordPoint(ctx context.Context, matchID, scoringUserID uuid.UUID) (*PointResult, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	// Завершение раунда проверяется под блокировкой турнира: два последних
	// матча раунда не должны одновременно решить, что раунд закончен.
	unlock, err := s.tournamentLocks.Lock(ctx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &PointResult{}
	err = repositories.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		m, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, m.TournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return consistencyError("match %s references missing tournament %s", m.ID, m.TournamentID)
			}
			return err
		}
		if tournament.Status != models.TournamentInProgress {
			return ErrMatchNotPlayable
		}
		if m.Status != models.MatchPending && m.Status != models.MatchInProgress {
			return ErrMatchNotPlayable
		}
		if !m.Ready() {
			return ErrMatchNotReady
		}

		participant, err := s.participantRepo.GetByTournamentAndUser(ctx, tx, m.TournamentID, scoringUserID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return ErrNotMatchParticipant
			}
			return err
		}
		switch m.Slot(participant.ID) {
		case 1:
			m.Score1++
		case 2:
			m.Score2++
		default:
			return ErrNotMatchParticipant
		}
		if m.Score1 >= tournament.MaxScore || m.Score2 >= tournament.MaxScore {
			m.Status = models.MatchFinished
		}
		if err := s.matchRepo.UpdateScore(ctx, tx, m.ID, m.Score1, m.Score2, m.Status); err != nil {
			if errors.Is(err, repositories.ErrMatchStatusNotMatched) {
				// Матч поставили на паузу после чтения.
				return ErrMatchNotPlayable
			}
			return err
		}
		result.Match = *m
		result.MatchFinished = m.Status == models.MatchFinished
		if !result.MatchFinished {
			return nil
		}

		// Подсчёт после записи: ноль означает, что этот матч был последним в раунде.
		unfinished, err := s.matchRepo.CountUnfinishedInRound(ctx, tx, m.TournamentID, m.Round)
		if err != nil {
			return err
		}
		if unfinished > 0 {
			return nil
		}
		outcome, err := s.tournamentService.AdvanceRound(ctx, tx, m.TournamentID, m.Round)
		if err != nil {
			return err
		}
		result.Round = outcome
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	unlock()

	s.logger.Debug("point recorded",
		slog.String("match_id", matchID.String()),
		slog.String("user_id", scoringUserID.String()),
		slog.Int("score1", result.Match.Score1),
		slog.Int("score2", result.Match.Score2))

	if result.Round != nil && result.Round.TournamentFinished {
		s.archive(ctx, result.Match.TournamentID)
	}
	return result, nil
}

// archive is best effort: the tournament is already committed.
func (s *matchService) archive(ctx context.Context, tournamentID uuid.UUID) {
	tournament, err := s.tournamentService.GetTournament(ctx, tournamentID)
	if err != nil {
		s.logger.Error("failed to load finished tournament for archiving",
			slog.String("tournament_id", tournamentID.String()), slog.Any("error", err))
		return
	}
	if _, err := s.archiver.Archive(ctx, tournament); err != nil {
		s.logger.Error("failed to archive bracket",
			slog.String("tournament_id", tournamentID.String()), slog.Any("error", err))
	}
}

// UserStillInContention is true while the user has an open match in the
// tournament. A round winner whose next-round match has no slots assigned yet
// also counts: they have not been knocked out and their next match is coming.
func (s *matchService) UserStillInContention(ctx context.Context, tournamentID, userID uuid.UUID) (bool, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return false, handleRepositoryError(err)
	}
	if tournament.Status.IsTerminal() {
		return false, nil
	}
	participant, err := s.participantRepo.GetByTournamentAndUser(ctx, nil, tournamentID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return false, nil
		}
		return false, err
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return false, err
	}

	lastWonRound := 0
	openRounds := map[int]bool{}
	hasOpenMatch := false
	for _, m := range matches {
		if !m.Ready() {
			openRounds[m.Round] = true
			continue
		}
		if m.Slot(participant.ID) == 0 {
			continue
		}
		switch m.Status {
		case models.MatchFinished:
			if l := m.Loser(); l != nil && *l == participant.ID {
				return false, nil
			}
			if m.Round > lastWonRound {
				lastWonRound = m.Round
			}
		case models.MatchPending, models.MatchInProgress, models.MatchPaused:
			hasOpenMatch = true
		}
	}
	// Победитель раунда ждёт, пока в следующем раунде заполнят слоты.
	return hasOpenMatch || (lastWonRound > 0 && openRounds[lastWonRound+1]), nil
}

func (s *matchService) GetPlayableMatch(ctx context.Context, matchID uuid.UUID) (*PlayableMatch, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !match.Ready() {
		return nil, ErrMatchNotReady
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, match.TournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	p1, err := s.participantRepo.GetByID(ctx, nil, *match.Participant1ID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	p2, err := s.participantRepo.GetByID(ctx, nil, *match.Participant2ID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return &PlayableMatch{Match: *match, Tournament: *tournament, Participant1: *p1, Participant2: *p2}, nil
}

func (s *matchService) SetLiveStatus(ctx context.Context, matchID uuid.UUID, status models.MatchStatus) error {
	from, ok := liveTransitions[status]
	if !ok {
		return fmt.Errorf("%w: %s is not a live status", ErrInvalidTransition, status)
	}
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return handleRepositoryError(err)
	}

	// Тот же замок, что и у RecordPoint: пауза не должна вклиниться между чтением и записью счёта.
	unlock, err := s.tournamentLocks.Lock(ctx, match.TournamentID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.matchRepo.UpdateStatus(ctx, nil, matchID, from, status); err != nil {
		return handleRepositoryError(err)
	}
	return nil
}
