package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Dosada05/tournament-arena/locks"
	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/repositories"
	"github.com/google/uuid"
)

// Presence is the view of the connection registry the queue needs.
type Presence interface {
	IsOnline(userID uuid.UUID) bool
	NotifyUser(userID uuid.UUID, payload []byte) error
}

// QueueTicket describes a user's place in a queue, or the tournament the
// join produced.
type QueueTicket struct {
	Size       int                `json:"size"`
	Position   int                `json:"position"`
	Tournament *models.Tournament `json:"tournament,omitempty"`
}

type QueueService interface {
	Join(ctx context.Context, userID uuid.UUID, size int) (*QueueTicket, error)
	// Leave removes the user from any queue. Leaving when not queued is not an error.
	Leave(ctx context.Context, userID uuid.UUID) error
	Position(userID uuid.UUID) (QueueTicket, bool)
}

type queueService struct {
	locks       *locks.Service
	presence    Presence
	tournaments TournamentService
	settings    repositories.SettingsRepository
	logger      *slog.Logger

	// mu guards waiting for Position; writers also hold the queue domain lock.
	mu      sync.RWMutex
	waiting map[int][]uuid.UUID
}

func NewQueueService(
	lockService *locks.Service,
	presence Presence,
	tournaments TournamentService,
	settings repositories.SettingsRepository,
	logger *slog.Logger,
) QueueService {
	return &queueService{
		locks:       lockService,
		presence:    presence,
		tournaments: tournaments,
		settings:    settings,
		logger:      logger,
		waiting:     map[int][]uuid.UUID{2: nil, 4: nil},
	}
}

func (s *queueService) Join(ctx context.Context, userID uuid.UUID, size int) (*QueueTicket, error) {
	if !isValidBracketSize(size) {
		return nil, ErrInvalidBracketSize
	}
	return locks.WithLock(ctx, s.locks, locks.DomainQueue, func(ctx context.Context) (*QueueTicket, error) {
		if !s.presence.IsOnline(userID) {
			return nil, ErrUserOffline
		}
		if _, queued := s.Position(userID); queued {
			return nil, ErrAlreadyQueued
		}
		// Любой участник очереди может стать создателем турнира.
		if _, err := s.settings.GetByUser(ctx, nil, userID); err != nil {
			return nil, handleRepositoryError(err)
		}

		s.mu.Lock()
		s.waiting[size] = append(s.waiting[size], userID)
		queue := s.waiting[size]
		s.mu.Unlock()

		if len(queue) < size {
			s.logger.Info("user queued", slog.String("user_id", userID.String()), slog.Int("size", size))
			return &QueueTicket{Size: size, Position: len(queue)}, nil
		}

		members := slices.Clone(queue[:size])
		tournament, err := s.tournaments.CreateTournament(ctx, members[0], members)
		if err != nil {
			s.mu.Lock()
			s.waiting[size] = slices.DeleteFunc(s.waiting[size], func(id uuid.UUID) bool { return id == userID })
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to create tournament from queue: %w", err)
		}

		s.mu.Lock()
		s.waiting[size] = slices.Clone(s.waiting[size][size:])
		s.mu.Unlock()

		s.notifyMembers(tournament)
		return &QueueTicket{Size: size, Tournament: tournament}, nil
	})
}

func (s *queueService) notifyMembers(tournament *models.Tournament) {
	payload, err := models.EncodeMessage(models.MsgAccept, tournament.ID.String(), nil)
	if err != nil {
		s.logger.Error("failed to encode tournament notification", slog.Any("error", err))
		return
	}
	for _, p := range tournament.Participants {
		if err := s.presence.NotifyUser(p.UserID, payload); err != nil {
			s.logger.Warn("failed to notify queued user",
				slog.String("user_id", p.UserID.String()),
				slog.String("tournament_id", tournament.ID.String()),
				slog.Any("error", err))
		}
	}
}

func (s *queueService) Leave(ctx context.Context, userID uuid.UUID) error {
	return s.locks.Do(ctx, locks.DomainQueue, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for size, queue := range s.waiting {
			s.waiting[size] = slices.DeleteFunc(queue, func(id uuid.UUID) bool { return id == userID })
		}
		return nil
	})
}

func (s *queueService) Position(userID uuid.UUID) (QueueTicket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for size, queue := range s.waiting {
		if i := slices.Index(queue, userID); i >= 0 {
			return QueueTicket{Size: size, Position: i + 1}, true
		}
	}
	return QueueTicket{}, false
}
