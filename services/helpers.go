package services

import (
	"errors"

	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/repositories"
)

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
// Неизвестные ошибки возвращаются как есть.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrSettingsNotFound):
		return ErrSettingsNotFound
	case errors.Is(err, repositories.ErrParticipantConflict):
		return ErrDuplicateParticipant
	case errors.Is(err, repositories.ErrParticipantNotPending):
		return ErrParticipantNotPending
	case errors.Is(err, repositories.ErrMatchStatusNotMatched):
		return ErrInvalidTransition
	}
	return err
}

func isValidBracketSize(n int) bool {
	return n == 2 || n == 4
}

func participantUserIDs(participants []models.Participant) []string {
	out := make([]string, len(participants))
	for i, p := range participants {
		out[i] = p.UserID.String()
	}
	return out
}
