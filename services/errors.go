package services

import (
	"errors"
	"fmt"
)

// Классы ошибок. Конкретные ошибки ниже оборачивают один из них, поэтому
// errors.Is работает и с конкретной ошибкой, и с её классом.
var (
	ErrNotFound             = errors.New("requested resource not found")
	ErrConflict             = errors.New("conflict with the current state")
	ErrValidationFailed     = errors.New("validation failed")
	ErrConsistency          = errors.New("bracket data is inconsistent")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)

type classifiedError struct {
	class error
	msg   string
}

func (e *classifiedError) Error() string { return e.msg }
func (e *classifiedError) Unwrap() error { return e.class }

func newError(class error, msg string) error {
	return &classifiedError{class: class, msg: msg}
}

var (
	ErrTournamentNotFound  = newError(ErrNotFound, "tournament not found")
	ErrParticipantNotFound = newError(ErrNotFound, "participant not found")
	ErrMatchNotFound       = newError(ErrNotFound, "match not found")
	ErrSettingsNotFound    = newError(ErrNotFound, "match settings not found")
	ErrUserOffline         = newError(ErrNotFound, "user is not connected")

	ErrAlreadyQueued         = newError(ErrConflict, "user is already queued")
	ErrTournamentNotPending  = newError(ErrConflict, "tournament is not awaiting acceptance")
	ErrTournamentClosed      = newError(ErrConflict, "tournament is already finished or cancelled")
	ErrParticipantNotPending = newError(ErrConflict, "participation is already accepted")
	ErrMatchNotReady         = newError(ErrConflict, "match participants are not assigned yet")
	ErrMatchNotPlayable      = newError(ErrConflict, "match is not being played")
	ErrInvalidTransition     = newError(ErrConflict, "invalid match status transition")

	ErrInvalidBracketSize    = newError(ErrValidationFailed, "bracket size must be 2 or 4")
	ErrDuplicateParticipant  = newError(ErrValidationFailed, "participants must be distinct users")
	ErrCreatorNotParticipant = newError(ErrValidationFailed, "creator must be one of the participants")
	ErrInvalidMaxScore       = newError(ErrValidationFailed, "max score must be positive")

	ErrNotMatchParticipant      = newError(ErrForbiddenOperation, "user does not play in this match")
	ErrNotTournamentParticipant = newError(ErrForbiddenOperation, "user does not take part in this tournament")

	ErrNoToken        = newError(ErrAuthenticationFailed, "no token provided")
	ErrMalformedToken = newError(ErrAuthenticationFailed, "token is malformed")
	ErrInvalidToken   = newError(ErrAuthenticationFailed, "token is invalid")
	ErrTokenExpired   = newError(ErrAuthenticationFailed, "token has expired")
)

// consistencyError reports bracket corruption. It is never retried.
func consistencyError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}
