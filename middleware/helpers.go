package middleware

import (
	"context"
	"errors"

	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
)

var ErrNoIdentity = errors.New("user identity not found in context")

// GetUserIDFromContext returns the id of the authenticated caller.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	identity, ok := ctx.Value(identityContextKey).(*services.Identity)
	if !ok || identity == nil {
		return uuid.Nil, ErrNoIdentity
	}
	if identity.UserID == uuid.Nil {
		return uuid.Nil, errors.New("identity carries an empty user id")
	}
	return identity.UserID, nil
}
