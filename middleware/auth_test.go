package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	auth := services.NewAuthService("secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	user := uuid.New()

	var seen uuid.UUID
	handler := Authenticate(auth, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	access, err := auth.IssueToken(user, services.TokenAccess, time.Minute)
	require.NoError(t, err)
	twoFactor, err := auth.IssueToken(user, services.TokenTwoFactor, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer nonsense"))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+twoFactor))
	assert.Equal(t, uuid.Nil, seen)

	assert.Equal(t, http.StatusNoContent, call("Bearer "+access))
	assert.Equal(t, user, seen)
}

func TestGetUserIDFromContextWithoutIdentity(t *testing.T) {
	_, err := GetUserIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}
