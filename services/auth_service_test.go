package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyTokenRoundTrip(t *testing.T) {
	auth := NewAuthService("secret")
	userID := uuid.New()

	token, err := auth.IssueToken(userID, TokenAccess, time.Hour)
	require.NoError(t, err)

	identity, err := auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, TokenAccess, identity.Kind)

	identity, err = auth.VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
}

func TestVerifyTokenFailures(t *testing.T) {
	auth := NewAuthService("secret")
	userID := uuid.New()

	expired, err := auth.IssueToken(userID, TokenAccess, -time.Minute)
	require.NoError(t, err)
	foreign, err := NewAuthService("other").IssueToken(userID, TokenAccess, time.Hour)
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrNoToken},
		{"garbage", "not-a-jwt", ErrMalformedToken},
		{"expired", expired, ErrTokenExpired},
		{"wrong secret", foreign, ErrInvalidToken},
		{"subject is not a uuid", badSubject, ErrMalformedToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.VerifyToken(tc.token)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrAuthenticationFailed)
		})
	}
}

func TestVerifyTokenTwoFactorKind(t *testing.T) {
	auth := NewAuthService("secret")
	token, err := auth.IssueToken(uuid.New(), TokenTwoFactor, time.Hour)
	require.NoError(t, err)

	identity, err := auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTwoFactor, identity.Kind)
}
