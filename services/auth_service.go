package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type TokenKind string

const (
	TokenAccess    TokenKind = "access"
	TokenTwoFactor TokenKind = "two_factor"
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID uuid.UUID
	Kind   TokenKind
}

type tokenClaims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

type AuthService interface {
	VerifyToken(token string) (*Identity, error)
	IssueToken(userID uuid.UUID, kind TokenKind, ttl time.Duration) (string, error)
}

type authService struct {
	secret []byte
	now    func() time.Time
}

func NewAuthService(secret string) AuthService {
	return &authService{secret: []byte(secret), now: time.Now}
}

func (s *authService) VerifyToken(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrNoToken
	}

	claims := &tokenClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) {
			switch {
			case vErr.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrMalformedToken
			case vErr.Errors&jwt.ValidationErrorExpired != 0:
				return nil, ErrTokenExpired
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrMalformedToken
	}
	switch claims.Kind {
	case TokenAccess, TokenTwoFactor:
	default:
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: userID, Kind: claims.Kind}, nil
}

func (s *authService) IssueToken(userID uuid.UUID, kind TokenKind, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
