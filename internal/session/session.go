package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSessionInvalid = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

const purposeSession = "session"

// Sessions mints and verifies stateless session credentials: HS256-signed
// JWTs carrying the authenticated email. Verification needs no store lookup,
// so a credential stays valid until its expiry.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Mint issues a signed session for the given email and returns the credential
// with its expiry.
func (s *Sessions) Mint(email string) (string, time.Time, error) {
	const op = "session.Mint"

	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"sub":     email,
		"purpose": purposeSession,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

// Verify recomputes the MAC and returns the bound email. Expiry is reported
// distinctly from every other failure so callers never treat a stale session
// as anonymous.
func (s *Sessions) Verify(tokenStr string) (string, error) {
	const op = "session.Verify"

	claims := jwt.MapClaims{}

	parsedToken, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrSessionInvalid
	}

	if !parsedToken.Valid {
		return "", ErrSessionInvalid
	}

	if purpose, ok := claims["purpose"].(string); !ok || purpose != purposeSession {
		return "", ErrSessionInvalid
	}

	email, ok := claims["sub"].(string)
	if !ok || email == "" {
		return "", ErrSessionInvalid
	}

	return email, nil
}
