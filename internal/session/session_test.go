package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerify(t *testing.T) {
	s := New("test-secret", time.Hour)

	token, expiresAt, err := s.Mint("user@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	email, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestVerifyExpired(t *testing.T) {
	s := New("test-secret", -time.Minute)

	token, _, err := s.Mint("user@example.com")
	require.NoError(t, err)

	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	minter := New("one-secret", time.Hour)
	verifier := New("other-secret", time.Hour)

	token, _, err := minter.Mint("user@example.com")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestVerifyTampered(t *testing.T) {
	s := New("test-secret", time.Hour)

	token, _, err := s.Mint("user@example.com")
	require.NoError(t, err)

	_, err = s.Verify(token[:len(token)-2] + "xx")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	s := New("test-secret", time.Hour)

	_, err := s.Verify("not-a-session")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestVerifyWrongPurpose(t *testing.T) {
	s := New("test-secret", time.Hour)

	claims := jwt.MapClaims{
		"sub":     "user@example.com",
		"purpose": "password_reset",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = s.Verify(other)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
