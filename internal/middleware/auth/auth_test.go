package auth_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"magiclink_service/internal/http_server/handlers/me"
	auth "magiclink_service/internal/middleware/auth"
	"magiclink_service/internal/session"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(sessions *session.Sessions) *chi.Mux {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.With(auth.New(log, sessions)).Get("/api/auth/me", me.New(log))

	return r
}

func get(router http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestMeWithValidSession(t *testing.T) {
	sessions := session.New("test-secret", time.Hour)
	router := newRouter(sessions)

	token, _, err := sessions.Mint("user@example.com")
	require.NoError(t, err)

	rec := get(router, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user@example.com")
}

func TestMeMissingSession(t *testing.T) {
	sessions := session.New("test-secret", time.Hour)
	router := newRouter(sessions)

	rec := get(router, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeExpiredSession(t *testing.T) {
	expired := session.New("test-secret", -time.Minute)
	router := newRouter(expired)

	token, _, err := expired.Mint("user@example.com")
	require.NoError(t, err)

	rec := get(router, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "session expired")
}

func TestMeInvalidSession(t *testing.T) {
	sessions := session.New("test-secret", time.Hour)
	router := newRouter(sessions)

	rec := get(router, "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid session")
}
