package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	resp "magiclink_service/internal/lib/api/response"
	"magiclink_service/internal/session"

	"github.com/go-chi/render"
)

type ctxKey string

const emailKey ctxKey = "session_email"

// New verifies the bearer session credential on every request. Expired and
// invalid sessions are both rejected with 401 and distinct messages; a bad
// session is never downgraded to anonymous.
func New(log *slog.Logger, sessions *session.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.auth.New"

			token := bearerToken(r)
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("missing session"))

				return
			}

			email, err := sessions.Verify(token)
			if err != nil {
				log.Warn("session rejected", slog.String("op", op), slog.Any("err", err))

				msg := "invalid session"
				if errors.Is(err, session.ErrSessionExpired) {
					msg = "session expired"
				}

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error(msg))

				return
			}

			ctx := context.WithValue(r.Context(), emailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EmailFromContext returns the verified session email set by the middleware.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)

	return email, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimPrefix(header, prefix)
}
