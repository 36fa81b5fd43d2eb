package redeem

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "magiclink_service/internal/lib/api/response"
	sl "magiclink_service/internal/lib/logger"
	"magiclink_service/internal/magiclink"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Token string `json:"token" validate:"required"`
}

type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Response struct {
	resp.Response
	Session Session `json:"session"`
}

func New(
	log *slog.Logger,
	service *magiclink.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.redeem.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := service.Redeem(ctx, req.Token)
		if err != nil {
			if errors.Is(err, magiclink.ErrTokenInvalid) {
				log.Warn("redemption rejected")

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid or expired link"))

				return
			}

			log.Error("failed to redeem magic link", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("session issued")

		ResponseOK(w, r, result)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, result *magiclink.SessionResult) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Session: Session{
			Token:     result.Token,
			Email:     result.Email,
			ExpiresAt: result.ExpiresAt,
		},
	})
}
