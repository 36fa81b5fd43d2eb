package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"magiclink_service/internal/allowlist"
	"magiclink_service/internal/config"
	"magiclink_service/internal/http_server/handlers/me"
	"magiclink_service/internal/http_server/handlers/redeem"
	"magiclink_service/internal/http_server/handlers/request"
	sl "magiclink_service/internal/lib/logger"
	"magiclink_service/internal/magiclink"
	authmw "magiclink_service/internal/middleware/auth"
	rateLimit "magiclink_service/internal/middleware/ratelimit"
	"magiclink_service/internal/notifier"
	"magiclink_service/internal/rabbitmq"
	"magiclink_service/internal/session"
	"magiclink_service/internal/storage/memory"
	"magiclink_service/internal/storage/postgres"
	redisstore "magiclink_service/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting magic link service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	var store magiclink.TokenStore
	if cfg.Redis.Addr != "" {
		redisRepo, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			os.Exit(1)
		}
		defer redisRepo.Close()

		store = redisRepo
	} else {
		log.Warn("redis not configured, using in-memory token store")

		store = memory.New()
	}

	var audit magiclink.AuditRecorder
	if cfg.Postgres.Host != "" {
		auditRepo, err := postgres.New(ctx, cfg)
		if err != nil {
			log.Error("failed to connect postgres", sl.Err(err))
			os.Exit(1)
		}
		defer auditRepo.Close()

		audit = auditRepo
	}

	mailNotifier := setupNotifier(cfg, log)
	if closer, ok := mailNotifier.(*rabbitmq.RabbitMQClient); ok {
		defer closer.Close()
	}

	gate := allowlist.New(cfg.Allowlist.Enabled, cfg.Allowlist.Entries)
	sessions := session.New(cfg.Tokens.SessionSecret, cfg.Tokens.SessionTTL)

	service := magiclink.New(
		log,
		store,
		mailNotifier,
		audit,
		gate,
		sessions,
		cfg.Tokens.MagicLinkTTL,
		cfg.Links.BaseURL,
		cfg.Env != envProd,
	)

	router := setupRouter(cfg, log, service, sessions)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

// setupNotifier picks the delivery path: mail queue if configured, then
// direct SMTP, else nil so issuance runs the logged fallback.
func setupNotifier(cfg *config.Config, log *slog.Logger) magiclink.Notifier {
	if cfg.RabbitMQ.URL != "" {
		msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			log.Error("failed to connect rabbitmq", sl.Err(err))
			os.Exit(1)
		}

		return msgBroker
	}

	if cfg.SMTP.Host != "" {
		return &notifier.Mailer{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			ReplyTo:  cfg.SMTP.ReplyTo,
		}
	}

	log.Warn("no email provider configured, links will be logged")

	return nil
}

func setupRouter(
	cfg *config.Config,
	log *slog.Logger,
	service *magiclink.Service,
	sessions *session.Sessions,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.HTTPServer.AllowedOrigin},
		AllowedMethods: []string{"GET", "OPTIONS", "PATCH", "DELETE", "POST", "PUT"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-CSRF-Token", "X-Api-Version"},
		MaxAge:         300,
	}))

	r.With(rateLimit.Request()).Post("/api/auth/request",
		request.New(log, service),
	)
	r.With(rateLimit.Redeem()).Post("/api/auth/redeem",
		redeem.New(log, service),
	)
	r.With(rateLimit.Me(), authmw.New(log, sessions)).Get("/api/auth/me",
		me.New(log),
	)

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
