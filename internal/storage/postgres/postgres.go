package postgres

import (
	"context"
	"fmt"
	"time"

	"magiclink_service/internal/config"
	"magiclink_service/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo keeps a best-effort trail of issued and redeemed magic links.
// It is observability data only: the token store alone decides validity.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*AuditRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &AuditRepo{pool: pool}, nil
}

func (r *AuditRepo) RecordIssued(ctx context.Context, rec models.LinkAudit) error {
	const op = "storage.postgres.RecordIssued"

	query := `
		INSERT INTO magic_links (token_hash, email, issued_at, expires_at)
		VALUES ($1, $2, $3, $4);
	`

	_, err := r.pool.Exec(ctx, query, rec.TokenHash, rec.Email, rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *AuditRepo) RecordRedeemed(ctx context.Context, tokenHash string, at time.Time) error {
	const op = "storage.postgres.RecordRedeemed"

	query := `UPDATE magic_links SET redeemed_at = $2 WHERE token_hash = $1;`

	_, err := r.pool.Exec(ctx, query, tokenHash, at)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CleanupExpired drops audit rows for links that expired unredeemed.
func (r *AuditRepo) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "storage.postgres.CleanupExpired"

	query := `DELETE FROM magic_links WHERE expires_at < NOW() AND redeemed_at IS NULL;`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *AuditRepo) Close() {
	r.pool.Close()
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
