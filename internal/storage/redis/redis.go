package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"magiclink_service/internal/models"
	"magiclink_service/internal/storage"

	"github.com/redis/go-redis/v9"
)

const pendingKeyPrefix = "magiclink:pending:"

type TokenRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*TokenRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &TokenRepo{
		client: client,
	}, nil
}

// SavePending stores a pending token under its hash. Redis expires the key on
// its own at the TTL; no cleanup pass is needed.
func (r *TokenRepo) SavePending(
	ctx context.Context,
	tokenHash string,
	pending models.PendingToken,
	ttl time.Duration,
) error {
	const op = "storage.redis.SavePending"

	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	key := pendingKeyPrefix + tokenHash

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConsumePending atomically fetches and deletes the pending token via GETDEL.
// Concurrent calls with the same hash get the record exactly once; all others
// see storage.ErrTokenNotFound.
func (r *TokenRepo) ConsumePending(ctx context.Context, tokenHash string) (models.PendingToken, error) {
	const op = "storage.redis.ConsumePending"

	key := pendingKeyPrefix + tokenHash

	val, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return models.PendingToken{}, storage.ErrTokenNotFound
	}
	if err != nil {
		return models.PendingToken{}, fmt.Errorf("%s: %w", op, err)
	}

	var pending models.PendingToken
	if err := json.Unmarshal([]byte(val), &pending); err != nil {
		return models.PendingToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return pending, nil
}

func (r *TokenRepo) Close() {
	r.client.Close()
}
