package memory

import (
	"context"
	"sync"
	"time"

	"magiclink_service/internal/models"
	"magiclink_service/internal/storage"
)

type entry struct {
	pending   models.PendingToken
	expiresAt time.Time
}

// TokenRepo is an in-memory token store for tests and credential-less dev
// runs. Expiry is enforced lazily on read instead of with a janitor.
type TokenRepo struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *TokenRepo {
	return &TokenRepo{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (r *TokenRepo) SavePending(
	_ context.Context,
	tokenHash string,
	pending models.PendingToken,
	ttl time.Duration,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[tokenHash] = entry{
		pending:   pending,
		expiresAt: r.now().Add(ttl),
	}

	return nil
}

func (r *TokenRepo) ConsumePending(_ context.Context, tokenHash string) (models.PendingToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[tokenHash]
	if !ok {
		return models.PendingToken{}, storage.ErrTokenNotFound
	}

	delete(r.entries, tokenHash)

	if r.now().After(e.expiresAt) {
		return models.PendingToken{}, storage.ErrTokenNotFound
	}

	return e.pending, nil
}

// Len reports the number of live (possibly expired, not yet purged) entries.
func (r *TokenRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
