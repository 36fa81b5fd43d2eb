package magiclink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"magiclink_service/internal/allowlist"
	"magiclink_service/internal/models"
	"magiclink_service/internal/session"
	"magiclink_service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spyNotifier struct {
	mu       sync.Mutex
	messages []models.Message
	fail     bool
}

func (n *spyNotifier) Send(_ context.Context, msg models.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail {
		return errors.New("provider down")
	}

	n.messages = append(n.messages, msg)

	return nil
}

func (n *spyNotifier) sent() []models.Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]models.Message(nil), n.messages...)
}

type testDeps struct {
	store    *memory.TokenRepo
	notifier *spyNotifier
	sessions *session.Sessions
}

func newTestService(t *testing.T, allowEnabled bool, entries []string) (*Service, *testDeps) {
	t.Helper()

	deps := &testDeps{
		store:    memory.New(),
		notifier: &spyNotifier{},
		sessions: session.New("test-secret", time.Hour),
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := allowlist.New(allowEnabled, entries)

	svc := New(
		log,
		deps.store,
		deps.notifier,
		nil,
		gate,
		deps.sessions,
		4*time.Hour,
		"http://localhost:3000",
		true,
	)

	return svc, deps
}

// tokenFromLink extracts the raw token from the delivered magic link.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()

	u, err := url.Parse(link)
	require.NoError(t, err)

	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	return token
}

func TestIssueThenRedeem(t *testing.T) {
	svc, deps := newTestService(t, false, nil)
	ctx := context.Background()

	result, err := svc.Issue(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, result.Delivery)
	assert.Equal(t, GenericIssueMessage, result.Message)

	sent := deps.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "user@example.com", sent[0].Email)

	token := tokenFromLink(t, sent[0].Link)

	sess, err := svc.Redeem(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", sess.Email)

	// The credential verifies without any store lookup and is bound to
	// the requesting email.
	email, err := deps.sessions.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestRedeemTwice(t *testing.T) {
	svc, deps := newTestService(t, false, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "user@example.com")
	require.NoError(t, err)

	token := tokenFromLink(t, deps.notifier.sent()[0].Link)

	_, err = svc.Redeem(ctx, token)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedeemUnknownToken(t *testing.T) {
	svc, _ := newTestService(t, false, nil)

	_, err := svc.Redeem(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Redeem(context.Background(), "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssueMalformedEmail(t *testing.T) {
	svc, deps := newTestService(t, false, nil)

	for _, email := range []string{"", "no-at-sign", "two@@example.com ", "user@nodot", "spaces in@example.com"} {
		_, err := svc.Issue(context.Background(), email)
		assert.ErrorIs(t, err, ErrInvalidEmail, "email %q", email)
	}

	// No store write, no notification.
	assert.Equal(t, 0, deps.store.Len())
	assert.Empty(t, deps.notifier.sent())
}

func TestIssueNotAllowedLooksLikeSuccess(t *testing.T) {
	svc, deps := newTestService(t, true, []string{"example.com"})
	ctx := context.Background()

	allowed, err := svc.Issue(ctx, "user@example.com")
	require.NoError(t, err)

	rejected, err := svc.Issue(ctx, "user@outsider.net")
	require.NoError(t, err)

	// Indistinguishable message, nothing stored or sent for the rejected
	// address.
	assert.Equal(t, allowed.Message, rejected.Message)
	assert.Equal(t, DeliverySuppressed, rejected.Delivery)
	assert.Equal(t, 1, deps.store.Len())
	assert.Len(t, deps.notifier.sent(), 1)
}

func TestIssueNotifierFailureFallsBack(t *testing.T) {
	svc, deps := newTestService(t, false, nil)
	deps.notifier.fail = true

	result, err := svc.Issue(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, DeliveryLoggedFallback, result.Delivery)

	// The token survived the provider outage and is still redeemable.
	assert.Equal(t, 1, deps.store.Len())
}

func TestIssueWithoutNotifierFallsBack(t *testing.T) {
	svc, deps := newTestService(t, false, nil)
	svc.notifier = nil

	result, err := svc.Issue(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, DeliveryLoggedFallback, result.Delivery)
	assert.Equal(t, 1, deps.store.Len())
}

func TestConcurrentRedeemExactlyOneSession(t *testing.T) {
	svc, deps := newTestService(t, false, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "user@example.com")
	require.NoError(t, err)

	token := tokenFromLink(t, deps.notifier.sent()[0].Link)

	const workers = 16

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		invalids  atomic.Int64
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.Redeem(ctx, token)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrTokenInvalid):
				invalids.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(1), successes.Load())
	assert.Equal(t, int64(workers-1), invalids.Load())
}

func TestRepeatedIssueKeepsOldTokensValid(t *testing.T) {
	svc, deps := newTestService(t, false, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "user@example.com")
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "user@example.com")
	require.NoError(t, err)

	sent := deps.notifier.sent()
	require.Len(t, sent, 2)

	first := tokenFromLink(t, sent[0].Link)
	second := tokenFromLink(t, sent[1].Link)
	assert.NotEqual(t, first, second)

	// No superseding: both links redeem independently.
	_, err = svc.Redeem(ctx, first)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, second)
	require.NoError(t, err)
}

func TestTokenIsOpaque(t *testing.T) {
	svc, deps := newTestService(t, false, nil)

	_, err := svc.Issue(context.Background(), "user@example.com")
	require.NoError(t, err)

	token := tokenFromLink(t, deps.notifier.sent()[0].Link)

	assert.GreaterOrEqual(t, len(token), 43) // 32 random bytes, base64url
	assert.NotContains(t, strings.ToLower(token), "user")
	assert.NotContains(t, strings.ToLower(token), "example")
}
