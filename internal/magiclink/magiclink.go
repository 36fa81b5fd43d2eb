package magiclink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"magiclink_service/internal/allowlist"
	sl "magiclink_service/internal/lib/logger"
	"magiclink_service/internal/lib/random"
	"magiclink_service/internal/models"
	"magiclink_service/internal/session"
	"magiclink_service/internal/storage"
)

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrTokenInvalid = errors.New("invalid or expired token")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const emailSubject = "Your sign-in link"

// GenericIssueMessage is returned for every issuance attempt that passed
// format validation, allowed or not, so callers cannot probe the allowlist.
const GenericIssueMessage = "If the address is eligible, a sign-in link is on its way."

// DeliveryStatus tags how the magic link left the building. It is internal
// observability only and never reaches an HTTP response.
type DeliveryStatus string

const (
	// DeliveryDelivered means the notifier accepted the message.
	DeliveryDelivered DeliveryStatus = "delivered"
	// DeliveryLoggedFallback means no provider was configured or the
	// provider failed, and the link was logged server-side instead.
	DeliveryLoggedFallback DeliveryStatus = "logged_fallback"
	// DeliverySuppressed means the allowlist rejected the address and
	// nothing was stored or sent.
	DeliverySuppressed DeliveryStatus = "suppressed"
)

type IssueResult struct {
	Message        string
	Delivery       DeliveryStatus
	FallbackReason string
}

// SessionResult is the signed credential handed back after redemption.
type SessionResult struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// TokenStore is a KV store with per-key TTL. ConsumePending must be atomic:
// under concurrent redemption exactly one caller gets the record.
type TokenStore interface {
	SavePending(ctx context.Context, tokenHash string, pending models.PendingToken, ttl time.Duration) error
	ConsumePending(ctx context.Context, tokenHash string) (models.PendingToken, error)
}

type Notifier interface {
	Send(ctx context.Context, msg models.Message) error
}

// AuditRecorder records link lifecycle events. Calls are best-effort and
// must never affect the outcome of issuance or redemption.
type AuditRecorder interface {
	RecordIssued(ctx context.Context, rec models.LinkAudit) error
	RecordRedeemed(ctx context.Context, tokenHash string, at time.Time) error
}

type Service struct {
	log           *slog.Logger
	store         TokenStore
	notifier      Notifier
	audit         AuditRecorder
	gate          *allowlist.Gate
	sessions      *session.Sessions
	tokenTTL      time.Duration
	notifyTimeout time.Duration
	baseURL       string
	debugLinks    bool
}

// New wires the issuance/redemption service. notifier and audit may be nil:
// a nil notifier sends every link down the logged fallback, a nil audit
// disables the trail. debugLinks controls whether the fallback logs the raw
// link; keep it off in production.
func New(
	log *slog.Logger,
	store TokenStore,
	notifier Notifier,
	audit AuditRecorder,
	gate *allowlist.Gate,
	sessions *session.Sessions,
	tokenTTL time.Duration,
	baseURL string,
	debugLinks bool,
) *Service {
	return &Service{
		log:           log,
		store:         store,
		notifier:      notifier,
		audit:         audit,
		gate:          gate,
		sessions:      sessions,
		tokenTTL:      tokenTTL,
		notifyTimeout: 5 * time.Second,
		baseURL:       baseURL,
		debugLinks:    debugLinks,
	}
}

// Issue mints a single-use token for the email, stores it with a TTL and
// hands the link to the notifier. A notifier failure degrades to logging the
// link server-side; only a store failure fails the request.
func (s *Service) Issue(ctx context.Context, email string) (*IssueResult, error) {
	const op = "magiclink.Issue"

	log := s.log.With(slog.String("op", op))

	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	if !s.gate.IsAllowed(email) {
		log.Warn("email not on allowlist, suppressing issuance")

		return &IssueResult{
			Message:  GenericIssueMessage,
			Delivery: DeliverySuppressed,
		}, nil
	}

	token, err := random.Token()
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokenHash := HashToken(token)
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(s.tokenTTL)

	pending := models.PendingToken{
		Email:     email,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	if err := s.store.SavePending(ctx, tokenHash, pending, s.tokenTTL); err != nil {
		log.Error("failed to save pending token", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.audit != nil {
		rec := models.LinkAudit{
			TokenHash: tokenHash,
			Email:     email,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		}
		if err := s.audit.RecordIssued(ctx, rec); err != nil {
			log.Warn("failed to record issued link", sl.Err(err))
		}
	}

	link := fmt.Sprintf("%s/auth/verify?token=%s", s.baseURL, token)

	result := &IssueResult{
		Message:  GenericIssueMessage,
		Delivery: s.deliver(ctx, log, email, link),
	}

	log.Info("magic link issued",
		slog.String("delivery", string(result.Delivery)),
		slog.Time("expires_at", expiresAt),
	)

	return result, nil
}

// deliver tries the notifier and falls back to logging. The stored token is
// never rolled back on notifier failure: a legitimate requester must not be
// locked out by a transient provider outage.
func (s *Service) deliver(ctx context.Context, log *slog.Logger, email, link string) DeliveryStatus {
	if s.notifier == nil {
		s.logFallback(log, link, "no email provider configured")

		return DeliveryLoggedFallback
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	msg := models.Message{
		Email:   email,
		Link:    link,
		Subject: emailSubject,
	}

	if err := s.notifier.Send(notifyCtx, msg); err != nil {
		log.Error("failed to send magic link", sl.Err(err))
		s.logFallback(log, link, err.Error())

		return DeliveryLoggedFallback
	}

	return DeliveryDelivered
}

func (s *Service) logFallback(log *slog.Logger, link, reason string) {
	if s.debugLinks {
		log.Info("magic link fallback",
			slog.String("reason", reason),
			slog.String("link", link),
		)

		return
	}

	log.Info("magic link fallback, link withheld", slog.String("reason", reason))
}

// Redeem exchanges a presented token for a signed session. The pending
// record is consumed atomically before the session is minted, so a failed
// mint never leaves the token redeemable again.
func (s *Service) Redeem(ctx context.Context, token string) (*SessionResult, error) {
	const op = "magiclink.Redeem"

	log := s.log.With(slog.String("op", op))

	if token == "" {
		return nil, ErrTokenInvalid
	}

	tokenHash := HashToken(token)

	pending, err := s.store.ConsumePending(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrTokenInvalid
		}

		log.Error("failed to consume pending token", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.audit != nil {
		if err := s.audit.RecordRedeemed(ctx, tokenHash, time.Now()); err != nil {
			log.Warn("failed to record redeemed link", sl.Err(err))
		}
	}

	sessionToken, expiresAt, err := s.sessions.Mint(pending.Email)
	if err != nil {
		log.Error("failed to mint session", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("magic link redeemed")

	return &SessionResult{
		Token:     sessionToken,
		Email:     pending.Email,
		ExpiresAt: expiresAt,
	}, nil
}

// HashToken derives the store key from a raw token. The store only ever sees
// the hash, so a store dump cannot be replayed as live links.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}
