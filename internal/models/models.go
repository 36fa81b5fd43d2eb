package models

import "time"

// PendingToken is the record behind an unredeemed magic link. It lives in the
// token store under the token hash and is destroyed by expiry or redemption,
// whichever comes first.
type PendingToken struct {
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Message is an email job handed to a notifier or published to the mail queue.
type Message struct {
	Email   string `json:"to"`
	Link    string `json:"link"`
	Subject string `json:"subject"`
}

// LinkAudit is a best-effort audit record of an issued magic link. The token
// store, not this record, decides whether a token is still redeemable.
type LinkAudit struct {
	TokenHash  string
	Email      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RedeemedAt *time.Time
}
