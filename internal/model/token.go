package model

import "time"

// RefreshCredential is the ledger row for an opaque refresh secret. Only the
// hash of the secret is ever stored.
type RefreshCredential struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidAt reports whether the credential can still be exchanged at now.
func (c RefreshCredential) ValidAt(now time.Time) bool {
	return !c.Revoked && c.ExpiresAt.After(now)
}
