package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-org-access/internal/model"
	"go-org-access/internal/token"
)

// RefreshLedger issues, rotates and revokes refresh credentials. Raw secrets
// pass through it but only their hashes reach the store.
type RefreshLedger struct {
	issuer *token.Issuer
	store  CredentialLedger
}

func NewRefreshLedger(issuer *token.Issuer, store CredentialLedger) *RefreshLedger {
	return &RefreshLedger{issuer: issuer, store: store}
}

// Issue mints a refresh secret for userID and persists its record.
func (l *RefreshLedger) Issue(ctx context.Context, userID string, now time.Time) (string, error) {
	raw, record, err := l.issuer.IssueRefresh(userID, now)
	if err != nil {
		return "", err
	}
	if err := l.store.Insert(ctx, record); err != nil {
		return "", fmt.Errorf("persist refresh credential: %w", err)
	}
	return raw, nil
}

// Rotate exchanges raw for a new secret. It returns the owner id and the new
// raw secret, or model.ErrInvalidToken when raw is unknown, revoked, expired
// or owned by an inactive user.
func (l *RefreshLedger) Rotate(ctx context.Context, raw string, now time.Time) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", model.ErrInvalidToken
	}

	var nextRaw string
	record, err := l.store.Rotate(ctx, l.issuer.HashRefresh(raw), now, func(ownerID string) (model.RefreshCredential, error) {
		secret, record, err := l.issuer.IssueRefresh(ownerID, now)
		if err != nil {
			return model.RefreshCredential{}, err
		}
		nextRaw = secret
		return record, nil
	})
	if err != nil {
		return "", "", err
	}
	return record.UserID, nextRaw, nil
}

// Revoke marks raw as revoked if it exists. It never reports whether a match
// was found; the only error is a storage failure.
func (l *RefreshLedger) Revoke(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return l.store.RevokeByHash(ctx, l.issuer.HashRefresh(raw))
}

func (l *RefreshLedger) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return l.store.RevokeAllForUser(ctx, userID)
}

// hashPrefix is the only form of a refresh secret that may appear in logs.
func (l *RefreshLedger) hashPrefix(raw string) string {
	hash := l.issuer.HashRefresh(strings.TrimSpace(raw))
	return hash[:12]
}
