// Package token mints and verifies the two credentials handed to clients:
// signed short-lived access tokens and opaque refresh secrets.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-org-access/internal/ids"
	"go-org-access/internal/model"
)

// refreshSecretBytes is the entropy of a raw refresh secret.
const refreshSecretBytes = 48

type Config struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AccessClaims are the claims carried by an access token. Validity depends
// only on the signature and exp; there is no server-side record.
type AccessClaims struct {
	jwt.RegisteredClaims
}

type Issuer struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}

	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return &Issuer{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccess signs {sub, iat, exp, jti} for userID.
func (i *Issuer) IssueAccess(userID string, now time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccess verifies the signature, algorithm and expiry of raw as seen at
// now. Every failure collapses to model.ErrInvalidCredentials.
func (i *Issuer) ParseAccess(raw string, now time.Time) (*AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, model.ErrInvalidCredentials
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &AccessClaims{}
	parsed, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidCredentials
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, model.ErrInvalidCredentials
	}
	// exp <= now is expired; the parser already enforces this, keep it explicit.
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, model.ErrInvalidCredentials
	}

	return claims, nil
}

// IssueRefresh returns a fresh raw secret for userID and the ledger record to
// persist for it. The raw secret is not retained anywhere.
func (i *Issuer) IssueRefresh(userID string, now time.Time) (string, model.RefreshCredential, error) {
	raw, err := newSecret()
	if err != nil {
		return "", model.RefreshCredential{}, err
	}

	record := model.RefreshCredential{
		ID:        ids.NewAt(now),
		UserID:    userID,
		TokenHash: i.HashRefresh(raw),
		ExpiresAt: now.Add(i.refreshTTL),
		Revoked:   false,
		CreatedAt: now,
	}
	return raw, record, nil
}

// HashRefresh is the keyed digest stored in place of a raw refresh secret.
func (i *Issuer) HashRefresh(raw string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func newSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
