package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"go-org-access/internal/model"
)

var testNow = time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()

	issuer, err := NewIssuer(Config{
		Secret:     "test-secret",
		Algorithm:  "HS256",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(Config{Secret: "", Algorithm: "HS256", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.Error(t, err)

	_, err = NewIssuer(Config{Secret: "s", Algorithm: "RS256", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.Error(t, err)

	_, err = NewIssuer(Config{Secret: "s", Algorithm: "none", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.Error(t, err)

	_, err = NewIssuer(Config{Secret: "s", Algorithm: "HS512", AccessTTL: 0, RefreshTTL: time.Hour})
	require.Error(t, err)
}

func TestAccessRoundTrip(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)
	signed, err := issuer.IssueAccess("user-1", testNow)
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(signed, testNow.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, testNow.Unix(), claims.IssuedAt.Unix())
	require.Equal(t, testNow.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestAccessTokensHaveUniqueJTI(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)
	first, err := issuer.IssueAccess("user-1", testNow)
	require.NoError(t, err)
	second, err := issuer.IssueAccess("user-1", testNow)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestParseAccessRejects(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)
	valid, err := issuer.IssueAccess("user-1", testNow)
	require.NoError(t, err)

	other, err := NewIssuer(Config{Secret: "other-secret", Algorithm: "HS256", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)
	foreign, err := other.IssueAccess("user-1", testNow)
	require.NoError(t, err)

	stronger, err := NewIssuer(Config{Secret: "test-secret", Algorithm: "HS512", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)
	wrongAlg, err := stronger.IssueAccess("user-1", testNow)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{RegisteredClaims: jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(testNow),
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  "user-1",
		IssuedAt: jwt.NewNumericDate(testNow),
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		token string
		at    time.Time
	}{
		"empty":                  {token: "", at: testNow},
		"garbage":                {token: "not.a.jwt", at: testNow},
		"tampered":               {token: valid + "x", at: testNow},
		"foreign secret":         {token: foreign, at: testNow},
		"unexpected algorithm":   {token: wrongAlg, at: testNow},
		"alg none":               {token: unsigned, at: testNow},
		"missing subject":        {token: noSubject, at: testNow},
		"missing expiry":         {token: noExpiry, at: testNow},
		"expired exactly at ttl": {token: valid, at: testNow.Add(time.Hour)},
		"expired after ttl":      {token: valid, at: testNow.Add(2 * time.Hour)},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.ParseAccess(tc.token, tc.at)
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
		})
	}
}

func TestIssueRefresh(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)
	raw, record, err := issuer.IssueRefresh("user-1", testNow)
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	require.Len(t, decoded, refreshSecretBytes)

	require.NotEmpty(t, record.ID)
	require.Equal(t, "user-1", record.UserID)
	require.Equal(t, issuer.HashRefresh(raw), record.TokenHash)
	require.NotContains(t, record.TokenHash, raw)
	require.Equal(t, testNow.Add(7*24*time.Hour), record.ExpiresAt)
	require.False(t, record.Revoked)
	require.True(t, record.ValidAt(testNow))
	require.False(t, record.ValidAt(record.ExpiresAt))

	raw2, record2, err := issuer.IssueRefresh("user-1", testNow)
	require.NoError(t, err)
	require.NotEqual(t, raw, raw2)
	require.NotEqual(t, record.TokenHash, record2.TokenHash)
}

func TestHashRefreshIsKeyed(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)
	other, err := NewIssuer(Config{Secret: "other-secret", Algorithm: "HS256", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)

	require.Equal(t, issuer.HashRefresh("abc"), issuer.HashRefresh("abc"))
	require.NotEqual(t, issuer.HashRefresh("abc"), other.HashRefresh("abc"))
	require.Len(t, issuer.HashRefresh("abc"), 64)
}
