package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-org-access/internal/model"
)

func TestLoginIssuesPair(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "ana", model.RoleStaff, "")
	ctx := context.Background()

	pair, err := f.auth.Login(ctx, "  ANA@example.org ", testPassword, testNow)
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(3600), pair.ExpiresIn)
	require.NotEmpty(t, pair.RefreshToken)

	identity, err := f.auth.Authenticate(ctx, pair.AccessToken, testNow.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.ID)

	// only the hash is stored
	_, stored := f.store.Tokens.Lookup(f.issuer.HashRefresh(pair.RefreshToken))
	require.True(t, stored)
	_, rawStored := f.store.Tokens.Lookup(pair.RefreshToken)
	require.False(t, rawStored)
	require.Equal(t, 1, f.metrics.loginOK)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", model.RoleStaff, "")
	inactive := f.addUser(t, "bo", model.RoleStaff, "")
	inactive.Active = false
	require.NoError(t, f.store.Users.Update(context.Background(), inactive))

	cases := map[string][2]string{
		"wrong password":   {"ana@example.org", "wrong-password"},
		"unknown email":    {"nobody@example.org", testPassword},
		"inactive account": {"bo@example.org", testPassword},
		"empty password":   {"ana@example.org", ""},
		"empty email":      {"", testPassword},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Login(context.Background(), tc[0], tc[1], testNow)
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
		})
	}
	require.Equal(t, len(cases), f.metrics.loginFail)
}

func TestRefreshRotatesSingleUse(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", model.RoleStaff, "")
	ctx := context.Background()

	first, err := f.auth.Login(ctx, "ana@example.org", testPassword, testNow)
	require.NoError(t, err)

	second, err := f.auth.Refresh(ctx, first.RefreshToken, testNow.Add(time.Minute))
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.auth.Refresh(ctx, first.RefreshToken, testNow.Add(2*time.Minute))
	require.ErrorIs(t, err, model.ErrInvalidToken)

	third, err := f.auth.Refresh(ctx, second.RefreshToken, testNow.Add(3*time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, third.AccessToken)

	require.Equal(t, 2, f.metrics.refreshOK)
	require.Equal(t, 1, f.metrics.refreshFail)
}

func TestRefreshRejects(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "ana", model.RoleStaff, "")
	ctx := context.Background()

	pair, err := f.auth.Login(ctx, "ana@example.org", testPassword, testNow)
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, "", testNow)
	require.ErrorIs(t, err, model.ErrInvalidToken)
	_, err = f.auth.Refresh(ctx, "never-issued", testNow)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	// expiry is exclusive
	_, err = f.auth.Refresh(ctx, pair.RefreshToken, testNow.Add(7*24*time.Hour))
	require.ErrorIs(t, err, model.ErrInvalidToken)

	user.Active = false
	require.NoError(t, f.store.Users.Update(ctx, user))
	_, err = f.auth.Refresh(ctx, pair.RefreshToken, testNow.Add(time.Minute))
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestConcurrentRefreshExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", model.RoleStaff, "")
	ctx := context.Background()

	pair, err := f.auth.Login(ctx, "ana@example.org", testPassword, testNow)
	require.NoError(t, err)

	const callers = 16
	results := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, results[i] = f.auth.Refresh(ctx, pair.RefreshToken, testNow.Add(time.Minute))
		}()
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, model.ErrInvalidToken)
	}
	require.Equal(t, 1, wins)
}

func TestLogoutIsIdempotentAndSilent(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", model.RoleStaff, "")
	ctx := context.Background()

	pair, err := f.auth.Login(ctx, "ana@example.org", testPassword, testNow)
	require.NoError(t, err)

	f.auth.Logout(ctx, pair.RefreshToken, testNow)
	f.auth.Logout(ctx, pair.RefreshToken, testNow)
	f.auth.Logout(ctx, "unknown-secret", testNow)
	f.auth.Logout(ctx, "", testNow)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken, testNow.Add(time.Minute))
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

type failingLedger struct {
	CredentialLedger
}

func (failingLedger) RevokeByHash(context.Context, string) error {
	return errors.New("connection reset")
}

func TestLogoutSwallowsStorageErrors(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthService(AuthDeps{
		Users:  f.store.Users,
		Hasher: f.hasher,
		Issuer: f.issuer,
		Ledger: NewRefreshLedger(f.issuer, failingLedger{f.store.Tokens}),
	})

	require.NotPanics(t, func() { auth.Logout(context.Background(), "some-secret", testNow) })
}

func TestAuthenticateRejectsDeactivatedUser(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "ana", model.RoleStaff, "")
	ctx := context.Background()

	pair, err := f.auth.Login(ctx, "ana@example.org", testPassword, testNow)
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, pair.AccessToken, testNow.Add(time.Minute))
	require.NoError(t, err)

	user.Active = false
	require.NoError(t, f.store.Users.Update(ctx, user))

	_, err = f.auth.Authenticate(ctx, pair.AccessToken, testNow.Add(2*time.Minute))
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = f.auth.Authenticate(ctx, pair.AccessToken, testNow.Add(time.Hour))
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthenticateRejectsUnknownSubject(t *testing.T) {
	f := newFixture(t)

	access, err := f.issuer.IssueAccess("ghost", testNow)
	require.NoError(t, err)

	_, err = f.auth.Authenticate(context.Background(), access, testNow)
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLoginPublishesEventsWithoutSecrets(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", model.RoleStaff, "")
	events, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	_, err := f.auth.Login(context.Background(), "ana@example.org", "bad-password-123", testNow)
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	e := <-events
	require.Equal(t, "auth.login_failed", string(e.Type))
	require.NotContains(t, e.Detail, "bad-password-123")
}
