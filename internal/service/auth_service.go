package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-org-access/internal/event"
	"go-org-access/internal/model"
	"go-org-access/internal/token"
)

const tokenTypeBearer = "Bearer"

// PasswordHasher is the credential store as seen by the services.
type PasswordHasher interface {
	Validate(plain string) error
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain string, hash string) bool
	VerifyDummy(ctx context.Context, plain string)
}

// AuthMetrics receives login and refresh outcomes. May be nil.
type AuthMetrics interface {
	Login(ok bool)
	Refresh(ok bool)
}

type AuthService struct {
	users    UserStore
	hasher   PasswordHasher
	issuer   *token.Issuer
	ledger   *RefreshLedger
	resolver *SessionResolver
	bus      event.Bus
	metrics  AuthMetrics
}

type AuthDeps struct {
	Users   UserStore
	Hasher  PasswordHasher
	Issuer  *token.Issuer
	Ledger  *RefreshLedger
	Bus     event.Bus
	Metrics AuthMetrics
}

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		users:    deps.Users,
		hasher:   deps.Hasher,
		issuer:   deps.Issuer,
		ledger:   deps.Ledger,
		resolver: NewSessionResolver(deps.Issuer, deps.Users),
		bus:      deps.Bus,
		metrics:  deps.Metrics,
	}
}

// Login verifies email and password and issues a token pair. Unknown email,
// wrong password and inactive account are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email string, password string, now time.Time) (model.TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.loginFailed(email, "missing_fields")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		s.hasher.VerifyDummy(ctx, password)
		s.loginFailed(email, "unknown_email")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("load user for login: %w", err)
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		s.loginFailed(email, "bad_password")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if !user.Active {
		s.loginFailed(email, "inactive")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.ID, now)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.recordLogin(true)
	s.publish(event.Event{Type: event.TypeLoginSucceeded, ActorID: user.ID, SubjectID: user.ID})
	return pair, nil
}

// Refresh rotates a refresh secret. Any failure to find a live credential is
// model.ErrInvalidToken.
func (s *AuthService) Refresh(ctx context.Context, refreshSecret string, now time.Time) (model.TokenPair, error) {
	ownerID, nextRaw, err := s.ledger.Rotate(ctx, refreshSecret, now)
	if err != nil {
		s.recordRefresh(false)
		if errors.Is(err, model.ErrInvalidToken) {
			s.publish(event.Event{Type: event.TypeRefreshFailed})
		}
		return model.TokenPair{}, err
	}

	access, err := s.issuer.IssueAccess(ownerID, now)
	if err != nil {
		s.recordRefresh(false)
		return model.TokenPair{}, err
	}

	s.recordRefresh(true)
	s.publish(event.Event{Type: event.TypeRefreshed, ActorID: ownerID, SubjectID: ownerID})
	return s.pair(access, nextRaw), nil
}

// Logout revokes the refresh secret. It has no error surface: storage
// failures are logged with a hash prefix and swallowed.
func (s *AuthService) Logout(ctx context.Context, refreshSecret string, now time.Time) {
	if strings.TrimSpace(refreshSecret) == "" {
		return
	}
	if err := s.ledger.Revoke(ctx, refreshSecret); err != nil {
		slog.Warn("logout revoke failed", "hash_prefix", s.ledger.hashPrefix(refreshSecret), "error", err)
		return
	}
	s.publish(event.Event{Type: event.TypeLoggedOut, Timestamp: now.UTC().Format(time.RFC3339Nano)})
}

func (s *AuthService) Authenticate(ctx context.Context, accessToken string, now time.Time) (model.AuthenticatedUser, error) {
	return s.resolver.Authenticate(ctx, accessToken, now)
}

// RevokeAllForUser ends every refresh session of userID. Access tokens
// already issued stay valid until they expire or the user is deactivated.
func (s *AuthService) RevokeAllForUser(ctx context.Context, actorID string, userID string) error {
	n, err := s.ledger.RevokeAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.publish(event.Event{
		Type:      event.TypeSessionsEnded,
		ActorID:   actorID,
		SubjectID: userID,
		Detail:    fmt.Sprintf("revoked=%d", n),
	})
	return nil
}

func (s *AuthService) issuePair(ctx context.Context, userID string, now time.Time) (model.TokenPair, error) {
	access, err := s.issuer.IssueAccess(userID, now)
	if err != nil {
		return model.TokenPair{}, err
	}
	raw, err := s.ledger.Issue(ctx, userID, now)
	if err != nil {
		return model.TokenPair{}, err
	}
	return s.pair(access, raw), nil
}

func (s *AuthService) pair(access string, refresh string) model.TokenPair {
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}
}

func (s *AuthService) loginFailed(email string, reason string) {
	s.recordLogin(false)
	s.publish(event.Event{
		Type:   event.TypeLoginFailed,
		Detail: fmt.Sprintf("email=%s reason=%s", strings.ToLower(email), reason),
	})
}

func (s *AuthService) recordLogin(ok bool) {
	if s.metrics != nil {
		s.metrics.Login(ok)
	}
}

func (s *AuthService) recordRefresh(ok bool) {
	if s.metrics != nil {
		s.metrics.Refresh(ok)
	}
}

func (s *AuthService) publish(e event.Event) {
	publish(s.bus, e)
}

func publish(bus event.Bus, e event.Event) {
	if bus != nil {
		bus.Publish(e)
	}
}
