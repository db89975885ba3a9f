package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-org-access/internal/model"
	"go-org-access/internal/token"
)

// SessionResolver turns an access token into an identity. Nothing is cached:
// every call reads the user so deactivation takes effect on the next request.
type SessionResolver struct {
	issuer *token.Issuer
	users  UserStore
}

func NewSessionResolver(issuer *token.Issuer, users UserStore) *SessionResolver {
	return &SessionResolver{issuer: issuer, users: users}
}

func (r *SessionResolver) Authenticate(ctx context.Context, accessToken string, now time.Time) (model.AuthenticatedUser, error) {
	claims, err := r.issuer.ParseAccess(accessToken, now)
	if err != nil {
		return model.AuthenticatedUser{}, err
	}

	user, err := r.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, model.ErrNotFound) {
		return model.AuthenticatedUser{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.AuthenticatedUser{}, fmt.Errorf("resolve session user: %w", err)
	}
	if !user.Active {
		return model.AuthenticatedUser{}, model.ErrInvalidCredentials
	}

	return user.Identity(), nil
}
