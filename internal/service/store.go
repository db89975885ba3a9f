package service

import (
	"context"
	"time"

	"go-org-access/internal/model"
)

// Persistence contracts. Lookups of missing rows return model.ErrNotFound and
// unique violations return model.ErrConflict.

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, user model.User) error
	Update(ctx context.Context, user model.User) error
	List(ctx context.Context, filter model.UserFilter) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	// UpdateRetainingAdmin is Update that fails with model.ErrConflict when the
	// write would leave no active admin. The check and the write are atomic.
	UpdateRetainingAdmin(ctx context.Context, user model.User) error
}

type DepartmentStore interface {
	FindByID(ctx context.Context, id string) (model.Department, error)
	Create(ctx context.Context, dept model.Department) error
	Update(ctx context.Context, dept model.Department) error
	List(ctx context.Context) ([]model.Department, error)
}

// CredentialLedger rows are never deleted. Revocation flips the flag and
// expired rows stay behind for audit.
type CredentialLedger interface {
	Insert(ctx context.Context, cred model.RefreshCredential) error
	// Rotate revokes the credential with presentedHash and inserts the record
	// returned by next as one atomic step. It succeeds only when the credential
	// is unrevoked, unexpired at now, and owned by an active user; otherwise it
	// returns model.ErrInvalidToken and changes nothing. next builds the
	// replacement once the owner is known; it runs inside the critical section
	// and must not block.
	Rotate(ctx context.Context, presentedHash string, now time.Time, next func(ownerID string) (model.RefreshCredential, error)) (model.RefreshCredential, error)
	// RevokeByHash is idempotent: unknown or already revoked hashes are not an
	// error.
	RevokeByHash(ctx context.Context, hash string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

type GrantStore interface {
	Create(ctx context.Context, grant model.AccessGrant) error
	FindByID(ctx context.Context, id string) (model.AccessGrant, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter model.GrantFilter) ([]model.AccessGrant, error)
	HasGrant(ctx context.Context, query model.GrantQuery) (bool, error)
}

type ActivityStore interface {
	Append(ctx context.Context, entry model.ActivityEntry) (int64, error)
	List(ctx context.Context, query model.ActivityQuery) ([]model.ActivityEntry, error)
}
