package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-org-access/internal/model"
)

// TokenRepository is the Postgres refresh ledger. Only hashes are stored.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Insert(ctx context.Context, c model.RefreshCredential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_credentials (id, user_id, token_hash, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.TokenHash, c.ExpiresAt, c.Revoked, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("store refresh credential: %w", err)
	}
	return nil
}

// Rotate consumes the presented credential with one conditional UPDATE. Row
// locking on that UPDATE serializes concurrent callers: the loser re-evaluates
// revoked = false after the winner commits and matches nothing.
func (r *TokenRepository) Rotate(ctx context.Context, presentedHash string, now time.Time, next func(ownerID string) (model.RefreshCredential, error)) (model.RefreshCredential, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RefreshCredential{}, fmt.Errorf("begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ownerID string
	err = tx.QueryRowContext(ctx,
		`UPDATE refresh_credentials AS rc
		 SET revoked = true
		 FROM users AS u
		 WHERE rc.token_hash = $1
		   AND rc.revoked = false
		   AND rc.expires_at > $2
		   AND u.id = rc.user_id
		   AND u.active = true
		 RETURNING rc.user_id`,
		presentedHash, now).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshCredential{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.RefreshCredential{}, fmt.Errorf("revoke presented credential: %w", err)
	}

	replacement, err := next(ownerID)
	if err != nil {
		return model.RefreshCredential{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_credentials (id, user_id, token_hash, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		replacement.ID, replacement.UserID, replacement.TokenHash,
		replacement.ExpiresAt, replacement.Revoked, replacement.CreatedAt); err != nil {
		return model.RefreshCredential{}, fmt.Errorf("store rotated credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.RefreshCredential{}, fmt.Errorf("commit rotation: %w", err)
	}
	return replacement, nil
}

func (r *TokenRepository) RevokeByHash(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_credentials SET revoked = true WHERE token_hash = $1 AND revoked = false`, hash)
	if err != nil {
		return fmt.Errorf("revoke refresh credential: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_credentials SET revoked = true WHERE user_id = $1 AND revoked = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh credentials: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
