package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"go-org-access/internal/model"
)

var repoNow = time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*TokenRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTokenRepository(db), mock
}

func replacementFor(ownerID string) (model.RefreshCredential, error) {
	return model.RefreshCredential{
		ID:        "01JREPLACEMENT",
		UserID:    ownerID,
		TokenHash: "new-hash",
		ExpiresAt: repoNow.Add(time.Hour),
		CreatedAt: repoNow,
	}, nil
}

func TestTokenRotateCommitsRevokeAndInsert(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_credentials AS rc\s+SET revoked = true`).
		WithArgs("old-hash", repoNow).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectExec(`INSERT INTO refresh_credentials`).
		WithArgs("01JREPLACEMENT", "user-1", "new-hash", repoNow.Add(time.Hour), false, repoNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	next, err := repo.Rotate(context.Background(), "old-hash", repoNow, replacementFor)
	require.NoError(t, err)
	require.Equal(t, "user-1", next.UserID)
	require.Equal(t, "new-hash", next.TokenHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRotateNoMatchingRow(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_credentials AS rc`).
		WithArgs("stale-hash", repoNow).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	called := false
	_, err := repo.Rotate(context.Background(), "stale-hash", repoNow, func(string) (model.RefreshCredential, error) {
		called = true
		return model.RefreshCredential{}, nil
	})
	require.ErrorIs(t, err, model.ErrInvalidToken)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRotateRollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_credentials AS rc`).
		WithArgs("old-hash", repoNow).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectExec(`INSERT INTO refresh_credentials`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Rotate(context.Background(), "old-hash", repoNow, replacementFor)
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrInvalidToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRevokeByHashIsIdempotent(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE refresh_credentials SET revoked = true WHERE token_hash = \$1 AND revoked = false`).
		WithArgs("unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.RevokeByHash(context.Background(), "unknown"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRevokeAllForUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE refresh_credentials SET revoked = true WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenExpiredCredentialIsKeptAndRefused(t *testing.T) {
	repo, mock := newMock(t)

	cred, _ := replacementFor("user-1")
	cred.ExpiresAt = repoNow.Add(-time.Minute)
	mock.ExpectExec(`INSERT INTO refresh_credentials`).
		WithArgs(cred.ID, cred.UserID, cred.TokenHash, cred.ExpiresAt, false, cred.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_credentials AS rc[\s\S]+rc.expires_at > \$2`).
		WithArgs(cred.TokenHash, repoNow).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	require.NoError(t, repo.Insert(context.Background(), cred))
	_, err := repo.Rotate(context.Background(), cred.TokenHash, repoNow, replacementFor)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	require.NoError(t, mock.ExpectationsWereMet())
}
