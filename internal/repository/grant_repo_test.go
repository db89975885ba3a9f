package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"go-org-access/internal/model"
)

func TestGrantHasGrantExpandsImpliedPermissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewGrantRepository(db)

	mock.ExpectQuery(`SELECT EXISTS .+ permission IN \(\$6, \$7, \$8\)`).
		WithArgs("u1", "tasks", model.GrantWildcard, "t1", "hr", "view", "manage", "edit").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS .+ permission IN \(\$6, \$7\)`).
		WithArgs("u1", "tasks", model.GrantWildcard, "t1", "hr", "delete", "manage").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.HasGrant(context.Background(), model.GrantQuery{
		UserID: "u1", ResourceType: "tasks", ResourceID: "t1", Permission: model.PermissionView, DepartmentID: "hr",
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.HasGrant(context.Background(), model.GrantQuery{
		UserID: "u1", ResourceType: "tasks", ResourceID: "t1", Permission: model.PermissionDelete, DepartmentID: "hr",
	})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantCreateListDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewGrantRepository(db)

	grant := model.AccessGrant{ID: "g1", UserID: "u1", ResourceType: "tasks", ResourceID: model.GrantWildcard, Permission: model.PermissionEdit, CreatedAt: repoNow}

	mock.ExpectExec(`INSERT INTO access_grants`).
		WithArgs("g1", "u1", "tasks", model.GrantWildcard, model.PermissionEdit, nil, repoNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM access_grants WHERE user_id = \$1 ORDER BY id`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "resource_type", "resource_id", "permission", "department_id", "created_at"}).
			AddRow("g1", "u1", "tasks", "all", "edit", nil, repoNow))
	mock.ExpectExec(`DELETE FROM access_grants WHERE id = \$1`).
		WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM access_grants WHERE id = \$1`).
		WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Create(context.Background(), grant))

	grants, err := repo.List(context.Background(), model.GrantFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, []model.AccessGrant{grant}, grants)

	require.NoError(t, repo.Delete(context.Background(), "g1"))
	require.ErrorIs(t, repo.Delete(context.Background(), "g1"), model.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
