package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"go-org-access/internal/model"
)

var userRowColumns = []string{"id", "full_name", "email", "password_hash", "role", "department_id", "active", "created_at", "updated_at"}

func TestUserFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("ana@example.org").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "Ana", "Ana@example.org", "hash", "manager", "finance", true, repoNow, repoNow))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE lower\(email\)`).
		WithArgs("nobody@example.org").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	u, err := repo.FindByEmail(context.Background(), "  ana@example.org ")
	require.NoError(t, err)
	require.Equal(t, model.RoleManager, u.Role)
	require.Equal(t, "finance", u.DepartmentID)
	require.True(t, u.Active)

	_, err = repo.FindByEmail(context.Background(), "nobody@example.org")
	require.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByIDWithoutDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u2", "Bo", "bo@example.org", "hash", "collaborator", nil, false, repoNow, repoNow))

	u, err := NewUserRepository(db).FindByID(context.Background(), "u2")
	require.NoError(t, err)
	require.Empty(t, u.DepartmentID)
	require.False(t, u.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateMapsDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	user := model.User{ID: "u3", Email: "c@example.org", PasswordHash: "h", Role: model.RoleStaff, Active: true, CreatedAt: repoNow, UpdatedAt: repoNow}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("u3", "", "c@example.org", "h", model.RoleStaff, nil, true, repoNow, repoNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	require.NoError(t, repo.Create(context.Background(), user))
	require.ErrorIs(t, repo.Create(context.Background(), user), model.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE users\s+SET full_name`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewUserRepository(db).Update(context.Background(), model.User{ID: "ghost", Role: model.RoleStaff})
	require.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListBuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE department_id = \$1 AND role = \$2 AND active = true ORDER BY lower\(email\)`).
		WithArgs("finance", model.RoleStaff).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "Ana", "ana@example.org", "h", "staff", "finance", true, repoNow, repoNow).
			AddRow("u4", "Di", "di@example.org", "h", "staff", "finance", true, repoNow, repoNow))

	users, err := NewUserRepository(db).List(context.Background(), model.UserFilter{
		DepartmentID: "finance",
		Role:         model.RoleStaff,
		ActiveOnly:   true,
	})
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateRetainingAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	demoted := model.User{ID: "a1", FullName: "Root", PasswordHash: "h", Role: model.RoleManager, Active: true, UpdatedAt: repoNow}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users WHERE role = \$1 AND active = true ORDER BY id FOR UPDATE`).
		WithArgs(model.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))
	mock.ExpectExec(`UPDATE users\s+SET full_name = \$2`).
		WithArgs("a1", "Root", "h", model.RoleManager, nil, true, repoNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateRetainingAdmin(context.Background(), demoted))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateRetainingAdminRefusesLastAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users WHERE role = \$1 AND active = true ORDER BY id FOR UPDATE`).
		WithArgs(model.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectRollback()

	err = repo.UpdateRetainingAdmin(context.Background(), model.User{ID: "a1", Role: model.RoleAdmin, Active: false, UpdatedAt: repoNow})
	require.ErrorIs(t, err, model.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
