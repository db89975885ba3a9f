package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go-org-access/internal/model"
)

// ErrLastAdmin rejects a write that would leave the organization without an
// active admin.
var ErrLastAdmin = fmt.Errorf("%w: cannot remove the last active admin", model.ErrConflict)

const userColumns = `id, full_name, email, password_hash, role, department_id, active, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var dept sql.NullString
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role,
		&dept, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, err
	}
	u.DepartmentID = fromNull(dept)
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.FullName, u.Email, u.PasswordHash, u.Role,
		nullable(u.DepartmentID), u.Active, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("email already registered: %w", model.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *UserRepository) Update(ctx context.Context, u model.User) error {
	return updateUser(ctx, r.db, u)
}

// UpdateRetainingAdmin locks every active admin row before counting, so two
// admins demoting each other serialize and the second sees one admin left.
func (r *UserRepository) UpdateRetainingAdmin(ctx context.Context, u model.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM users WHERE role = $1 AND active = true ORDER BY id FOR UPDATE`, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("lock active admins: %w", err)
	}
	remaining := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan admin id: %w", err)
		}
		if id != u.ID {
			remaining++
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock active admins: %w", err)
	}

	if u.Role == model.RoleAdmin && u.Active {
		remaining++
	}
	if remaining == 0 {
		return ErrLastAdmin
	}

	if err := updateUser(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admin update: %w", err)
	}
	return nil
}

func updateUser(ctx context.Context, db execer, u model.User) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users
		 SET full_name = $2, password_hash = $3, role = $4, department_id = $5, active = $6, updated_at = $7
		 WHERE id = $1`,
		u.ID, u.FullName, u.PasswordHash, u.Role, nullable(u.DepartmentID), u.Active, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "active = true")
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY lower(email)"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
