package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go-org-access/internal/model"
)

const grantColumns = `id, user_id, resource_type, resource_id, permission, department_id, created_at`

type GrantRepository struct {
	db *sql.DB
}

func NewGrantRepository(db *sql.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

func scanGrant(row rowScanner) (model.AccessGrant, error) {
	var g model.AccessGrant
	var dept sql.NullString
	if err := row.Scan(&g.ID, &g.UserID, &g.ResourceType, &g.ResourceID, &g.Permission, &dept, &g.CreatedAt); err != nil {
		return model.AccessGrant{}, err
	}
	g.DepartmentID = fromNull(dept)
	return g, nil
}

func (r *GrantRepository) Create(ctx context.Context, g model.AccessGrant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_grants (`+grantColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.UserID, g.ResourceType, g.ResourceID, g.Permission, nullable(g.DepartmentID), g.CreatedAt)
	if err != nil {
		return fmt.Errorf("create access grant: %w", err)
	}
	return nil
}

func (r *GrantRepository) FindByID(ctx context.Context, id string) (model.AccessGrant, error) {
	g, err := scanGrant(r.db.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccessGrant{}, fmt.Errorf("access grant %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.AccessGrant{}, fmt.Errorf("find access grant: %w", err)
	}
	return g, nil
}

func (r *GrantRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete access grant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("access grant %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *GrantRepository) List(ctx context.Context, filter model.GrantFilter) ([]model.AccessGrant, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}

	query := `SELECT ` + grantColumns + ` FROM access_grants`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	grants := make([]model.AccessGrant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// HasGrant expresses model.AccessGrant.Satisfies in SQL.
func (r *GrantRepository) HasGrant(ctx context.Context, q model.GrantQuery) (bool, error) {
	perms := model.ImplyingPermissions(q.Permission)
	args := []any{q.UserID, q.ResourceType, model.GrantWildcard, q.ResourceID, q.DepartmentID}
	placeholders := make([]string, 0, len(perms))
	for _, p := range perms {
		args = append(args, p)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := `SELECT EXISTS (
		SELECT 1 FROM access_grants
		WHERE user_id = $1
		  AND (resource_type = $2 OR resource_type = $3)
		  AND (resource_id = $3 OR resource_id = $4)
		  AND (department_id IS NULL OR department_id = $5)
		  AND permission IN (` + strings.Join(placeholders, ", ") + `)
	)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check access grant: %w", err)
	}
	return exists, nil
}
