package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-org-access/internal/model"
)

type DepartmentRepository struct {
	db *sql.DB
}

func NewDepartmentRepository(db *sql.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (model.Department, error) {
	var d model.Department
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM departments WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Department{}, fmt.Errorf("department %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Department{}, fmt.Errorf("find department: %w", err)
	}
	return d, nil
}

func (r *DepartmentRepository) Create(ctx context.Context, d model.Department) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO departments (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Name, d.Description, d.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("department name %q: %w", d.Name, model.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

func (r *DepartmentRepository) Update(ctx context.Context, d model.Department) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE departments SET name = $2, description = $3 WHERE id = $1`,
		d.ID, d.Name, d.Description)
	if isUniqueViolation(err) {
		return fmt.Errorf("department name %q: %w", d.Name, model.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("department %s: %w", d.ID, model.ErrNotFound)
	}
	return nil
}

func (r *DepartmentRepository) List(ctx context.Context) ([]model.Department, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	depts := make([]model.Department, 0)
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}
