package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go-org-access/internal/model"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ActivityRepository persists the activity log. Entries carry identifiers
// only; callers never pass secrets in Detail.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Append(ctx context.Context, entry model.ActivityEntry) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO activity_log (actor_id, action, detail, occurred_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		nullable(entry.ActorID), entry.Action, entry.Detail, entry.OccurredAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("log activity: %w", err)
	}
	return id, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultActivityLimit
	}
	if limit > maxActivityLimit {
		return maxActivityLimit
	}
	return limit
}

func (r *ActivityRepository) List(ctx context.Context, query model.ActivityQuery) ([]model.ActivityEntry, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if actorID := strings.TrimSpace(query.ActorID); actorID != "" {
		args = append(args, actorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if action := strings.TrimSpace(query.Action); action != "" {
		args = append(args, action)
		where = append(where, fmt.Sprintf("lower(action) = lower($%d)", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(query.Limit))

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, actor_id, action, detail, occurred_at
		 FROM activity_log %s
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $%d`, whereClause, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ActivityEntry, 0)
	for rows.Next() {
		var e model.ActivityEntry
		var actor sql.NullString
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.ActorID = fromNull(actor)
		e.OccurredAt = e.OccurredAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
