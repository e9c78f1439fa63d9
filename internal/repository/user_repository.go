package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// UserRepo mirrors the users table.
type UserRepo struct{ base }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{base{db: db}} }

// Upsert creates the user for externalID or refreshes its email, and
// returns the stable internal id either way.
func (r *UserRepo) Upsert(ctx context.Context, externalID string, email *string, now time.Time) (int32, error) {
	q := r.ext(ctx)
	if q.DriverName() == "postgres" {
		var id int32
		err := q.QueryRowxContext(ctx,
			`INSERT INTO users (external_id, email, created_at) VALUES ($1, $2, $3)
			 ON CONFLICT (external_id) DO UPDATE SET email = COALESCE(EXCLUDED.email, users.email)
			 RETURNING id`,
			externalID, email, now.UTC()).Scan(&id)
		return id, err
	}
	// LAST_INSERT_ID(id) makes the existing row's id visible on duplicate
	res, err := q.ExecContext(ctx,
		`INSERT INTO users (external_id, email, created_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE email = COALESCE(VALUES(email), email), id = LAST_INSERT_ID(id)`,
		externalID, email, now.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int32(id), err
}
