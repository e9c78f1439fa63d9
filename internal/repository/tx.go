package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// TxRunner opens transactions and hands them to repositories through the
// context.  Nested calls join the outer transaction.
type TxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) *TxRunner { return &TxRunner{db: db} }

// WithTx runs fn inside a transaction.  fn's error rolls the transaction
// back; a nil return commits it.
func (r *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// base is embedded by every repository.
type base struct {
	db *sqlx.DB
}

// ext returns the transaction in ctx or the pool.
func (b base) ext(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return b.db
}

// get runs a single-row query written with ? placeholders.
func (b base) get(ctx context.Context, dest any, query string, args ...any) error {
	q := b.ext(ctx)
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (b base) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	q := b.ext(ctx)
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func (b base) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q := b.ext(ctx)
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// selectIn expands the IN (?) placeholder for a slice argument.
func (b base) selectIn(ctx context.Context, dest any, query string, args ...any) error {
	expanded, params, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return b.selectAll(ctx, dest, expanded, params...)
}

// insertID runs an INSERT and returns the generated id.  Postgres has no
// LastInsertId so the id comes back through RETURNING.
func (b base) insertID(ctx context.Context, query string, args ...any) (int32, error) {
	q := b.ext(ctx)
	if q.DriverName() == "postgres" {
		var id int32
		if err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}
