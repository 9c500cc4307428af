// Package postgres backs the visit pathway. The OTP consume and the stock
// decrement are single conditional UPDATE statements; the WHERE clause is the
// concurrency guard.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"shacore/pkg/platform/sentinel"
	txcontext "shacore/pkg/platform/tx"
)

type base struct {
	db *sql.DB
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (b base) execer(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return b.db
}

func translateConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
