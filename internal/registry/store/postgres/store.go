// Package postgres backs the registry with relational tables. Uniqueness of
// national IDs, SHA numbers and registration numbers is enforced by database
// constraints; violations surface as sentinel.ErrConflict.
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

const uniqueViolation = "23505"

func translateConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
