// Package postgres persists contributions. The unique index on
// (member_id, period) is the arbiter for double-posting; a violation surfaces
// as sentinel.ErrConflict no matter which of two racing inserts loses.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"shacore/internal/ledger/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	txcontext "shacore/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const contributionColumns = `
	id, member_id, employer_id, type, method, amount, period, reference,
	status, created_at, completed_at
`

func (s *Store) Create(ctx context.Context, c *models.Contribution) error {
	const query = `
		INSERT INTO contributions (` + contributionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var employerID any
	if c.EmployerID != nil {
		employerID = uuid.UUID(*c.EmployerID)
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.MemberID), employerID, string(c.Type), string(c.Method),
		c.Amount.String(), c.Period.Date(), c.Reference,
		string(c.Status), c.CreatedAt, c.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	const query = `SELECT ` + contributionColumns + ` FROM contributions WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(contributionID)))
}

func (s *Store) FindByMemberAndPeriod(ctx context.Context, memberID id.MemberID, period id.Period) (*models.Contribution, error) {
	const query = `SELECT ` + contributionColumns + ` FROM contributions WHERE member_id = $1 AND period = $2`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(memberID), period.Date()))
}

func (s *Store) Update(ctx context.Context, c *models.Contribution) error {
	const query = `UPDATE contributions SET status = $2, completed_at = $3 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(c.ID), string(c.Status), c.CompletedAt)
	if err != nil {
		return fmt.Errorf("update contribution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contribution rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) ListByMember(ctx context.Context, memberID id.MemberID, params pagination.Params) (pagination.Page[models.Contribution], error) {
	params = params.Normalize()
	var page pagination.Page[models.Contribution]
	ex := s.execer(ctx)

	if err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contributions WHERE member_id = $1`, uuid.UUID(memberID),
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count contributions: %w", err)
	}

	const query = `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE member_id = $1
		ORDER BY period DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := ex.QueryContext(ctx, query, uuid.UUID(memberID), params.PerPage, params.Offset())
	if err != nil {
		return page, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *c)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

func (s *Store) SumByMember(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0) FROM contributions
		WHERE member_id = $1 AND status = 'completed'
	`
	return s.sum(ctx, query, uuid.UUID(memberID))
}

func (s *Store) SumByPeriod(ctx context.Context, period id.Period) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0) FROM contributions
		WHERE period = $1 AND status = 'completed'
	`
	return s.sum(ctx, query, period.Date())
}

func (s *Store) sum(ctx context.Context, query string, arg any) (decimal.Decimal, error) {
	var raw string
	if err := s.execer(ctx).QueryRowContext(ctx, query, arg).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("sum contributions: %w", err)
	}
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse contribution sum: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(row *sql.Row) (*models.Contribution, error) {
	c, err := scanContribution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanContribution(row rowScanner) (*models.Contribution, error) {
	var c models.Contribution
	var cid, memberID uuid.UUID
	var employerID uuid.NullUUID
	var typ, method, status, amount string
	var periodDate sql.NullTime
	if err := row.Scan(&cid, &memberID, &employerID, &typ, &method, &amount,
		&periodDate, &c.Reference, &status, &c.CreatedAt, &c.CompletedAt); err != nil {
		return nil, err
	}
	c.ID = id.ContributionID(cid)
	c.MemberID = id.MemberID(memberID)
	if employerID.Valid {
		eid := id.EmployerID(employerID.UUID)
		c.EmployerID = &eid
	}
	c.Type = models.Type(typ)
	c.Method = models.Method(method)
	c.Status = models.Status(status)
	if periodDate.Valid {
		c.Period = id.PeriodOf(periodDate.Time)
	}
	var err error
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse contribution amount: %w", err)
	}
	return &c, nil
}
