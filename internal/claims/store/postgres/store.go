// Package postgres is the claims store backed by the claims table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"shacore/internal/claims/models"
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

const claimColumns = `
	id, claim_number, visit_id, member_id, hospital_id, type, description,
	amount_claimed, amount_approved, status, rejection_reason,
	submitted_at, reviewed_at, reviewed_by, paid_at
`

func (s *Store) Create(ctx context.Context, c *models.Claim) error {
	const query = `
		INSERT INTO claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.ClaimNumber, uuid.UUID(c.VisitID), uuid.UUID(c.MemberID), uuid.UUID(c.HospitalID),
		string(c.Type), c.Description, c.AmountClaimed.String(), approvedArg(c),
		string(c.Status), c.RejectionReason, c.SubmittedAt, c.ReviewedAt, c.ReviewedBy, c.PaidAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	const query = `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	c, err := scanClaim(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(claimID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) NumberTaken(ctx context.Context, claimNumber string) (bool, error) {
	var taken bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM claims WHERE claim_number = $1)`, claimNumber,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check claim number: %w", err)
	}
	return taken, nil
}

func (s *Store) Update(ctx context.Context, c *models.Claim) error {
	const query = `
		UPDATE claims SET
			amount_approved = $2, status = $3, rejection_reason = $4,
			reviewed_at = $5, reviewed_by = $6, paid_at = $7
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), approvedArg(c), string(c.Status), c.RejectionReason,
		c.ReviewedAt, c.ReviewedBy, c.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter models.ClaimFilter, params pagination.Params) (pagination.Page[models.Claim], error) {
	params = params.Normalize()
	var page pagination.Page[models.Claim]
	ex := s.execer(ctx)

	var clauses []string
	var args []any
	if !filter.MemberID.IsNil() {
		args = append(args, uuid.UUID(filter.MemberID))
		clauses = append(clauses, fmt.Sprintf("member_id = $%d", len(args)))
	}
	if !filter.HospitalID.IsNil() {
		args = append(args, uuid.UUID(filter.HospitalID))
		clauses = append(clauses, fmt.Sprintf("hospital_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	if err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims`+where, args...,
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count claims: %w", err)
	}

	query := `SELECT ` + claimColumns + ` FROM claims` + where +
		fmt.Sprintf(` ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, params.Offset())

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *c)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

func approvedArg(c *models.Claim) any {
	if c.AmountApproved == nil {
		return nil
	}
	return c.AmountApproved.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var c models.Claim
	var cid, visitID, memberID, hospitalID uuid.UUID
	var typ, status, claimed string
	var approved sql.NullString
	if err := row.Scan(&cid, &c.ClaimNumber, &visitID, &memberID, &hospitalID, &typ, &c.Description,
		&claimed, &approved, &status, &c.RejectionReason,
		&c.SubmittedAt, &c.ReviewedAt, &c.ReviewedBy, &c.PaidAt); err != nil {
		return nil, err
	}
	c.ID = id.ClaimID(cid)
	c.VisitID = id.VisitID(visitID)
	c.MemberID = id.MemberID(memberID)
	c.HospitalID = id.HospitalID(hospitalID)
	c.Type = models.Type(typ)
	c.Status = models.Status(status)

	var err error
	if c.AmountClaimed, err = decimal.NewFromString(claimed); err != nil {
		return nil, fmt.Errorf("parse claimed amount: %w", err)
	}
	if approved.Valid {
		amount, err := decimal.NewFromString(approved.String)
		if err != nil {
			return nil, fmt.Errorf("parse approved amount: %w", err)
		}
		c.AmountApproved = &amount
	}
	return &c, nil
}
