// Package postgres computes the dashboard aggregates with GROUP BY queries
// over the operational tables.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shacore/internal/stats"
	id "shacore/pkg/domain"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) MemberCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return s.countsByStatus(ctx, "members")
}

func (s *Store) EmployerCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return s.countsByStatus(ctx, "employers")
}

func (s *Store) HospitalCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return s.countsByStatus(ctx, "hospitals")
}

func (s *Store) VisitCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return s.countsByStatus(ctx, "hospital_visits")
}

func (s *Store) countsByStatus(ctx context.Context, table string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, table))
	if err != nil {
		return nil, fmt.Errorf("count %s by status: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ClaimAggregatesByStatus sums the claimed amount per status, except for
// approved and paid claims where the approved amount is what the fund owes.
func (s *Store) ClaimAggregatesByStatus(ctx context.Context) (map[string]stats.ClaimAggregate, error) {
	const query = `
		SELECT status, COUNT(*),
			COALESCE(SUM(CASE WHEN status IN ('approved', 'paid')
				THEN amount_approved ELSE amount_claimed END), 0)
		FROM claims
		GROUP BY status
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregate claims: %w", err)
	}
	defer rows.Close()

	aggregates := make(map[string]stats.ClaimAggregate)
	for rows.Next() {
		var status, sum string
		var agg stats.ClaimAggregate
		if err := rows.Scan(&status, &agg.Count, &sum); err != nil {
			return nil, err
		}
		if agg.Sum, err = decimal.NewFromString(sum); err != nil {
			return nil, fmt.Errorf("parse claim sum: %w", err)
		}
		aggregates[status] = agg
	}
	return aggregates, rows.Err()
}

func (s *Store) ContributionTotal(ctx context.Context) (decimal.Decimal, error) {
	return s.sum(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM contributions WHERE status = 'completed'`)
}

func (s *Store) ContributionTotalForPeriod(ctx context.Context, period id.Period) (decimal.Decimal, error) {
	return s.sum(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM contributions WHERE status = 'completed' AND period = $1`,
		period.Date())
}

func (s *Store) ContributionTotalsByType(ctx context.Context) (map[string]decimal.Decimal, error) {
	const query = `
		SELECT type, COALESCE(SUM(amount), 0)
		FROM contributions
		WHERE status = 'completed'
		GROUP BY type
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sum contributions by type: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var typ, sum string
		if err := rows.Scan(&typ, &sum); err != nil {
			return nil, err
		}
		if totals[typ], err = decimal.NewFromString(sum); err != nil {
			return nil, fmt.Errorf("parse contribution sum: %w", err)
		}
	}
	return totals, rows.Err()
}

func (s *Store) LowStockCount(ctx context.Context) (int64, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM pharmacy_stock WHERE current_stock <= minimum_level`)
}

func (s *Store) ExpiredStockCount(ctx context.Context, now time.Time) (int64, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM pharmacy_stock WHERE expiry_date < $1`, now)
}

func (s *Store) sum(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("sum query: %w", err)
	}
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse sum: %w", err)
	}
	return total, nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return n, nil
}
