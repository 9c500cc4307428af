package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/requestcontext"
)

// Store is the read port the aggregates are computed through.
type Store interface {
	MemberCountsByStatus(ctx context.Context) (map[string]int64, error)
	EmployerCountsByStatus(ctx context.Context) (map[string]int64, error)
	HospitalCountsByStatus(ctx context.Context) (map[string]int64, error)
	VisitCountsByStatus(ctx context.Context) (map[string]int64, error)
	ClaimAggregatesByStatus(ctx context.Context) (map[string]ClaimAggregate, error)
	ContributionTotal(ctx context.Context) (decimal.Decimal, error)
	ContributionTotalForPeriod(ctx context.Context, period id.Period) (decimal.Decimal, error)
	ContributionTotalsByType(ctx context.Context) (map[string]decimal.Decimal, error)
	LowStockCount(ctx context.Context) (int64, error)
	ExpiredStockCount(ctx context.Context, now time.Time) (int64, error)
}

// Service composes the dashboard and financial views.
type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// Dashboard builds the admin snapshot in one pass over the read queries.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}

	var err error
	if d.Members, err = s.statusCounts(ctx, s.store.MemberCountsByStatus); err != nil {
		return nil, err
	}
	if d.Employers, err = s.statusCounts(ctx, s.store.EmployerCountsByStatus); err != nil {
		return nil, err
	}
	if d.Hospitals, err = s.statusCounts(ctx, s.store.HospitalCountsByStatus); err != nil {
		return nil, err
	}
	if d.Visits, err = s.statusCounts(ctx, s.store.VisitCountsByStatus); err != nil {
		return nil, err
	}
	if d.Claims, err = s.store.ClaimAggregatesByStatus(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate claims")
	}
	if d.ContributionsTotal, err = s.store.ContributionTotal(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum contributions")
	}
	if d.LowStockBatches, err = s.store.LowStockCount(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count low stock")
	}
	if d.ExpiredStockBatches, err = s.store.ExpiredStockCount(ctx, requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count expired stock")
	}
	return d, nil
}

// FinancialReport sums contribution income for one period alongside the
// running totals.
func (s *Service) FinancialReport(ctx context.Context, periodStr string) (*FinancialReport, error) {
	period, err := id.ParsePeriod(periodStr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "period must look like 2006-01")
	}

	report := &FinancialReport{Period: period}
	if report.PeriodTotal, err = s.store.ContributionTotalForPeriod(ctx, period); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum period contributions")
	}
	if report.GrandTotal, err = s.store.ContributionTotal(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum contributions")
	}
	if report.ByType, err = s.store.ContributionTotalsByType(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum by type")
	}
	return report, nil
}

func (s *Service) statusCounts(ctx context.Context, query func(context.Context) (map[string]int64, error)) (StatusCounts, error) {
	byStatus, err := query(ctx)
	if err != nil {
		return StatusCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count by status")
	}
	counts := StatusCounts{ByStatus: byStatus}
	for _, n := range byStatus {
		counts.Total += n
	}
	return counts, nil
}
