package stats

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

// =============================================================================
// Dashboard Aggregation Test Suite
// =============================================================================

type stubStore struct {
	members       map[string]int64
	employers     map[string]int64
	hospitals     map[string]int64
	visits        map[string]int64
	claims        map[string]ClaimAggregate
	total         decimal.Decimal
	byPeriod      map[id.Period]decimal.Decimal
	byType        map[string]decimal.Decimal
	lowStock      int64
	expiredBefore time.Time
	expiredStock  int64
}

func (s *stubStore) MemberCountsByStatus(context.Context) (map[string]int64, error) {
	return s.members, nil
}
func (s *stubStore) EmployerCountsByStatus(context.Context) (map[string]int64, error) {
	return s.employers, nil
}
func (s *stubStore) HospitalCountsByStatus(context.Context) (map[string]int64, error) {
	return s.hospitals, nil
}
func (s *stubStore) VisitCountsByStatus(context.Context) (map[string]int64, error) {
	return s.visits, nil
}
func (s *stubStore) ClaimAggregatesByStatus(context.Context) (map[string]ClaimAggregate, error) {
	return s.claims, nil
}
func (s *stubStore) ContributionTotal(context.Context) (decimal.Decimal, error) {
	return s.total, nil
}
func (s *stubStore) ContributionTotalForPeriod(_ context.Context, p id.Period) (decimal.Decimal, error) {
	return s.byPeriod[p], nil
}
func (s *stubStore) ContributionTotalsByType(context.Context) (map[string]decimal.Decimal, error) {
	return s.byType, nil
}
func (s *stubStore) LowStockCount(context.Context) (int64, error) {
	return s.lowStock, nil
}
func (s *stubStore) ExpiredStockCount(_ context.Context, now time.Time) (int64, error) {
	if now.After(s.expiredBefore) {
		return s.expiredStock, nil
	}
	return 0, nil
}

type StatsSuite struct {
	suite.Suite
	store   *stubStore
	service *Service
	ctx     context.Context
}

func TestStatsSuite(t *testing.T) {
	suite.Run(t, new(StatsSuite))
}

func (s *StatsSuite) SetupTest() {
	march, _ := id.ParsePeriod("2025-03")
	s.store = &stubStore{
		members:   map[string]int64{"active": 120, "pending": 30, "suspended": 5},
		employers: map[string]int64{"active": 12},
		hospitals: map[string]int64{"active": 8, "pending": 2},
		visits:    map[string]int64{"completed": 40, "cancelled": 3},
		claims: map[string]ClaimAggregate{
			"approved": {Count: 10, Sum: decimal.NewFromInt(52000)},
			"rejected": {Count: 4, Sum: decimal.NewFromInt(9000)},
		},
		total:        decimal.NewFromInt(987650),
		byPeriod:     map[id.Period]decimal.Decimal{march: decimal.NewFromInt(41000)},
		byType:       map[string]decimal.Decimal{"employer": decimal.NewFromInt(700000), "individual": decimal.NewFromInt(287650)},
		lowStock:     6,
		expiredStock: 2,
	}
	s.service = New(s.store)
	s.ctx = context.Background()
}

func (s *StatsSuite) TestDashboard() {
	d, err := s.service.Dashboard(s.ctx)
	s.Require().NoError(err)

	s.Equal(int64(155), d.Members.Total)
	s.Equal(int64(120), d.Members.ByStatus["active"])
	s.Equal(int64(12), d.Employers.Total)
	s.Equal(int64(10), d.Hospitals.Total)
	s.Equal(int64(43), d.Visits.Total)

	s.Equal(int64(10), d.Claims["approved"].Count)
	s.True(d.Claims["approved"].Sum.Equal(decimal.NewFromInt(52000)))
	s.True(d.ContributionsTotal.Equal(decimal.NewFromInt(987650)))
	s.Equal(int64(6), d.LowStockBatches)
	s.Equal(int64(2), d.ExpiredStockBatches)
}

func (s *StatsSuite) TestFinancialReport() {
	report, err := s.service.FinancialReport(s.ctx, "2025-03")
	s.Require().NoError(err)
	s.Equal("2025-03", report.Period.String())
	s.True(report.PeriodTotal.Equal(decimal.NewFromInt(41000)))
	s.True(report.GrandTotal.Equal(decimal.NewFromInt(987650)))
	s.True(report.ByType["employer"].Equal(decimal.NewFromInt(700000)))

	s.Run("empty period sums to zero", func() {
		report, err := s.service.FinancialReport(s.ctx, "2031-12")
		s.Require().NoError(err)
		s.True(report.PeriodTotal.IsZero())
	})

	s.Run("malformed period is a validation error", func() {
		_, err := s.service.FinancialReport(s.ctx, "March 2025")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
