//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"shacore/internal/ledger/models"
	ledgerPostgres "shacore/internal/ledger/store/postgres"
	platformPostgres "shacore/internal/platform/postgres"
	id "shacore/pkg/domain"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledgerPostgres.Store
	memberID id.MemberID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(platformPostgres.Migrate(context.Background(), s.postgres.DB))
	s.store = ledgerPostgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "contributions", "members"))

	// Contributions reference members, so seed one.
	s.memberID = id.NewMemberID()
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO members (id, sha_number, first_name, last_name, national_id,
			date_of_birth, gender, phone_number, county_code, status, registered_at)
		VALUES ($1, $2, 'Amina', 'Wanjiku', $3, '1990-06-15', 'F', '+254700111222', '047', 'active', NOW())
	`, uuid.UUID(s.memberID), "SHA047"+uuid.NewString()[:6], uuid.NewString()[:8])
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newContribution(period id.Period) *models.Contribution {
	now := time.Now().UTC()
	return &models.Contribution{
		ID:          id.NewContributionID(),
		MemberID:    s.memberID,
		Type:        models.TypeIndividual,
		Method:      models.MethodCash,
		Amount:      decimal.NewFromInt(1375),
		Period:      period,
		Status:      models.StatusCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}
}

// TestConcurrentPeriodUniqueness verifies the unique index arbitrates racing
// inserts for the same (member, period): exactly one wins.
func (s *PostgresStoreSuite) TestConcurrentPeriodUniqueness() {
	ctx := context.Background()
	period := id.Period{Year: 2025, Month: time.March}
	const goroutines = 25

	var wg sync.WaitGroup
	var succeeded, conflicted atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, s.newContribution(period))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load(), "exactly one insert should win")
	s.Equal(int32(goroutines-1), conflicted.Load())
}

func (s *PostgresStoreSuite) TestRoundTripAndSums() {
	ctx := context.Background()

	jan := s.newContribution(id.Period{Year: 2025, Month: time.January})
	feb := s.newContribution(id.Period{Year: 2025, Month: time.February})
	feb.Status = models.StatusPending
	feb.CompletedAt = nil
	s.Require().NoError(s.store.Create(ctx, jan))
	s.Require().NoError(s.store.Create(ctx, feb))

	got, err := s.store.FindByMemberAndPeriod(ctx, s.memberID, jan.Period)
	s.Require().NoError(err)
	s.Equal(jan.ID, got.ID)
	s.True(got.Amount.Equal(jan.Amount))
	s.Equal(jan.Period, got.Period)

	// Pending rows are excluded from sums.
	total, err := s.store.SumByMember(ctx, s.memberID)
	s.Require().NoError(err)
	s.True(total.Equal(decimal.NewFromInt(1375)), "got %s", total)

	empty, err := s.store.SumByPeriod(ctx, id.Period{Year: 2030, Month: time.January})
	s.Require().NoError(err)
	s.True(empty.IsZero())
}

func (s *PostgresStoreSuite) TestUpdateTransitions() {
	ctx := context.Background()
	c := s.newContribution(id.Period{Year: 2025, Month: time.May})
	c.Status = models.StatusPending
	c.CompletedAt = nil
	s.Require().NoError(s.store.Create(ctx, c))

	now := time.Now().UTC()
	c.Status = models.StatusCompleted
	c.CompletedAt = &now
	s.Require().NoError(s.store.Update(ctx, c))

	got, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, got.Status)
	s.NotNil(got.CompletedAt)

	missing := s.newContribution(id.Period{Year: 2026, Month: time.June})
	s.ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
}
