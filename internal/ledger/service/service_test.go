package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"shacore/internal/audit"
	auditMemory "shacore/internal/audit/store/memory"
	"shacore/internal/ledger/models"
	ledgerMemory "shacore/internal/ledger/store/memory"
	registry "shacore/internal/registry/models"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/requestcontext"
)

// =============================================================================
// Contribution Ledger Test Suite
// =============================================================================
// The duplicate-period guard and the settlement state machine are exercised
// here against the memory store; the Postgres integration suite repeats the
// uniqueness cases against the real unique index.

type memberDirectory struct {
	members map[id.MemberID]*registry.Member
}

func (d *memberDirectory) GetMember(_ context.Context, memberID id.MemberID) (*registry.Member, error) {
	m, ok := d.members[memberID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	return m, nil
}

type LedgerSuite struct {
	suite.Suite
	store      *ledgerMemory.Store
	auditStore *auditMemory.Store
	directory  *memberDirectory
	service    *Service
	ctx        context.Context
	memberID   id.MemberID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = ledgerMemory.New()
	s.auditStore = auditMemory.New()
	recorder := audit.NewRecorder(s.auditStore, logger, nil)

	s.memberID = id.NewMemberID()
	s.directory = &memberDirectory{members: map[id.MemberID]*registry.Member{
		s.memberID: {
			ID:        s.memberID,
			SHANumber: "SHA047123456",
			FirstName: "Amina",
			LastName:  "Wanjiku",
			Lifecycle: registry.Lifecycle{Status: registry.StatusActive},
		},
	}}
	s.service = New(s.store, s.directory, recorder, logger)

	ctx := context.Background()
	ctx = requestcontext.WithActorID(ctx, "finance-01")
	ctx = requestcontext.WithTime(ctx, time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC))
	s.ctx = ctx
}

func (s *LedgerSuite) record(period string, method models.Method) *models.Contribution {
	c, err := s.service.RecordPayment(s.ctx, RecordPaymentInput{
		MemberID:  s.memberID,
		Type:      models.TypeIndividual,
		Method:    method,
		Amount:    decimal.NewFromInt(1375),
		Period:    period,
		Reference: "TX-" + period,
	})
	s.Require().NoError(err)
	return c
}

// =============================================================================
// RecordPayment Tests
// =============================================================================

func (s *LedgerSuite) TestRecordPayment() {
	s.Run("cash settles immediately", func() {
		c := s.record("2025-01", models.MethodCash)
		s.Equal(models.StatusCompleted, c.Status)
		s.NotNil(c.CompletedAt)
	})

	s.Run("mpesa starts pending", func() {
		c := s.record("2025-02", models.MethodMpesa)
		s.Equal(models.StatusPending, c.Status)
		s.Nil(c.CompletedAt)
	})

	s.Run("second posting for the same period conflicts", func() {
		s.record("2025-03", models.MethodCash)
		_, err := s.service.RecordPayment(s.ctx, RecordPaymentInput{
			MemberID: s.memberID,
			Type:     models.TypeIndividual,
			Method:   models.MethodBank,
			Amount:   decimal.NewFromInt(2000),
			Period:   "2025-03",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("zero amount is rejected", func() {
		_, err := s.service.RecordPayment(s.ctx, RecordPaymentInput{
			MemberID: s.memberID,
			Type:     models.TypeIndividual,
			Method:   models.MethodCash,
			Amount:   decimal.Zero,
			Period:   "2025-05",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("malformed period is rejected", func() {
		_, err := s.service.RecordPayment(s.ctx, RecordPaymentInput{
			MemberID: s.memberID,
			Type:     models.TypeIndividual,
			Method:   models.MethodCash,
			Amount:   decimal.NewFromInt(100),
			Period:   "January 2025",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("employer type without employer id is rejected", func() {
		_, err := s.service.RecordPayment(s.ctx, RecordPaymentInput{
			MemberID: s.memberID,
			Type:     models.TypeEmployer,
			Method:   models.MethodPayroll,
			Amount:   decimal.NewFromInt(100),
			Period:   "2025-06",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown member is not found", func() {
		_, err := s.service.RecordPayment(s.ctx, RecordPaymentInput{
			MemberID: id.NewMemberID(),
			Type:     models.TypeIndividual,
			Method:   models.MethodCash,
			Amount:   decimal.NewFromInt(100),
			Period:   "2025-07",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("writes a payment audit entry", func() {
		c := s.record("2025-08", models.MethodCash)
		page, err := s.auditStore.List(s.ctx, audit.Filter{
			SubjectType: "contribution", SubjectID: c.ID.String(),
		}, pagination.Params{})
		s.Require().NoError(err)
		s.Equal(1, page.Total)
		s.Equal(audit.ActionPayment, page.Items[0].Action)
	})
}

func (s *LedgerSuite) TestDuplicateGuardUnderConcurrency() {
	// Many goroutines race to post the same period; exactly one insert wins.
	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RecordPayment(s.ctx, RecordPaymentInput{
				MemberID: s.memberID,
				Type:     models.TypeIndividual,
				Method:   models.MethodCash,
				Amount:   decimal.NewFromInt(500),
				Period:   "2025-09",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			conflicted++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(attempts-1, conflicted)
}

// =============================================================================
// Settlement Tests
// =============================================================================

func (s *LedgerSuite) TestConfirmAndFail() {
	s.Run("confirm settles a pending contribution", func() {
		c := s.record("2025-01", models.MethodMpesa)
		confirmed, err := s.service.ConfirmPayment(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, confirmed.Status)
		s.NotNil(confirmed.CompletedAt)
	})

	s.Run("confirm is pending-only", func() {
		c := s.record("2025-02", models.MethodCash)
		_, err := s.service.ConfirmPayment(s.ctx, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("fail marks a pending contribution failed", func() {
		c := s.record("2025-03", models.MethodBank)
		failed, err := s.service.FailPayment(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusFailed, failed.Status)

		_, err = s.service.FailPayment(s.ctx, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *LedgerSuite) TestRefund() {
	s.Run("refunds a completed contribution", func() {
		c := s.record("2025-01", models.MethodCash)
		refunded, err := s.service.Refund(s.ctx, c.ID, "posted against wrong member")
		s.Require().NoError(err)
		s.Equal(models.StatusRefunded, refunded.Status)
	})

	s.Run("pending cannot be refunded", func() {
		c := s.record("2025-02", models.MethodMpesa)
		_, err := s.service.Refund(s.ctx, c.ID, "n/a")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// Aggregation Tests
// =============================================================================

func (s *LedgerSuite) TestTotals() {
	s.Run("member with no rows totals zero", func() {
		total, err := s.service.TotalForMember(s.ctx, id.NewMemberID())
		s.Require().NoError(err)
		s.True(total.IsZero())
	})

	s.Run("only completed contributions count", func() {
		s.record("2025-01", models.MethodCash)           // completed, 1375
		s.record("2025-02", models.MethodMpesa)          // pending
		c := s.record("2025-03", models.MethodCash)      // completed then refunded
		_, err := s.service.Refund(s.ctx, c.ID, "error") //
		s.Require().NoError(err)

		total, err := s.service.TotalForMember(s.ctx, s.memberID)
		s.Require().NoError(err)
		s.True(total.Equal(decimal.NewFromInt(1375)), "got %s", total)
	})

	s.Run("period totals cross members", func() {
		s.record("2025-04", models.MethodCash)
		total, err := s.service.TotalForPeriod(s.ctx, "2025-04")
		s.Require().NoError(err)
		s.True(total.Equal(decimal.NewFromInt(1375)))

		empty, err := s.service.TotalForPeriod(s.ctx, "2030-01")
		s.Require().NoError(err)
		s.True(empty.IsZero())
	})
}

func (s *LedgerSuite) TestHistory() {
	s.record("2025-01", models.MethodCash)
	s.record("2025-02", models.MethodCash)
	s.record("2025-03", models.MethodCash)

	page, err := s.service.ListForMember(s.ctx, s.memberID, pagination.Params{Page: 1, PerPage: 2})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Len(page.Items, 2)
	// Newest period first.
	s.Equal("2025-03", page.Items[0].Period.String())

	got, err := s.service.GetForPeriod(s.ctx, s.memberID, "2025-02")
	s.Require().NoError(err)
	s.Equal("2025-02", got.Period.String())
}
