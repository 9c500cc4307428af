// Package service is the contribution ledger. It owns the payment lifecycle
// and the coverage aggregates the dashboard reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"shacore/internal/audit"
	"shacore/internal/ledger/models"
	"shacore/internal/platform/metrics"
	registry "shacore/internal/registry/models"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/platform/tx"
	"shacore/pkg/requestcontext"
)

const subjectContribution = "contribution"

// Store is the persistence port for contributions. Create returns
// sentinel.ErrConflict when the (member, period) slot is already taken; that
// check and the insert are atomic.
type Store interface {
	Create(ctx context.Context, c *models.Contribution) error
	FindByID(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error)
	FindByMemberAndPeriod(ctx context.Context, memberID id.MemberID, period id.Period) (*models.Contribution, error)
	Update(ctx context.Context, c *models.Contribution) error
	ListByMember(ctx context.Context, memberID id.MemberID, params pagination.Params) (pagination.Page[models.Contribution], error)
	SumByMember(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error)
	SumByPeriod(ctx context.Context, period id.Period) (decimal.Decimal, error)
}

// MemberDirectory resolves members so the ledger can refuse payments for
// unknown or inactive members. The registry service satisfies it.
type MemberDirectory interface {
	GetMember(ctx context.Context, memberID id.MemberID) (*registry.Member, error)
}

type Service struct {
	store    Store
	members  MemberDirectory
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tx       tx.Runner
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(store Store, members MemberDirectory, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		members:  members,
		recorder: recorder,
		logger:   logger,
		tx:       tx.NopRunner{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RecordPaymentInput struct {
	MemberID   id.MemberID
	EmployerID *id.EmployerID
	Type       models.Type
	Method     models.Method
	Amount     decimal.Decimal
	Period     string
	Reference  string
}

// RecordPayment posts one contribution for one month. The second posting for
// the same (member, period) conflicts regardless of who races whom; the store
// insert is the arbiter, not a read-then-write check here.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.Contribution, error) {
	period, err := id.ParsePeriod(in.Period)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "period must be YYYY-MM")
	}
	member, err := s.members.GetMember(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}
	if member.Status == registry.StatusInactive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "cannot record contributions for an inactive member")
	}

	c, err := models.NewContribution(id.NewContributionID(), in.MemberID, in.EmployerID, in.Type, in.Method, in.Amount, period, in.Reference, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				if s.metrics != nil {
					s.metrics.DuplicateContribution.Inc()
				}
				return dErrors.Newf(dErrors.CodeConflict, "contribution for %s already recorded for member %s", period, member.SHANumber)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record contribution")
		}
		_, err := s.recorder.Record(ctx, audit.ActionPayment, subjectContribution, c.ID.String(),
			fmt.Sprintf("recorded %s %s contribution of %s for %s", c.Method, c.Type, c.Amount, period))
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ContributionsRecorded.Inc()
	}
	s.logger.InfoContext(ctx, "contribution recorded",
		"contribution_id", c.ID.String(), "member_id", c.MemberID.String(),
		"period", period.String(), "status", string(c.Status))
	return c, nil
}

// ConfirmPayment settles a pending mpesa/bank contribution once the gateway
// reports success.
func (s *Service) ConfirmPayment(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	return s.transition(ctx, contributionID, audit.ActionPayment, "confirmed contribution", func(c *models.Contribution) error {
		return c.Confirm(requestcontext.Now(ctx))
	})
}

// FailPayment records a gateway failure for a pending contribution.
func (s *Service) FailPayment(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	return s.transition(ctx, contributionID, audit.ActionStatusChange, "failed contribution", func(c *models.Contribution) error {
		return c.Fail()
	})
}

// Refund reverses a completed contribution.
func (s *Service) Refund(ctx context.Context, contributionID id.ContributionID, reason string) (*models.Contribution, error) {
	return s.transition(ctx, contributionID, audit.ActionRefund, "refunded contribution: "+reason, func(c *models.Contribution) error {
		return c.Refund()
	})
}

func (s *Service) transition(ctx context.Context, contributionID id.ContributionID, action audit.ActionKind, description string, apply func(*models.Contribution) error) (*models.Contribution, error) {
	c, err := s.Get(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contribution")
		}
		_, err := s.recorder.Record(ctx, action, subjectContribution, c.ID.String(), description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads one contribution.
func (s *Service) Get(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	c, err := s.store.FindByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contribution not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contribution")
	}
	return c, nil
}

// GetForPeriod loads a member's contribution for one month.
func (s *Service) GetForPeriod(ctx context.Context, memberID id.MemberID, periodStr string) (*models.Contribution, error) {
	period, err := id.ParsePeriod(periodStr)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "period must be YYYY-MM")
	}
	c, err := s.store.FindByMemberAndPeriod(ctx, memberID, period)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no contribution for %s", period)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contribution")
	}
	return c, nil
}

// ListForMember returns a member's contribution history, newest period first.
func (s *Service) ListForMember(ctx context.Context, memberID id.MemberID, params pagination.Params) (pagination.Page[models.Contribution], error) {
	return s.store.ListByMember(ctx, memberID, params)
}

// TotalForMember sums a member's completed contributions. A member with no
// rows totals zero.
func (s *Service) TotalForMember(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error) {
	total, err := s.store.SumByMember(ctx, memberID)
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum contributions")
	}
	return total, nil
}

// TotalForPeriod sums all completed contributions in one month.
func (s *Service) TotalForPeriod(ctx context.Context, periodStr string) (decimal.Decimal, error) {
	period, err := id.ParsePeriod(periodStr)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "period must be YYYY-MM")
	}
	total, err := s.store.SumByPeriod(ctx, period)
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum contributions")
	}
	return total, nil
}
