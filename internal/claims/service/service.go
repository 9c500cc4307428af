// Package service runs the claims engine: submission against completed
// visits, the review decision trail and settlement.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"shacore/internal/audit"
	"shacore/internal/claims/models"
	"shacore/internal/notify"
	"shacore/internal/platform/metrics"
	registry "shacore/internal/registry/models"
	visit "shacore/internal/visit/models"
	"shacore/pkg/codegen"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/platform/tx"
	"shacore/pkg/requestcontext"
)

const (
	subjectClaim = "claim"

	claimNumberDigits = 4
)

// Store is the persistence port for claims.
type Store interface {
	Create(ctx context.Context, c *models.Claim) error
	FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	NumberTaken(ctx context.Context, claimNumber string) (bool, error)
	Update(ctx context.Context, c *models.Claim) error
	List(ctx context.Context, filter models.ClaimFilter, params pagination.Params) (pagination.Page[models.Claim], error)
}

// VisitDirectory is the slice of the visit pathway the claims engine needs.
type VisitDirectory interface {
	GetVisit(ctx context.Context, visitID id.VisitID) (*visit.Visit, error)
}

// MemberDirectory resolves members for claim notifications.
type MemberDirectory interface {
	GetMember(ctx context.Context, memberID id.MemberID) (*registry.Member, error)
}

// Notifier decouples the engine from the notification sink.
type Notifier interface {
	Enqueue(ctx context.Context, recipient string, typ notify.Type, method notify.Method, contact, title, message string) (*notify.Notification, error)
}

// Service orchestrates claim lifecycles.
type Service struct {
	claims   Store
	visits   VisitDirectory
	members  MemberDirectory
	recorder *audit.Recorder
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tx       tx.Runner
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(claims Store, visits VisitDirectory, members MemberDirectory, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		claims:   claims,
		visits:   visits,
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

type SubmitInput struct {
	VisitID       id.VisitID
	Type          models.Type
	AmountClaimed decimal.Decimal
	Description   string
}

// Submit files a claim against a completed visit. Member and hospital are
// taken from the visit, not from the caller.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Claim, error) {
	v, err := s.visits.GetVisit(ctx, in.VisitID)
	if err != nil {
		return nil, err
	}
	if v.Status != visit.VisitCompleted {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "cannot claim against a %s visit", v.Status)
	}

	now := requestcontext.Now(ctx)
	c, err := models.NewClaim(id.NewClaimID(), v.ID, v.MemberID, v.HospitalID, in.Type, in.AmountClaimed, in.Description, now)
	if err != nil {
		return nil, err
	}

	prefix := models.ClaimNumberPrefix + now.Format("20060102")
	number, err := codegen.Generate(ctx, prefix, claimNumberDigits, s.claims.NumberTaken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate claim number")
	}
	c.ClaimNumber = number

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.claims.Create(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectClaim, c.ID.String(),
			fmt.Sprintf("submitted %s claim %s for %s on visit %s", c.Type, c.ClaimNumber, c.AmountClaimed, v.VisitNumber))
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ClaimsSubmitted.Inc()
	}
	return c, nil
}

// StartReview moves a submitted claim into review.
func (s *Service) StartReview(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := c.StartReview(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.claims.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
		}
		_, err := s.recorder.Record(ctx, audit.ActionStatusChange, subjectClaim, c.ID.String(),
			fmt.Sprintf("claim %s moved under review", c.ClaimNumber))
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Approve records an approval decision and notifies the member.
func (s *Service) Approve(ctx context.Context, claimID id.ClaimID, amount decimal.Decimal) (*models.Claim, error) {
	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	reviewer := requestcontext.ActorID(ctx)
	if err := c.Approve(amount, reviewer, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.claims.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
		}
		_, err := s.recorder.Record(ctx, audit.ActionApproval, subjectClaim, c.ID.String(),
			fmt.Sprintf("approved claim %s for %s", c.ClaimNumber, amount))
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ClaimsReviewed.WithLabelValues("approved").Inc()
	}
	s.notifyMember(ctx, c, "Claim approved",
		fmt.Sprintf("Your claim %s has been approved for KES %s.", c.ClaimNumber, amount))
	return c, nil
}

// Reject records a rejection decision with its reason and notifies the member.
func (s *Service) Reject(ctx context.Context, claimID id.ClaimID, reason string) (*models.Claim, error) {
	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	reviewer := requestcontext.ActorID(ctx)
	if err := c.Reject(reason, reviewer, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.claims.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
		}
		_, err := s.recorder.Record(ctx, audit.ActionRejection, subjectClaim, c.ID.String(),
			fmt.Sprintf("rejected claim %s: %s", c.ClaimNumber, c.RejectionReason))
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ClaimsReviewed.WithLabelValues("rejected").Inc()
	}
	s.notifyMember(ctx, c, "Claim rejected",
		fmt.Sprintf("Your claim %s was rejected: %s", c.ClaimNumber, c.RejectionReason))
	return c, nil
}

// MarkPaid settles an approved claim.
func (s *Service) MarkPaid(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := c.MarkPaid(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.claims.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
		}
		_, err := s.recorder.Record(ctx, audit.ActionPayment, subjectClaim, c.ID.String(),
			fmt.Sprintf("paid claim %s (%s)", c.ClaimNumber, c.AmountApproved))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyMember(ctx, c, "Claim paid",
		fmt.Sprintf("Claim %s has been paid out (KES %s).", c.ClaimNumber, c.AmountApproved))
	return c, nil
}

// BulkApprove approves every claim in the batch that is still reviewable,
// each at its full claimed amount. Claims that cannot take the transition are
// skipped, not failed; the return value is how many actually moved.
func (s *Service) BulkApprove(ctx context.Context, claimIDs []id.ClaimID) (int, error) {
	return s.bulkReview(ctx, claimIDs, "approved", func(c *models.Claim, reviewer string) error {
		return c.Approve(c.AmountClaimed, reviewer, requestcontext.Now(ctx))
	})
}

// BulkReject rejects every reviewable claim in the batch with a shared
// reason, skipping the rest.
func (s *Service) BulkReject(ctx context.Context, claimIDs []id.ClaimID, reason string) (int, error) {
	return s.bulkReview(ctx, claimIDs, "rejected", func(c *models.Claim, reviewer string) error {
		return c.Reject(reason, reviewer, requestcontext.Now(ctx))
	})
}

func (s *Service) bulkReview(ctx context.Context, claimIDs []id.ClaimID, decision string, apply func(*models.Claim, string) error) (int, error) {
	reviewer := requestcontext.ActorID(ctx)
	transitioned := 0
	for _, claimID := range claimIDs {
		c, err := s.claims.FindByID(ctx, claimID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return transitioned, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
		}
		if !c.Reviewable() {
			continue
		}
		if err := apply(c, reviewer); err != nil {
			// A reviewable claim can still refuse the decision, e.g. a bulk
			// rejection with an empty reason. That is a caller error, not a
			// skip.
			if dErrors.HasCode(err, dErrors.CodeValidation) {
				return transitioned, err
			}
			continue
		}

		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.claims.Update(ctx, c); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
			}
			_, err := s.recorder.Record(ctx, audit.ActionStatusChange, subjectClaim, c.ID.String(),
				fmt.Sprintf("claim %s %s in bulk review", c.ClaimNumber, decision))
			return err
		})
		if err != nil {
			return transitioned, err
		}
		transitioned++
		if s.metrics != nil {
			s.metrics.ClaimsReviewed.WithLabelValues(decision).Inc()
		}
	}
	return transitioned, nil
}

// Get loads one claim.
func (s *Service) Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	return s.getClaim(ctx, claimID)
}

// List returns a filtered page of claims.
func (s *Service) List(ctx context.Context, filter models.ClaimFilter, params pagination.Params) (pagination.Page[models.Claim], error) {
	return s.claims.List(ctx, filter, params)
}

func (s *Service) getClaim(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	c, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	return c, nil
}

func (s *Service) notifyMember(ctx context.Context, c *models.Claim, title, message string) {
	if s.notifier == nil {
		return
	}
	member, err := s.members.GetMember(ctx, c.MemberID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve member for claim notification",
			"claim_id", c.ID.String(), "error", err)
		return
	}
	if _, err := s.notifier.Enqueue(ctx, member.ID.String(), notify.TypeClaimUpdate, notify.MethodSMS,
		member.PhoneNumber, title, message); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue claim notification",
			"claim_id", c.ID.String(), "error", err)
	}
}
