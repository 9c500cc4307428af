package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"shacore/internal/audit"
	auditMemory "shacore/internal/audit/store/memory"
	"shacore/internal/claims/models"
	claimsMemory "shacore/internal/claims/store/memory"
	registry "shacore/internal/registry/models"
	visit "shacore/internal/visit/models"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/requestcontext"
)

// =============================================================================
// Claims Engine Test Suite
// =============================================================================

type fakeVisits struct {
	byID map[id.VisitID]*visit.Visit
}

func (f *fakeVisits) GetVisit(_ context.Context, visitID id.VisitID) (*visit.Visit, error) {
	v, ok := f.byID[visitID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "visit not found")
	}
	return v, nil
}

type fakeMembers struct {
	byID map[id.MemberID]*registry.Member
}

func (f *fakeMembers) GetMember(_ context.Context, memberID id.MemberID) (*registry.Member, error) {
	m, ok := f.byID[memberID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	return m, nil
}

type ClaimsSuite struct {
	suite.Suite
	store      *claimsMemory.Store
	auditStore *auditMemory.Store
	visits     *fakeVisits
	service    *Service
	ctx        context.Context
	now        time.Time
	memberID   id.MemberID
	hospitalID id.HospitalID
	visitID    id.VisitID
}

func TestClaimsSuite(t *testing.T) {
	suite.Run(t, new(ClaimsSuite))
}

func (s *ClaimsSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = claimsMemory.New()
	s.auditStore = auditMemory.New()

	s.memberID = id.NewMemberID()
	s.hospitalID = id.NewHospitalID()
	s.visitID = id.NewVisitID()
	s.visits = &fakeVisits{byID: map[id.VisitID]*visit.Visit{
		s.visitID: {
			ID:          s.visitID,
			VisitNumber: "VIS202506030001",
			MemberID:    s.memberID,
			HospitalID:  s.hospitalID,
			Type:        visit.VisitConsultation,
			Status:      visit.VisitCompleted,
		},
	}}
	members := &fakeMembers{byID: map[id.MemberID]*registry.Member{
		s.memberID: {
			ID:          s.memberID,
			SHANumber:   "SHA047654321",
			FirstName:   "Otieno",
			LastName:    "Odhiambo",
			PhoneNumber: "+254711000111",
		},
	}}

	recorder := audit.NewRecorder(s.auditStore, logger, nil)
	s.service = New(s.store, s.visits, members, recorder, logger)

	s.now = time.Date(2025, time.June, 3, 14, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithActorID(context.Background(), "reviewer-07")
	s.ctx = requestcontext.WithTime(ctx, s.now)
}

func (s *ClaimsSuite) submit(amount int64) *models.Claim {
	c, err := s.service.Submit(s.ctx, SubmitInput{
		VisitID:       s.visitID,
		Type:          models.TypeConsultation,
		AmountClaimed: decimal.NewFromInt(amount),
		Description:   "outpatient consultation",
	})
	s.Require().NoError(err)
	return c
}

// =============================================================================
// Submission Tests
// =============================================================================

func (s *ClaimsSuite) TestSubmit() {
	s.Run("completed visit yields a numbered submitted claim", func() {
		c := s.submit(3500)
		s.True(strings.HasPrefix(c.ClaimNumber, "CLM20250603"))
		s.Len(c.ClaimNumber, len("CLM20250603")+4)
		s.Equal(models.StatusSubmitted, c.Status)
		s.Equal(s.memberID, c.MemberID)
		s.Equal(s.hospitalID, c.HospitalID)
		s.Nil(c.AmountApproved)
	})

	s.Run("open visit cannot be claimed against", func() {
		openID := id.NewVisitID()
		s.visits.byID[openID] = &visit.Visit{
			ID: openID, MemberID: s.memberID, HospitalID: s.hospitalID,
			Status: visit.VisitInConsultation,
		}
		_, err := s.service.Submit(s.ctx, SubmitInput{
			VisitID:       openID,
			Type:          models.TypeConsultation,
			AmountClaimed: decimal.NewFromInt(1000),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("non-positive amount is rejected", func() {
		_, err := s.service.Submit(s.ctx, SubmitInput{
			VisitID:       s.visitID,
			Type:          models.TypeTreatment,
			AmountClaimed: decimal.Zero,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown claim type is rejected", func() {
		_, err := s.service.Submit(s.ctx, SubmitInput{
			VisitID:       s.visitID,
			Type:          "transport",
			AmountClaimed: decimal.NewFromInt(200),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Review Decision Tests
// =============================================================================

func (s *ClaimsSuite) TestReviewFlow() {
	s.Run("approve records reviewer, amount and time", func() {
		c := s.submit(3500)
		_, err := s.service.StartReview(s.ctx, c.ID)
		s.Require().NoError(err)

		approved, err := s.service.Approve(s.ctx, c.ID, decimal.NewFromInt(3000))
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, approved.Status)
		s.Require().NotNil(approved.AmountApproved)
		s.True(approved.AmountApproved.Equal(decimal.NewFromInt(3000)))
		s.Equal("reviewer-07", approved.ReviewedBy)
		s.Require().NotNil(approved.ReviewedAt)
		s.Equal(s.now, *approved.ReviewedAt)
	})

	s.Run("approve straight from submitted is allowed", func() {
		c := s.submit(800)
		approved, err := s.service.Approve(s.ctx, c.ID, decimal.NewFromInt(800))
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, approved.Status)
	})

	s.Run("approving above the claimed amount is excess_approval", func() {
		c := s.submit(1000)
		_, err := s.service.Approve(s.ctx, c.ID, decimal.NewFromInt(1001))
		s.True(dErrors.HasCode(err, dErrors.CodeExcessApproval))

		got, gerr := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(gerr)
		s.Equal(models.StatusSubmitted, got.Status, "failed approval leaves the claim untouched")
	})

	s.Run("reject requires a reason", func() {
		c := s.submit(500)
		_, err := s.service.Reject(s.ctx, c.ID, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		rejected, err := s.service.Reject(s.ctx, c.ID, "duplicate invoice")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, rejected.Status)
		s.Equal("duplicate invoice", rejected.RejectionReason)
	})

	s.Run("decisions are final", func() {
		c := s.submit(500)
		_, err := s.service.Reject(s.ctx, c.ID, "not covered")
		s.Require().NoError(err)

		_, err = s.service.Approve(s.ctx, c.ID, decimal.NewFromInt(500))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		_, err = s.service.StartReview(s.ctx, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ClaimsSuite) TestMarkPaid() {
	c := s.submit(2000)
	_, err := s.service.MarkPaid(s.ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "cannot pay an unreviewed claim")

	_, err = s.service.Approve(s.ctx, c.ID, decimal.NewFromInt(2000))
	s.Require().NoError(err)

	paid, err := s.service.MarkPaid(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPaid, paid.Status)
	s.Require().NotNil(paid.PaidAt)

	_, err = s.service.MarkPaid(s.ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "paying twice is rejected")
}

// =============================================================================
// Bulk Review Tests
// =============================================================================

func (s *ClaimsSuite) TestBulkApprove() {
	a := s.submit(100)
	b := s.submit(200)
	rejectedClaim := s.submit(300)
	_, err := s.service.Reject(s.ctx, rejectedClaim.ID, "fraud flag")
	s.Require().NoError(err)

	count, err := s.service.BulkApprove(s.ctx, []id.ClaimID{a.ID, b.ID, rejectedClaim.ID, id.NewClaimID()})
	s.Require().NoError(err)
	s.Equal(2, count, "terminal and unknown claims are skipped, not failed")

	got, err := s.service.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Require().NotNil(got.AmountApproved)
	s.True(got.AmountApproved.Equal(got.AmountClaimed), "bulk approval pays the full claimed amount")

	got, err = s.service.Get(s.ctx, rejectedClaim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, got.Status)
}

func (s *ClaimsSuite) TestBulkReject() {
	a := s.submit(100)
	paidClaim := s.submit(200)
	_, err := s.service.Approve(s.ctx, paidClaim.ID, decimal.NewFromInt(200))
	s.Require().NoError(err)
	_, err = s.service.MarkPaid(s.ctx, paidClaim.ID)
	s.Require().NoError(err)

	count, err := s.service.BulkReject(s.ctx, []id.ClaimID{a.ID, paidClaim.ID}, "batch audit failed")
	s.Require().NoError(err)
	s.Equal(1, count)

	got, err := s.service.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, got.Status)
	s.Equal("batch audit failed", got.RejectionReason)

	s.Run("empty reason fails the whole batch", func() {
		b := s.submit(400)
		_, err := s.service.BulkReject(s.ctx, []id.ClaimID{b.ID}, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Audit and Listing Tests
// =============================================================================

func (s *ClaimsSuite) TestAuditTrail() {
	c := s.submit(900)
	_, err := s.service.Approve(s.ctx, c.ID, decimal.NewFromInt(900))
	s.Require().NoError(err)

	page, err := s.auditStore.List(s.ctx, audit.Filter{SubjectType: "claim", SubjectID: c.ID.String()}, pagination.Params{})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 2)
	actions := []audit.ActionKind{page.Items[0].Action, page.Items[1].Action}
	s.Contains(actions, audit.ActionCreate)
	s.Contains(actions, audit.ActionApproval)
	for _, entry := range page.Items {
		s.Equal("reviewer-07", entry.Actor)
	}
}

func (s *ClaimsSuite) TestList() {
	a := s.submit(100)
	b := s.submit(200)
	_, err := s.service.Approve(s.ctx, b.ID, decimal.NewFromInt(150))
	s.Require().NoError(err)

	page, err := s.service.List(s.ctx, models.ClaimFilter{Status: models.StatusSubmitted}, pagination.Params{})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.Equal(a.ID, page.Items[0].ID)

	page, err = s.service.List(s.ctx, models.ClaimFilter{HospitalID: s.hospitalID}, pagination.Params{})
	s.Require().NoError(err)
	s.Len(page.Items, 2)
}
