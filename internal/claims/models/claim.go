// Package models holds the claims aggregate. A claim is money a hospital
// asks the fund for after a completed visit; the review trail on it is
// immutable once written.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

// ClaimNumberPrefix starts every claim number; the submission date and four
// random digits follow.
const ClaimNumberPrefix = "CLM"

type Type string

const (
	TypeConsultation Type = "consultation"
	TypeTreatment    Type = "treatment"
	TypeMedicine     Type = "medicine"
	TypeProcedure    Type = "procedure"
	TypeAdmission    Type = "admission"
	TypeEmergency    Type = "emergency"
)

func (t Type) Valid() bool {
	switch t {
	case TypeConsultation, TypeTreatment, TypeMedicine, TypeProcedure, TypeAdmission, TypeEmergency:
		return true
	}
	return false
}

type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusPaid        Status = "paid"
)

// Claim tracks a reimbursement request from submission to payment.
//
// Invariants:
//   - AmountApproved is set exactly once, on approval, and never exceeds
//     AmountClaimed.
//   - ReviewedBy/ReviewedAt are written by the approve or reject transition
//     and immutable afterwards.
//   - Paid is reachable from approved only; rejected and paid are terminal.
type Claim struct {
	ID          id.ClaimID    `json:"id"`
	ClaimNumber string        `json:"claim_number"`
	VisitID     id.VisitID    `json:"visit_id"`
	MemberID    id.MemberID   `json:"member_id"`
	HospitalID  id.HospitalID `json:"hospital_id"`
	Type        Type          `json:"type"`
	Description string        `json:"description,omitempty"`

	AmountClaimed  decimal.Decimal  `json:"amount_claimed"`
	AmountApproved *decimal.Decimal `json:"amount_approved,omitempty"`

	Status          Status     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

// NewClaim validates and constructs a submitted claim. The claim number is
// assigned by the service after a collision check.
func NewClaim(claimID id.ClaimID, visitID id.VisitID, memberID id.MemberID, hospitalID id.HospitalID, typ Type, amountClaimed decimal.Decimal, description string, now time.Time) (*Claim, error) {
	if !typ.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown claim type %q", typ)
	}
	if !amountClaimed.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "claimed amount must be positive")
	}
	return &Claim{
		ID:            claimID,
		VisitID:       visitID,
		MemberID:      memberID,
		HospitalID:    hospitalID,
		Type:          typ,
		Description:   strings.TrimSpace(description),
		AmountClaimed: amountClaimed,
		Status:        StatusSubmitted,
		SubmittedAt:   now,
	}, nil
}

// Reviewable reports whether a review decision can still be taken.
func (c *Claim) Reviewable() bool {
	return c.Status == StatusSubmitted || c.Status == StatusUnderReview
}

// StartReview moves a submitted claim into review.
func (c *Claim) StartReview() error {
	if c.Status != StatusSubmitted {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot start review from status %q", c.Status)
	}
	c.Status = StatusUnderReview
	return nil
}

// Approve records the decision. The approved amount is capped by the claimed
// amount; paying out more than was asked for is never valid.
func (c *Claim) Approve(amount decimal.Decimal, reviewer string, now time.Time) error {
	if !c.Reviewable() {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot approve from status %q", c.Status)
	}
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "approved amount must be positive")
	}
	if amount.GreaterThan(c.AmountClaimed) {
		return dErrors.Newf(dErrors.CodeExcessApproval,
			"approved amount %s exceeds claimed amount %s", amount, c.AmountClaimed)
	}
	c.Status = StatusApproved
	c.AmountApproved = &amount
	c.ReviewedBy = reviewer
	c.ReviewedAt = &now
	return nil
}

// Reject records the decision with a mandatory reason.
func (c *Claim) Reject(reason, reviewer string, now time.Time) error {
	if !c.Reviewable() {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot reject from status %q", c.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	c.Status = StatusRejected
	c.RejectionReason = reason
	c.ReviewedBy = reviewer
	c.ReviewedAt = &now
	return nil
}

// MarkPaid settles an approved claim.
func (c *Claim) MarkPaid(now time.Time) error {
	if c.Status != StatusApproved {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot pay from status %q", c.Status)
	}
	c.Status = StatusPaid
	c.PaidAt = &now
	return nil
}

// ClaimFilter narrows claim listings.
type ClaimFilter struct {
	MemberID   id.MemberID
	HospitalID id.HospitalID
	Status     Status
	Type       Type
}

func (f ClaimFilter) Matches(c *Claim) bool {
	if !f.MemberID.IsNil() && c.MemberID != f.MemberID {
		return false
	}
	if !f.HospitalID.IsNil() && c.HospitalID != f.HospitalID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	return true
}
