// Package models holds the contribution ledger aggregate. A contribution is
// one member's payment for one month; the (member, period) pair is unique at
// the storage level, which is what makes double-posting impossible under
// concurrency.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

type Type string

const (
	TypeIndividual Type = "individual"
	TypeEmployer   Type = "employer"
	TypeGovernment Type = "government"
)

func (t Type) Valid() bool {
	switch t {
	case TypeIndividual, TypeEmployer, TypeGovernment:
		return true
	}
	return false
}

type Method string

const (
	MethodMpesa   Method = "mpesa"
	MethodBank    Method = "bank"
	MethodCash    Method = "cash"
	MethodPayroll Method = "payroll"
)

func (m Method) Valid() bool {
	switch m {
	case MethodMpesa, MethodBank, MethodCash, MethodPayroll:
		return true
	}
	return false
}

// Settled reports whether the method completes at the point of recording.
// Cash and payroll are settled immediately; mpesa and bank confirm later.
func (m Method) Settled() bool {
	return m == MethodCash || m == MethodPayroll
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Contribution is one monthly payment.
//
// Invariants:
//   - One per (member, period); storage enforces this.
//   - Amount is positive.
//   - A completed contribution only ever moves to refunded.
type Contribution struct {
	ID         id.ContributionID `json:"id"`
	MemberID   id.MemberID       `json:"member_id"`
	EmployerID *id.EmployerID    `json:"employer_id,omitempty"`
	Type       Type              `json:"type"`
	Method     Method            `json:"method"`
	Amount     decimal.Decimal   `json:"amount"`
	Period     id.Period         `json:"period"`
	Reference  string            `json:"reference,omitempty"`
	Status     Status            `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewContribution validates and constructs a contribution. Settled methods
// start completed; the rest start pending and wait for confirmation.
func NewContribution(contributionID id.ContributionID, memberID id.MemberID, employerID *id.EmployerID, typ Type, method Method, amount decimal.Decimal, period id.Period, reference string, now time.Time) (*Contribution, error) {
	if !typ.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown contribution type %q", typ)
	}
	if !method.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown payment method %q", method)
	}
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "contribution amount must be positive")
	}
	if typ == TypeEmployer && employerID == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "employer contributions must name the employer")
	}
	c := &Contribution{
		ID:         contributionID,
		MemberID:   memberID,
		EmployerID: employerID,
		Type:       typ,
		Method:     method,
		Amount:     amount,
		Period:     period,
		Reference:  reference,
		Status:     StatusPending,
		CreatedAt:  now,
	}
	if method.Settled() {
		c.Status = StatusCompleted
		c.CompletedAt = &now
	}
	return c, nil
}

// Confirm settles a pending contribution.
func (c *Contribution) Confirm(now time.Time) error {
	if c.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot confirm contribution in status %q", c.Status)
	}
	c.Status = StatusCompleted
	c.CompletedAt = &now
	return nil
}

// Fail marks a pending contribution as failed. The (member, period) slot
// stays taken; a failed payment is corrected by refund-and-repost workflows
// outside this ledger.
func (c *Contribution) Fail() error {
	if c.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot fail contribution in status %q", c.Status)
	}
	c.Status = StatusFailed
	return nil
}

// Refund reverses a completed contribution. Completed is otherwise immutable.
func (c *Contribution) Refund() error {
	if c.Status != StatusCompleted {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot refund contribution in status %q", c.Status)
	}
	c.Status = StatusRefunded
	return nil
}

// Counted reports whether the contribution counts toward coverage totals.
func (c *Contribution) Counted() bool {
	return c.Status == StatusCompleted
}
