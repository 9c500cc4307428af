// Package models holds the registry aggregates: members, employers,
// hospitals and their staff. All three root entities share the same approval
// lifecycle.
package models

import (
	"time"

	dErrors "shacore/pkg/domain-errors"
)

// Status is the shared lifecycle state of registry entities.
//
// Invariants:
//   - Entities are created pending and become active only through an
//     explicit approval that records who approved and when.
//   - Suspend and reactivate are unconditional administrative overwrites.
//   - There is no delete; inactive is the terminal state, preserving
//     historical financial and medical linkage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// Lifecycle carries the approval state embedded in every root entity.
type Lifecycle struct {
	Status       Status     `json:"status"`
	RegisteredAt time.Time  `json:"registered_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
}

func NewLifecycle(now time.Time) Lifecycle {
	return Lifecycle{Status: StatusPending, RegisteredAt: now}
}

func (l *Lifecycle) IsActive() bool { return l.Status == StatusActive }

// CanApprove checks the pending-only guard for approval.
func (l *Lifecycle) CanApprove() error {
	if l.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot approve from status %q", l.Status)
	}
	return nil
}

// ApplyApproval transitions to active and records the approval facts.
// Call CanApprove first; approver and timestamp are immutable afterwards.
func (l *Lifecycle) ApplyApproval(approver string, now time.Time) {
	l.Status = StatusActive
	l.ApprovedAt = &now
	l.ApprovedBy = approver
}

// Suspend is an unconditional administrative overwrite.
func (l *Lifecycle) Suspend() { l.Status = StatusSuspended }

// Reactivate is an unconditional administrative overwrite.
func (l *Lifecycle) Reactivate() { l.Status = StatusActive }

// Deactivate moves the entity to its terminal state.
func (l *Lifecycle) Deactivate() { l.Status = StatusInactive }
