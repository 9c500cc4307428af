// Package audit is the append-only record of every state-changing action in
// the platform. Entries are written in the same transaction as the mutation
// they describe; compliance reporting depends on neither existing without the
// other.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind classifies what happened. Kept coarse on purpose: the
// description carries the specifics.
type ActionKind string

const (
	ActionCreate          ActionKind = "create"
	ActionUpdate          ActionKind = "update"
	ActionApproval        ActionKind = "approval"
	ActionRejection       ActionKind = "rejection"
	ActionSuspension      ActionKind = "suspension"
	ActionReactivation    ActionKind = "reactivation"
	ActionPayment         ActionKind = "payment"
	ActionRefund          ActionKind = "refund"
	ActionOTPGeneration   ActionKind = "otp_generation"
	ActionOTPVerification ActionKind = "otp_verification"
	ActionDispense        ActionKind = "dispense"
	ActionStatusChange    ActionKind = "status_change"
)

// Entry is one audit fact. Never updated or deleted after creation; the
// stores expose no mutation beyond Append.
type Entry struct {
	ID          uuid.UUID  `json:"id"`
	Actor       string     `json:"actor"`
	Action      ActionKind `json:"action"`
	SubjectType string     `json:"subject_type"`
	SubjectID   string     `json:"subject_id"`
	Description string     `json:"description"`
	IPAddress   string     `json:"ip_address,omitempty"`
	RequestID   string     `json:"request_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Filter narrows audit queries. Zero values match everything.
type Filter struct {
	Actor       string
	Action      ActionKind
	SubjectType string
	SubjectID   string
}

// Matches reports whether an entry satisfies the filter. Memory stores and
// tests share this; SQL stores express it as WHERE clauses.
func (f Filter) Matches(e Entry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.SubjectType != "" && e.SubjectType != f.SubjectType {
		return false
	}
	if f.SubjectID != "" && e.SubjectID != f.SubjectID {
		return false
	}
	return true
}
