// Package models holds the hospital visit aggregate and everything gated on
// it: OTPs, prescriptions and pharmacy stock.
package models

import (
	"time"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

// VisitNumberPrefix starts every visit number; the visit date (YYYYMMDD) and
// four random digits follow.
const VisitNumberPrefix = "VIS"

type VisitType string

const (
	VisitConsultation VisitType = "consultation"
	VisitEmergency    VisitType = "emergency"
	VisitReferral     VisitType = "referral"
	VisitFollowUp     VisitType = "follow_up"
	VisitAdmission    VisitType = "admission"
)

func (t VisitType) Valid() bool {
	switch t {
	case VisitConsultation, VisitEmergency, VisitReferral, VisitFollowUp, VisitAdmission:
		return true
	}
	return false
}

type VisitStatus string

const (
	VisitScheduled      VisitStatus = "scheduled"
	VisitCheckedIn      VisitStatus = "checked_in"
	VisitInConsultation VisitStatus = "in_consultation"
	VisitCompleted      VisitStatus = "completed"
	VisitCancelled      VisitStatus = "cancelled"
)

// Visit is one member's attendance at one hospital.
//
// Invariants:
//   - The status only moves forward: scheduled → checked_in →
//     in_consultation → completed. Cancel is allowed from any non-terminal
//     state.
//   - Check-in happens only after OTP verification; the service enforces it.
//   - CheckedOutAt never precedes CheckedInAt.
type Visit struct {
	ID               id.VisitID    `json:"id"`
	VisitNumber      string        `json:"visit_number"`
	MemberID         id.MemberID   `json:"member_id"`
	HospitalID       id.HospitalID `json:"hospital_id"`
	AttendingStaffID *id.StaffID   `json:"attending_staff_id,omitempty"`
	Type             VisitType     `json:"type"`
	Status           VisitStatus   `json:"status"`

	ScheduledAt    time.Time  `json:"scheduled_at"`
	CheckedInAt    *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt   *time.Time `json:"checked_out_at,omitempty"`
	ChiefComplaint string     `json:"chief_complaint,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Diagnosis      string     `json:"diagnosis,omitempty"`
}

func NewVisit(visitID id.VisitID, memberID id.MemberID, hospitalID id.HospitalID, typ VisitType, scheduledAt time.Time, chiefComplaint string) (*Visit, error) {
	if !typ.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown visit type %q", typ)
	}
	return &Visit{
		ID:             visitID,
		MemberID:       memberID,
		HospitalID:     hospitalID,
		Type:           typ,
		Status:         VisitScheduled,
		ScheduledAt:    scheduledAt,
		ChiefComplaint: chiefComplaint,
	}, nil
}

// Terminal reports whether the visit can no longer change state.
func (v *Visit) Terminal() bool {
	return v.Status == VisitCompleted || v.Status == VisitCancelled
}

// CheckIn records arrival. The caller has already verified the member's OTP.
func (v *Visit) CheckIn(now time.Time) error {
	if v.Status != VisitScheduled {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot check in from status %q", v.Status)
	}
	v.Status = VisitCheckedIn
	v.CheckedInAt = &now
	return nil
}

// StartConsultation moves a checked-in visit to the consultation room.
func (v *Visit) StartConsultation(staffID id.StaffID) error {
	if v.Status != VisitCheckedIn {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot start consultation from status %q", v.Status)
	}
	v.Status = VisitInConsultation
	v.AttendingStaffID = &staffID
	return nil
}

// Complete closes the visit. Check-out must not precede check-in.
func (v *Visit) Complete(checkOut time.Time, diagnosis, notes string) error {
	if v.Status != VisitInConsultation {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot complete from status %q", v.Status)
	}
	if v.CheckedInAt != nil && checkOut.Before(*v.CheckedInAt) {
		return dErrors.New(dErrors.CodeInvariantViolation, "check-out time precedes check-in time")
	}
	v.Status = VisitCompleted
	v.CheckedOutAt = &checkOut
	v.Diagnosis = diagnosis
	v.Notes = notes
	return nil
}

// Cancel aborts any non-terminal visit.
func (v *Visit) Cancel(reason string) error {
	if v.Terminal() {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot cancel a %s visit", v.Status)
	}
	v.Status = VisitCancelled
	if reason != "" {
		if v.Notes != "" {
			v.Notes += "; "
		}
		v.Notes += "cancelled: " + reason
	}
	return nil
}

// VisitFilter narrows visit listings.
type VisitFilter struct {
	MemberID   id.MemberID
	HospitalID id.HospitalID
	Status     VisitStatus
}

func (f VisitFilter) Matches(v *Visit) bool {
	if !f.MemberID.IsNil() && v.MemberID != f.MemberID {
		return false
	}
	if !f.HospitalID.IsNil() && v.HospitalID != f.HospitalID {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	return true
}
