package models

import (
	"time"

	id "shacore/pkg/domain"
)

// OTPTTL is how long a code stays verifiable after issuance.
const OTPTTL = 10 * time.Minute

// OTPDigits is the code length.
const OTPDigits = 6

type OTPPurpose string

const (
	PurposeHospitalVisit      OTPPurpose = "hospital_visit"
	PurposeMedicineCollection OTPPurpose = "medicine_collection"
)

func (p OTPPurpose) Valid() bool {
	return p == PurposeHospitalVisit || p == PurposeMedicineCollection
}

// OTP is a single-use verification code tied to one member and one purpose.
// Consumption is an atomic conditional update in the store; this struct never
// flips IsUsed itself.
type OTP struct {
	ID        id.OTPID    `json:"id"`
	MemberID  id.MemberID `json:"member_id"`
	Code      string      `json:"-"`
	Purpose   OTPPurpose  `json:"purpose"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	IsUsed    bool        `json:"is_used"`
	UsedAt    *time.Time  `json:"used_at,omitempty"`
}

func NewOTP(otpID id.OTPID, memberID id.MemberID, code string, purpose OTPPurpose, now time.Time) *OTP {
	return &OTP{
		ID:        otpID,
		MemberID:  memberID,
		Code:      code,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(OTPTTL),
	}
}

func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
