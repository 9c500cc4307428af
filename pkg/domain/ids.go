// Package domain defines the typed identifiers and small value types shared
// across feature packages. Wrapping uuid.UUID in distinct types keeps member,
// hospital and claim identifiers from being mixed up at compile time.
package domain

import "github.com/google/uuid"

type (
	MemberID       uuid.UUID
	EmployerID     uuid.UUID
	HospitalID     uuid.UUID
	StaffID        uuid.UUID
	MedicineID     uuid.UUID
	StockID        uuid.UUID
	ContributionID uuid.UUID
	VisitID        uuid.UUID
	OTPID          uuid.UUID
	PrescriptionID uuid.UUID
	ClaimID        uuid.UUID
	NotificationID uuid.UUID
)

func NewMemberID() MemberID             { return MemberID(uuid.New()) }
func NewEmployerID() EmployerID         { return EmployerID(uuid.New()) }
func NewHospitalID() HospitalID         { return HospitalID(uuid.New()) }
func NewStaffID() StaffID               { return StaffID(uuid.New()) }
func NewMedicineID() MedicineID         { return MedicineID(uuid.New()) }
func NewStockID() StockID               { return StockID(uuid.New()) }
func NewContributionID() ContributionID { return ContributionID(uuid.New()) }
func NewVisitID() VisitID               { return VisitID(uuid.New()) }
func NewOTPID() OTPID                   { return OTPID(uuid.New()) }
func NewPrescriptionID() PrescriptionID { return PrescriptionID(uuid.New()) }
func NewClaimID() ClaimID               { return ClaimID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

func (id MemberID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EmployerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id HospitalID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id StaffID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id MedicineID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id StockID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ContributionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VisitID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id OTPID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id PrescriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id MemberID) String() string       { return uuid.UUID(id).String() }
func (id EmployerID) String() string     { return uuid.UUID(id).String() }
func (id HospitalID) String() string     { return uuid.UUID(id).String() }
func (id StaffID) String() string        { return uuid.UUID(id).String() }
func (id MedicineID) String() string     { return uuid.UUID(id).String() }
func (id StockID) String() string        { return uuid.UUID(id).String() }
func (id ContributionID) String() string { return uuid.UUID(id).String() }
func (id VisitID) String() string        { return uuid.UUID(id).String() }
func (id OTPID) String() string          { return uuid.UUID(id).String() }
func (id PrescriptionID) String() string { return uuid.UUID(id).String() }
func (id ClaimID) String() string        { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
