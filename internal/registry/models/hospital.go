package models

import (
	"strings"
	"time"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

type HospitalType string

const (
	HospitalPublic     HospitalType = "public"
	HospitalPrivate    HospitalType = "private"
	HospitalFaithBased HospitalType = "faith_based"
	HospitalNGO        HospitalType = "ngo"
)

func (t HospitalType) Valid() bool {
	switch t {
	case HospitalPublic, HospitalPrivate, HospitalFaithBased, HospitalNGO:
		return true
	}
	return false
}

// Hospital is an accredited care provider. Level follows the national 1-6
// facility classification.
type Hospital struct {
	ID                 id.HospitalID `json:"id"`
	Name               string        `json:"name"`
	RegistrationNumber string        `json:"registration_number"`
	Type               HospitalType  `json:"type"`
	Level              int           `json:"level"`

	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	CountyCode  string `json:"county_code"`
	SubCounty   string `json:"subcounty"`

	LicenseNumber     string    `json:"license_number"`
	LicenseExpiryDate time.Time `json:"license_expiry_date"`

	Lifecycle
}

func NewHospital(hospitalID id.HospitalID, name, registrationNumber string, typ HospitalType, level int, licenseNumber string, licenseExpiry time.Time, email, phone, countyCode, subCounty string, now time.Time) (*Hospital, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "hospital name is required")
	}
	if strings.TrimSpace(registrationNumber) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration number is required")
	}
	if !typ.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown hospital type %q", typ)
	}
	if level < 1 || level > 6 {
		return nil, dErrors.New(dErrors.CodeValidation, "hospital level must be between 1 and 6")
	}
	return &Hospital{
		ID:                 hospitalID,
		Name:               name,
		RegistrationNumber: strings.TrimSpace(registrationNumber),
		Type:               typ,
		Level:              level,
		LicenseNumber:      licenseNumber,
		LicenseExpiryDate:  licenseExpiry,
		Email:              email,
		PhoneNumber:        phone,
		CountyCode:         countyCode,
		SubCounty:          subCounty,
		Lifecycle:          NewLifecycle(now),
	}, nil
}

type StaffRole string

const (
	RoleDoctor        StaffRole = "doctor"
	RoleNurse         StaffRole = "nurse"
	RolePharmacist    StaffRole = "pharmacist"
	RoleClerk         StaffRole = "clerk"
	RoleAdministrator StaffRole = "administrator"
)

// Staff is a hospital employee who can attend visits, prescribe or dispense.
type Staff struct {
	ID            id.StaffID    `json:"id"`
	HospitalID    id.HospitalID `json:"hospital_id"`
	StaffNumber   string        `json:"staff_number"`
	FullName      string        `json:"full_name"`
	Role          StaffRole     `json:"role"`
	LicenseNumber string        `json:"license_number,omitempty"`
	IsActive      bool          `json:"is_active"`
	DateJoined    time.Time     `json:"date_joined"`
}

// HospitalFilter narrows hospital listings.
type HospitalFilter struct {
	Status     Status
	Type       HospitalType
	CountyCode string
	Search     string
}

func (f HospitalFilter) Matches(h *Hospital) bool {
	if f.Status != "" && h.Status != f.Status {
		return false
	}
	if f.Type != "" && h.Type != f.Type {
		return false
	}
	if f.CountyCode != "" && h.CountyCode != f.CountyCode {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(h.Name), q) &&
			!strings.Contains(strings.ToLower(h.RegistrationNumber), q) {
			return false
		}
	}
	return true
}
