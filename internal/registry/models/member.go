package models

import (
	"regexp"
	"strings"
	"time"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

// SHANumberPrefix starts every membership number; the county code and six
// random digits follow.
const SHANumberPrefix = "SHA"

var nationalIDPattern = regexp.MustCompile(`^\d{8}$`)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Member is an insured person.
//
// Invariants:
//   - NationalID is exactly 8 digits and unique across members.
//   - SHANumber is unique, generated at registration, never reassigned.
type Member struct {
	ID          id.MemberID `json:"id"`
	SHANumber   string      `json:"sha_number"`
	FirstName   string      `json:"first_name"`
	MiddleName  string      `json:"middle_name,omitempty"`
	LastName    string      `json:"last_name"`
	NationalID  string      `json:"national_id"`
	DateOfBirth time.Time   `json:"date_of_birth"`
	Gender      Gender      `json:"gender"`

	PhoneNumber     string `json:"phone_number"`
	Email           string `json:"email"`
	PhysicalAddress string `json:"physical_address,omitempty"`
	CountyCode      string `json:"county_code"`
	SubCounty       string `json:"subcounty"`

	Lifecycle
}

// NewMember validates and constructs a pending member. The SHA number is
// assigned by the service after a collision check against the store.
func NewMember(memberID id.MemberID, firstName, lastName, nationalID string, dob time.Time, gender Gender, phone, email, countyCode, subCounty string, now time.Time) (*Member, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "member name is required")
	}
	if !nationalIDPattern.MatchString(nationalID) {
		return nil, dErrors.New(dErrors.CodeValidation, "national ID must be 8 digits")
	}
	if gender != GenderMale && gender != GenderFemale {
		return nil, dErrors.New(dErrors.CodeValidation, "gender must be M or F")
	}
	if countyCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "county code is required")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phone number is required")
	}
	return &Member{
		ID:          memberID,
		FirstName:   firstName,
		LastName:    lastName,
		NationalID:  nationalID,
		DateOfBirth: dob,
		Gender:      gender,
		PhoneNumber: phone,
		Email:       email,
		CountyCode:  countyCode,
		SubCounty:   subCounty,
		Lifecycle:   NewLifecycle(now),
	}, nil
}

func (m *Member) FullName() string {
	if m.MiddleName != "" {
		return m.FirstName + " " + m.MiddleName + " " + m.LastName
	}
	return m.FirstName + " " + m.LastName
}

// MemberFilter narrows member listings. Search matches SHA number, names and
// national ID, case-insensitively.
type MemberFilter struct {
	Status     Status
	CountyCode string
	Search     string
}

func (f MemberFilter) Matches(m *Member) bool {
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.CountyCode != "" && m.CountyCode != f.CountyCode {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(m.SHANumber), q) &&
			!strings.Contains(strings.ToLower(m.FirstName), q) &&
			!strings.Contains(strings.ToLower(m.LastName), q) &&
			!strings.Contains(m.NationalID, q) {
			return false
		}
	}
	return true
}
