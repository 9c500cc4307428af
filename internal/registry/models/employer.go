package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

// DefaultContributionRate is the statutory percentage of gross salary owed
// monthly when an employment link doesn't set its own rate.
var DefaultContributionRate = decimal.RequireFromString("2.75")

// Employer is a registered contributing organization.
type Employer struct {
	ID                 id.EmployerID `json:"id"`
	CompanyName        string        `json:"company_name"`
	RegistrationNumber string        `json:"registration_number"`
	TaxPIN             string        `json:"tax_pin"`
	Industry           string        `json:"industry,omitempty"`

	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	CountyCode  string `json:"county_code"`

	ContactPersonName  string `json:"contact_person_name,omitempty"`
	ContactPersonPhone string `json:"contact_person_phone,omitempty"`

	Lifecycle
}

func NewEmployer(employerID id.EmployerID, companyName, registrationNumber, taxPIN, industry, email, phone, countyCode string, now time.Time) (*Employer, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "company name is required")
	}
	if strings.TrimSpace(registrationNumber) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration number is required")
	}
	if strings.TrimSpace(taxPIN) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tax PIN is required")
	}
	return &Employer{
		ID:                 employerID,
		CompanyName:        companyName,
		RegistrationNumber: strings.TrimSpace(registrationNumber),
		TaxPIN:             strings.TrimSpace(taxPIN),
		Industry:           industry,
		Email:              email,
		PhoneNumber:        phone,
		CountyCode:         countyCode,
		Lifecycle:          NewLifecycle(now),
	}, nil
}

// Employment links a member to an employer with the salary facts the ledger
// derives contributions from. Unique per (employer, member).
type Employment struct {
	EmployerID       id.EmployerID   `json:"employer_id"`
	MemberID         id.MemberID     `json:"member_id"`
	EmployeeNumber   string          `json:"employee_number"`
	Department       string          `json:"department,omitempty"`
	JobTitle         string          `json:"job_title,omitempty"`
	MonthlySalary    decimal.Decimal `json:"monthly_salary"`
	ContributionRate decimal.Decimal `json:"contribution_rate"`
	DateJoined       time.Time       `json:"date_joined"`
	IsActive         bool            `json:"is_active"`
}

func NewEmployment(employerID id.EmployerID, memberID id.MemberID, employeeNumber string, salary, rate decimal.Decimal, joined time.Time) (*Employment, error) {
	if salary.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "monthly salary cannot be negative")
	}
	if rate.IsZero() {
		rate = DefaultContributionRate
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, dErrors.New(dErrors.CodeValidation, "contribution rate must be between 0 and 100")
	}
	return &Employment{
		EmployerID:       employerID,
		MemberID:         memberID,
		EmployeeNumber:   employeeNumber,
		MonthlySalary:    salary,
		ContributionRate: rate,
		DateJoined:       joined,
		IsActive:         true,
	}, nil
}

// MonthlyContribution derives salary * rate / 100. Computed on demand so it
// always reflects the current salary and rate; never persisted.
func (e *Employment) MonthlyContribution() decimal.Decimal {
	return e.MonthlySalary.Mul(e.ContributionRate).Div(decimal.NewFromInt(100))
}
