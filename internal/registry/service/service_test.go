package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"shacore/internal/audit"
	auditMemory "shacore/internal/audit/store/memory"
	"shacore/internal/registry/models"
	registryMemory "shacore/internal/registry/store/memory"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/requestcontext"
)

// =============================================================================
// Registry Service Test Suite
// =============================================================================

type RegistrySuite struct {
	suite.Suite
	members    *registryMemory.MemberStore
	employers  *registryMemory.EmployerStore
	hospitals  *registryMemory.HospitalStore
	auditStore *auditMemory.Store
	service    *Service
	ctx        context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.members = registryMemory.NewMemberStore()
	s.employers = registryMemory.NewEmployerStore()
	s.hospitals = registryMemory.NewHospitalStore()
	s.auditStore = auditMemory.New()
	recorder := audit.NewRecorder(s.auditStore, logger, nil)
	s.service = New(s.members, s.employers, s.hospitals, recorder, logger)

	ctx := context.Background()
	ctx = requestcontext.WithActorID(ctx, "clerk-01")
	ctx = requestcontext.WithTime(ctx, time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	s.ctx = ctx
}

func (s *RegistrySuite) registerMember(nationalID string) *models.Member {
	m, err := s.service.RegisterMember(s.ctx, RegisterMemberInput{
		FirstName:   "Amina",
		LastName:    "Wanjiku",
		NationalID:  nationalID,
		DateOfBirth: "1990-06-15",
		Gender:      models.GenderFemale,
		PhoneNumber: "+254700111222",
		Email:       "amina@example.com",
		CountyCode:  "047",
		SubCounty:   "Westlands",
	})
	s.Require().NoError(err)
	return m
}

func (s *RegistrySuite) registerEmployer() *models.Employer {
	e, err := s.service.RegisterEmployer(s.ctx, RegisterEmployerInput{
		CompanyName:        "Savanna Logistics Ltd",
		RegistrationNumber: "C.123456",
		TaxPIN:             "P051234567A",
		Industry:           "logistics",
		Email:              "hr@savanna.example.com",
		PhoneNumber:        "+254711000111",
		CountyCode:         "047",
	})
	s.Require().NoError(err)
	return e
}

func (s *RegistrySuite) registerHospital() *models.Hospital {
	h, err := s.service.RegisterHospital(s.ctx, RegisterHospitalInput{
		Name:               "Mji wa Huruma Hospital",
		RegistrationNumber: "MOH/4521",
		Type:               models.HospitalFaithBased,
		Level:              4,
		LicenseNumber:      "LIC-889",
		LicenseExpiryDate:  "2026-12-31",
		Email:              "info@mwh.example.com",
		PhoneNumber:        "+254722000333",
		CountyCode:         "047",
		SubCounty:          "Ruaraka",
	})
	s.Require().NoError(err)
	return h
}

// =============================================================================
// Member Registration Tests
// =============================================================================

func (s *RegistrySuite) TestRegisterMember() {
	s.Run("assigns SHA number with county code and starts pending", func() {
		m := s.registerMember("12345678")
		s.True(strings.HasPrefix(m.SHANumber, "SHA047"))
		s.Len(m.SHANumber, len("SHA047")+6)
		s.Equal(models.StatusPending, m.Status)
		s.Nil(m.ApprovedAt)
	})

	s.Run("rejects malformed national ID", func() {
		_, err := s.service.RegisterMember(s.ctx, RegisterMemberInput{
			FirstName:   "Amina",
			LastName:    "Wanjiku",
			NationalID:  "12ab",
			DateOfBirth: "1990-06-15",
			Gender:      models.GenderFemale,
			PhoneNumber: "+254700111222",
			CountyCode:  "047",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate national ID conflicts", func() {
		s.registerMember("20000001")
		_, err := s.service.RegisterMember(s.ctx, RegisterMemberInput{
			FirstName:   "Brian",
			LastName:    "Otieno",
			NationalID:  "20000001",
			DateOfBirth: "1988-01-02",
			Gender:      models.GenderMale,
			PhoneNumber: "+254700999888",
			CountyCode:  "042",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects bad date of birth", func() {
		_, err := s.service.RegisterMember(s.ctx, RegisterMemberInput{
			FirstName:   "Amina",
			LastName:    "Wanjiku",
			NationalID:  "30000001",
			DateOfBirth: "15/06/1990",
			Gender:      models.GenderFemale,
			PhoneNumber: "+254700111222",
			CountyCode:  "047",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("writes an audit entry", func() {
		m := s.registerMember("40000001")
		page, err := s.auditStore.List(s.ctx, audit.Filter{
			SubjectType: "member", SubjectID: m.ID.String(), Action: audit.ActionCreate,
		}, pagination.Params{})
		s.Require().NoError(err)
		s.Equal(1, page.Total)
		s.Equal("clerk-01", page.Items[0].Actor)
	})
}

// =============================================================================
// Member Lifecycle Tests
// =============================================================================

func (s *RegistrySuite) TestApproveMember() {
	s.Run("pending member becomes active with approval facts", func() {
		m := s.registerMember("50000001")
		approved, err := s.service.ApproveMember(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, approved.Status)
		s.Require().NotNil(approved.ApprovedAt)
		s.Equal("clerk-01", approved.ApprovedBy)
	})

	s.Run("second approval is rejected", func() {
		m := s.registerMember("50000002")
		_, err := s.service.ApproveMember(s.ctx, m.ID)
		s.Require().NoError(err)
		_, err = s.service.ApproveMember(s.ctx, m.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown member is not found", func() {
		m := s.registerMember("50000003")
		_, err := s.service.ApproveMember(s.ctx, m.ID)
		s.Require().NoError(err)
		got, err := s.service.GetMember(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, got.Status)
	})
}

func (s *RegistrySuite) TestSuspendAndReactivate() {
	m := s.registerMember("60000001")
	_, err := s.service.ApproveMember(s.ctx, m.ID)
	s.Require().NoError(err)

	suspended, err := s.service.SuspendMember(s.ctx, m.ID, "contribution arrears")
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, suspended.Status)

	reactivated, err := s.service.ReactivateMember(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, reactivated.Status)

	// Approval facts survive the round trip.
	s.NotNil(reactivated.ApprovedAt)
}

func (s *RegistrySuite) TestMemberLookup() {
	s.Run("by SHA number", func() {
		m := s.registerMember("70000001")
		got, err := s.service.GetMemberBySHANumber(s.ctx, m.SHANumber)
		s.Require().NoError(err)
		s.Equal(m.ID, got.ID)
	})

	s.Run("unknown SHA number is not found", func() {
		_, err := s.service.GetMemberBySHANumber(s.ctx, "SHA047000000")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("list filters by status", func() {
		m := s.registerMember("70000002")
		_, err := s.service.ApproveMember(s.ctx, m.ID)
		s.Require().NoError(err)
		s.registerMember("70000003")

		page, err := s.service.ListMembers(s.ctx, models.MemberFilter{Status: models.StatusActive}, pagination.Params{})
		s.Require().NoError(err)
		for _, got := range page.Items {
			s.Equal(models.StatusActive, got.Status)
		}
		s.GreaterOrEqual(page.Total, 1)
	})
}

// =============================================================================
// Employer Tests
// =============================================================================

func (s *RegistrySuite) TestEmployerLifecycle() {
	s.Run("register then approve", func() {
		e := s.registerEmployer()
		s.Equal(models.StatusPending, e.Status)

		approved, err := s.service.ApproveEmployer(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, approved.Status)
	})

	s.Run("duplicate registration number conflicts", func() {
		_, err := s.service.RegisterEmployer(s.ctx, RegisterEmployerInput{
			CompanyName:        "Another Co",
			RegistrationNumber: "C.123456",
			TaxPIN:             "P059999999Z",
			Email:              "x@example.com",
			PhoneNumber:        "+254700000000",
			CountyCode:         "001",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *RegistrySuite) TestLinkEmployment() {
	employer := s.registerEmployer()
	_, err := s.service.ApproveEmployer(s.ctx, employer.ID)
	s.Require().NoError(err)
	member := s.registerMember("80000001")
	_, err = s.service.ApproveMember(s.ctx, member.ID)
	s.Require().NoError(err)

	s.Run("defaults the contribution rate", func() {
		emp, err := s.service.LinkEmployment(s.ctx, LinkEmploymentInput{
			EmployerID:     employer.ID,
			MemberID:       member.ID,
			EmployeeNumber: "EMP-001",
			MonthlySalary:  decimal.NewFromInt(50000),
			DateJoined:     "2025-01-01",
		})
		s.Require().NoError(err)
		s.True(emp.ContributionRate.Equal(models.DefaultContributionRate))
		// 50000 * 2.75% = 1375
		s.True(emp.MonthlyContribution().Equal(decimal.NewFromInt(1375)))
	})

	s.Run("relinking the same pair conflicts", func() {
		_, err := s.service.LinkEmployment(s.ctx, LinkEmploymentInput{
			EmployerID:     employer.ID,
			MemberID:       member.ID,
			EmployeeNumber: "EMP-001-B",
			MonthlySalary:  decimal.NewFromInt(60000),
			DateJoined:     "2025-02-01",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("pending member cannot be linked", func() {
		pending := s.registerMember("80000002")
		_, err := s.service.LinkEmployment(s.ctx, LinkEmploymentInput{
			EmployerID:     employer.ID,
			MemberID:       pending.ID,
			EmployeeNumber: "EMP-002",
			MonthlySalary:  decimal.NewFromInt(30000),
			DateJoined:     "2025-03-01",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("ending employment deactivates the link", func() {
		emp, err := s.service.EndEmployment(s.ctx, employer.ID, member.ID)
		s.Require().NoError(err)
		s.False(emp.IsActive)

		// Ending twice is a no-op.
		emp, err = s.service.EndEmployment(s.ctx, employer.ID, member.ID)
		s.Require().NoError(err)
		s.False(emp.IsActive)
	})
}

// =============================================================================
// Hospital Tests
// =============================================================================

func (s *RegistrySuite) TestHospitalLifecycle() {
	s.Run("register then approve", func() {
		h := s.registerHospital()
		s.Equal(models.StatusPending, h.Status)

		approved, err := s.service.ApproveHospital(s.ctx, h.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, approved.Status)
	})

	s.Run("level outside 1-6 is rejected", func() {
		_, err := s.service.RegisterHospital(s.ctx, RegisterHospitalInput{
			Name:               "Nowhere Clinic",
			RegistrationNumber: "MOH/0000",
			Type:               models.HospitalPublic,
			Level:              7,
			LicenseExpiryDate:  "2026-12-31",
			CountyCode:         "001",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestAddStaff() {
	h := s.registerHospital()
	_, err := s.service.ApproveHospital(s.ctx, h.ID)
	s.Require().NoError(err)

	s.Run("enrolls staff at an active hospital", func() {
		st, err := s.service.AddStaff(s.ctx, AddStaffInput{
			HospitalID:    h.ID,
			StaffNumber:   "ST-100",
			FullName:      "Dr. Key Mwangi",
			Role:          models.RoleDoctor,
			LicenseNumber: "KMPDC-555",
		})
		s.Require().NoError(err)
		s.True(st.IsActive)

		roster, err := s.service.ListStaff(s.ctx, h.ID)
		s.Require().NoError(err)
		s.Len(roster, 1)
	})

	s.Run("unknown role is rejected", func() {
		_, err := s.service.AddStaff(s.ctx, AddStaffInput{
			HospitalID: h.ID,
			FullName:   "Jane Doe",
			Role:       "janitor",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("pending hospital cannot enroll staff", func() {
		pending := s.registerHospital2("MOH/9999")
		_, err := s.service.AddStaff(s.ctx, AddStaffInput{
			HospitalID: pending.ID,
			FullName:   "John Doe",
			Role:       models.RoleNurse,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *RegistrySuite) registerHospital2(regNumber string) *models.Hospital {
	h, err := s.service.RegisterHospital(s.ctx, RegisterHospitalInput{
		Name:               "Second Hospital",
		RegistrationNumber: regNumber,
		Type:               models.HospitalPublic,
		Level:              3,
		LicenseExpiryDate:  "2026-12-31",
		CountyCode:         "001",
	})
	s.Require().NoError(err)
	return h
}
