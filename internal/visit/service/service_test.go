package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"shacore/internal/audit"
	auditMemory "shacore/internal/audit/store/memory"
	registry "shacore/internal/registry/models"
	"shacore/internal/visit/models"
	visitMemory "shacore/internal/visit/store/memory"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/requestcontext"
)

// =============================================================================
// Visit Pathway Test Suite
// =============================================================================
// The OTP three-way failure distinction, the single-use race and the dispense
// guards are the load-bearing behaviors here; they are exercised against the
// memory stores whose locking mirrors the Postgres conditional updates.

type fakeRegistry struct {
	members   map[id.MemberID]*registry.Member
	hospitals map[id.HospitalID]*registry.Hospital
	staff     map[id.StaffID]*registry.Staff
}

func (f *fakeRegistry) GetMember(_ context.Context, memberID id.MemberID) (*registry.Member, error) {
	m, ok := f.members[memberID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	return m, nil
}

func (f *fakeRegistry) GetHospital(_ context.Context, hospitalID id.HospitalID) (*registry.Hospital, error) {
	h, ok := f.hospitals[hospitalID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "hospital not found")
	}
	return h, nil
}

func (f *fakeRegistry) GetStaff(_ context.Context, staffID id.StaffID) (*registry.Staff, error) {
	st, ok := f.staff[staffID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "staff member not found")
	}
	return st, nil
}

type VisitSuite struct {
	suite.Suite
	visits     *visitMemory.VisitStore
	otps       *visitMemory.OTPStore
	rx         *visitMemory.PrescriptionStore
	pharmacy   *visitMemory.PharmacyStore
	registry   *fakeRegistry
	service    *Service
	ctx        context.Context
	now        time.Time
	memberID   id.MemberID
	hospitalID id.HospitalID
	doctorID   id.StaffID
}

func TestVisitSuite(t *testing.T) {
	suite.Run(t, new(VisitSuite))
}

func (s *VisitSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.visits = visitMemory.NewVisitStore()
	s.otps = visitMemory.NewOTPStore()
	s.rx = visitMemory.NewPrescriptionStore()
	s.pharmacy = visitMemory.NewPharmacyStore()

	s.memberID = id.NewMemberID()
	s.hospitalID = id.NewHospitalID()
	s.doctorID = id.NewStaffID()
	s.registry = &fakeRegistry{
		members: map[id.MemberID]*registry.Member{
			s.memberID: {
				ID:          s.memberID,
				SHANumber:   "SHA047123456",
				FirstName:   "Amina",
				LastName:    "Wanjiku",
				PhoneNumber: "+254700111222",
				Lifecycle:   registry.Lifecycle{Status: registry.StatusActive},
			},
		},
		hospitals: map[id.HospitalID]*registry.Hospital{
			s.hospitalID: {
				ID:        s.hospitalID,
				Name:      "Mji wa Huruma Hospital",
				Lifecycle: registry.Lifecycle{Status: registry.StatusActive},
			},
		},
		staff: map[id.StaffID]*registry.Staff{
			s.doctorID: {
				ID:         s.doctorID,
				HospitalID: s.hospitalID,
				FullName:   "Dr. Key Mwangi",
				Role:       registry.RoleDoctor,
			},
		},
	}

	recorder := audit.NewRecorder(auditMemory.New(), logger, nil)
	s.service = New(s.visits, s.otps, s.rx, s.pharmacy, s.registry, recorder, logger)

	s.now = time.Date(2025, time.June, 3, 8, 30, 0, 0, time.UTC)
	s.ctx = s.at(s.now)
}

// at pins the request time so expiry and ordering checks are deterministic.
func (s *VisitSuite) at(t time.Time) context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithActorID(ctx, "frontdesk-01")
	return requestcontext.WithTime(ctx, t)
}

func (s *VisitSuite) schedule() *models.Visit {
	v, err := s.service.ScheduleVisit(s.ctx, ScheduleVisitInput{
		MemberID:       s.memberID,
		HospitalID:     s.hospitalID,
		Type:           models.VisitConsultation,
		ScheduledAt:    s.now,
		ChiefComplaint: "persistent cough",
	})
	s.Require().NoError(err)
	return v
}

func (s *VisitSuite) issueOTP(purpose models.OTPPurpose) *models.OTP {
	otp, err := s.service.IssueOTP(s.ctx, s.memberID, purpose)
	s.Require().NoError(err)
	return otp
}

func (s *VisitSuite) checkedInVisit() *models.Visit {
	v := s.schedule()
	otp := s.issueOTP(models.PurposeHospitalVisit)
	v, err := s.service.CheckIn(s.ctx, v.ID, otp.Code)
	s.Require().NoError(err)
	return v
}

func (s *VisitSuite) consultingVisit() *models.Visit {
	v := s.checkedInVisit()
	v, err := s.service.StartConsultation(s.ctx, v.ID, s.doctorID)
	s.Require().NoError(err)
	return v
}

// =============================================================================
// Scheduling Tests
// =============================================================================

func (s *VisitSuite) TestScheduleVisit() {
	s.Run("assigns a dated visit number", func() {
		v := s.schedule()
		s.True(strings.HasPrefix(v.VisitNumber, "VIS20250603"))
		s.Len(v.VisitNumber, len("VIS20250603")+4)
		s.Equal(models.VisitScheduled, v.Status)
	})

	s.Run("suspended member cannot book", func() {
		s.registry.members[s.memberID].Status = registry.StatusSuspended
		defer func() { s.registry.members[s.memberID].Status = registry.StatusActive }()

		_, err := s.service.ScheduleVisit(s.ctx, ScheduleVisitInput{
			MemberID:   s.memberID,
			HospitalID: s.hospitalID,
			Type:       models.VisitConsultation,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown visit type is rejected", func() {
		_, err := s.service.ScheduleVisit(s.ctx, ScheduleVisitInput{
			MemberID:   s.memberID,
			HospitalID: s.hospitalID,
			Type:       "house_call",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// OTP and Check-In Tests
// =============================================================================

func (s *VisitSuite) TestIssueOTP() {
	s.Run("code is a fixed-length decimal string", func() {
		otp := s.issueOTP(models.PurposeHospitalVisit)
		s.Len(otp.Code, models.OTPDigits)
		for _, r := range otp.Code {
			s.True(r >= '0' && r <= '9', "code %q contains non-digit %q", otp.Code, r)
		}
	})

	s.Run("expiry is stamped from issuance time", func() {
		otp := s.issueOTP(models.PurposeHospitalVisit)
		s.Equal(s.now.Add(models.OTPTTL), otp.ExpiresAt)
		s.False(otp.IsUsed)
	})

	s.Run("unknown purpose is rejected", func() {
		_, err := s.service.IssueOTP(s.ctx, s.memberID, "password_reset")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *VisitSuite) TestCheckIn() {
	s.Run("valid code checks in and stamps arrival", func() {
		v := s.checkedInVisit()
		s.Equal(models.VisitCheckedIn, v.Status)
		s.Require().NotNil(v.CheckedInAt)
		s.Equal(s.now, *v.CheckedInAt)
	})

	s.Run("wrong code is otp_invalid", func() {
		v := s.schedule()
		s.issueOTP(models.PurposeHospitalVisit)
		_, err := s.service.CheckIn(s.ctx, v.ID, "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeOTPInvalid))
	})

	s.Run("expired code is otp_expired", func() {
		v := s.schedule()
		otp := s.issueOTP(models.PurposeHospitalVisit)

		late := s.at(s.now.Add(models.OTPTTL + time.Minute))
		_, err := s.service.CheckIn(late, v.ID, otp.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeOTPExpired))
	})

	s.Run("used code is otp_already_used", func() {
		v := s.schedule()
		otp := s.issueOTP(models.PurposeHospitalVisit)
		_, err := s.service.CheckIn(s.ctx, v.ID, otp.Code)
		s.Require().NoError(err)

		v2 := s.schedule()
		_, err = s.service.CheckIn(s.ctx, v2.ID, otp.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeOTPUsed))
	})

	s.Run("collection code does not open the front door", func() {
		v := s.schedule()
		otp := s.issueOTP(models.PurposeMedicineCollection)
		_, err := s.service.CheckIn(s.ctx, v.ID, otp.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeOTPInvalid))
	})

	s.Run("check-in is scheduled-only", func() {
		v := s.checkedInVisit()
		otp := s.issueOTP(models.PurposeHospitalVisit)
		_, err := s.service.CheckIn(s.ctx, v.ID, otp.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *VisitSuite) TestOTPSingleUseUnderConcurrency() {
	otp := s.issueOTP(models.PurposeHospitalVisit)

	const attempts = 10
	visits := make([]*models.Visit, attempts)
	for i := range visits {
		visits[i] = s.schedule()
	}

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(v *models.Visit) {
			defer wg.Done()
			_, err := s.service.CheckIn(s.ctx, v.ID, otp.Code)
			errs <- err
		}(visits[i])
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeOTPUsed):
			rejected++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, succeeded, "a code is good for exactly one check-in")
	s.Equal(attempts-1, rejected)
}

// =============================================================================
// Consultation Lifecycle Tests
// =============================================================================

func (s *VisitSuite) TestConsultationFlow() {
	s.Run("doctor opens and completes the consultation", func() {
		v := s.consultingVisit()
		s.Equal(models.VisitInConsultation, v.Status)
		s.Require().NotNil(v.AttendingStaffID)
		s.Equal(s.doctorID, *v.AttendingStaffID)

		done, err := s.service.Complete(s.at(s.now.Add(time.Hour)), CompleteVisitInput{
			VisitID:   v.ID,
			Diagnosis: "acute bronchitis",
			Notes:     "prescribed antibiotics",
		})
		s.Require().NoError(err)
		s.Equal(models.VisitCompleted, done.Status)
		s.Require().NotNil(done.CheckedOutAt)
		s.True(done.CheckedOutAt.After(*done.CheckedInAt))
	})

	s.Run("check-out cannot precede check-in", func() {
		v := s.consultingVisit()
		_, err := s.service.Complete(s.at(s.now.Add(-time.Hour)), CompleteVisitInput{
			VisitID:   v.ID,
			Diagnosis: "n/a",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("staff from another hospital cannot attend", func() {
		otherID := id.NewStaffID()
		s.registry.staff[otherID] = &registry.Staff{
			ID:         otherID,
			HospitalID: id.NewHospitalID(),
			FullName:   "Dr. Elsewhere",
			Role:       registry.RoleDoctor,
		}
		v := s.checkedInVisit()
		_, err := s.service.StartConsultation(s.ctx, v.ID, otherID)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("cancel works from any non-terminal state", func() {
		v := s.checkedInVisit()
		cancelled, err := s.service.Cancel(s.ctx, v.ID, "member left")
		s.Require().NoError(err)
		s.Equal(models.VisitCancelled, cancelled.Status)

		_, err = s.service.Cancel(s.ctx, v.ID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// Prescription and Dispense Tests
// =============================================================================

func (s *VisitSuite) newMedicine(code string) *models.Medicine {
	m, err := s.service.AddMedicine(s.ctx, AddMedicineInput{
		Name:      "Amoxicillin",
		Code:      code,
		UnitPrice: decimal.NewFromInt(15),
	})
	s.Require().NoError(err)
	return m
}

func (s *VisitSuite) newStock(medicineID id.MedicineID, batch string, quantity int) *models.Stock {
	st, err := s.service.AddStock(s.ctx, AddStockInput{
		HospitalID:  s.hospitalID,
		MedicineID:  medicineID,
		BatchNumber: batch,
		Quantity:    quantity,
		ExpiryDate:  s.now.AddDate(1, 0, 0),
	})
	s.Require().NoError(err)
	return st
}

func (s *VisitSuite) prescribe(visitID id.VisitID, medicineID id.MedicineID, quantity int) *models.Prescription {
	p, err := s.service.CreatePrescription(s.ctx, CreatePrescriptionInput{
		VisitID:      visitID,
		PrescribedBy: s.doctorID,
		Items: []PrescriptionItemInput{
			{MedicineID: medicineID, Quantity: quantity, Dosage: "500mg", Duration: "7 days"},
		},
	})
	s.Require().NoError(err)
	return p
}

func (s *VisitSuite) TestCreatePrescription() {
	s.Run("numbered and pending on an in-consultation visit", func() {
		v := s.consultingVisit()
		med := s.newMedicine("AMX-500")
		p := s.prescribe(v.ID, med.ID, 21)
		s.True(strings.HasPrefix(p.PrescriptionNumber, "RX20250603"))
		s.Equal(models.PrescriptionPending, p.Status)
	})

	s.Run("cannot prescribe on a scheduled visit", func() {
		v := s.schedule()
		med := s.newMedicine("AMX-501")
		_, err := s.service.CreatePrescription(s.ctx, CreatePrescriptionInput{
			VisitID: v.ID,
			Items:   []PrescriptionItemInput{{MedicineID: med.ID, Quantity: 10}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("empty prescriptions are rejected", func() {
		v := s.consultingVisit()
		_, err := s.service.CreatePrescription(s.ctx, CreatePrescriptionInput{VisitID: v.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *VisitSuite) TestDispenseItems() {
	s.Run("partial then full dispense recomputes status", func() {
		v := s.consultingVisit()
		med := s.newMedicine("AMX-510")
		st := s.newStock(med.ID, "B-001", 100)
		p := s.prescribe(v.ID, med.ID, 21)

		p, err := s.service.DispenseItems(s.ctx, p.ID, []DispenseLine{
			{MedicineID: med.ID, StockID: st.ID, Quantity: 14},
		})
		s.Require().NoError(err)
		s.Equal(models.PrescriptionPartiallyDispensed, p.Status)

		p, err = s.service.DispenseItems(s.ctx, p.ID, []DispenseLine{
			{MedicineID: med.ID, StockID: st.ID, Quantity: 7},
		})
		s.Require().NoError(err)
		s.Equal(models.PrescriptionDispensed, p.Status)

		got, err := s.pharmacy.FindStock(s.ctx, st.ID)
		s.Require().NoError(err)
		s.Equal(79, got.CurrentStock)
	})

	s.Run("dispensing past the prescribed quantity is over_dispense", func() {
		v := s.consultingVisit()
		med := s.newMedicine("AMX-511")
		st := s.newStock(med.ID, "B-002", 100)
		p := s.prescribe(v.ID, med.ID, 10)

		_, err := s.service.DispenseItems(s.ctx, p.ID, []DispenseLine{
			{MedicineID: med.ID, StockID: st.ID, Quantity: 11},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeOverDispense))

		// Nothing was taken off the shelf.
		got, err := s.pharmacy.FindStock(s.ctx, st.ID)
		s.Require().NoError(err)
		s.Equal(100, got.CurrentStock)
	})

	s.Run("short batch is insufficient_stock", func() {
		v := s.consultingVisit()
		med := s.newMedicine("AMX-512")
		st := s.newStock(med.ID, "B-003", 5)
		p := s.prescribe(v.ID, med.ID, 10)

		_, err := s.service.DispenseItems(s.ctx, p.ID, []DispenseLine{
			{MedicineID: med.ID, StockID: st.ID, Quantity: 10},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientStock))
	})

	s.Run("expired batch cannot be dispensed", func() {
		v := s.consultingVisit()
		med := s.newMedicine("AMX-513")
		st, err := s.service.AddStock(s.ctx, AddStockInput{
			HospitalID:  s.hospitalID,
			MedicineID:  med.ID,
			BatchNumber: "B-004",
			Quantity:    50,
			ExpiryDate:  s.now.AddDate(0, -1, 0),
		})
		s.Require().NoError(err)
		p := s.prescribe(v.ID, med.ID, 10)

		_, err = s.service.DispenseItems(s.ctx, p.ID, []DispenseLine{
			{MedicineID: med.ID, StockID: st.ID, Quantity: 10},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *VisitSuite) TestStockDecrementUnderConcurrency() {
	med := s.newMedicine("AMX-520")
	st := s.newStock(med.ID, "B-100", 10)

	// Ten dispensers race for ten units in threes; stock never goes negative.
	const workers = 10
	var wg sync.WaitGroup
	var succeeded, insufficient int
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.pharmacy.Decrement(s.ctx, st.ID, 3, s.now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			default:
				insufficient++
			}
		}()
	}
	wg.Wait()

	s.Equal(3, succeeded, "only three full dispenses fit in ten units")
	got, err := s.pharmacy.FindStock(s.ctx, st.ID)
	s.Require().NoError(err)
	s.Equal(1, got.CurrentStock)
}

func (s *VisitSuite) TestVerifyCollection() {
	v := s.consultingVisit()
	med := s.newMedicine("AMX-530")
	st := s.newStock(med.ID, "B-200", 100)
	p := s.prescribe(v.ID, med.ID, 10)
	_, err := s.service.DispenseItems(s.ctx, p.ID, []DispenseLine{
		{MedicineID: med.ID, StockID: st.ID, Quantity: 10},
	})
	s.Require().NoError(err)

	s.Run("visit code cannot collect medicine", func() {
		otp := s.issueOTP(models.PurposeHospitalVisit)
		_, err := s.service.VerifyCollection(s.ctx, p.ID, otp.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeOTPInvalid))
	})

	s.Run("collection code confirms the hand-over", func() {
		otp := s.issueOTP(models.PurposeMedicineCollection)
		collected, err := s.service.VerifyCollection(s.ctx, p.ID, otp.Code)
		s.Require().NoError(err)
		s.NotNil(collected.CollectedAt)
	})

	s.Run("nothing dispensed means nothing to collect", func() {
		v2 := s.consultingVisit()
		p2 := s.prescribe(v2.ID, med.ID, 5)
		otp := s.issueOTP(models.PurposeMedicineCollection)
		_, err := s.service.VerifyCollection(s.ctx, p2.ID, otp.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *VisitSuite) TestRestock() {
	med := s.newMedicine("AMX-540")
	st := s.newStock(med.ID, "B-300", 2)

	got, err := s.service.Restock(s.ctx, st.ID, 48)
	s.Require().NoError(err)
	s.Equal(50, got.CurrentStock)

	_, err = s.service.Restock(s.ctx, st.ID, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Run("duplicate batch registration conflicts", func() {
		_, err := s.service.AddStock(s.ctx, AddStockInput{
			HospitalID:  s.hospitalID,
			MedicineID:  med.ID,
			BatchNumber: "B-300",
			Quantity:    10,
			ExpiryDate:  s.now.AddDate(1, 0, 0),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
