package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shacore/internal/audit"
	"shacore/internal/notify"
	registry "shacore/internal/registry/models"
	"shacore/internal/visit/models"
	"shacore/pkg/codegen"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/requestcontext"
)

const (
	subjectVisit = "visit"
	subjectOTP   = "otp"

	visitNumberDigits = 4
)

type ScheduleVisitInput struct {
	MemberID       id.MemberID
	HospitalID     id.HospitalID
	Type           models.VisitType
	ScheduledAt    time.Time
	ChiefComplaint string
}

// ScheduleVisit books a member into a hospital. Both must be active.
func (s *Service) ScheduleVisit(ctx context.Context, in ScheduleVisitInput) (*models.Visit, error) {
	member, err := s.registry.GetMember(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}
	if !member.IsActive() {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "member %s is not active", member.SHANumber)
	}
	hospital, err := s.registry.GetHospital(ctx, in.HospitalID)
	if err != nil {
		return nil, err
	}
	if !hospital.IsActive() {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "hospital %s is not active", hospital.Name)
	}

	scheduledAt := in.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = requestcontext.Now(ctx)
	}
	v, err := models.NewVisit(id.NewVisitID(), in.MemberID, in.HospitalID, in.Type, scheduledAt, in.ChiefComplaint)
	if err != nil {
		return nil, err
	}

	prefix := models.VisitNumberPrefix + scheduledAt.Format("20060102")
	number, err := codegen.Generate(ctx, prefix, visitNumberDigits, s.visits.VisitNumberTaken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate visit number")
	}
	v.VisitNumber = number

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.visits.Create(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create visit")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectVisit, v.ID.String(),
			fmt.Sprintf("scheduled %s visit %s at %s", v.Type, v.VisitNumber, hospital.Name))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, member.ID.String(), notify.TypeAppointmentReminder, notify.MethodSMS, member.PhoneNumber,
		"Visit scheduled",
		fmt.Sprintf("Your %s visit %s at %s is scheduled for %s.", v.Type, v.VisitNumber, hospital.Name, scheduledAt.Format("02 Jan 2006 15:04")))
	return v, nil
}

// IssueOTP creates a fresh verification code for a member. Issuance is
// throttled per member and purpose; the code itself goes out through the
// notification port, never in an API response.
func (s *Service) IssueOTP(ctx context.Context, memberID id.MemberID, purpose models.OTPPurpose) (*models.OTP, error) {
	if !purpose.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown OTP purpose %q", purpose)
	}
	member, err := s.registry.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if err := s.throttle.Allow(ctx, memberID, string(purpose)); err != nil {
		return nil, err
	}

	code := codegen.Digits(models.OTPDigits)
	otp := models.NewOTP(id.NewOTPID(), memberID, code, purpose, requestcontext.Now(ctx))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.otps.Create(ctx, otp); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store OTP")
		}
		_, err := s.recorder.Record(ctx, audit.ActionOTPGeneration, subjectOTP, otp.ID.String(),
			fmt.Sprintf("issued %s code for member %s", purpose, member.SHANumber))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, member.ID.String(), notify.TypeOTPCode, notify.MethodSMS, member.PhoneNumber,
		"Verification code",
		fmt.Sprintf("Your SHA verification code is %s. It expires in %d minutes.", code, int(models.OTPTTL.Minutes())))
	return otp, nil
}

// verifyOTP checks and consumes a code. The three failure modes are
// distinguishable so the front desk can tell the member what went wrong:
// wrong code, expired code, or a code that was already used (possibly by a
// concurrent request that won the Consume race).
func (s *Service) verifyOTP(ctx context.Context, memberID id.MemberID, code string, purpose models.OTPPurpose) error {
	outcome := "verified"
	defer func() {
		if s.metrics != nil {
			s.metrics.OTPVerifications.WithLabelValues(outcome).Inc()
		}
	}()

	otp, err := s.otps.FindByCode(ctx, memberID, code, purpose)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			outcome = "invalid"
			return dErrors.New(dErrors.CodeOTPInvalid, "invalid verification code")
		}
		outcome = "error"
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up OTP")
	}
	now := requestcontext.Now(ctx)
	if otp.IsUsed {
		outcome = "used"
		return dErrors.New(dErrors.CodeOTPUsed, "verification code already used")
	}
	if otp.Expired(now) {
		outcome = "expired"
		return dErrors.New(dErrors.CodeOTPExpired, "verification code expired")
	}
	won, err := s.otps.Consume(ctx, otp.ID, now)
	if err != nil {
		outcome = "error"
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume OTP")
	}
	if !won {
		outcome = "used"
		return dErrors.New(dErrors.CodeOTPUsed, "verification code already used")
	}
	return nil
}

// CheckIn verifies the member's code and records arrival.
func (s *Service) CheckIn(ctx context.Context, visitID id.VisitID, code string) (*models.Visit, error) {
	v, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VisitScheduled {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "cannot check in from status %q", v.Status)
	}
	if err := s.verifyOTP(ctx, v.MemberID, code, models.PurposeHospitalVisit); err != nil {
		return nil, err
	}
	if err := v.CheckIn(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.visits.Update(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update visit")
		}
		_, err := s.recorder.Record(ctx, audit.ActionOTPVerification, subjectVisit, v.ID.String(),
			fmt.Sprintf("checked in visit %s", v.VisitNumber))
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.VisitsCheckedIn.Inc()
	}
	return v, nil
}

// StartConsultation assigns the attending clinician and opens the
// consultation.
func (s *Service) StartConsultation(ctx context.Context, visitID id.VisitID, staffID id.StaffID) (*models.Visit, error) {
	v, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	staff, err := s.registry.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if staff.HospitalID != v.HospitalID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "staff member belongs to a different hospital")
	}
	if staff.Role != registry.RoleDoctor && staff.Role != registry.RoleNurse {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "a %s cannot attend consultations", staff.Role)
	}
	if err := v.StartConsultation(staffID); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.visits.Update(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update visit")
		}
		_, err := s.recorder.Record(ctx, audit.ActionStatusChange, subjectVisit, v.ID.String(),
			fmt.Sprintf("consultation started for visit %s by %s", v.VisitNumber, staff.FullName))
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

type CompleteVisitInput struct {
	VisitID   id.VisitID
	Diagnosis string
	Notes     string
}

// Complete closes the consultation and stamps check-out.
func (s *Service) Complete(ctx context.Context, in CompleteVisitInput) (*models.Visit, error) {
	v, err := s.getVisit(ctx, in.VisitID)
	if err != nil {
		return nil, err
	}
	if err := v.Complete(requestcontext.Now(ctx), in.Diagnosis, in.Notes); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.visits.Update(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update visit")
		}
		_, err := s.recorder.Record(ctx, audit.ActionStatusChange, subjectVisit, v.ID.String(),
			fmt.Sprintf("completed visit %s", v.VisitNumber))
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Cancel aborts a non-terminal visit.
func (s *Service) Cancel(ctx context.Context, visitID id.VisitID, reason string) (*models.Visit, error) {
	v, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := v.Cancel(reason); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.visits.Update(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update visit")
		}
		_, err := s.recorder.Record(ctx, audit.ActionStatusChange, subjectVisit, v.ID.String(),
			fmt.Sprintf("cancelled visit %s: %s", v.VisitNumber, reason))
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetVisit loads one visit.
func (s *Service) GetVisit(ctx context.Context, visitID id.VisitID) (*models.Visit, error) {
	return s.getVisit(ctx, visitID)
}

// ListVisits returns a filtered page of visits.
func (s *Service) ListVisits(ctx context.Context, filter models.VisitFilter, params pagination.Params) (pagination.Page[models.Visit], error) {
	return s.visits.List(ctx, filter, params)
}
