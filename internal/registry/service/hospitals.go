package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shacore/internal/audit"
	"shacore/internal/registry/models"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/requestcontext"
)

const (
	subjectHospital = "hospital"
	subjectStaff    = "staff"
)

type RegisterHospitalInput struct {
	Name               string
	RegistrationNumber string
	Type               models.HospitalType
	Level              int
	LicenseNumber      string
	LicenseExpiryDate  string
	Email              string
	PhoneNumber        string
	CountyCode         string
	SubCounty          string
}

// RegisterHospital creates a pending hospital.
func (s *Service) RegisterHospital(ctx context.Context, in RegisterHospitalInput) (*models.Hospital, error) {
	expiry, err := parseDate(in.LicenseExpiryDate, "license expiry date")
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	h, err := models.NewHospital(id.NewHospitalID(), in.Name, in.RegistrationNumber, in.Type, in.Level, in.LicenseNumber, expiry, in.Email, in.PhoneNumber, in.CountyCode, in.SubCounty, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.hospitals.Create(ctx, h); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a hospital with this registration number already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create hospital")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectHospital, h.ID.String(),
			fmt.Sprintf("registered hospital %s (level %d)", h.Name, h.Level))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "hospital registered", "hospital_id", h.ID.String(), "name", h.Name)
	return h, nil
}

// ApproveHospital accredits a pending hospital.
func (s *Service) ApproveHospital(ctx context.Context, hospitalID id.HospitalID) (*models.Hospital, error) {
	h, err := s.getHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	if err := h.CanApprove(); err != nil {
		return nil, err
	}
	h.ApplyApproval(requestcontext.ActorID(ctx), requestcontext.Now(ctx))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.hospitals.Update(ctx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update hospital")
		}
		_, err := s.recorder.Record(ctx, audit.ActionApproval, subjectHospital, h.ID.String(),
			fmt.Sprintf("approved hospital %s", h.Name))
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// SuspendHospital is an administrative overwrite; it applies from any state.
func (s *Service) SuspendHospital(ctx context.Context, hospitalID id.HospitalID, reason string) (*models.Hospital, error) {
	h, err := s.getHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	h.Suspend()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.hospitals.Update(ctx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update hospital")
		}
		_, err := s.recorder.Record(ctx, audit.ActionSuspension, subjectHospital, h.ID.String(),
			fmt.Sprintf("suspended hospital %s: %s", h.Name, reason))
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ReactivateHospital returns a suspended hospital to active.
func (s *Service) ReactivateHospital(ctx context.Context, hospitalID id.HospitalID) (*models.Hospital, error) {
	h, err := s.getHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	h.Reactivate()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.hospitals.Update(ctx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update hospital")
		}
		_, err := s.recorder.Record(ctx, audit.ActionReactivation, subjectHospital, h.ID.String(),
			fmt.Sprintf("reactivated hospital %s", h.Name))
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) GetHospital(ctx context.Context, hospitalID id.HospitalID) (*models.Hospital, error) {
	return s.getHospital(ctx, hospitalID)
}

func (s *Service) ListHospitals(ctx context.Context, filter models.HospitalFilter, params pagination.Params) (pagination.Page[models.Hospital], error) {
	return s.hospitals.List(ctx, filter, params)
}

type AddStaffInput struct {
	HospitalID    id.HospitalID
	StaffNumber   string
	FullName      string
	Role          models.StaffRole
	LicenseNumber string
}

// AddStaff enrolls an employee at an active hospital.
func (s *Service) AddStaff(ctx context.Context, in AddStaffInput) (*models.Staff, error) {
	h, err := s.getHospital(ctx, in.HospitalID)
	if err != nil {
		return nil, err
	}
	if !h.IsActive() {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "hospital %s is not active", h.Name)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "staff name is required")
	}
	switch in.Role {
	case models.RoleDoctor, models.RoleNurse, models.RolePharmacist, models.RoleClerk, models.RoleAdministrator:
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown staff role %q", in.Role)
	}

	st := &models.Staff{
		ID:            id.NewStaffID(),
		HospitalID:    in.HospitalID,
		StaffNumber:   in.StaffNumber,
		FullName:      strings.TrimSpace(in.FullName),
		Role:          in.Role,
		LicenseNumber: in.LicenseNumber,
		IsActive:      true,
		DateJoined:    requestcontext.Now(ctx),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.hospitals.AddStaff(ctx, st); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a staff member with this staff number already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add staff")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectStaff, st.ID.String(),
			fmt.Sprintf("added %s %s to %s", st.Role, st.FullName, h.Name))
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// GetStaff loads one staff member.
func (s *Service) GetStaff(ctx context.Context, staffID id.StaffID) (*models.Staff, error) {
	st, err := s.hospitals.FindStaff(ctx, staffID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "staff member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load staff member")
	}
	return st, nil
}

// ListStaff returns a hospital's roster.
func (s *Service) ListStaff(ctx context.Context, hospitalID id.HospitalID) ([]models.Staff, error) {
	if _, err := s.getHospital(ctx, hospitalID); err != nil {
		return nil, err
	}
	return s.hospitals.ListStaff(ctx, hospitalID)
}

func (s *Service) getHospital(ctx context.Context, hospitalID id.HospitalID) (*models.Hospital, error) {
	h, err := s.hospitals.FindByID(ctx, hospitalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "hospital not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load hospital")
	}
	return h, nil
}
