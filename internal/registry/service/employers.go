package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"shacore/internal/audit"
	"shacore/internal/registry/models"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/requestcontext"
)

const (
	subjectEmployer   = "employer"
	subjectEmployment = "employment"
)

type RegisterEmployerInput struct {
	CompanyName        string
	RegistrationNumber string
	TaxPIN             string
	Industry           string
	Email              string
	PhoneNumber        string
	CountyCode         string
	ContactPersonName  string
	ContactPersonPhone string
}

// RegisterEmployer creates a pending employer.
func (s *Service) RegisterEmployer(ctx context.Context, in RegisterEmployerInput) (*models.Employer, error) {
	now := requestcontext.Now(ctx)
	e, err := models.NewEmployer(id.NewEmployerID(), in.CompanyName, in.RegistrationNumber, in.TaxPIN, in.Industry, in.Email, in.PhoneNumber, in.CountyCode, now)
	if err != nil {
		return nil, err
	}
	e.ContactPersonName = in.ContactPersonName
	e.ContactPersonPhone = in.ContactPersonPhone

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.employers.Create(ctx, e); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "an employer with this registration number or tax PIN already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create employer")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectEmployer, e.ID.String(),
			fmt.Sprintf("registered employer %s", e.CompanyName))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "employer registered", "employer_id", e.ID.String(), "company", e.CompanyName)
	return e, nil
}

// ApproveEmployer activates a pending employer.
func (s *Service) ApproveEmployer(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	e, err := s.getEmployer(ctx, employerID)
	if err != nil {
		return nil, err
	}
	if err := e.CanApprove(); err != nil {
		return nil, err
	}
	e.ApplyApproval(requestcontext.ActorID(ctx), requestcontext.Now(ctx))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.employers.Update(ctx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update employer")
		}
		_, err := s.recorder.Record(ctx, audit.ActionApproval, subjectEmployer, e.ID.String(),
			fmt.Sprintf("approved employer %s", e.CompanyName))
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SuspendEmployer is an administrative overwrite; it applies from any state.
func (s *Service) SuspendEmployer(ctx context.Context, employerID id.EmployerID, reason string) (*models.Employer, error) {
	e, err := s.getEmployer(ctx, employerID)
	if err != nil {
		return nil, err
	}
	e.Suspend()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.employers.Update(ctx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update employer")
		}
		_, err := s.recorder.Record(ctx, audit.ActionSuspension, subjectEmployer, e.ID.String(),
			fmt.Sprintf("suspended employer %s: %s", e.CompanyName, reason))
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ReactivateEmployer returns a suspended employer to active.
func (s *Service) ReactivateEmployer(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	e, err := s.getEmployer(ctx, employerID)
	if err != nil {
		return nil, err
	}
	e.Reactivate()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.employers.Update(ctx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update employer")
		}
		_, err := s.recorder.Record(ctx, audit.ActionReactivation, subjectEmployer, e.ID.String(),
			fmt.Sprintf("reactivated employer %s", e.CompanyName))
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) GetEmployer(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	return s.getEmployer(ctx, employerID)
}

func (s *Service) ListEmployers(ctx context.Context, status models.Status, params pagination.Params) (pagination.Page[models.Employer], error) {
	return s.employers.List(ctx, status, params)
}

type LinkEmploymentInput struct {
	EmployerID       id.EmployerID
	MemberID         id.MemberID
	EmployeeNumber   string
	Department       string
	JobTitle         string
	MonthlySalary    decimal.Decimal
	ContributionRate decimal.Decimal
	DateJoined       string
}

// LinkEmployment attaches a member to an employer. Both sides must be active;
// the pair is unique, so relinking an existing pair conflicts.
func (s *Service) LinkEmployment(ctx context.Context, in LinkEmploymentInput) (*models.Employment, error) {
	e, err := s.getEmployer(ctx, in.EmployerID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive() {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "employer %s is not active", e.CompanyName)
	}
	m, err := s.getMember(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive() {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "member %s is not active", m.SHANumber)
	}

	joined, err := parseDate(in.DateJoined, "date joined")
	if err != nil {
		return nil, err
	}
	emp, err := models.NewEmployment(in.EmployerID, in.MemberID, in.EmployeeNumber, in.MonthlySalary, in.ContributionRate, joined)
	if err != nil {
		return nil, err
	}
	emp.Department = in.Department
	emp.JobTitle = in.JobTitle

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.employers.LinkEmployment(ctx, emp); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "member is already linked to this employer")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link employment")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectEmployment,
			emp.EmployerID.String()+":"+emp.MemberID.String(),
			fmt.Sprintf("linked member %s to employer %s", m.SHANumber, e.CompanyName))
		return err
	})
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// EndEmployment deactivates the link; the record survives for history.
func (s *Service) EndEmployment(ctx context.Context, employerID id.EmployerID, memberID id.MemberID) (*models.Employment, error) {
	emp, err := s.employers.FindEmployment(ctx, employerID, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "employment link not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employment")
	}
	if !emp.IsActive {
		return emp, nil
	}
	emp.IsActive = false
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.employers.UpdateEmployment(ctx, emp); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update employment")
		}
		_, err := s.recorder.Record(ctx, audit.ActionUpdate, subjectEmployment,
			emp.EmployerID.String()+":"+emp.MemberID.String(), "ended employment")
		return err
	})
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// ListEmployments returns an employer's workforce links.
func (s *Service) ListEmployments(ctx context.Context, employerID id.EmployerID) ([]models.Employment, error) {
	if _, err := s.getEmployer(ctx, employerID); err != nil {
		return nil, err
	}
	return s.employers.ListEmployments(ctx, employerID)
}

func (s *Service) getEmployer(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	e, err := s.employers.FindByID(ctx, employerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "employer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employer")
	}
	return e, nil
}
