package service

import (
	"context"
	"errors"
	"fmt"

	"shacore/internal/audit"
	"shacore/internal/notify"
	"shacore/internal/registry/models"
	"shacore/pkg/codegen"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/requestcontext"
)

const (
	subjectMember   = "member"
	shaNumberDigits = 6
)

// RegisterMemberInput carries the applicant's details. The SHA number is
// never supplied by the caller; it is generated here.
type RegisterMemberInput struct {
	FirstName   string
	MiddleName  string
	LastName    string
	NationalID  string
	DateOfBirth string
	Gender      models.Gender
	PhoneNumber string
	Email       string
	Address     string
	CountyCode  string
	SubCounty   string
}

// RegisterMember creates a pending member with a freshly generated SHA
// number. Registration is open; the member cannot transact until approved.
func (s *Service) RegisterMember(ctx context.Context, in RegisterMemberInput) (*models.Member, error) {
	dob, err := parseDate(in.DateOfBirth, "date of birth")
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	m, err := models.NewMember(id.NewMemberID(), in.FirstName, in.LastName, in.NationalID, dob, in.Gender, in.PhoneNumber, in.Email, in.CountyCode, in.SubCounty, now)
	if err != nil {
		return nil, err
	}
	m.MiddleName = in.MiddleName
	m.PhysicalAddress = in.Address

	sha, err := codegen.Generate(ctx, models.SHANumberPrefix+m.CountyCode, shaNumberDigits, s.members.SHANumberTaken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate SHA number")
	}
	m.SHANumber = sha

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.members.Create(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a member with this national ID already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create member")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectMember, m.ID.String(),
			fmt.Sprintf("registered member %s (%s)", m.FullName(), m.SHANumber))
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MembersRegistered.Inc()
	}
	s.logger.InfoContext(ctx, "member registered",
		"member_id", m.ID.String(), "sha_number", m.SHANumber, "county", m.CountyCode)
	return m, nil
}

// ApproveMember activates a pending member and notifies them of their SHA
// number. Only pending members can be approved.
func (s *Service) ApproveMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if err := m.CanApprove(); err != nil {
		return nil, err
	}
	m.ApplyApproval(requestcontext.ActorID(ctx), requestcontext.Now(ctx))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.members.Update(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update member")
		}
		_, err := s.recorder.Record(ctx, audit.ActionApproval, subjectMember, m.ID.String(),
			fmt.Sprintf("approved member %s", m.SHANumber))
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MembersApproved.Inc()
	}
	s.notify(ctx, m.ID.String(), notify.TypeRegistrationApproved, notify.MethodSMS, m.PhoneNumber,
		"Registration approved",
		fmt.Sprintf("Dear %s, your SHA registration is approved. Your membership number is %s.", m.FirstName, m.SHANumber))
	return m, nil
}

// SuspendMember is an administrative overwrite; it applies from any state.
func (s *Service) SuspendMember(ctx context.Context, memberID id.MemberID, reason string) (*models.Member, error) {
	m, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	m.Suspend()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.members.Update(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update member")
		}
		_, err := s.recorder.Record(ctx, audit.ActionSuspension, subjectMember, m.ID.String(),
			fmt.Sprintf("suspended member %s: %s", m.SHANumber, reason))
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ReactivateMember returns a suspended or inactive member to active.
func (s *Service) ReactivateMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	m.Reactivate()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.members.Update(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update member")
		}
		_, err := s.recorder.Record(ctx, audit.ActionReactivation, subjectMember, m.ID.String(),
			fmt.Sprintf("reactivated member %s", m.SHANumber))
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMember loads one member by id.
func (s *Service) GetMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	return s.getMember(ctx, memberID)
}

// GetMemberBySHANumber resolves a membership number, the lookup hospitals use
// at the front desk.
func (s *Service) GetMemberBySHANumber(ctx context.Context, shaNumber string) (*models.Member, error) {
	m, err := s.members.FindBySHANumber(ctx, shaNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no member with SHA number %s", shaNumber)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return m, nil
}

// ListMembers returns a filtered page of members.
func (s *Service) ListMembers(ctx context.Context, filter models.MemberFilter, params pagination.Params) (pagination.Page[models.Member], error) {
	return s.members.List(ctx, filter, params)
}

func (s *Service) getMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return m, nil
}
