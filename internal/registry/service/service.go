// Package service orchestrates registration and approval of members,
// employers and hospitals. Stores enforce uniqueness; this layer owns the
// lifecycle guards, audit entries and notifications.
package service

import (
	"context"
	"log/slog"
	"time"

	"shacore/internal/audit"
	"shacore/internal/notify"
	"shacore/internal/platform/metrics"
	"shacore/internal/registry/models"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/tx"
)

// MemberStore is the persistence port for members. Create returns
// sentinel.ErrConflict when the national ID or SHA number is already taken.
type MemberStore interface {
	Create(ctx context.Context, m *models.Member) error
	FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	FindBySHANumber(ctx context.Context, shaNumber string) (*models.Member, error)
	SHANumberTaken(ctx context.Context, shaNumber string) (bool, error)
	Update(ctx context.Context, m *models.Member) error
	List(ctx context.Context, filter models.MemberFilter, params pagination.Params) (pagination.Page[models.Member], error)
}

// EmployerStore is the persistence port for employers and employment links.
type EmployerStore interface {
	Create(ctx context.Context, e *models.Employer) error
	FindByID(ctx context.Context, employerID id.EmployerID) (*models.Employer, error)
	Update(ctx context.Context, e *models.Employer) error
	List(ctx context.Context, status models.Status, params pagination.Params) (pagination.Page[models.Employer], error)

	LinkEmployment(ctx context.Context, emp *models.Employment) error
	FindEmployment(ctx context.Context, employerID id.EmployerID, memberID id.MemberID) (*models.Employment, error)
	UpdateEmployment(ctx context.Context, emp *models.Employment) error
	ListEmployments(ctx context.Context, employerID id.EmployerID) ([]models.Employment, error)
}

// HospitalStore is the persistence port for hospitals and their staff.
type HospitalStore interface {
	Create(ctx context.Context, h *models.Hospital) error
	FindByID(ctx context.Context, hospitalID id.HospitalID) (*models.Hospital, error)
	Update(ctx context.Context, h *models.Hospital) error
	List(ctx context.Context, filter models.HospitalFilter, params pagination.Params) (pagination.Page[models.Hospital], error)

	AddStaff(ctx context.Context, st *models.Staff) error
	FindStaff(ctx context.Context, staffID id.StaffID) (*models.Staff, error)
	ListStaff(ctx context.Context, hospitalID id.HospitalID) ([]models.Staff, error)
}

// Notifier decouples the registry from the notification sink.
type Notifier interface {
	Enqueue(ctx context.Context, recipient string, typ notify.Type, method notify.Method, contact, title, message string) (*notify.Notification, error)
}

// Service is the identity registry.
type Service struct {
	members   MemberStore
	employers EmployerStore
	hospitals HospitalStore
	recorder  *audit.Recorder
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tx        tx.Runner
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(members MemberStore, employers EmployerStore, hospitals HospitalStore, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		members:   members,
		employers: employers,
		hospitals: hospitals,
		recorder:  recorder,
		logger:    logger,
		tx:        tx.NopRunner{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func (s *Service) notify(ctx context.Context, recipient string, typ notify.Type, method notify.Method, contact, title, message string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Enqueue(ctx, recipient, typ, method, contact, title, message); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue notification",
			"recipient", recipient, "type", string(typ), "error", err)
	}
}
