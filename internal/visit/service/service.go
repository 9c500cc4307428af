// Package service runs the care pathway: scheduling, OTP-gated check-in,
// consultation, prescriptions and pharmacy dispensing.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shacore/internal/audit"
	"shacore/internal/notify"
	"shacore/internal/platform/metrics"
	registry "shacore/internal/registry/models"
	"shacore/internal/visit/models"
	"shacore/internal/visit/throttle"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/platform/tx"
)

// VisitStore is the persistence port for visits.
type VisitStore interface {
	Create(ctx context.Context, v *models.Visit) error
	FindByID(ctx context.Context, visitID id.VisitID) (*models.Visit, error)
	VisitNumberTaken(ctx context.Context, visitNumber string) (bool, error)
	Update(ctx context.Context, v *models.Visit) error
	List(ctx context.Context, filter models.VisitFilter, params pagination.Params) (pagination.Page[models.Visit], error)
}

// OTPStore is the persistence port for OTPs. Consume is the single-use
// arbiter: it flips is_used atomically and reports whether this caller won.
type OTPStore interface {
	Create(ctx context.Context, otp *models.OTP) error
	FindByCode(ctx context.Context, memberID id.MemberID, code string, purpose models.OTPPurpose) (*models.OTP, error)
	Consume(ctx context.Context, otpID id.OTPID, now time.Time) (bool, error)
}

// PrescriptionStore is the persistence port for prescriptions and items.
type PrescriptionStore interface {
	Create(ctx context.Context, p *models.Prescription) error
	FindByID(ctx context.Context, prescriptionID id.PrescriptionID) (*models.Prescription, error)
	NumberTaken(ctx context.Context, prescriptionNumber string) (bool, error)
	Update(ctx context.Context, p *models.Prescription) error
	ListByVisit(ctx context.Context, visitID id.VisitID) ([]models.Prescription, error)
}

// PharmacyStore is the persistence port for the medicine catalog and stock.
// Decrement applies the conditional update that keeps CurrentStock >= 0 and
// returns sentinel.ErrInsufficient when the batch cannot cover the quantity.
type PharmacyStore interface {
	CreateMedicine(ctx context.Context, m *models.Medicine) error
	FindMedicine(ctx context.Context, medicineID id.MedicineID) (*models.Medicine, error)
	CreateStock(ctx context.Context, st *models.Stock) error
	FindStock(ctx context.Context, stockID id.StockID) (*models.Stock, error)
	Decrement(ctx context.Context, stockID id.StockID, quantity int, now time.Time) error
	Increment(ctx context.Context, stockID id.StockID, quantity int, now time.Time) error
	ListStock(ctx context.Context, hospitalID id.HospitalID) ([]models.Stock, error)
}

// Registry is the slice of the registry the visit pathway needs.
type Registry interface {
	GetMember(ctx context.Context, memberID id.MemberID) (*registry.Member, error)
	GetHospital(ctx context.Context, hospitalID id.HospitalID) (*registry.Hospital, error)
	GetStaff(ctx context.Context, staffID id.StaffID) (*registry.Staff, error)
}

// Notifier decouples the pathway from the notification sink.
type Notifier interface {
	Enqueue(ctx context.Context, recipient string, typ notify.Type, method notify.Method, contact, title, message string) (*notify.Notification, error)
}

// Service orchestrates the visit pathway.
type Service struct {
	visits        VisitStore
	otps          OTPStore
	prescriptions PrescriptionStore
	pharmacy      PharmacyStore
	registry      Registry
	recorder      *audit.Recorder
	notifier      Notifier
	throttle      *throttle.Throttle
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tx            tx.Runner
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithThrottle(t *throttle.Throttle) Option {
	return func(s *Service) { s.throttle = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(visits VisitStore, otps OTPStore, prescriptions PrescriptionStore, pharmacy PharmacyStore, reg Registry, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		visits:        visits,
		otps:          otps,
		prescriptions: prescriptions,
		pharmacy:      pharmacy,
		registry:      reg,
		recorder:      recorder,
		logger:        logger,
		tx:            tx.NopRunner{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
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

func (s *Service) getVisit(ctx context.Context, visitID id.VisitID) (*models.Visit, error) {
	v, err := s.visits.FindByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "visit not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load visit")
	}
	return v, nil
}

func (s *Service) getPrescription(ctx context.Context, prescriptionID id.PrescriptionID) (*models.Prescription, error) {
	p, err := s.prescriptions.FindByID(ctx, prescriptionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "prescription not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load prescription")
	}
	return p, nil
}
