package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shacore/internal/audit"
	"shacore/internal/visit/models"
	"shacore/pkg/codegen"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/requestcontext"
)

const (
	subjectPrescription = "prescription"
	subjectStock        = "stock"
	subjectMedicine     = "medicine"

	prescriptionNumberDigits = 4
)

type PrescriptionItemInput struct {
	MedicineID id.MedicineID
	Quantity   int
	Dosage     string
	Duration   string
}

type CreatePrescriptionInput struct {
	VisitID      id.VisitID
	PrescribedBy id.StaffID
	Items        []PrescriptionItemInput
	Notes        string
}

// CreatePrescription issues a prescription against an in-consultation or
// completed visit.
func (s *Service) CreatePrescription(ctx context.Context, in CreatePrescriptionInput) (*models.Prescription, error) {
	v, err := s.getVisit(ctx, in.VisitID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VisitInConsultation && v.Status != models.VisitCompleted {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "cannot prescribe on a %s visit", v.Status)
	}

	items := make([]models.Item, 0, len(in.Items))
	for _, line := range in.Items {
		if _, err := s.pharmacy.FindMedicine(ctx, line.MedicineID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "medicine not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load medicine")
		}
		items = append(items, models.Item{
			MedicineID:         line.MedicineID,
			PrescribedQuantity: line.Quantity,
			Dosage:             line.Dosage,
			Duration:           line.Duration,
		})
	}

	now := requestcontext.Now(ctx)
	p, err := models.NewPrescription(id.NewPrescriptionID(), in.VisitID, items, now)
	if err != nil {
		return nil, err
	}
	p.Notes = in.Notes
	if !in.PrescribedBy.IsNil() {
		staffID := in.PrescribedBy
		p.PrescribedBy = &staffID
	}

	prefix := models.PrescriptionNumberPrefix + now.Format("20060102")
	number, err := codegen.Generate(ctx, prefix, prescriptionNumberDigits, s.prescriptions.NumberTaken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate prescription number")
	}
	p.PrescriptionNumber = number

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create prescription")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectPrescription, p.ID.String(),
			fmt.Sprintf("issued prescription %s on visit %s (%d items)", p.PrescriptionNumber, v.VisitNumber, len(p.Items)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

type DispenseLine struct {
	MedicineID id.MedicineID
	StockID    id.StockID
	Quantity   int
}

// DispenseItems fulfills prescription lines from named stock batches. The
// over-dispense guard runs against the prescription, the availability guard
// is the store's conditional decrement. When a later line fails, earlier
// decrements are compensated so a partial request never half-applies.
func (s *Service) DispenseItems(ctx context.Context, prescriptionID id.PrescriptionID, lines []DispenseLine) (*models.Prescription, error) {
	if len(lines) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "nothing to dispense")
	}
	p, err := s.getPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	v, err := s.getVisit(ctx, p.VisitID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)

	// Validate every line against the prescription copy first; stock is only
	// touched once the whole request is coherent.
	for _, line := range lines {
		if err := p.ApplyDispense(line.MedicineID, line.Quantity); err != nil {
			return nil, err
		}
		st, err := s.pharmacy.FindStock(ctx, line.StockID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "stock batch not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stock")
		}
		if st.MedicineID != line.MedicineID {
			return nil, dErrors.New(dErrors.CodeBadRequest, "stock batch holds a different medicine")
		}
		if st.HospitalID != v.HospitalID {
			return nil, dErrors.New(dErrors.CodeBadRequest, "stock batch belongs to a different hospital")
		}
		if st.Expired(now) {
			return nil, dErrors.Newf(dErrors.CodeInvalidState, "batch %s expired on %s", st.BatchNumber, st.ExpiryDate.Format("2006-01-02"))
		}
	}

	var decremented []DispenseLine
	rollback := func() {
		for _, line := range decremented {
			if err := s.pharmacy.Increment(ctx, line.StockID, line.Quantity, now); err != nil {
				s.logger.ErrorContext(ctx, "failed to compensate stock decrement",
					"stock_id", line.StockID.String(), "quantity", line.Quantity, "error", err)
			}
		}
	}

	for _, line := range lines {
		if err := s.pharmacy.Decrement(ctx, line.StockID, line.Quantity, now); err != nil {
			rollback()
			if errors.Is(err, sentinel.ErrInsufficient) {
				return nil, dErrors.Newf(dErrors.CodeInsufficientStock, "not enough stock to dispense %d units", line.Quantity)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decrement stock")
		}
		decremented = append(decremented, line)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Update(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update prescription")
		}
		_, err := s.recorder.Record(ctx, audit.ActionDispense, subjectPrescription, p.ID.String(),
			fmt.Sprintf("dispensed %d line(s) on prescription %s; status now %s", len(lines), p.PrescriptionNumber, p.Status))
		return err
	})
	if err != nil {
		rollback()
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ItemsDispensed.Add(float64(len(lines)))
	}
	return p, nil
}

// VerifyCollection confirms the member picked up their medicine, gated on a
// medicine_collection code. Visit check-in codes do not work here.
func (s *Service) VerifyCollection(ctx context.Context, prescriptionID id.PrescriptionID, code string) (*models.Prescription, error) {
	p, err := s.getPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	v, err := s.getVisit(ctx, p.VisitID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyOTP(ctx, v.MemberID, code, models.PurposeMedicineCollection); err != nil {
		return nil, err
	}
	if err := p.MarkCollected(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Update(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update prescription")
		}
		_, err := s.recorder.Record(ctx, audit.ActionOTPVerification, subjectPrescription, p.ID.String(),
			fmt.Sprintf("verified collection of prescription %s", p.PrescriptionNumber))
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPrescription loads one prescription.
func (s *Service) GetPrescription(ctx context.Context, prescriptionID id.PrescriptionID) (*models.Prescription, error) {
	return s.getPrescription(ctx, prescriptionID)
}

// ListPrescriptions returns a visit's prescriptions.
func (s *Service) ListPrescriptions(ctx context.Context, visitID id.VisitID) ([]models.Prescription, error) {
	if _, err := s.getVisit(ctx, visitID); err != nil {
		return nil, err
	}
	return s.prescriptions.ListByVisit(ctx, visitID)
}

type AddMedicineInput struct {
	Name        string
	GenericName string
	Code        string
	Form        string
	Strength    string
	UnitPrice   decimal.Decimal
}

// AddMedicine registers a catalog entry.
func (s *Service) AddMedicine(ctx context.Context, in AddMedicineInput) (*models.Medicine, error) {
	m, err := models.NewMedicine(id.NewMedicineID(), in.Name, in.Code, in.UnitPrice)
	if err != nil {
		return nil, err
	}
	m.GenericName = in.GenericName
	m.Form = in.Form
	m.Strength = in.Strength

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.pharmacy.CreateMedicine(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict, "medicine code %s already exists", m.Code)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create medicine")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectMedicine, m.ID.String(),
			fmt.Sprintf("added medicine %s (%s)", m.Name, m.Code))
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

type AddStockInput struct {
	HospitalID   id.HospitalID
	MedicineID   id.MedicineID
	BatchNumber  string
	Quantity     int
	MinimumLevel int
	MaximumLevel int
	ExpiryDate   time.Time
}

// AddStock registers a new batch at a hospital pharmacy.
func (s *Service) AddStock(ctx context.Context, in AddStockInput) (*models.Stock, error) {
	if _, err := s.registry.GetHospital(ctx, in.HospitalID); err != nil {
		return nil, err
	}
	if _, err := s.pharmacy.FindMedicine(ctx, in.MedicineID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "medicine not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load medicine")
	}

	st, err := models.NewStock(id.NewStockID(), in.HospitalID, in.MedicineID, in.BatchNumber,
		in.Quantity, in.MinimumLevel, in.MaximumLevel, in.ExpiryDate, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.pharmacy.CreateStock(ctx, st); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict, "batch %s already registered for this medicine", st.BatchNumber)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create stock")
		}
		_, err := s.recorder.Record(ctx, audit.ActionCreate, subjectStock, st.ID.String(),
			fmt.Sprintf("registered batch %s with %d units", st.BatchNumber, st.CurrentStock))
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Restock adds quantity to an existing batch.
func (s *Service) Restock(ctx context.Context, stockID id.StockID, quantity int) (*models.Stock, error) {
	if quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "restock quantity must be positive")
	}
	if _, err := s.pharmacy.FindStock(ctx, stockID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "stock batch not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stock")
	}
	now := requestcontext.Now(ctx)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.pharmacy.Increment(ctx, stockID, quantity, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restock")
		}
		_, err := s.recorder.Record(ctx, audit.ActionUpdate, subjectStock, stockID.String(),
			fmt.Sprintf("restocked %d units", quantity))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.pharmacy.FindStock(ctx, stockID)
}

// ListStock returns a hospital's pharmacy holdings.
func (s *Service) ListStock(ctx context.Context, hospitalID id.HospitalID) ([]models.Stock, error) {
	if _, err := s.registry.GetHospital(ctx, hospitalID); err != nil {
		return nil, err
	}
	return s.pharmacy.ListStock(ctx, hospitalID)
}
