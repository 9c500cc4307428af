package models

import (
	"time"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

// PrescriptionNumberPrefix starts every prescription number.
const PrescriptionNumberPrefix = "RX"

type PrescriptionStatus string

const (
	PrescriptionPending            PrescriptionStatus = "pending"
	PrescriptionPartiallyDispensed PrescriptionStatus = "partially_dispensed"
	PrescriptionDispensed          PrescriptionStatus = "dispensed"
	PrescriptionCancelled          PrescriptionStatus = "cancelled"
)

// Item is one medicine line on a prescription. DispensedQuantity only ever
// grows, and never past PrescribedQuantity.
type Item struct {
	MedicineID         id.MedicineID `json:"medicine_id"`
	PrescribedQuantity int           `json:"quantity_prescribed"`
	DispensedQuantity  int           `json:"quantity_dispensed"`
	Dosage             string        `json:"dosage,omitempty"`
	Duration           string        `json:"duration,omitempty"`
}

// Remaining is how much can still be dispensed.
func (i *Item) Remaining() int {
	return i.PrescribedQuantity - i.DispensedQuantity
}

// Prescription is issued against a visit and fulfilled by the pharmacy,
// possibly over several partial dispenses.
//
// Invariants:
//   - Status is derived from the items and recomputed after every dispense;
//     it is never set directly except for cancellation.
//   - Collection requires a medicine_collection OTP; the service enforces it.
type Prescription struct {
	ID                 id.PrescriptionID  `json:"id"`
	PrescriptionNumber string             `json:"prescription_number"`
	VisitID            id.VisitID         `json:"visit_id"`
	PrescribedBy       *id.StaffID        `json:"prescribed_by,omitempty"`
	Status             PrescriptionStatus `json:"status"`
	Items              []Item             `json:"items"`
	Notes              string             `json:"notes,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	CollectedAt        *time.Time         `json:"collected_at,omitempty"`
}

func NewPrescription(prescriptionID id.PrescriptionID, visitID id.VisitID, items []Item, now time.Time) (*Prescription, error) {
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "a prescription needs at least one item")
	}
	seen := make(map[id.MedicineID]bool, len(items))
	for _, item := range items {
		if item.PrescribedQuantity <= 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "prescribed quantity must be positive")
		}
		if item.DispensedQuantity != 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "items start with nothing dispensed")
		}
		if seen[item.MedicineID] {
			return nil, dErrors.New(dErrors.CodeValidation, "duplicate medicine on prescription")
		}
		seen[item.MedicineID] = true
	}
	return &Prescription{
		ID:        prescriptionID,
		VisitID:   visitID,
		Status:    PrescriptionPending,
		Items:     items,
		CreatedAt: now,
	}, nil
}

// Item returns the line for a medicine, or nil.
func (p *Prescription) Item(medicineID id.MedicineID) *Item {
	for i := range p.Items {
		if p.Items[i].MedicineID == medicineID {
			return &p.Items[i]
		}
	}
	return nil
}

// ApplyDispense increases a line's dispensed quantity. Quantities only move
// up, and never past what was prescribed.
func (p *Prescription) ApplyDispense(medicineID id.MedicineID, quantity int) error {
	if p.Status == PrescriptionCancelled {
		return dErrors.New(dErrors.CodeInvalidState, "prescription is cancelled")
	}
	if quantity <= 0 {
		return dErrors.New(dErrors.CodeValidation, "dispense quantity must be positive")
	}
	item := p.Item(medicineID)
	if item == nil {
		return dErrors.New(dErrors.CodeNotFound, "medicine is not on this prescription")
	}
	if quantity > item.Remaining() {
		return dErrors.Newf(dErrors.CodeOverDispense,
			"dispensing %d exceeds the %d remaining of %d prescribed",
			quantity, item.Remaining(), item.PrescribedQuantity)
	}
	item.DispensedQuantity += quantity
	p.RecomputeStatus()
	return nil
}

// RecomputeStatus derives the aggregate status from the item quantities.
func (p *Prescription) RecomputeStatus() {
	if p.Status == PrescriptionCancelled {
		return
	}
	dispensedAll := true
	dispensedAny := false
	for _, item := range p.Items {
		if item.DispensedQuantity > 0 {
			dispensedAny = true
		}
		if item.DispensedQuantity < item.PrescribedQuantity {
			dispensedAll = false
		}
	}
	switch {
	case dispensedAll:
		p.Status = PrescriptionDispensed
	case dispensedAny:
		p.Status = PrescriptionPartiallyDispensed
	default:
		p.Status = PrescriptionPending
	}
}

// Cancel voids an unfulfilled prescription.
func (p *Prescription) Cancel() error {
	if p.Status == PrescriptionDispensed {
		return dErrors.New(dErrors.CodeInvalidState, "cannot cancel a fully dispensed prescription")
	}
	p.Status = PrescriptionCancelled
	return nil
}

// MarkCollected stamps the OTP-verified hand-over.
func (p *Prescription) MarkCollected(now time.Time) error {
	if p.Status != PrescriptionDispensed && p.Status != PrescriptionPartiallyDispensed {
		return dErrors.Newf(dErrors.CodeInvalidState, "nothing dispensed to collect (status %q)", p.Status)
	}
	p.CollectedAt = &now
	return nil
}
