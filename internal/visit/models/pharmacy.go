package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

// Medicine is a catalog entry, shared across hospitals.
type Medicine struct {
	ID                   id.MedicineID   `json:"id"`
	Name                 string          `json:"name"`
	GenericName          string          `json:"generic_name,omitempty"`
	Code                 string          `json:"code"`
	Form                 string          `json:"form,omitempty"`
	Strength             string          `json:"strength,omitempty"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	RequiresPrescription bool            `json:"requires_prescription"`
}

func NewMedicine(medicineID id.MedicineID, name, code string, unitPrice decimal.Decimal) (*Medicine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "medicine name is required")
	}
	if strings.TrimSpace(code) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "medicine code is required")
	}
	if unitPrice.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "unit price cannot be negative")
	}
	return &Medicine{
		ID:                   medicineID,
		Name:                 name,
		Code:                 strings.TrimSpace(code),
		UnitPrice:            unitPrice,
		RequiresPrescription: true,
	}, nil
}

// Stock is one hospital's holding of one medicine batch. Unique per
// (hospital, medicine, batch); CurrentStock never goes negative — the store's
// conditional decrement guarantees it.
type Stock struct {
	ID           id.StockID    `json:"id"`
	HospitalID   id.HospitalID `json:"hospital_id"`
	MedicineID   id.MedicineID `json:"medicine_id"`
	BatchNumber  string        `json:"batch_number"`
	CurrentStock int           `json:"current_stock"`
	MinimumLevel int           `json:"minimum_level"`
	MaximumLevel int           `json:"maximum_level"`
	ExpiryDate   time.Time     `json:"expiry_date"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func NewStock(stockID id.StockID, hospitalID id.HospitalID, medicineID id.MedicineID, batchNumber string, quantity, minLevel, maxLevel int, expiry, now time.Time) (*Stock, error) {
	if strings.TrimSpace(batchNumber) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "batch number is required")
	}
	if quantity < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "stock quantity cannot be negative")
	}
	if minLevel < 0 || (maxLevel > 0 && maxLevel < minLevel) {
		return nil, dErrors.New(dErrors.CodeValidation, "stock levels are inconsistent")
	}
	return &Stock{
		ID:           stockID,
		HospitalID:   hospitalID,
		MedicineID:   medicineID,
		BatchNumber:  strings.TrimSpace(batchNumber),
		CurrentStock: quantity,
		MinimumLevel: minLevel,
		MaximumLevel: maxLevel,
		ExpiryDate:   expiry,
		UpdatedAt:    now,
	}, nil
}

// LowStock reports whether the batch has fallen to its reorder level.
func (s *Stock) LowStock() bool {
	return s.CurrentStock <= s.MinimumLevel
}

// Expired reports whether the batch is past its expiry date.
func (s *Stock) Expired(now time.Time) bool {
	return now.After(s.ExpiryDate)
}
