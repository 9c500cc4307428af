package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shacore/internal/visit/models"
	id "shacore/pkg/domain"
	"shacore/pkg/platform/sentinel"
)

// PrescriptionStore persists prescriptions and their item lines.
type PrescriptionStore struct {
	base
}

func NewPrescriptionStore(db *sql.DB) *PrescriptionStore {
	return &PrescriptionStore{base{db: db}}
}

func (s *PrescriptionStore) Create(ctx context.Context, p *models.Prescription) error {
	ex := s.execer(ctx)

	const insertHead = `
		INSERT INTO prescriptions (id, prescription_number, visit_id, prescribed_by, status, notes, created_at, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var prescribedBy any
	if p.PrescribedBy != nil {
		prescribedBy = uuid.UUID(*p.PrescribedBy)
	}
	if _, err := ex.ExecContext(ctx, insertHead,
		uuid.UUID(p.ID), p.PrescriptionNumber, uuid.UUID(p.VisitID), prescribedBy,
		string(p.Status), p.Notes, p.CreatedAt, p.CollectedAt,
	); err != nil {
		return translateConflict(fmt.Errorf("insert prescription: %w", err))
	}

	const insertItem = `
		INSERT INTO prescription_items (prescription_id, medicine_id, quantity_prescribed, quantity_dispensed, dosage, duration)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, item := range p.Items {
		if _, err := ex.ExecContext(ctx, insertItem,
			uuid.UUID(p.ID), uuid.UUID(item.MedicineID), item.PrescribedQuantity,
			item.DispensedQuantity, item.Dosage, item.Duration,
		); err != nil {
			return fmt.Errorf("insert prescription item: %w", err)
		}
	}
	return nil
}

func (s *PrescriptionStore) FindByID(ctx context.Context, prescriptionID id.PrescriptionID) (*models.Prescription, error) {
	const query = `
		SELECT id, prescription_number, visit_id, prescribed_by, status, notes, created_at, collected_at
		FROM prescriptions WHERE id = $1
	`
	p, err := scanPrescription(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(prescriptionID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	if err := s.loadItems(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PrescriptionStore) NumberTaken(ctx context.Context, prescriptionNumber string) (bool, error) {
	var taken bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM prescriptions WHERE prescription_number = $1)`, prescriptionNumber,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check prescription number: %w", err)
	}
	return taken, nil
}

func (s *PrescriptionStore) Update(ctx context.Context, p *models.Prescription) error {
	ex := s.execer(ctx)

	const updateHead = `UPDATE prescriptions SET status = $2, notes = $3, collected_at = $4 WHERE id = $1`
	res, err := ex.ExecContext(ctx, updateHead, uuid.UUID(p.ID), string(p.Status), p.Notes, p.CollectedAt)
	if err != nil {
		return fmt.Errorf("update prescription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update prescription rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	const updateItem = `
		UPDATE prescription_items SET quantity_dispensed = $3
		WHERE prescription_id = $1 AND medicine_id = $2
	`
	for _, item := range p.Items {
		if _, err := ex.ExecContext(ctx, updateItem,
			uuid.UUID(p.ID), uuid.UUID(item.MedicineID), item.DispensedQuantity,
		); err != nil {
			return fmt.Errorf("update prescription item: %w", err)
		}
	}
	return nil
}

func (s *PrescriptionStore) ListByVisit(ctx context.Context, visitID id.VisitID) ([]models.Prescription, error) {
	const query = `
		SELECT id, prescription_number, visit_id, prescribed_by, status, notes, created_at, collected_at
		FROM prescriptions WHERE visit_id = $1 ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(visitID))
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var out []models.Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PrescriptionStore) loadItems(ctx context.Context, p *models.Prescription) error {
	const query = `
		SELECT medicine_id, quantity_prescribed, quantity_dispensed, dosage, duration
		FROM prescription_items WHERE prescription_id = $1 ORDER BY medicine_id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(p.ID))
	if err != nil {
		return fmt.Errorf("list prescription items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.Item
		var medicineID uuid.UUID
		if err := rows.Scan(&medicineID, &item.PrescribedQuantity, &item.DispensedQuantity,
			&item.Dosage, &item.Duration); err != nil {
			return fmt.Errorf("scan prescription item: %w", err)
		}
		item.MedicineID = id.MedicineID(medicineID)
		p.Items = append(p.Items, item)
	}
	return rows.Err()
}

func scanPrescription(row rowScanner) (*models.Prescription, error) {
	var p models.Prescription
	var pid, visitID uuid.UUID
	var prescribedBy uuid.NullUUID
	var status string
	if err := row.Scan(&pid, &p.PrescriptionNumber, &visitID, &prescribedBy, &status,
		&p.Notes, &p.CreatedAt, &p.CollectedAt); err != nil {
		return nil, err
	}
	p.ID = id.PrescriptionID(pid)
	p.VisitID = id.VisitID(visitID)
	if prescribedBy.Valid {
		sid := id.StaffID(prescribedBy.UUID)
		p.PrescribedBy = &sid
	}
	p.Status = models.PrescriptionStatus(status)
	return &p, nil
}

// PharmacyStore persists the medicine catalog and per-hospital stock.
type PharmacyStore struct {
	base
}

func NewPharmacyStore(db *sql.DB) *PharmacyStore {
	return &PharmacyStore{base{db: db}}
}

func (s *PharmacyStore) CreateMedicine(ctx context.Context, m *models.Medicine) error {
	const query = `
		INSERT INTO medicines (id, name, generic_name, code, form, strength, unit_price, requires_prescription)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(m.ID), m.Name, m.GenericName, m.Code, m.Form, m.Strength,
		m.UnitPrice.String(), m.RequiresPrescription,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert medicine: %w", err))
	}
	return nil
}

func (s *PharmacyStore) FindMedicine(ctx context.Context, medicineID id.MedicineID) (*models.Medicine, error) {
	const query = `
		SELECT id, name, generic_name, code, form, strength, unit_price, requires_prescription
		FROM medicines WHERE id = $1
	`
	var m models.Medicine
	var mid uuid.UUID
	var price string
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(medicineID)).
		Scan(&mid, &m.Name, &m.GenericName, &m.Code, &m.Form, &m.Strength, &price, &m.RequiresPrescription)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find medicine: %w", err)
	}
	m.ID = id.MedicineID(mid)
	if m.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse unit price: %w", err)
	}
	return &m, nil
}

func (s *PharmacyStore) CreateStock(ctx context.Context, st *models.Stock) error {
	const query = `
		INSERT INTO pharmacy_stock (id, hospital_id, medicine_id, batch_number,
			current_stock, minimum_level, maximum_level, expiry_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(st.ID), uuid.UUID(st.HospitalID), uuid.UUID(st.MedicineID), st.BatchNumber,
		st.CurrentStock, st.MinimumLevel, st.MaximumLevel, st.ExpiryDate, st.UpdatedAt,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert stock: %w", err))
	}
	return nil
}

func (s *PharmacyStore) FindStock(ctx context.Context, stockID id.StockID) (*models.Stock, error) {
	const query = `
		SELECT id, hospital_id, medicine_id, batch_number, current_stock,
			minimum_level, maximum_level, expiry_date, updated_at
		FROM pharmacy_stock WHERE id = $1
	`
	st, err := scanStock(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(stockID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

// Decrement takes quantity off a batch if and only if enough remains. Of two
// racing dispensers asking for the last units, exactly one sees a row
// updated; the other gets ErrInsufficient.
func (s *PharmacyStore) Decrement(ctx context.Context, stockID id.StockID, quantity int, now time.Time) error {
	const query = `
		UPDATE pharmacy_stock
		SET current_stock = current_stock - $2, updated_at = $3
		WHERE id = $1 AND current_stock >= $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(stockID), quantity, now)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindStock(ctx, stockID); err != nil {
			return err
		}
		return sentinel.ErrInsufficient
	}
	return nil
}

func (s *PharmacyStore) Increment(ctx context.Context, stockID id.StockID, quantity int, now time.Time) error {
	const query = `
		UPDATE pharmacy_stock
		SET current_stock = current_stock + $2, updated_at = $3
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(stockID), quantity, now)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment stock rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PharmacyStore) ListStock(ctx context.Context, hospitalID id.HospitalID) ([]models.Stock, error) {
	const query = `
		SELECT id, hospital_id, medicine_id, batch_number, current_stock,
			minimum_level, maximum_level, expiry_date, updated_at
		FROM pharmacy_stock WHERE hospital_id = $1 ORDER BY batch_number
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(hospitalID))
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var out []models.Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanStock(row rowScanner) (*models.Stock, error) {
	var st models.Stock
	var sid, hospitalID, medicineID uuid.UUID
	if err := row.Scan(&sid, &hospitalID, &medicineID, &st.BatchNumber, &st.CurrentStock,
		&st.MinimumLevel, &st.MaximumLevel, &st.ExpiryDate, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.ID = id.StockID(sid)
	st.HospitalID = id.HospitalID(hospitalID)
	st.MedicineID = id.MedicineID(medicineID)
	return &st, nil
}
