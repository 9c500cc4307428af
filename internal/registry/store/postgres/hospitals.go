package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"shacore/internal/registry/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

// HospitalStore persists hospitals and their staff.
type HospitalStore struct {
	base
}

func NewHospitalStore(db *sql.DB) *HospitalStore {
	return &HospitalStore{base{db: db}}
}

const hospitalColumns = `
	id, name, registration_number, type, level,
	email, phone_number, county_code, subcounty,
	license_number, license_expiry_date,
	status, registered_at, approved_at, approved_by
`

func (s *HospitalStore) Create(ctx context.Context, h *models.Hospital) error {
	const query = `
		INSERT INTO hospitals (` + hospitalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(h.ID), h.Name, h.RegistrationNumber, string(h.Type), h.Level,
		h.Email, h.PhoneNumber, h.CountyCode, h.SubCounty,
		h.LicenseNumber, h.LicenseExpiryDate,
		string(h.Status), h.RegisteredAt, h.ApprovedAt, h.ApprovedBy,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert hospital: %w", err))
	}
	return nil
}

func (s *HospitalStore) FindByID(ctx context.Context, hospitalID id.HospitalID) (*models.Hospital, error) {
	const query = `SELECT ` + hospitalColumns + ` FROM hospitals WHERE id = $1`
	h, err := scanHospital(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(hospitalID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

func (s *HospitalStore) Update(ctx context.Context, h *models.Hospital) error {
	const query = `
		UPDATE hospitals SET
			name = $2, type = $3, level = $4, email = $5, phone_number = $6,
			license_number = $7, license_expiry_date = $8,
			status = $9, approved_at = $10, approved_by = $11
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(h.ID), h.Name, string(h.Type), h.Level, h.Email, h.PhoneNumber,
		h.LicenseNumber, h.LicenseExpiryDate,
		string(h.Status), h.ApprovedAt, h.ApprovedBy,
	)
	if err != nil {
		return fmt.Errorf("update hospital: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update hospital rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *HospitalStore) List(ctx context.Context, filter models.HospitalFilter, params pagination.Params) (pagination.Page[models.Hospital], error) {
	params = params.Normalize()
	var page pagination.Page[models.Hospital]
	ex := s.execer(ctx)

	where, args := hospitalWhere(filter)

	if err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hospitals`+where, args...,
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count hospitals: %w", err)
	}

	query := `SELECT ` + hospitalColumns + ` FROM hospitals` + where +
		fmt.Sprintf(` ORDER BY registered_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, params.Offset())

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *h)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

func (s *HospitalStore) AddStaff(ctx context.Context, st *models.Staff) error {
	const query = `
		INSERT INTO hospital_staff (id, hospital_id, staff_number, full_name, role,
			license_number, is_active, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(st.ID), uuid.UUID(st.HospitalID), st.StaffNumber, st.FullName, string(st.Role),
		st.LicenseNumber, st.IsActive, st.DateJoined,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert staff: %w", err))
	}
	return nil
}

func (s *HospitalStore) FindStaff(ctx context.Context, staffID id.StaffID) (*models.Staff, error) {
	const query = `
		SELECT id, hospital_id, staff_number, full_name, role, license_number, is_active, date_joined
		FROM hospital_staff WHERE id = $1
	`
	st, err := scanStaff(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(staffID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

func (s *HospitalStore) ListStaff(ctx context.Context, hospitalID id.HospitalID) ([]models.Staff, error) {
	const query = `
		SELECT id, hospital_id, staff_number, full_name, role, license_number, is_active, date_joined
		FROM hospital_staff WHERE hospital_id = $1 ORDER BY date_joined
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(hospitalID))
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []models.Staff
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func hospitalWhere(filter models.HospitalFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.CountyCode != "" {
		args = append(args, filter.CountyCode)
		clauses = append(clauses, fmt.Sprintf("county_code = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR registration_number ILIKE $%d)", n, n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanHospital(row rowScanner) (*models.Hospital, error) {
	var h models.Hospital
	var hid uuid.UUID
	var typ, status string
	if err := row.Scan(&hid, &h.Name, &h.RegistrationNumber, &typ, &h.Level,
		&h.Email, &h.PhoneNumber, &h.CountyCode, &h.SubCounty,
		&h.LicenseNumber, &h.LicenseExpiryDate,
		&status, &h.RegisteredAt, &h.ApprovedAt, &h.ApprovedBy); err != nil {
		return nil, err
	}
	h.ID = id.HospitalID(hid)
	h.Type = models.HospitalType(typ)
	h.Status = models.Status(status)
	return &h, nil
}

func scanStaff(row rowScanner) (*models.Staff, error) {
	var st models.Staff
	var sid, hid uuid.UUID
	var role string
	if err := row.Scan(&sid, &hid, &st.StaffNumber, &st.FullName, &role,
		&st.LicenseNumber, &st.IsActive, &st.DateJoined); err != nil {
		return nil, err
	}
	st.ID = id.StaffID(sid)
	st.HospitalID = id.HospitalID(hid)
	st.Role = models.StaffRole(role)
	return &st, nil
}
