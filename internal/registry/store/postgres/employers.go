package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shacore/internal/registry/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

// EmployerStore persists employers and employment links.
type EmployerStore struct {
	base
}

func NewEmployerStore(db *sql.DB) *EmployerStore {
	return &EmployerStore{base{db: db}}
}

const employerColumns = `
	id, company_name, registration_number, tax_pin, industry,
	email, phone_number, county_code, contact_person_name, contact_person_phone,
	status, registered_at, approved_at, approved_by
`

func (s *EmployerStore) Create(ctx context.Context, e *models.Employer) error {
	const query = `
		INSERT INTO employers (` + employerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID), e.CompanyName, e.RegistrationNumber, e.TaxPIN, e.Industry,
		e.Email, e.PhoneNumber, e.CountyCode, e.ContactPersonName, e.ContactPersonPhone,
		string(e.Status), e.RegisteredAt, e.ApprovedAt, e.ApprovedBy,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert employer: %w", err))
	}
	return nil
}

func (s *EmployerStore) FindByID(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	const query = `SELECT ` + employerColumns + ` FROM employers WHERE id = $1`
	e, err := scanEmployer(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(employerID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EmployerStore) Update(ctx context.Context, e *models.Employer) error {
	const query = `
		UPDATE employers SET
			company_name = $2, industry = $3, email = $4, phone_number = $5,
			contact_person_name = $6, contact_person_phone = $7,
			status = $8, approved_at = $9, approved_by = $10
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID), e.CompanyName, e.Industry, e.Email, e.PhoneNumber,
		e.ContactPersonName, e.ContactPersonPhone,
		string(e.Status), e.ApprovedAt, e.ApprovedBy,
	)
	if err != nil {
		return fmt.Errorf("update employer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update employer rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *EmployerStore) List(ctx context.Context, status models.Status, params pagination.Params) (pagination.Page[models.Employer], error) {
	params = params.Normalize()
	var page pagination.Page[models.Employer]
	ex := s.execer(ctx)

	where := ""
	var args []any
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, string(status))
	}

	if err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM employers`+where, args...,
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count employers: %w", err)
	}

	query := `SELECT ` + employerColumns + ` FROM employers` + where +
		fmt.Sprintf(` ORDER BY registered_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, params.Offset())

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("list employers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEmployer(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *e)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

func (s *EmployerStore) LinkEmployment(ctx context.Context, emp *models.Employment) error {
	const query = `
		INSERT INTO employments (employer_id, member_id, employee_number, department,
			job_title, monthly_salary, contribution_rate, date_joined, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(emp.EmployerID), uuid.UUID(emp.MemberID), emp.EmployeeNumber, emp.Department,
		emp.JobTitle, emp.MonthlySalary.String(), emp.ContributionRate.String(), emp.DateJoined, emp.IsActive,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert employment: %w", err))
	}
	return nil
}

func (s *EmployerStore) FindEmployment(ctx context.Context, employerID id.EmployerID, memberID id.MemberID) (*models.Employment, error) {
	const query = `
		SELECT employer_id, member_id, employee_number, department, job_title,
			monthly_salary, contribution_rate, date_joined, is_active
		FROM employments WHERE employer_id = $1 AND member_id = $2
	`
	emp, err := scanEmployment(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(employerID), uuid.UUID(memberID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return emp, nil
}

func (s *EmployerStore) UpdateEmployment(ctx context.Context, emp *models.Employment) error {
	const query = `
		UPDATE employments SET employee_number = $3, department = $4, job_title = $5,
			monthly_salary = $6, contribution_rate = $7, is_active = $8
		WHERE employer_id = $1 AND member_id = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(emp.EmployerID), uuid.UUID(emp.MemberID), emp.EmployeeNumber, emp.Department,
		emp.JobTitle, emp.MonthlySalary.String(), emp.ContributionRate.String(), emp.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update employment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update employment rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *EmployerStore) ListEmployments(ctx context.Context, employerID id.EmployerID) ([]models.Employment, error) {
	const query = `
		SELECT employer_id, member_id, employee_number, department, job_title,
			monthly_salary, contribution_rate, date_joined, is_active
		FROM employments WHERE employer_id = $1 ORDER BY date_joined
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(employerID))
	if err != nil {
		return nil, fmt.Errorf("list employments: %w", err)
	}
	defer rows.Close()

	var out []models.Employment
	for rows.Next() {
		emp, err := scanEmployment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *emp)
	}
	return out, rows.Err()
}

func scanEmployer(row rowScanner) (*models.Employer, error) {
	var e models.Employer
	var eid uuid.UUID
	var status string
	if err := row.Scan(&eid, &e.CompanyName, &e.RegistrationNumber, &e.TaxPIN, &e.Industry,
		&e.Email, &e.PhoneNumber, &e.CountyCode, &e.ContactPersonName, &e.ContactPersonPhone,
		&status, &e.RegisteredAt, &e.ApprovedAt, &e.ApprovedBy); err != nil {
		return nil, err
	}
	e.ID = id.EmployerID(eid)
	e.Status = models.Status(status)
	return &e, nil
}

func scanEmployment(row rowScanner) (*models.Employment, error) {
	var emp models.Employment
	var employerID, memberID uuid.UUID
	var salary, rate string
	if err := row.Scan(&employerID, &memberID, &emp.EmployeeNumber, &emp.Department,
		&emp.JobTitle, &salary, &rate, &emp.DateJoined, &emp.IsActive); err != nil {
		return nil, err
	}
	emp.EmployerID = id.EmployerID(employerID)
	emp.MemberID = id.MemberID(memberID)
	var err error
	if emp.MonthlySalary, err = decimal.NewFromString(salary); err != nil {
		return nil, fmt.Errorf("parse monthly salary: %w", err)
	}
	if emp.ContributionRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse contribution rate: %w", err)
	}
	return &emp, nil
}
