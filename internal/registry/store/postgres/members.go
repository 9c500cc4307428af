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

// MemberStore persists members.
type MemberStore struct {
	base
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{base{db: db}}
}

const memberColumns = `
	id, sha_number, first_name, middle_name, last_name, national_id,
	date_of_birth, gender, phone_number, email, physical_address,
	county_code, subcounty, status, registered_at, approved_at, approved_by
`

func (s *MemberStore) Create(ctx context.Context, m *models.Member) error {
	const query = `
		INSERT INTO members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(m.ID), m.SHANumber, m.FirstName, m.MiddleName, m.LastName, m.NationalID,
		m.DateOfBirth, string(m.Gender), m.PhoneNumber, m.Email, m.PhysicalAddress,
		m.CountyCode, m.SubCounty, string(m.Status), m.RegisteredAt, m.ApprovedAt, m.ApprovedBy,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert member: %w", err))
	}
	return nil
}

func (s *MemberStore) FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	const query = `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	return scanMemberRow(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(memberID)))
}

func (s *MemberStore) FindBySHANumber(ctx context.Context, shaNumber string) (*models.Member, error) {
	const query = `SELECT ` + memberColumns + ` FROM members WHERE sha_number = $1`
	return scanMemberRow(s.execer(ctx).QueryRowContext(ctx, query, shaNumber))
}

func (s *MemberStore) SHANumberTaken(ctx context.Context, shaNumber string) (bool, error) {
	var taken bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE sha_number = $1)`, shaNumber,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check sha number: %w", err)
	}
	return taken, nil
}

func (s *MemberStore) Update(ctx context.Context, m *models.Member) error {
	const query = `
		UPDATE members SET
			first_name = $2, middle_name = $3, last_name = $4,
			phone_number = $5, email = $6, physical_address = $7,
			county_code = $8, subcounty = $9,
			status = $10, approved_at = $11, approved_by = $12
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(m.ID), m.FirstName, m.MiddleName, m.LastName,
		m.PhoneNumber, m.Email, m.PhysicalAddress, m.CountyCode, m.SubCounty,
		string(m.Status), m.ApprovedAt, m.ApprovedBy,
	)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *MemberStore) List(ctx context.Context, filter models.MemberFilter, params pagination.Params) (pagination.Page[models.Member], error) {
	params = params.Normalize()
	var page pagination.Page[models.Member]
	ex := s.execer(ctx)

	where, args := memberWhere(filter)

	if err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members`+where, args...,
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count members: %w", err)
	}

	query := `SELECT ` + memberColumns + ` FROM members` + where +
		fmt.Sprintf(` ORDER BY registered_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, params.Offset())

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *m)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

func memberWhere(filter models.MemberFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CountyCode != "" {
		args = append(args, filter.CountyCode)
		clauses = append(clauses, fmt.Sprintf("county_code = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(sha_number ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d OR national_id ILIKE $%d)", n, n, n, n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanMemberRow(row *sql.Row) (*models.Member, error) {
	m, err := scanMember(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func scanMember(row rowScanner) (*models.Member, error) {
	var m models.Member
	var mid uuid.UUID
	var gender, status string
	if err := row.Scan(&mid, &m.SHANumber, &m.FirstName, &m.MiddleName, &m.LastName, &m.NationalID,
		&m.DateOfBirth, &gender, &m.PhoneNumber, &m.Email, &m.PhysicalAddress,
		&m.CountyCode, &m.SubCounty, &status, &m.RegisteredAt, &m.ApprovedAt, &m.ApprovedBy); err != nil {
		return nil, err
	}
	m.ID = id.MemberID(mid)
	m.Gender = models.Gender(gender)
	m.Status = models.Status(status)
	return &m, nil
}
