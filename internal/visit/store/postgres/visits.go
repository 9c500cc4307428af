package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shacore/internal/visit/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

// VisitStore persists visits.
type VisitStore struct {
	base
}

func NewVisitStore(db *sql.DB) *VisitStore {
	return &VisitStore{base{db: db}}
}

const visitColumns = `
	id, visit_number, member_id, hospital_id, attending_staff_id, type, status,
	scheduled_at, checked_in_at, checked_out_at, chief_complaint, notes, diagnosis
`

func (s *VisitStore) Create(ctx context.Context, v *models.Visit) error {
	const query = `
		INSERT INTO hospital_visits (` + visitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	var staffID any
	if v.AttendingStaffID != nil {
		staffID = uuid.UUID(*v.AttendingStaffID)
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(v.ID), v.VisitNumber, uuid.UUID(v.MemberID), uuid.UUID(v.HospitalID), staffID,
		string(v.Type), string(v.Status), v.ScheduledAt, v.CheckedInAt, v.CheckedOutAt,
		v.ChiefComplaint, v.Notes, v.Diagnosis,
	)
	if err != nil {
		return translateConflict(fmt.Errorf("insert visit: %w", err))
	}
	return nil
}

func (s *VisitStore) FindByID(ctx context.Context, visitID id.VisitID) (*models.Visit, error) {
	const query = `SELECT ` + visitColumns + ` FROM hospital_visits WHERE id = $1`
	v, err := scanVisit(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(visitID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *VisitStore) VisitNumberTaken(ctx context.Context, visitNumber string) (bool, error) {
	var taken bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM hospital_visits WHERE visit_number = $1)`, visitNumber,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check visit number: %w", err)
	}
	return taken, nil
}

func (s *VisitStore) Update(ctx context.Context, v *models.Visit) error {
	const query = `
		UPDATE hospital_visits SET
			attending_staff_id = $2, status = $3, checked_in_at = $4,
			checked_out_at = $5, chief_complaint = $6, notes = $7, diagnosis = $8
		WHERE id = $1
	`
	var staffID any
	if v.AttendingStaffID != nil {
		staffID = uuid.UUID(*v.AttendingStaffID)
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(v.ID), staffID, string(v.Status), v.CheckedInAt,
		v.CheckedOutAt, v.ChiefComplaint, v.Notes, v.Diagnosis,
	)
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visit rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *VisitStore) List(ctx context.Context, filter models.VisitFilter, params pagination.Params) (pagination.Page[models.Visit], error) {
	params = params.Normalize()
	var page pagination.Page[models.Visit]
	ex := s.execer(ctx)

	var clauses []string
	var args []any
	if !filter.MemberID.IsNil() {
		args = append(args, uuid.UUID(filter.MemberID))
		clauses = append(clauses, fmt.Sprintf("member_id = $%d", len(args)))
	}
	if !filter.HospitalID.IsNil() {
		args = append(args, uuid.UUID(filter.HospitalID))
		clauses = append(clauses, fmt.Sprintf("hospital_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	if err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hospital_visits`+where, args...,
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count visits: %w", err)
	}

	query := `SELECT ` + visitColumns + ` FROM hospital_visits` + where +
		fmt.Sprintf(` ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, params.Offset())

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *v)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

func scanVisit(row rowScanner) (*models.Visit, error) {
	var v models.Visit
	var vid, memberID, hospitalID uuid.UUID
	var staffID uuid.NullUUID
	var typ, status string
	if err := row.Scan(&vid, &v.VisitNumber, &memberID, &hospitalID, &staffID, &typ, &status,
		&v.ScheduledAt, &v.CheckedInAt, &v.CheckedOutAt, &v.ChiefComplaint, &v.Notes, &v.Diagnosis); err != nil {
		return nil, err
	}
	v.ID = id.VisitID(vid)
	v.MemberID = id.MemberID(memberID)
	v.HospitalID = id.HospitalID(hospitalID)
	if staffID.Valid {
		sid := id.StaffID(staffID.UUID)
		v.AttendingStaffID = &sid
	}
	v.Type = models.VisitType(typ)
	v.Status = models.VisitStatus(status)
	return &v, nil
}

// OTPStore persists verification codes.
type OTPStore struct {
	base
}

func NewOTPStore(db *sql.DB) *OTPStore {
	return &OTPStore{base{db: db}}
}

func (s *OTPStore) Create(ctx context.Context, otp *models.OTP) error {
	const query = `
		INSERT INTO otps (id, member_id, code, purpose, created_at, expires_at, is_used, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(otp.ID), uuid.UUID(otp.MemberID), otp.Code, string(otp.Purpose),
		otp.CreatedAt, otp.ExpiresAt, otp.IsUsed, otp.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

func (s *OTPStore) FindByCode(ctx context.Context, memberID id.MemberID, code string, purpose models.OTPPurpose) (*models.OTP, error) {
	const query = `
		SELECT id, member_id, code, purpose, created_at, expires_at, is_used, used_at
		FROM otps
		WHERE member_id = $1 AND code = $2 AND purpose = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	var otp models.OTP
	var oid, mid uuid.UUID
	var p string
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(memberID), code, string(purpose)).
		Scan(&oid, &mid, &otp.Code, &p, &otp.CreatedAt, &otp.ExpiresAt, &otp.IsUsed, &otp.UsedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	otp.ID = id.OTPID(oid)
	otp.MemberID = id.MemberID(mid)
	otp.Purpose = models.OTPPurpose(p)
	return &otp, nil
}

// Consume marks a code used if and only if it still isn't. The WHERE clause
// makes double-spending impossible: of two racing callers exactly one sees a
// row updated.
func (s *OTPStore) Consume(ctx context.Context, otpID id.OTPID, now time.Time) (bool, error) {
	const query = `
		UPDATE otps SET is_used = TRUE, used_at = $2
		WHERE id = $1 AND is_used = FALSE
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(otpID), now)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume otp rows affected: %w", err)
	}
	return affected == 1, nil
}
