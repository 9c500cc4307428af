package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"shacore/internal/audit"
	"shacore/pkg/pagination"
	txcontext "shacore/pkg/platform/tx"
)

// Store persists audit entries and, in the same statement batch, writes an
// outbox row so the Kafka worker can fan the event out to downstream
// consumers. The audit_logs table is the system of record; the table has no
// UPDATE or DELETE path anywhere in this codebase.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	ex := s.execer(ctx)

	const insertLog = `
		INSERT INTO audit_logs (id, actor, action, subject_type, subject_id, description, ip_address, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := ex.ExecContext(ctx, insertLog,
		entry.ID, entry.Actor, string(entry.Action), entry.SubjectType, entry.SubjectID,
		entry.Description, entry.IPAddress, entry.RequestID, entry.Timestamp,
	); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	const insertOutbox = `
		INSERT INTO audit_outbox (id, subject_type, subject_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := ex.ExecContext(ctx, insertOutbox,
		uuid.New(), entry.SubjectType, entry.SubjectID, string(entry.Action), payload, entry.Timestamp,
	); err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter audit.Filter, params pagination.Params) (pagination.Page[audit.Entry], error) {
	params = params.Normalize()
	where := " WHERE 1=1"
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}
	if filter.Actor != "" {
		add(" AND actor = $%d", filter.Actor)
	}
	if filter.Action != "" {
		add(" AND action = $%d", string(filter.Action))
	}
	if filter.SubjectType != "" {
		add(" AND subject_type = $%d", filter.SubjectType)
	}
	if filter.SubjectID != "" {
		add(" AND subject_id = $%d", filter.SubjectID)
	}

	var page pagination.Page[audit.Entry]
	ex := s.execer(ctx)

	countQuery := "SELECT COUNT(*) FROM audit_logs" + where
	if err := ex.QueryRowContext(ctx, countQuery, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count audit entries: %w", err)
	}

	query := `SELECT id, actor, action, subject_type, subject_id, description, ip_address, request_id, created_at
		FROM audit_logs` + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := ex.QueryContext(ctx, query, append(args, params.PerPage, params.Offset())...)
	if err != nil {
		return page, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e audit.Entry
		var action string
		if err := rows.Scan(&e.ID, &e.Actor, &action, &e.SubjectType, &e.SubjectID,
			&e.Description, &e.IPAddress, &e.RequestID, &e.Timestamp); err != nil {
			return page, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.ActionKind(action)
		page.Items = append(page.Items, e)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

// OutboxRecord is one unpublished audit event awaiting Kafka delivery.
type OutboxRecord struct {
	ID        uuid.UUID
	EventType string
	SubjectID string
	Payload   []byte
	CreatedAt time.Time
}

// UnpublishedBatch claims up to limit outbox rows for publishing. SKIP LOCKED
// lets multiple workers drain the outbox without stepping on each other.
func (s *Store) UnpublishedBatch(ctx context.Context, limit int) ([]OutboxRecord, error) {
	const query = `
		SELECT id, event_type, subject_id, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select outbox batch: %w", err)
	}
	defer rows.Close()

	var batch []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.SubjectID, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		batch = append(batch, rec)
	}
	return batch, rows.Err()
}

// MarkPublished stamps outbox rows after the broker acknowledged them.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE audit_outbox SET published_at = NOW() WHERE id = ANY($1)`
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	if _, err := s.execer(ctx).ExecContext(ctx, query, pq.Array(strIDs)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
