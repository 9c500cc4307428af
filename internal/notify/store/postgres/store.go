package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"shacore/internal/notify"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	txcontext "shacore/pkg/platform/tx"
)

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

func (s *Store) Create(ctx context.Context, n *notify.Notification) error {
	const query = `
		INSERT INTO notifications (id, recipient, type, method, title, message, contact, created_at, sent_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(n.ID), n.Recipient, string(n.Type), string(n.Method),
		n.Title, n.Message, n.Contact, n.CreatedAt, n.SentAt, n.ReadAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, nid id.NotificationID) (*notify.Notification, error) {
	const query = `
		SELECT id, recipient, type, method, title, message, contact, created_at, sent_at, read_at
		FROM notifications WHERE id = $1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(nid)))
}

func (s *Store) Update(ctx context.Context, n *notify.Notification) error {
	const query = `UPDATE notifications SET sent_at = $2, read_at = $3 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(n.ID), n.SentAt, n.ReadAt)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update notification rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) ListByRecipient(ctx context.Context, recipient string, params pagination.Params) (pagination.Page[notify.Notification], error) {
	params = params.Normalize()
	var page pagination.Page[notify.Notification]
	ex := s.execer(ctx)

	if err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient = $1`, recipient,
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count notifications: %w", err)
	}

	const query = `
		SELECT id, recipient, type, method, title, message, contact, created_at, sent_at, read_at
		FROM notifications
		WHERE recipient = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := ex.QueryContext(ctx, query, recipient, params.PerPage, params.Offset())
	if err != nil {
		return page, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *n)
	}
	page.PageNumber = params.Page
	page.PerPage = params.PerPage
	return page, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(row *sql.Row) (*notify.Notification, error) {
	n, err := scanNotification(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func scanNotification(row rowScanner) (*notify.Notification, error) {
	var n notify.Notification
	var nid uuid.UUID
	var typ, method string
	if err := row.Scan(&nid, &n.Recipient, &typ, &method, &n.Title, &n.Message,
		&n.Contact, &n.CreatedAt, &n.SentAt, &n.ReadAt); err != nil {
		return nil, err
	}
	n.ID = id.NotificationID(nid)
	n.Type = notify.Type(typ)
	n.Method = notify.Method(method)
	return &n, nil
}
