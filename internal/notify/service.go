package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shacore/internal/platform/metrics"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
	"shacore/pkg/requestcontext"
)

// Store is the persistence port for notification records.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, nid id.NotificationID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipient string, params pagination.Params) (pagination.Page[Notification], error)
}

// Deliverer is the external delivery port. Implementations wrap an SMS
// gateway or mail relay; failures are non-fatal to the business operation
// that triggered the notification.
type Deliverer interface {
	Send(ctx context.Context, contact string, method Method, title, body string) error
}

// LogDeliverer is the development fallback: it only logs what would be sent.
type LogDeliverer struct {
	Logger *slog.Logger
}

func (d LogDeliverer) Send(ctx context.Context, contact string, method Method, title, _ string) error {
	d.Logger.InfoContext(ctx, "notification delivery (log only)",
		"contact", contact, "method", string(method), "title", title)
	return nil
}

// Service enqueues notifications and tracks their delivery state.
type Service struct {
	store     Store
	deliverer Deliverer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewService(store Store, deliverer Deliverer, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, deliverer: deliverer, logger: logger, metrics: m}
}

// Enqueue persists a delivery-pending record and hands it to the deliverer.
// A delivery failure is logged and leaves SentAt unset for external retry; it
// never propagates to the caller.
func (s *Service) Enqueue(ctx context.Context, recipient string, typ Type, method Method, contact, title, message string) (*Notification, error) {
	if recipient == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "notification recipient is required")
	}
	n := &Notification{
		ID:        id.NewNotificationID(),
		Recipient: recipient,
		Type:      typ,
		Method:    method,
		Contact:   contact,
		Title:     title,
		Message:   message,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record notification")
	}
	if s.metrics != nil {
		s.metrics.NotificationsQueued.Inc()
	}

	if s.deliverer != nil {
		if err := s.deliverer.Send(ctx, contact, method, title, message); err != nil {
			s.logger.WarnContext(ctx, "notification delivery failed",
				"notification_id", n.ID.String(), "method", string(method), "error", err)
			return n, nil
		}
		now := time.Now().UTC()
		n.SentAt = &now
		if err := s.store.Update(ctx, n); err != nil {
			s.logger.WarnContext(ctx, "failed to mark notification sent",
				"notification_id", n.ID.String(), "error", err)
		}
	}
	return n, nil
}

// MarkRead stamps the read time once; later calls are no-ops.
func (s *Service) MarkRead(ctx context.Context, nid id.NotificationID) (*Notification, error) {
	n, err := s.store.FindByID(ctx, nid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notification")
	}
	if n.ReadAt == nil {
		now := requestcontext.Now(ctx)
		n.ReadAt = &now
		if err := s.store.Update(ctx, n); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
		}
	}
	return n, nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (s *Service) ListForRecipient(ctx context.Context, recipient string, params pagination.Params) (pagination.Page[Notification], error) {
	return s.store.ListByRecipient(ctx, recipient, params)
}
