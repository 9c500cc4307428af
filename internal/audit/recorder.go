package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"shacore/internal/platform/metrics"
	"shacore/pkg/pagination"
	"shacore/pkg/requestcontext"
)

// Store is the persistence port for audit entries. Append must honor a
// transaction found in the context so entries commit atomically with the
// mutation they describe.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[Entry], error)
}

// Recorder is what services hold. It stamps entries with the request-scoped
// actor, client IP, correlation id and time before appending.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRecorder(store Store, logger *slog.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{store: store, logger: logger, metrics: m}
}

// Record appends one entry for a state-changing operation. Callers invoke it
// inside their transaction; a returned error aborts the whole operation so no
// mutation is recorded without its audit trail.
func (r *Recorder) Record(ctx context.Context, action ActionKind, subjectType, subjectID, description string) (Entry, error) {
	entry := Entry{
		ID:          uuid.New(),
		Actor:       requestcontext.ActorID(ctx),
		Action:      action,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Description: description,
		IPAddress:   requestcontext.ClientIP(ctx),
		RequestID:   requestcontext.RequestID(ctx),
		Timestamp:   requestcontext.Now(ctx),
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return Entry{}, err
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "audit",
			"action", string(action),
			"subject_type", subjectType,
			"subject_id", subjectID,
			"actor", entry.Actor,
			"request_id", entry.RequestID,
		)
	}
	if r.metrics != nil {
		r.metrics.AuditEvents.Inc()
	}
	return entry, nil
}

// List exposes the audit trail to the admin read API.
func (r *Recorder) List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[Entry], error) {
	return r.store.List(ctx, filter, params)
}
