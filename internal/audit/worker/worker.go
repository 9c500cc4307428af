// Package worker drains the audit outbox into Kafka. The outbox insert
// commits with the business transaction; this worker makes delivery eventual
// without ever blocking a request on the broker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shacore/internal/audit/publisher"
	auditpg "shacore/internal/audit/store/postgres"
)

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 100
)

// Worker polls the outbox and publishes unacknowledged events.
type Worker struct {
	store     *auditpg.Store
	publisher publisher.Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func New(store *auditpg.Store, pub publisher.Publisher, logger *slog.Logger) *Worker {
	return &Worker{
		store:     store,
		publisher: pub,
		logger:    logger,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
}

// Run polls until the context is cancelled. Failed publishes are retried on
// the next tick because rows are only marked published after the broker ack.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	batch, err := w.store.UnpublishedBatch(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(batch))
	for _, rec := range batch {
		if err := w.publisher.Publish(ctx, rec.SubjectID, rec.Payload); err != nil {
			// Stop at the first failure; leave the rest for the next tick so
			// per-subject ordering holds.
			break
		}
		published = append(published, rec.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.store.MarkPublished(ctx, published)
}
