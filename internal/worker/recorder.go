package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/repository"
	"dispatch-center/internal/tasks"
)

// AsynqAuditRecorder implements service.AuditRecorder by enqueueing entries
// for asynchronous persistence. When the queue is unavailable it falls back
// to a direct synchronous write so the journal stays complete.
type AsynqAuditRecorder struct {
	client   *asynq.Client
	fallback repository.AuditRepository
}

// NewAsynqAuditRecorder creates an AsynqAuditRecorder.
func NewAsynqAuditRecorder(client *asynq.Client, fallback repository.AuditRepository) *AsynqAuditRecorder {
	if client == nil {
		panic("asynq client cannot be nil for AsynqAuditRecorder")
	}
	if fallback == nil {
		panic("fallback AuditRepository cannot be nil for AsynqAuditRecorder")
	}
	return &AsynqAuditRecorder{client: client, fallback: fallback}
}

// Record enqueues the entry on the low-priority queue.
func (r *AsynqAuditRecorder) Record(ctx context.Context, entry domain.AuditEntry) error {
	payload, err := tasks.NewAuditPersistTask(entry)
	if err != nil {
		return fmt.Errorf("serialize audit entry: %w", err)
	}

	task := asynq.NewTask(tasks.TypeAuditPersist, payload)
	if _, err := r.client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
		logrus.WithError(err).WithField("action", entry.Action).
			Warn("Audit enqueue failed, falling back to synchronous write")
		e := entry
		if err := r.fallback.Append(ctx, &e); err != nil {
			return fmt.Errorf("audit fallback write: %w", err)
		}
	}
	return nil
}
