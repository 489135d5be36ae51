package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/repository"
	"dispatch-center/internal/tasks"
)

// AuditPersistHandler writes queued audit entries to the session store.
type AuditPersistHandler struct {
	auditRepo repository.AuditRepository
}

// NewAuditPersistHandler creates an AuditPersistHandler.
func NewAuditPersistHandler(auditRepo repository.AuditRepository) *AuditPersistHandler {
	if auditRepo == nil {
		panic("AuditRepository cannot be nil for AuditPersistHandler")
	}
	return &AuditPersistHandler{auditRepo: auditRepo}
}

// ProcessTask persists one audit entry. Errors are returned so asynq retries.
func (h *AuditPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.AuditPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Malformed payloads never succeed; skip retries.
		return fmt.Errorf("unmarshal audit payload: %v: %w", err, asynq.SkipRetry)
	}

	entry := payload.Entry
	if err := h.auditRepo.Append(ctx, &entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"action":    entry.Action,
		"entity":    entry.Entity,
		"entity_id": entry.EntityID,
	}).Debug("Audit entry persisted")
	return nil
}
