package tasks

import (
	"encoding/json"

	"dispatch-center/internal/domain"
)

// Task type constants for the asynq worker.
const (
	// TypeAuditPersist writes one audit entry to the session store.
	TypeAuditPersist = "audit:persist"
	// TypeQueueRefresh re-broadcasts queue state as a convergence backstop
	// against events lost under the at-most-once delivery model.
	TypeQueueRefresh = "queue:refresh"
)

// AuditPersistPayload is the payload of an audit persistence task.
type AuditPersistPayload struct {
	Entry domain.AuditEntry `json:"entry"`
}

// NewAuditPersistTask serializes the payload for an audit persistence task.
func NewAuditPersistTask(entry domain.AuditEntry) ([]byte, error) {
	return json.Marshal(AuditPersistPayload{Entry: entry})
}

// NewQueueRefreshTask serializes the (empty) payload for a queue refresh.
func NewQueueRefreshTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
