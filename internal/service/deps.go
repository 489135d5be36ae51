package service

import (
	"context"

	"dispatch-center/internal/domain"
)

// Broadcaster fans a domain event out to every connection subscribed to its
// room. Implemented by hub.Hub; mocked in tests. Delivery is best-effort and
// happens only after the backing store committed the mutation.
type Broadcaster interface {
	Broadcast(event domain.Event)
}

// AuditRecorder journals a dispatcher mutation. The production implementation
// enqueues the entry for asynchronous persistence and falls back to a direct
// write when the queue is unavailable.
type AuditRecorder interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

// NumberAllocator hands out monotonic call numbers scoped to a period.
// Implemented by the redis state repository.
type NumberAllocator interface {
	NextCallNumber(ctx context.Context, period string) (int64, error)
}
