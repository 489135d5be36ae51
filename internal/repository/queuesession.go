package repository

import (
	"context"
	"time"

	"dispatch-center/internal/domain"
)

// QueueSessionRepository stores dispatcher phone-queue sessions.
//
// Create is the serialization point for the at-most-one-active-session
// invariant: the unique index on the active key turns a concurrent duplicate
// login into ErrDuplicateEntry, so exactly one of N racing logins wins.
type QueueSessionRepository interface {
	// Create atomically inserts a session. An active session already holding
	// the same (member, queue) pair surfaces as ErrDuplicateEntry.
	Create(ctx context.Context, s *domain.QueueSession) error

	// FindActive returns the active session for (member, queue), or
	// ErrSessionNotFound.
	FindActive(ctx context.Context, memberID uint, queue domain.QueueName) (*domain.QueueSession, error)

	// ListActive returns every active session, earliest login first.
	ListActive(ctx context.Context) ([]domain.QueueSession, error)

	// EarliestActive returns the active session on queue with the earliest
	// login time, or ErrSessionNotFound when the queue is empty.
	EarliestActive(ctx context.Context, queue domain.QueueName) (*domain.QueueSession, error)

	// Deactivate closes the active session for (member, queue) and returns
	// the number of rows affected (0 is a no-op, not an error).
	Deactivate(ctx context.Context, memberID uint, queue domain.QueueName, logoutTime time.Time) (int64, error)

	// DeactivateAllForMember closes every active session the member holds.
	DeactivateAllForMember(ctx context.Context, memberID uint, logoutTime time.Time) (int64, error)

	// DeactivateAll closes every active session across all queues.
	DeactivateAll(ctx context.Context, logoutTime time.Time) (int64, error)
}

// AuditRepository appends dispatcher audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
}
