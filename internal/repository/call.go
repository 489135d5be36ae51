package repository

import (
	"context"
	"time"

	"dispatch-center/internal/domain"
)

// CallRepository stores and retrieves assistance calls.
type CallRepository interface {
	// FindByID loads a call. Returns ErrCallNotFound when absent.
	FindByID(ctx context.Context, id uint) (*domain.Call, error)

	// Create inserts a new call. A call-number collision surfaces as
	// ErrDuplicateEntry.
	Create(ctx context.Context, call *domain.Call) error

	// Save persists field changes on an existing call.
	Save(ctx context.Context, call *domain.Call) error

	// UpdateStatus performs the atomic read-modify-write for a status
	// transition: the row is updated only while still in status from.
	// Returns ErrStaleState when a concurrent writer got there first.
	UpdateStatus(ctx context.Context, id uint, from, to domain.CallStatus, closedAt *time.Time) error

	// ListByStatus returns calls in the given status, newest first.
	ListByStatus(ctx context.Context, status domain.CallStatus) ([]domain.Call, error)
}

// AssignmentRepository stores per-member assignments owned by a call.
type AssignmentRepository interface {
	// Find loads the assignment for a (call, member) pair.
	// Returns ErrAssignmentNotFound when absent.
	Find(ctx context.Context, callID, memberID uint) (*domain.CallAssignment, error)

	// Create inserts an assignment. A second assignment for the same
	// (call, member) pair surfaces as ErrDuplicateEntry.
	Create(ctx context.Context, a *domain.CallAssignment) error

	// UpdateStatus performs the atomic status transition, conditional on the
	// row still being in status from. Returns ErrStaleState on a lost race.
	UpdateStatus(ctx context.Context, id uint, from, to domain.AssignmentStatus, arrivedAt, completedAt *time.Time) error

	// Delete removes the assignment for a (call, member) pair and reports
	// whether a row was deleted.
	Delete(ctx context.Context, callID, memberID uint) (bool, error)

	// ListByCall returns all assignments on a call.
	ListByCall(ctx context.Context, callID uint) ([]domain.CallAssignment, error)
}
