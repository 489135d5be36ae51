package domain

import (
	"fmt"
	"time"
)

// AssignmentStatus is the progress state of one member on one call.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusEnroute   AssignmentStatus = "enroute"
	AssignmentStatusOnScene   AssignmentStatus = "onscene"
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

// assignmentRank orders the linear assignment progression. Progression is
// monotonic: a transition may skip forward but never move backward.
var assignmentRank = map[AssignmentStatus]int{
	AssignmentStatusAssigned:  0,
	AssignmentStatusEnroute:   1,
	AssignmentStatusOnScene:   2,
	AssignmentStatusCompleted: 3,
}

// Valid reports whether s is a known assignment status.
func (s AssignmentStatus) Valid() bool {
	_, ok := assignmentRank[s]
	return ok
}

// CanAdvanceTo reports whether an assignment may move from s to next.
func (s AssignmentStatus) CanAdvanceTo(next AssignmentStatus) bool {
	cur, ok := assignmentRank[s]
	if !ok {
		return false
	}
	nxt, ok := assignmentRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// CallAssignment links a member to a call. At most one assignment may exist
// per (call, member) pair; the composite unique index enforces it.
type CallAssignment struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CallID      uint             `gorm:"not null;uniqueIndex:idx_call_member" json:"callId"`
	MemberID    uint             `gorm:"not null;uniqueIndex:idx_call_member;index" json:"memberId"`
	ETA         *int             `json:"eta,omitempty"` // minutes
	Status      AssignmentStatus `gorm:"size:20;index;not null" json:"status"`
	AssignedAt  time.Time        `gorm:"not null" json:"assignedAt"`
	ArrivedAt   *time.Time       `json:"arrivedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"-"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"-"`
}

// Advance moves the assignment forward to next, stamping arrival and
// completion times as the state is reached.
func (a *CallAssignment) Advance(next AssignmentStatus, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown assignment status %q", ErrInvalidTransition, next)
	}
	if !a.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: assignment cannot move from %q to %q", ErrInvalidTransition, a.Status, next)
	}
	a.Status = next
	switch next {
	case AssignmentStatusOnScene:
		if a.ArrivedAt == nil {
			a.ArrivedAt = &now
		}
	case AssignmentStatusCompleted:
		if a.ArrivedAt == nil {
			a.ArrivedAt = &now
		}
		a.CompletedAt = &now
	}
	return nil
}
