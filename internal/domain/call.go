package domain

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CallStatus is the lifecycle state of an assistance call.
type CallStatus string

const (
	CallStatusActive    CallStatus = "active"
	CallStatusClosed    CallStatus = "closed"
	CallStatusAbandoned CallStatus = "abandoned"
)

// Valid reports whether s is a known call status.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusActive, CallStatusClosed, CallStatusAbandoned:
		return true
	}
	return false
}

// CanTransitionTo reports whether a call may move from s to next.
// The only cycle is active -> closed -> active (reopen); abandoned is
// reachable from active and is terminal.
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	switch s {
	case CallStatusActive:
		return next == CallStatusClosed || next == CallStatusAbandoned
	case CallStatusClosed:
		return next == CallStatusActive
	case CallStatusAbandoned:
		return false
	}
	return false
}

// Call is a dispatcher-created emergency-assistance call.
// Rows are never physically deleted; gorm soft-delete only.
type Call struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Number      string         `gorm:"size:20;uniqueIndex;not null" json:"number"` // period-scoped, e.g. "202608-0042"
	Status      CallStatus     `gorm:"size:20;index;not null" json:"status"`
	Urgent      bool           `gorm:"not null;default:false" json:"urgent"`
	Description string         `gorm:"type:text" json:"description"`
	Location    string         `gorm:"size:255" json:"location"`
	CreatedBy   uint           `gorm:"index" json:"createdBy"`
	ClosedAt    *time.Time     `json:"closedAt,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Assignments []CallAssignment `gorm:"constraint:OnDelete:CASCADE" json:"assignments,omitempty"`
}

// Close transitions the call to closed and stamps ClosedAt.
// Invariant: ClosedAt is set if and only if Status is closed.
func (c *Call) Close(now time.Time) error {
	if !c.Status.CanTransitionTo(CallStatusClosed) {
		return fmt.Errorf("%w: cannot close call in status %q", ErrInvalidTransition, c.Status)
	}
	c.Status = CallStatusClosed
	c.ClosedAt = &now
	return nil
}

// Reopen transitions a closed call back to active and clears ClosedAt.
func (c *Call) Reopen() error {
	if !c.Status.CanTransitionTo(CallStatusActive) {
		return fmt.Errorf("%w: cannot reopen call in status %q", ErrInvalidTransition, c.Status)
	}
	c.Status = CallStatusActive
	c.ClosedAt = nil
	return nil
}

// Abandon marks an active call abandoned. There is no way back; abandoned
// is terminal.
func (c *Call) Abandon() error {
	if !c.Status.CanTransitionTo(CallStatusAbandoned) {
		return fmt.Errorf("%w: cannot abandon call in status %q", ErrInvalidTransition, c.Status)
	}
	c.Status = CallStatusAbandoned
	c.ClosedAt = nil
	return nil
}

// FormatCallNumber renders a period-scoped call number, e.g. "202608-0042".
func FormatCallNumber(period string, seq int64) string {
	return fmt.Sprintf("%s-%04d", period, seq)
}

// CallNumberPeriod returns the allocation period for t (year+month).
func CallNumberPeriod(t time.Time) string {
	return t.Format("200601")
}
