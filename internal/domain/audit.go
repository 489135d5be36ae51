package domain

import "time"

// AuditEntry journals one dispatcher mutation. Every status transition on a
// call, assignment or queue session appends exactly one entry within the same
// operation.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorID   uint      `gorm:"index" json:"actorId"`
	Action    string    `gorm:"size:64;index;not null" json:"action"` // e.g. "call.close", "queue.login"
	Entity    string    `gorm:"size:32;not null" json:"entity"`       // "call", "assignment", "queue_session"
	EntityID  uint      `gorm:"index" json:"entityId"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}
