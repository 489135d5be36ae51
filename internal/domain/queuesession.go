package domain

import (
	"fmt"
	"time"
)

// QueueName names one of the three dispatcher phone lines.
type QueueName string

const (
	QueuePrimary   QueueName = "primary"
	QueueSecondary QueueName = "secondary"
	QueueThird     QueueName = "third"
)

// Valid reports whether q is a known queue.
func (q QueueName) Valid() bool {
	switch q {
	case QueuePrimary, QueueSecondary, QueueThird:
		return true
	}
	return false
}

// SessionSource records how a queue session was opened.
type SessionSource string

const (
	SessionSourceManual   SessionSource = "manual"
	SessionSourceAuto     SessionSource = "auto"
	SessionSourceOverride SessionSource = "override"
)

// QueueSession is one member's login to one phone queue.
//
// Invariant: at most one row with IsActive = true per (MemberID, Queue) pair.
// ActiveKey carries "<memberID>:<queue>" while the session is active and NULL
// once it is deactivated; the unique index on it turns a concurrent duplicate
// login into a driver-level duplicate-key error instead of a silent race.
type QueueSession struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	MemberID     uint          `gorm:"index;not null" json:"memberId"`
	Queue        QueueName     `gorm:"size:20;index;not null" json:"queue"`
	IsActive     bool          `gorm:"index;not null;default:false" json:"isActive"`
	ActiveKey    *string       `gorm:"size:64;uniqueIndex" json:"-"`
	LoginTime    time.Time     `gorm:"index;not null" json:"loginTime"`
	LogoutTime   *time.Time    `json:"logoutTime,omitempty"`
	Source       SessionSource `gorm:"size:20;not null" json:"source"`
	SourcePhones string        `gorm:"size:255" json:"sourcePhones,omitempty"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"-"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime" json:"-"`
}

// SessionActiveKey builds the uniqueness key for an active (member, queue) pair.
func SessionActiveKey(memberID uint, queue QueueName) string {
	return fmt.Sprintf("%d:%s", memberID, queue)
}
