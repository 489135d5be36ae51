package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dispatch-center/internal/domain"
)

// GormAuditRepository is the GORM implementation of repository.AuditRepository.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a GormAuditRepository.
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAuditRepository")
	}
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("gorm: append audit entry (%s %s/%d): %w", entry.Action, entry.Entity, entry.EntityID, err)
	}
	return nil
}
