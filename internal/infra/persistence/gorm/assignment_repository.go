package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/repository"
)

// GormAssignmentRepository is the GORM implementation of
// repository.AssignmentRepository. The composite unique index on
// (call_id, member_id) enforces the one-assignment-per-pair invariant.
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewGormAssignmentRepository creates a GormAssignmentRepository.
func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAssignmentRepository")
	}
	return &GormAssignmentRepository{db: db}
}

func (r *GormAssignmentRepository) Find(ctx context.Context, callID, memberID uint) (*domain.CallAssignment, error) {
	var a domain.CallAssignment
	err := r.db.WithContext(ctx).
		Where("call_id = ? AND member_id = ?", callID, memberID).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("gorm: find assignment (call %d, member %d): %w", callID, memberID, err)
	}
	return &a, nil
}

func (r *GormAssignmentRepository) Create(ctx context.Context, a *domain.CallAssignment) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create assignment (call %d, member %d): %w", a.CallID, a.MemberID, err)
	}
	return nil
}

// UpdateStatus applies the monotonic progression as a conditional UPDATE so
// two dispatchers advancing the same assignment cannot interleave.
func (r *GormAssignmentRepository) UpdateStatus(ctx context.Context, id uint, from, to domain.AssignmentStatus, arrivedAt, completedAt *time.Time) error {
	updates := map[string]any{"status": to}
	if arrivedAt != nil {
		updates["arrived_at"] = arrivedAt
	}
	if completedAt != nil {
		updates["completed_at"] = completedAt
	}
	result := r.db.WithContext(ctx).
		Model(&domain.CallAssignment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("gorm: update assignment %d status %s->%s: %w", id, from, to, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrStaleState
	}
	return nil
}

func (r *GormAssignmentRepository) Delete(ctx context.Context, callID, memberID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("call_id = ? AND member_id = ?", callID, memberID).
		Delete(&domain.CallAssignment{})
	if result.Error != nil {
		return false, fmt.Errorf("gorm: delete assignment (call %d, member %d): %w", callID, memberID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GormAssignmentRepository) ListByCall(ctx context.Context, callID uint) ([]domain.CallAssignment, error) {
	var as []domain.CallAssignment
	err := r.db.WithContext(ctx).
		Where("call_id = ?", callID).
		Order("assigned_at ASC").
		Find(&as).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list assignments for call %d: %w", callID, err)
	}
	return as, nil
}
