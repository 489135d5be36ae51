package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/repository"
)

// isDuplicateEntry reports whether err is a MySQL unique-constraint violation.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// GormCallRepository is the GORM implementation of repository.CallRepository.
type GormCallRepository struct {
	db *gorm.DB
}

// NewGormCallRepository creates a GormCallRepository.
func NewGormCallRepository(db *gorm.DB) *GormCallRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCallRepository")
	}
	return &GormCallRepository{db: db}
}

func (r *GormCallRepository) FindByID(ctx context.Context, id uint) (*domain.Call, error) {
	var call domain.Call
	err := r.db.WithContext(ctx).Preload("Assignments").First(&call, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCallNotFound
		}
		return nil, fmt.Errorf("gorm: find call by id %d: %w", id, err)
	}
	return &call, nil
}

func (r *GormCallRepository) Create(ctx context.Context, call *domain.Call) error {
	err := r.db.WithContext(ctx).Create(call).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create call (number: %s): %w", call.Number, err)
	}
	return nil
}

func (r *GormCallRepository) Save(ctx context.Context, call *domain.Call) error {
	err := r.db.WithContext(ctx).Save(call).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save call %d: %w", call.ID, err)
	}
	return nil
}

// UpdateStatus applies a status transition as a single conditional UPDATE:
// the WHERE clause on the current status makes the read-modify-write atomic
// across concurrent dispatchers without a table lock.
func (r *GormCallRepository) UpdateStatus(ctx context.Context, id uint, from, to domain.CallStatus, closedAt *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Call{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "closed_at": closedAt})
	if result.Error != nil {
		return fmt.Errorf("gorm: update call %d status %s->%s: %w", id, from, to, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrStaleState
	}
	return nil
}

func (r *GormCallRepository) ListByStatus(ctx context.Context, status domain.CallStatus) ([]domain.Call, error) {
	var calls []domain.Call
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list calls by status %s: %w", status, err)
	}
	return calls, nil
}
