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

// GormQueueSessionRepository is the GORM implementation of
// repository.QueueSessionRepository.
//
// The unique index on active_key is the atomic guard for the
// one-active-session-per-(member,queue) invariant: the key is populated only
// while is_active is true, so a racing duplicate login fails at the driver
// with a duplicate-key error instead of silently creating a second session.
type GormQueueSessionRepository struct {
	db *gorm.DB
}

// NewGormQueueSessionRepository creates a GormQueueSessionRepository.
func NewGormQueueSessionRepository(db *gorm.DB) *GormQueueSessionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormQueueSessionRepository")
	}
	return &GormQueueSessionRepository{db: db}
}

func (r *GormQueueSessionRepository) Create(ctx context.Context, s *domain.QueueSession) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create queue session (member %d, queue %s): %w", s.MemberID, s.Queue, err)
	}
	return nil
}

func (r *GormQueueSessionRepository) FindActive(ctx context.Context, memberID uint, queue domain.QueueName) (*domain.QueueSession, error) {
	var s domain.QueueSession
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND queue = ? AND is_active = ?", memberID, queue, true).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: find active session (member %d, queue %s): %w", memberID, queue, err)
	}
	return &s, nil
}

func (r *GormQueueSessionRepository) ListActive(ctx context.Context) ([]domain.QueueSession, error) {
	var sessions []domain.QueueSession
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("login_time ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list active sessions: %w", err)
	}
	return sessions, nil
}

func (r *GormQueueSessionRepository) EarliestActive(ctx context.Context, queue domain.QueueName) (*domain.QueueSession, error) {
	var s domain.QueueSession
	err := r.db.WithContext(ctx).
		Where("queue = ? AND is_active = ?", queue, true).
		Order("login_time ASC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: earliest active session on queue %s: %w", queue, err)
	}
	return &s, nil
}

// deactivate clears is_active, active_key and stamps logout_time on every
// session matched by cond.
func (r *GormQueueSessionRepository) deactivate(ctx context.Context, logoutTime time.Time, cond string, condArgs ...any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.QueueSession{}).
		Where(cond, condArgs...).
		Updates(map[string]any{
			"is_active":   false,
			"active_key":  nil,
			"logout_time": logoutTime,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: deactivate sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormQueueSessionRepository) Deactivate(ctx context.Context, memberID uint, queue domain.QueueName, logoutTime time.Time) (int64, error) {
	return r.deactivate(ctx, logoutTime, "member_id = ? AND queue = ? AND is_active = ?", memberID, queue, true)
}

func (r *GormQueueSessionRepository) DeactivateAllForMember(ctx context.Context, memberID uint, logoutTime time.Time) (int64, error) {
	return r.deactivate(ctx, logoutTime, "member_id = ? AND is_active = ?", memberID, true)
}

func (r *GormQueueSessionRepository) DeactivateAll(ctx context.Context, logoutTime time.Time) (int64, error) {
	return r.deactivate(ctx, logoutTime, "is_active = ?", true)
}
