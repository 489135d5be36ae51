package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"dispatch-center/internal/domain"
)

// QueueSessionRepository is a mock of repository.QueueSessionRepository.
type QueueSessionRepository struct {
	mock.Mock
}

func (m *QueueSessionRepository) Create(ctx context.Context, s *domain.QueueSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *QueueSessionRepository) FindActive(ctx context.Context, memberID uint, queue domain.QueueName) (*domain.QueueSession, error) {
	args := m.Called(ctx, memberID, queue)
	if s, ok := args.Get(0).(*domain.QueueSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueSessionRepository) ListActive(ctx context.Context) ([]domain.QueueSession, error) {
	args := m.Called(ctx)
	if ss, ok := args.Get(0).([]domain.QueueSession); ok {
		return ss, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueSessionRepository) EarliestActive(ctx context.Context, queue domain.QueueName) (*domain.QueueSession, error) {
	args := m.Called(ctx, queue)
	if s, ok := args.Get(0).(*domain.QueueSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueSessionRepository) Deactivate(ctx context.Context, memberID uint, queue domain.QueueName, logoutTime time.Time) (int64, error) {
	args := m.Called(ctx, memberID, queue, logoutTime)
	return args.Get(0).(int64), args.Error(1)
}

func (m *QueueSessionRepository) DeactivateAllForMember(ctx context.Context, memberID uint, logoutTime time.Time) (int64, error) {
	args := m.Called(ctx, memberID, logoutTime)
	return args.Get(0).(int64), args.Error(1)
}

func (m *QueueSessionRepository) DeactivateAll(ctx context.Context, logoutTime time.Time) (int64, error) {
	args := m.Called(ctx, logoutTime)
	return args.Get(0).(int64), args.Error(1)
}

// AuditRepository is a mock of repository.AuditRepository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
