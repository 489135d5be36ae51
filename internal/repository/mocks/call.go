// Package mocks provides testify mock implementations of the repository
// interfaces for service-level tests.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"dispatch-center/internal/domain"
)

// CallRepository is a mock of repository.CallRepository.
type CallRepository struct {
	mock.Mock
}

func (m *CallRepository) FindByID(ctx context.Context, id uint) (*domain.Call, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*domain.Call); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *CallRepository) Save(ctx context.Context, call *domain.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *CallRepository) UpdateStatus(ctx context.Context, id uint, from, to domain.CallStatus, closedAt *time.Time) error {
	args := m.Called(ctx, id, from, to, closedAt)
	return args.Error(0)
}

func (m *CallRepository) ListByStatus(ctx context.Context, status domain.CallStatus) ([]domain.Call, error) {
	args := m.Called(ctx, status)
	if calls, ok := args.Get(0).([]domain.Call); ok {
		return calls, args.Error(1)
	}
	return nil, args.Error(1)
}

// AssignmentRepository is a mock of repository.AssignmentRepository.
type AssignmentRepository struct {
	mock.Mock
}

func (m *AssignmentRepository) Find(ctx context.Context, callID, memberID uint) (*domain.CallAssignment, error) {
	args := m.Called(ctx, callID, memberID)
	if a, ok := args.Get(0).(*domain.CallAssignment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AssignmentRepository) Create(ctx context.Context, a *domain.CallAssignment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *AssignmentRepository) UpdateStatus(ctx context.Context, id uint, from, to domain.AssignmentStatus, arrivedAt, completedAt *time.Time) error {
	args := m.Called(ctx, id, from, to, arrivedAt, completedAt)
	return args.Error(0)
}

func (m *AssignmentRepository) Delete(ctx context.Context, callID, memberID uint) (bool, error) {
	args := m.Called(ctx, callID, memberID)
	return args.Bool(0), args.Error(1)
}

func (m *AssignmentRepository) ListByCall(ctx context.Context, callID uint) ([]domain.CallAssignment, error) {
	args := m.Called(ctx, callID)
	if as, ok := args.Get(0).([]domain.CallAssignment); ok {
		return as, args.Error(1)
	}
	return nil, args.Error(1)
}
