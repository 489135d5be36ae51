package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/repository"
	"dispatch-center/internal/repository/mocks"
	"dispatch-center/internal/service"
)

// recordingBroadcaster captures every broadcast event for assertions.
type recordingBroadcaster struct {
	events []domain.Event
}

func (b *recordingBroadcaster) Broadcast(e domain.Event) { b.events = append(b.events, e) }

func (b *recordingBroadcaster) typesOn(room string) []domain.EventType {
	var types []domain.EventType
	for _, e := range b.events {
		if e.Room == room {
			types = append(types, e.Type)
		}
	}
	return types
}

// nopAudit satisfies service.AuditRecorder without side effects.
type nopAudit struct{}

func (nopAudit) Record(context.Context, domain.AuditEntry) error { return nil }

// fixedAllocator hands out sequential call numbers from a fixed start.
type fixedAllocator struct {
	next int64
	err  error
}

func (a *fixedAllocator) NextCallNumber(context.Context, string) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.next++
	return a.next, nil
}

func newCallService(callRepo *mocks.CallRepository, assignRepo *mocks.AssignmentRepository, b *recordingBroadcaster) *service.CallService {
	return service.NewCallService(callRepo, assignRepo, &fixedAllocator{next: 41}, nopAudit{}, b)
}

func TestCallService_CreateCall(t *testing.T) {
	// Arrange
	callRepo := new(mocks.CallRepository)
	assignRepo := new(mocks.AssignmentRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, assignRepo, broadcaster)
	ctx := context.Background()

	callRepo.On("Create", ctx, mock.MatchedBy(func(c *domain.Call) bool {
		assert.Equal(t, domain.CallStatusActive, c.Status)
		assert.Equal(t, domain.FormatCallNumber(domain.CallNumberPeriod(time.Now()), 42), c.Number)
		return true
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Call).ID = 1
	}).Return(nil).Once()

	// Act
	call, err := svc.CreateCall(ctx, 7, service.CreateCallInput{Description: "stalled truck"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusActive, call.Status)
	assert.Nil(t, call.ClosedAt)
	assert.Equal(t, []domain.EventType{domain.EventCallCreated}, broadcaster.typesOn(domain.RoomCalls))
	callRepo.AssertExpectations(t)
}

func TestCallService_CreateCall_UrgentNotification(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, new(mocks.AssignmentRepository), broadcaster)
	ctx := context.Background()

	callRepo.On("Create", ctx, mock.AnythingOfType("*domain.Call")).Return(nil).Once()

	_, err := svc.CreateCall(ctx, 7, service.CreateCallInput{Urgent: true})

	require.NoError(t, err)
	assert.Equal(t,
		[]domain.EventType{domain.EventCallCreated, domain.EventNotification},
		broadcaster.typesOn(domain.RoomCalls))
}

func TestCallService_CloseCall_Lifecycle(t *testing.T) {
	// Arrange: an active call in the store.
	callRepo := new(mocks.CallRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, new(mocks.AssignmentRepository), broadcaster)
	ctx := context.Background()

	callRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Call{ID: 1, Number: "202608-0001", Status: domain.CallStatusActive}, nil).Once()
	callRepo.On("UpdateStatus", ctx, uint(1), domain.CallStatusActive, domain.CallStatusClosed,
		mock.AnythingOfType("*time.Time")).Return(nil).Once()

	// Act
	call, err := svc.CloseCall(ctx, 7, 1)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusClosed, call.Status)
	require.NotNil(t, call.ClosedAt)
	// Exactly one domain event, mirrored to the per-call room.
	assert.Equal(t, []domain.EventType{domain.EventCallClosed}, broadcaster.typesOn(domain.RoomCalls))
	assert.Equal(t, []domain.EventType{domain.EventCallClosed}, broadcaster.typesOn(domain.CallRoom(1)))
	callRepo.AssertExpectations(t)
}

func TestCallService_ReopenClearsClosedAt(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, new(mocks.AssignmentRepository), broadcaster)
	ctx := context.Background()
	closedAt := time.Now()

	callRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Call{ID: 1, Status: domain.CallStatusClosed, ClosedAt: &closedAt}, nil).Once()
	callRepo.On("UpdateStatus", ctx, uint(1), domain.CallStatusClosed, domain.CallStatusActive,
		(*time.Time)(nil)).Return(nil).Once()

	call, err := svc.ReopenCall(ctx, 7, 1)

	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusActive, call.Status)
	assert.Nil(t, call.ClosedAt)
	assert.Equal(t, []domain.EventType{domain.EventCallReopened}, broadcaster.typesOn(domain.RoomCalls))
}

func TestCallService_ReopenAbandonedRejected(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, new(mocks.AssignmentRepository), broadcaster)
	ctx := context.Background()

	callRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Call{ID: 1, Status: domain.CallStatusAbandoned}, nil).Once()

	_, err := svc.ReopenCall(ctx, 7, 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidTransition))
	// Rejected transitions emit nothing and never reach the store.
	assert.Empty(t, broadcaster.events)
	callRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCallService_ConcurrentCloseLosesRace(t *testing.T) {
	// The conditional update reports stale state when another dispatcher
	// changed the status between read and write.
	callRepo := new(mocks.CallRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, new(mocks.AssignmentRepository), broadcaster)
	ctx := context.Background()

	callRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Call{ID: 1, Status: domain.CallStatusActive}, nil).Once()
	callRepo.On("UpdateStatus", ctx, uint(1), domain.CallStatusActive, domain.CallStatusClosed,
		mock.AnythingOfType("*time.Time")).Return(repository.ErrStaleState).Once()

	_, err := svc.CloseCall(ctx, 7, 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidTransition))
	assert.Empty(t, broadcaster.events)
}

func TestCallService_AssignOnClosedCallRejected(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	assignRepo := new(mocks.AssignmentRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, assignRepo, broadcaster)
	ctx := context.Background()

	callRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Call{ID: 1, Status: domain.CallStatusClosed}, nil).Once()

	_, err := svc.Assign(ctx, 7, 1, 3, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrCallNotActive))
	assignRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCallService_DuplicateAssignRejected(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	assignRepo := new(mocks.AssignmentRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, assignRepo, broadcaster)
	ctx := context.Background()

	callRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Call{ID: 1, Status: domain.CallStatusActive}, nil).Once()
	// The composite unique index turns the second concurrent insert into a
	// duplicate-entry error.
	assignRepo.On("Create", ctx, mock.AnythingOfType("*domain.CallAssignment")).
		Return(repository.ErrDuplicateEntry).Once()

	_, err := svc.Assign(ctx, 7, 1, 3, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAlreadyAssigned))
	assert.Empty(t, broadcaster.events)
}

func TestCallService_AssignEmitsToBothRooms(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	assignRepo := new(mocks.AssignmentRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, assignRepo, broadcaster)
	ctx := context.Background()
	eta := 10

	callRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Call{ID: 1, Status: domain.CallStatusActive}, nil).Once()
	assignRepo.On("Create", ctx, mock.AnythingOfType("*domain.CallAssignment")).Return(nil).Once()

	a, err := svc.Assign(ctx, 7, 1, 3, &eta)

	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusAssigned, a.Status)
	assert.Equal(t, []domain.EventType{domain.EventCallAssigned}, broadcaster.typesOn(domain.RoomCalls))
	assert.Equal(t, []domain.EventType{domain.EventCallAssigned}, broadcaster.typesOn(domain.CallRoom(1)))
}

func TestCallService_UnassignMissingRow(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	assignRepo := new(mocks.AssignmentRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, assignRepo, broadcaster)
	ctx := context.Background()

	assignRepo.On("Delete", ctx, uint(1), uint(3)).Return(false, nil).Once()

	err := svc.Unassign(ctx, 7, 1, 3)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAssignmentNotFound))
	assert.Empty(t, broadcaster.events, "a no-op delete must not emit")
}

func TestCallService_AdvanceAssignment(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	assignRepo := new(mocks.AssignmentRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, assignRepo, broadcaster)
	ctx := context.Background()

	assignRepo.On("Find", ctx, uint(1), uint(3)).
		Return(&domain.CallAssignment{ID: 9, CallID: 1, MemberID: 3, Status: domain.AssignmentStatusAssigned}, nil).Once()
	assignRepo.On("UpdateStatus", ctx, uint(9), domain.AssignmentStatusAssigned, domain.AssignmentStatusEnroute,
		(*time.Time)(nil), (*time.Time)(nil)).Return(nil).Once()

	a, err := svc.AdvanceAssignment(ctx, 7, 1, 3, domain.AssignmentStatusEnroute)

	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusEnroute, a.Status)
	assert.Equal(t, []domain.EventType{domain.EventCallUpdated}, broadcaster.typesOn(domain.CallRoom(1)))
}

func TestCallService_AdvanceAssignment_RegressionRejected(t *testing.T) {
	callRepo := new(mocks.CallRepository)
	assignRepo := new(mocks.AssignmentRepository)
	broadcaster := &recordingBroadcaster{}
	svc := newCallService(callRepo, assignRepo, broadcaster)
	ctx := context.Background()

	assignRepo.On("Find", ctx, uint(1), uint(3)).
		Return(&domain.CallAssignment{ID: 9, CallID: 1, MemberID: 3, Status: domain.AssignmentStatusOnScene}, nil).Once()

	_, err := svc.AdvanceAssignment(ctx, 7, 1, 3, domain.AssignmentStatusAssigned)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidTransition))
	assert.Empty(t, broadcaster.events)
	assignRepo.AssertNotCalled(t, "UpdateStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
