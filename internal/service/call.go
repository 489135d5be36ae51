package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/repository"
)

// CallService governs the call and assignment state machines. Every mutation
// is a single atomic read-modify-write against the session store; the hub
// broadcast happens only after that write commits, and each transition
// appends one audit entry and emits exactly one domain event.
type CallService struct {
	callRepo    repository.CallRepository
	assignRepo  repository.AssignmentRepository
	numbers     NumberAllocator
	audit       AuditRecorder
	broadcaster Broadcaster
}

// NewCallService creates a CallService.
func NewCallService(
	callRepo repository.CallRepository,
	assignRepo repository.AssignmentRepository,
	numbers NumberAllocator,
	audit AuditRecorder,
	broadcaster Broadcaster,
) *CallService {
	if callRepo == nil {
		panic("CallRepository cannot be nil for CallService")
	}
	if assignRepo == nil {
		panic("AssignmentRepository cannot be nil for CallService")
	}
	if numbers == nil {
		panic("NumberAllocator cannot be nil for CallService")
	}
	if audit == nil {
		panic("AuditRecorder cannot be nil for CallService")
	}
	if broadcaster == nil {
		panic("Broadcaster cannot be nil for CallService")
	}
	return &CallService{
		callRepo:    callRepo,
		assignRepo:  assignRepo,
		numbers:     numbers,
		audit:       audit,
		broadcaster: broadcaster,
	}
}

// CreateCallInput carries the dispatcher-provided fields of a new call.
type CreateCallInput struct {
	Urgent      bool
	Description string
	Location    string
}

// UpdateCallInput carries optional field changes; nil fields are untouched.
type UpdateCallInput struct {
	Urgent      *bool
	Description *string
	Location    *string
}

// CreateCall allocates a period-scoped call number, persists the call as
// active and announces it on the calls room.
func (s *CallService) CreateCall(ctx context.Context, actorID uint, input CreateCallInput) (*domain.Call, error) {
	logCtx := logrus.WithField("actor_id", actorID)
	now := time.Now()

	period := domain.CallNumberPeriod(now)
	seq, err := s.numbers.NextCallNumber(ctx, period)
	if err != nil {
		logCtx.WithError(err).Error("Failed to allocate call number")
		return nil, ErrInternalServer
	}

	call := &domain.Call{
		Number:      domain.FormatCallNumber(period, seq),
		Status:      domain.CallStatusActive,
		Urgent:      input.Urgent,
		Description: input.Description,
		Location:    input.Location,
		CreatedBy:   actorID,
	}
	if err := s.callRepo.Create(ctx, call); err != nil {
		logCtx.WithError(err).WithField("number", call.Number).Error("Failed to persist new call")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithFields(logrus.Fields{"call_id": call.ID, "number": call.Number})

	s.recordAudit(ctx, actorID, "call.create", "call", call.ID, call.Number)
	s.broadcaster.Broadcast(domain.Event{
		Type: domain.EventCallCreated,
		Data: callEventData(call),
		Room: domain.RoomCalls,
	})
	if call.Urgent {
		s.broadcaster.Broadcast(domain.Event{
			Type: domain.EventNotification,
			Data: map[string]any{"kind": "urgent-call", "callId": call.ID, "number": call.Number},
			Room: domain.RoomCalls,
		})
	}

	logCtx.Info("Call created")
	return call, nil
}

// UpdateCall applies field changes and announces call:updated.
func (s *CallService) UpdateCall(ctx context.Context, actorID, callID uint, input UpdateCallInput) (*domain.Call, error) {
	logCtx := logrus.WithFields(logrus.Fields{"actor_id": actorID, "call_id": callID})

	call, err := s.findCall(ctx, callID, logCtx)
	if err != nil {
		return nil, err
	}
	if input.Urgent != nil {
		call.Urgent = *input.Urgent
	}
	if input.Description != nil {
		call.Description = *input.Description
	}
	if input.Location != nil {
		call.Location = *input.Location
	}
	if err := s.callRepo.Save(ctx, call); err != nil {
		logCtx.WithError(err).Error("Failed to save call update")
		return nil, ErrInternalServer
	}

	s.recordAudit(ctx, actorID, "call.update", "call", call.ID, call.Number)
	s.emitCall(domain.EventCallUpdated, call)
	logCtx.Info("Call updated")
	return call, nil
}

// CloseCall transitions an active call to closed and stamps ClosedAt.
func (s *CallService) CloseCall(ctx context.Context, actorID, callID uint) (*domain.Call, error) {
	return s.transitionCall(ctx, actorID, callID, domain.EventCallClosed, "call.close",
		func(call *domain.Call, now time.Time) error { return call.Close(now) })
}

// ReopenCall transitions a closed call back to active and clears ClosedAt.
// Abandoned calls stay abandoned.
func (s *CallService) ReopenCall(ctx context.Context, actorID, callID uint) (*domain.Call, error) {
	return s.transitionCall(ctx, actorID, callID, domain.EventCallReopened, "call.reopen",
		func(call *domain.Call, _ time.Time) error { return call.Reopen() })
}

// AbandonCall marks an active call abandoned (terminal).
func (s *CallService) AbandonCall(ctx context.Context, actorID, callID uint) (*domain.Call, error) {
	return s.transitionCall(ctx, actorID, callID, domain.EventCallUpdated, "call.abandon",
		func(call *domain.Call, _ time.Time) error { return call.Abandon() })
}

// transitionCall runs one status transition: validate against the state
// machine, commit conditionally on the previous status, then audit and
// broadcast. A lost race against a concurrent dispatcher surfaces as
// ErrInvalidTransition with the data untouched.
func (s *CallService) transitionCall(
	ctx context.Context,
	actorID, callID uint,
	eventType domain.EventType,
	auditAction string,
	apply func(*domain.Call, time.Time) error,
) (*domain.Call, error) {
	logCtx := logrus.WithFields(logrus.Fields{"actor_id": actorID, "call_id": callID})

	call, err := s.findCall(ctx, callID, logCtx)
	if err != nil {
		return nil, err
	}
	from := call.Status
	if err := apply(call, time.Now()); err != nil {
		logCtx.WithError(err).Warn("Rejected call status transition")
		return nil, err
	}

	err = s.callRepo.UpdateStatus(ctx, call.ID, from, call.Status, call.ClosedAt)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			logCtx.Warn("Call status changed concurrently, transition rejected")
			return nil, fmt.Errorf("%w: call no longer in status %q", ErrInvalidTransition, from)
		}
		logCtx.WithError(err).Error("Failed to commit call status transition")
		return nil, ErrInternalServer
	}

	s.recordAudit(ctx, actorID, auditAction, "call", call.ID, fmt.Sprintf("%s -> %s", from, call.Status))
	s.emitCall(eventType, call)
	logCtx.WithFields(logrus.Fields{"from": from, "to": call.Status}).Info("Call status transition committed")
	return call, nil
}

// Assign creates an assignment for (call, member). The unique index on the
// pair resolves concurrent duplicate assignments: exactly one succeeds.
func (s *CallService) Assign(ctx context.Context, actorID, callID, memberID uint, eta *int) (*domain.CallAssignment, error) {
	logCtx := logrus.WithFields(logrus.Fields{"actor_id": actorID, "call_id": callID, "member_id": memberID})

	call, err := s.findCall(ctx, callID, logCtx)
	if err != nil {
		return nil, err
	}
	if call.Status != domain.CallStatusActive {
		logCtx.WithField("status", call.Status).Warn("Refusing to assign on a non-active call")
		return nil, ErrCallNotActive
	}

	a := &domain.CallAssignment{
		CallID:     callID,
		MemberID:   memberID,
		ETA:        eta,
		Status:     domain.AssignmentStatusAssigned,
		AssignedAt: time.Now(),
	}
	if err := s.assignRepo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("Member already assigned to call")
			return nil, ErrAlreadyAssigned
		}
		logCtx.WithError(err).Error("Failed to persist assignment")
		return nil, ErrInternalServer
	}

	s.recordAudit(ctx, actorID, "assignment.create", "assignment", a.ID, fmt.Sprintf("call %d member %d", callID, memberID))
	s.emitAssignment(domain.EventCallAssigned, a)
	logCtx.Info("Member assigned to call")
	return a, nil
}

// Unassign removes the (call, member) assignment. Absent rows are an error
// to the caller but mutate nothing.
func (s *CallService) Unassign(ctx context.Context, actorID, callID, memberID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"actor_id": actorID, "call_id": callID, "member_id": memberID})

	deleted, err := s.assignRepo.Delete(ctx, callID, memberID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to delete assignment")
		return ErrInternalServer
	}
	if !deleted {
		return ErrAssignmentNotFound
	}

	s.recordAudit(ctx, actorID, "assignment.delete", "assignment", callID, fmt.Sprintf("call %d member %d", callID, memberID))
	s.broadcaster.Broadcast(domain.Event{
		Type: domain.EventCallUnassigned,
		Data: map[string]any{"callId": callID, "memberId": memberID},
		Room: domain.RoomCalls,
	})
	s.broadcaster.Broadcast(domain.Event{
		Type: domain.EventCallUnassigned,
		Data: map[string]any{"callId": callID, "memberId": memberID},
		Room: domain.CallRoom(callID),
	})
	logCtx.Info("Member unassigned from call")
	return nil
}

// AdvanceAssignment moves the (call, member) assignment forward along
// assigned -> enroute -> onscene -> completed. A transition to an earlier
// state is rejected and nothing is emitted.
func (s *CallService) AdvanceAssignment(ctx context.Context, actorID, callID, memberID uint, next domain.AssignmentStatus) (*domain.CallAssignment, error) {
	logCtx := logrus.WithFields(logrus.Fields{"actor_id": actorID, "call_id": callID, "member_id": memberID, "next": next})

	a, err := s.assignRepo.Find(ctx, callID, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		logCtx.WithError(err).Error("Failed to load assignment")
		return nil, ErrInternalServer
	}

	from := a.Status
	if err := a.Advance(next, time.Now()); err != nil {
		logCtx.WithError(err).Warn("Rejected assignment transition")
		return nil, err
	}

	err = s.assignRepo.UpdateStatus(ctx, a.ID, from, a.Status, a.ArrivedAt, a.CompletedAt)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			logCtx.Warn("Assignment status changed concurrently, transition rejected")
			return nil, fmt.Errorf("%w: assignment no longer in status %q", ErrInvalidTransition, from)
		}
		logCtx.WithError(err).Error("Failed to commit assignment transition")
		return nil, ErrInternalServer
	}

	s.recordAudit(ctx, actorID, "assignment.advance", "assignment", a.ID, fmt.Sprintf("%s -> %s", from, a.Status))
	s.emitAssignment(domain.EventCallUpdated, a)
	logCtx.Info("Assignment advanced")
	return a, nil
}

// ListActiveCalls returns the active calls, newest first.
func (s *CallService) ListActiveCalls(ctx context.Context) ([]domain.Call, error) {
	calls, err := s.callRepo.ListByStatus(ctx, domain.CallStatusActive)
	if err != nil {
		logrus.WithError(err).Error("Failed to list active calls")
		return nil, ErrInternalServer
	}
	return calls, nil
}

// GetCall loads a single call with its assignments.
func (s *CallService) GetCall(ctx context.Context, callID uint) (*domain.Call, error) {
	return s.findCall(ctx, callID, logrus.WithField("call_id", callID))
}

func (s *CallService) findCall(ctx context.Context, callID uint, logCtx *logrus.Entry) (*domain.Call, error) {
	call, err := s.callRepo.FindByID(ctx, callID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		logCtx.WithError(err).Error("Failed to load call")
		return nil, ErrInternalServer
	}
	return call, nil
}

// emitCall announces a call event on the global calls room and the per-call
// detail room, so both list views and open detail views converge.
func (s *CallService) emitCall(t domain.EventType, call *domain.Call) {
	data := callEventData(call)
	s.broadcaster.Broadcast(domain.Event{Type: t, Data: data, Room: domain.RoomCalls})
	s.broadcaster.Broadcast(domain.Event{Type: t, Data: data, Room: domain.CallRoom(call.ID)})
}

func (s *CallService) emitAssignment(t domain.EventType, a *domain.CallAssignment) {
	data := map[string]any{
		"callId":   a.CallID,
		"memberId": a.MemberID,
		"status":   a.Status,
	}
	if a.ETA != nil {
		data["eta"] = *a.ETA
	}
	s.broadcaster.Broadcast(domain.Event{Type: t, Data: data, Room: domain.RoomCalls})
	s.broadcaster.Broadcast(domain.Event{Type: t, Data: data, Room: domain.CallRoom(a.CallID)})
}

func (s *CallService) recordAudit(ctx context.Context, actorID uint, action, entity string, entityID uint, detail string) {
	entry := domain.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logrus.WithError(err).WithField("action", action).Error("Failed to record audit entry")
	}
}

// callEventData is the compact payload broadcast for call events.
func callEventData(call *domain.Call) map[string]any {
	data := map[string]any{
		"id":     call.ID,
		"number": call.Number,
		"status": call.Status,
		"urgent": call.Urgent,
	}
	if call.ClosedAt != nil {
		data["closedAt"] = call.ClosedAt
	}
	return data
}
