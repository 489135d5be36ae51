package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/repository"
)

// QueueSessionService logs members in and out of the dispatcher phone
// queues, preserving the at-most-one-active-session invariant per
// (member, queue) pair.
//
// Login is the one mutation here that races across processes: the naive
// check-then-insert is replaced by a single insert guarded by the storage
// uniqueness constraint, so of N concurrent logins exactly one succeeds and
// the rest surface ErrAlreadyActive.
type QueueSessionService struct {
	sessionRepo repository.QueueSessionRepository
	audit       AuditRecorder
	broadcaster Broadcaster
}

// NewQueueSessionService creates a QueueSessionService.
func NewQueueSessionService(
	sessionRepo repository.QueueSessionRepository,
	audit AuditRecorder,
	broadcaster Broadcaster,
) *QueueSessionService {
	if sessionRepo == nil {
		panic("QueueSessionRepository cannot be nil for QueueSessionService")
	}
	if audit == nil {
		panic("AuditRecorder cannot be nil for QueueSessionService")
	}
	if broadcaster == nil {
		panic("Broadcaster cannot be nil for QueueSessionService")
	}
	return &QueueSessionService{
		sessionRepo: sessionRepo,
		audit:       audit,
		broadcaster: broadcaster,
	}
}

// Login opens an active session for (member, queue). Fails with
// ErrAlreadyActive when one already exists; not retried automatically.
func (s *QueueSessionService) Login(ctx context.Context, memberID uint, queue domain.QueueName, source domain.SessionSource, sourcePhones []string) (*domain.QueueSession, error) {
	logCtx := logrus.WithFields(logrus.Fields{"member_id": memberID, "queue": queue})

	if !queue.Valid() {
		return nil, ErrInvalidQueue
	}
	if source == "" {
		source = domain.SessionSourceManual
	}

	key := domain.SessionActiveKey(memberID, queue)
	session := &domain.QueueSession{
		MemberID:     memberID,
		Queue:        queue,
		IsActive:     true,
		ActiveKey:    &key,
		LoginTime:    time.Now(),
		Source:       source,
		SourcePhones: strings.Join(sourcePhones, ","),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("Login rejected, member already active on queue")
			return nil, ErrAlreadyActive
		}
		logCtx.WithError(err).Error("Failed to create queue session")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("session_id", session.ID)

	s.recordAudit(ctx, memberID, "queue.login", session.ID, fmt.Sprintf("queue %s (%s)", queue, source))
	s.broadcaster.Broadcast(domain.Event{
		Type: domain.EventQueueLogin,
		Data: map[string]any{"memberId": memberID, "queue": queue, "sessionId": session.ID},
		Room: domain.RoomQueue,
	})

	logCtx.Info("Member logged into queue")
	return session, nil
}

// Logout deactivates the member's active session on queue, or on every
// queue when queue is empty. Deactivating nothing is a no-op: no event, no
// error, zero returned.
func (s *QueueSessionService) Logout(ctx context.Context, memberID uint, queue domain.QueueName) (int64, error) {
	logCtx := logrus.WithFields(logrus.Fields{"member_id": memberID, "queue": queue})
	now := time.Now()

	var affected int64
	var err error
	if queue == "" {
		affected, err = s.sessionRepo.DeactivateAllForMember(ctx, memberID, now)
	} else {
		if !queue.Valid() {
			return 0, ErrInvalidQueue
		}
		affected, err = s.sessionRepo.Deactivate(ctx, memberID, queue, now)
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to deactivate queue session(s)")
		return 0, ErrInternalServer
	}
	if affected == 0 {
		logCtx.Debug("Logout was a no-op, no active session")
		return 0, nil
	}

	s.recordAudit(ctx, memberID, "queue.logout", memberID, fmt.Sprintf("queue %q, %d session(s)", queue, affected))
	s.broadcaster.Broadcast(domain.Event{
		Type: domain.EventQueueLogout,
		Data: map[string]any{"memberId": memberID, "queue": queue},
		Room: domain.RoomQueue,
	})

	logCtx.WithField("affected", affected).Info("Member logged out of queue(s)")
	return affected, nil
}

// LogoutAll is the administrative bulk deactivation of every active session.
func (s *QueueSessionService) LogoutAll(ctx context.Context, actorID uint) (int64, error) {
	logCtx := logrus.WithField("actor_id", actorID)

	affected, err := s.sessionRepo.DeactivateAll(ctx, time.Now())
	if err != nil {
		logCtx.WithError(err).Error("Failed to deactivate all queue sessions")
		return 0, ErrInternalServer
	}

	s.recordAudit(ctx, actorID, "queue.logout_all", 0, fmt.Sprintf("%d session(s)", affected))
	s.broadcaster.Broadcast(domain.Event{
		Type: domain.EventQueueUpdated,
		Data: map[string]any{"reason": "logout-all"},
		Room: domain.RoomQueue,
	})

	logCtx.WithField("affected", affected).Info("All queue sessions deactivated")
	return affected, nil
}

// CurrentDispatcher is the derived read: the active primary-queue session
// with the earliest login time, or nil when the queue is empty.
func (s *QueueSessionService) CurrentDispatcher(ctx context.Context) (*domain.QueueSession, error) {
	session, err := s.sessionRepo.EarliestActive(ctx, domain.QueuePrimary)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		logrus.WithError(err).Error("Failed to read current dispatcher")
		return nil, ErrInternalServer
	}
	return session, nil
}

// ActiveSessions lists every active session, earliest login first.
func (s *QueueSessionService) ActiveSessions(ctx context.Context) ([]domain.QueueSession, error) {
	sessions, err := s.sessionRepo.ListActive(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list active sessions")
		return nil, ErrInternalServer
	}
	return sessions, nil
}

func (s *QueueSessionService) recordAudit(ctx context.Context, actorID uint, action string, entityID uint, detail string) {
	entry := domain.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "queue_session",
		EntityID: entityID,
		Detail:   detail,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logrus.WithError(err).WithField("action", action).Error("Failed to record audit entry")
	}
}
