package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/repository"
	"dispatch-center/internal/service"
)

// QueueRefreshHandler periodically re-broadcasts queue state. Events are
// delivered at most once; a dispatcher client that was disconnected during a
// login or logout never sees that event, so this scheduled refresh nudges
// every subscriber back to the stored truth.
type QueueRefreshHandler struct {
	sessionRepo repository.QueueSessionRepository
	broadcaster service.Broadcaster
}

// NewQueueRefreshHandler creates a QueueRefreshHandler.
func NewQueueRefreshHandler(sessionRepo repository.QueueSessionRepository, broadcaster service.Broadcaster) *QueueRefreshHandler {
	if sessionRepo == nil {
		panic("QueueSessionRepository cannot be nil for QueueRefreshHandler")
	}
	if broadcaster == nil {
		panic("Broadcaster cannot be nil for QueueRefreshHandler")
	}
	return &QueueRefreshHandler{sessionRepo: sessionRepo, broadcaster: broadcaster}
}

// ProcessTask broadcasts the current active-session snapshot on the queue room.
func (h *QueueRefreshHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	sessions, err := h.sessionRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active sessions for refresh: %w", err)
	}

	h.broadcaster.Broadcast(domain.Event{
		Type: domain.EventQueueUpdated,
		Data: map[string]any{"reason": "refresh", "activeSessions": len(sessions)},
		Room: domain.RoomQueue,
	})

	logrus.WithField("active_sessions", len(sessions)).Debug("Queue refresh broadcast sent")
	return nil
}
