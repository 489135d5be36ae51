package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/service"
)

// QueueHandler exposes queue session management over HTTP.
type QueueHandler struct {
	sessionService *service.QueueSessionService
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(sessionService *service.QueueSessionService) *QueueHandler {
	return &QueueHandler{sessionService: sessionService}
}

// LoginRequest is the body of POST /api/queue/login.
type LoginRequest struct {
	MemberID     uint                 `json:"member_id" binding:"required"`
	Queue        domain.QueueName     `json:"queue" binding:"required"`
	Source       domain.SessionSource `json:"source"`
	SourcePhones []string             `json:"source_phones"`
}

// Login handles POST /api/queue/login.
func (h *QueueHandler) Login(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("actor_id", actorID)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.Login: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: member_id and queue are required")
		return
	}

	session, err := h.sessionService.Login(c.Request.Context(), req.MemberID, req.Queue, req.Source, req.SourcePhones)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.Login: Failed to open queue session via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithFields(logrus.Fields{"member_id": req.MemberID, "queue": req.Queue, "session_id": session.ID}).
		Info("Handler.Login: Queue session opened")
	SuccessResponse(c, http.StatusCreated, session)
}

// LogoutRequest is the body of POST /api/queue/logout. Queue is optional;
// when omitted the member is logged out of every queue.
type LogoutRequest struct {
	MemberID uint             `json:"member_id" binding:"required"`
	Queue    domain.QueueName `json:"queue"`
}

// Logout handles POST /api/queue/logout.
func (h *QueueHandler) Logout(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: member_id is required")
		return
	}

	affected, err := h.sessionService.Logout(c.Request.Context(), req.MemberID, req.Queue)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"actor_id": actorID, "member_id": req.MemberID, "affected": affected}).
		Info("Handler.Logout: Queue logout processed")
	SuccessResponse(c, http.StatusOK, gin.H{"affected": affected})
}

// LogoutAll handles POST /api/queue/logout-all.
func (h *QueueHandler) LogoutAll(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}

	affected, err := h.sessionService.LogoutAll(c.Request.Context(), actorID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"affected": affected})
}

// CurrentDispatcher handles GET /api/queue/dispatcher. An empty primary
// queue yields a null dispatcher, not an error.
func (h *QueueHandler) CurrentDispatcher(c *gin.Context) {
	session, err := h.sessionService.CurrentDispatcher(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"dispatcher": session})
}

// ActiveSessions handles GET /api/queue/sessions.
func (h *QueueHandler) ActiveSessions(c *gin.Context) {
	sessions, err := h.sessionService.ActiveSessions(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"sessions": sessions})
}
