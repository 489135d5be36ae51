package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/domain"
	"dispatch-center/internal/service"
)

// CallHandler exposes the call lifecycle and assignment operations over HTTP.
type CallHandler struct {
	callService *service.CallService
}

// NewCallHandler creates a CallHandler.
func NewCallHandler(callService *service.CallService) *CallHandler {
	return &CallHandler{callService: callService}
}

// CreateCallRequest is the body of POST /api/calls.
type CreateCallRequest struct {
	Urgent      bool   `json:"urgent"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// CreateCall handles POST /api/calls.
func (h *CallHandler) CreateCall(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("actor_id", actorID)

	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.CreateCall: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}

	call, err := h.callService.CreateCall(c.Request.Context(), actorID, service.CreateCallInput{
		Urgent:      req.Urgent,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		logCtx.WithError(err).Warn("Handler.CreateCall: Failed to create call via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithFields(logrus.Fields{"call_id": call.ID, "number": call.Number}).Info("Handler.CreateCall: Call created")
	SuccessResponse(c, http.StatusCreated, call)
}

// UpdateCallRequest is the body of PATCH /api/calls/:id. Omitted fields are
// left untouched.
type UpdateCallRequest struct {
	Urgent      *bool   `json:"urgent"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

// UpdateCall handles PATCH /api/calls/:id.
func (h *CallHandler) UpdateCall(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	callID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}

	call, err := h.callService.UpdateCall(c.Request.Context(), actorID, callID, service.UpdateCallInput{
		Urgent:      req.Urgent,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, call)
}

// CloseCall handles POST /api/calls/:id/close.
func (h *CallHandler) CloseCall(c *gin.Context) {
	h.transition(c, h.callService.CloseCall)
}

// ReopenCall handles POST /api/calls/:id/reopen.
func (h *CallHandler) ReopenCall(c *gin.Context) {
	h.transition(c, h.callService.ReopenCall)
}

// AbandonCall handles POST /api/calls/:id/abandon.
func (h *CallHandler) AbandonCall(c *gin.Context) {
	h.transition(c, h.callService.AbandonCall)
}

func (h *CallHandler) transition(c *gin.Context, op func(ctx context.Context, actorID, callID uint) (*domain.Call, error)) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	callID, ok := idParam(c, "id")
	if !ok {
		return
	}

	call, err := op(c.Request.Context(), actorID, callID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, call)
}

// ListActiveCalls handles GET /api/calls.
func (h *CallHandler) ListActiveCalls(c *gin.Context) {
	calls, err := h.callService.ListActiveCalls(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"calls": calls})
}

// GetCall handles GET /api/calls/:id.
func (h *CallHandler) GetCall(c *gin.Context) {
	callID, ok := idParam(c, "id")
	if !ok {
		return
	}
	call, err := h.callService.GetCall(c.Request.Context(), callID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, call)
}

// AssignRequest is the body of POST /api/calls/:id/assignments.
type AssignRequest struct {
	MemberID uint `json:"member_id" binding:"required"`
	ETA      *int `json:"eta"`
}

// Assign handles POST /api/calls/:id/assignments.
func (h *CallHandler) Assign(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	callID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: member_id is required")
		return
	}

	a, err := h.callService.Assign(c.Request.Context(), actorID, callID, req.MemberID, req.ETA)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, a)
}

// Unassign handles DELETE /api/calls/:id/assignments/:memberId.
func (h *CallHandler) Unassign(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	callID, ok := idParam(c, "id")
	if !ok {
		return
	}
	memberID, ok := idParam(c, "memberId")
	if !ok {
		return
	}

	if err := h.callService.Unassign(c.Request.Context(), actorID, callID, memberID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Assignment removed"})
}

// AdvanceAssignmentRequest is the body of PATCH /api/calls/:id/assignments/:memberId.
type AdvanceAssignmentRequest struct {
	Status domain.AssignmentStatus `json:"status" binding:"required"`
}

// AdvanceAssignment handles PATCH /api/calls/:id/assignments/:memberId.
func (h *CallHandler) AdvanceAssignment(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	callID, ok := idParam(c, "id")
	if !ok {
		return
	}
	memberID, ok := idParam(c, "memberId")
	if !ok {
		return
	}

	var req AdvanceAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: status is required")
		return
	}

	a, err := h.callService.AdvanceAssignment(c.Request.Context(), actorID, callID, memberID, req.Status)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, a)
}

// actorFromContext reads the authenticated user ID that the auth middleware
// stored in the gin context. Writes the error response itself on failure.
func actorFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("Handler: User ID in context is not uint")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error processing user ID")
		return 0, false
	}
	return userID, true
}

// idParam parses a numeric path parameter. Writes the error response itself
// on failure.
func idParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}
