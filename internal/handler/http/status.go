package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ConnectionCounter reports how many realtime connections are live.
type ConnectionCounter interface {
	ConnectionCount() int
}

// StatusHandler exposes a small operational snapshot.
type StatusHandler struct {
	counter ConnectionCounter
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(counter ConnectionCounter) *StatusHandler {
	return &StatusHandler{counter: counter}
}

// Status handles GET /api/status.
func (h *StatusHandler) Status(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.counter.ConnectionCount(),
	})
}
