package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/hub"
)

// WebSocketHandler upgrades HTTP requests to realtime connections and hands
// them to the hub.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: restrict to the dispatch console origin in production.
			return true
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
	}
}

// HandleConnection handles GET /ws.
//
// The connection starts with no subscriptions; the client sends auth and
// subscribe control messages over the socket once it is up.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	logCtx := logrus.WithField("remote", c.ClientIP())

	// Auth middleware already vetted the token; the in-band auth message
	// later attaches the identity to the connection.
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logCtx.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	if _, ok := userIDAny.(uint); !ok {
		logCtx.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	conn := hub.NewConn(h.hub, ws)
	logCtx = logCtx.WithField("conn_id", conn.ID())

	if !h.hub.Register(conn) {
		logCtx.Error("WS Handler: Hub request channel full, failed to register connection")
		conn.CloseSocket()
		return
	}

	conn.Run()
	logCtx.Info("WS Handler: Connection upgraded and registered")
}
