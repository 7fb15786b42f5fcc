// internal/socket/handler.go
package socket

import (
	"net/http"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades authenticated requests to WebSocket connections.
type Handler struct {
	Hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler builds the upgrade handler. An empty allowedOrigins accepts any
// origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		Hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade requests. The user comes from
// the UserContext middleware.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Hub.log.Warn("Upgrade error", zap.Error(err))
		return
	}

	client := NewClient(h.Hub, userID, conn)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	h.Hub.JoinRoom(client, UserRoom(userID))

	go client.WritePump()
	go client.ReadPump()
}

func NewClient(hub *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan []byte, 256),
		Rooms:    make(map[string]bool),
		lastPing: time.Now(),
	}
}
