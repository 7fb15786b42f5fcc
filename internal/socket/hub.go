// internal/socket/hub.go
package socket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Feedback for the user
	MessageToast MessageType = "toast"

	// Draft autosave status
	MessageDraftSaving MessageType = "draft_saving"
	MessageDraftSaved  MessageType = "draft_saved"

	// Composition session events
	MessageSessionUpdated MessageType = "session_updated"
	MessageSessionClosed  MessageType = "session_closed"

	// System messages
	MessagePing MessageType = "ping"
	MessagePong MessageType = "pong"
	MessageAck  MessageType = "ack"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType            `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// UserRoom is the personal room every client joins on connect.
func UserRoom(userID string) string { return "user:" + userID }

// SessionRoom carries the events of one composition session.
func SessionRoom(sessionID string) string { return "session:" + sessionID }

// RoomAuthorizer decides whether userID may join room.
type RoomAuthorizer func(userID, room string) bool

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte
	Rooms  map[string]bool
	mu     sync.Mutex

	lastPing time.Time
	closed   bool
}

// Hub maintains the set of active clients and routes messages to users and
// rooms. Sends never block the caller: a full queue drops the message.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	roomClients map[string]map[*Client]bool

	register      chan *Client
	unregister    chan *Client
	roomBroadcast chan *RoomMessage
	directMessage chan *DirectMessage

	authorize RoomAuthorizer
	log       *zap.Logger
	done      chan struct{}

	mu sync.RWMutex
}

// RoomMessage represents a message to be sent to a specific room
type RoomMessage struct {
	Room    string
	Message []byte
}

// DirectMessage represents a message to be sent to a specific user
type DirectMessage struct {
	UserID  string
	Message []byte
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[string]map[*Client]bool),
		roomClients:   make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		roomBroadcast: make(chan *RoomMessage, 256),
		directMessage: make(chan *DirectMessage, 256),
		authorize:     defaultAuthorizer,
		log:           log.Named("hub"),
		done:          make(chan struct{}),
	}
}

// defaultAuthorizer only lets a user into their own personal room. Session
// rooms need an authorizer that knows session ownership.
func defaultAuthorizer(userID, room string) bool {
	return room == UserRoom(userID)
}

// SetAuthorizer replaces the room authorizer. Call before Run.
func (h *Hub) SetAuthorizer(fn RoomAuthorizer) {
	if fn != nil {
		h.authorize = fn
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("WebSocket hub started")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			h.log.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case rm := <-h.roomBroadcast:
			h.broadcastToRoom(rm)

		case dm := <-h.directMessage:
			h.sendToUser(dm)

		case <-pingTicker.C:
			h.pingClients()
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true

	h.log.Debug("Client registered",
		zap.String("user_id", client.UserID),
		zap.String("client_id", client.ID),
		zap.Int("total_clients", len(h.clients)),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	if clients, ok := h.userClients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	client.mu.Lock()
	for room := range client.Rooms {
		if clients, ok := h.roomClients[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.roomClients, room)
			}
		}
	}
	client.mu.Unlock()

	client.closeSend()
	h.log.Debug("Client disconnected",
		zap.String("user_id", client.UserID),
		zap.String("client_id", client.ID),
		zap.Int("total_clients", len(h.clients)),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[*Client]bool)
	h.userClients = make(map[string]map[*Client]bool)
	h.roomClients = make(map[string]map[*Client]bool)
}

// deliver queues message on every client, dropping slow ones. Callers hold
// at least the read lock.
func (h *Hub) deliver(clients map[*Client]bool, message []byte) int {
	sent := 0
	for client := range clients {
		select {
		case client.Send <- message:
			sent++
		default:
			go h.drop(client)
		}
	}
	return sent
}

// drop asks the run loop to unregister c. It gives up once the hub stopped.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Register hands a connected client to the run loop.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) broadcastToRoom(rm *RoomMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.roomClients[rm.Room]
	if !ok {
		return
	}
	sent := h.deliver(clients, rm.Message)
	h.log.Debug("Broadcast to room", zap.String("room", rm.Room), zap.Int("sent", sent))
}

func (h *Hub) sendToUser(dm *DirectMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userClients[dm.UserID]
	if !ok {
		return
	}
	h.deliver(clients, dm.Message)
}

func (h *Hub) pingClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, _ := json.Marshal(Message{Type: MessagePing, Timestamp: time.Now()})
	h.deliver(h.clients, data)
}

// ============================================
// Room Management
// ============================================

// JoinRoom adds a client to a room. It reports false when the authorizer
// refuses.
func (h *Hub) JoinRoom(client *Client, room string) bool {
	if !h.authorize(client.UserID, room) {
		h.log.Warn("Room join refused", zap.String("user_id", client.UserID), zap.String("room", room))
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	client.Rooms[room] = true
	client.mu.Unlock()

	if h.roomClients[room] == nil {
		h.roomClients[room] = make(map[*Client]bool)
	}
	h.roomClients[room][client] = true
	return true
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	delete(client.Rooms, room)
	client.mu.Unlock()

	if clients, ok := h.roomClients[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.roomClients, room)
		}
	}
}

// ============================================
// Sending
// ============================================

func encode(msgType MessageType, payload map[string]interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Payload: payload, Timestamp: time.Now()})
}

// SendToUser sends a message to every connection of userID.
func (h *Hub) SendToUser(userID string, msgType MessageType, payload map[string]interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.Error("Error marshaling message", zap.Error(err))
		return
	}
	select {
	case h.directMessage <- &DirectMessage{UserID: userID, Message: data}:
	default:
		h.log.Warn("Direct message queue full, dropping", zap.String("type", string(msgType)))
	}
}

// SendToRoom broadcasts a message to all clients in a room.
func (h *Hub) SendToRoom(room string, msgType MessageType, payload map[string]interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.Error("Error marshaling message", zap.Error(err))
		return
	}
	select {
	case h.roomBroadcast <- &RoomMessage{Room: room, Message: data}:
	default:
		h.log.Warn("Room queue full, dropping", zap.String("room", room), zap.String("type", string(msgType)))
	}
}

// ============================================
// Query Methods
// ============================================

func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userClients[userID]
	return ok
}

func (h *Hub) GetRoomClients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.roomClients[room])
}

func (h *Hub) GetConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionIDFromRoom returns the session id of a session room.
func SessionIDFromRoom(room string) (string, bool) {
	if !strings.HasPrefix(room, "session:") {
		return "", false
	}
	id := strings.TrimPrefix(room, "session:")
	return id, id != ""
}
