package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the WebSocket envelope format, both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub tracks every live connection and which room each one is bound to.
// It implements service.Broadcaster: the service binds sessions to rooms
// as joins happen, and room broadcasts reach exactly the bound members.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection            // sessionID -> conn
	rooms map[string]map[string]*Connection // roomID -> sessionID -> conn
}

// Connection is one connected client. Send is drained by its write pump;
// a full buffer drops the message rather than stalling the room.
type Connection struct {
	SessionID string
	Send      chan []byte

	roomID    string
	closeOnce sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// Register adds a freshly upgraded connection, not yet in any room.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.SessionID] = conn
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, ok := h.conns[conn.SessionID]
	if !ok || existing != conn {
		return
	}
	h.removeFromRoom(conn)
	delete(h.conns, conn.SessionID)
	conn.closeOnce.Do(func() { close(conn.Send) })
}

// BindSession moves the session's connection into a room bucket, leaving
// any previous bucket first.
func (h *Hub) BindSession(sessionID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[sessionID]
	if !ok {
		return
	}
	h.removeFromRoom(conn)

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Connection)
	}
	h.rooms[roomID][sessionID] = conn
	conn.roomID = roomID
}

// UnbindSession takes the session's connection out of its room bucket.
func (h *Hub) UnbindSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.conns[sessionID]; ok {
		h.removeFromRoom(conn)
	}
}

// removeFromRoom must be called with the lock held.
func (h *Hub) removeFromRoom(conn *Connection) {
	if conn.roomID == "" {
		return
	}
	if members, ok := h.rooms[conn.roomID]; ok {
		delete(members, conn.SessionID)
		if len(members) == 0 {
			delete(h.rooms, conn.roomID)
		}
	}
	conn.roomID = ""
}

// SendToSession unicasts a message to one session.
func (h *Hub) SendToSession(sessionID, msgType string, payload interface{}) {
	data, ok := encode(msgType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn, ok := h.conns[sessionID]; ok {
		conn.trySend(data)
	}
}

// BroadcastToRoom sends a message to every member of a room.
func (h *Hub) BroadcastToRoom(roomID, msgType string, payload interface{}) {
	data, ok := encode(msgType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.rooms[roomID] {
		conn.trySend(data)
	}
}

// CloseAll shuts down every connection, for server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		conn.closeOnce.Do(func() { close(conn.Send) })
	}
	h.conns = make(map[string]*Connection)
	h.rooms = make(map[string]map[string]*Connection)
}

func (c *Connection) trySend(data []byte) {
	select {
	case c.Send <- data:
	default:
		// Buffer full, drop rather than stall the room.
	}
}

func encode(msgType string, payload interface{}) ([]byte, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s payload: %v", msgType, err)
		return nil, false
	}
	data, err := json.Marshal(&Message{Type: msgType, Payload: raw})
	if err != nil {
		log.Printf("marshal %s envelope: %v", msgType, err)
		return nil, false
	}
	return data, true
}
