package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"typerace/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades connections and routes inbound events to the room
// service. Each connection gets a server-assigned session ID; clients
// never state their identity beyond the username they join with.
type Handler struct {
	hub     *Hub
	roomSvc *service.RoomService
}

// NewHandler creates a WebSocket handler.
func NewHandler(hub *Hub, roomSvc *service.RoomService) *Handler {
	return &Handler{hub: hub, roomSvc: roomSvc}
}

// Inbound payloads. Count is loosely typed because clients send it as a
// number or a string; anything non-numeric falls back to the default size.
type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type startRacePayload struct {
	Count interface{} `json:"count"`
	Mode  string      `json:"mode"`
}

type progressPayload struct {
	Chars  int `json:"chars"`
	Errors int `json:"errors"`
}

// ServeWS handles GET /v1/ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		SessionID: uuid.NewString(),
		Send:      make(chan []byte, 256),
	}
	h.hub.Register(conn)

	log.Printf("session %s connected", conn.SessionID)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.roomSvc.Disconnect(context.Background(), conn.SessionID)
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		h.dispatch(conn.SessionID, data)
	}
}

// dispatch routes one inbound event. Malformed messages are dropped
// without a reply; the shared live view is best effort.
func (h *Handler) dispatch(sessionID string, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case "joinRoom":
		var p joinRoomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		h.roomSvc.Join(ctx, sessionID, p.RoomID, p.Username)

	case "startRace":
		var p startRacePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return
			}
		}
		h.roomSvc.StartRace(sessionID, parseCount(p.Count), p.Mode)

	case "progress":
		var p progressPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		h.roomSvc.Progress(ctx, sessionID, p.Chars, p.Errors)

	default:
		log.Printf("session %s: unknown event %q", sessionID, msg.Type)
	}
}

// parseCount coerces a client-supplied count; zero means "use the default".
func parseCount(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
