package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message types sent on /api/events.
const (
	MessageCapture = "capture"
	MessageSession = "session"
)

// Message is one websocket event.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	Time int64  `json:"timestamp"`
}

// CaptureMessage announces a stored capture.
type CaptureMessage struct {
	SessionID   string  `json:"session_id"`
	CaptureID   string  `json:"capture_id"`
	Mode        string  `json:"mode"`
	HandSide    string  `json:"hand_side,omitempty"`
	FaceQuality float64 `json:"face_quality,omitempty"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ImageURL    string  `json:"image_url"`
}

// EventHub broadcasts capture and session events to websocket clients.
type EventHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]bool)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Clients only listen; reads detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast sends a message of type typ to every client. Clients that fail
// to take the write are dropped.
func (h *EventHub) Broadcast(typ string, data any) {
	msg, err := json.Marshal(Message{Type: typ, Data: data, Time: time.Now().UnixMilli()})
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
