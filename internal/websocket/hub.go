package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/planvision/studio/internal/model"
)

const (
	pingInterval  = 30 * time.Second
	sendQueueSize = 256
)

// Client is one UI connection subscribed to a studio session.
type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

// Hub fans render lifecycle events out to the connections subscribed to
// each session. It implements service.ProgressSink, so the orchestrator
// pushes through it without knowing about websockets.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	outbound   chan sessionMessage

	mu sync.RWMutex
}

type sessionMessage struct {
	sessionID string
	data      []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan sessionMessage, sendQueueSize),
	}
}

// Run owns the client registry. All registry mutations happen here.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.sessionID] == nil {
				h.clients[client.sessionID] = make(map[*Client]bool)
			}
			h.clients[client.sessionID][client] = true
			h.mu.Unlock()
			log.Printf("WS client subscribed to session %s", client.sessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.clients[client.sessionID]; ok {
				if subs[client] {
					delete(subs, client)
					close(client.send)
					if len(subs) == 0 {
						delete(h.clients, client.sessionID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("WS client left session %s", client.sessionID)

		case msg := <-h.outbound:
			h.mu.RLock()
			for client := range h.clients[msg.sessionID] {
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; drop the connection, not the event.
					close(client.send)
					delete(h.clients[msg.sessionID], client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Progress pushes a polled job snapshot to the session's subscribers.
func (h *Hub) Progress(sessionID string, job *model.BatchRenderJob) {
	h.send(sessionID, model.WSProgressMessage{
		Type:           model.WSMessageTypeProgress,
		JobID:          job.ID,
		Status:         job.Status,
		Progress:       job.Progress,
		CompletedRooms: job.CompletedRooms,
		TotalRooms:     job.TotalRooms,
	})
}

// PhaseChange announces a phase transition to the session's subscribers.
func (h *Hub) PhaseChange(sessionID string, phase model.RenderPhase, jobID string) {
	h.send(sessionID, model.WSPhaseMessage{
		Type:  model.WSMessageTypePhase,
		Phase: phase,
		JobID: jobID,
	})
}

// ConfigError pushes a configure-phase error banner message.
func (h *Hub) ConfigError(sessionID string, message string) {
	h.send(sessionID, model.WSErrorMessage{
		Type: model.WSMessageTypeError,
		Error: model.WSError{
			Code:    "RENDER_ERROR",
			Message: message,
		},
	})
}

func (h *Hub) send(sessionID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal ws message: %v", err)
		return
	}
	h.outbound <- sessionMessage{sessionID: sessionID, data: data}
}

// HandleConnection runs the read/write loops for one subscriber until the
// connection drops.
func (h *Hub) HandleConnection(c *websocket.Conn, sessionID string) {
	client := &Client{
		sessionID: sessionID,
		conn:      c,
		send:      make(chan []byte, sendQueueSize),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	go client.writeLoop()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.send <- data
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
