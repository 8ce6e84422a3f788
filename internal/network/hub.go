package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
)

// MessageType tags every frame sent to viewers.
type MessageType string

const (
	MsgTypeSnapshot MessageType = "SNAPSHOT"
	MsgTypeAck      MessageType = "ACK"
	MsgTypeError    MessageType = "ERROR"
)

// Message is the envelope of every outbound frame.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   any         `json:"payload"`
}

func encode(t MessageType, payload any) ([]byte, error) {
	return json.Marshal(Message{Type: t, Timestamp: time.Now().UnixMilli(), Payload: payload})
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	cfg        config.Server
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(cfg config.Server, log *logger.Logger, m *metrics.Collector) *Hub {
	if cfg.BroadcastBuffer < 1 {
		cfg.BroadcastBuffer = 1
	}
	if cfg.ClientSendBuffer < 1 {
		cfg.ClientSendBuffer = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Hub{
		broadcast:  make(chan []byte, cfg.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		cfg:        cfg,
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			close(h.done)
			h.logger.Info("websocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("websocket client connected", logger.Int("clients", n))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("websocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					// Slow viewer; drop it rather than stall the others.
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSDrop()
					h.logger.Warn("dropping slow websocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// attach hands c to the Run loop. It fails once the hub has stopped.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastSnapshot queues s for every client. It never blocks, so it can
// be registered with Engine.OnSnapshot; a full queue drops the frame.
func (h *Hub) BroadcastSnapshot(s engine.Snapshot) {
	payload, err := encode(MsgTypeSnapshot, s)
	if err != nil {
		h.metrics.RecordWSError()
		h.logger.Error("failed to serialize snapshot", logger.Err(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.metrics.RecordWSDrop()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) full() bool {
	return h.cfg.MaxClients > 0 && h.ClientCount() >= h.cfg.MaxClients
}
