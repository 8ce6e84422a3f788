package network

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Controller is the part of the engine viewers may drive.
type Controller interface {
	Snapshot() engine.Snapshot
	Pause()
	Resume()
	Paused() bool
	Advance() (engine.Snapshot, error)
	Reset(seed *int64) (engine.Snapshot, error)
}

var _ Controller = (*engine.Engine)(nil)

// Command is an incoming control message from a viewer.
type Command struct {
	Type string `json:"type"` // PAUSE, RESUME, STEP, RESET, STATE
	Seed *int64 `json:"seed,omitempty"`
}

// Client is one websocket viewer.
type Client struct {
	hub     *Hub
	ctrl    Controller
	conn    *websocket.Conn
	send    chan []byte // broadcasts; owned and closed by the hub
	replies chan []byte // command responses; never closed
	limiter *rate.Limiter
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, ctrl Controller, conn *websocket.Conn) *Client {
	limit := rate.Inf
	burst := 1
	if n := hub.cfg.MaxMessagesPerSecond; n > 0 {
		limit = rate.Limit(n)
		burst = n
	}
	return &Client{
		hub:     hub,
		ctrl:    ctrl,
		conn:    conn,
		send:    make(chan []byte, hub.cfg.ClientSendBuffer),
		replies: make(chan []byte, 8),
		limiter: rate.NewLimiter(limit, burst),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWS upgrades viewers on GET /ws. Each viewer first receives the
// current snapshot, then every broadcast.
func ServeWS(hub *Hub, ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub.full() {
			http.Error(w, "too many viewers", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.metrics.RecordWSError()
			hub.logger.Warn("websocket upgrade failed", logger.Err(err))
			return
		}

		c := NewClient(hub, ctrl, conn)
		if !hub.attach(c) {
			conn.Close()
			return
		}
		c.reply(MsgTypeSnapshot, ctrl.Snapshot())
		go c.WritePump()
		go c.ReadPump()
	}
}

// ReadPump pumps commands from the websocket connection to the controller.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warn("websocket read failed", logger.Err(err))
			}
			return
		}
		c.hub.metrics.RecordWSMessage(true)

		if !c.limiter.Allow() {
			c.reply(MsgTypeError, "rate limit exceeded")
			continue
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(MsgTypeError, "malformed command")
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd Command) {
	switch cmd.Type {
	case "PAUSE":
		c.ctrl.Pause()
		c.reply(MsgTypeAck, map[string]bool{"paused": true})
	case "RESUME":
		c.ctrl.Resume()
		c.reply(MsgTypeAck, map[string]bool{"paused": false})
	case "STATE":
		c.reply(MsgTypeSnapshot, c.ctrl.Snapshot())
	case "STEP":
		s, err := c.ctrl.Advance()
		if err != nil {
			c.reply(MsgTypeError, err.Error())
			return
		}
		c.reply(MsgTypeSnapshot, s)
	case "RESET":
		s, err := c.ctrl.Reset(cmd.Seed)
		if err != nil {
			c.reply(MsgTypeError, err.Error())
			return
		}
		c.hub.logger.Info("run reset by viewer", logger.Str("run_id", s.RunID))
		c.reply(MsgTypeSnapshot, s)
	default:
		c.reply(MsgTypeError, "unknown command "+cmd.Type)
	}
}

// reply queues a direct response; a full queue drops it.
func (c *Client) reply(t MessageType, payload any) {
	data, err := encode(t, payload)
	if err != nil {
		c.hub.metrics.RecordWSError()
		return
	}
	select {
	case c.replies <- data:
	default:
		c.hub.metrics.RecordWSDrop()
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case message := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
