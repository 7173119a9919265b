package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Frame types exchanged with chat clients
const (
	FrameMessage = "message"
	FrameTyping  = "typing"
	FrameReply   = "reply"
	FrameError   = "error"
)

// Frame is one JSON text frame
type Frame struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Text      string           `json:"text,omitempty"`
	Result    *chat.TurnResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// TurnHandler answers one chat turn
type TurnHandler interface {
	HandleTurn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
}

// Manager upgrades chat connections and runs their turns
type Manager struct {
	turns    TurnHandler
	upgrader websocket.Upgrader
	logger   *logrus.Entry

	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// Client is one connected chat socket
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	manager *Manager

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a chat WebSocket manager
func NewManager(turns TurnHandler, logger *logrus.Logger) *Manager {
	return &Manager{
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger.WithField("component", "websocket"),
		clients: make(map[*Client]struct{}),
	}
}

// HandleWebSocket upgrades the request and starts the client pumps
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithError(err).Error("Failed to upgrade connection")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		id:      fmt.Sprintf("client-%d", time.Now().UnixNano()),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		manager: m,
		ctx:     ctx,
		cancel:  cancel,
	}

	m.register(client)

	go client.WritePump()
	go client.ReadPump()
}

// ConnectionCount returns the number of connected clients
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Close disconnects every client
func (m *Manager) Close() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.cancel()
		c.conn.Close()
	}
}

func (m *Manager) register(c *Client) {
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()

	m.logger.WithField("client", c.id).Debug("Chat client connected")
}

func (m *Manager) unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c)
	m.mu.Unlock()

	m.logger.WithField("client", c.id).Debug("Chat client disconnected")
}

// WritePump writes queued frames and pings to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
					c.manager.logger.WithError(err).Debug("Write error")
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// ReadPump reads message frames; each one starts a turn
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.manager.unregister(c)
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
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
				websocket.CloseNormalClosure) {
				c.manager.logger.WithError(err).Debug("WebSocket closed")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Type != FrameMessage {
			c.enqueue(Frame{Type: FrameError, Error: "expected a message frame"})
			continue
		}

		go c.runTurn(frame)
	}
}

func (c *Client) runTurn(frame Frame) {
	c.enqueue(Frame{Type: FrameTyping, SessionID: frame.SessionID})

	result, err := c.manager.turns.HandleTurn(c.ctx, chat.TurnRequest{
		SessionID: frame.SessionID,
		Text:      frame.Text,
	})
	if err != nil {
		c.enqueue(Frame{Type: FrameError, SessionID: frame.SessionID, Error: err.Error()})
		return
	}

	c.enqueue(Frame{Type: FrameReply, SessionID: result.SessionID, Result: result})
}

// enqueue queues a frame unless the client is gone
func (c *Client) enqueue(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.manager.logger.WithError(err).Error("Failed to marshal frame")
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	}
}
