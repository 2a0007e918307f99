package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatty/logger"
)

const (
	// time allowed to write a frame to the peer
	writeWait = 10 * time.Second
	// read deadline, refreshed on every pong
	pongWait = 60 * time.Second
	// ping interval; must be under pongWait
	pingPeriod = 25 * time.Second

	maxMessageSize = 1 << 20 // 1MB
)

// Client is one live connection for one user. A single user may hold
// several clients at once (multi-tab, multi-device); each keeps its own
// send queue drained by a single writer goroutine.
type Client struct {
	ConnID string
	UserID string
	WS     *websocket.Conn
	Send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		ConnID: connID,
		UserID: userID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue hands a payload to the writer goroutine without blocking.
// Returns false when the queue is full or the client is closed; callers
// treat that as a failed push for this handle.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close tears the connection down. Safe to call more than once and from
// any goroutine; the writer exits via the done channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.WS.Close()
	})
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings. One per client; it owns all writes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("ws write failed, closing",
					zap.String("user_id", c.UserID), zap.String("conn_id", c.ConnID))
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop consumes inbound frames until the peer disconnects. Clients
// talk to the server over HTTP; the socket is push-only, so inbound
// data frames are discarded and only control traffic matters.
func (c *Client) readLoop() {
	defer c.Close()

	c.WS.SetReadLimit(maxMessageSize)
	_ = c.WS.SetReadDeadline(time.Now().Add(pongWait))
	c.WS.SetPongHandler(func(string) error {
		return c.WS.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.WS.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debug("ws read error",
					zap.String("user_id", c.UserID), zap.String("conn_id", c.ConnID))
			}
			return
		}
	}
}
