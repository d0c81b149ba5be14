package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syncstream/syncstream/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	pingPeriod     = 30 * time.Second
	pongWait       = 60 * time.Second
	sendBufferSize = 64
)

var ErrChannelClosed = errors.New("client channel closed")
var ErrChannelFull = errors.New("client send buffer full")

// CommandHandler receives decoded client commands. Implemented by the
// session layer; the gateway stays transport-only.
type CommandHandler interface {
	HandleIntent(c *Client, cmd Command)
	HandleChat(c *Client, cmd Command)
	HandleLeave(c *Client)
	Disconnected(c *Client)
}

// Client is one logical session over one websocket connection. Events are
// delivered through a buffered channel so a slow reader never blocks a
// broadcast.
type Client struct {
	MemberID string
	RoomID   string

	conn      *connWrapper
	send      chan *Event
	closeOnce sync.Once
	closed    chan struct{}
	logger    *zap.SugaredLogger
}

func NewClient(conn *websocket.Conn, memberID, roomID string, logger *zap.SugaredLogger) *Client {
	return &Client{
		MemberID: memberID,
		RoomID:   roomID,
		conn:     newConnWrapper(conn),
		send:     make(chan *Event, sendBufferSize),
		closed:   make(chan struct{}),
		logger:   logger,
	}
}

// Enqueue hands an event to the write pump without blocking. A full buffer
// or a closed client is a delivery failure the caller must handle; it never
// aborts delivery to other clients.
func (c *Client) Enqueue(event *Event) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	default:
		metrics.EventsDropped.Inc()
		return ErrChannelFull
	}
}

// Close is idempotent and safe from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// WritePump drains the send channel onto the socket, pinging on an
// interval. FIFO per channel: events go out in Enqueue order.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debugw("ws write failed",
					"memberId", c.MemberID,
					"roomId", c.RoomID,
					"error", err,
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// ReadPump decodes client commands until the connection drops, then reports
// the disconnect. Malformed frames are answered with an error event rather
// than killing the session.
func (c *Client) ReadPump(handler CommandHandler) {
	defer func() {
		c.Close()
		handler.Disconnected(c)
	}()

	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debugw("ws read failed",
					"memberId", c.MemberID,
					"error", err,
				)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			_ = c.Enqueue(NewError(c.RoomID, "malformed command"))
			continue
		}

		switch cmd.Type {
		case CommandIntent:
			handler.HandleIntent(c, cmd)
		case CommandChat:
			handler.HandleChat(c, cmd)
		case CommandLeave:
			handler.HandleLeave(c)
			return
		default:
			_ = c.Enqueue(NewError(c.RoomID, "unknown command type"))
		}
	}
}
