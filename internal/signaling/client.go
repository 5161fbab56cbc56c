package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 1 * time.Second

// wsClient wraps a websocket connection behind the registry.Conn interface.
// All writes funnel through a single pump goroutine since gorilla/websocket
// permits only one concurrent writer.
type wsClient struct {
	id  string
	log *slog.Logger
	ws  *websocket.Conn

	send chan []byte
	ping chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

func newWSClient(ws *websocket.Conn, logger *slog.Logger, queueLen int) *wsClient {
	c := &wsClient{
		id:   uuid.NewString(),
		log:  logger,
		ws:   ws,
		send: make(chan []byte, queueLen),
		ping: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *wsClient) ID() string { return c.id }

// Send queues payload for delivery. A full queue drops the frame rather than
// letting one slow consumer stall the caller.
func (c *wsClient) Send(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		c.log.Warn("send queue full, dropping frame", "conn_id", c.id)
		return nil
	}
}

func (c *wsClient) Ping() error {
	select {
	case c.ping <- struct{}{}:
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	return nil
}

func (c *wsClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.ws.Close()
}

func (c *wsClient) writePump() {
	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("write failed", "conn_id", c.id, "err", err)
				_ = c.Close()
				return
			}
		case <-c.ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.log.Debug("ping failed", "conn_id", c.id, "err", err)
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
