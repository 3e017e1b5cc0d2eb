package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

// Client is one authenticated socket connection.
type Client struct {
	id    string
	actor model.Actor
	conn  *websocket.Conn
	send  chan []byte

	done      chan struct{}
	closeOnce sync.Once

	logger *zap.Logger
}

func newClient(conn *websocket.Conn, actor model.Actor, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		actor:  actor,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("conn_id", id)),
	}
}

func (c *Client) ID() string         { return c.id }
func (c *Client) Actor() model.Actor { return c.actor }

// Send queues msg for writing. A client that cannot keep up is dropped.
func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("Send buffer full, dropping client")
		c.Close()
		return false
	}
}

// Reply sends a frame to this client only.
func (c *Client) Reply(env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.String("event", env.Event), zap.Error(err))
		return
	}
	c.Send(msg)
}

// Close stops the write loop and closes the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readLoop reads frames until the connection fails and hands each to handle.
func (c *Client) readLoop(ctx context.Context, handle func(ctx context.Context, c *Client, frame []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Socket read failed", zap.Error(err))
			}
			return
		}

		handle(ctx, c, data)
	}
}

// writeLoop drains the send queue and keeps the connection alive with pings.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(messageType, data)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("Socket write failed", zap.Error(err))
	}
	return err
}
