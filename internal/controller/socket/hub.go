package socket

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/metrics"
)

// Hub is the registry of live connections on this instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHub creates an empty connection registry.
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		metrics: m,
		logger:  logger,
	}
}

// Register adds c to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Info("Client connected",
		zap.String("conn_id", c.id),
		zap.String("user_id", c.actor.ID),
		zap.String("role", string(c.actor.Role)),
	)
}

// Unregister removes c from the broadcast set.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.metrics.ConnectionClosed()
	h.logger.Info("Client disconnected", zap.String("conn_id", c.id))
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes the event and delivers it to every local client.
func (h *Hub) Publish(_ context.Context, event string, payload any) error {
	msg, err := Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	h.metrics.Broadcast(event)
	h.Broadcast(msg)
	return nil
}

// Broadcast delivers an already encoded frame to every local client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// Close drops every connection. Used on shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
