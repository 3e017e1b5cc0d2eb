package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/controller/socket"
	"github.com/Freeeeeet/class_scheduler/internal/metrics"
)

// Relay delivers an encoded frame to local clients.
type Relay interface {
	Broadcast(msg []byte)
}

// NewClient creates a Redis client for addr.
func NewClient(addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), nil
}

// RedisPublisher fans events out through a Redis channel so every instance sees them.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	metrics *metrics.Metrics
}

// NewRedisPublisher creates a publisher writing to channel.
func NewRedisPublisher(client *redis.Client, channel string, m *metrics.Metrics) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, metrics: m}
}

// Publish encodes the event as a socket envelope and sends it to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, event string, payload any) error {
	msg, err := socket.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	p.metrics.Broadcast(event)
	return nil
}

// Subscriber relays frames from the Redis channel to the local hub.
type Subscriber struct {
	client  *redis.Client
	channel string
	relay   Relay
	logger  *zap.Logger
}

// NewSubscriber creates a subscriber relaying channel messages to relay.
func NewSubscriber(client *redis.Client, channel string, relay Relay, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		client:  client,
		channel: channel,
		relay:   relay,
		logger:  logger,
	}
}

// Run blocks until ctx is done or the subscription fails.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("Subscribed to event channel", zap.String("channel", s.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("redis subscription closed")
			}
			s.relay.Broadcast([]byte(msg.Payload))
		}
	}
}
