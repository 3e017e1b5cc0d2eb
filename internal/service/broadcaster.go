package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
)

// Push event names.
const (
	EventInitialData      = "initial-data"
	EventSlotsUpdated     = "slots-updated"
	EventRequestsUpdated  = "requests-updated"
	EventProcessedHistory = "processed-history"
)

// Publisher delivers an event to every connected client.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Snapshot is the full state sent to a client on request-initial-data.
type Snapshot struct {
	TimeSlots        []*model.TimeSlot        `json:"timeSlots"`
	ScheduleRequests []*model.ScheduleRequest `json:"scheduleRequests"`
}

const broadcastTimeout = 5 * time.Second

// Broadcaster re-reads whole collections after a mutation and publishes them.
// Broadcasts run on a context detached from the caller's deadline.
type Broadcaster struct {
	store     repository.Store
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration
}

// NewBroadcaster creates a broadcaster publishing through publisher.
func NewBroadcaster(store repository.Store, publisher Publisher, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		store:     store,
		publisher: publisher,
		logger:    logger,
		timeout:   broadcastTimeout,
	}
}

// Snapshot reads the current slots and requests.
func (b *Broadcaster) Snapshot(ctx context.Context) (*Snapshot, error) {
	slots, err := b.store.Slots().List(ctx)
	if err != nil {
		return nil, storeErr("list slots", err)
	}

	requests, err := b.store.Requests().List(ctx)
	if err != nil {
		return nil, storeErr("list requests", err)
	}

	return &Snapshot{
		TimeSlots:        nonNil(slots),
		ScheduleRequests: nonNil(requests),
	}, nil
}

// SlotsChanged publishes slots-updated with every slot.
func (b *Broadcaster) SlotsChanged(ctx context.Context) {
	ctx, cancel := detach(ctx, b.timeout)
	defer cancel()

	slots, err := b.store.Slots().List(ctx)
	if err != nil {
		b.logger.Error("Failed to read slots for broadcast", zap.Error(err))
		return
	}
	b.publish(ctx, EventSlotsUpdated, nonNil(slots))
}

// RequestsChanged publishes requests-updated with every request.
func (b *Broadcaster) RequestsChanged(ctx context.Context) {
	ctx, cancel := detach(ctx, b.timeout)
	defer cancel()

	requests, err := b.store.Requests().List(ctx)
	if err != nil {
		b.logger.Error("Failed to read requests for broadcast", zap.Error(err))
		return
	}
	b.publish(ctx, EventRequestsUpdated, nonNil(requests))
}

// AllChanged publishes both collections, slots first.
func (b *Broadcaster) AllChanged(ctx context.Context) {
	b.SlotsChanged(ctx)
	b.RequestsChanged(ctx)
}

func (b *Broadcaster) publish(ctx context.Context, event string, payload any) {
	if err := b.publisher.Publish(ctx, event, payload); err != nil {
		b.logger.Error("Failed to publish event",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// detach keeps the values of ctx but not its deadline or cancellation.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
