package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/class_scheduler/internal/model"
)

// Notifier tells the teacher about events that need attention.
// Implementations log their own failures; they never fail a command.
type Notifier interface {
	RequestSubmitted(ctx context.Context, req *model.ScheduleRequest, target *model.TimeSlot)
	RequestsCancelled(ctx context.Context, slot *model.TimeSlot, rejected []*model.ScheduleRequest)
}

const notifyTimeout = 10 * time.Second
