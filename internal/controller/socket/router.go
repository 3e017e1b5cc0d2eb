package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/metrics"
	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/service"
)

// Inbound command names.
const (
	CmdRequestInitialData      = "request-initial-data"
	CmdAddTimeSlots            = "add-time-slots"
	CmdDeleteTimeSlot          = "delete-time-slot"
	CmdBookSlot                = "book-slot"
	CmdConfirmBooking          = "confirm-booking"
	CmdModifyRequest           = "modify-request"
	CmdApproveModification     = "approve-modification"
	CmdRejectModification      = "reject-modification"
	CmdRequestProcessedHistory = "request-processed-history"
)

// commandFunc runs one command. A non-nil reply is sent to the caller
// instead of the default ack.
type commandFunc func(ctx context.Context, actor model.Actor, data json.RawMessage) (reply *Envelope, err error)

// Router decodes client frames and dispatches them to the services.
type Router struct {
	slots       *service.SlotService
	requests    *service.RequestService
	broadcaster *service.Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger
	timeout     time.Duration

	commands map[string]commandFunc
}

// NewRouter creates a router running each command with timeout.
func NewRouter(
	slots *service.SlotService,
	requests *service.RequestService,
	broadcaster *service.Broadcaster,
	m *metrics.Metrics,
	logger *zap.Logger,
	timeout time.Duration,
) *Router {
	r := &Router{
		slots:       slots,
		requests:    requests,
		broadcaster: broadcaster,
		metrics:     m,
		logger:      logger,
		timeout:     timeout,
	}

	r.commands = map[string]commandFunc{
		CmdRequestInitialData:      r.initialData,
		CmdAddTimeSlots:            r.addTimeSlots,
		CmdDeleteTimeSlot:          r.deleteTimeSlot,
		CmdBookSlot:                r.bookSlot,
		CmdConfirmBooking:          r.confirmBooking,
		CmdModifyRequest:           r.modifyRequest,
		CmdApproveModification:     r.approveModification,
		CmdRejectModification:      r.rejectModification,
		CmdRequestProcessedHistory: r.processedHistory,
	}
	return r
}

// Handle decodes one frame, runs the command under the command timeout and answers the caller.
func (r *Router) Handle(ctx context.Context, c *Client, frame []byte) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil || in.Event == "" {
		r.fail(c, in, fmt.Errorf("malformed frame: %w", service.ErrInvalid))
		return
	}

	cmd, ok := r.commands[in.Event]
	if !ok {
		r.fail(c, in, fmt.Errorf("unknown command %q: %w", in.Event, service.ErrInvalid))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	reply, err := cmd(ctx, c.Actor(), in.Data)
	if err != nil {
		r.metrics.ObserveCommand(in.Event, string(service.KindOf(err)), time.Since(started))
		r.fail(c, in, err)
		return
	}
	r.metrics.ObserveCommand(in.Event, "ok", time.Since(started))

	if reply != nil {
		reply.Ref = in.Ref
		c.Reply(*reply)
		return
	}
	c.Reply(Envelope{Event: EventAck, Ref: in.Ref, Data: Ack{Command: in.Event, OK: true}})
}

func (r *Router) fail(c *Client, in Inbound, err error) {
	kind := service.KindOf(err)

	fields := []zap.Field{
		zap.String("command", in.Event),
		zap.String("user_id", c.Actor().ID),
		zap.String("reason", string(kind)),
		zap.Error(err),
	}
	if kind == service.KindPersistence {
		r.logger.Error("Command failed", fields...)
	} else {
		r.logger.Warn("Command rejected", fields...)
	}

	c.Reply(Envelope{Event: EventAck, Ref: in.Ref, Data: Ack{
		Command: in.Event,
		OK:      false,
		Reason:  kind,
		Message: service.ErrorMessage(err),
	}})
}

func (r *Router) initialData(ctx context.Context, _ model.Actor, _ json.RawMessage) (*Envelope, error) {
	snapshot, err := r.broadcaster.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: service.EventInitialData, Data: snapshot}, nil
}

func (r *Router) addTimeSlots(ctx context.Context, actor model.Actor, data json.RawMessage) (*Envelope, error) {
	var ranges []model.SlotRange
	if err := decode(data, &ranges); err != nil {
		return nil, err
	}
	_, err := r.slots.AddSlots(ctx, actor, ranges)
	return nil, err
}

func (r *Router) deleteTimeSlot(ctx context.Context, actor model.Actor, data json.RawMessage) (*Envelope, error) {
	slotID, err := decodeID(data, "slotId")
	if err != nil {
		return nil, err
	}
	return nil, r.slots.DeleteSlot(ctx, actor, slotID)
}

func (r *Router) bookSlot(ctx context.Context, actor model.Actor, data json.RawMessage) (*Envelope, error) {
	var in service.BookingInput
	if err := decode(data, &in); err != nil {
		return nil, err
	}
	_, err := r.slots.BookSlot(ctx, actor, in)
	return nil, err
}

func (r *Router) confirmBooking(ctx context.Context, actor model.Actor, data json.RawMessage) (*Envelope, error) {
	slotID, err := decodeID(data, "slotId")
	if err != nil {
		return nil, err
	}
	return nil, r.slots.ConfirmBooking(ctx, actor, slotID)
}

func (r *Router) modifyRequest(ctx context.Context, actor model.Actor, data json.RawMessage) (*Envelope, error) {
	var in model.ScheduleRequest
	if err := decode(data, &in); err != nil {
		return nil, err
	}
	_, err := r.requests.SubmitRequest(ctx, actor, in)
	return nil, err
}

func (r *Router) approveModification(ctx context.Context, actor model.Actor, data json.RawMessage) (*Envelope, error) {
	requestID, err := decodeID(data, "requestId")
	if err != nil {
		return nil, err
	}
	return nil, r.requests.ApproveRequest(ctx, actor, requestID)
}

func (r *Router) rejectModification(ctx context.Context, actor model.Actor, data json.RawMessage) (*Envelope, error) {
	requestID, err := decodeID(data, "requestId")
	if err != nil {
		return nil, err
	}
	return nil, r.requests.RejectRequest(ctx, actor, requestID)
}

func (r *Router) processedHistory(ctx context.Context, actor model.Actor, _ json.RawMessage) (*Envelope, error) {
	history, err := r.requests.ProcessedHistory(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: service.EventProcessedHistory, Data: history}, nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing payload: %w", service.ErrInvalid)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, service.ErrInvalid)
	}
	return nil
}

// decodeID accepts either a bare JSON string or an object carrying the id under key.
func decodeID(data json.RawMessage, key string) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj map[string]string
		if err := decode(data, &obj); err != nil {
			return "", err
		}
		id = obj[key]
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s is required: %w", key, service.ErrInvalid)
	}
	return id, nil
}
