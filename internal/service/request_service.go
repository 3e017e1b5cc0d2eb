package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
)

// RequestService reconciles schedule requests against the slot set.
type RequestService struct {
	store         repository.Store
	broadcaster   *Broadcaster
	notifier      Notifier
	logger        *zap.Logger
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() string
}

// NewRequestService creates a request service.
func NewRequestService(
	store repository.Store,
	broadcaster *Broadcaster,
	notifier Notifier,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		store:         store,
		broadcaster:   broadcaster,
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// SubmitRequest records a new pending request. Identity, id, status and
// timestamps are assigned here; whatever the client sent for them is ignored.
func (s *RequestService) SubmitRequest(ctx context.Context, actor model.Actor, in model.ScheduleRequest) (*model.ScheduleRequest, error) {
	req, err := s.newRequest(actor, in)
	if err != nil {
		return nil, err
	}

	var target *model.TimeSlot
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		target, err = tx.Slots().GetByID(ctx, req.TargetSlotID)
		if err != nil {
			return storeErr("get target slot", err)
		}
		if target == nil {
			return fmt.Errorf("target slot %s: %w", req.TargetSlotID, ErrNotFound)
		}

		if req.RequestType == model.RequestTypeModify {
			original, err := tx.Slots().GetByID(ctx, *req.OriginalSlotID)
			if err != nil {
				return storeErr("get original slot", err)
			}
			if original == nil {
				return fmt.Errorf("original slot %s: %w", *req.OriginalSlotID, ErrNotFound)
			}
			if !original.OwnedBy(req.StudentID) {
				return fmt.Errorf("original slot %s is not booked by %s: %w", original.ID, req.StudentID, ErrConflict)
			}
		}

		pending, err := tx.Requests().HasPending(ctx, req.StudentID, req.OriginalSlotID, req.TargetSlotID)
		if err != nil {
			return storeErr("check pending requests", err)
		}
		if pending {
			return fmt.Errorf("a pending request for this slot already exists: %w", ErrConflict)
		}

		if err := tx.Requests().Create(ctx, req); err != nil {
			return storeErr("create request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request submitted",
		zap.String("request_id", req.ID),
		zap.String("student_id", req.StudentID),
		zap.String("type", string(req.RequestType)),
		zap.String("target_slot_id", req.TargetSlotID),
	)

	s.broadcaster.RequestsChanged(ctx)

	nctx, cancel := detach(ctx, s.notifyTimeout)
	defer cancel()
	s.notifier.RequestSubmitted(nctx, req, target)
	return req, nil
}

func (s *RequestService) newRequest(actor model.Actor, in model.ScheduleRequest) (*model.ScheduleRequest, error) {
	req := &model.ScheduleRequest{
		ID:            s.newID(),
		StudentID:     actor.ID,
		StudentName:   actor.Name,
		TargetSlotID:  strings.TrimSpace(in.TargetSlotID),
		CourseContent: in.CourseContent,
		Status:        model.RequestStatusPending,
		RequestType:   in.RequestType,
		CreatedAt:     s.now().UTC(),
	}

	if actor.IsTeacher() {
		// Teachers file requests on a student's behalf.
		req.StudentID = strings.TrimSpace(in.StudentID)
		req.StudentName = strings.TrimSpace(in.StudentName)
		if req.StudentID == "" {
			return nil, fmt.Errorf("studentId is required: %w", ErrInvalid)
		}
	}

	if in.OriginalSlotID != nil {
		if id := strings.TrimSpace(*in.OriginalSlotID); id != "" {
			req.OriginalSlotID = &id
		}
	}

	if req.TargetSlotID == "" {
		return nil, fmt.Errorf("targetSlotId is required: %w", ErrInvalid)
	}

	if req.RequestType == "" {
		req.RequestType = model.RequestTypeNew
		if req.OriginalSlotID != nil {
			req.RequestType = model.RequestTypeModify
		}
	}

	switch req.RequestType {
	case model.RequestTypeModify:
		if req.OriginalSlotID == nil {
			return nil, fmt.Errorf("modify request needs originalSlotId: %w", ErrInvalid)
		}
		if *req.OriginalSlotID == req.TargetSlotID {
			return nil, fmt.Errorf("original and target slot are the same: %w", ErrInvalid)
		}
	case model.RequestTypeNew:
		if req.OriginalSlotID != nil {
			return nil, fmt.Errorf("new request cannot carry originalSlotId: %w", ErrInvalid)
		}
	default:
		return nil, fmt.Errorf("unknown request type %q: %w", req.RequestType, ErrInvalid)
	}

	return req, nil
}

// ApproveRequest frees the original slot, books the target for the student
// with the booking confirmed and marks the request approved. All or nothing.
func (s *RequestService) ApproveRequest(ctx context.Context, actor model.Actor, requestID string) error {
	if err := requireTeacher(actor); err != nil {
		return err
	}

	var req *model.ScheduleRequest
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		req, err = pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if req.OriginalSlotID != nil {
			original, err := tx.Slots().GetByID(ctx, *req.OriginalSlotID)
			if err != nil {
				return storeErr("get original slot", err)
			}
			if original == nil {
				return fmt.Errorf("original slot %s: %w", *req.OriginalSlotID, ErrNotFound)
			}
		}

		target, err := tx.Slots().GetByID(ctx, req.TargetSlotID)
		if err != nil {
			return storeErr("get target slot", err)
		}
		if target == nil {
			return fmt.Errorf("target slot %s: %w", req.TargetSlotID, ErrNotFound)
		}
		if !target.IsFree() {
			return fmt.Errorf("target slot %s is already booked: %w", target.ID, ErrConflict)
		}

		if req.OriginalSlotID != nil {
			if err := tx.Slots().Release(ctx, *req.OriginalSlotID, req.StudentID); err != nil {
				return storeErr("release original slot", err)
			}
		}
		if err := tx.Slots().Occupy(ctx, target.ID, req.Booking(), true); err != nil {
			return storeErr("occupy target slot", err)
		}
		if err := tx.Requests().Resolve(ctx, req.ID, model.RequestStatusApproved, s.now().UTC()); err != nil {
			return storeErr("approve request", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Request approved",
		zap.String("request_id", req.ID),
		zap.String("student_id", req.StudentID),
		zap.String("target_slot_id", req.TargetSlotID),
	)

	s.broadcaster.AllChanged(ctx)
	return nil
}

// RejectRequest marks a pending request rejected. Slots are not touched.
func (s *RequestService) RejectRequest(ctx context.Context, actor model.Actor, requestID string) error {
	if err := requireTeacher(actor); err != nil {
		return err
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		req, err := pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := tx.Requests().Resolve(ctx, req.ID, model.RequestStatusRejected, s.now().UTC()); err != nil {
			return storeErr("reject request", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Request rejected", zap.String("request_id", requestID))

	s.broadcaster.RequestsChanged(ctx)
	return nil
}

func pendingRequest(ctx context.Context, tx repository.Store, id string) (*model.ScheduleRequest, error) {
	req, err := tx.Requests().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get request", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if !req.IsPending() {
		return nil, fmt.Errorf("request %s is already %s: %w", id, req.Status, ErrConflict)
	}
	return req, nil
}

// ProcessedHistory lists approved and rejected requests, newest first.
func (s *RequestService) ProcessedHistory(ctx context.Context, actor model.Actor) ([]*model.ScheduleRequest, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}

	requests, err := s.store.Requests().ListProcessed(ctx)
	if err != nil {
		return nil, storeErr("list processed requests", err)
	}
	return nonNil(requests), nil
}

// SweepOrphans rejects pending requests whose slots no longer exist.
func (s *RequestService) SweepOrphans(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		n, err = tx.Requests().RejectOrphaned(ctx, s.now().UTC())
		if err != nil {
			return storeErr("reject orphaned requests", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("Orphaned requests rejected", zap.Int64("count", n))
		s.broadcaster.RequestsChanged(ctx)
	}
	return n, nil
}
