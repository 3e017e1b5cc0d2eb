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

// BookingInput is the payload of book-slot.
type BookingInput struct {
	SlotID        string `json:"slotId"`
	StudentID     string `json:"studentId"`
	StudentName   string `json:"studentName"`
	CourseContent string `json:"courseContent"`
}

// SlotService owns slot creation, deletion, booking and confirmation.
type SlotService struct {
	store         repository.Store
	broadcaster   *Broadcaster
	notifier      Notifier
	logger        *zap.Logger
	rejectOverlap bool
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() string
}

// NewSlotService creates a slot service. rejectOverlap refuses batches that
// overlap existing slots or each other.
func NewSlotService(
	store repository.Store,
	broadcaster *Broadcaster,
	notifier Notifier,
	logger *zap.Logger,
	rejectOverlap bool,
) *SlotService {
	return &SlotService{
		store:         store,
		broadcaster:   broadcaster,
		notifier:      notifier,
		logger:        logger,
		rejectOverlap: rejectOverlap,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// AddSlots creates one free slot per range in a single transaction.
func (s *SlotService) AddSlots(ctx context.Context, actor model.Actor, ranges []model.SlotRange) ([]*model.TimeSlot, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no slots given: %w", ErrInvalid)
	}
	for i, r := range ranges {
		if !r.Valid() {
			return nil, fmt.Errorf("slot %d: start must be before end: %w", i, ErrInvalid)
		}
	}

	created := make([]*model.TimeSlot, 0, len(ranges))
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if s.rejectOverlap {
			if err := s.checkOverlaps(ctx, tx, ranges); err != nil {
				return err
			}
		}

		for _, r := range ranges {
			slot := &model.TimeSlot{
				ID:        s.newID(),
				StartTime: r.StartTime.UTC(),
				EndTime:   r.EndTime.UTC(),
				Status:    model.SlotStatusFree,
			}
			if err := tx.Slots().Create(ctx, slot); err != nil {
				return storeErr("create slot", err)
			}
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slots added",
		zap.String("teacher_id", actor.ID),
		zap.Int("count", len(created)),
	)

	s.broadcaster.SlotsChanged(ctx)
	return created, nil
}

func (s *SlotService) checkOverlaps(ctx context.Context, tx repository.Store, ranges []model.SlotRange) error {
	existing, err := tx.Slots().List(ctx)
	if err != nil {
		return storeErr("list slots", err)
	}

	for i, r := range ranges {
		for _, slot := range existing {
			if r.Overlaps(slot.Range()) {
				return fmt.Errorf("slot %d overlaps slot %s: %w", i, slot.ID, ErrConflict)
			}
		}
		for j := i + 1; j < len(ranges); j++ {
			if r.Overlaps(ranges[j]) {
				return fmt.Errorf("slots %d and %d overlap: %w", i, j, ErrConflict)
			}
		}
	}
	return nil
}

// DeleteSlot removes a slot. Pending requests on a busy slot are rejected first.
func (s *SlotService) DeleteSlot(ctx context.Context, actor model.Actor, slotID string) error {
	if err := requireTeacher(actor); err != nil {
		return err
	}

	var (
		deleted  *model.TimeSlot
		rejected []*model.ScheduleRequest
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		slot, err := tx.Slots().GetByID(ctx, slotID)
		if err != nil {
			return storeErr("get slot", err)
		}
		if slot == nil {
			return fmt.Errorf("slot %s: %w", slotID, ErrNotFound)
		}

		if slot.Status == model.SlotStatusBusy {
			rejected, err = tx.Requests().RejectPendingForSlot(ctx, slotID, s.now().UTC())
			if err != nil {
				return storeErr("reject pending requests", err)
			}
		}

		if err := tx.Slots().Delete(ctx, slotID); err != nil {
			return storeErr("delete slot", err)
		}
		deleted = slot
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Slot deleted",
		zap.String("slot_id", slotID),
		zap.String("status", string(deleted.Status)),
		zap.Int("rejected_requests", len(rejected)),
	)

	s.broadcaster.AllChanged(ctx)

	if len(rejected) > 0 {
		nctx, cancel := detach(ctx, s.notifyTimeout)
		defer cancel()
		s.notifier.RequestsCancelled(nctx, deleted, rejected)
	}
	return nil
}

// BookSlot attaches a student to a free slot. Students may only book for themselves.
func (s *SlotService) BookSlot(ctx context.Context, actor model.Actor, in BookingInput) (*model.TimeSlot, error) {
	booking, err := bookingFor(actor, in)
	if err != nil {
		return nil, err
	}
	if in.SlotID == "" {
		return nil, fmt.Errorf("slotId is required: %w", ErrInvalid)
	}

	var booked *model.TimeSlot
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		slot, err := tx.Slots().GetByID(ctx, in.SlotID)
		if err != nil {
			return storeErr("get slot", err)
		}
		if slot == nil {
			return fmt.Errorf("slot %s: %w", in.SlotID, ErrNotFound)
		}
		if !slot.IsFree() {
			return fmt.Errorf("slot %s is already booked: %w", in.SlotID, ErrConflict)
		}

		if err := tx.Slots().Occupy(ctx, slot.ID, booking, false); err != nil {
			return storeErr("occupy slot", err)
		}
		slot.Occupy(booking, false)
		booked = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot booked",
		zap.String("slot_id", booked.ID),
		zap.String("student_id", booking.StudentID),
		zap.String("booked_by", actor.ID),
	)

	s.broadcaster.SlotsChanged(ctx)
	return booked, nil
}

func bookingFor(actor model.Actor, in BookingInput) (model.Booking, error) {
	b := model.Booking{
		StudentID:     strings.TrimSpace(in.StudentID),
		StudentName:   strings.TrimSpace(in.StudentName),
		CourseContent: in.CourseContent,
	}

	if actor.IsTeacher() {
		if b.StudentID == "" {
			return b, fmt.Errorf("studentId is required: %w", ErrInvalid)
		}
		return b, nil
	}

	if b.StudentID != "" && b.StudentID != actor.ID {
		return b, fmt.Errorf("students can only book for themselves: %w", ErrForbidden)
	}
	b.StudentID = actor.ID
	if b.StudentName == "" {
		b.StudentName = actor.Name
	}
	return b, nil
}

// ConfirmBooking marks a busy slot confirmed. Confirming twice is a no-op.
func (s *SlotService) ConfirmBooking(ctx context.Context, actor model.Actor, slotID string) error {
	if err := requireTeacher(actor); err != nil {
		return err
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		slot, err := tx.Slots().GetByID(ctx, slotID)
		if err != nil {
			return storeErr("get slot", err)
		}
		if slot == nil {
			return fmt.Errorf("slot %s: %w", slotID, ErrNotFound)
		}
		if slot.IsFree() {
			return fmt.Errorf("slot %s has no booking to confirm: %w", slotID, ErrConflict)
		}

		if err := tx.Slots().Confirm(ctx, slotID); err != nil {
			return storeErr("confirm slot", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Booking confirmed", zap.String("slot_id", slotID))

	s.broadcaster.SlotsChanged(ctx)
	return nil
}
