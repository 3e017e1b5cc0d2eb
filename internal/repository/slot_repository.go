package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, start_time, end_time, status, student_id, student_name, course_content, is_confirmed`

// SlotRepository stores time_slots rows
type SlotRepository struct {
	*base.Repository
}

// NewSlotRepository creates a slot repository over a pool or a transaction
func NewSlotRepository(db base.DBTX) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(db)}
}

// Create inserts a new slot
func (r *SlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		INSERT INTO time_slots (id, start_time, end_time, status, student_id, student_name, course_content, is_confirmed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.DB().Exec(
		ctx, query,
		slot.ID,
		slot.StartTime,
		slot.EndTime,
		slot.Status,
		slot.StudentID,
		slot.StudentName,
		slot.CourseContent,
		slot.IsConfirmed,
	)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID returns nil, nil when the slot does not exist
func (r *SlotRepository) GetByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// List returns every slot ordered by start time
func (r *SlotRepository) List(ctx context.Context) ([]*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots ORDER BY start_time, pk`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	slots := []*model.TimeSlot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// Occupy books a free slot
func (r *SlotRepository) Occupy(ctx context.Context, id string, booking model.Booking, confirmed bool) error {
	query := `
		UPDATE time_slots
		SET status = 'busy', student_id = $2, student_name = $3, course_content = $4, is_confirmed = $5
		WHERE id = $1 AND status = 'free'
	`

	affected, err := r.ExecAffected(ctx, query, id, booking.StudentID, booking.StudentName, booking.CourseContent, confirmed)
	if err != nil {
		return fmt.Errorf("occupy slot: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("occupy slot %s: %w", id, ErrStale)
	}

	return nil
}

// Release frees a slot currently booked by studentID
func (r *SlotRepository) Release(ctx context.Context, id, studentID string) error {
	query := `
		UPDATE time_slots
		SET status = 'free', student_id = NULL, student_name = NULL, course_content = NULL, is_confirmed = FALSE
		WHERE id = $1 AND status = 'busy' AND student_id = $2
	`

	affected, err := r.ExecAffected(ctx, query, id, studentID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("release slot %s: %w", id, ErrStale)
	}

	return nil
}

// Confirm marks a booked slot as acknowledged by the teacher
func (r *SlotRepository) Confirm(ctx context.Context, id string) error {
	query := `
		UPDATE time_slots
		SET is_confirmed = TRUE
		WHERE id = $1 AND status = 'busy'
	`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return fmt.Errorf("confirm slot: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("confirm slot %s: %w", id, ErrStale)
	}

	return nil
}

// Delete removes a slot
func (r *SlotRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM time_slots WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("delete slot %s: %w", id, ErrStale)
	}

	return nil
}

func scanSlot(row pgx.Row) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := row.Scan(
		&slot.ID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.StudentID,
		&slot.StudentName,
		&slot.CourseContent,
		&slot.IsConfirmed,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
