package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, student_id, student_name, original_slot_id, target_slot_id, course_content, status, request_type, created_at, processed_at`

// RequestRepository stores schedule_requests rows
type RequestRepository struct {
	*base.Repository
}

// NewRequestRepository creates a request repository over a pool or a transaction
func NewRequestRepository(db base.DBTX) *RequestRepository {
	return &RequestRepository{Repository: base.NewRepository(db)}
}

// Create inserts a request
func (r *RequestRepository) Create(ctx context.Context, req *model.ScheduleRequest) error {
	query := `
		INSERT INTO schedule_requests (id, student_id, student_name, original_slot_id, target_slot_id, course_content, status, request_type, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.DB().Exec(
		ctx, query,
		req.ID,
		req.StudentID,
		req.StudentName,
		req.OriginalSlotID,
		req.TargetSlotID,
		req.CourseContent,
		req.Status,
		req.RequestType,
		req.CreatedAt,
		req.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("create schedule request: %w", err)
	}

	return nil
}

// GetByID returns nil, nil when the request does not exist
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*model.ScheduleRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM schedule_requests WHERE id = $1`

	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule request: %w", err)
	}

	return req, nil
}

// List returns every request in submission order
func (r *RequestRepository) List(ctx context.Context) ([]*model.ScheduleRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM schedule_requests ORDER BY created_at, pk`
	return r.queryRequests(ctx, "list schedule requests", query)
}

// ListProcessed returns approved and rejected requests, newest first
func (r *RequestRepository) ListProcessed(ctx context.Context) ([]*model.ScheduleRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM schedule_requests
		WHERE status IN ('approved', 'rejected')
		ORDER BY processed_at DESC NULLS LAST, pk DESC
	`
	return r.queryRequests(ctx, "list processed requests", query)
}

// HasPending checks for a blocking pending request by the same student
func (r *RequestRepository) HasPending(ctx context.Context, studentID string, originalSlotID *string, targetSlotID string) (bool, error) {
	var (
		query string
		args  []any
	)
	if originalSlotID != nil {
		query = `
			SELECT EXISTS(
				SELECT 1 FROM schedule_requests
				WHERE student_id = $1 AND original_slot_id = $2 AND status = 'pending'
			)
		`
		args = []any{studentID, *originalSlotID}
	} else {
		query = `
			SELECT EXISTS(
				SELECT 1 FROM schedule_requests
				WHERE student_id = $1 AND original_slot_id IS NULL AND target_slot_id = $2 AND status = 'pending'
			)
		`
		args = []any{studentID, targetSlotID}
	}

	var exists bool
	if err := r.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}

	return exists, nil
}

// Resolve moves a pending request to approved or rejected
func (r *RequestRepository) Resolve(ctx context.Context, id string, status model.RequestStatus, at time.Time) error {
	query := `
		UPDATE schedule_requests
		SET status = $2, processed_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	affected, err := r.ExecAffected(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("resolve schedule request: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("resolve schedule request %s: %w", id, ErrStale)
	}

	return nil
}

// RejectPendingForSlot rejects every pending request that points at slotID
func (r *RequestRepository) RejectPendingForSlot(ctx context.Context, slotID string, at time.Time) ([]*model.ScheduleRequest, error) {
	query := `
		UPDATE schedule_requests
		SET status = 'rejected', processed_at = $2
		WHERE status = 'pending' AND (original_slot_id = $1 OR target_slot_id = $1)
		RETURNING ` + requestColumns

	return r.queryRequests(ctx, "reject pending requests for slot", query, slotID, at)
}

// RejectOrphaned rejects pending requests whose slots were deleted
func (r *RequestRepository) RejectOrphaned(ctx context.Context, at time.Time) (int64, error) {
	query := `
		UPDATE schedule_requests r
		SET status = 'rejected', processed_at = $1
		WHERE r.status = 'pending'
		  AND (
			NOT EXISTS (SELECT 1 FROM time_slots s WHERE s.id = r.target_slot_id)
			OR (r.original_slot_id IS NOT NULL
				AND NOT EXISTS (SELECT 1 FROM time_slots s WHERE s.id = r.original_slot_id))
		  )
	`

	affected, err := r.ExecAffected(ctx, query, at)
	if err != nil {
		return 0, fmt.Errorf("reject orphaned requests: %w", err)
	}

	return affected, nil
}

func (r *RequestRepository) queryRequests(ctx context.Context, op, query string, args ...any) ([]*model.ScheduleRequest, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	requests := []*model.ScheduleRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule requests: %w", err)
	}

	return requests, nil
}

func scanRequest(row pgx.Row) (*model.ScheduleRequest, error) {
	var req model.ScheduleRequest
	err := row.Scan(
		&req.ID,
		&req.StudentID,
		&req.StudentName,
		&req.OriginalSlotID,
		&req.TargetSlotID,
		&req.CourseContent,
		&req.Status,
		&req.RequestType,
		&req.CreatedAt,
		&req.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
