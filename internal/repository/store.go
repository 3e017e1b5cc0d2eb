package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository/base"
)

// ErrStale is returned by conditional writes whose guard no longer holds:
// the row is gone or its status changed since it was read.
var ErrStale = errors.New("row changed concurrently")

// Slots persists time slots.
type Slots interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	GetByID(ctx context.Context, id string) (*model.TimeSlot, error)
	List(ctx context.Context) ([]*model.TimeSlot, error)
	// Occupy moves a free slot to busy. ErrStale if the slot is not free.
	Occupy(ctx context.Context, id string, booking model.Booking, confirmed bool) error
	// Release frees a slot booked by studentID. ErrStale otherwise.
	Release(ctx context.Context, id, studentID string) error
	// Confirm marks a busy slot confirmed. ErrStale if absent or free.
	Confirm(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Requests persists schedule requests.
type Requests interface {
	Create(ctx context.Context, req *model.ScheduleRequest) error
	GetByID(ctx context.Context, id string) (*model.ScheduleRequest, error)
	List(ctx context.Context) ([]*model.ScheduleRequest, error)
	ListProcessed(ctx context.Context) ([]*model.ScheduleRequest, error)
	// HasPending checks for a pending request by the student on the same
	// original slot, or on the same target when originalSlotID is nil.
	HasPending(ctx context.Context, studentID string, originalSlotID *string, targetSlotID string) (bool, error)
	// Resolve moves a pending request to a terminal status. ErrStale if not pending.
	Resolve(ctx context.Context, id string, status model.RequestStatus, at time.Time) error
	RejectPendingForSlot(ctx context.Context, slotID string, at time.Time) ([]*model.ScheduleRequest, error)
	// RejectOrphaned rejects pending requests that reference a missing slot.
	RejectOrphaned(ctx context.Context, at time.Time) (int64, error)
}

// Users reads accounts. Writes are reserved for the seed command.
type Users interface {
	GetByName(ctx context.Context, name string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Upsert(ctx context.Context, user *model.User) error
}

// Store groups the repositories behind one transactional boundary.
type Store interface {
	Slots() Slots
	Requests() Requests
	Users() Users
	// WithinTx runs fn against a transactional view of the store. Any error
	// returned by fn rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// PgStore implements Store over PostgreSQL.
type PgStore struct {
	pool     base.Pool
	slots    *SlotRepository
	requests *RequestRepository
	users    *UserRepository
}

// NewPgStore creates a store over a connection pool.
func NewPgStore(pool base.Pool) *PgStore {
	s := newPgStore(pool)
	s.pool = pool
	return s
}

func newPgStore(db base.DBTX) *PgStore {
	return &PgStore{
		slots:    NewSlotRepository(db),
		requests: NewRequestRepository(db),
		users:    NewUserRepository(db),
	}
}

func (s *PgStore) Slots() Slots       { return s.slots }
func (s *PgStore) Requests() Requests { return s.requests }
func (s *PgStore) Users() Users       { return s.users }

// WithinTx runs fn in a database transaction. Nested calls reuse it.
func (s *PgStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	// already inside a transaction
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newPgStore(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PgStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}
