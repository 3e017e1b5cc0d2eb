// Package memory is an in-process repository.Store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
)

type slotRow struct {
	seq  int64
	slot *model.TimeSlot
}

type requestRow struct {
	seq int64
	req *model.ScheduleRequest
}

type state struct {
	seq      int64
	slots    map[string]slotRow
	requests map[string]requestRow
	users    map[string]*model.User
}

func newState() *state {
	return &state{
		slots:    make(map[string]slotRow),
		requests: make(map[string]requestRow),
		users:    make(map[string]*model.User),
	}
}

func (st *state) clone() *state {
	c := newState()
	c.seq = st.seq
	for id, row := range st.slots {
		c.slots[id] = slotRow{seq: row.seq, slot: row.slot.Clone()}
	}
	for id, row := range st.requests {
		c.requests[id] = requestRow{seq: row.seq, req: row.req.Clone()}
	}
	for id, u := range st.users {
		user := *u
		c.users[id] = &user
	}
	return c
}

func (st *state) next() int64 {
	st.seq++
	return st.seq
}

// Store keeps everything in maps guarded by a single mutex. A transaction
// holds the mutex for its whole duration, so transactions are serialized.
type Store struct {
	mu sync.Mutex
	st *state
	v  *view
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	s := &Store{st: newState()}
	s.v = &view{st: s.st, lock: &s.mu}
	return s
}

func (s *Store) Slots() repository.Slots       { return slotsView{s.v} }
func (s *Store) Requests() repository.Requests { return requestsView{s.v} }
func (s *Store) Users() repository.Users       { return usersView{s.v} }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// WithinTx holds the store lock while fn runs and restores the previous state if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	tx := &txStore{v: &view{st: s.st, lock: noopLocker{}}}
	if err := fn(tx); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

type txStore struct {
	v *view
}

func (t *txStore) Slots() repository.Slots       { return slotsView{t.v} }
func (t *txStore) Requests() repository.Requests { return requestsView{t.v} }
func (t *txStore) Users() repository.Users       { return usersView{t.v} }
func (t *txStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (t *txStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

type view struct {
	st   *state
	lock sync.Locker
}

type slotsView struct{ *view }

func (v slotsView) Create(ctx context.Context, slot *model.TimeSlot) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if _, exists := v.st.slots[slot.ID]; exists {
		return fmt.Errorf("create slot: duplicate id %s", slot.ID)
	}
	v.st.slots[slot.ID] = slotRow{seq: v.st.next(), slot: slot.Clone()}
	return nil
}

func (v slotsView) GetByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	row, ok := v.st.slots[id]
	if !ok {
		return nil, nil
	}
	return row.slot.Clone(), nil
}

func (v slotsView) List(ctx context.Context) ([]*model.TimeSlot, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	rows := make([]slotRow, 0, len(v.st.slots))
	for _, row := range v.st.slots {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].slot, rows[j].slot
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return rows[i].seq < rows[j].seq
	})

	slots := make([]*model.TimeSlot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, row.slot.Clone())
	}
	return slots, nil
}

func (v slotsView) Occupy(ctx context.Context, id string, booking model.Booking, confirmed bool) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	row, ok := v.st.slots[id]
	if !ok || !row.slot.IsFree() {
		return fmt.Errorf("occupy slot %s: %w", id, repository.ErrStale)
	}
	row.slot.Occupy(booking, confirmed)
	return nil
}

func (v slotsView) Release(ctx context.Context, id, studentID string) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	row, ok := v.st.slots[id]
	if !ok || !row.slot.OwnedBy(studentID) {
		return fmt.Errorf("release slot %s: %w", id, repository.ErrStale)
	}
	row.slot.Release()
	return nil
}

func (v slotsView) Confirm(ctx context.Context, id string) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	row, ok := v.st.slots[id]
	if !ok || row.slot.Status != model.SlotStatusBusy {
		return fmt.Errorf("confirm slot %s: %w", id, repository.ErrStale)
	}
	row.slot.IsConfirmed = true
	return nil
}

func (v slotsView) Delete(ctx context.Context, id string) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if _, ok := v.st.slots[id]; !ok {
		return fmt.Errorf("delete slot %s: %w", id, repository.ErrStale)
	}
	delete(v.st.slots, id)
	return nil
}

type requestsView struct{ *view }

func (v requestsView) Create(ctx context.Context, req *model.ScheduleRequest) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if _, exists := v.st.requests[req.ID]; exists {
		return fmt.Errorf("create schedule request: duplicate id %s", req.ID)
	}
	v.st.requests[req.ID] = requestRow{seq: v.st.next(), req: req.Clone()}
	return nil
}

func (v requestsView) GetByID(ctx context.Context, id string) (*model.ScheduleRequest, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	row, ok := v.st.requests[id]
	if !ok {
		return nil, nil
	}
	return row.req.Clone(), nil
}

func (v requestsView) List(ctx context.Context) ([]*model.ScheduleRequest, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	rows := v.sorted(func(*model.ScheduleRequest) bool { return true })
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return cloneRequests(rows), nil
}

func (v requestsView) ListProcessed(ctx context.Context) ([]*model.ScheduleRequest, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	rows := v.sorted((*model.ScheduleRequest).IsTerminal)
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].req.ProcessedAt, rows[j].req.ProcessedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a == nil && b != nil:
			return false
		case a != nil && b == nil:
			return true
		}
		return rows[i].seq > rows[j].seq
	})
	return cloneRequests(rows), nil
}

func (v requestsView) HasPending(ctx context.Context, studentID string, originalSlotID *string, targetSlotID string) (bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	for _, row := range v.st.requests {
		req := row.req
		if !req.IsPending() || req.StudentID != studentID {
			continue
		}
		if originalSlotID != nil {
			if req.OriginalSlotID != nil && *req.OriginalSlotID == *originalSlotID {
				return true, nil
			}
			continue
		}
		if req.OriginalSlotID == nil && req.TargetSlotID == targetSlotID {
			return true, nil
		}
	}
	return false, nil
}

func (v requestsView) Resolve(ctx context.Context, id string, status model.RequestStatus, at time.Time) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	row, ok := v.st.requests[id]
	if !ok || !row.req.IsPending() {
		return fmt.Errorf("resolve schedule request %s: %w", id, repository.ErrStale)
	}
	row.req.Status = status
	row.req.ProcessedAt = &at
	return nil
}

func (v requestsView) RejectPendingForSlot(ctx context.Context, slotID string, at time.Time) ([]*model.ScheduleRequest, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	rows := v.sorted(func(req *model.ScheduleRequest) bool {
		return req.IsPending() && req.References(slotID)
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	for _, row := range rows {
		row.req.Status = model.RequestStatusRejected
		row.req.ProcessedAt = &at
	}
	return cloneRequests(rows), nil
}

func (v requestsView) RejectOrphaned(ctx context.Context, at time.Time) (int64, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	var rejected int64
	for _, row := range v.st.requests {
		req := row.req
		if !req.IsPending() {
			continue
		}
		_, targetOK := v.st.slots[req.TargetSlotID]
		originalOK := true
		if req.OriginalSlotID != nil {
			_, originalOK = v.st.slots[*req.OriginalSlotID]
		}
		if targetOK && originalOK {
			continue
		}
		req.Status = model.RequestStatusRejected
		req.ProcessedAt = &at
		rejected++
	}
	return rejected, nil
}

// sorted collects matching rows; callers order them
func (v requestsView) sorted(match func(*model.ScheduleRequest) bool) []requestRow {
	rows := make([]requestRow, 0, len(v.st.requests))
	for _, row := range v.st.requests {
		if match(row.req) {
			rows = append(rows, row)
		}
	}
	return rows
}

func cloneRequests(rows []requestRow) []*model.ScheduleRequest {
	out := make([]*model.ScheduleRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.req.Clone())
	}
	return out
}

type usersView struct{ *view }

func (v usersView) GetByName(ctx context.Context, name string) (*model.User, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	for _, u := range v.st.users {
		if u.Name == name {
			user := *u
			return &user, nil
		}
	}
	return nil, nil
}

func (v usersView) GetByID(ctx context.Context, id string) (*model.User, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	u, ok := v.st.users[id]
	if !ok {
		return nil, nil
	}
	user := *u
	return &user, nil
}

func (v usersView) Upsert(ctx context.Context, user *model.User) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	for _, u := range v.st.users {
		if u.Name == user.Name {
			u.PasswordHash = user.PasswordHash
			u.Role = user.Role
			user.ID = u.ID
			return nil
		}
	}
	if user.ID == "" {
		return fmt.Errorf("upsert user: empty id")
	}
	stored := *user
	v.st.users[user.ID] = &stored
	return nil
}
