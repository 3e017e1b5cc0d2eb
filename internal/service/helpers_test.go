package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
	"github.com/Freeeeeet/class_scheduler/internal/repository/memory"
)

var (
	teacher = model.Actor{ID: "t-1", Name: "Teacher", Role: model.RoleTeacher}
	alice   = model.Actor{ID: "s1", Name: "Alice", Role: model.RoleStudent}
	bob     = model.Actor{ID: "s2", Name: "Bob", Role: model.RoleStudent}

	fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

type publishedEvent struct {
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

// Publish refuses a finished context the way a network publisher would.
func (p *recordingPublisher) Publish(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: event, Payload: payload})
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Event)
	}
	return names
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	submitted []*model.ScheduleRequest
	cancelled []*model.ScheduleRequest
}

func (n *recordingNotifier) RequestSubmitted(_ context.Context, req *model.ScheduleRequest, _ *model.TimeSlot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, req)
}

func (n *recordingNotifier) RequestsCancelled(_ context.Context, _ *model.TimeSlot, rejected []*model.ScheduleRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, rejected...)
}

// blockingNotifier holds every call until its context ends.
type blockingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *blockingNotifier) RequestSubmitted(ctx context.Context, _ *model.ScheduleRequest, _ *model.TimeSlot) {
	n.wait(ctx)
}

func (n *blockingNotifier) RequestsCancelled(ctx context.Context, _ *model.TimeSlot, _ []*model.ScheduleRequest) {
	n.wait(ctx)
}

func (n *blockingNotifier) wait(ctx context.Context) {
	<-ctx.Done()
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

func (n *blockingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// faultyStore fails request resolution inside transactions.
type faultyStore struct {
	repository.Store
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(&faultyStore{Store: tx})
	})
}

func (f *faultyStore) Requests() repository.Requests {
	return faultyRequests{Requests: f.Store.Requests()}
}

type faultyRequests struct {
	repository.Requests
}

func (faultyRequests) Resolve(context.Context, string, model.RequestStatus, time.Time) error {
	return errors.New("connection reset by peer")
}

type fixture struct {
	store       *memory.Store
	broadcaster *Broadcaster
	slots       *SlotService
	requests    *RequestService
	publisher   *recordingPublisher
	notifier    *recordingNotifier
}

func newFixture(t *testing.T, rejectOverlap bool) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New(), nil, rejectOverlap)
}

// newFixtureWithStore lets tests wrap the memory store. wrap may be nil.
func newFixtureWithStore(t *testing.T, store *memory.Store, wrap func(repository.Store) repository.Store, rejectOverlap bool) *fixture {
	t.Helper()

	var s repository.Store = store
	if wrap != nil {
		s = wrap(store)
	}

	logger := zap.NewNop()
	pub := &recordingPublisher{}
	notifier := &recordingNotifier{}
	b := NewBroadcaster(s, pub, logger)

	slots := NewSlotService(s, b, notifier, logger, rejectOverlap)
	slots.now = func() time.Time { return fixedNow }

	requests := NewRequestService(s, b, notifier, logger)
	requests.now = func() time.Time { return fixedNow }

	return &fixture{
		store:       store,
		broadcaster: b,
		slots:       slots,
		requests:    requests,
		publisher:   pub,
		notifier:    notifier,
	}
}

func hour(h int) time.Time {
	return time.Date(2024, 1, 2, h, 0, 0, 0, time.UTC)
}

func (f *fixture) addSlot(t *testing.T, startHour int) *model.TimeSlot {
	t.Helper()
	created, err := f.slots.AddSlots(context.Background(), teacher, []model.SlotRange{
		{StartTime: hour(startHour), EndTime: hour(startHour + 1)},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

func (f *fixture) book(t *testing.T, slotID string, student model.Actor, content string) {
	t.Helper()
	_, err := f.slots.BookSlot(context.Background(), student, BookingInput{
		SlotID:        slotID,
		CourseContent: content,
	})
	require.NoError(t, err)
}

func (f *fixture) slot(t *testing.T, id string) *model.TimeSlot {
	t.Helper()
	slot, err := f.store.Slots().GetByID(context.Background(), id)
	require.NoError(t, err)
	return slot
}

func (f *fixture) request(t *testing.T, id string) *model.ScheduleRequest {
	t.Helper()
	req, err := f.store.Requests().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, req)
	return req
}

func (f *fixture) submitModify(t *testing.T, student model.Actor, originalID, targetID string) *model.ScheduleRequest {
	t.Helper()
	req, err := f.requests.SubmitRequest(context.Background(), student, model.ScheduleRequest{
		OriginalSlotID: &originalID,
		TargetSlotID:   targetID,
		CourseContent:  "Algebra",
	})
	require.NoError(t, err)
	return req
}

// assertOccupancy checks every stored slot: a free slot carries no booking
// and is unconfirmed, a busy slot always names its student.
func (f *fixture) assertOccupancy(t *testing.T) {
	t.Helper()
	slots, err := f.store.Slots().List(context.Background())
	require.NoError(t, err)

	for _, slot := range slots {
		switch slot.Status {
		case model.SlotStatusFree:
			assert.Nil(t, slot.StudentID, "free slot %s has a student", slot.ID)
			assert.Nil(t, slot.StudentName, "free slot %s has a student name", slot.ID)
			assert.Nil(t, slot.CourseContent, "free slot %s has course content", slot.ID)
			assert.False(t, slot.IsConfirmed, "free slot %s is confirmed", slot.ID)
		case model.SlotStatusBusy:
			if assert.NotNil(t, slot.StudentID, "busy slot %s has no student", slot.ID) {
				assert.NotEmpty(t, *slot.StudentID)
			}
		default:
			t.Errorf("slot %s has unknown status %q", slot.ID, slot.Status)
		}
	}
}
