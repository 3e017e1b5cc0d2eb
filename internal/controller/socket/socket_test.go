package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/auth"
	"github.com/Freeeeeet/class_scheduler/internal/metrics"
	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/notify"
	"github.com/Freeeeeet/class_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/class_scheduler/internal/service"
)

var (
	teacher = model.Actor{ID: "t-1", Name: "Teacher", Role: model.RoleTeacher}
	alice   = model.Actor{ID: "s1", Name: "Alice", Role: model.RoleStudent}
)

type frame struct {
	Event string          `json:"event"`
	Ref   string          `json:"ref"`
	Data  json.RawMessage `json:"data"`
}

type testEnv struct {
	srv    *httptest.Server
	hub    *Hub
	tokens *auth.Manager
	store  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	store := memory.New()
	m := metrics.New()
	hub := NewHub(m, logger)

	b := service.NewBroadcaster(store, hub, logger)
	slots := service.NewSlotService(store, b, notify.Nop{}, logger, false)
	requests := service.NewRequestService(store, b, notify.Nop{}, logger)
	tokens := auth.NewManager("secret", "test", time.Hour)
	authSvc := service.NewAuthService(store.Users(), tokens, logger)

	router := NewRouter(slots, requests, b, m, logger, 5*time.Second)
	srv := httptest.NewServer(NewHandler(hub, router, authSvc, []string{"*"}, logger))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &testEnv{srv: srv, hub: hub, tokens: tokens, store: store}
}

func (e *testEnv) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/?token=" + token
}

// dial connects as actor and waits for the initial snapshot, so the client is registered.
func (e *testEnv) dial(t *testing.T, actor model.Actor) *websocket.Conn {
	t.Helper()

	token, _, err := e.tokens.Issue(actor)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	send(t, conn, CmdRequestInitialData, "init", nil)
	expect(t, conn, service.EventInitialData)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event, ref string, data any) {
	t.Helper()
	msg := map[string]any{"event": event, "ref": ref}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// expect reads frames until one with the given event arrives.
func expect(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func expectAck(t *testing.T, conn *websocket.Conn) Ack {
	t.Helper()
	var ack Ack
	require.NoError(t, json.Unmarshal(expect(t, conn, EventAck).Data, &ack))
	return ack
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(env.wsURL("forged"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerAcceptsBearerHeader(t *testing.T) {
	env := newTestEnv(t)

	token, _, err := env.tokens.Issue(alice)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	send(t, conn, CmdRequestInitialData, "r1", nil)
	f := expect(t, conn, service.EventInitialData)
	assert.Equal(t, "r1", f.Ref)

	var snapshot service.Snapshot
	require.NoError(t, json.Unmarshal(f.Data, &snapshot))
	assert.Empty(t, snapshot.TimeSlots)
	assert.Empty(t, snapshot.ScheduleRequests)
	assert.Equal(t, 1, env.hub.Count())
}

func TestCommandsAreAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, alice)

	t.Run("unknown command", func(t *testing.T) {
		send(t, conn, "drop-tables", "x", nil)
		ack := expectAck(t, conn)
		assert.Equal(t, "drop-tables", ack.Command)
		assert.False(t, ack.OK)
		assert.Equal(t, service.KindInvalid, ack.Reason)
	})

	t.Run("malformed frame", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		ack := expectAck(t, conn)
		assert.Equal(t, service.KindInvalid, ack.Reason)
	})

	t.Run("bad payload", func(t *testing.T) {
		send(t, conn, CmdBookSlot, "b", "not-an-object")
		ack := expectAck(t, conn)
		assert.Equal(t, CmdBookSlot, ack.Command)
		assert.Equal(t, service.KindInvalid, ack.Reason)
	})

	t.Run("teacher only", func(t *testing.T) {
		send(t, conn, CmdAddTimeSlots, "a", []model.SlotRange{{
			StartTime: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		}})
		f := expect(t, conn, EventAck)
		assert.Equal(t, "a", f.Ref)

		var ack Ack
		require.NoError(t, json.Unmarshal(f.Data, &ack))
		assert.False(t, ack.OK)
		assert.Equal(t, service.KindForbidden, ack.Reason)
	})

	t.Run("missing slot", func(t *testing.T) {
		send(t, conn, CmdBookSlot, "b", service.BookingInput{SlotID: "nope"})
		ack := expectAck(t, conn)
		assert.Equal(t, service.KindNotFound, ack.Reason)
	})
}

func TestRescheduleFlowOverSocket(t *testing.T) {
	env := newTestEnv(t)
	teacherConn := env.dial(t, teacher)
	studentConn := env.dial(t, alice)

	send(t, teacherConn, CmdAddTimeSlots, "add", []map[string]string{
		{"startTime": "2024-01-02T09:00:00.000Z", "endTime": "2024-01-02T10:00:00.000Z"},
		{"startTime": "2024-01-02T11:00:00.000Z", "endTime": "2024-01-02T12:00:00.000Z"},
	})
	assert.True(t, expectAck(t, teacherConn).OK)

	var slots []*model.TimeSlot
	require.NoError(t, json.Unmarshal(expect(t, studentConn, service.EventSlotsUpdated).Data, &slots))
	require.Len(t, slots, 2)
	s1, s2 := slots[0], slots[1]

	send(t, studentConn, CmdBookSlot, "book", map[string]string{"slotId": s1.ID, "courseContent": "Algebra"})
	assert.True(t, expectAck(t, studentConn).OK)
	expect(t, teacherConn, service.EventSlotsUpdated)

	send(t, studentConn, CmdModifyRequest, "req", map[string]any{
		"originalSlotId": s1.ID,
		"targetSlotId":   s2.ID,
		"courseContent":  "Algebra",
		"status":         "approved",
	})
	assert.True(t, expectAck(t, studentConn).OK)

	var requests []*model.ScheduleRequest
	require.NoError(t, json.Unmarshal(expect(t, teacherConn, service.EventRequestsUpdated).Data, &requests))
	require.Len(t, requests, 1)
	assert.Equal(t, model.RequestStatusPending, requests[0].Status)
	assert.Equal(t, "s1", requests[0].StudentID)

	send(t, teacherConn, CmdApproveModification, "approve", requests[0].ID)
	assert.True(t, expectAck(t, teacherConn).OK)

	require.NoError(t, json.Unmarshal(expect(t, studentConn, service.EventSlotsUpdated).Data, &slots))
	byID := map[string]*model.TimeSlot{}
	for _, s := range slots {
		byID[s.ID] = s
	}
	assert.Equal(t, model.SlotStatusFree, byID[s1.ID].Status)
	assert.Equal(t, model.SlotStatusBusy, byID[s2.ID].Status)
	assert.True(t, byID[s2.ID].IsConfirmed)

	require.NoError(t, json.Unmarshal(expect(t, studentConn, service.EventRequestsUpdated).Data, &requests))
	assert.Equal(t, model.RequestStatusApproved, requests[0].Status)
	assert.NotNil(t, requests[0].ProcessedAt)

	send(t, teacherConn, CmdApproveModification, "again", map[string]string{"requestId": requests[0].ID})
	ack := expectAck(t, teacherConn)
	assert.False(t, ack.OK)
	assert.Equal(t, service.KindConflict, ack.Reason)

	send(t, studentConn, CmdRequestProcessedHistory, "hist", nil)
	var history []*model.ScheduleRequest
	require.NoError(t, json.Unmarshal(expect(t, studentConn, service.EventProcessedHistory).Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, requests[0].ID, history[0].ID)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, alice)
	require.Equal(t, 1, env.hub.Count())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return env.hub.Count() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173/"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
