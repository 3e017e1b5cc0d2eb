package controller

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/auth"
	apihandlers "github.com/Freeeeeet/class_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/class_scheduler/internal/controller/socket"
	"github.com/Freeeeeet/class_scheduler/internal/metrics"
	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/notify"
	"github.com/Freeeeeet/class_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/class_scheduler/internal/service"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	store := memory.New()
	hash, err := auth.HashPassword("student123")
	require.NoError(t, err)
	require.NoError(t, store.Users().Upsert(context.Background(), &model.User{
		ID: "s1", Name: "student1", PasswordHash: hash, Role: model.RoleStudent,
	}))

	m := metrics.New()
	hub := socket.NewHub(m, logger)
	b := service.NewBroadcaster(store, hub, logger)
	slots := service.NewSlotService(store, b, notify.Nop{}, logger, false)
	requests := service.NewRequestService(store, b, notify.Nop{}, logger)
	authSvc := service.NewAuthService(store.Users(), auth.NewManager("secret", "test", time.Hour), logger)

	router := socket.NewRouter(slots, requests, b, m, logger, time.Second)
	ws := socket.NewHandler(hub, router, authSvc, []string{"http://localhost:5173"}, logger)

	return NewServer(apihandlers.NewHandlers(authSvc, store, logger), ws, m.Handler(), []string{"http://localhost:5173"}, logger).Handler()
}

func TestServerRoutes(t *testing.T) {
	h := newTestServer(t)

	t.Run("login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(`{"username":"student1","password":"student123"}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"token"`)
	})

	t.Run("login wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/login", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "class_scheduler_socket_connections")
	})

	t.Run("socket without token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
