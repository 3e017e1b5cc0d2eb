package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveCommand("book-slot", "ok", 10*time.Millisecond)
	m.ObserveCommand("book-slot", "conflict", 5*time.Millisecond)
	m.ObserveCommand("book-slot", "ok", time.Millisecond)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Broadcast("slots-updated")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("book-slot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("book-slot", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcasts.WithLabelValues("slots-updated")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "class_scheduler_commands_total")
	assert.Contains(t, string(body), "class_scheduler_socket_connections 1")
}
