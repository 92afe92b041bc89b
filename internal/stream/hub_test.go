package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/gridpulse/pkg/models"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub(t *testing.T) {
	t.Run("should push snapshots to connected clients", func(t *testing.T) {
		hub := NewHub(nil)
		srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
		defer srv.Close()
		defer hub.Close()

		conn := dial(t, srv)
		defer conn.Close()
		require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

		require.NoError(t, hub.Publish(context.Background(), &models.GridSnapshot{Seq: 9, Grid: models.GridStabilityIndex{GSI: 77}}))
		msg := read(t, conn)
		assert.Equal(t, "snapshot", msg.Type)
		require.NotNil(t, msg.Data)
		assert.Equal(t, uint64(9), msg.Data.Seq)
		assert.Equal(t, 77, msg.Data.Grid.GSI)
	})

	t.Run("should replay the latest snapshot on connect", func(t *testing.T) {
		hub := NewHub(nil)
		srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
		defer srv.Close()
		defer hub.Close()

		require.NoError(t, hub.Publish(context.Background(), &models.GridSnapshot{Seq: 3}))
		conn := dial(t, srv)
		defer conn.Close()
		assert.Equal(t, uint64(3), read(t, conn).Data.Seq)
	})

	t.Run("should forget disconnected clients", func(t *testing.T) {
		hub := NewHub(nil)
		srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
		defer srv.Close()

		conn := dial(t, srv)
		require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
		conn.Close()
		assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
	})
}
