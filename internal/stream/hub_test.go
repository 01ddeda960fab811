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

	"tradestream/internal/domain"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func wsServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPayload(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := startHub(t)
	ts := wsServer(t, hub)

	first := dial(t, ts)
	second := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Count() == 2 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast([]byte(`{"tradeId":"T-1"}`))

	assert.JSONEq(t, `{"tradeId":"T-1"}`, string(readPayload(t, first)))
	assert.JSONEq(t, `{"tradeId":"T-1"}`, string(readPayload(t, second)))
}

func TestHubCountTracksDisconnect(t *testing.T) {
	hub := startHub(t)
	ts := wsServer(t, hub)

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestHubNotifierDeliversNotice(t *testing.T) {
	hub := startHub(t)
	ts := wsServer(t, hub)

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	occurredAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	rec := &domain.OutcomeRecord{
		OccurredAt: occurredAt,
		TradeID:    "T-7",
		Version:    3,
		RequestID:  "req-7",
		Outcome:    domain.OutcomeRejected,
		Reason:     "lower version received: 3 < 5",
	}
	require.NoError(t, NewHubNotifier(hub).PublishOutcome(context.Background(), rec))

	var notice Notice
	require.NoError(t, json.Unmarshal(readPayload(t, conn), &notice))
	assert.Equal(t, "T-7", notice.TradeID)
	assert.Equal(t, 3, notice.Version)
	assert.Equal(t, "REJECTED", notice.Outcome)
	assert.Equal(t, "lower version received: 3 < 5", notice.Reason)
	assert.True(t, notice.OccurredAt.Equal(occurredAt))
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	ts := wsServer(t, hub)

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server side closes the connection on shutdown")
}
