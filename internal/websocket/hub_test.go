package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func connectWS(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to connect WebSocket")

	cleanup := func() {
		conn.Close()
		server.Close()
	}

	return conn, cleanup
}

func readFeedEvent(t *testing.T, conn *websocket.Conn) FeedEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev FeedEvent
	require.NoError(t, json.Unmarshal(message, &ev))
	return ev
}

func TestHub_ClientConnects(t *testing.T) {
	hub, _ := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_EventAcceptedReachesClient(t *testing.T) {
	hub, _ := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	received := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hub.EventAccepted(domain.WebhookEvent{
		ID:           "evt-123",
		Event:        "form.submitted",
		FormID:       "f1",
		SubmissionID: "s1",
		Payload:      map[string]any{"secret": "not forwarded"},
		ReceivedAt:   received,
	})

	ev := readFeedEvent(t, conn)
	assert.Equal(t, TypeWebhookAccepted, ev.Type)
	assert.Equal(t, "evt-123", ev.EventID)
	assert.Equal(t, "s1", ev.SubmissionID)
	assert.True(t, received.Equal(ev.ReceivedAt))
}

func TestHub_MultipleClients(t *testing.T) {
	hub, _ := setupTestHub(t)

	conn1, cleanup1 := connectWS(t, hub)
	defer cleanup1()
	conn2, cleanup2 := connectWS(t, hub)
	defer cleanup2()

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(FeedEvent{Type: TypeWebhookAccepted, EventID: "evt-multi"})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		assert.Equal(t, "evt-multi", readFeedEvent(t, conn).EventID)
	}
}

func TestHub_ShutdownDisconnectsClients(t *testing.T) {
	hub, cancel := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub, _ := setupTestHub(t)

	assert.Equal(t, 0, hub.ClientCount())
	assert.NotPanics(t, func() {
		hub.Broadcast(FeedEvent{EventID: "nobody-listening"})
	})
}
