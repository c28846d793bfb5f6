package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/botloop/game/engine"
)

func newClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newClient(hub, "Test-Session")

	hub.registerClient(client)

	if !hub.Watched("test-session") {
		t.Error("Expected session to be watched regardless of case")
	}
	if hub.ClientCount("TEST-SESSION") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
	if ids := hub.WatchedSessions(); len(ids) != 1 || ids[0] != "test-session" {
		t.Errorf("Unexpected watched sessions %v", ids)
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if hub.Watched("test-session") {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}

	// a second unregister must not close the channel again
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	client1 := newClient(hub, "multi")
	client2 := newClient(hub, "multi")

	hub.registerClient(client1)
	hub.registerClient(client2)
	if hub.ClientCount("multi") != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.ClientCount("multi"))
	}

	hub.unregisterClient(client1)
	if hub.ClientCount("multi") != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", hub.ClientCount("multi"))
	}
	if !hub.sessions["multi"][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := NewHub()
	client := newClient(hub, "broadcast-test")
	other := newClient(hub, "other")
	hub.registerClient(client)
	hub.registerClient(other)

	state := engine.NewEngineWithDefaults().GetState()
	hub.BroadcastToSession("broadcast-test", state)
	hub.broadcastMessage(<-hub.broadcast)

	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.SessionID != "broadcast-test" {
			t.Errorf("Expected sessionID broadcast-test, got %s", message.SessionID)
		}
		if message.Event != "state_update" {
			t.Errorf("Expected event 'state_update', got %s", message.Event)
		}
		if message.GameState.LevelID != "stage-1" || message.GameState.Bot.Pose != state.Bot.Pose {
			t.Errorf("GameState not correctly transmitted: %+v", message.GameState)
		}
	default:
		t.Error("No message received")
	}

	if len(other.send) != 0 {
		t.Error("Other sessions must not receive the broadcast")
	}
}

func TestHubSkipsUnwatchedSessions(t *testing.T) {
	hub := NewHub()
	hub.BroadcastEvent("nobody", "cleared", nil)
	if len(hub.broadcast) != 0 {
		t.Error("Expected broadcasts to unwatched sessions to be dropped")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()
	hub.registerClient(newClient(hub, "event-test"))

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" || message.Event != "custom-event" || message.Data != "test-data" {
			t.Errorf("Unexpected message %+v", message)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message received within timeout")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: "state_update"})

	if hub.Watched("slow") {
		t.Error("Expected the slow client to be dropped")
	}
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketLifecycle(t *testing.T) {
	hub, server := startHub(t)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	waitFor(t, func() bool { return hub.ClientCount("ws-test") == 1 })

	conn.Close()
	waitFor(t, func() bool { return !hub.Watched("ws-test") })
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub, server := startHub(t)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=msg-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.Watched("msg-test") })

	e := engine.NewEngineWithDefaults()
	e.SetCommand(engine.Forward)
	e.Step(2)
	hub.BroadcastToSession("msg-test", e.GetState())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.SessionID != "msg-test" {
		t.Errorf("Expected sessionID 'msg-test', got %s", message.SessionID)
	}
	if message.GameState.State != engine.Running || message.GameState.Steps != 3 {
		t.Errorf("Expected running state after 3 steps, got %s after %d", message.GameState.State, message.GameState.Steps)
	}
}

func TestHubCloseSession(t *testing.T) {
	hub := NewHub()
	client := newClient(hub, "Gone")
	other := newClient(hub, "stays")
	hub.registerClient(client)
	hub.registerClient(other)

	hub.CloseSession("gone")
	hub.closeSession(<-hub.closing)

	data, ok := <-client.send
	if !ok {
		t.Fatal("Expected a session_closed message before the channel closes")
	}
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.Event != "session_closed" {
		t.Errorf("Expected event 'session_closed', got %s", message.Event)
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}
	if hub.Watched("gone") || !hub.Watched("stays") {
		t.Error("Expected only the closed session to lose its clients")
	}

	hub.CloseSession("nobody")
	if len(hub.closing) != 0 {
		t.Error("Expected closing an unwatched session to be a no-op")
	}
}

func TestWebSocketSessionClosed(t *testing.T) {
	hub, server := startHub(t)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=closing"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.Watched("closing") })

	hub.CloseSession("closing")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	if !strings.Contains(string(data), `"session_closed"`) {
		t.Errorf("Expected session_closed event, got %s", data)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the server to close the connection")
	}
}
