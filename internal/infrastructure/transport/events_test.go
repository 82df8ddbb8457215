package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/logger"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + EventsPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) model.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var event model.Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event
}

func mustEvent(t *testing.T, eventType model.EventType, payload interface{}) *model.Event {
	t.Helper()
	event, err := model.NewEvent(eventType, "t1", payload)
	if err != nil {
		t.Fatal(err)
	}
	return event
}

func waitSubscribers(t *testing.T, hub *EventHub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventHubBroadcast(t *testing.T) {
	hub := NewEventHub(logger.Discard())
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	conn := dial(t, server)
	waitSubscribers(t, hub, 1)

	hub.Publish(mustEvent(t, model.EventTypeOutput, model.OutputPayload{Line: "INF Starting tunnel"}))

	event := readEvent(t, conn)
	if event.Type != model.EventTypeOutput || event.TunnelID != "t1" || event.Version != model.EventVersion {
		t.Fatalf("event = %+v", event)
	}
	var payload model.OutputPayload
	if err := event.ParsePayload(&payload); err != nil || payload.Line != "INF Starting tunnel" {
		t.Errorf("payload = %+v, %v", payload, err)
	}
}

func TestEventHubSnapshotForLateSubscriber(t *testing.T) {
	hub := NewEventHub(logger.Discard())
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	hub.Publish(mustEvent(t, model.EventTypeState, model.StatePayload{State: model.TunnelStateRunning}))
	hub.Publish(mustEvent(t, model.EventTypeReady, model.ReadyPayload{URL: "https://late.trycloudflare.com"}))
	hub.Publish(mustEvent(t, model.EventTypeOutput, model.OutputPayload{Line: "not replayed"}))

	conn := dial(t, server)

	if event := readEvent(t, conn); event.Type != model.EventTypeState {
		t.Fatalf("first snapshot event = %s, want state", event.Type)
	}
	event := readEvent(t, conn)
	var ready model.ReadyPayload
	if err := event.ParsePayload(&ready); err != nil || ready.URL != "https://late.trycloudflare.com" {
		t.Errorf("ready snapshot = %+v, %v", ready, err)
	}
}

func TestEventHubStopClearsReady(t *testing.T) {
	hub := NewEventHub(logger.Discard())
	hub.Publish(mustEvent(t, model.EventTypeReady, model.ReadyPayload{URL: "https://gone.trycloudflare.com"}))
	hub.Publish(mustEvent(t, model.EventTypeState, model.StatePayload{State: model.TunnelStateStopped}))

	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if _, ok := hub.lastReady["t1"]; ok {
		t.Error("ready snapshot kept after the tunnel stopped")
	}
}

func TestEventHubListenAndClose(t *testing.T) {
	hub := NewEventHub(logger.Discard())
	addr, err := hub.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+EventsPath, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitSubscribers(t, hub, 1)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after Close = %v, want normal closure", err)
	}
}
