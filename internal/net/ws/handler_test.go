package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"arena-bots/server/logging"
	"arena-bots/server/logging/network"
)

type recorder struct {
	mu     sync.Mutex
	events []logging.Event
}

func (r *recorder) Publish(_ context.Context, event logging.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count(eventType logging.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func newTestHandler(t *testing.T, pub logging.Publisher) (*Handler, *httptest.Server) {
	t.Helper()
	handler := NewHandler(HandlerConfig{
		Publisher: pub,
		Snapshot: func() Message {
			return Message{Type: "status", Tick: 7, Data: []string{"bot1"}}
		},
		Tick: func() uint64 { return 7 },
	})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(func() {
		handler.Close()
		srv.Close()
	})
	return handler, srv
}

func dial(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, baseURL), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleSendsSnapshotFirst(t *testing.T) {
	pub := &recorder{}
	handler, srv := newTestHandler(t, pub)
	conn := dial(t, srv.URL)

	msg := readMessage(t, conn)
	if msg.Type != "status" || msg.Tick != 7 {
		t.Fatalf("expected status snapshot at tick 7, got %+v", msg)
	}
	if handler.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", handler.Count())
	}
	if pub.count(network.EventSubscriberConnected) != 1 {
		t.Fatalf("expected a connect event")
	}
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	handler, srv := newTestHandler(t, nil)
	first := dial(t, srv.URL)
	second := dial(t, srv.URL)
	readMessage(t, first)
	readMessage(t, second)

	sent := handler.BroadcastEvent(logging.Event{Type: "goals.reached", Tick: 12})
	if sent != 2 {
		t.Fatalf("expected broadcast to 2 subscribers, got %d", sent)
	}
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != "event" || msg.Tick != 12 {
			t.Fatalf("expected event message at tick 12, got %+v", msg)
		}
	}
}

func TestDisconnectPublishesEvent(t *testing.T) {
	pub := &recorder{}
	handler, srv := newTestHandler(t, pub)
	conn := dial(t, srv.URL)
	readMessage(t, conn)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, "subscriber removal", func() bool { return handler.Count() == 0 })
	waitFor(t, "disconnect event", func() bool { return pub.count(network.EventSubscriberDisconnected) == 1 })
}

func TestCloseRefusesNewSubscribers(t *testing.T) {
	handler, srv := newTestHandler(t, nil)
	handler.Close()

	conn := dial(t, srv.URL)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going away close, got %v", err)
	}
	if handler.Count() != 0 {
		t.Fatalf("expected no subscribers after close")
	}
}

func websocketURL(t *testing.T, baseURL string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/"
	return parsed.String()
}
