// Package ws streams debug messages to websocket subscribers: every logging
// event routed to the ws sink and periodic bot status snapshots.
package ws

import (
	"context"
	"encoding/json"
	"log"
	nethttp "net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arena-bots/server/internal/telemetry"
	"arena-bots/server/logging"
	"arena-bots/server/logging/network"
)

const (
	writeWait  = 2 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is the envelope of everything sent to subscribers.
type Message struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick,omitempty"`
	Data any    `json:"data,omitempty"`
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	// Snapshot, when set, provides the first message a subscriber receives.
	Snapshot func() Message
	// Tick reports the current simulation tick for lifecycle events.
	Tick func() uint64
}

// Handler upgrades debug clients and fans messages out to them.
type Handler struct {
	logger   telemetry.Logger
	pub      logging.Publisher
	snapshot func() Message
	tick     func() uint64
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[string]*subscriber
	nextID      uint64
	closed      bool
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	tick := cfg.Tick
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	return &Handler{
		logger:   logger,
		pub:      pub,
		snapshot: cfg.Snapshot,
		tick:     tick,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		subscribers: make(map[string]*subscriber),
	}
}

// Count returns the number of attached subscribers.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Handle upgrades the request and serves the subscriber until it leaves.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	sub, count, ok := h.add(conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	ctx := r.Context()
	network.SubscriberConnected(ctx, h.pub, h.tick(), subscriberRef(sub.id), network.SubscriberPayload{
		Remote:      r.RemoteAddr,
		Subscribers: count,
	}, nil)

	if h.snapshot != nil {
		data, err := json.Marshal(h.snapshot())
		if err != nil {
			h.logger.Printf("failed to marshal snapshot for %s: %v", sub.id, err)
		} else if err := sub.write(websocket.TextMessage, data); err != nil {
			h.drop(ctx, sub, r.RemoteAddr, "write failed")
			return
		}
	}

	done := make(chan struct{})
	go h.keepAlive(sub, done)
	defer close(done)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Subscribers only listen; anything they send is discarded.
		if _, _, err := conn.ReadMessage(); err != nil {
			reason := "closed"
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			h.drop(ctx, sub, r.RemoteAddr, reason)
			return
		}
	}
}

func (h *Handler) keepAlive(sub *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sub.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) add(conn *websocket.Conn) (*subscriber, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, 0, false
	}
	h.nextID++
	sub := &subscriber{id: subscriberID(h.nextID), conn: conn}
	h.subscribers[sub.id] = sub
	return sub, len(h.subscribers), true
}

func (h *Handler) drop(ctx context.Context, sub *subscriber, remote, reason string) {
	h.mu.Lock()
	_, ok := h.subscribers[sub.id]
	delete(h.subscribers, sub.id)
	count := len(h.subscribers)
	h.mu.Unlock()
	sub.conn.Close()
	if !ok {
		return
	}
	network.SubscriberDisconnected(ctx, h.pub, h.tick(), subscriberRef(sub.id), network.SubscriberPayload{
		Remote:      remote,
		Subscribers: count,
		Reason:      reason,
	}, nil)
}

// Broadcast sends msg to every subscriber and returns how many received it.
// Subscribers whose write fails are disconnected.
func (h *Handler) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal %s message: %v", msg.Type, err)
		return 0
	}
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	sent := 0
	for _, sub := range targets {
		if err := sub.write(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send %s to %s: %v", msg.Type, sub.id, err)
			h.drop(context.Background(), sub, sub.conn.RemoteAddr().String(), "write failed")
			continue
		}
		sent++
	}
	return sent
}

// BroadcastEvent forwards a logging event to subscribers.
func (h *Handler) BroadcastEvent(event logging.Event) int {
	return h.Broadcast(Message{Type: "event", Tick: event.Tick, Data: event})
}

// Close disconnects every subscriber and refuses new ones.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subscribers
	h.subscribers = make(map[string]*subscriber)
	h.mu.Unlock()
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	for _, sub := range subs {
		sub.write(websocket.CloseMessage, message)
		sub.conn.Close()
	}
}

func subscriberID(n uint64) string {
	return "sub-" + strconv.FormatUint(n, 10)
}

func subscriberRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindSubscriber}
}
