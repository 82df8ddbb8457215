package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/domain/port"
)

const (
	// EventsPath is where the hub accepts websocket subscribers
	EventsPath = "/events"

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// EventHub fans tunnel events out to websocket subscribers. Subscribers
// that connect late first receive the latest state and URL of every
// tunnel.
type EventHub struct {
	upgrader websocket.Upgrader
	logger   port.Logger

	mutex     sync.Mutex
	clients   map[*subscriber]struct{}
	lastState map[string][]byte
	lastReady map[string][]byte
	server    *http.Server
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// NewEventHub creates an EventHub
func NewEventHub(logger port.Logger) *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:    logger,
		clients:   make(map[*subscriber]struct{}),
		lastState: make(map[string][]byte),
		lastReady: make(map[string][]byte),
	}
}

// Publish encodes event and queues it for every subscriber. Subscribers
// whose queue is full miss the event.
func (h *EventHub) Publish(event *model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode %s event: %v", event.Type, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	switch event.Type {
	case model.EventTypeState:
		h.lastState[event.TunnelID] = data
		var payload model.StatePayload
		if err := event.ParsePayload(&payload); err == nil && payload.State != model.TunnelStateRunning {
			delete(h.lastReady, event.TunnelID)
		}
	case model.EventTypeReady:
		h.lastReady[event.TunnelID] = data
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("Dropping %s event for slow subscriber %s", event.Type, c.conn.RemoteAddr())
		}
	}
}

// Subscribers returns the number of connected subscribers
func (h *EventHub) Subscribers() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket subscription
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Event stream upgrade failed: %v", err)
		return
	}

	c := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mutex.Lock()
	for id, data := range h.lastState {
		queue(c, data)
		if ready, ok := h.lastReady[id]; ok {
			queue(c, ready)
		}
	}
	h.clients[c] = struct{}{}
	h.mutex.Unlock()

	h.logger.Debug("Event subscriber connected: %s", conn.RemoteAddr())

	go h.writePump(c)
	h.readPump(c)
}

func queue(c *subscriber, data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// readPump discards client messages and detects disconnects
func (h *EventHub) readPump(c *subscriber) {
	defer func() {
		h.mutex.Lock()
		delete(h.clients, c)
		h.mutex.Unlock()
		c.close()
		h.logger.Debug("Event subscriber disconnected: %s", c.conn.RemoteAddr())
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends queued events and keeps the connection alive with pings
func (h *EventHub) writePump(c *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Failed to send event: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Listen serves the hub on addr at EventsPath and returns the bound address
func (h *EventHub) Listen(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(EventsPath, h)

	h.mutex.Lock()
	h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	server := h.server
	h.mutex.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Event stream server stopped: %v", err)
		}
	}()

	bound := listener.Addr().String()
	h.logger.Info("Event stream listening on ws://%s%s", bound, EventsPath)
	return bound, nil
}

// Close disconnects all subscribers and stops the listener, if any
func (h *EventHub) Close() error {
	h.mutex.Lock()
	server := h.server
	h.server = nil
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mutex.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

var _ port.EventPublisher = (*EventHub)(nil)
