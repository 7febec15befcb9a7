package editor

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	subscriberSize = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans session snapshots out to websocket subscribers. Slow subscribers
// miss frames rather than holding up the session.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	onCount func(int)
}

type subscriber struct {
	id   string
	send chan []byte
}

// NewHub creates a hub. onCount, if set, is called with the subscriber count
// whenever it changes.
func NewHub(log *slog.Logger, onCount func(int)) *Hub {
	return &Hub{log: log, subs: make(map[*subscriber]struct{}), onCount: onCount}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast queues msg for every subscriber.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			// subscriber too slow, drop the frame
		}
	}
}

func (h *Hub) subscribe(initial []byte) *subscriber {
	s := &subscriber{id: uuid.NewString(), send: make(chan []byte, subscriberSize)}
	if initial != nil {
		s.send <- initial
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	if h.onCount != nil {
		h.onCount(n)
	}
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, s)
	close(s.send)
	n := len(h.subs)
	h.mu.Unlock()
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Serve upgrades the request and streams snapshots until the client goes
// away. initial, if non-nil, is sent first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := h.subscribe(initial)
	h.log.Debug("stream client connected", slog.String("client_id", s.id))

	go h.writePump(conn, s)
	h.readPump(conn, s)
	h.log.Debug("stream client disconnected", slog.String("client_id", s.id))
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(conn *websocket.Conn, s *subscriber) {
	defer func() {
		h.unsubscribe(s)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", slog.String("client_id", s.id), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for s := range subs {
		close(s.send)
	}
	if h.onCount != nil {
		h.onCount(0)
	}
}
