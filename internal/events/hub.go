package events

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"docsign-backend/internal/shared/metrics"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shared/util"
)

const (
	subscriberBuffer = 16
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxReadBytes     = 512
)

// Hub fans events out to websocket subscribers in this process, keyed by
// document id. A subscriber whose buffer is full is dropped.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
}

type subscriber struct {
	ch   chan Event
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewHub builds a hub that accepts websocket upgrades from allowedOrigins
// or the API's own host. Requests without an Origin header are accepted.
func NewHub(allowedOrigins []string) *Hub {
	origins := util.NewOriginSet(allowedOrigins)
	h := &Hub{rooms: make(map[string]map[*subscriber]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origins.Allows(origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

// Subscribe registers a listener for documentID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(documentID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	room, ok := h.rooms[documentID]
	if !ok {
		room = make(map[*subscriber]struct{})
		h.rooms[documentID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()
	metrics.AddEventSubscribers(1)

	return sub.ch, func() { h.remove(documentID, sub) }
}

// Publish delivers ev to every local subscriber of its document.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	var slow []*subscriber
	h.mu.RLock()
	for sub := range h.rooms[ev.DocumentID] {
		select {
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		telemetry.Warn("events.subscriber.dropped", map[string]any{"document_id": ev.DocumentID})
		h.remove(ev.DocumentID, sub)
	}
	return nil
}

// Subscribers reports how many listeners documentID has.
func (h *Hub) Subscribers(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[documentID])
}

func (h *Hub) remove(documentID string, sub *subscriber) {
	h.mu.Lock()
	room := h.rooms[documentID]
	_, present := room[sub]
	if present {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, documentID)
		}
	}
	h.mu.Unlock()
	if present {
		metrics.AddEventSubscribers(-1)
		sub.close()
	}
}

// ServeWS upgrades the request and streams documentID's events until the
// client goes away. initial, when set, is written before anything else.
func (h *Hub) ServeWS(c *gin.Context, documentID string, initial *Event) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("events.upgrade.failed", telemetry.Err(map[string]any{"document_id": documentID}, err))
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe(documentID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxReadBytes)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if initial != nil {
		if err := writeEvent(conn, *initial); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

var _ Publisher = (*Hub)(nil)
