// Package realtime fans change events out to websocket subscribers.
// With Redis available, events published on one instance reach clients on all of them.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"agency-crm/internal/metrics"
	"agency-crm/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	Channel = "changes"

	sendBuffer = 32
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin is enforced by CORS and the access token
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscription receives the events of one table, optionally narrowed to one project
type Subscription struct {
	Table     string
	ProjectID int
	Events    chan models.ChangeEvent
}

// Matches reports whether the event belongs to the subscription. An empty table
// or a zero project id matches everything.
func (s *Subscription) Matches(e models.ChangeEvent) bool {
	if s.Table != "" && s.Table != e.Table {
		return false
	}
	return s.ProjectID == 0 || s.ProjectID == e.ProjectID
}

type envelope struct {
	Origin string             `json:"origin"`
	Event  models.ChangeEvent `json:"event"`
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	redis  *redis.Client
	origin string
	log    zerolog.Logger
}

// NewHub builds a hub. rdb may be nil, in which case events stay in this process.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		redis:  rdb,
		origin: uuid.NewString(),
		log:    log.With().Str("component", "realtime").Logger(),
	}
}

func (h *Hub) Subscribe(table string, projectID int) (*Subscription, func()) {
	sub := &Subscription{
		Table:     table,
		ProjectID: projectID,
		Events:    make(chan models.ChangeEvent, sendBuffer),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeClients.Inc()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			metrics.RealtimeClients.Dec()
		})
	}
}

// Publish delivers the event locally and forwards it to the other instances
func (h *Hub) Publish(ctx context.Context, e models.ChangeEvent) {
	h.dispatch(e)

	if h.redis == nil {
		return
	}
	data, err := json.Marshal(envelope{Origin: h.origin, Event: e})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, Channel, data).Err(); err != nil {
		h.log.Warn().Err(err).Str("table", e.Table).Msg("failed to forward change event")
	}
}

func (h *Hub) dispatch(e models.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.Matches(e) {
			continue
		}
		select {
		case sub.Events <- e:
		default:
			// slow client; it refetches on the next event anyway
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run relays events published by other instances until ctx is done.
// It returns immediately when Redis is not configured.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.Subscribe(ctx, Channel)
	defer pubsub.Close()

	h.log.Info().Str("channel", Channel).Msg("listening for remote change events")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.relay(msg.Payload)
		}
	}
}

func (h *Hub) relay(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		h.log.Warn().Err(err).Msg("dropping malformed change event")
		return
	}
	if env.Origin == h.origin {
		return
	}
	h.dispatch(env.Event)
}

// ServeWS upgrades the request and streams matching events as JSON frames.
// Query: table (optional), project_id (optional).
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	projectID := 0
	if v := r.URL.Query().Get("project_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, `{"error": "invalid project_id"}`, http.StatusBadRequest)
			return
		}
		projectID = n
	}
	table := r.URL.Query().Get("table")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	sub, cancel := h.Subscribe(table, projectID)
	defer cancel()

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, sub, done)
}

// readPump discards client frames and notices disconnects
func (h *Hub) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *Subscription, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case e := <-sub.Events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
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
