package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/interview-engine/internal/interview"
)

const (
	subscriberBuffer = 16
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventMessage is a frame sent over the events websocket
type EventMessage struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId,omitempty"`
	Order     int      `json:"order,omitempty"`
	Score     *int     `json:"score,omitempty"`
	Average   *float64 `json:"averageScore,omitempty"`
	Data      string   `json:"data,omitempty"`
}

// Subscription receives the events of one session
type Subscription struct {
	sessionID string
	events    chan interview.Event
	// done is closed when the hub drops the subscriber
	done chan struct{}
	once sync.Once
}

// Events delivers the session's events
func (s *Subscription) Events() <-chan interview.Event {
	return s.events
}

// Done is closed when the hub drops the subscription
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) drop() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans evaluation events out to websocket subscribers, keyed by session id.
// A subscriber whose buffer is full is dropped rather than blocking Publish.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

var _ interview.Publisher = (*Hub)(nil)

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Publish delivers ev to every subscriber of its session without blocking
func (h *Hub) Publish(ev interview.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("dropping slow event subscriber", "session_id", ev.SessionID)
			h.removeLocked(sub)
			sub.drop()
		}
	}
}

// Subscribe registers interest in sessionID. The returned func unsubscribes.
func (h *Hub) Subscribe(sessionID string) (*Subscription, func()) {
	sub := &Subscription{
		sessionID: sessionID,
		events:    make(chan interview.Event, subscriberBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.drop()
		return sub, func() {}
	}

	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}

	return sub, func() {
		h.mu.Lock()
		h.removeLocked(sub)
		h.mu.Unlock()
		sub.drop()
	}
}

func (h *Hub) removeLocked(sub *Subscription) {
	set := h.subs[sub.sessionID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.sessionID)
	}
}

// Subscribers returns the number of live subscribers of sessionID
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Close drops every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			sub.drop()
		}
	}
	h.subs = make(map[string]map[*Subscription]struct{})
}

// handleSessionEvents streams evaluation events of a practice session the caller owns
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	user := UserFromContext(r.Context())

	if err := s.interviews.AuthorizeSessionEvents(r.Context(), user.ID, sessionID); err != nil {
		respondServiceError(w, r, err, "subscribe to session events")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	sub, unsubscribe := s.hub.Subscribe(sessionID)
	defer unsubscribe()

	slog.Info("events websocket connected", "session_id", sessionID, "user_id", user.ID)

	if err := sendEventMessage(conn, EventMessage{Type: "connected", SessionID: sessionID}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Hub -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"),
					time.Now().Add(writeWait))
				return
			case ev := <-sub.events:
				if err := sendEventMessage(conn, EventMessage{
					Type:      ev.Type,
					SessionID: ev.SessionID,
					Order:     ev.Order,
					Score:     ev.Score,
					Average:   ev.Average,
				}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					slog.Debug("failed to ping events websocket", "error", err)
					return
				}
			}
		}
	}()

	// WebSocket reads only detect the client going away
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	<-ctx.Done()
	// Unblock the reader
	conn.SetReadDeadline(time.Now())
	wg.Wait()
	slog.Info("events websocket disconnected", "session_id", sessionID)
}

func sendEventMessage(conn *websocket.Conn, msg EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal event message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send event message", "error", err)
		return err
	}
	return nil
}
