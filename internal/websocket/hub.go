package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kami-operation/kamiops/internal/metrics"
)

// Event types pushed to dashboard clients
const (
	EventNotificationCreated   = "notification.created"
	EventDocumentStatusChanged = "document.status_changed"
	EventPong                  = "PONG"
)

// Event is the envelope of every server push
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event with the current time
func NewEvent(typ string, data interface{}) Event {
	return Event{Type: typ, Data: data, Timestamp: time.Now().UTC()}
}

// Publisher delivers events to users; an empty user list means everyone
type Publisher interface {
	Publish(ctx context.Context, userIDs []string, ev Event) error
}

// Hub maintains the set of active clients keyed by user
type Hub struct {
	// user ID -> open connections of that user
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	// closed when Run returns
	done chan struct{}

	mu  sync.RWMutex
	log zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]struct{}),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws-hub").Logger(),
	}
}

// Run starts the hub's main loop; it closes every connection when ctx ends
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			metrics.WebsocketConnections.Inc()
			h.log.Debug().Str("user_id", client.UserID).Str("client_id", client.ID).Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.UserID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					client.release()
					metrics.WebsocketConnections.Dec()
					if len(set) == 0 {
						delete(h.clients, client.UserID)
					}
				}
			}
			h.mu.Unlock()
			h.log.Debug().Str("user_id", client.UserID).Str("client_id", client.ID).Msg("client disconnected")

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for userID, set := range h.clients {
				for c := range set {
					c.release()
					metrics.WebsocketConnections.Dec()
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}

// SendToUser pushes an event to every connection of a user and returns how many accepted it
func (h *Hub) SendToUser(userID string, ev Event) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("error marshaling event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sendLocked(h.clients[userID], msg)
}

// Broadcast pushes an event to every connection
func (h *Hub) Broadcast(ev Event) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("error marshaling event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += h.sendLocked(set, msg)
	}
	return n
}

// release closes the send channel; the caller holds h.mu
func (c *Client) release() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (h *Hub) sendLocked(set map[*Client]struct{}, msg []byte) int {
	n := 0
	for c := range set {
		select {
		case c.send <- msg:
			n++
		default:
			// buffer full; the client is too slow and misses this event
			h.log.Warn().Str("client_id", c.ID).Msg("send buffer full, dropping event")
		}
	}
	return n
}

// Publish delivers to the hub's own connections
func (h *Hub) Publish(_ context.Context, userIDs []string, ev Event) error {
	h.deliver(userIDs, ev)
	metrics.EventsPublishedTotal.WithLabelValues("local").Inc()
	return nil
}

func (h *Hub) deliver(userIDs []string, ev Event) {
	if len(userIDs) == 0 {
		h.Broadcast(ev)
		return
	}
	for _, id := range userIDs {
		h.SendToUser(id, ev)
	}
}

// ConnectedUsers lists users with at least one open connection
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.clients))
	for id := range h.clients {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// ConnectionCount returns the number of open connections of a user
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
