// Package realtime provides the in-process publish/subscribe channel behind
// chat fan-out and unread pushes. The hub is an explicit per-room
// subscription registry: rooms exist only while someone is subscribed, and
// everything here is a pure cache over the durable message log. Delivery is
// best-effort and never a substitute for persistence.
package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event kinds carried over the channel.
const (
	EventMessage    = "message"
	EventRead       = "read"
	EventUnread     = "unread"
	EventSubscribed = "subscribed"
)

// Event is one realtime notification scoped to a room (or an inbox key).
type Event struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is the messaging-channel abstraction consumed by services and the
// WebSocket transport. Publish never blocks; subscribers that fall behind
// drop events and recover from the durable log.
type Bus interface {
	Publish(room string, ev Event)
	Subscribe(room string) *Subscription
}

// InboxKey namespaces a user-level stream (unread pushes) alongside room
// streams on the same bus.
func InboxKey(userID string) string { return "user:" + userID }

// Subscription is one attached consumer of a room. C closes when the
// subscription is torn down; Close is safe to call more than once, so a
// handler can defer it and also close on error paths.
type Subscription struct {
	C chan Event

	hub  *Hub
	room string
	once sync.Once
}

// Close detaches the subscription from its room and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s) })
}

// Hub is the in-memory Bus. Safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	buffer int
}

// NewHub builds a hub whose subscriptions buffer up to buffer events
// (values < 1 are coerced to a small default).
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		rooms:  make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe attaches a new consumer to room.
func (h *Hub) Subscribe(room string) *Subscription {
	sub := &Subscription{
		C:    make(chan Event, h.buffer),
		hub:  h,
		room: room,
	}
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscription]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish fans ev out to every current subscriber of room without blocking.
// A full subscriber buffer drops the event; the durable log is the source of
// truth, so a dropped event only costs latency, not data.
func (h *Hub) Publish(room string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.RoomID == "" {
		ev.RoomID = room
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[room] {
		select {
		case sub.C <- ev:
		default:
			log.Warn().Str("room", room).Str("event", ev.Type).Msg("realtime subscriber buffer full, event dropped")
		}
	}
}

// SubscriberCount reports how many consumers room currently has.
func (h *Hub) SubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.rooms[sub.room]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.rooms, sub.room)
		}
	}
	h.mu.Unlock()
	close(sub.C)
}
