// internal/handlers/hub.go
package handlers

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/svalle/lamente/internal/room"
)

// outChanSize bounds each connection's outbound queue. A full queue drops the
// message rather than blocking room logic.
const outChanSize = 16

// client is one live connection's outbound queue plus its room subscription.
type client struct {
	out      chan room.Event
	roomName string
}

// Hub tracks live connections and their room subscriptions so that room
// broadcasts reach exactly the members of that room and nobody else. It
// implements session.Messenger.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
	log     logrus.FieldLogger
}

// NewHub returns an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		log:     log,
	}
}

// Register creates the outbound queue for a connection and returns it. If the
// same player id reconnects, the previous queue is closed (stopping its write
// pump) and the new connection inherits the old room subscription, so a page
// reload keeps receiving its room's broadcasts.
func (h *Hub) Register(playerID string) <-chan room.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	cl := &client{out: make(chan room.Event, outChanSize)}
	if old, ok := h.clients[playerID]; ok {
		cl.roomName = old.roomName
		close(old.out)
	}
	h.clients[playerID] = cl
	return cl.out
}

// Deregister removes a connection, but only if ch is still its registered
// queue; a reconnect replaces the queue, and the superseded connection's
// cleanup must not tear down its successor. Reports whether the caller owned
// the registration.
func (h *Hub) Deregister(playerID string, ch <-chan room.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	cl, ok := h.clients[playerID]
	if !ok || cl.out != ch {
		return false
	}
	delete(h.clients, playerID)
	close(cl.out)
	return true
}

// Subscribe adds a connection to a room's broadcast group.
func (h *Hub) Subscribe(roomName, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[playerID]; ok {
		cl.roomName = roomName
	}
}

// Unsubscribe removes a connection from its broadcast group.
func (h *Hub) Unsubscribe(playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[playerID]; ok {
		cl.roomName = ""
	}
}

// Broadcast queues an event for every connection subscribed to the room.
func (h *Hub) Broadcast(roomName string, ev room.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cl := range h.clients {
		if cl.roomName == roomName {
			h.push(id, cl, ev)
		}
	}
}

// Send queues an event for a single connection.
func (h *Hub) Send(playerID string, ev room.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[playerID]; ok {
		h.push(playerID, cl, ev)
	}
}

// push is non-blocking: a slow consumer loses the event instead of stalling
// the room. Callers hold h.mu.
func (h *Hub) push(playerID string, cl *client, ev room.Event) {
	select {
	case cl.out <- ev:
	default:
		h.log.WithFields(logrus.Fields{"player": playerID, "event": ev.Type}).
			Warn("outbound queue full, dropping event")
	}
}
