// internal/session/coordinator.go
package session

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/svalle/lamente/internal/room"
)

// Messenger is the transport-side primitive the coordinator drives: per-room
// broadcast groups plus direct delivery to a single connection. The websocket
// hub implements it in production; tests substitute a recorder.
type Messenger interface {
	Subscribe(roomName, playerID string)
	Unsubscribe(playerID string)
	Broadcast(roomName string, ev room.Event)
	Send(playerID string, ev room.Event)
}

// Coordinator binds each connection identifier to at most one room across the
// whole registry and drives join, leave and disconnect handling. Round
// commands pass through it so every inbound command resolves against the same
// registry, but they take only the target room's lock; the coordinator mutex
// guards the membership index alone, so play in one room never serializes play
// in another.
type Coordinator struct {
	mu      sync.Mutex
	members map[string]string // connection id -> room name

	registry *room.Registry
	msgr     Messenger
	log      logrus.FieldLogger
}

// NewCoordinator wires a coordinator to its registry and transport. It
// installs itself as the registry's expiry hook so TTL-destroyed rooms release
// their members' bindings.
func NewCoordinator(registry *room.Registry, msgr Messenger, log logrus.FieldLogger) *Coordinator {
	c := &Coordinator{
		members:  make(map[string]string),
		registry: registry,
		msgr:     msgr,
		log:      log,
	}
	registry.OnExpire = c.releaseRoom
	return c
}

// CreateRoom creates a room and seats the creator in it, mirroring the
// create-then-auto-join flow clients expect. A connection already bound to a
// room cannot create another.
func (c *Coordinator) CreateRoom(id, name string, capacity int, displayName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, bound := c.members[id]; bound {
		return fmt.Errorf("%w: %s", room.ErrAlreadyInRoom, current)
	}
	r, err := c.registry.Create(name, capacity)
	if err != nil {
		return err
	}
	r.BroadcastFn = func(ev room.Event) { c.msgr.Broadcast(name, ev) }
	r.UnicastFn = c.msgr.Send

	c.msgr.Send(id, room.Event{
		Type:        room.EventRoomCreated,
		Room:        name,
		Capacity:    capacity,
		DisplayName: displayName,
	})
	return c.joinLocked(id, name, displayName)
}

// Join seats a connection in the named room. Binding rules, in order: a
// connection bound to a different room is rejected naming that room; a
// connection already seated here gets an idempotent re-join (re-subscription
// plus a unicast of the full state); a full room is rejected; otherwise the
// player is seated and the room notified. Nothing is mutated on failure.
func (c *Coordinator) Join(id, roomName, displayName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinLocked(id, roomName, displayName)
}

func (c *Coordinator) joinLocked(id, roomName, displayName string) error {
	if current, bound := c.members[id]; bound && current != roomName {
		return fmt.Errorf("%w: %s", room.ErrAlreadyInRoom, current)
	}
	r, err := c.registry.Get(roomName)
	if err != nil {
		return err
	}

	// Subscribe before the room speaks so the joining connection receives its
	// own join traffic. Rolled back if the room turns the player away.
	c.msgr.Subscribe(roomName, id)
	if err := r.Join(id, displayName); err != nil {
		if _, rebound := c.members[id]; !rebound {
			c.msgr.Unsubscribe(id)
		}
		return err
	}
	c.members[id] = roomName
	c.registry.CancelEmptyDestroy(roomName)
	return nil
}

// Leave removes the connection's player from whichever room it is bound to.
// Safe to call for unbound connections; transport-level disconnects funnel
// here unconditionally.
func (c *Coordinator) Leave(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name, bound := c.members[id]
	if !bound {
		return
	}
	delete(c.members, id)
	c.msgr.Unsubscribe(id)

	r, err := c.registry.Get(name)
	if err != nil {
		c.log.WithFields(logrus.Fields{"player": id, "room": name}).
			Warn("membership pointed at a missing room")
		return
	}
	empty, err := r.Remove(id)
	if err != nil {
		c.log.WithFields(logrus.Fields{"player": id, "room": name, "error": room.ErrMembershipConflict}).
			Warn("player was bound to a room that did not seat them")
	}
	if empty {
		c.registry.ScheduleEmptyDestroy(name)
	}
}

// Disconnect handles a transport-level connection loss. It is the same
// cleanup as an explicit leave.
func (c *Coordinator) Disconnect(id string) {
	c.Leave(id)
}

// Membership reports which room the connection currently belongs to, if any.
func (c *Coordinator) Membership(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, bound := c.members[id]
	return name, bound
}

// StartRound advances the named room to its next round.
func (c *Coordinator) StartRound(roomName string) error {
	r, err := c.registry.Get(roomName)
	if err != nil {
		return err
	}
	r.StartRound()
	return nil
}

// ResetRound restarts the named room's current round.
func (c *Coordinator) ResetRound(roomName string) error {
	r, err := c.registry.Get(roomName)
	if err != nil {
		return err
	}
	r.ResetRound()
	return nil
}

// PlayCard commits a card for the player in the named room.
func (c *Coordinator) PlayCard(id, roomName string, card int) error {
	r, err := c.registry.Get(roomName)
	if err != nil {
		return err
	}
	return r.PlayCard(id, card)
}

// releaseRoom drops the bindings and subscriptions of every member of a room
// the registry tore down. Runs on the TTL timer goroutine.
func (c *Coordinator) releaseRoom(r *room.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, name := range c.members {
		if name == r.Name {
			delete(c.members, id)
			c.msgr.Unsubscribe(id)
		}
	}
}
