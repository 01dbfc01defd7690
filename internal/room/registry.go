// internal/room/registry.go
package room

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry owns every active room, keyed by name. It is the only structure
// mutated from multiple command paths, so it carries its own mutex; each room
// guards its own state, which keeps unrelated rooms from serializing on one
// lock.
//
// Rooms die two ways: a hard TTL a fixed duration after creation, regardless
// of activity, and a short grace window after the last player leaves. Both
// timers are cancelable so a destroyed name can be reused without a stale
// timer tearing down its successor.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	ttl        time.Duration
	emptyGrace time.Duration

	ttlTimers   map[string]*time.Timer
	graceTimers map[string]*time.Timer

	// OnExpire is invoked from the TTL timer goroutine after an aged-out room
	// has been removed, so the session layer can release its members.
	OnExpire func(r *Room)

	log logrus.FieldLogger
}

// RoomInfo is the listing view of one room.
type RoomInfo struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Players  int    `json:"players"`
	Round    int    `json:"round"`
}

// NewRegistry returns an empty registry. ttl is the hard room lifetime,
// emptyGrace how long an empty room lingers before destruction.
func NewRegistry(log logrus.FieldLogger, ttl, emptyGrace time.Duration) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		ttl:         ttl,
		emptyGrace:  emptyGrace,
		ttlTimers:   make(map[string]*time.Timer),
		graceTimers: make(map[string]*time.Timer),
		log:         log,
	}
}

// Create registers a new room and arms its TTL timer. Fails with
// ErrRoomExists if the name is taken.
func (s *Registry) Create(name string, capacity int) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[name]; exists {
		return nil, ErrRoomExists
	}
	r := New(name, capacity)
	s.rooms[name] = r
	s.ttlTimers[name] = time.AfterFunc(s.ttl, func() { s.expire(name) })
	s.log.WithFields(logrus.Fields{"room": name, "capacity": capacity}).Info("room created")
	return r, nil
}

// Get returns the named room or ErrRoomNotFound.
func (s *Registry) Get(name string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Destroy removes a room and cancels its timers. Idempotent.
func (s *Registry) Destroy(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

// ScheduleEmptyDestroy arms the grace timer for a room that just went empty.
// The room is destroyed when the window elapses unless someone joins first.
func (s *Registry) ScheduleEmptyDestroy(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[name]; !exists {
		return
	}
	if t, armed := s.graceTimers[name]; armed {
		t.Stop()
	}
	s.graceTimers[name] = time.AfterFunc(s.emptyGrace, func() { s.destroyIfEmpty(name) })
	s.log.WithField("room", name).Debug("room empty, destruction scheduled")
}

// CancelEmptyDestroy disarms a pending empty-room destruction, typically
// because a player joined during the grace window.
func (s *Registry) CancelEmptyDestroy(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, armed := s.graceTimers[name]; armed {
		t.Stop()
		delete(s.graceTimers, name)
	}
}

// Snapshot returns a listing of all active rooms.
func (s *Registry) Snapshot() []RoomInfo {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, RoomInfo{
			Name:     r.Name,
			Capacity: r.Capacity,
			Players:  r.Len(),
			Round:    r.Round(),
		})
	}
	return infos
}

// expire runs on the TTL timer goroutine. The TTL is unconditional: the room
// goes away even with players seated, who are told via a room_closed
// broadcast before the session layer releases them.
func (s *Registry) expire(name string) {
	s.mu.Lock()
	r, ok := s.rooms[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.removeLocked(name)
	s.mu.Unlock()

	s.log.WithField("room", name).Info("room reached its TTL, destroying")
	r.Close()
	if s.OnExpire != nil {
		s.OnExpire(r)
	}
}

// destroyIfEmpty runs on the grace timer goroutine. A join during the window
// disarms the timer, but the check here also covers a join that raced the
// timer firing.
func (s *Registry) destroyIfEmpty(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[name]
	if !ok || r.Len() > 0 {
		return
	}
	s.removeLocked(name)
	s.log.WithField("room", name).Info("empty room destroyed")
}

// removeLocked deletes the room and stops its timers. Callers hold s.mu.
func (s *Registry) removeLocked(name string) {
	delete(s.rooms, name)
	if t, ok := s.ttlTimers[name]; ok {
		t.Stop()
		delete(s.ttlTimers, name)
	}
	if t, ok := s.graceTimers[name]; ok {
		t.Stop()
		delete(s.graceTimers, name)
	}
}
