// internal/session/coordinator_test.go
package session

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svalle/lamente/internal/room"
)

// fakeMessenger records transport calls instead of touching a socket.
type fakeMessenger struct {
	mu            sync.Mutex
	subscriptions map[string]string // player id -> room name
	broadcasts    []room.Event
	sends         map[string][]room.Event
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		subscriptions: make(map[string]string),
		sends:         make(map[string][]room.Event),
	}
}

func (m *fakeMessenger) Subscribe(roomName, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[playerID] = roomName
}

func (m *fakeMessenger) Unsubscribe(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, playerID)
}

func (m *fakeMessenger) Broadcast(roomName string, ev room.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, ev)
}

func (m *fakeMessenger) Send(playerID string, ev room.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends[playerID] = append(m.sends[playerID], ev)
}

func (m *fakeMessenger) subscription(playerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.subscriptions[playerID]
	return name, ok
}

func (m *fakeMessenger) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = nil
	m.sends = make(map[string][]room.Event)
}

func (m *fakeMessenger) lastSendOfType(playerID string, t room.EventType) *room.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.sends[playerID]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == t {
			return &events[i]
		}
	}
	return nil
}

func (m *fakeMessenger) lastBroadcastOfType(t room.EventType) *room.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.broadcasts) - 1; i >= 0; i-- {
		if m.broadcasts[i].Type == t {
			return &m.broadcasts[i]
		}
	}
	return nil
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func setupCoordinator(ttl, grace time.Duration) (*Coordinator, *room.Registry, *fakeMessenger) {
	registry := room.NewRegistry(testLogger(), ttl, grace)
	msgr := newFakeMessenger()
	coord := NewCoordinator(registry, msgr, testLogger())
	return coord, registry, msgr
}

func TestCreateRoomAutoJoinsCreator(t *testing.T) {
	coord, registry, msgr := setupCoordinator(time.Hour, time.Hour)

	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))

	name, ok := coord.Membership("x")
	require.True(t, ok)
	assert.Equal(t, "mesa", name)

	sub, ok := msgr.subscription("x")
	require.True(t, ok)
	assert.Equal(t, "mesa", sub)

	created := msgr.lastSendOfType("x", room.EventRoomCreated)
	require.NotNil(t, created)
	assert.Equal(t, "mesa", created.Room)
	assert.Equal(t, 2, created.Capacity)
	require.NotNil(t, msgr.lastSendOfType("x", room.EventJoined))
	require.NotNil(t, msgr.lastSendOfType("x", room.EventHand))

	r, err := registry.Get("mesa")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, r.Members())
}

func TestCreateRoomNameCollision(t *testing.T) {
	coord, _, _ := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))

	err := coord.CreateRoom("y", "mesa", 2, "eva")
	assert.ErrorIs(t, err, room.ErrRoomExists)
	_, ok := coord.Membership("y")
	assert.False(t, ok, "a failed create must not bind the caller")
}

func TestCreateWhileBound(t *testing.T) {
	coord, registry, _ := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))

	err := coord.CreateRoom("x", "otra", 2, "ana")
	assert.ErrorIs(t, err, room.ErrAlreadyInRoom)
	assert.Contains(t, err.Error(), "mesa", "the rejection names the existing room")
	_, err = registry.Get("otra")
	assert.ErrorIs(t, err, room.ErrRoomNotFound, "no room is created on rejection")
}

func TestJoinSecondRoomRejected(t *testing.T) {
	coord, _, _ := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	require.NoError(t, coord.CreateRoom("y", "otra", 2, "eva"))

	err := coord.Join("x", "otra", "ana")
	assert.ErrorIs(t, err, room.ErrAlreadyInRoom)
	assert.Contains(t, err.Error(), "mesa")

	name, _ := coord.Membership("x")
	assert.Equal(t, "mesa", name, "the failed join mutates nothing")
}

func TestJoinMissingRoom(t *testing.T) {
	coord, _, msgr := setupCoordinator(time.Hour, time.Hour)

	err := coord.Join("x", "nope", "ana")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
	_, ok := msgr.subscription("x")
	assert.False(t, ok)
}

func TestJoinFullRoom(t *testing.T) {
	coord, _, msgr := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	require.NoError(t, coord.Join("y", "mesa", "eva"))

	err := coord.Join("z", "mesa", "leo")
	assert.ErrorIs(t, err, room.ErrRoomFull)
	_, ok := coord.Membership("z")
	assert.False(t, ok)
	_, ok = msgr.subscription("z")
	assert.False(t, ok, "the rolled-back join leaves no subscription behind")
}

func TestRejoinResendsStateUnicastOnly(t *testing.T) {
	coord, _, msgr := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	require.NoError(t, coord.Join("y", "mesa", "eva"))
	require.NoError(t, coord.StartRound("mesa"))
	msgr.clear()

	require.NoError(t, coord.Join("x", "mesa", "ana"))

	assert.Empty(t, msgr.broadcasts, "a re-join must not disturb the room")
	require.NotNil(t, msgr.lastSendOfType("x", room.EventRoomStatus))
	require.NotNil(t, msgr.lastSendOfType("x", room.EventPlays))
	hand := msgr.lastSendOfType("x", room.EventHand)
	require.NotNil(t, hand)
	assert.Len(t, hand.Hand, 1)

	sub, ok := msgr.subscription("x")
	require.True(t, ok)
	assert.Equal(t, "mesa", sub, "the connection is re-subscribed")
}

func TestLeaveInLobby(t *testing.T) {
	coord, _, msgr := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	require.NoError(t, coord.Join("y", "mesa", "eva"))
	msgr.clear()

	coord.Leave("x")

	_, ok := coord.Membership("x")
	assert.False(t, ok)
	_, ok = msgr.subscription("x")
	assert.False(t, ok)

	roster := msgr.lastBroadcastOfType(room.EventRoster)
	require.NotNil(t, roster)
	require.Len(t, roster.Roster.Players, 1)
	assert.Equal(t, "eva", roster.Roster.Players[0].DisplayName)
	assert.Nil(t, msgr.lastBroadcastOfType(room.EventPlayerLeft))
	assert.Nil(t, msgr.lastBroadcastOfType(room.EventRoomStatus))
}

func TestLeaveMidRoundFlagsReset(t *testing.T) {
	coord, registry, msgr := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	require.NoError(t, coord.Join("y", "mesa", "eva"))
	require.NoError(t, coord.StartRound("mesa"))
	msgr.clear()

	coord.Disconnect("x")

	require.NotNil(t, msgr.lastBroadcastOfType(room.EventPlayerLeft))
	status := msgr.lastBroadcastOfType(room.EventRoomStatus)
	require.NotNil(t, status)
	assert.True(t, status.Status.NeedsReset)

	r, err := registry.Get("mesa")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, r.Members())
}

func TestLastLeaveSchedulesDestruction(t *testing.T) {
	coord, registry, _ := setupCoordinator(time.Hour, 30*time.Millisecond)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))

	coord.Leave("x")

	require.Eventually(t, func() bool {
		_, err := registry.Get("mesa")
		return err != nil
	}, time.Second, 10*time.Millisecond, "an empty room is destroyed after the grace window")
}

func TestJoinDuringGraceKeepsRoom(t *testing.T) {
	coord, registry, _ := setupCoordinator(time.Hour, 40*time.Millisecond)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	coord.Leave("x")

	require.NoError(t, coord.Join("y", "mesa", "eva"))

	time.Sleep(100 * time.Millisecond)
	_, err := registry.Get("mesa")
	assert.NoError(t, err)
}

func TestLeaveUnboundIsNoop(t *testing.T) {
	coord, _, msgr := setupCoordinator(time.Hour, time.Hour)
	coord.Leave("ghost")
	assert.Empty(t, msgr.broadcasts)
}

func TestMembershipQuery(t *testing.T) {
	coord, _, _ := setupCoordinator(time.Hour, time.Hour)
	_, ok := coord.Membership("x")
	assert.False(t, ok)

	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	name, ok := coord.Membership("x")
	require.True(t, ok)
	assert.Equal(t, "mesa", name)
}

func TestRoundCommandsOnMissingRoom(t *testing.T) {
	coord, _, _ := setupCoordinator(time.Hour, time.Hour)

	assert.ErrorIs(t, coord.StartRound("nope"), room.ErrRoomNotFound)
	assert.ErrorIs(t, coord.ResetRound("nope"), room.ErrRoomNotFound)
	assert.ErrorIs(t, coord.PlayCard("x", "nope", 7), room.ErrRoomNotFound)
}

func TestTTLExpiryReleasesMembers(t *testing.T) {
	coord, _, msgr := setupCoordinator(40*time.Millisecond, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	require.NoError(t, coord.Join("y", "mesa", "eva"))

	require.Eventually(t, func() bool {
		_, xBound := coord.Membership("x")
		_, yBound := coord.Membership("y")
		return !xBound && !yBound
	}, time.Second, 10*time.Millisecond, "TTL expiry must release every member binding")

	_, ok := msgr.subscription("x")
	assert.False(t, ok)
	closed := msgr.lastBroadcastOfType(room.EventRoomClosed)
	require.NotNil(t, closed)
	assert.Equal(t, "mesa", closed.Room)

	// The name is free again.
	assert.NoError(t, coord.CreateRoom("x", "mesa", 3, "ana"))
}

func TestFullGameFlow(t *testing.T) {
	coord, registry, msgr := setupCoordinator(time.Hour, time.Hour)
	require.NoError(t, coord.CreateRoom("x", "mesa", 2, "ana"))
	require.NoError(t, coord.Join("y", "mesa", "eva"))
	require.NoError(t, coord.StartRound("mesa"))

	r, err := registry.Get("mesa")
	require.NoError(t, err)
	require.Equal(t, 1, r.Round())

	// Play both dealt cards in ascending order.
	handOf := func(id string) int {
		ev := msgr.lastSendOfType(id, room.EventHand)
		require.NotNil(t, ev)
		require.Len(t, ev.Hand, 1)
		return ev.Hand[0]
	}
	cx, cy := handOf("x"), handOf("y")
	first, second := "x", "y"
	lo, hi := cx, cy
	if cy < cx {
		first, second = "y", "x"
		lo, hi = cy, cx
	}
	require.NoError(t, coord.PlayCard(first, "mesa", lo))
	require.NoError(t, coord.PlayCard(second, "mesa", hi))

	require.NotNil(t, msgr.lastBroadcastOfType(room.EventRoundCleared))
	status := msgr.lastBroadcastOfType(room.EventRoomStatus)
	require.NotNil(t, status)
	assert.True(t, status.Status.AwaitingNext)

	require.NoError(t, coord.StartRound("mesa"))
	assert.Equal(t, 2, r.Round())
	hand := msgr.lastSendOfType("x", room.EventHand)
	require.NotNil(t, hand)
	assert.Len(t, hand.Hand, 2, "round two deals two cards")
}
