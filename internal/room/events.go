// internal/room/events.go
package room

// EventType tags every outbound notification sent to clients.
type EventType string

const (
	EventRoomCreated  EventType = "room_created"
	EventJoined       EventType = "room_joined"
	EventJoinError    EventType = "room_join_error"
	EventRoomStatus   EventType = "room_status"
	EventHand         EventType = "hand_assigned"
	EventPlays        EventType = "played_cards_updated"
	EventRoster       EventType = "roster_updated"
	EventPlayError    EventType = "play_error"
	EventRoundCleared EventType = "round_cleared"
	EventPlayerLeft   EventType = "player_left"
	EventMembership   EventType = "membership"
	EventRoomClosed   EventType = "room_closed"
)

// Play is one card committed during the current round.
type Play struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Card        int    `json:"card"`
}

// RosterEntry identifies one seated player in roster updates.
type RosterEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

// StatusPayload describes the round state machine of a room.
type StatusPayload struct {
	Room         string `json:"room"`
	Round        int    `json:"round"`
	AwaitingNext bool   `json:"awaitingNext"`
	NeedsReset   bool   `json:"needsReset"`
}

// RosterPayload lists the current members of a room.
type RosterPayload struct {
	Room       string        `json:"room"`
	Capacity   int           `json:"capacity"`
	NeedsReset bool          `json:"needsReset"`
	Players    []RosterEntry `json:"players"`
}

// Event is the single outbound message shape shared by every notification.
// Only the fields relevant to the Type are populated.
type Event struct {
	Type EventType `json:"type"`

	Room        string `json:"room,omitempty"`
	Message     string `json:"message,omitempty"`
	Capacity    int    `json:"capacity,omitempty"`
	DisplayName string `json:"displayName,omitempty"`

	Status *StatusPayload `json:"status,omitempty"`
	Roster *RosterPayload `json:"roster,omitempty"`
	Hand   []int          `json:"hand,omitempty"`
	Plays  []Play         `json:"plays,omitempty"`
}

// BroadcastFunc delivers an event to every subscribed member of a room.
type BroadcastFunc func(ev Event)

// UnicastFunc delivers an event to a single connection.
type UnicastFunc func(playerID string, ev Event)
