// internal/room/room.go
package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/svalle/lamente/internal/deck"
)

// Player is one seated member of a room.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Hand        []int  `json:"hand"`
}

// Room holds the entire state of one match in memory: its roster, the current
// round and the cards on the table. One mutex guards it all; every exported
// method takes and releases the lock itself, so callers never hold it.
//
// The room never touches the transport directly. BroadcastFn and UnicastFn are
// installed by the session layer when the room is created; if either is nil
// the corresponding events are dropped, which keeps the engine testable
// without a socket.
type Room struct {
	Name      string
	Capacity  int
	CreatedAt time.Time

	players map[string]*Player
	order   []string // join order; deals iterate seats in this order

	round        int
	plays        []Play
	awaitingNext bool
	needsReset   bool

	BroadcastFn BroadcastFunc
	UnicastFn   UnicastFunc

	Mu sync.Mutex
}

// New builds an empty room in the lobby state (round 0).
func New(name string, capacity int) *Room {
	return &Room{
		Name:      name,
		Capacity:  capacity,
		CreatedAt: time.Now(),
		players:   make(map[string]*Player),
	}
}

// Join seats a player, or re-sends the full room state if the player is
// already seated (an idempotent re-join after a reconnect). A fresh join
// broadcasts status, played cards and roster to the whole room and unicasts
// the new player's (empty) hand; a re-join unicasts everything to the
// rejoining connection only and mutates nothing.
func (r *Room) Join(id, displayName string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if p, ok := r.players[id]; ok {
		r.unicast(id, Event{Type: EventJoined, Room: r.Name, DisplayName: p.DisplayName})
		r.unicast(id, r.statusEvent())
		r.unicast(id, r.playsEvent())
		r.unicast(id, r.handEvent(p))
		return nil
	}
	if len(r.players) >= r.Capacity {
		return ErrRoomFull
	}

	p := &Player{ID: id, DisplayName: displayName, Hand: []int{}}
	r.players[id] = p
	r.order = append(r.order, id)

	r.broadcast(r.statusEvent())
	r.broadcast(r.playsEvent())
	r.broadcast(r.rosterEvent())
	r.unicast(id, Event{Type: EventJoined, Room: r.Name, DisplayName: displayName})
	r.unicast(id, r.handEvent(p))
	return nil
}

// Remove unseats a player and broadcasts the updated roster. If a round is in
// progress the round can no longer be completed, so the room is flagged for a
// reset and the remaining players are told. Reports whether the room is now
// empty so the caller can schedule its destruction.
func (r *Room) Remove(id string) (empty bool, err error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if _, ok := r.players[id]; !ok {
		return len(r.players) == 0, ErrPlayerNotFound
	}
	delete(r.players, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.round > 0 {
		r.needsReset = true
		r.broadcast(Event{
			Type:    EventPlayerLeft,
			Room:    r.Name,
			Message: "a player left mid-round; fill the room again to restart it",
		})
		r.broadcast(r.statusEvent())
	}
	r.broadcast(r.rosterEvent())
	return len(r.players) == 0, nil
}

// StartRound advances the room to the next round: the round counter goes up by
// one, the table is cleared and every player is dealt a fresh hand of `round`
// cards.
func (r *Room) StartRound() {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	r.round++
	r.plays = nil
	r.deal()
	r.broadcast(r.playsEvent())
	r.broadcast(r.statusEvent())
}

// ResetRound restarts the current round after a mis-play or a mid-round
// departure: the reset flag and the table are cleared and hands are re-dealt
// for the same round number.
func (r *Room) ResetRound() {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	r.needsReset = false
	r.plays = nil
	r.broadcast(r.rosterEvent())
	r.broadcast(r.playsEvent())
	r.deal()
	r.broadcast(r.statusEvent())
}

// PlayCard commits a card for a player. The card must strictly exceed the
// highest card already on the table; an equal or lower card is a mis-play,
// which is broadcast to the whole room and flags it for a reset without
// touching the table or the offender's hand. A valid play moves the card from
// the hand to the table and, when the last required card lands, unblocks the
// next round.
func (r *Room) PlayCard(id string, card int) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return ErrPlayerNotFound
	}

	if len(r.plays) > 0 {
		last := r.plays[0].Card
		for _, pl := range r.plays[1:] {
			if pl.Card > last {
				last = pl.Card
			}
		}
		if card <= last {
			r.broadcast(Event{
				Type:    EventPlayError,
				Room:    r.Name,
				Message: fmt.Sprintf("card %d played by %s was out of order, try the round again", card, p.DisplayName),
			})
			r.needsReset = true
			r.broadcast(r.statusEvent())
			r.broadcast(r.rosterEvent())
			return ErrOutOfOrder
		}
	}

	// The card may already be gone from the hand; play it anyway.
	for i, v := range p.Hand {
		if v == card {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			break
		}
	}
	r.plays = append(r.plays, Play{PlayerID: id, DisplayName: p.DisplayName, Card: card})
	r.unicast(id, r.handEvent(p))
	r.broadcast(r.playsEvent())

	if required := r.Capacity * r.round; len(r.plays) == required {
		r.awaitingNext = true
		r.broadcast(r.statusEvent())
		r.broadcast(Event{
			Type:    EventRoundCleared,
			Room:    r.Name,
			Message: "round cleared, advance to the next one",
		})
	}
	return nil
}

// Close tells every member the room is gone. Used when the hard TTL fires
// while players are still seated.
func (r *Room) Close() {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.broadcast(Event{
		Type:    EventRoomClosed,
		Room:    r.Name,
		Message: "the room reached its time limit and was closed",
	})
}

// Members returns the seated player ids in join order.
func (r *Room) Members() []string {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of seated players.
func (r *Room) Len() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return len(r.players)
}

// Round returns the current round number. Round 0 is the lobby state.
func (r *Room) Round() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.round
}

// deal replaces every hand with `round` cards drawn without replacement from
// the values not currently held or played in this room, in seat order. If the
// pool runs dry late seats simply receive fewer cards. Must be called with the
// lock held.
func (r *Room) deal() {
	exclude := make([][]int, 0, len(r.order)+1)
	cards := make([]int, 0, len(r.plays))
	for _, pl := range r.plays {
		cards = append(cards, pl.Card)
	}
	exclude = append(exclude, cards)
	for _, id := range r.order {
		exclude = append(exclude, r.players[id].Hand)
	}
	pool := deck.Pool(exclude...)

	for _, id := range r.order {
		p := r.players[id]
		p.Hand, pool = deck.Draw(pool, r.round)
		r.unicast(id, r.handEvent(p))
	}
	r.awaitingNext = false
}

func (r *Room) statusEvent() Event {
	return Event{Type: EventRoomStatus, Status: &StatusPayload{
		Room:         r.Name,
		Round:        r.round,
		AwaitingNext: r.awaitingNext,
		NeedsReset:   r.needsReset,
	}}
}

func (r *Room) rosterEvent() Event {
	players := make([]RosterEntry, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		players = append(players, RosterEntry{PlayerID: p.ID, DisplayName: p.DisplayName})
	}
	return Event{Type: EventRoster, Roster: &RosterPayload{
		Room:       r.Name,
		Capacity:   r.Capacity,
		NeedsReset: r.needsReset,
		Players:    players,
	}}
}

func (r *Room) playsEvent() Event {
	return Event{Type: EventPlays, Room: r.Name, Plays: append([]Play(nil), r.plays...)}
}

func (r *Room) handEvent(p *Player) Event {
	return Event{Type: EventHand, Room: r.Name, Hand: append([]int(nil), p.Hand...)}
}

func (r *Room) broadcast(ev Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

func (r *Room) unicast(id string, ev Event) {
	if r.UnicastFn != nil {
		r.UnicastFn(id, ev)
	}
}
