// internal/room/errors.go
package room

import "errors"

// Every failure in this package is recoverable: it is reported to the
// originating connection or logged, and never terminates the room or the
// process.
var (
	// ErrRoomExists is returned when creating a room whose name is taken.
	ErrRoomExists = errors.New("a room with that name already exists")

	// ErrRoomNotFound is returned when an operation targets an unknown room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when joining a room at capacity.
	ErrRoomFull = errors.New("the room is already full")

	// ErrAlreadyInRoom is returned when a connection bound to one room tries
	// to create or join another. Callers wrap it with the existing room name.
	ErrAlreadyInRoom = errors.New("already in a room")

	// ErrPlayerNotFound is returned when a room operation names a player that
	// is not seated in it.
	ErrPlayerNotFound = errors.New("player not found in room")

	// ErrOutOfOrder marks a play that did not strictly exceed the highest card
	// on the table. The room broadcasts the mis-play itself; the error exists
	// so callers can tell a handled mis-play from a silent success.
	ErrOutOfOrder = errors.New("card played out of order")

	// ErrMembershipConflict indicates the session index and a room's roster
	// disagree about a player. It points at a bookkeeping bug, never at user
	// input.
	ErrMembershipConflict = errors.New("membership index out of sync with room roster")
)
