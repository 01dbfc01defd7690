// internal/handlers/command.go
package handlers

import (
	"errors"

	"github.com/svalle/lamente/internal/room"
)

// CommandType tags every inbound client message. The dispatcher switches over
// the closed set; anything else is logged and answered with an error event.
type CommandType string

const (
	CmdCreateRoom      CommandType = "createRoom"
	CmdJoinRoom        CommandType = "joinRoom"
	CmdLeaveRoom       CommandType = "leaveRoom"
	CmdCheckMembership CommandType = "checkMembership"
	CmdPlayCard        CommandType = "playCard"
	CmdStartRound      CommandType = "startRound"
	CmdStartNextRound  CommandType = "startNextRound"
	CmdResetRound      CommandType = "resetRound"
)

// Command is the single inbound message shape. Only the fields relevant to
// the Type are expected to be set.
type Command struct {
	Type        CommandType `json:"type"`
	Room        string      `json:"room,omitempty"`
	Capacity    int         `json:"capacity,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	Card        int         `json:"card,omitempty"`
}

// joinErrorText maps the error taxonomy onto the human-readable reason sent
// back in a room_join_error notification.
func joinErrorText(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomExists),
		errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrAlreadyInRoom):
		return err.Error()
	default:
		return "could not join the room"
	}
}
