// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/svalle/lamente/internal/room"
	"github.com/svalle/lamente/internal/session"
)

// WSHandler upgrades the connection, resolves the caller's stable identifier
// from the handshake query, and runs the read loop until the client goes
// away. A transport-level disconnect triggers the same cleanup as an explicit
// leave.
func WSHandler(logger *logrus.Logger, coord *session.Coordinator, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust in production.
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		// The handshake supplies the stable per-connection identifier; a
		// client that omits it gets a fresh one for this session.
		playerID := r.URL.Query().Get("playerId")
		if playerID == "" {
			playerID = uuid.NewString()
		}

		out := hub.Register(playerID)
		logger.WithFields(logrus.Fields{"player": playerID, "remote": r.RemoteAddr}).
			Info("websocket connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, out, logger)
		readPump(ctx, c, playerID, coord, hub, logger)

		// A reconnect replaces the registration; only the owning connection
		// may tear down the player's session state.
		if hub.Deregister(playerID, out) {
			coord.Disconnect(playerID)
		}
		logger.WithField("player", playerID).Info("websocket disconnected")
		c.Close(websocket.StatusNormalClosure, "bye")
	}
}

// readPump reads and dispatches commands until the connection closes or the
// context is canceled.
func readPump(ctx context.Context, c *websocket.Conn, playerID string, coord *session.Coordinator, hub *Hub, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return
			}
			logger.Warnf("read error for player %s: %v", playerID, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			logger.Warnf("invalid json from player %s: %v", playerID, err)
			hub.Send(playerID, room.Event{Type: room.EventJoinError, Message: "invalid message format"})
			continue
		}
		dispatch(playerID, cmd, coord, hub, logger)
	}
}

// dispatch routes one decoded command. Failures that the wire surface defines
// a notification for are sent back to the caller; the rest are logged and the
// command becomes a no-op.
func dispatch(playerID string, cmd Command, coord *session.Coordinator, hub *Hub, logger *logrus.Logger) {
	log := logger.WithFields(logrus.Fields{"player": playerID, "command": cmd.Type, "room": cmd.Room})

	switch cmd.Type {
	case CmdCreateRoom:
		if err := coord.CreateRoom(playerID, cmd.Room, cmd.Capacity, cmd.DisplayName); err != nil {
			log.Infof("create rejected: %v", err)
			hub.Send(playerID, room.Event{Type: room.EventJoinError, Room: cmd.Room, Message: joinErrorText(err)})
		}
	case CmdJoinRoom:
		if err := coord.Join(playerID, cmd.Room, cmd.DisplayName); err != nil {
			log.Infof("join rejected: %v", err)
			hub.Send(playerID, room.Event{Type: room.EventJoinError, Room: cmd.Room, Message: joinErrorText(err)})
		}
	case CmdLeaveRoom:
		coord.Leave(playerID)
	case CmdCheckMembership:
		name, _ := coord.Membership(playerID)
		hub.Send(playerID, room.Event{Type: room.EventMembership, Room: name})
	case CmdPlayCard:
		if err := coord.PlayCard(playerID, cmd.Room, cmd.Card); err != nil {
			// A mis-play already broadcast its own notification; missing
			// rooms or players stay silent on the wire.
			if errors.Is(err, room.ErrOutOfOrder) {
				log.Debugf("mis-play: card %d", cmd.Card)
			} else {
				log.Warnf("playCard dropped: %v", err)
			}
		}
	case CmdStartRound, CmdStartNextRound:
		if err := coord.StartRound(cmd.Room); err != nil {
			log.Warnf("startRound dropped: %v", err)
		}
	case CmdResetRound:
		if err := coord.ResetRound(cmd.Room); err != nil {
			log.Warnf("resetRound dropped: %v", err)
		}
	default:
		log.Warn("unknown command type")
	}
}

// writePump serializes queued events onto the socket and keeps the connection
// alive with periodic pings. It exits when the queue closes or the context is
// canceled.
func writePump(ctx context.Context, c *websocket.Conn, out <-chan room.Event, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-out:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("failed to marshal %s event: %v", ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
