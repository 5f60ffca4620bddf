// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/game"
	"github.com/atifkhan161/contract-crown-sub004/internal/middleware"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "contract-crown"

const writeTimeout = 5 * time.Second

type pongMessage struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

// handleWS upgrades to a websocket for one seated player. The connection
// becomes an observer of the room: it first receives either the events it
// missed since ?since=n or a full sync_state, then every canonical event in
// order. Actions sent on it go through the room pipeline.
func (s *GameServer) handleWS(w http.ResponseWriter, r *http.Request) {
	room, roomErr := s.room(r)
	playerID, _, authErr := s.Sessions.Authenticate(r)

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept")
		return
	}
	defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "Client must use the '"+Subprotocol+"' subprotocol.")
		return
	}
	if authErr != nil {
		c.Close(InvalidAuthTokenError, "Authentication failed.")
		return
	}
	if roomErr != nil {
		c.Close(InvalidRoomIDError, "Room not found.")
		return
	}

	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		since, _ = strconv.ParseUint(v, 10, 64)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	o, err := room.Join(ctx, playerID, since)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownPlayer) {
			c.Close(NotSeatedError, "You are not a player in this room.")
			return
		}
		s.Logger.WithError(err).WithField("room_id", room.ID).Warn("join room")
		c.Close(websocket.StatusTryAgainLater, "Room unavailable.")
		return
	}

	logger := s.Logger.WithFields(logrus.Fields{
		"room_id":     room.ID,
		"player_id":   playerID,
		"observer_id": o.ID,
	})
	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

	go writeEvents(ctx, cancel, c, o, logger)
	readErr := readGameMessages(ctx, c, room, o, logger)
	cancel()

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), time.Second)
	if err := room.Leave(leaveCtx, o); err != nil && !errors.Is(err, game.ErrRoomClosed) {
		logger.WithError(err).Warn("leave room")
	}
	leaveCancel()
	middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
}

// writeEvents drains the observer queue onto the socket and reports each
// successful write back to the observer.
func writeEvents(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, o *game.Observer, logger *logrus.Entry) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.Events():
			if !ok {
				c.Close(StreamClosedError, "Stream closed by the room.")
				return
			}
			data, err := protocol.Encode(ev)
			if err != nil {
				logger.WithError(err).Error("encode event")
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			writeCancel()
			if err != nil {
				logger.WithError(err).WithField("seq", ev.Seq).Debug("write event")
				return
			}
			o.Delivered(ev)
		}
	}
}

// readGameMessages handles client messages until the connection fails or
// ctx is cancelled. Rejections are answered on this connection only.
func readGameMessages(ctx context.Context, c *websocket.Conn, room *game.Room, o *game.Observer, logger *logrus.Entry) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d. Ignoring.", msgType)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsMessage(ctx, c, ErrorMessage{Type: "error", Code: "bad_request", Message: "Invalid JSON format."})
			continue
		}

		switch msg.Type {
		case string(models.ActionDeclareTrump), string(models.ActionPlayCard):
			action, err := msg.action(o.PlayerID)
			if err == nil {
				err = room.Submit(ctx, action)
			}
			if err != nil {
				logger.WithError(err).WithField("action", msg.Type).Debug("action rejected")
				sendWsMessage(ctx, c, newErrorMessage(err, msg.Type))
			}

		case "heartbeat":
			room.Heartbeat(o, msg.Seq)
			sendWsMessage(ctx, c, pongMessage{Type: "pong", Seq: o.DeliveredSeq()})

		case "ping":
			sendWsMessage(ctx, c, pongMessage{Type: "pong", Seq: o.DeliveredSeq()})

		case "sync_request":
			if err := room.Resync(ctx, o); err != nil {
				sendWsMessage(ctx, c, newErrorMessage(err, msg.Type))
			}

		default:
			sendWsMessage(ctx, c, ErrorMessage{Type: "error", Code: "bad_request", Message: "Unknown message type: " + msg.Type})
		}
	}
}

// sendWsMessage marshals a message and sends it with a write timeout.
// Failures are left to the read loop to notice.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = c.Write(writeCtx, websocket.MessageText, msgBytes)
}
