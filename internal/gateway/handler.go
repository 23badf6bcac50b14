package gateway

import (
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/playfield/internal/game/room"
)

// Client-facing error messages for the four request failure classes plus the
// generic internal fallback.
const (
	errMissingFields = "missing room id or nickname"
	errRoomExists    = "room already exists"
	errRoomNotFound  = "room does not exist"
	errRoomFull      = "room is full"
	errInternal      = "internal server error"
)

// SessionHandler routes inbound events to the room layer and fans the
// resulting events back out. All request failures are answered with an
// error event on the originating connection and are never fatal; the
// connection stays open for a retry.
type SessionHandler struct {
	rooms      *room.Registry
	dispatcher *Dispatcher
	settings   room.Settings
	logger     *zap.Logger
}

// NewSessionHandler creates a SessionHandler. Rooms created through it get
// the given settings.
//
// Precondition: rooms, dispatcher, and logger must be non-nil;
// settings.MaxPlayers must be >= 1.
func NewSessionHandler(rooms *room.Registry, dispatcher *Dispatcher, settings room.Settings, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		rooms:      rooms,
		dispatcher: dispatcher,
		settings:   settings,
		logger:     logger,
	}
}

// HandleEvent dispatches one inbound envelope. Unexpected failures are
// recovered here, logged, and converted to a generic error reply rather
// than terminating the connection.
func (h *SessionHandler) HandleEvent(c *Conn, env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic handling event",
				zap.String("event", env.Event),
				zap.String("conn_id", c.ID()),
				zap.Any("panic", rec),
			)
			h.sendError(c, errInternal)
		}
	}()

	switch env.Event {
	case EventCreateRoom:
		h.handleCreateRoom(c, env.Data)
	case EventJoinRoom:
		h.handleJoinRoom(c, env.Data)
	case EventPlayerMove:
		h.handlePlayerMove(c, env.Data)
	case EventPlayerChat:
		h.handleChat(c, env.Data)
	case EventLeaveRoom:
		h.leaveCurrentRoom(c)
	default:
		h.logger.Debug("unknown event",
			zap.String("event", env.Event),
			zap.String("conn_id", c.ID()),
		)
	}
}

// HandleDisconnect is invoked by the gateway when a connection's channel
// closes. It runs the same state transition and notifications as an
// explicit leave.
func (h *SessionHandler) HandleDisconnect(c *Conn) {
	h.leaveCurrentRoom(c)
}

func (h *SessionHandler) handleCreateRoom(c *Conn, data json.RawMessage) {
	var req CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger.Warn("malformed create_room payload",
			zap.String("conn_id", c.ID()), zap.Error(err))
		h.sendError(c, errInternal)
		return
	}
	if req.RoomID == "" || req.Nickname == "" {
		h.sendError(c, errMissingFields)
		return
	}

	if _, err := h.rooms.Create(req.RoomID, h.settings); err != nil {
		if errors.Is(err, room.ErrRoomExists) {
			h.sendError(c, errRoomExists)
		} else {
			h.logger.Error("creating room",
				zap.String("room_id", req.RoomID), zap.Error(err))
			h.sendError(c, errInternal)
		}
		return
	}

	h.dispatcher.Send(c, EventRoomCreated, RoomCreatedPayload{RoomID: req.RoomID})
	h.logger.Info("room created by client",
		zap.String("room_id", req.RoomID),
		zap.String("conn_id", c.ID()),
		zap.String("nickname", req.Nickname),
	)

	// The creator joins its own room immediately.
	h.join(c, req.RoomID, req.Nickname)
}

func (h *SessionHandler) handleJoinRoom(c *Conn, data json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger.Warn("malformed join_room payload",
			zap.String("conn_id", c.ID()), zap.Error(err))
		h.sendError(c, errInternal)
		return
	}
	if req.RoomID == "" || req.Nickname == "" {
		h.sendError(c, errMissingFields)
		return
	}
	h.join(c, req.RoomID, req.Nickname)
}

// join runs the join protocol: lookup, membership insert, snapshot delivery
// to the joiner, arrival broadcast to the rest, and a room-wide member
// count update. A connection already in a different room leaves it first.
func (h *SessionHandler) join(c *Conn, roomID, nickname string) {
	if c.currentRoom != "" && c.currentRoom != roomID {
		h.leaveCurrentRoom(c)
	}

	r, err := h.rooms.Get(roomID)
	if err != nil {
		h.sendError(c, errRoomNotFound)
		return
	}

	res, err := r.Join(c.ID(), nickname)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomFull):
			h.sendError(c, errRoomFull)
		case errors.Is(err, room.ErrRoomNotFound):
			// Reaped between lookup and join.
			h.sendError(c, errRoomNotFound)
		case errors.Is(err, room.ErrDuplicateMember):
			// Same-room rejoin (a client re-running its init). Harmless:
			// re-send the init events without touching room state or
			// notifying anyone else.
			h.resendInit(c, r, roomID)
		default:
			h.logger.Error("joining room",
				zap.String("room_id", roomID), zap.Error(err))
			h.sendError(c, errInternal)
		}
		return
	}

	c.currentRoom = roomID
	c.nickname = nickname

	existing := make([]PlayerInfo, 0, len(res.Others))
	for _, p := range res.Others {
		existing = append(existing, PlayerInfo{
			ID:       p.ID,
			Nickname: p.Nickname,
			X:        p.X,
			Y:        p.Y,
		})
	}

	settings := r.Settings()
	h.dispatcher.Send(c, EventExistingPlayers, existing)
	h.dispatcher.Send(c, EventRoomJoined, RoomJoinedPayload{
		RoomID:      roomID,
		PlayerID:    c.ID(),
		IsHost:      res.IsHost,
		PlayerCount: res.PlayerCount,
		Settings: RoomSettings{
			MaxPlayers: settings.MaxPlayers,
			GameMode:   settings.GameMode,
		},
		X:        res.Player.X,
		Y:        res.Player.Y,
		Nickname: nickname,
	})

	h.dispatcher.Broadcast(roomID, EventPlayerJoined, PlayerJoinedPayload{
		ID:       res.Player.ID,
		Nickname: res.Player.Nickname,
		X:        res.Player.X,
		Y:        res.Player.Y,
		JoinedAt: res.Player.JoinedAt,
	}, AllExceptSender, c.ID())
	h.dispatcher.Broadcast(roomID, EventPlayerCountUpdate, res.PlayerCount, All, "")

	h.logger.Info("player joined room",
		zap.String("room_id", roomID),
		zap.String("conn_id", c.ID()),
		zap.String("nickname", nickname),
		zap.Bool("is_host", res.IsHost),
		zap.Int("player_count", res.PlayerCount),
	)
}

// resendInit replays existing_players and room_joined to a member from the
// room's current state.
func (h *SessionHandler) resendInit(c *Conn, r *room.Room, roomID string) {
	snapshot := r.Snapshot()
	var self room.Player
	others := make([]PlayerInfo, 0, len(snapshot))
	for _, p := range snapshot {
		if p.ID == c.ID() {
			self = p
			continue
		}
		others = append(others, PlayerInfo{
			ID:       p.ID,
			Nickname: p.Nickname,
			X:        p.X,
			Y:        p.Y,
		})
	}

	settings := r.Settings()
	h.dispatcher.Send(c, EventExistingPlayers, others)
	h.dispatcher.Send(c, EventRoomJoined, RoomJoinedPayload{
		RoomID:      roomID,
		PlayerID:    c.ID(),
		IsHost:      r.HostID() == c.ID(),
		PlayerCount: len(snapshot),
		Settings: RoomSettings{
			MaxPlayers: settings.MaxPlayers,
			GameMode:   settings.GameMode,
		},
		X:        self.X,
		Y:        self.Y,
		Nickname: self.Nickname,
	})

	h.logger.Debug("re-sent room init",
		zap.String("room_id", roomID),
		zap.String("conn_id", c.ID()),
	)
}

func (h *SessionHandler) handlePlayerMove(c *Conn, data json.RawMessage) {
	// Moves require an established membership; anything else is a stale or
	// out-of-order update and is dropped without an error reply.
	roomID := c.currentRoom
	if roomID == "" {
		return
	}

	var req PlayerMoveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger.Warn("malformed player_move payload",
			zap.String("conn_id", c.ID()), zap.Error(err))
		return
	}

	r, err := h.rooms.Get(roomID)
	if err != nil {
		return
	}
	if !r.UpdatePosition(c.ID(), req.X, req.Y, req.Animation) {
		return
	}

	h.dispatcher.Broadcast(roomID, EventPlayerMoved, PlayerMovedPayload{
		ID:        c.ID(),
		X:         req.X,
		Y:         req.Y,
		Animation: req.Animation,
	}, AllExceptSender, c.ID())
}

func (h *SessionHandler) handleChat(c *Conn, data json.RawMessage) {
	roomID := c.currentRoom
	if roomID == "" {
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger.Warn("malformed player_chat payload",
			zap.String("conn_id", c.ID()), zap.Error(err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		return
	}

	// The sender renders its own line locally, so the relay excludes it.
	h.dispatcher.Broadcast(roomID, EventPlayerChat, ChatPayload{
		ID:       c.ID(),
		Nickname: c.nickname,
		Message:  req.Message,
	}, AllExceptSender, c.ID())
}

// leaveCurrentRoom removes the connection from its room, if any, and emits
// the departure notifications. Leaving while not in a room is a no-op with
// no events.
func (h *SessionHandler) leaveCurrentRoom(c *Conn) {
	roomID := c.currentRoom
	if roomID == "" {
		return
	}
	c.currentRoom = ""

	r, err := h.rooms.Get(roomID)
	if err != nil {
		return
	}

	res, ok := r.Leave(c.ID())
	if !ok {
		return
	}

	h.dispatcher.Broadcast(roomID, EventPlayerLeft, PlayerLeftPayload{ID: c.ID()}, AllExceptSender, c.ID())
	h.dispatcher.Broadcast(roomID, EventPlayerCountUpdate, res.PlayerCount, All, "")
	if res.NewHost != "" {
		h.dispatcher.Broadcast(roomID, EventNewHost, NewHostPayload{ID: res.NewHost}, All, "")
	}

	h.logger.Info("player left room",
		zap.String("room_id", roomID),
		zap.String("conn_id", c.ID()),
		zap.Int("player_count", res.PlayerCount),
		zap.String("new_host", res.NewHost),
	)
}

func (h *SessionHandler) sendError(c *Conn, message string) {
	h.dispatcher.Send(c, EventError, ErrorPayload{Message: message})
}
