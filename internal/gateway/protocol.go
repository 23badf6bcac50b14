package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names (client → server).
const (
	EventCreateRoom = "create_room"
	EventJoinRoom   = "join_room"
	EventLeaveRoom  = "leave_room"
	EventPlayerMove = "player_move"
	// EventPlayerChat is both the inbound chat line and its relay to the
	// rest of the room.
	EventPlayerChat = "player_chat"
)

// Outbound event names (server → client).
const (
	EventRoomCreated       = "room_created"
	EventExistingPlayers   = "existing_players"
	EventRoomJoined        = "room_joined"
	EventPlayerJoined      = "player_joined"
	EventPlayerCountUpdate = "player_count_update"
	EventPlayerMoved       = "player_moved"
	EventPlayerLeft        = "player_left"
	EventNewHost           = "new_host"
	EventError             = "error"
)

// Envelope is the wire frame for every event in both directions: a named
// event plus its JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// encodeEvent builds the wire bytes for one outbound event. Marshalling
// happens once per broadcast, not once per recipient.
func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshalling %s envelope: %w", event, err)
	}
	return frame, nil
}

// CreateRoomRequest asks for a new room followed by an implicit join.
type CreateRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

// JoinRoomRequest asks to join an existing room.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

// PlayerMoveRequest reports the sender's position and animation label. The
// coordinates are opaque to the server and the animation string is passed
// through verbatim.
type PlayerMoveRequest struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Animation string  `json:"animation"`
}

// ChatRequest carries a chat line for the sender's room. Clients echo their
// own id in the payload; the server trusts the connection identity instead.
type ChatRequest struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// RoomCreatedPayload confirms room creation to the creator.
type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

// PlayerInfo is one member's record in an existing_players snapshot.
type PlayerInfo struct {
	ID       string  `json:"id"`
	Nickname string  `json:"nickname"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// RoomJoinedPayload initializes the joiner: its own identity, spawn
// position, host flag, and the room settings.
type RoomJoinedPayload struct {
	RoomID      string       `json:"roomId"`
	PlayerID    string       `json:"playerId"`
	IsHost      bool         `json:"isHost"`
	PlayerCount int          `json:"playerCount"`
	Settings    RoomSettings `json:"settings"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Nickname    string       `json:"nickname"`
}

// RoomSettings mirrors the room's fixed settings on the wire.
type RoomSettings struct {
	MaxPlayers int    `json:"maxPlayers"`
	GameMode   string `json:"gameMode"`
}

// PlayerJoinedPayload announces a new member to the rest of the room.
type PlayerJoinedPayload struct {
	ID       string    `json:"id"`
	Nickname string    `json:"nickname"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	JoinedAt time.Time `json:"joinedAt"`
}

// PlayerMovedPayload fans a position update out to the room.
type PlayerMovedPayload struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Animation string  `json:"animation"`
}

// PlayerLeftPayload announces a departure to the rest of the room.
type PlayerLeftPayload struct {
	ID string `json:"id"`
}

// NewHostPayload announces host reassignment to the whole room.
type NewHostPayload struct {
	ID string `json:"id"`
}

// ChatPayload relays a chat line to the rest of the room. Clients render
// the line by id; nickname is included for clients that want to label it.
type ChatPayload struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

// ErrorPayload reports a non-fatal request failure to the originating
// connection. The connection remains open for a retry.
type ErrorPayload struct {
	Message string `json:"message"`
}
