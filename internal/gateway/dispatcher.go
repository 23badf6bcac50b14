package gateway

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/playfield/internal/game/room"
)

// Mode selects the recipient subset of a broadcast.
type Mode int

const (
	// All delivers to every member of the room, sender included.
	All Mode = iota
	// AllExceptSender delivers to every member except the excluded id.
	AllExceptSender
)

// Dispatcher fans events out to room members. Delivery is best-effort and
// fire-and-forget per connection: a failed push is logged and skipped, never
// surfaced to the caller, and never aborts delivery to the remaining
// members. Per-recipient ordering follows each connection's FIFO send
// queue, so events from one source arrive in broadcast order.
type Dispatcher struct {
	rooms  *room.Registry
	conns  *Table
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher resolving recipients through the given
// registry and connection table.
//
// Precondition: rooms, conns, and logger must be non-nil.
func NewDispatcher(rooms *room.Registry, conns *Table, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		rooms:  rooms,
		conns:  conns,
		logger: logger,
	}
}

// Send delivers one event directly to a single connection.
func (d *Dispatcher) Send(c *Conn, event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		d.logger.Error("encoding event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := c.Push(data); err != nil {
		d.logger.Warn("push to connection failed",
			zap.String("event", event),
			zap.String("conn_id", c.ID()),
			zap.Error(err),
		)
	}
}

// Broadcast delivers one event to the members of a room. Recipients are
// resolved from a snapshot of the room's membership taken at call time, so
// a concurrent join or leave cannot corrupt the iteration; membership is
// strictly scoped to the target room. Broadcasting to an unknown room is a
// no-op.
func (d *Dispatcher) Broadcast(roomID, event string, payload any, mode Mode, excludeID string) {
	r, err := d.rooms.Get(roomID)
	if err != nil {
		return
	}

	data, err := encodeEvent(event, payload)
	if err != nil {
		d.logger.Error("encoding event", zap.String("event", event), zap.Error(err))
		return
	}

	for _, id := range r.MemberIDs() {
		if mode == AllExceptSender && id == excludeID {
			continue
		}
		c, ok := d.conns.Get(id)
		if !ok {
			// Member's connection already torn down; its leave is in
			// flight. Skip.
			continue
		}
		if err := c.Push(data); err != nil {
			d.logger.Warn("push to connection failed",
				zap.String("event", event),
				zap.String("room_id", roomID),
				zap.String("conn_id", id),
				zap.Error(err),
			)
		}
	}
}
