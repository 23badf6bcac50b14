package room

import "errors"

// Error taxonomy for room operations. Handlers translate these into error
// events on the originating connection; none of them are fatal.
var (
	// ErrRoomExists is returned by Registry.Create when the id is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrRoomNotFound is returned when an operation targets an unknown or
	// already-destroyed room id.
	ErrRoomNotFound = errors.New("room does not exist")
	// ErrRoomFull is returned by Room.Join when the room is at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrDuplicateMember is returned by Room.Join when the connection is
	// already a member of the room.
	ErrDuplicateMember = errors.New("connection already in room")
)
