// Package room provides the in-memory room registry, per-room membership
// state, and idle-room reaping for the session server. It contains no
// network code; the gateway layer drives it in response to client events.
package room

import (
	"math/rand"
	"sync"
	"time"
)

// Settings are fixed at room creation and never change for the room's life.
type Settings struct {
	// MaxPlayers is the membership cap.
	MaxPlayers int `json:"maxPlayers"`
	// GameMode is an opaque mode label passed through to clients.
	GameMode string `json:"gameMode"`
}

// SpawnArea is the rectangle within which new players spawn. Each axis is
// randomized independently, so two players may initially overlap.
type SpawnArea struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

func (a SpawnArea) roll() (x, y float64) {
	x = a.MinX + rand.Float64()*(a.MaxX-a.MinX)
	y = a.MinY + rand.Float64()*(a.MaxY-a.MinY)
	return x, y
}

// Player is a room-membership record. It is created on join, destroyed on
// leave, and never persists across rooms. Values returned from Room methods
// are copies; the Room never shares its internal records by reference.
type Player struct {
	// ID is the owning connection's identity.
	ID string `json:"id"`
	// Nickname is the display name, immutable after join.
	Nickname string `json:"nickname"`
	// X and Y are opaque coordinates; the server applies no bounds checks.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Animation is an opaque state label passed through verbatim.
	Animation string `json:"animation,omitempty"`
	// JoinedAt is the membership creation time.
	JoinedAt time.Time `json:"joinedAt"`
}

// Room is one active session. All mutating operations serialize on the
// room's write lock; reads may proceed concurrently. A room with no members
// is idle but still addressable until the reaper destroys it.
type Room struct {
	id        string
	createdAt time.Time
	settings  Settings
	spawn     SpawnArea

	mu           sync.RWMutex
	players      map[string]*Player
	order        []string // member ids in join order
	host         string
	lastActivity time.Time
	destroyed    bool
}

func newRoom(id string, settings Settings, spawn SpawnArea) *Room {
	now := time.Now()
	return &Room{
		id:           id,
		createdAt:    now,
		settings:     settings,
		spawn:        spawn,
		players:      make(map[string]*Player),
		lastActivity: now,
	}
}

// ID returns the room identifier, immutable for the room's life.
func (r *Room) ID() string { return r.id }

// CreatedAt returns the room creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Settings returns the room settings fixed at creation.
func (r *Room) Settings() Settings { return r.settings }

// JoinResult describes a successful join from the joiner's perspective.
type JoinResult struct {
	// Player is the joiner's freshly created membership record, including
	// its assigned spawn position.
	Player Player
	// Others is a snapshot of all other current members, in join order,
	// for client-side initialization.
	Others []Player
	// IsHost reports whether the joiner became (or already found itself)
	// the room host.
	IsHost bool
	// PlayerCount is the membership size including the joiner.
	PlayerCount int
}

// Join adds a connection to the room and assigns it a randomized spawn
// position. If the room has no host the joiner becomes host.
//
// Precondition: connID and nickname must be non-empty.
// Postcondition: Returns ErrRoomFull at capacity, ErrDuplicateMember if the
// connection is already a member, ErrRoomNotFound if the room was destroyed
// by the reaper before the join acquired the lock.
func (r *Room) Join(connID, nickname string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A reap that won the race makes this handle dead; the caller must
	// treat the id as unregistered.
	if r.destroyed {
		return JoinResult{}, ErrRoomNotFound
	}
	if len(r.players) >= r.settings.MaxPlayers {
		return JoinResult{}, ErrRoomFull
	}
	if _, exists := r.players[connID]; exists {
		return JoinResult{}, ErrDuplicateMember
	}

	x, y := r.spawn.roll()
	p := &Player{
		ID:       connID,
		Nickname: nickname,
		X:        x,
		Y:        y,
		JoinedAt: time.Now(),
	}

	others := r.snapshotLocked(connID)

	r.players[connID] = p
	r.order = append(r.order, connID)
	if r.host == "" {
		r.host = connID
	}
	r.touch()

	return JoinResult{
		Player:      *p,
		Others:      others,
		IsHost:      r.host == connID,
		PlayerCount: len(r.players),
	}, nil
}

// LeaveResult describes the side effects of a successful leave.
type LeaveResult struct {
	// NewHost is the promoted member's id if host reassignment occurred,
	// empty otherwise.
	NewHost string
	// PlayerCount is the membership size after the leave.
	PlayerCount int
}

// Leave removes a connection from the room. Leaving when not a member is a
// no-op. If the leaver was host and members remain, the earliest-joined
// remaining member is promoted. When the last member leaves the room goes
// idle and stamps its activity time for the reaper.
//
// Postcondition: Returns (result, true) if the connection was a member,
// (zero, false) otherwise.
func (r *Room) Leave(connID string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[connID]; !exists {
		return LeaveResult{}, false
	}

	delete(r.players, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	res := LeaveResult{PlayerCount: len(r.players)}
	if r.host == connID {
		if len(r.order) > 0 {
			r.host = r.order[0]
			res.NewHost = r.host
		} else {
			r.host = ""
		}
	}
	r.touch()

	return res, true
}

// UpdatePosition overwrites a member's position and animation label. Updates
// for connections that are not current members are silently ignored; this
// guards against stale move events racing a leave.
//
// Postcondition: Returns true if the member existed and was updated.
func (r *Room) UpdatePosition(connID string, x, y float64, animation string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[connID]
	if !exists {
		return false
	}
	p.X = x
	p.Y = y
	p.Animation = animation
	r.touch()
	return true
}

// Snapshot returns a copy of all current members in join order.
func (r *Room) Snapshot() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked("")
}

// snapshotLocked copies membership in join order, skipping exclude.
// Callers must hold at least the read lock.
func (r *Room) snapshotLocked(exclude string) []Player {
	out := make([]Player, 0, len(r.players))
	for _, id := range r.order {
		if id == exclude {
			continue
		}
		if p, ok := r.players[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// MemberIDs returns the ids of all current members in join order. The
// returned slice is a copy; broadcasts iterate it without holding the lock.
func (r *Room) MemberIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// PlayerCount returns the current membership size.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// HostID returns the current host's connection id, or "" if the room has
// no members.
func (r *Room) HostID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host
}

// Empty reports whether the room has no members.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0
}

// LastActivity returns the time of the most recent mutating operation.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// Destroyed reports whether the reaper has destroyed this room.
func (r *Room) Destroyed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.destroyed
}

// destroyIfIdle marks the room destroyed if it is still empty and still past
// the idle threshold at the moment of the check. The re-check runs under the
// same lock as membership mutations, so a join that repopulated the room in
// flight aborts the reap.
//
// Postcondition: Returns true if the room transitioned to destroyed.
func (r *Room) destroyIfIdle(now time.Time, threshold time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return false
	}
	if len(r.players) > 0 {
		return false
	}
	if now.Sub(r.lastActivity) <= threshold {
		return false
	}
	r.destroyed = true
	return true
}

// touch stamps lastActivity. Callers must hold the write lock.
// lastActivity is monotonically non-decreasing.
func (r *Room) touch() {
	if now := time.Now(); now.After(r.lastActivity) {
		r.lastActivity = now
	}
}
