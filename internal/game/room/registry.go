package room

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry is the process-wide mapping from room id to Room. It owns
// creation, lookup, and eviction; broadcast side effects never originate
// here. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	spawn  SpawnArea
	logger *zap.Logger
}

// NewRegistry creates an empty Registry. Rooms created through it spawn
// players within the given area.
//
// Precondition: logger must be non-nil.
func NewRegistry(spawn SpawnArea, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		spawn:  spawn,
		logger: logger,
	}
}

// Create inserts a new empty room under the given id.
//
// Precondition: id must be non-empty; settings.MaxPlayers must be >= 1.
// Postcondition: Returns the new room, or ErrRoomExists if the id is
// already registered. A previously reaped id may be reused.
func (g *Registry) Create(id string, settings Settings) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.rooms[id]; exists {
		return nil, ErrRoomExists
	}

	r := newRoom(id, settings, g.spawn)
	g.rooms[id] = r

	g.logger.Info("room created",
		zap.String("room_id", id),
		zap.Int("max_players", settings.MaxPlayers),
		zap.String("game_mode", settings.GameMode),
	)
	return r, nil
}

// Get returns the room registered under id.
//
// Postcondition: Returns ErrRoomNotFound if the id is not registered.
func (g *Registry) Get(id string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, exists := g.rooms[id]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove deletes the room registered under id. Removing an absent id is a
// no-op.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, id)
}

// IdleRoomsOlderThan returns the rooms that are empty and whose last
// activity is older than the given duration. Used by the reaper; candidates
// are re-checked under each room's own lock before destruction.
func (g *Registry) IdleRoomsOlderThan(d time.Duration) []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := time.Now()
	var idle []*Room
	for _, r := range g.rooms {
		if r.Empty() && now.Sub(r.LastActivity()) > d {
			idle = append(idle, r)
		}
	}
	return idle
}

// ReapIdle destroys every room that has been empty longer than threshold.
// Each candidate is re-checked under its own write lock at the moment of
// destruction, so a concurrent join wins over an in-flight reap.
//
// Postcondition: Returns the number of rooms destroyed.
func (g *Registry) ReapIdle(threshold time.Duration) int {
	candidates := g.IdleRoomsOlderThan(threshold)
	if len(candidates) == 0 {
		return 0
	}

	now := time.Now()
	reaped := 0
	for _, r := range candidates {
		if !r.destroyIfIdle(now, threshold) {
			continue
		}
		g.Remove(r.ID())
		reaped++
		g.logger.Info("reaped idle room",
			zap.String("room_id", r.ID()),
			zap.Duration("idle", now.Sub(r.LastActivity())),
		)
	}
	return reaped
}

// Len returns the number of registered rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Stats returns room and player totals for diagnostics.
func (g *Registry) Stats() (rooms, players int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, r := range g.rooms {
		players += r.PlayerCount()
	}
	return len(g.rooms), players
}
