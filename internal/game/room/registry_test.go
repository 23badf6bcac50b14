package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(testSpawn, zaptest.NewLogger(t))
}

func testSettings() Settings {
	return Settings{MaxPlayers: 10, GameMode: "standard"}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	g := newTestRegistry(t)

	r, err := g.Create("r1", testSettings())
	require.NoError(t, err)
	assert.Equal(t, "r1", r.ID())

	got, err := g.Get("r1")
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.Equal(t, 1, g.Len())
}

func TestRegistry_CreateDuplicate(t *testing.T) {
	g := newTestRegistry(t)
	_, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	_, err = g.Create("r1", testSettings())
	assert.ErrorIs(t, err, ErrRoomExists)
	assert.Equal(t, 1, g.Len())
}

func TestRegistry_GetMissing(t *testing.T) {
	g := newTestRegistry(t)
	_, err := g.Get("missing-room")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	g := newTestRegistry(t)
	_, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	g.Remove("r1")
	g.Remove("r1")

	_, err = g.Get("r1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_IdReusableAfterRemove(t *testing.T) {
	g := newTestRegistry(t)
	_, err := g.Create("r1", testSettings())
	require.NoError(t, err)
	g.Remove("r1")

	_, err = g.Create("r1", testSettings())
	assert.NoError(t, err)
}

func TestRegistry_IdleRoomsOlderThan(t *testing.T) {
	g := newTestRegistry(t)

	idle, err := g.Create("idle", testSettings())
	require.NoError(t, err)

	occupied, err := g.Create("occupied", testSettings())
	require.NoError(t, err)
	_, err = occupied.Join("c1", "alice")
	require.NoError(t, err)

	_, err = g.Create("fresh", testSettings())
	require.NoError(t, err)

	// Backdate the idle room past the threshold.
	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-2 * time.Hour)
	idle.mu.Unlock()

	got := g.IdleRoomsOlderThan(time.Hour)
	require.Len(t, got, 1)
	assert.Equal(t, "idle", got[0].ID())
}

func TestRegistry_ReapIdle_Timing(t *testing.T) {
	g := newTestRegistry(t)
	r, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	// Room became empty at T; sweep before T+D must not destroy it.
	r.mu.Lock()
	r.lastActivity = time.Now().Add(-time.Hour + 5*time.Second)
	r.mu.Unlock()

	assert.Equal(t, 0, g.ReapIdle(time.Hour))
	_, err = g.Get("r1")
	assert.NoError(t, err)

	// Sweep after T+D destroys it and the id reports not found.
	r.mu.Lock()
	r.lastActivity = time.Now().Add(-time.Hour - 5*time.Second)
	r.mu.Unlock()

	assert.Equal(t, 1, g.ReapIdle(time.Hour))
	_, err = g.Get("r1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.True(t, r.Destroyed())
}

func TestRegistry_ReapSkipsRepopulatedRoom(t *testing.T) {
	g := newTestRegistry(t)
	r, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	r.mu.Lock()
	r.lastActivity = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()

	// A join lands between the idle listing and the destroy re-check.
	candidates := g.IdleRoomsOlderThan(time.Hour)
	require.Len(t, candidates, 1)

	_, err = r.Join("c1", "alice")
	require.NoError(t, err)

	assert.False(t, r.destroyIfIdle(time.Now(), time.Hour))

	got, err := g.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlayerCount())
}

func TestRegistry_ReapVsJoinRace(t *testing.T) {
	g := newTestRegistry(t)

	// Many goroutines hammer the same ids with joins while the reaper
	// sweeps with a zero-ish threshold. Destruction and repopulation must
	// never both win: every successful join must land in a registered room.
	const rooms = 8
	for i := 0; i < rooms; i++ {
		r, err := g.Create(fmt.Sprintf("r%d", i), testSettings())
		require.NoError(t, err)
		r.mu.Lock()
		r.lastActivity = time.Now().Add(-time.Hour)
		r.mu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("r%d", i%rooms)
				r, err := g.Get(id)
				if err != nil {
					continue
				}
				connID := fmt.Sprintf("w%d-%d", w, i)
				if _, err := r.Join(connID, "nick"); err == nil {
					// The join won; the room must still be registered.
					if got, err := g.Get(id); assert.NoError(t, err) {
						assert.Same(t, r, got)
					}
					r.Leave(connID)
				}
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			g.ReapIdle(time.Millisecond)
		}
	}()

	wg.Wait()
}

func TestRegistry_Stats(t *testing.T) {
	g := newTestRegistry(t)
	r1, _ := g.Create("r1", testSettings())
	r2, _ := g.Create("r2", testSettings())
	_, _ = r1.Join("c1", "alice")
	_, _ = r1.Join("c2", "bob")
	_, _ = r2.Join("c3", "carol")

	rooms, players := g.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 3, players)
}
