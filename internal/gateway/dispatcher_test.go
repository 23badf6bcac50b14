package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/playfield/internal/game/room"
)

var testSpawn = room.SpawnArea{MinX: 50, MaxX: 750, MinY: 50, MaxY: 550}

func testSettings() room.Settings {
	return room.Settings{MaxPlayers: 10, GameMode: "standard"}
}

// newBareConn builds a connection with no websocket behind it. Pushed frames
// pile up in the send queue, where tests read them directly.
func newBareConn(t *testing.T, id string) *Conn {
	t.Helper()
	return newConn(id, nil, 32, time.Second, time.Minute, zaptest.NewLogger(t))
}

// nextEvent pops one pushed frame and decodes its envelope.
func nextEvent(t *testing.T, c *Conn) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatalf("no event pushed to %s", c.ID())
		return Envelope{}
	}
}

// decodePayload unmarshals an envelope payload into out.
func decodePayload(t *testing.T, env Envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// noEvent asserts that nothing is pending on the connection's send queue.
func noEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event pushed to %s: %s", c.ID(), data)
	default:
	}
}

func TestDispatcher_SendDirect(t *testing.T) {
	g := room.NewRegistry(testSpawn, zaptest.NewLogger(t))
	table := NewTable()
	d := NewDispatcher(g, table, zaptest.NewLogger(t))

	c := newBareConn(t, "c1")
	d.Send(c, EventError, ErrorPayload{Message: "nope"})

	env := nextEvent(t, c)
	assert.Equal(t, EventError, env.Event)

	var p ErrorPayload
	decodePayload(t, env, &p)
	assert.Equal(t, "nope", p.Message)
}

func TestDispatcher_BroadcastAll(t *testing.T) {
	g := room.NewRegistry(testSpawn, zaptest.NewLogger(t))
	table := NewTable()
	d := NewDispatcher(g, table, zaptest.NewLogger(t))

	r, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	var conns []*Conn
	for _, id := range []string{"c1", "c2", "c3"} {
		c := newBareConn(t, id)
		table.Add(c)
		conns = append(conns, c)
		_, err := r.Join(id, "nick-"+id)
		require.NoError(t, err)
	}

	d.Broadcast("r1", EventPlayerCountUpdate, 3, All, "")

	for _, c := range conns {
		env := nextEvent(t, c)
		assert.Equal(t, EventPlayerCountUpdate, env.Event)
		var count int
		decodePayload(t, env, &count)
		assert.Equal(t, 3, count)
	}
}

func TestDispatcher_BroadcastAllExceptSender(t *testing.T) {
	g := room.NewRegistry(testSpawn, zaptest.NewLogger(t))
	table := NewTable()
	d := NewDispatcher(g, table, zaptest.NewLogger(t))

	r, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	sender := newBareConn(t, "sender")
	other := newBareConn(t, "other")
	table.Add(sender)
	table.Add(other)
	_, err = r.Join("sender", "alice")
	require.NoError(t, err)
	_, err = r.Join("other", "bob")
	require.NoError(t, err)

	d.Broadcast("r1", EventPlayerMoved, PlayerMovedPayload{ID: "sender", X: 1, Y: 2}, AllExceptSender, "sender")

	env := nextEvent(t, other)
	assert.Equal(t, EventPlayerMoved, env.Event)
	noEvent(t, sender)
}

func TestDispatcher_NoCrossRoomLeakage(t *testing.T) {
	g := room.NewRegistry(testSpawn, zaptest.NewLogger(t))
	table := NewTable()
	d := NewDispatcher(g, table, zaptest.NewLogger(t))

	rA, err := g.Create("room-a", testSettings())
	require.NoError(t, err)
	rB, err := g.Create("room-b", testSettings())
	require.NoError(t, err)

	inA := newBareConn(t, "in-a")
	inB := newBareConn(t, "in-b")
	table.Add(inA)
	table.Add(inB)
	_, err = rA.Join("in-a", "alice")
	require.NoError(t, err)
	_, err = rB.Join("in-b", "bob")
	require.NoError(t, err)

	d.Broadcast("room-a", EventPlayerChat, ChatPayload{ID: "in-a", Message: "hi"}, All, "")

	env := nextEvent(t, inA)
	assert.Equal(t, EventPlayerChat, env.Event)
	noEvent(t, inB)
}

func TestDispatcher_BroadcastUnknownRoomIsNoOp(t *testing.T) {
	g := room.NewRegistry(testSpawn, zaptest.NewLogger(t))
	table := NewTable()
	d := NewDispatcher(g, table, zaptest.NewLogger(t))

	d.Broadcast("missing-room", EventPlayerCountUpdate, 1, All, "")
}

func TestDispatcher_FailedPushSkipsNotAborts(t *testing.T) {
	g := room.NewRegistry(testSpawn, zaptest.NewLogger(t))
	table := NewTable()
	d := NewDispatcher(g, table, zaptest.NewLogger(t))

	r, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	dead := newConn("dead", nil, 1, time.Second, time.Minute, zaptest.NewLogger(t))
	healthy := newBareConn(t, "healthy")
	table.Add(dead)
	table.Add(healthy)
	_, err = r.Join("dead", "alice")
	require.NoError(t, err)
	_, err = r.Join("healthy", "bob")
	require.NoError(t, err)

	// Fill the dead peer's single-slot buffer so further pushes fail.
	require.NoError(t, dead.Push([]byte(`{"event":"noise"}`)))

	d.Broadcast("r1", EventPlayerCountUpdate, 2, All, "")

	env := nextEvent(t, healthy)
	assert.Equal(t, EventPlayerCountUpdate, env.Event)
}

func TestDispatcher_ClosedConnPushFails(t *testing.T) {
	c := newBareConn(t, "c1")
	c.close()
	assert.Error(t, c.Push([]byte("late")))
}

func TestDispatcher_MemberWithoutConnIsSkipped(t *testing.T) {
	g := room.NewRegistry(testSpawn, zaptest.NewLogger(t))
	table := NewTable()
	d := NewDispatcher(g, table, zaptest.NewLogger(t))

	r, err := g.Create("r1", testSettings())
	require.NoError(t, err)

	// "ghost" is a member whose connection is already torn down.
	_, err = r.Join("ghost", "alice")
	require.NoError(t, err)
	present := newBareConn(t, "present")
	table.Add(present)
	_, err = r.Join("present", "bob")
	require.NoError(t, err)

	d.Broadcast("r1", EventPlayerCountUpdate, 2, All, "")
	env := nextEvent(t, present)
	assert.Equal(t, EventPlayerCountUpdate, env.Event)
}
