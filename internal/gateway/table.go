package gateway

import "sync"

// Table tracks all live connections by id. The gateway registers and
// unregisters connections; the dispatcher resolves broadcast recipients
// through it. All methods are safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewTable creates an empty connection table.
func NewTable() *Table {
	return &Table{conns: make(map[string]*Conn)}
}

// Add registers a connection.
func (t *Table) Add(c *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[c.id] = c
}

// Remove unregisters a connection by id. Removing an absent id is a no-op.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, id)
}

// Get returns the connection registered under id.
func (t *Table) Get(id string) (*Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[id]
	return c, ok
}

// Len returns the number of live connections.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// CloseAll tears down every registered connection and empties the table.
// Used on shutdown.
func (t *Table) CloseAll() {
	t.mu.Lock()
	conns := make([]*Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[string]*Conn)
	t.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
