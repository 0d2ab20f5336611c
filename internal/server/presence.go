package server

import (
	"sync"
)

// Connection is anything the server can push events to.
type Connection interface {
	queueMessage(msg *ServerMessage) bool
}

// PresenceRegistry maps user ids to their current connection. A later
// registration for the same user replaces the earlier one.
type PresenceRegistry struct {
	mu      sync.RWMutex
	entries map[string]Connection
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		entries: make(map[string]Connection),
	}
}

func (p *PresenceRegistry) Register(userId string, conn Connection) {
	if userId == "" || conn == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[userId] = conn
}

// Unregister removes every entry that points at conn. An entry that has
// since been overwritten by another connection is left alone.
func (p *PresenceRegistry) Unregister(conn Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for userId, c := range p.entries {
		if c == conn {
			delete(p.entries, userId)
		}
	}
}

func (p *PresenceRegistry) Lookup(userId string) (Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conn, ok := p.entries[userId]
	return conn, ok
}

func (p *PresenceRegistry) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
