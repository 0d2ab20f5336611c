package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRegistry(t *testing.T) {
	t.Run("register and lookup", func(t *testing.T) {
		p := NewPresenceRegistry()
		alice := newTestClient(t, "alice")

		_, ok := p.Lookup("alice")
		assert.False(t, ok, "expected no entry before register")

		p.Register("alice", alice)
		conn, ok := p.Lookup("alice")
		assert.True(t, ok)
		assert.Equal(t, alice, conn)
	})
	t.Run("last registration wins", func(t *testing.T) {
		p := NewPresenceRegistry()
		first := newTestClient(t, "alice")
		second := newTestClient(t, "alice")

		p.Register("alice", first)
		p.Register("alice", second)

		conn, ok := p.Lookup("alice")
		assert.True(t, ok)
		assert.Equal(t, second, conn, "expected the later connection to be reachable")

		p.Unregister(first)
		conn, ok = p.Lookup("alice")
		assert.True(t, ok, "expected unregistering an evicted connection to keep the newer entry")
		assert.Equal(t, second, conn)
	})
	t.Run("unregister removes every entry for the connection", func(t *testing.T) {
		p := NewPresenceRegistry()
		c := newTestClient(t, "alice")

		p.Register("alice", c)
		p.Register("alias", c)
		assert.Equal(t, 2, p.Len())

		p.Unregister(c)
		assert.Equal(t, 0, p.Len())
	})
	t.Run("empty user id is ignored", func(t *testing.T) {
		p := NewPresenceRegistry()
		p.Register("", newTestClient(t, ""))
		assert.Equal(t, 0, p.Len())
	})
}
