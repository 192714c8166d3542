package http

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"trivia-arena/internal/app"
)

// client is one live websocket connection bound to a player.
type client struct {
	userID string
	conn   *websocket.Conn
	send   chan app.Event

	closeOnce sync.Once
	done      chan struct{}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Registry maps player ids to their single live connection. Registering a
// second connection for the same player displaces (and closes) the first,
// so re-association across reconnects is by player id, never by
// connection identity. It implements app.Notifier.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*client)}
}

// Send queues an event for the player's connection, dropping it when the
// player has no live connection or their send buffer is full (a slow
// client must not stall the engine).
func (r *Registry) Send(userID string, ev app.Event) {
	r.mu.RLock()
	c := r.clients[userID]
	r.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.send <- ev:
	default:
		log.Printf("dropping %s event for %s: send buffer full", ev.Type, userID)
	}
}

// register installs the client, returning any displaced connection for
// the same player.
func (r *Registry) register(c *client) *client {
	r.mu.Lock()
	prev := r.clients[c.userID]
	r.clients[c.userID] = c
	r.mu.Unlock()
	return prev
}

// unregister removes the client if it is still the registered one.
// Returns false when a newer connection already took over, in which case
// the disconnect must not be treated as the player leaving.
func (r *Registry) unregister(c *client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[c.userID] != c {
		return false
	}
	delete(r.clients, c.userID)
	return true
}
