// Package core holds the connected-client model: the Client type and the
// Registry that indexes live sessions.
package core

import (
	"crypto/rand"
	"encoding/base64"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgrant26/clubcthulu/internal/vec"
)

// Client is one logged-in session. Identity fields are fixed at
// construction; position, velocity, address and the liveness timestamp
// change under the client's own mutex.
type Client struct {
	id        uuid.UUID
	name      string
	session   string
	privilege int

	mu           sync.Mutex
	addr         *net.UDPAddr
	pos          vec.V2
	chunk        vec.V2
	vel          vec.V2F
	lastResponse time.Time
}

// NewClient builds a client with a fresh session token. The id comes from
// the users table; privilege cannot change afterwards.
func NewClient(id uuid.UUID, name string, privilege int) *Client {
	return &Client{
		id:           id,
		name:         name,
		session:      newSessionToken(),
		privilege:    privilege,
		lastResponse: time.Now(),
	}
}

func newSessionToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// ID returns the client's user id.
func (c *Client) ID() uuid.UUID { return c.id }

// Name returns the display name as registered.
func (c *Client) Name() string { return c.name }

// Session returns the session token issued at login.
func (c *Client) Session() string { return c.session }

// Privilege returns the privilege level fixed at construction.
func (c *Client) Privilege() int { return c.privilege }

// Addr returns the address the client last logged in from.
func (c *Client) Addr() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// SetAddr records the client's current remote address.
func (c *Client) SetAddr(addr *net.UDPAddr) {
	c.mu.Lock()
	c.addr = addr
	c.mu.Unlock()
}

// Pos returns the intra-chunk position.
func (c *Client) Pos() vec.V2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// SetPos overwrites the intra-chunk position without touching the chunk.
func (c *Client) SetPos(p vec.V2) {
	c.mu.Lock()
	c.pos = p
	c.mu.Unlock()
}

// Chunk returns the chunk coordinate.
func (c *Client) Chunk() vec.V2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunk
}

// SetChunk records the chunk coordinate. The world keeps this in step with
// its chunk sets.
func (c *Client) SetChunk(ch vec.V2) {
	c.mu.Lock()
	c.chunk = ch
	c.mu.Unlock()
}

// Velocity returns the current velocity.
func (c *Client) Velocity() vec.V2F {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vel
}

// SetVelocity replaces the velocity; the world integrates it each tick.
func (c *Client) SetVelocity(v vec.V2F) {
	c.mu.Lock()
	c.vel = v
	c.mu.Unlock()
}

// LastResponse returns when the client was last heard from.
func (c *Client) LastResponse() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResponse
}

// Touch marks the client as heard from now.
func (c *Client) Touch() {
	c.mu.Lock()
	c.lastResponse = time.Now()
	c.mu.Unlock()
}
