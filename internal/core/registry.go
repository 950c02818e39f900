package core

import (
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgrant26/clubcthulu/internal/metrics"
	"github.com/mgrant26/clubcthulu/internal/protocol"
)

// DefaultDCTime is how long a client may stay silent before the sweeper
// kicks it.
const DefaultDCTime = 5 * time.Minute

const sweepInterval = 50 * time.Millisecond

// Sender is the relay capability the registry needs for broadcasts.
type Sender interface {
	Send(addr *net.UDPAddr, resp *protocol.Response, retries int) *protocol.Response
}

// WorldPlacer is implemented by the world. The registry places clients at
// spawn when they join and displaces them when they leave.
type WorldPlacer interface {
	AddClient(*Client)
	RemoveClient(*Client)
}

// KickFunc is the upcall to the dispatcher, which sends the kick payload
// through the relay before the registry drops the client.
type KickFunc func(addr *net.UDPAddr, message string)

// Registry is the authoritative index of logged-in clients. Three maps,
// one per lookup key, always refer to the same client set.
type Registry struct {
	sender Sender
	dcTime time.Duration
	scan   time.Duration

	mu        sync.Mutex
	byID      map[uuid.UUID]*Client
	byName    map[string]*Client
	bySession map[string]*Client
	world     WorldPlacer
	kick      KickFunc

	stop chan struct{}
	done chan struct{}
}

// NewRegistry returns an empty registry. AttachWorld and OnKick wire the
// remaining collaborators before Start.
func NewRegistry(sender Sender, dcTime time.Duration) *Registry {
	if dcTime <= 0 {
		dcTime = DefaultDCTime
	}
	return &Registry{
		sender:    sender,
		dcTime:    dcTime,
		scan:      sweepInterval,
		byID:      make(map[uuid.UUID]*Client),
		byName:    make(map[string]*Client),
		bySession: make(map[string]*Client),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// AttachWorld points the registry at the world handling placement.
func (r *Registry) AttachWorld(w WorldPlacer) {
	r.mu.Lock()
	r.world = w
	r.mu.Unlock()
}

// OnKick installs the dispatcher upcall invoked before a client is
// removed by a kick.
func (r *Registry) OnKick(fn KickFunc) {
	r.mu.Lock()
	r.kick = fn
	r.mu.Unlock()
}

// Start launches the liveness sweeper.
func (r *Registry) Start() {
	go r.run()
}

// Stop halts the sweeper and kicks every remaining client with a closing
// notice. It returns once the sweeper goroutine has exited.
func (r *Registry) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Registry) run() {
	defer close(r.done)
	slog.Info("client registry started", "dc_time", r.dcTime)
	ticker := time.NewTicker(r.scan)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			r.kickAll("Server is closing.")
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

// sweepOnce kicks every client whose last response is older than dcTime.
func (r *Registry) sweepOnce() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.snapshotLocked() {
		if now.Sub(c.LastResponse()) > r.dcTime {
			r.kickLocked(c, "Session timed out.")
		}
	}
}

func (r *Registry) kickAll(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.snapshotLocked() {
		r.kickLocked(c, message)
	}
}

func (r *Registry) snapshotLocked() []*Client {
	out := make([]*Client, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// Add inserts a client into all three indexes, places it at spawn, and
// announces it to everyone already connected. It reports false when the
// name is already taken (case-insensitive).
func (r *Registry) Add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(c.Name())
	if _, taken := r.byName[key]; taken {
		return false
	}
	r.byName[key] = c
	r.byID[c.ID()] = c
	r.bySession[c.Session()] = c
	if r.world != nil {
		r.world.AddClient(c)
	}
	pos, chunk := c.Pos(), c.Chunk()
	r.broadcastLocked(protocol.ClientJoined(c.Name(), c.ID().String(), pos.X, pos.Y, chunk.X, chunk.Y))
	metrics.SessionsActive.Inc()
	slog.Info("client joined", "name", c.Name(), "id", c.ID())
	return true
}

// GetByName looks a client up by display name, case-insensitive.
func (r *Registry) GetByName(name string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[strings.ToLower(name)]
}

// GetByID looks a client up by user id.
func (r *Registry) GetByID(id uuid.UUID) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// GetBySession looks a client up by session token.
func (r *Registry) GetBySession(session string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bySession[session]
}

// TouchBySession refreshes the liveness timestamp for a session. It
// reports false when the session is unknown.
func (r *Registry) TouchBySession(session string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bySession[session]
	if !ok {
		return false
	}
	c.Touch()
	return true
}

// TouchByName refreshes the liveness timestamp by display name.
func (r *Registry) TouchByName(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return false
	}
	c.Touch()
	return true
}

// TouchByID refreshes the liveness timestamp by user id.
func (r *Registry) TouchByID(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false
	}
	c.Touch()
	return true
}

// RemoveBySession drops a client from all indexes and the world, and
// broadcasts client-left. Removing an unknown session is a no-op that
// still reports true.
func (r *Registry) RemoveBySession(session string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeBySessionLocked(session)
}

func (r *Registry) removeBySessionLocked(session string) bool {
	c, ok := r.bySession[session]
	if !ok {
		return true
	}
	delete(r.bySession, session)
	r.broadcastLocked(protocol.ClientLeft(c.ID().String()))
	delete(r.byID, c.ID())
	delete(r.byName, strings.ToLower(c.Name()))
	if r.world != nil {
		r.world.RemoveClient(c)
	}
	metrics.SessionsActive.Dec()
	slog.Info("client left", "name", c.Name(), "id", c.ID())
	return true
}

// RemoveByName removes a client by display name. Unknown names report
// false.
func (r *Registry) RemoveByName(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return false
	}
	return r.removeBySessionLocked(c.Session())
}

// RemoveByID removes a client by user id. Unknown ids report false.
func (r *Registry) RemoveByID(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false
	}
	return r.removeBySessionLocked(c.Session())
}

// Kick notifies the client through the dispatcher upcall and removes it.
// Kicking an already-removed client does nothing.
func (r *Registry) Kick(c *Client, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kickLocked(c, message)
}

// KickByName kicks by display name, reporting whether the client was
// connected.
func (r *Registry) KickByName(name string, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return false
	}
	r.kickLocked(c, message)
	return true
}

func (r *Registry) kickLocked(c *Client, message string) {
	if _, connected := r.bySession[c.Session()]; !connected {
		return
	}
	slog.Info("kicking client", "name", c.Name(), "reason", message)
	if r.kick != nil {
		r.kick(c.Addr(), message)
	}
	r.removeBySessionLocked(c.Session())
	metrics.SessionsKicked.Inc()
}

// List returns lowercased name → id for every connected client.
func (r *Registry) List() map[string]uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]uuid.UUID, len(r.byName))
	for name, c := range r.byName {
		out[name] = c.ID()
	}
	return out
}

// Count returns the number of connected clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Broadcast sends resp to every connected client through the relay.
func (r *Registry) Broadcast(resp *protocol.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(resp)
}

func (r *Registry) broadcastLocked(resp *protocol.Response) {
	for _, c := range r.byID {
		r.sender.Send(c.Addr(), resp, 1)
	}
}
