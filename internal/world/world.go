// Package world simulates the chunk grid: fixed-rate velocity integration,
// chunk migration, and position broadcasts.
package world

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mgrant26/clubcthulu/internal/clock"
	"github.com/mgrant26/clubcthulu/internal/core"
	"github.com/mgrant26/clubcthulu/internal/metrics"
	"github.com/mgrant26/clubcthulu/internal/protocol"
	"github.com/mgrant26/clubcthulu/internal/vec"
)

// Defaults for a world constructed from an empty config.
const (
	DefaultWidth       = 64
	DefaultHeight      = 64
	DefaultChunkWidth  = 400
	DefaultChunkHeight = 400
	DefaultTPS         = 20
)

// Sender is the relay capability the world needs for its broadcasts.
type Sender interface {
	Send(addr *net.UDPAddr, resp *protocol.Response, retries int) *protocol.Response
}

// World owns the chunk grid and every placed client. One mutex guards the
// chunks, the client→chunk map, the moved set, and the tick delta.
type World struct {
	name        string
	width       int
	height      int
	chunkWidth  int
	chunkHeight int
	tps         int
	spawn       vec.V2
	sender      Sender

	mu      sync.Mutex
	chunks  [][]*Chunk
	clients map[*core.Client]*Chunk
	moved   map[*core.Client]struct{}
	delta   float64
	timer   *clock.Timer

	stop chan struct{}
	done chan struct{}
}

// New allocates the width×height grid and sets spawn to the grid center.
func New(name string, sender Sender, width, height, chunkWidth, chunkHeight, tps int) *World {
	w := &World{
		name:        name,
		width:       width,
		height:      height,
		chunkWidth:  chunkWidth,
		chunkHeight: chunkHeight,
		tps:         tps,
		spawn:       vec.V2{X: width / 2, Y: height / 2},
		sender:      sender,
		clients:     make(map[*core.Client]*Chunk),
		moved:       make(map[*core.Client]struct{}),
		timer:       clock.New(),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	w.delta = 1 - w.timer.Delta().Seconds()
	w.chunks = make([][]*Chunk, height)
	for y := 0; y < height; y++ {
		w.chunks[y] = make([]*Chunk, width)
		for x := 0; x < width; x++ {
			w.chunks[y][x] = newChunk(w, x, y, chunkWidth, chunkHeight)
		}
	}
	return w
}

// Name returns the world's display name.
func (w *World) Name() string { return w.name }

// Width returns the grid width in chunks.
func (w *World) Width() int { return w.width }

// Height returns the grid height in chunks.
func (w *World) Height() int { return w.height }

// ChunkWidth returns the intra-chunk extent on x.
func (w *World) ChunkWidth() int { return w.chunkWidth }

// ChunkHeight returns the intra-chunk extent on y.
func (w *World) ChunkHeight() int { return w.chunkHeight }

// Spawn returns the spawn chunk coordinate.
func (w *World) Spawn() vec.V2 { return w.spawn }

// Start launches the tick loop.
func (w *World) Start() {
	go w.run()
}

// Stop halts the tick loop and waits for it to exit.
func (w *World) Stop() {
	close(w.stop)
	<-w.done
}

func (w *World) run() {
	defer close(w.done)
	slog.Info("world started", "name", w.name,
		"width", w.width, "height", w.height, "tps", w.tps, "spawn", w.spawn)
	ticker := time.NewTicker(time.Second / time.Duration(w.tps))
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

// tick integrates every placed client once, broadcasts the accumulated
// movements, and clears the moved set.
func (w *World) tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delta = 1 - w.timer.Delta().Seconds()

	// Snapshot chunk memberships up front so a client migrating this tick
	// is integrated exactly once, from the chunk it started the tick in.
	type batch struct {
		chunk   *Chunk
		members []*core.Client
	}
	batches := make([]batch, 0, len(w.clients))
	seen := make(map[*Chunk]struct{}, len(w.clients))
	for _, ch := range w.clients {
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		batches = append(batches, batch{chunk: ch, members: ch.membersLocked()})
	}
	for _, b := range batches {
		for _, c := range b.members {
			b.chunk.integrateLocked(c)
		}
	}

	w.sendPositionsLocked()
	clear(w.moved)
	metrics.WorldTicks.Inc()
}

// AddClient places a client on the spawn chunk.
func (w *World) AddClient(c *core.Client) {
	w.mu.Lock()
	defer w.mu.Unlock()
	chunk := w.chunks[w.spawn.Y][w.spawn.X]
	w.clients[c] = chunk
	chunk.clients[c] = struct{}{}
	c.SetChunk(w.spawn)
}

// RemoveClient takes a client off the grid.
func (w *World) RemoveClient(c *core.Client) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if chunk, ok := w.clients[c]; ok {
		delete(chunk.clients, c)
		delete(w.clients, c)
	}
}

// MoveClient migrates a client to the chunk at (x,y). Out-of-grid
// destinations are refused. Moving to the current chunk only marks the
// client as moved so observers still hear about it.
func (w *World) MoveClient(c *core.Client, x, y int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.moveClientLocked(c, x, y)
}

func (w *World) moveClientLocked(c *core.Client, x, y int) bool {
	if x < 0 || x >= w.width || y < 0 || y >= w.height {
		return false
	}
	cur := c.Chunk()
	if cur.X == x && cur.Y == y {
		w.moved[c] = struct{}{}
		return true
	}
	from, ok := w.clients[c]
	if !ok {
		return false
	}
	dest := w.chunks[y][x]
	delete(from.clients, c)
	dest.clients[c] = struct{}{}
	pos := c.Pos()
	c.SetPos(vec.V2{
		X: vec.FloorMod(pos.X, w.chunkWidth),
		Y: vec.FloorMod(pos.Y, w.chunkHeight),
	})
	c.SetChunk(vec.V2{X: x, Y: y})
	w.clients[c] = dest
	w.moved[c] = struct{}{}
	return true
}

// SendPositions broadcasts a position-update for every moved client to
// every placed client. Single attempt; the next tick supersedes a lost
// datagram anyway.
func (w *World) SendPositions() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sendPositionsLocked()
}

func (w *World) sendPositionsLocked() {
	for target := range w.clients {
		addr := target.Addr()
		for m := range w.moved {
			pos, chunk := m.Pos(), m.Chunk()
			w.sender.Send(addr, protocol.PositionUpdate(m.ID().String(), chunk.X, chunk.Y, pos.X, pos.Y), 1)
		}
	}
}

// FullUpdate sends target one client-update per placed client, giving a
// freshly logged-in client the whole board.
func (w *World) FullUpdate(target *core.Client) {
	w.mu.Lock()
	defer w.mu.Unlock()
	addr := target.Addr()
	for c := range w.clients {
		pos, chunk := c.Pos(), c.Chunk()
		w.sender.Send(addr, protocol.ClientUpdate(c.ID().String(), c.Name(), chunk.X, chunk.Y, pos.X, pos.Y), 1)
	}
}

// ClientCount returns the number of placed clients.
func (w *World) ClientCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.clients)
}
