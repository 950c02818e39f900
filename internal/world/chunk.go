package world

import (
	"github.com/mgrant26/clubcthulu/internal/core"
	"github.com/mgrant26/clubcthulu/internal/vec"
)

// Chunk is one cell of the grid. Membership changes only under the world
// mutex.
type Chunk struct {
	world   *World
	coord   vec.V2
	width   int
	height  int
	clients map[*core.Client]struct{}
}

func newChunk(w *World, x, y, width, height int) *Chunk {
	return &Chunk{
		world:   w,
		coord:   vec.V2{X: x, Y: y},
		width:   width,
		height:  height,
		clients: make(map[*core.Client]struct{}),
	}
}

// Coord returns the chunk's grid coordinate.
func (ch *Chunk) Coord() vec.V2 { return ch.coord }

func (ch *Chunk) membersLocked() []*core.Client {
	out := make([]*core.Client, 0, len(ch.clients))
	for c := range ch.clients {
		out = append(out, c)
	}
	return out
}

// integrateLocked advances one client by its velocity over the current
// tick delta. A result outside the chunk extent asks the world for a
// migration; a refused migration clamps to the chunk edge. Clients that
// moved without crossing still register in the moved set so the tick's
// broadcast includes them.
func (ch *Chunk) integrateLocked(c *core.Client) {
	vel := c.Velocity()
	if vel.IsZero() {
		return
	}
	pos := c.Pos()
	step := vel.Scale(ch.world.delta)
	hold := vec.V2{
		X: int(float64(pos.X) + step.X),
		Y: int(float64(pos.Y) + step.Y),
	}
	next := vec.V2{
		X: vec.FloorMod(hold.X, ch.width),
		Y: vec.FloorMod(hold.Y, ch.height),
	}
	if next != hold {
		dest := ch.coord.Add(vec.V2{
			X: vec.FloorDiv(hold.X, ch.width),
			Y: vec.FloorDiv(hold.Y, ch.height),
		})
		if ch.world.moveClientLocked(c, dest.X, dest.Y) {
			c.SetPos(next)
		} else {
			c.SetPos(vec.V2{
				X: vec.Clamp(hold.X, 0, ch.width),
				Y: vec.Clamp(hold.Y, 0, ch.height),
			})
		}
		return
	}
	c.SetPos(hold)
	ch.world.moveClientLocked(c, ch.coord.X, ch.coord.Y)
}
