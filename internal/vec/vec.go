// Package vec holds the 2-D coordinate math for the chunk grid.
package vec

// V2 is an integer point or offset.
type V2 struct {
	X int
	Y int
}

// Add returns v + o.
func (v V2) Add(o V2) V2 {
	return V2{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v V2) Sub(o V2) V2 {
	return V2{v.X - o.X, v.Y - o.Y}
}

// V2F is a float vector, used for velocities.
type V2F struct {
	X float64
	Y float64
}

// Add returns v + o.
func (v V2F) Add(o V2F) V2F {
	return V2F{v.X + o.X, v.Y + o.Y}
}

// Scale returns v with both components multiplied by s.
func (v V2F) Scale(s float64) V2F {
	return V2F{v.X * s, v.Y * s}
}

// IsZero reports whether both components are exactly zero.
func (v V2F) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// FloorDiv divides rounding toward negative infinity, so -1/64 is -1,
// not 0. Chunk migration needs this for westward and northward crossings.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// FloorMod wraps a into [0,b) for positive b.
func FloorMod(a, b int) int {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// Clamp limits v to [lo,hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
