package core

import (
	"testing"

	"github.com/google/uuid"

	"github.com/mgrant26/clubcthulu/internal/vec"
)

func TestNewClientIssuesDistinctSessions(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		c := NewClient(uuid.New(), "n", 0)
		tok := c.Session()
		// 16 random bytes, base64url without padding.
		if len(tok) != 22 {
			t.Fatalf("token %q has length %d, want 22", tok, len(tok))
		}
		if seen[tok] {
			t.Fatalf("duplicate session token %q", tok)
		}
		seen[tok] = true
	}
}

func TestClientConstructionDefaults(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	c := NewClient(id, "Mira", 10)

	if c.ID() != id || c.Name() != "Mira" || c.Privilege() != 10 {
		t.Fatalf("identity fields wrong: %v %v %v", c.ID(), c.Name(), c.Privilege())
	}
	if c.Pos() != (vec.V2{}) || c.Chunk() != (vec.V2{}) {
		t.Fatalf("position not zeroed: %v %v", c.Pos(), c.Chunk())
	}
	if !c.Velocity().IsZero() {
		t.Fatalf("velocity = %v, want zero", c.Velocity())
	}
	if c.LastResponse().IsZero() {
		t.Fatal("last response not initialized")
	}
}

func TestVelocityAndTouchRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewClient(uuid.New(), "n", 0)
	before := c.LastResponse()

	c.SetVelocity(vec.V2F{X: 10, Y: -2})
	if v := c.Velocity(); v.X != 10 || v.Y != -2 {
		t.Fatalf("velocity = %v", v)
	}

	c.Touch()
	if c.LastResponse().Before(before) {
		t.Fatal("touch moved the timestamp backwards")
	}
}
