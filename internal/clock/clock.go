// Package clock provides the delta timer the world and relay loops tick on.
package clock

import "time"

// Timer measures elapsed time between consecutive Delta calls.
type Timer struct {
	last time.Time
	now  func() time.Time
}

// New returns a Timer primed at the current instant.
func New() *Timer {
	return NewAt(time.Now)
}

// NewAt returns a Timer reading from now, letting tests drive time by hand.
func NewAt(now func() time.Time) *Timer {
	return &Timer{last: now(), now: now}
}

// Delta returns the time elapsed since the previous call and re-arms the
// timer. The first call measures from construction.
func (t *Timer) Delta() time.Duration {
	now := t.now()
	d := now.Sub(t.last)
	t.last = now
	return d
}
