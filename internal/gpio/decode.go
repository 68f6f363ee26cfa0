package gpio

import "time"

// PressLockout is how long further presses are ignored after one is accepted.
const PressLockout = 300 * time.Millisecond

// Quadrature decodes a two-phase rotary encoder from polled CLK/DT levels.
type Quadrature struct {
	initialized bool
	lastCLK     bool
}

// Update returns +1 or -1 when CLK changed since the previous call, 0 otherwise.
// DT differing from the new CLK level means the knob turned clockwise.
func (q *Quadrature) Update(clk, dt bool) int {
	if !q.initialized {
		q.initialized = true
		q.lastCLK = clk
		return 0
	}
	if clk == q.lastCLK {
		return 0
	}
	q.lastCLK = clk
	if dt != clk {
		return 1
	}
	return -1
}

// Button turns a polled "is held" level into single press events.
type Button struct {
	Lockout time.Duration

	held      bool
	lastPress time.Time
}

// Update reports true once per press: on the released->held transition,
// unless the previous press was less than Lockout ago.
func (b *Button) Update(held bool, now time.Time) bool {
	wasHeld := b.held
	b.held = held
	if !held || wasHeld {
		return false
	}
	if !b.lastPress.IsZero() && now.Sub(b.lastPress) < b.Lockout {
		return false
	}
	b.lastPress = now
	return true
}
