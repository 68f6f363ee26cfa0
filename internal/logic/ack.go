package logic

// Acknowledger counts operator presses while a jam is latched.
type Acknowledger struct {
	threshold int
	presses   int
}

// NewAcknowledger returns a handler that clears after threshold presses.
func NewAcknowledger(threshold int) *Acknowledger {
	if threshold < 1 {
		threshold = 1
	}
	return &Acknowledger{threshold: threshold}
}

// Press records one press. cleared is true on the press that reaches the
// threshold; the count starts over afterwards.
func (a *Acknowledger) Press() (count int, cleared bool) {
	a.presses++
	count = a.presses
	if a.presses >= a.threshold {
		a.presses = 0
		return count, true
	}
	return count, false
}

// Presses returns the presses counted so far.
func (a *Acknowledger) Presses() int {
	return a.presses
}

// Threshold returns the number of presses needed to clear.
func (a *Acknowledger) Threshold() int {
	return a.threshold
}

// Reset forgets counted presses.
func (a *Acknowledger) Reset() {
	a.presses = 0
}
