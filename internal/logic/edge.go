package logic

import "time"

// EdgeDetector turns a polled sensor level into rising-edge events and
// remembers when the level last changed.
type EdgeDetector struct {
	initialized bool
	lastLevel   bool
	lastChange  time.Time
}

// Poll feeds one sample. The first call only records the level and never
// reports an edge.
func (e *EdgeDetector) Poll(level bool, now time.Time) (rising bool) {
	if !e.initialized {
		e.initialized = true
		e.lastLevel = level
		e.lastChange = now
		return false
	}

	rising = !e.lastLevel && level
	if level != e.lastLevel {
		e.lastLevel = level
		e.lastChange = now
	}
	return rising
}

// LastChange returns the time of the last level change (or of the first
// sample). ok is false before the first sample.
func (e *EdgeDetector) LastChange() (t time.Time, ok bool) {
	return e.lastChange, e.initialized
}

// Level returns the last polled level.
func (e *EdgeDetector) Level() bool {
	return e.lastLevel
}

// Rebase restarts the silence clock at now without touching the level, so
// time spent in the menu or latched does not count as a stall.
func (e *EdgeDetector) Rebase(now time.Time) {
	if e.initialized {
		e.lastChange = now
	}
}
