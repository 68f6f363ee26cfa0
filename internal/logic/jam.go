package logic

import "time"

// ManualCalibration is the learned rhythm of manual mode. Zero values mean
// "not yet observed".
type ManualCalibration struct {
	FirstDetection time.Time
	// Reference is the interval between the first two bottles. Once set it is
	// only cleared by a full reset.
	Reference  time.Duration
	LastBottle time.Time
}

// Regulated reports whether the reference interval has been learned.
func (c ManualCalibration) Regulated() bool {
	return !c.FirstDetection.IsZero() && c.Reference > 0
}

// AutomaticCalibration is the monitoring state of automatic mode.
type AutomaticCalibration struct {
	Armed bool
	// PrevDetection is the last real bottle; the interval check starts at
	// the second bottle after arming.
	PrevDetection time.Time
	// LastBottle is the no-bottle timeout reference. Arming sets it, so the
	// timeout counts from the moment the profile is confirmed.
	LastBottle time.Time
	Profile    BottleProfile
}

// JamDetector watches bottle timing for the active selection and latches on
// interval violations, missing bottles, or a stalled sensor.
type JamDetector struct {
	params Params
	sel    Selection
	state  JamState
	reason LatchReason
	manual ManualCalibration
	auto   AutomaticCalibration
}

// NewJamDetector creates a detector with the given thresholds. It does not
// monitor anything until Start is called.
func NewJamDetector(params Params) *JamDetector {
	return &JamDetector{params: params}
}

// Start (re)initializes the calibration for a confirmed selection. Manual
// mode starts uncalibrated; automatic mode is armed immediately.
func (j *JamDetector) Start(sel Selection, now time.Time) {
	j.sel = sel
	j.manual = ManualCalibration{}
	j.auto = AutomaticCalibration{}
	if sel.Mode == ModeAutomatic {
		j.auto = AutomaticCalibration{
			Armed:      true,
			LastBottle: now,
			Profile:    sel.Profile(),
		}
	}
}

// Clear releases the latch and performs a full calibration reset for the
// active selection.
func (j *JamDetector) Clear(now time.Time) {
	j.state = JamNominal
	j.reason = ReasonNone
	j.Start(j.sel, now)
}

// State returns the latch state.
func (j *JamDetector) State() JamState {
	return j.state
}

// Reason returns why the detector latched, or ReasonNone.
func (j *JamDetector) Reason() LatchReason {
	return j.reason
}

// Manual returns the manual calibration.
func (j *JamDetector) Manual() ManualCalibration {
	return j.manual
}

// Automatic returns the automatic calibration.
func (j *JamDetector) Automatic() AutomaticCalibration {
	return j.auto
}

// Regulated reports whether timing is being enforced: always once armed in
// automatic mode, after the reference is learned in manual mode.
func (j *JamDetector) Regulated() bool {
	if j.sel.Mode == ModeAutomatic {
		return j.auto.Armed
	}
	return j.manual.Regulated()
}

// Expected returns the interval bottles are currently held to.
func (j *JamDetector) Expected() (time.Duration, bool) {
	if j.sel.Mode == ModeAutomatic {
		return j.auto.Profile.Interval, j.auto.Armed
	}
	return j.manual.Reference, j.manual.Regulated()
}

// Evaluate runs one tick of jam detection. rising is the edge detector's
// output for this tick and lastChange the time of its last level change.
// Nothing is evaluated while latched.
func (j *JamDetector) Evaluate(rising bool, lastChange time.Time, now time.Time) []Event {
	if j.state == JamLatched {
		return nil
	}

	var events []Event
	if j.sel.Mode == ModeManual {
		events = j.evaluateManual(rising, now)
	} else {
		events = j.evaluateAutomatic(rising, now)
	}

	if j.state == JamNominal {
		if ev := j.checkStall(lastChange, now); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

func (j *JamDetector) evaluateManual(rising bool, now time.Time) []Event {
	c := &j.manual
	switch {
	case c.FirstDetection.IsZero():
		if rising {
			c.FirstDetection = now
			return []Event{j.event(EventFirstBottle, now)}
		}
		return nil

	case c.Reference == 0:
		if rising {
			c.Reference = now.Sub(c.FirstDetection)
			c.LastBottle = now
			ev := j.event(EventReferenceLearned, now)
			ev.Elapsed = c.Reference
			ev.Expected = c.Reference
			return []Event{ev}
		}
		return nil
	}

	var events []Event
	expected := c.Reference
	if rising {
		elapsed := now.Sub(c.LastBottle)
		ev := j.event(EventBottle, now)
		ev.Elapsed = elapsed
		ev.Expected = expected
		events = append(events, ev)
		if outside(elapsed, expected, j.params.ManualTolerance) {
			events = append(events, j.latch(ReasonInterval, now, elapsed, expected))
		}
		c.LastBottle = now
	}

	if j.state == JamNominal {
		if silence := now.Sub(c.LastBottle); silence > expected+j.params.TimeoutMargin {
			events = append(events, j.latch(ReasonNoBottle, now, silence, expected))
		}
	}
	return events
}

func (j *JamDetector) evaluateAutomatic(rising bool, now time.Time) []Event {
	c := &j.auto
	if !c.Armed {
		return nil
	}

	var events []Event
	expected := c.Profile.Interval
	if rising {
		ev := j.event(EventBottle, now)
		ev.Expected = expected
		if !c.PrevDetection.IsZero() {
			elapsed := now.Sub(c.PrevDetection)
			ev.Elapsed = elapsed
			events = append(events, ev)
			if outside(elapsed, expected, j.params.AutoTolerance) {
				events = append(events, j.latch(ReasonInterval, now, elapsed, expected))
			}
		} else {
			events = append(events, ev)
		}
		c.PrevDetection = now
		c.LastBottle = now
	}

	if j.state == JamNominal {
		if silence := now.Sub(c.LastBottle); silence > expected+j.params.TimeoutMargin {
			events = append(events, j.latch(ReasonNoBottle, now, silence, expected))
		}
	}
	return events
}

// checkStall latches when the sensor level has not changed for longer than
// the stall timeout. It only applies once a bottle reference exists and the
// conveyor is supposed to be moving.
func (j *JamDetector) checkStall(lastChange time.Time, now time.Time) *Event {
	if lastChange.IsZero() || j.params.StallTimeout <= 0 {
		return nil
	}
	var lastBottle time.Time
	if j.sel.Mode == ModeManual {
		lastBottle = j.manual.LastBottle
	} else if j.auto.Armed {
		lastBottle = j.auto.LastBottle
	}
	if lastBottle.IsZero() || j.sel.Speed() <= 0 {
		return nil
	}

	silence := now.Sub(lastChange)
	if silence <= j.params.StallTimeout {
		return nil
	}
	ev := j.latch(ReasonStall, now, silence, j.params.StallTimeout)
	return &ev
}

func (j *JamDetector) latch(reason LatchReason, now time.Time, elapsed, expected time.Duration) Event {
	j.state = JamLatched
	j.reason = reason
	ev := j.event(EventJam, now)
	ev.Reason = reason
	ev.Elapsed = elapsed
	ev.Expected = expected
	return ev
}

func (j *JamDetector) event(t EventType, now time.Time) Event {
	return Event{Timestamp: now, Type: t, Mode: j.sel.Mode}
}

// outside reports whether elapsed falls outside [expected-tol, expected+tol].
// The bounds themselves are in range.
func outside(elapsed, expected, tol time.Duration) bool {
	return elapsed < expected-tol || elapsed > expected+tol
}
