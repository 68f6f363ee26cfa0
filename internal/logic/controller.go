package logic

import "time"

// Controller owns all station state: the edge detector, the selector menu,
// the jam detector and the acknowledgement counter. It is driven by one
// Tick per poll and is not safe for concurrent use.
type Controller struct {
	params   Params
	edge     EdgeDetector
	selector *Selector
	jam      *JamDetector
	ack      *Acknowledger

	// paused is true when the operator left running mode to reconfigure.
	// At boot the menu is active but nothing has been paused.
	paused     bool
	configured bool

	startTime     time.Time
	counts        Counts
	lastTelemetry time.Time
	lastHeartbeat time.Time
}

// NewController creates a controller at the boot menu.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(params Params, startTime time.Time) *Controller {
	return &Controller{
		params:        params,
		selector:      NewSelector(),
		jam:           NewJamDetector(params),
		ack:           NewAcknowledger(params.AckPresses),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Tick processes one poll: button handling first (menu, acknowledgement or
// pause), then jam evaluation. It returns the events that happened.
func (c *Controller) Tick(in Input) []Event {
	now := in.Time
	rising := c.edge.Poll(in.Beam, now)

	if c.selector.Active() {
		return c.tickMenu(in)
	}

	var events []Event
	if in.Pressed {
		if c.jam.State() == JamLatched {
			count, cleared := c.ack.Press()
			ev := c.event(EventAckPress, now)
			ev.Presses = count
			events = append(events, ev)
			if cleared {
				c.jam.Clear(now)
				c.edge.Rebase(now)
				c.counts.Clears++
				events = append(events, c.event(EventJamCleared, now))
				// A bottle arriving on the clearing tick starts the new calibration.
				events = append(events, c.evaluate(rising, now)...)
			}
			return events
		}

		c.paused = true
		c.selector.Begin()
		return append(events, c.event(EventPaused, now))
	}

	if c.jam.State() == JamLatched {
		return nil
	}
	return c.evaluate(rising, now)
}

// evaluate runs jam detection for one tick and keeps the counters.
func (c *Controller) evaluate(rising bool, now time.Time) []Event {
	lastChange, _ := c.edge.LastChange()
	events := c.jam.Evaluate(rising, lastChange, now)
	for _, ev := range events {
		switch ev.Type {
		case EventFirstBottle, EventReferenceLearned, EventBottle:
			c.counts.Bottles++
		case EventJam:
			c.counts.Jams++
			c.ack.Reset()
		}
	}
	return events
}

func (c *Controller) tickMenu(in Input) []Event {
	c.selector.Turn(in.Turn)
	if !in.Pressed {
		return nil
	}

	t, done := c.selector.Confirm()
	sel := c.selector.Selection()
	ev := c.event(t, in.Time)
	ev.Mode = sel.Mode
	switch t {
	case EventVelocitySelected:
		ev.Value = Velocities[sel.VelocityIndex]
	case EventBottleSelected:
		ev.Value = float64(sel.Profile().Type)
		ev.Expected = sel.Profile().Interval
	}

	if done {
		c.jam.Start(sel, in.Time)
		c.edge.Rebase(in.Time)
		c.paused = false
		c.configured = true
	}
	return []Event{ev}
}

func (c *Controller) event(t EventType, now time.Time) Event {
	return Event{Timestamp: now, Type: t, Mode: c.selector.Selection().Mode}
}

// View returns the inputs of the display and status projections.
func (c *Controller) View() View {
	sel := c.selector.Selection()
	return View{
		Jam:       c.jam.State(),
		Selecting: c.selector.Active(),
		Candidate: c.selector.Candidate(),
		Mode:      sel.Mode,
		Regulated: c.jam.Regulated(),
		Current:   sel.Digit(),
	}
}

// Display returns the digit and LED color to show.
func (c *Controller) Display() (Digit, Color) {
	return Project(c.View())
}

// Status returns the telemetry status name.
func (c *Controller) Status() Status {
	return StatusOf(c.View())
}

// Speed returns the reported conveyor speed in m/s; 0 while latched.
func (c *Controller) Speed() float64 {
	if c.jam.State() == JamLatched {
		return 0
	}
	return c.selector.Selection().Speed()
}

// Selection returns the current menu values.
func (c *Controller) Selection() Selection {
	return c.selector.Selection()
}

// Stage returns the selector stage.
func (c *Controller) Stage() Stage {
	return c.selector.Stage()
}

// Paused reports whether the operator paused a running session.
func (c *Controller) Paused() bool {
	return c.paused
}

// Configured reports whether a selection has ever been confirmed.
func (c *Controller) Configured() bool {
	return c.configured
}

// JamState returns the latch state.
func (c *Controller) JamState() JamState {
	return c.jam.State()
}

// LatchReason returns why the controller latched.
func (c *Controller) LatchReason() LatchReason {
	return c.jam.Reason()
}

// AckPresses returns presses counted toward clearing the latch.
func (c *Controller) AckPresses() int {
	return c.ack.Presses()
}

// Jam exposes the jam detector for inspection.
func (c *Controller) Jam() *JamDetector {
	return c.jam
}

// Edge exposes the edge detector for inspection.
func (c *Controller) Edge() *EdgeDetector {
	return &c.edge
}

// Counts returns totals since startup.
func (c *Controller) Counts() Counts {
	return c.counts
}

// CheckTelemetry returns a report if the interval has elapsed since the last
// one. The first call always reports. Returns nil if interval is <= 0.
func (c *Controller) CheckTelemetry(now time.Time, interval time.Duration) *TelemetryData {
	if interval <= 0 {
		return nil
	}
	if !c.lastTelemetry.IsZero() && now.Sub(c.lastTelemetry) < interval {
		return nil
	}

	c.lastTelemetry = now
	return &TelemetryData{
		Timestamp: now,
		Status:    c.Status(),
		Speed:     c.Speed(),
		Manual:    c.selector.Selection().Mode == ModeManual,
	}
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}
