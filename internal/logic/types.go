// Package logic contains the pure jam-detection core of the conveyor monitor.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Mode is the operating mode chosen in the selector.
type Mode int

const (
	ModeManual Mode = iota
	ModeAutomatic
)

func (m Mode) String() string {
	if m == ModeAutomatic {
		return "AUTOMATIC"
	}
	return "MANUAL"
}

// Digit is the symbol shown on the 7-segment display: 0-9 or DigitError.
type Digit int

// DigitError is the "E" glyph.
const DigitError Digit = -1

func (d Digit) String() string {
	if d == DigitError {
		return "E"
	}
	return string(rune('0' + int(d)))
}

// Color is the symbolic status LED command.
type Color string

const (
	ColorNormal    Color = "normal"    // green
	ColorSelecting Color = "selecting" // blue
	ColorYellow    Color = "yellow"    // calibrating
	ColorError     Color = "error"     // blinking red
)

// Status is the telemetry state name.
type Status string

const (
	StatusRunning    Status = "Funcionando"
	StatusJam        Status = "Atasco"
	StatusRegulating Status = "Regulando"
	StatusSelecting  Status = "Seleccionando"
)

// JamState is the fault latch.
type JamState int

const (
	JamNominal JamState = iota
	JamLatched
)

// LatchReason says which check raised the latch.
type LatchReason string

const (
	ReasonNone     LatchReason = ""
	ReasonInterval LatchReason = "INTERVAL_OUT_OF_RANGE"
	ReasonNoBottle LatchReason = "NO_BOTTLE_TIMEOUT"
	ReasonStall    LatchReason = "SENSOR_STALL"
)

// Velocities are the manual speed setpoints in m/s. The display shows index+1.
var Velocities = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// DefaultVelocityIndex is the setpoint offered at boot (0.5 m/s).
const DefaultVelocityIndex = 4

// BottleProfile is a fixed automatic-mode profile.
type BottleProfile struct {
	Type     int
	Speed    float64       // nominal conveyor speed, m/s
	Interval time.Duration // expected time between bottles
}

// BottleProfiles is indexed by bottle index; Type is what the display shows.
var BottleProfiles = []BottleProfile{
	{Type: 1, Speed: 0.2, Interval: 1 * time.Second},
	{Type: 2, Speed: 0.4, Interval: 2 * time.Second},
	{Type: 3, Speed: 0.6, Interval: 3 * time.Second},
	{Type: 4, Speed: 0.8, Interval: 4 * time.Second},
	{Type: 5, Speed: 1.0, Interval: 5 * time.Second},
}

// Params are the jam detection thresholds.
type Params struct {
	ManualTolerance time.Duration
	AutoTolerance   time.Duration
	// TimeoutMargin is added to the expected interval before a missing
	// bottle latches.
	TimeoutMargin time.Duration
	// StallTimeout is the longest the sensor level may stay unchanged.
	StallTimeout time.Duration
	// AckPresses is the number of presses that clears a latch.
	AckPresses int
}

// DefaultParams returns the station's factory thresholds.
func DefaultParams() Params {
	return Params{
		ManualTolerance: 1 * time.Second,
		AutoTolerance:   1 * time.Second,
		TimeoutMargin:   5 * time.Second,
		StallTimeout:    30 * time.Second,
		AckPresses:      3,
	}
}

// Input is one poll of the station's inputs.
type Input struct {
	Time time.Time
	// Beam is true while a bottle breaks the IR beam (polarity already normalized).
	Beam bool
	// Turn is the encoder movement since the last poll: >0 increments, <0 decrements.
	Turn int
	// Pressed is true when a debounced button press happened since the last poll.
	Pressed bool
}

// EventType identifies a controller event.
type EventType string

const (
	EventModeSelected     EventType = "MODE_SELECTED"
	EventVelocitySelected EventType = "VELOCITY_SELECTED"
	EventBottleSelected   EventType = "BOTTLE_SELECTED"
	EventPaused           EventType = "PAUSED"
	EventFirstBottle      EventType = "FIRST_BOTTLE"
	EventReferenceLearned EventType = "REFERENCE_LEARNED"
	EventBottle           EventType = "BOTTLE"
	EventJam              EventType = "JAM"
	EventAckPress         EventType = "ACK_PRESS"
	EventJamCleared       EventType = "JAM_CLEARED"
)

// Event is something worth logging or publishing that happened during a tick.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Mode      Mode
	Reason    LatchReason
	// Elapsed is the measured interval (bottle/jam events) or the silence
	// that triggered a timeout.
	Elapsed time.Duration
	// Expected is the interval the measurement was compared against.
	Expected time.Duration
	// Presses counts acknowledgement presses (ACK_PRESS only).
	Presses int
	// Value is the selected velocity (m/s) or bottle type, for selection events.
	Value float64
}

// Counts tracks totals since startup.
type Counts struct {
	Bottles int
	Jams    int
	Clears  int
}

// TelemetryData is one periodic report.
type TelemetryData struct {
	Timestamp time.Time
	Status    Status
	Speed     float64
	Manual    bool
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
