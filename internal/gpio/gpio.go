// Package gpio provides the station inputs (IR beam, rotary encoder, push
// button) with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Sample is one poll of the inputs, already in logical form.
type Sample struct {
	// Beam is true while a bottle breaks the IR beam.
	Beam bool
	// Turn is the encoder movement since the previous read: +1, -1 or 0.
	Turn int
	// Pressed is true when a debounced button press happened since the
	// previous read.
	Pressed bool
}

// Reader reads the station inputs.
type Reader interface {
	// Read returns the current sample.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Pins describes where the inputs are wired.
type Pins struct {
	Chip string
	IR   int
	CLK  int
	DT   int
	SW   int
	// IRActiveLow is set for sensors that pull the line low on detection.
	IRActiveLow bool
}

// Default pin assignment (BCM numbering).
const (
	DefaultChip   = "gpiochip0"
	DefaultPinIR  = 17
	DefaultPinCLK = 27
	DefaultPinDT  = 22
	DefaultPinSW  = 23
)

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{
		Chip:        DefaultChip,
		IR:          DefaultPinIR,
		CLK:         DefaultPinCLK,
		DT:          DefaultPinDT,
		SW:          DefaultPinSW,
		IRActiveLow: true,
	}
}
