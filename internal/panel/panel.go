// Package panel drives the station's operator outputs: a single 7-segment
// digit and a tri-color status LED.
package panel

import (
	"time"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// Display shows one digit.
type Display interface {
	Show(d logic.Digit) error
}

// Light shows a status color. now drives the error blink.
type Light interface {
	Set(c logic.Color, now time.Time) error
}

// Panel is a display and a light behind one set of resources.
type Panel interface {
	Display
	Light
	Close() error
}

// BlinkHalfPeriod is how long the error LED stays on, then off.
const BlinkHalfPeriod = 300 * time.Millisecond

// Segment indexes, in A..G order.
const (
	SegA = iota
	SegB
	SegC
	SegD
	SegE
	SegF
	SegG
)

// segmentPatterns lists lit segments per digit, bit i = segment i (A=bit 0).
var segmentPatterns = map[logic.Digit]uint8{
	0:                0b0111111,
	1:                0b0000110,
	2:                0b1011011,
	3:                0b1001111,
	4:                0b1100110,
	5:                0b1101101,
	6:                0b1111101,
	7:                0b0000111,
	8:                0b1111111,
	9:                0b1101111,
	logic.DigitError: 0b1111001,
}

// Segments returns which of the A..G segments are lit for d. Unknown digits
// blank the display.
func Segments(d logic.Digit) [7]bool {
	var out [7]bool
	bits := segmentPatterns[d]
	for i := range out {
		out[i] = bits&(1<<i) != 0
	}
	return out
}

// RGB returns which LED channels a steady color lights. The error color is
// red; blinking is handled by Blinker.
func RGB(c logic.Color) (r, g, b bool) {
	switch c {
	case logic.ColorNormal:
		return false, true, false
	case logic.ColorSelecting:
		return false, false, true
	case logic.ColorYellow:
		return true, true, false
	case logic.ColorError:
		return true, false, false
	}
	return false, false, false
}

// Blinker toggles a lamp every HalfPeriod as long as it is polled.
type Blinker struct {
	HalfPeriod time.Duration

	lit  bool
	last time.Time
}

// Lit reports whether the lamp is on at now.
func (b *Blinker) Lit(now time.Time) bool {
	if b.last.IsZero() {
		b.last = now
		b.lit = true
		return b.lit
	}
	if now.Sub(b.last) >= b.HalfPeriod {
		b.lit = !b.lit
		b.last = now
	}
	return b.lit
}

// Reset makes the next blink start lit.
func (b *Blinker) Reset() {
	b.last = time.Time{}
}

// Pins describes where the outputs are wired.
type Pins struct {
	Chip string
	// Segments are the A..G lines.
	Segments [7]int
	Red      int
	Green    int
	Blue     int
	// CommonAnode inverts the segment lines.
	CommonAnode bool
}

// DefaultPins returns the standard wiring (BCM numbering).
func DefaultPins() Pins {
	return Pins{
		Chip:     "gpiochip0",
		Segments: [7]int{5, 6, 13, 19, 26, 12, 16},
		Red:      20,
		Green:    21,
		Blue:     24,
	}
}

func boolsToInts(bs ...bool) []int {
	out := make([]int, len(bs))
	for i, b := range bs {
		if b {
			out[i] = 1
		}
	}
	return out
}

// lightLevels resolves a color to channel levels at now, blinking the error color.
func lightLevels(c logic.Color, blink *Blinker, now time.Time) []int {
	if c != logic.ColorError {
		blink.Reset()
		r, g, b := RGB(c)
		return boolsToInts(r, g, b)
	}
	if blink.Lit(now) {
		return boolsToInts(RGB(c))
	}
	return []int{0, 0, 0}
}
