package panel

import (
	"time"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// FakePanel records what would have been shown.
type FakePanel struct {
	// Digits contains every digit shown, in order.
	Digits []logic.Digit

	// Colors contains every color set, in order.
	Colors []logic.Color

	// Levels contains the RGB levels after each Set.
	Levels [][]int

	// ShowError, if set, will be returned by Show.
	ShowError error

	// Closed tracks if Close was called.
	Closed bool

	blink Blinker
}

// NewFakePanel creates a FakePanel for testing.
func NewFakePanel() *FakePanel {
	return &FakePanel{blink: Blinker{HalfPeriod: BlinkHalfPeriod}}
}

// Show records the digit.
func (f *FakePanel) Show(d logic.Digit) error {
	if f.ShowError != nil {
		return f.ShowError
	}
	f.Digits = append(f.Digits, d)
	return nil
}

// Set records the color and resulting channel levels.
func (f *FakePanel) Set(c logic.Color, now time.Time) error {
	f.Colors = append(f.Colors, c)
	f.Levels = append(f.Levels, lightLevels(c, &f.blink, now))
	return nil
}

// Close marks the panel as closed.
func (f *FakePanel) Close() error {
	f.Closed = true
	return nil
}

// LastDigit returns the most recent digit, or false if none was shown.
func (f *FakePanel) LastDigit() (logic.Digit, bool) {
	if len(f.Digits) == 0 {
		return 0, false
	}
	return f.Digits[len(f.Digits)-1], true
}

// LastColor returns the most recent color, or "" if none was set.
func (f *FakePanel) LastColor() logic.Color {
	if len(f.Colors) == 0 {
		return ""
	}
	return f.Colors[len(f.Colors)-1]
}
