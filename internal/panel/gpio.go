//go:build linux

package panel

import (
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// GPIOPanel drives the display segments and LED channels as GPIO outputs.
type GPIOPanel struct {
	chip     *gpiocdev.Chip
	segments *gpiocdev.Lines
	led      *gpiocdev.Lines
	blink    Blinker

	lastDigit logic.Digit
	shown     bool
	lastLED   []int
}

// NewGPIOPanel requests the output lines described by pins, all off.
func NewGPIOPanel(pins Pins) (*GPIOPanel, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", pins.Chip)
	}
	p := &GPIOPanel{chip: chip, blink: Blinker{HalfPeriod: BlinkHalfPeriod}}

	segOpts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0, 0, 0, 0, 0, 0, 0)}
	if pins.CommonAnode {
		segOpts = append(segOpts, gpiocdev.AsActiveLow)
	}
	if p.segments, err = chip.RequestLines(pins.Segments[:], segOpts...); err != nil {
		p.Close()
		return nil, errors.Wrap(err, "request segment pins")
	}

	rgb := []int{pins.Red, pins.Green, pins.Blue}
	if p.led, err = chip.RequestLines(rgb, gpiocdev.AsOutput(0, 0, 0)); err != nil {
		p.Close()
		return nil, errors.Wrapf(err, "request LED pins %v", rgb)
	}
	return p, nil
}

// Show lights the segments for d. Repeated digits are not rewritten.
func (p *GPIOPanel) Show(d logic.Digit) error {
	if p.shown && d == p.lastDigit {
		return nil
	}
	seg := Segments(d)
	if err := p.segments.SetValues(boolsToInts(seg[:]...)); err != nil {
		return errors.Wrapf(err, "show digit %s", d)
	}
	p.lastDigit = d
	p.shown = true
	return nil
}

// Set drives the LED channels for c, blinking red for the error color.
func (p *GPIOPanel) Set(c logic.Color, now time.Time) error {
	levels := lightLevels(c, &p.blink, now)
	if equalLevels(levels, p.lastLED) {
		return nil
	}
	if err := p.led.SetValues(levels); err != nil {
		return errors.Wrapf(err, "set LED %s", c)
	}
	p.lastLED = levels
	return nil
}

// Close blanks the outputs and releases the lines.
func (p *GPIOPanel) Close() error {
	var errs []error
	if p.segments != nil {
		if err := p.segments.SetValues(make([]int, 7)); err != nil {
			errs = append(errs, errors.Wrap(err, "blank display"))
		}
		if err := p.segments.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close segment pins"))
		}
	}
	if p.led != nil {
		if err := p.led.SetValues([]int{0, 0, 0}); err != nil {
			errs = append(errs, errors.Wrap(err, "turn off LED"))
		}
		if err := p.led.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close LED pins"))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close chip"))
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("close errors: %v", errs)
	}
	return nil
}

func equalLevels(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
