//go:build linux

package gpio

import (
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the inputs from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip *gpiocdev.Chip
	ir   *gpiocdev.Line
	clk  *gpiocdev.Line
	dt   *gpiocdev.Line
	sw   *gpiocdev.Line

	enc    Quadrature
	button Button
	now    func() time.Time
}

// NewRealReader requests the four input lines described by pins.
func NewRealReader(pins Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", pins.Chip)
	}

	r := &RealReader{
		chip:   chip,
		button: Button{Lockout: PressLockout},
		now:    time.Now,
	}

	irOpts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if pins.IRActiveLow {
		irOpts = append(irOpts, gpiocdev.AsActiveLow)
	}
	if r.ir, err = chip.RequestLine(pins.IR, irOpts...); err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "request IR pin %d", pins.IR)
	}

	// Encoder and button are open contacts to ground with pull-ups.
	if r.clk, err = chip.RequestLine(pins.CLK, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "request CLK pin %d", pins.CLK)
	}
	if r.dt, err = chip.RequestLine(pins.DT, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "request DT pin %d", pins.DT)
	}
	if r.sw, err = chip.RequestLine(pins.SW, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow); err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "request SW pin %d", pins.SW)
	}

	return r, nil
}

// Read samples all inputs and decodes encoder movement and button presses.
func (r *RealReader) Read() (Sample, error) {
	beam, err := r.ir.Value()
	if err != nil {
		return Sample{}, errors.Wrap(err, "read IR pin")
	}
	clk, err := r.clk.Value()
	if err != nil {
		return Sample{}, errors.Wrap(err, "read CLK pin")
	}
	dt, err := r.dt.Value()
	if err != nil {
		return Sample{}, errors.Wrap(err, "read DT pin")
	}
	held, err := r.sw.Value()
	if err != nil {
		return Sample{}, errors.Wrap(err, "read SW pin")
	}

	return Sample{
		Beam:    beam == 1,
		Turn:    r.enc.Update(clk == 1, dt == 1),
		Pressed: r.button.Update(held == 1, r.now()),
	}, nil
}

// Close releases GPIO resources.
// Lines are reconfigured as plain inputs with pull-down (matching Pi boot
// defaults) before closing.
func (r *RealReader) Close() error {
	var errs []error

	for name, line := range map[string]*gpiocdev.Line{"IR": r.ir, "CLK": r.clk, "DT": r.dt, "SW": r.sw} {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, errors.Wrapf(err, "reconfigure %s pin", name))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close %s pin", name))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close chip"))
		}
	}

	if len(errs) > 0 {
		return errors.Errorf("close errors: %v", errs)
	}
	return nil
}
