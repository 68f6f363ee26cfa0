//go:build !linux

package panel

import (
	"time"

	"github.com/pkg/errors"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// GPIOPanel is not available on non-Linux platforms.
type GPIOPanel struct{}

// NewGPIOPanel returns an error on non-Linux platforms.
func NewGPIOPanel(pins Pins) (*GPIOPanel, error) {
	return nil, errors.New("panel: not supported on this platform (requires Linux)")
}

// Show is not implemented on non-Linux platforms.
func (p *GPIOPanel) Show(d logic.Digit) error {
	return errors.New("panel: not supported")
}

// Set is not implemented on non-Linux platforms.
func (p *GPIOPanel) Set(c logic.Color, now time.Time) error {
	return errors.New("panel: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *GPIOPanel) Close() error {
	return nil
}
