// Package serial writes the station's line-oriented trace: one speed line
// per tick for serial plotters, plus one readable line per controller event.
package serial

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 115200

// Sink receives trace lines.
type Sink interface {
	WriteSpeed(speed float64) error
	WriteEvent(event logic.Event) error
	Close() error
}

// FormatSpeed renders the plotter line for a speed.
func FormatSpeed(speed float64) string {
	return fmt.Sprintf("VELOCIDAD:%.2f", speed)
}

// FormatEvent renders a readable trace line for an event.
func FormatEvent(e logic.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "EVENTO:%s modo=%s", e.Type, e.Mode)
	if e.Reason != logic.ReasonNone {
		fmt.Fprintf(&b, " motivo=%s", e.Reason)
	}
	if e.Elapsed > 0 {
		fmt.Fprintf(&b, " intervalo=%.2fs", e.Elapsed.Seconds())
	}
	if e.Expected > 0 {
		fmt.Fprintf(&b, " esperado=%.2fs", e.Expected.Seconds())
	}
	if e.Presses > 0 {
		fmt.Fprintf(&b, " pulsaciones=%d", e.Presses)
	}
	if e.Value > 0 {
		fmt.Fprintf(&b, " valor=%g", e.Value)
	}
	return b.String()
}

// WriterSink writes trace lines to any io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewWriterSink wraps w. If w is also an io.Closer it is closed by Close.
func NewWriterSink(w io.Writer) *WriterSink {
	s := &WriterSink{w: w}
	if c, ok := w.(io.Closer); ok {
		s.c = c
	}
	return s
}

func (s *WriterSink) writeLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line+"\r\n")
	return errors.Wrap(err, "write trace line")
}

// WriteSpeed writes the plotter line.
func (s *WriterSink) WriteSpeed(speed float64) error {
	return s.writeLine(FormatSpeed(speed))
}

// WriteEvent writes an event line.
func (s *WriterSink) WriteEvent(e logic.Event) error {
	return s.writeLine(FormatEvent(e))
}

// Close closes the underlying writer when it supports it.
func (s *WriterSink) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// OpenPort opens a serial port and returns a sink writing to it.
func OpenPort(name string, baud int) (*WriterSink, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", name)
	}
	return NewWriterSink(port), nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}

// Discard is a sink that drops everything.
type Discard struct{}

func (Discard) WriteSpeed(float64) error     { return nil }
func (Discard) WriteEvent(logic.Event) error { return nil }
func (Discard) Close() error                 { return nil }
