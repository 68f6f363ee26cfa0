package serial

import (
	"sync"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// FakeSink records trace lines for tests.
type FakeSink struct {
	mu     sync.Mutex
	Lines  []string
	Err    error
	Closed bool
}

// WriteSpeed records the plotter line.
func (f *FakeSink) WriteSpeed(speed float64) error {
	return f.record(FormatSpeed(speed))
}

// WriteEvent records the event line.
func (f *FakeSink) WriteEvent(e logic.Event) error {
	return f.record(FormatEvent(e))
}

func (f *FakeSink) record(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Lines = append(f.Lines, line)
	return nil
}

// Close marks the sink closed.
func (f *FakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Snapshot returns a copy of the recorded lines.
func (f *FakeSink) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Lines...)
}
