package main

import (
	"context"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortocircuito/conveyor-monitor/internal/gpio"
	"github.com/cortocircuito/conveyor-monitor/internal/history"
	"github.com/cortocircuito/conveyor-monitor/internal/logic"
	"github.com/cortocircuito/conveyor-monitor/internal/mqtt"
	"github.com/cortocircuito/conveyor-monitor/internal/panel"
	"github.com/cortocircuito/conveyor-monitor/internal/serial"
	"github.com/cortocircuito/conveyor-monitor/internal/status"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const step = 50 * time.Millisecond

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// script builds n samples (tick 1 is samples[0]). Each bottle holds the beam
// for two ticks starting at the given tick.
func script(n int, presses, bottles []int) []gpio.Sample {
	out := make([]gpio.Sample, n)
	for _, p := range presses {
		out[p-1].Pressed = true
	}
	for _, b := range bottles {
		out[b-1].Beam = true
		out[b].Beam = true
	}
	return out
}

// faultReader wraps a FakeReader and fails a fixed range of Read calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // inclusive
	faultEnd   int // exclusive
}

func (r *faultReader) Read() (gpio.Sample, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return gpio.Sample{}, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

type harness struct {
	station *station
	pub     *mqtt.FakePublisher
	panel   *panel.FakePanel
	trace   *serial.FakeSink
	store   *history.Store
	tracker *status.Tracker
}

func newHarness(t *testing.T, reader gpio.Reader, clockStep time.Duration) *harness {
	t.Helper()
	store, err := history.Open(history.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		pub:     mqtt.NewFakePublisher(),
		panel:   panel.NewFakePanel(),
		trace:   &serial.FakeSink{},
		store:   store,
		tracker: status.NewTracker(t0, status.Config{Team: "equipo1"}),
	}
	h.tracker.SetClock(func() time.Time { return t0 })
	h.station = &station{
		reader:          reader,
		panel:           h.panel,
		publisher:       h.pub,
		mqttStatus:      h.pub,
		trace:           h.trace,
		history:         store,
		tracker:         h.tracker,
		params:          logic.DefaultParams(),
		publishInterval: 2 * time.Second,
		now:             fakeClock(t0, clockStep),
		getenv:          func(string) string { return "" },
	}
	return h
}

// run drives runLoop for nTicks and then delivers sig.
func (h *harness) run(t *testing.T, nTicks int, sig os.Signal) {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), h.station, tick, sigCh)
	}()
	for range nTicks {
		tick <- time.Time{}
	}
	sigCh <- sig
	require.NoError(t, <-errCh)
}

func TestRunLoopManualJamAndAcknowledge(t *testing.T) {
	// Confirm manual at 0.5 m/s, learn a 2s rhythm, then a 5.5s gap latches.
	samples := script(240, []int{2, 3, 210, 220, 230}, []int{10, 50, 90, 200})
	h := newHarness(t, gpio.NewFakeReader(samples), step)
	h.run(t, len(samples), syscall.SIGTERM)

	assert.Equal(t, []logic.EventType{
		logic.EventModeSelected,
		logic.EventVelocitySelected,
		logic.EventFirstBottle,
		logic.EventReferenceLearned,
		logic.EventBottle,
		logic.EventBottle,
		logic.EventJam,
		logic.EventAckPress,
		logic.EventAckPress,
		logic.EventAckPress,
		logic.EventJamCleared,
	}, h.pub.EventTypes())

	jam := h.pub.Events[6]
	assert.Equal(t, logic.ReasonInterval, jam.Reason)
	assert.Equal(t, 5500*time.Millisecond, jam.Elapsed)
	assert.Equal(t, 2*time.Second, jam.Expected)

	// Panel showed the error glyph while latched and is back to the
	// uncalibrated velocity digit afterwards.
	assert.Contains(t, h.panel.Digits, logic.DigitError)
	assert.Contains(t, h.panel.Colors, logic.ColorError)
	last, ok := h.panel.LastDigit()
	require.True(t, ok)
	assert.Equal(t, logic.Digit(5), last)
	assert.Equal(t, logic.ColorYellow, h.panel.LastColor())

	lines := h.trace.Snapshot()
	assert.Contains(t, lines, "VELOCIDAD:0.50")
	assert.Contains(t, lines, "VELOCIDAD:0.00")
	assert.Contains(t, strings.Join(lines, "\n"), "EVENTO:JAM modo=MANUAL motivo=INTERVAL_OUT_OF_RANGE")

	entries, err := h.store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "JAM_CLEARED", entries[0].Type)
	assert.Equal(t, "JAM", entries[1].Type)
	assert.Equal(t, "INTERVAL_OUT_OF_RANGE", entries[1].Reason)

	snap := h.tracker.Snapshot()
	assert.Equal(t, logic.StatusRegulating, snap.Status)
	assert.Equal(t, logic.Counts{Bottles: 4, Jams: 1, Clears: 1}, snap.Counts)

	require.NotEmpty(t, h.pub.Telemetry)
	assert.Equal(t, logic.StatusSelecting, h.pub.Telemetry[0].Status)
	assert.True(t, h.pub.Telemetry[0].Manual)

	assert.Equal(t, []string{"SHUTDOWN"}, h.pub.SystemEventNames())
	payload, err := status.ParseJSON(h.pub.SystemEvents[0].RawPayload)
	require.NoError(t, err)
	assert.Equal(t, "SHUTDOWN", payload.Event)
	assert.Equal(t, "SIGTERM", payload.Reason)
	assert.Equal(t, "Regulando", payload.State)
}

func TestRunLoopAutomaticNoBottleTimeout(t *testing.T) {
	// Turn to automatic, confirm, keep bottle type 1 (1s interval). No
	// bottle ever arrives, so after 1s + 5s margin the station latches.
	samples := script(140, []int{3, 4}, nil)
	samples[1].Turn = 1
	h := newHarness(t, gpio.NewFakeReader(samples), step)
	h.run(t, len(samples), syscall.SIGINT)

	types := h.pub.EventTypes()
	require.Len(t, types, 3)
	assert.Equal(t, logic.EventModeSelected, types[0])
	assert.Equal(t, logic.EventBottleSelected, types[1])
	assert.Equal(t, logic.EventJam, types[2])
	assert.Equal(t, logic.ReasonNoBottle, h.pub.Events[2].Reason)
	assert.Equal(t, logic.ModeAutomatic, h.pub.Events[2].Mode)

	snap := h.tracker.Snapshot()
	assert.Equal(t, logic.StatusJam, snap.Status)
	assert.Equal(t, logic.JamLatched, snap.Jam)
	assert.InDelta(t, 0.0, snap.Speed, 1e-9)

	assert.Equal(t, "SIGINT", h.pub.SystemEvents[0].Reason)
}

func TestRunLoopGPIOReadError(t *testing.T) {
	inner := gpio.NewFakeReader(make([]gpio.Sample, 2))
	reader := &faultReader{inner: inner, faultStart: 2, faultEnd: 4}
	h := newHarness(t, reader, step)
	h.run(t, 6, syscall.SIGTERM)

	assert.Equal(t, []string{"SHUTDOWN"}, h.pub.SystemEventNames())
	// Ticks with a failed read leave the panel untouched.
	assert.Len(t, h.panel.Digits, 4)
}

func TestRunLoopPanelErrorDoesNotStop(t *testing.T) {
	h := newHarness(t, gpio.NewFakeReader(script(5, []int{2, 3}, nil)), step)
	h.panel.ShowError = errors.New("segment line busy")
	h.run(t, 5, syscall.SIGTERM)

	assert.Equal(t, []logic.EventType{logic.EventModeSelected, logic.EventVelocitySelected}, h.pub.EventTypes())
	assert.Empty(t, h.panel.Digits)
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newHarness(t, gpio.NewFakeReader(make([]gpio.Sample, 3)), 5*time.Minute)
	h.station.heartbeat = 15 * time.Minute
	h.run(t, 3, syscall.SIGTERM)

	assert.Equal(t, []string{"HEARTBEAT", "SHUTDOWN"}, h.pub.SystemEventNames())
	hb := h.pub.SystemEvents[0]
	assert.True(t, hb.Retained)
	assert.True(t, hb.Timestamp.Equal(t0.Add(15*time.Minute)))
	payload, err := status.ParseJSON(hb.RawPayload)
	require.NoError(t, err)
	assert.Equal(t, "HEARTBEAT", payload.Event)
	assert.Equal(t, "Seleccionando", payload.State)
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	h := newHarness(t, gpio.NewFakeReader(make([]gpio.Sample, 3)), 5*time.Minute)
	h.run(t, 3, syscall.SIGTERM)
	assert.Equal(t, []string{"SHUTDOWN"}, h.pub.SystemEventNames())
}

func TestRunLoopTelemetryCadence(t *testing.T) {
	// 100 ticks at 50ms cover 5s: reports at 0.05s, 2.05s and 4.05s.
	h := newHarness(t, gpio.NewFakeReader(make([]gpio.Sample, 100)), step)
	h.run(t, 100, syscall.SIGTERM)
	assert.Len(t, h.pub.Telemetry, 3)
}

func TestRunLoopPublishErrorsAreSwallowed(t *testing.T) {
	h := newHarness(t, gpio.NewFakeReader(script(5, []int{2, 3}, nil)), step)
	h.pub.PublishError = errors.New("broker down")
	h.pub.PublishSystemError = errors.New("broker down")
	h.run(t, 5, syscall.SIGTERM)

	assert.Empty(t, h.pub.Events)
	assert.Contains(t, h.trace.Snapshot(), "VELOCIDAD:0.50")
}

func TestRunLoopWithoutOptionalSinks(t *testing.T) {
	h := newHarness(t, gpio.NewFakeReader(script(5, []int{2, 3}, nil)), step)
	h.station.publisher = nil
	h.station.mqttStatus = nil
	h.station.panel = nil
	h.station.history = nil
	h.station.trace = nil
	h.run(t, 5, syscall.SIGTERM)

	snap := h.tracker.Snapshot()
	assert.Equal(t, logic.StatusRegulating, snap.Status)
	assert.False(t, snap.MQTTConnected)
}

func TestRunLoopContextCancel(t *testing.T) {
	h := newHarness(t, gpio.NewFakeReader(make([]gpio.Sample, 1)), step)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runLoop(ctx, h.station, make(chan time.Time), make(chan os.Signal))
	require.NoError(t, err)
	require.Len(t, h.pub.SystemEvents, 1)
	assert.Equal(t, "CANCELED", h.pub.SystemEvents[0].Reason)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

func TestEventFields(t *testing.T) {
	f := eventFields(logic.Event{Type: logic.EventJam, Mode: logic.ModeAutomatic, Reason: logic.ReasonStall, Elapsed: time.Second})
	assert.Equal(t, logic.EventJam, f["event"])
	assert.Equal(t, "AUTOMATIC", f["mode"])
	assert.Equal(t, logic.ReasonStall, f["reason"])
	assert.NotContains(t, f, "presses")
}
