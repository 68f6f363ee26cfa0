package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

var ts = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestNewTopics(t *testing.T) {
	topics := NewTopics("equipo3")
	assert.Equal(t, "sensores/equipo3/estado", topics.Status)
	assert.Equal(t, "sensores/equipo3/velocidad", topics.Speed)
	assert.Equal(t, "sensores/equipo3/modo", topics.Mode)
	assert.Equal(t, "sensores/equipo3/eventos", topics.Events)
	assert.Equal(t, "sensores/equipo3/sistema", topics.System)
}

func TestFormatDiscovery(t *testing.T) {
	payload, err := FormatDiscovery("equipo3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"equipo":"equipo3","magnitudes":["estado","velocidad","modo"]}`, string(payload))
}

func TestFormatSpeed(t *testing.T) {
	tests := map[float64]string{
		0:   "0.0",
		0.5: "0.5",
		1:   "1.0",
		0.6: "0.6",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatSpeed(in), "speed %v", in)
	}
}

func TestFormatMode(t *testing.T) {
	assert.Equal(t, "true", FormatMode(true))
	assert.Equal(t, "false", FormatMode(false))
}

func TestFormatPayloadJam(t *testing.T) {
	payload, err := FormatPayload(logic.Event{
		Timestamp: ts,
		Type:      logic.EventJam,
		Mode:      logic.ModeAutomatic,
		Reason:    logic.ReasonInterval,
		Elapsed:   4500 * time.Millisecond,
		Expected:  3 * time.Second,
	})
	require.NoError(t, err)

	var got Payload
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "2026-01-01T12:00:00Z", got.Event.Timestamp)
	assert.Equal(t, "JAM", got.Event.Type)
	assert.Equal(t, "AUTOMATIC", got.Event.Mode)
	assert.Equal(t, "INTERVAL_OUT_OF_RANGE", got.Event.Reason)
	assert.InDelta(t, 4.5, got.Event.ElapsedS, 1e-9)
	assert.InDelta(t, 3.0, got.Event.ExpectedS, 1e-9)
}

func TestFormatPayloadOmitsEmpty(t *testing.T) {
	payload, err := FormatPayload(logic.Event{Timestamp: ts, Type: logic.EventPaused})
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "reason")
	assert.NotContains(t, string(payload), "presses")
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "SHUTDOWN", Reason: "SIGTERM"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"system":{"timestamp":"2026-01-01T12:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(payload))

	raw := []byte(`{"custom":true}`)
	payload, err = FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, payload)
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()
	require.NoError(t, f.PublishTelemetry(logic.TelemetryData{Status: logic.StatusRunning, Speed: 0.5}))
	require.NoError(t, f.Publish(logic.Event{Type: logic.EventBottle}))
	require.NoError(t, f.PublishSystem(SystemEvent{Event: "STARTUP"}))

	assert.Len(t, f.Telemetry, 1)
	assert.Equal(t, []logic.EventType{logic.EventBottle}, f.EventTypes())
	assert.Len(t, f.Payloads, 1)
	assert.Equal(t, []string{"STARTUP"}, f.SystemEventNames())

	f.PublishError = errors.New("boom")
	assert.Error(t, f.Publish(logic.Event{}))
	assert.Error(t, f.PublishTelemetry(logic.TelemetryData{}))
}

func TestAsyncFlushesOnClose(t *testing.T) {
	f := NewFakePublisher()
	a := NewAsync(f, 16)

	require.NoError(t, a.PublishSystem(SystemEvent{Event: "STARTUP"}))
	require.NoError(t, a.Publish(logic.Event{Type: logic.EventFirstBottle}))
	require.NoError(t, a.PublishTelemetry(logic.TelemetryData{Status: logic.StatusRegulating}))
	require.NoError(t, a.Close())

	assert.True(t, f.Closed)
	assert.Equal(t, []string{"STARTUP"}, f.SystemEventNames())
	assert.Equal(t, []logic.EventType{logic.EventFirstBottle}, f.EventTypes())
	require.Len(t, f.Telemetry, 1)
	assert.Equal(t, logic.StatusRegulating, f.Telemetry[0].Status)
}

func TestAsyncAfterClose(t *testing.T) {
	a := NewAsync(NewFakePublisher(), 1)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Publish(logic.Event{}), ErrClosed)
	assert.NoError(t, a.Close())
}

// blockingPublisher holds every publish until released.
type blockingPublisher struct {
	*FakePublisher
	release chan struct{}
}

func (b *blockingPublisher) Publish(e logic.Event) error {
	<-b.release
	return b.FakePublisher.Publish(e)
}

func TestAsyncNeverBlocksCaller(t *testing.T) {
	b := &blockingPublisher{FakePublisher: NewFakePublisher(), release: make(chan struct{})}
	a := NewAsync(b, 1)

	// One in flight inside the worker, one queued; after that the queue is full.
	var full bool
	for range 10 {
		if err := a.Publish(logic.Event{Type: logic.EventBottle}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full, "expected the queue to fill instead of blocking")

	close(b.release)
	require.NoError(t, a.Close())
	assert.NotEmpty(t, b.EventTypes())
}

func TestAsyncIsConnected(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	a := NewAsync(f, 1)
	defer a.Close()
	assert.True(t, a.IsConnected())
}
