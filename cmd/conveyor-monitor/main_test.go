package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortocircuito/conveyor-monitor/internal/gpio"
	"github.com/cortocircuito/conveyor-monitor/internal/history"
	"github.com/cortocircuito/conveyor-monitor/internal/logic"
	"github.com/cortocircuito/conveyor-monitor/internal/status"
)

// resetFlags restores the flag-bound globals after the test.
func resetFlags(t *testing.T) {
	t.Helper()
	level, path := logLevel, configPath
	t.Cleanup(func() {
		logLevel, configPath = level, path
	})
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)
	var out bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfigCommand(t *testing.T) {
	path := writeConfig(t, "mqtt:\n  team: equipo5\n")
	out, err := execute(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "team: equipo5")
	assert.Contains(t, out, "publish_interval: 2s")
}

func TestConfigCommandInvalid(t *testing.T) {
	path := writeConfig(t, "poll:\n  interval: 5s\n")
	_, err := execute(t, "config", "--config", path)
	assert.ErrorContains(t, err, "too slow")
}

func TestBadLogLevel(t *testing.T) {
	_, err := execute(t, "config", "--log-level", "shouty")
	assert.ErrorContains(t, err, "log level")
}

func TestStatusURL(t *testing.T) {
	tests := map[string]string{
		":8080":                 "http://localhost:8080/index.json",
		"10.0.0.5:80":           "http://10.0.0.5:80/index.json",
		"http://station.local/": "http://station.local/index.json",
		"https://station.local": "https://station.local/index.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, statusURL(in), in)
	}
}

func TestStatusCommand(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := status.Snapshot{
		Station: status.Station{
			Status:     logic.StatusJam,
			Mode:       logic.ModeManual,
			Stage:      logic.StageConfirmed,
			Digit:      logic.DigitError,
			Color:      logic.ColorError,
			Jam:        logic.JamLatched,
			Reason:     logic.ReasonStall,
			AckPresses: 2,
			Counts:     logic.Counts{Bottles: 40, Jams: 2, Clears: 1},
		},
		StartTime: start,
		Now:       start.Add(time.Hour),
		Config:    status.Config{Broker: "tcp://broker:1883", Team: "equipo2"},
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write(status.FormatJSON(snap))
	}))
	defer ts.Close()

	out, err := execute(t, "status", "--addr", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Atasco")
	assert.Contains(t, out, "SENSOR_STALL")
	assert.Contains(t, out, "Bottles: 40")
	assert.Contains(t, out, "equipo2")
	assert.Contains(t, out, "Uptime: 1h0m0s")
}

func TestStatusCommandUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	_, err := execute(t, "status", "--addr", ts.URL)
	assert.ErrorContains(t, err, "404")
}

func TestHistoryCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(dbPath)
	require.NoError(t, err)
	_, err = store.Record(t.Context(), logic.Event{
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Type:      logic.EventJam,
		Reason:    logic.ReasonNoBottle,
		Elapsed:   7500 * time.Millisecond,
		Expected:  2 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	path := writeConfig(t, "history:\n  path: "+dbPath+"\n")
	out, err := execute(t, "history", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "NO_BOTTLE_TIMEOUT")
	assert.Contains(t, out, "7.50s")
	assert.Contains(t, out, "2.00s")
}

func TestHistoryCommandDisabled(t *testing.T) {
	path := writeConfig(t, "history:\n  path: \"\"\n")
	_, err := execute(t, "history", "--config", path)
	assert.ErrorContains(t, err, "disabled")
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, nil))
	assert.Equal(t, "no jams recorded\n", buf.String())
}

func TestProbe(t *testing.T) {
	reader := gpio.NewFakeReader([]gpio.Sample{
		{Beam: true},
		{Turn: -1},
		{Pressed: true},
	})
	var slept []time.Duration
	var buf bytes.Buffer
	err := probe(&buf, reader, 3, 200*time.Millisecond, func(d time.Duration) { slept = append(slept, d) })
	require.NoError(t, err)

	assert.Equal(t, "IR: BLOCKED, turn: +0, pressed: no\n"+
		"IR: CLEAR, turn: -1, pressed: no\n"+
		"IR: CLEAR, turn: +0, pressed: yes\n", buf.String())
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, slept)
}

func TestProbeReadError(t *testing.T) {
	var buf bytes.Buffer
	err := probe(&buf, gpio.NewFakeReader(nil), 1, 0, func(time.Duration) {})
	assert.ErrorContains(t, err, "read gpio")
}

func TestPrintPorts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPorts(&buf, []string{"/dev/ttyACM0", "/dev/ttyUSB0"}))
	assert.Equal(t, "/dev/ttyACM0\n/dev/ttyUSB0\n", buf.String())

	buf.Reset()
	require.NoError(t, printPorts(&buf, nil))
	assert.Equal(t, "no serial ports found\n", buf.String())
}

func TestStatusConfig(t *testing.T) {
	resetFlags(t)
	configPath = writeConfig(t, "poll:\n  interval: 25ms\nhttp:\n  addr: \":9000\"\n")
	cfg, err := loadConfig()
	require.NoError(t, err)

	sc := statusConfig(cfg)
	assert.EqualValues(t, 25, sc.PollMs)
	assert.EqualValues(t, 2000, sc.PublishMs)
	assert.Equal(t, ":9000", sc.HTTPAddr)
}
