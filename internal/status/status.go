// Package status provides a thread-safe view of the station for the HTTP
// page, the status subcommand and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// NetworkInfo contains network state as reported by the host helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Host helper env var names (written to /run/pi-helper.env).
const (
	EnvNetworkType       = "NETWORK_TYPE"
	EnvNetworkIP         = "NETWORK_IP"
	EnvNetworkStatus     = "NETWORK_STATUS"
	EnvNetworkGateway    = "NETWORK_GATEWAY"
	EnvNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	EnvNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// NetworkFromEnv reads network info through getenv. Returns nil when the
// helper has not reported a status.
func NetworkFromEnv(getenv func(string) string) *NetworkInfo {
	s := getenv(EnvNetworkStatus)
	if s == "" {
		return nil
	}
	return &NetworkInfo{
		Type:       getenv(EnvNetworkType),
		IP:         getenv(EnvNetworkIP),
		Status:     s,
		Gateway:    getenv(EnvNetworkGateway),
		WifiStatus: getenv(EnvNetworkWifiStatus),
		SSID:       getenv(EnvNetworkWifiSSID),
	}
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	PublishMs   int64
	HeartbeatMs int64
	Broker      string
	Team        string
	HTTPAddr    string
	SerialPort  string
	HistoryPath string
}

// Station is the controller state copied out on every tick.
type Station struct {
	Status     logic.Status
	Mode       logic.Mode
	Stage      logic.Stage
	Digit      logic.Digit
	Color      logic.Color
	Speed      float64
	Jam        logic.JamState
	Reason     logic.LatchReason
	AckPresses int
	Paused     bool
	Configured bool
	Regulated  bool
	// Expected is the interval bottles are held to; zero while unregulated.
	Expected time.Duration
	Counts   logic.Counts
}

// FromController copies the station state out of a controller.
func FromController(c *logic.Controller) Station {
	digit, color := c.Display()
	expected, _ := c.Jam().Expected()
	return Station{
		Status:     c.Status(),
		Mode:       c.Selection().Mode,
		Stage:      c.Stage(),
		Digit:      digit,
		Color:      color,
		Speed:      c.Speed(),
		Jam:        c.JamState(),
		Reason:     c.LatchReason(),
		AckPresses: c.AckPresses(),
		Paused:     c.Paused(),
		Configured: c.Configured(),
		Regulated:  c.Jam().Regulated(),
		Expected:   expected,
		Counts:     c.Counts(),
	}
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Station
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Station:   Station{Status: logic.StatusSelecting, Color: logic.ColorSelecting},
		},
		now: time.Now,
	}
}

// SetClock replaces the clock used to stamp snapshots.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Update replaces the station state. Called from the run loop on every tick.
func (t *Tracker) Update(s Station) {
	t.mu.Lock()
	t.snap.Station = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state, stamped with
// the tracker's clock.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
