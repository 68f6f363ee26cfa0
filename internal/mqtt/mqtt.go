// Package mqtt provides MQTT telemetry publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// TopicDiscovery is where stations announce the magnitudes they publish.
const TopicDiscovery = "descubrir"

// Magnitudes are the per-station telemetry topic suffixes.
var Magnitudes = []string{"estado", "velocidad", "modo"}

// Topics holds the per-station topic names.
type Topics struct {
	Status string
	Speed  string
	Mode   string
	Events string
	System string
}

// NewTopics derives the station topics from its team name.
func NewTopics(team string) Topics {
	base := "sensores/" + team
	return Topics{
		Status: base + "/estado",
		Speed:  base + "/velocidad",
		Mode:   base + "/modo",
		Events: base + "/eventos",
		System: base + "/sistema",
	}
}

// Publisher publishes station data to MQTT.
type Publisher interface {
	// PublishTelemetry sends one status/speed/mode report.
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(t logic.TelemetryData) error

	// Publish sends a controller event.
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// DiscoveryPayload announces a station.
type DiscoveryPayload struct {
	Team       string   `json:"equipo"`
	Magnitudes []string `json:"magnitudes"`
}

// FormatDiscovery creates the discovery announcement for a team.
func FormatDiscovery(team string) ([]byte, error) {
	return json.Marshal(DiscoveryPayload{Team: team, Magnitudes: Magnitudes})
}

// FormatSpeed renders a speed the way dashboards expect it: plain decimal
// with at least one fractional digit ("0.5", "0.0").
func FormatSpeed(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatMode renders the mode flag: "true" for manual.
func FormatMode(manual bool) string {
	return strconv.FormatBool(manual)
}

// Payload represents the events topic message structure.
type Payload struct {
	Event EventPayload `json:"event"`
}

// EventPayload contains the controller event details.
type EventPayload struct {
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Mode      string  `json:"mode"`
	Reason    string  `json:"reason,omitempty"`
	ElapsedS  float64 `json:"elapsed_s,omitempty"`
	ExpectedS float64 `json:"expected_s,omitempty"`
	Presses   int     `json:"presses,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Event: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Type:      string(event.Type),
			Mode:      event.Mode.String(),
			Reason:    string(event.Reason),
			ElapsedS:  event.Elapsed.Seconds(),
			ExpectedS: event.Expected.Seconds(),
			Presses:   event.Presses,
			Value:     event.Value,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
