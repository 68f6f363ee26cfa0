package status

import (
	"encoding/json"
	"time"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"estado"`
	Mode          string       `json:"mode"`
	Stage         string       `json:"stage"`
	Display       string       `json:"display"`
	LED           string       `json:"led"`
	Speed         float64      `json:"speed"`
	Jam           JamJSON      `json:"jam"`
	Paused        bool         `json:"paused"`
	Configured    bool         `json:"configured"`
	Regulated     bool         `json:"regulated"`
	ExpectedS     float64      `json:"expected_s,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// JamJSON reports the fault latch.
type JamJSON struct {
	Latched    bool   `json:"latched"`
	Reason     string `json:"reason,omitempty"`
	AckPresses int    `json:"ack_presses"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Team      string `json:"team"`
}

// CountsJSON is the JSON representation of totals since startup.
type CountsJSON struct {
	Bottles int `json:"bottles"`
	Jams    int `json:"jams"`
	Clears  int `json:"clears"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	PublishMs   int64  `json:"publish_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	SerialPort  string `json:"serial_port,omitempty"`
	HistoryPath string `json:"history_path,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Status)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:      state,
		Mode:       snap.Mode.String(),
		Stage:      snap.Stage.String(),
		Display:    snap.Digit.String(),
		LED:        string(snap.Color),
		Speed:      snap.Speed,
		Paused:     snap.Paused,
		Configured: snap.Configured,
		Regulated:  snap.Regulated,
		ExpectedS:  snap.Expected.Seconds(),
		Jam: JamJSON{
			Latched:    snap.Jam == logic.JamLatched,
			Reason:     string(snap.Reason),
			AckPresses: snap.AckPresses,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker, Team: snap.Config.Team},
		Counts: CountsJSON{
			Bottles: snap.Counts.Bottles,
			Jams:    snap.Counts.Jams,
			Clears:  snap.Counts.Clears,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			PublishMs:   snap.Config.PublishMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			SerialPort:  snap.Config.SerialPort,
			HistoryPath: snap.Config.HistoryPath,
		},
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// ParseJSON decodes a document produced by FormatJSON.
func ParseJSON(data []byte) (StatusInner, error) {
	var s StatusJSON
	err := json.Unmarshal(data, &s)
	return s.Status, err
}
