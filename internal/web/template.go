package web

import (
	"fmt"
	"html/template"
	"time"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
	"github.com/cortocircuito/conveyor-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime":  formatUptime,
	"seconds": formatSeconds,
}).Parse(indexHTML))

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// page is the template data: the snapshot plus values the template cannot
// compute itself.
type page struct {
	status.Snapshot
	Uptime   time.Duration
	Latched  bool
	LEDClass string
}

func newPage(snap status.Snapshot) page {
	return page{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Latched:  snap.Jam == logic.JamLatched,
		LEDClass: ledClass(snap.Color),
	}
}

func ledClass(c logic.Color) string {
	switch c {
	case logic.ColorNormal:
		return "green"
	case logic.ColorSelecting:
		return "blue"
	case logic.ColorYellow:
		return "yellow"
	case logic.ColorError:
		return "red blink"
	}
	return "off"
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Conveyor Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.digit { font-size: 3em; font-weight: bold; }
.led { display: inline-block; width: 14px; height: 14px; border-radius: 50%; vertical-align: middle; background: #444; }
.led.green { background: green; }
.led.blue { background: #2060ff; }
.led.yellow { background: #e0c000; }
.led.red { background: red; }
.blink { animation: blink 0.6s steps(1) infinite; }
@keyframes blink { 50% { opacity: 0; } }
.jam { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Conveyor Monitor{{if .Config.Team}} ({{.Config.Team}}){{end}}</h1>

<p><span class="digit">{{.Digit}}</span> <span class="led {{.LEDClass}}" title="{{.Color}}"></span></p>

<h2>State</h2>
<table>
<tr><th>Status</th><td{{if .Latched}} class="jam"{{end}}>{{.Status}}</td></tr>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Menu</th><td>{{.Stage}}{{if .Paused}} (paused){{end}}</td></tr>
<tr><th>Speed</th><td>{{printf "%.2f" .Speed}} m/s</td></tr>
<tr><th>Expected interval</th><td>{{if .Regulated}}{{seconds .Expected}}{{else}}calibrating{{end}}</td></tr>
{{if .Latched}}<tr><th>Jam reason</th><td class="jam">{{.Reason}}</td></tr>
<tr><th>Acknowledgement</th><td>{{.AckPresses}} press(es)</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Bottles</th><td>{{.Counts.Bottles}}</td></tr>
<tr><th>Jams</th><td>{{.Counts.Jams}}</td></tr>
<tr><th>Cleared</th><td>{{.Counts.Clears}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Telemetry</th><td>{{.Config.PublishMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/history.json">Jam history</a></p>
</body>
</html>
`
