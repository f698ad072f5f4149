package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/door-sentinel/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"mode": status.ModeString,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>{{.Config.DoorName}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: red; font-weight: bold; }
.closed { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.DoorName}} <small>(door {{.Config.DoorID}})</small></h1>

<h2>State</h2>
<table>
{{$state := stateOrUnknown (printf "%s" .Door.State)}}
<tr><th>Door</th><td id="door-state" class="{{if eq $state "OPEN"}}open{{else if eq $state "CLOSED"}}closed{{else}}unknown{{end}}">{{$state}}</td></tr>
<tr><th>Siren</th><td class="{{if .Door.SirenActive}}open{{else}}closed{{end}}">{{if .Door.SirenActive}}sounding{{else}}silent{{end}}</td></tr>
</table>

<h2>Delivery</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if .Door.Online}}connected{{else}}disconnected{{end}}">{{mode .Door.Online}}</td></tr>
<tr><th>Buffered openings</th><td>{{.Door.BufferDepth}}{{if .Door.BufferOverflowed}} (overflowed){{end}}</td></tr>
<tr><th>Ingest</th><td>{{.Config.IngestURL}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Event socket</th><td class="{{if .SocketConnected}}connected{{else}}disconnected{{end}}">{{if .SocketConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .Config.Broker}}{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Opened</th><td>{{.Door.Counts.Opened}}</td></tr>
<tr><th>Closed</th><td>{{.Door.Counts.Closed}}</td></tr>
<tr><th>Siren activations</th><td>{{.Door.SirenActivations}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Siren</th><td>{{.Config.SirenMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
