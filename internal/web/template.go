package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/airocat/internal/status"
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
	"interval": func(ms int64) string {
		if ms == 0 {
			return "disabled"
		}
		return (time.Duration(ms) * time.Millisecond).String()
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Airocat</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.yes { color: green; font-weight: bold; }
.pending { color: orange; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Airocat</h1>

<h2>Readings</h2>
<table>
{{range .Readings}}<tr><th>{{.Caption}}</th><td>{{.Value}}</td><td class="{{if .Published}}yes{{else}}pending{{end}}">{{if .Published}}sent{{else}}pending{{end}}</td></tr>
{{else}}<tr><td>no readings yet</td></tr>
{{end}}</table>

<h2>Sensors</h2>
<table>
<tr><th>Stabilized</th><td id="stabilized" class="{{if .Stabilized}}yes{{else}}pending{{end}}">{{if .Stabilized}}yes{{else}}no{{end}}</td></tr>
<tr><th>Gas sensor</th><td id="fault" class="{{if .Fault}}fault{{else}}yes{{end}}">{{if .Fault}}{{.Fault}}{{else}}ok{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Base topic</th><td>{{.Config.BaseTopic}}</td></tr>
<tr><th>Discovery</th><td>{{if .Config.Discovery}}on{{else}}off{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Publishes</h2>
<table>
<tr><th>OK</th><td>{{.Publishes.OK}}</td></tr>
<tr><th>Failed</th><td>{{.Publishes.Failed}}</td></tr>
</table>
{{if .Recent}}
<table>
{{range .Recent}}<tr><td>{{clock .Time}}</td><td>{{.Topic}}</td><td>{{.Bytes}}B</td><td class="{{if .OK}}yes{{else}}fault{{end}}">{{if .OK}}ok{{else}}failed{{end}}</td></tr>
{{end}}</table>
{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{interval .Config.PollMs}}</td></tr>
<tr><th>Climate interval</th><td>{{interval .Config.ClimateIntervalMs}}</td></tr>
<tr><th>Gas interval</th><td>{{interval .Config.GasIntervalMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{interval .Config.HeartbeatMs}}</td></tr>
<tr><th>State persistence</th><td>{{if .Config.Persist}}on{{else}}off{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Newest publication first.
	recent := make([]status.Publication, len(snap.History))
	for i, p := range snap.History {
		recent[len(recent)-1-i] = p
	}

	data := struct {
		status.Snapshot
		Uptime time.Duration
		Recent []status.Publication
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Recent:   recent,
	}
	indexTmpl.Execute(w, data)
}
