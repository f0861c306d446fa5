package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/hrm-bridge/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Heart Rate Bridge</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.bpm { font-size: 1.6em; font-weight: bold; }
.tracking { color: green; font-weight: bold; }
.searching { color: orange; }
.closed { color: red; }
.unknown { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Heart Rate Bridge{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Sensor</h2>
<table>
<tr><th>Heart Rate</th><td id="bpm" class="bpm">{{if .HeartRateValid}}{{.HeartRate}} bpm{{else}}&mdash;{{end}}</td></tr>
<tr><th>Beat Count</th><td id="beats">{{.BeatCount}}</td></tr>
<tr><th>R-R Interval</th><td id="rr">{{if .RRIntervalMs}}{{.RRIntervalMs}} ms{{else}}&mdash;{{end}}</td></tr>
<tr><th>Channel</th><td class="{{if eq (stateOrUnknown .ChannelState) "TRACKING"}}tracking{{else if eq (stateOrUnknown .ChannelState) "SEARCHING"}}searching{{else if eq (stateOrUnknown .ChannelState) "CLOSED"}}closed{{else}}unknown{{end}}">{{stateOrUnknown .ChannelState}}</td></tr>
{{if .Device}}<tr><th>Monitor</th><td>#{{.Device.Number}} (type {{.Device.TransmissionType}})</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} &mdash; {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Serial</th><td>{{.Config.SerialDevice}}</td></tr>
<tr><th>Paired Device</th><td>{{if eq .Config.DeviceNumber 0}}wildcard{{else}}#{{.Config.DeviceNumber}}{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "fitness/hrm/bridge/samples";
  var dot = document.getElementById("live-dot");
  var bpmEl = document.getElementById("bpm");
  var beatsEl = document.getElementById("beats");
  var rrEl = document.getElementById("rr");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.heartrate) {
        bpmEl.textContent = msg.heartrate.bpm + " bpm";
        beatsEl.textContent = msg.heartrate.beat_count;
        rrEl.textContent = msg.heartrate.rr_interval_ms ? msg.heartrate.rr_interval_ms + " ms" : "—";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
