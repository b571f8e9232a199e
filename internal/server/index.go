package server

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/seattlerb/upnp/pkg/device"
)

// indexTmpl renders the human-readable root page listing the hosted
// devices and their services.
var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Root.FriendlyName}}</title></head>
<body>
<h1>{{.Root.FriendlyName}}</h1>
<p>{{.Root.Manufacturer}} {{.Root.ModelName}} &mdash; <a href="/description">description</a></p>
{{range .Devices}}
<h2>{{.Device.FriendlyName}} ({{.Device.Type}})</h2>
<ul>
{{range .Services}}
<li>{{.Type}}: <a href="{{.SCPDURL}}">SCPD</a>, control at {{.ControlURL}}</li>
{{end}}
</ul>
{{end}}
</body>
</html>
`))

type indexEntry struct {
	Device   *device.Device
	Services []*device.Service
}

type indexData struct {
	Root    *device.Device
	Devices []indexEntry
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Root: s.root}
	collectIndex(s.root, &data.Devices)

	w.Header().Set("Content-Type", "text/html")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Warn("index rendering failed", zap.Error(err))
	}
}

func collectIndex(d *device.Device, out *[]indexEntry) {
	*out = append(*out, indexEntry{Device: d, Services: d.Services()})
	for _, child := range d.SubDevices() {
		collectIndex(child, out)
	}
}
