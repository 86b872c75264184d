package service

import (
	"bytes"
	"fmt"
	"text/template"
)

// confTemplate is the aria2 daemon configuration haul manages. RPC stays
// bound to localhost; remote exposure is out of scope for the rendered
// config and left to the operator.
const confTemplate = `# Managed by haul. 'haul service install' rewrites this file.
dir={{.DownloadDir}}
continue={{.ContinueDownloads}}
max-concurrent-downloads={{.MaxConcurrentDownloads}}
max-connection-per-server={{.MaxConnectionPerServer}}
split={{.Split}}
min-split-size=4M
file-allocation=none

input-file={{.SessionPath}}
save-session={{.SessionPath}}
save-session-interval=30

log={{.LogPath}}
log-level=notice
console-log-level=warn

enable-rpc=true
rpc-listen-all=false
rpc-listen-port={{.RPCPort}}
rpc-secret={{.RPCSecret}}
`

const unitTemplate = `[Unit]
Description=aria2 download daemon (managed by haul)
After=network.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} --conf-path={{.ConfPath}}
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

var (
	confTmpl = template.Must(template.New("aria2.conf").Parse(confTemplate))
	unitTmpl = template.Must(template.New("unit").Parse(unitTemplate))
)

// RenderConf produces the aria2.conf contents for a handle.
func RenderConf(h Handle) (string, error) {
	return renderTemplate(confTmpl, h)
}

// RenderUnit produces the systemd user unit contents for a handle. The
// handle's BinaryPath must already be resolved.
func RenderUnit(h Handle) (string, error) {
	if h.BinaryPath == "" {
		return "", fmt.Errorf("render unit: binary path not resolved")
	}
	return renderTemplate(unitTmpl, h)
}

func renderTemplate(tmpl *template.Template, h Handle) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, h); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
