package service

// State describes where the managed aria2 service is in its lifecycle.
type State string

const (
	StateNotInstalled State = "not_installed"
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	// StateRunningDegraded is reported by Status when the unit is active
	// but the RPC endpoint does not answer. It is never a resting state of
	// the manager itself.
	StateRunningDegraded State = "running_degraded"
	StateStopping        State = "stopping"
	StateFailed          State = "failed"
)

// Status is a point-in-time view of the managed service, combining the unit
// file, systemd's opinion, the process, and an RPC liveness probe.
type Status struct {
	State         State  `json:"state"`
	Installed     bool   `json:"installed"`
	Enabled       bool   `json:"enabled"`
	Active        bool   `json:"active"`
	Degraded      bool   `json:"degraded"`
	PID           int32  `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	RSSBytes      uint64 `json:"rss_bytes,omitempty"`
	Version       string `json:"version,omitempty"`
	UnitName      string `json:"unit_name"`
	Endpoint      string `json:"endpoint"`
	ProbeError    string `json:"probe_error,omitempty"`
}

// InstallResult reports what Install wrote and whether it had to mint a
// fresh RPC secret.
type InstallResult struct {
	UnitPath        string `json:"unit_path"`
	ConfPath        string `json:"conf_path"`
	BinaryPath      string `json:"binary_path"`
	Secret          string `json:"-"`
	SecretGenerated bool   `json:"secret_generated"`
}
