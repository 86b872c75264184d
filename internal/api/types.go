package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DownloadTask describes one aria2 download in a transport-friendly format.
type DownloadTask struct {
	GID             string     `json:"gid"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	TotalBytes      int64      `json:"total_bytes"`
	CompletedBytes  int64      `json:"completed_bytes"`
	DownloadSpeed   int64      `json:"download_speed"`
	UploadSpeed     int64      `json:"upload_speed"`
	ProgressPercent float64    `json:"progress_percent"`
	ETASeconds      int64      `json:"eta_seconds"`
	Connections     int        `json:"connections"`
	Dir             string     `json:"dir,omitempty"`
	InfoHash        string     `json:"info_hash,omitempty"`
	ErrorCode       int        `json:"error_code,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Files           []TaskFile `json:"files,omitempty"`
}

// TaskFile describes one file entry of a download.
type TaskFile struct {
	Index          int    `json:"index"`
	Path           string `json:"path"`
	Length         int64  `json:"length"`
	CompletedBytes int64  `json:"completed_bytes"`
	Selected       bool   `json:"selected"`
	URI            string `json:"uri,omitempty"`
}

// UploadJob describes one backend delivery of a completed download.
type UploadJob struct {
	ID            string `json:"id"`
	GID           string `json:"gid"`
	Backend       string `json:"backend"`
	State         string `json:"state"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"last_error,omitempty"`
	NextAttemptAt string `json:"next_attempt_at,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// DownloadEvent describes a terminal download observation from the ledger.
type DownloadEvent struct {
	GID          string   `json:"gid"`
	Kind         string   `json:"kind"`
	Name         string   `json:"name"`
	Files        []string `json:"files,omitempty"`
	TotalBytes   int64    `json:"total_bytes"`
	ErrorCode    int      `json:"error_code,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	ObservedAt   string   `json:"observed_at,omitempty"`
}

// ServiceStatus mirrors the managed aria2 service view for API consumers.
type ServiceStatus struct {
	State         string `json:"state"`
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

// WatcherStatus reports completion watcher bookkeeping.
type WatcherStatus struct {
	Running     bool `json:"running"`
	Tracked     int  `json:"tracked"`
	Undelivered int  `json:"undelivered"`
}

// UploadsOverview summarizes upload coordinator state and job counts.
type UploadsOverview struct {
	Enabled  bool           `json:"enabled"`
	Backends []string       `json:"backends,omitempty"`
	Jobs     map[string]int `json:"jobs,omitempty"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Path        string `json:"path,omitempty"`
}

// TransferTotals carries daemon-wide transfer counters.
type TransferTotals struct {
	DownloadSpeed   int64 `json:"download_speed"`
	UploadSpeed     int64 `json:"upload_speed"`
	NumActive       int   `json:"num_active"`
	NumWaiting      int   `json:"num_waiting"`
	NumStopped      int   `json:"num_stopped"`
	NumStoppedTotal int   `json:"num_stopped_total"`
}

// StatsSnapshot combines live aria2 counters with ledger aggregates.
type StatsSnapshot struct {
	Transfer TransferTotals `json:"transfer"`
	Events   map[string]int `json:"events"`
	Jobs     map[string]int `json:"jobs"`
}
