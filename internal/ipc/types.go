package ipc

import "haul/internal/api"

// DownloadTask mirrors the API download DTO for IPC callers.
type DownloadTask = api.DownloadTask

// TaskFile mirrors the API file DTO for IPC callers.
type TaskFile = api.TaskFile

// UploadJob mirrors the API upload job DTO for IPC callers.
type UploadJob = api.UploadJob

// DownloadEvent mirrors the API event DTO for IPC callers.
type DownloadEvent = api.DownloadEvent

// ServiceStatus mirrors the API service DTO for IPC callers.
type ServiceStatus = api.ServiceStatus

// WatcherStatus mirrors the API watcher DTO for IPC callers.
type WatcherStatus = api.WatcherStatus

// UploadsOverview mirrors the API uploads DTO for IPC callers.
type UploadsOverview = api.UploadsOverview

// DependencyStatus mirrors the API dependency DTO for IPC callers.
type DependencyStatus = api.DependencyStatus

// StatsSnapshot mirrors the API stats DTO for IPC callers.
type StatsSnapshot = api.StatsSnapshot

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse identifies the answering daemon process.
type PingResponse struct {
	Running   bool   `json:"running"`
	PID       int    `json:"pid"`
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
}

// StatusRequest fetches full daemon status.
type StatusRequest struct{}

// StatusResponse aggregates daemon, service, watcher, and upload state.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	Version       string             `json:"version"`
	StartedAt     string             `json:"started_at"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	LedgerPath    string             `json:"ledger_path"`
	LockPath      string             `json:"lock_path"`
	SocketPath    string             `json:"socket_path"`
	Service       ServiceStatus      `json:"service"`
	ServiceError  string             `json:"service_error,omitempty"`
	Watcher       WatcherStatus      `json:"watcher"`
	Uploads       UploadsOverview    `json:"uploads"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// AddRequest queues downloads, one per URI.
type AddRequest struct {
	URIs   []string `json:"uris"`
	Dir    string   `json:"dir"`
	Out    string   `json:"out"`
	Paused bool     `json:"paused"`
}

// AddResponse returns the assigned gids in input order.
type AddResponse struct {
	GIDs []string `json:"gids"`
}

// AddTorrentRequest queues a download from raw torrent file contents.
type AddTorrentRequest struct {
	Torrent []byte `json:"torrent"`
	Dir     string `json:"dir"`
	Paused  bool   `json:"paused"`
}

// AddTorrentResponse returns the assigned gid.
type AddTorrentResponse struct {
	GID string `json:"gid"`
}

// ListRequest filters downloads by state: all, active, waiting, or stopped.
type ListRequest struct {
	Filter string `json:"filter"`
}

// ListResponse contains matching downloads.
type ListResponse struct {
	Tasks []DownloadTask `json:"tasks"`
}

// DescribeRequest fetches one download with its file list.
type DescribeRequest struct {
	GID string `json:"gid"`
}

// DescribeResponse contains a single download.
type DescribeResponse struct {
	Task DownloadTask `json:"task"`
}

// PauseRequest pauses one download, or all of them.
type PauseRequest struct {
	GID string `json:"gid"`
	All bool   `json:"all"`
}

// PauseResponse acknowledges the pause.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// ResumeRequest unpauses one download, or all of them.
type ResumeRequest struct {
	GID string `json:"gid"`
	All bool   `json:"all"`
}

// ResumeResponse acknowledges the resume.
type ResumeResponse struct {
	Resumed bool `json:"resumed"`
}

// RemoveRequest cancels a download.
type RemoveRequest struct {
	GID   string `json:"gid"`
	Force bool   `json:"force"`
}

// RemoveResponse acknowledges the removal.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// ForgetRequest drops a stopped download from aria2's result list.
type ForgetRequest struct {
	GID string `json:"gid"`
}

// ForgetResponse acknowledges the cleanup.
type ForgetResponse struct {
	Forgotten bool `json:"forgotten"`
}

// FilesRequest fetches the file list of a download.
type FilesRequest struct {
	GID string `json:"gid"`
}

// FilesResponse contains the download's files.
type FilesResponse struct {
	Files []TaskFile `json:"files"`
}

// StatsRequest fetches transfer and ledger statistics.
type StatsRequest struct{}

// StatsResponse contains combined statistics.
type StatsResponse struct {
	Stats StatsSnapshot `json:"stats"`
}

// ServiceInstallRequest installs the aria2 systemd unit.
type ServiceInstallRequest struct{}

// ServiceInstallResponse reports what the install wrote.
type ServiceInstallResponse struct {
	UnitPath        string `json:"unit_path"`
	ConfPath        string `json:"conf_path"`
	BinaryPath      string `json:"binary_path"`
	SecretGenerated bool   `json:"secret_generated"`
}

// ServiceStartRequest starts the aria2 unit.
type ServiceStartRequest struct{}

// ServiceStartResponse indicates whether the service came up.
type ServiceStartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// ServiceStopRequest stops the aria2 unit.
type ServiceStopRequest struct{}

// ServiceStopResponse indicates whether the service went down.
type ServiceStopResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// ServiceRestartRequest restarts the aria2 unit.
type ServiceRestartRequest struct{}

// ServiceRestartResponse indicates whether the restart completed.
type ServiceRestartResponse struct {
	Restarted bool   `json:"restarted"`
	Message   string `json:"message"`
}

// ServiceStatusRequest fetches aria2 unit and endpoint health.
type ServiceStatusRequest struct{}

// ServiceStatusResponse contains the service view.
type ServiceStatusResponse struct {
	Status ServiceStatus `json:"status"`
}

// ServiceUninstallRequest removes the aria2 unit. Purge also removes the
// generated configuration, session, and secret files.
type ServiceUninstallRequest struct {
	Purge bool `json:"purge"`
}

// ServiceUninstallResponse indicates whether the uninstall completed.
type ServiceUninstallResponse struct {
	Uninstalled bool   `json:"uninstalled"`
	Message     string `json:"message"`
}

// ServiceLogsRequest fetches the tail of the aria2 log file.
type ServiceLogsRequest struct {
	Lines int `json:"lines"`
}

// ServiceLogsResponse contains log lines, oldest first.
type ServiceLogsResponse struct {
	Lines []string `json:"lines"`
}

// ServiceClearLogsRequest truncates the aria2 log file.
type ServiceClearLogsRequest struct{}

// ServiceClearLogsResponse acknowledges the truncation.
type ServiceClearLogsResponse struct {
	Cleared bool `json:"cleared"`
}

// UploadsRequest lists upload jobs, optionally filtered by state.
type UploadsRequest struct {
	States []string `json:"states"`
}

// UploadsResponse contains matching jobs, newest first.
type UploadsResponse struct {
	Jobs []UploadJob `json:"jobs"`
}

// RetryUploadRequest re-queues a failed upload job.
type RetryUploadRequest struct {
	ID string `json:"id"`
}

// RetryUploadResponse contains the re-queued job.
type RetryUploadResponse struct {
	Job UploadJob `json:"job"`
}

// EventsRequest fetches recent download events.
type EventsRequest struct {
	Limit int `json:"limit"`
}

// EventsResponse contains events, newest first.
type EventsResponse struct {
	Events []DownloadEvent `json:"events"`
}

// LogTailRequest fetches daemon log lines based on offset and follow
// semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown request.
type ShutdownResponse struct {
	ShuttingDown bool `json:"shutting_down"`
}
