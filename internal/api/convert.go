package api

import (
	"time"

	"haul/internal/aria2"
	"haul/internal/deps"
	"haul/internal/ledger"
	"haul/internal/service"
)

// FromTask converts an aria2 task to its API representation. File entries
// are only attached when includeFiles is set; list views stay lean.
func FromTask(task aria2.Task, includeFiles bool) DownloadTask {
	dto := DownloadTask{
		GID:             task.GID,
		Name:            aria2.DisplayName(task),
		Status:          task.Status,
		TotalBytes:      task.TotalLength,
		CompletedBytes:  task.CompletedLength,
		DownloadSpeed:   task.DownloadSpeed,
		UploadSpeed:     task.UploadSpeed,
		ProgressPercent: task.ProgressPercent(),
		ETASeconds:      int64(task.ETA() / time.Second),
		Connections:     task.Connections,
		Dir:             task.Dir,
		InfoHash:        task.InfoHash,
	}
	if task.Status == aria2.StatusError {
		dto.ErrorCode = task.ErrorCode
		dto.ErrorMessage = task.ErrorMessage
	}
	if includeFiles {
		dto.Files = FromFiles(task.Files)
	}
	return dto
}

// FromTasks converts a slice of aria2 tasks into API DTOs.
func FromTasks(tasks []aria2.Task) []DownloadTask {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]DownloadTask, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task, false))
	}
	return out
}

// FromFiles converts aria2 file entries into API DTOs. The first URI of each
// entry is carried along for display.
func FromFiles(files []aria2.File) []TaskFile {
	if len(files) == 0 {
		return nil
	}
	out := make([]TaskFile, 0, len(files))
	for _, file := range files {
		dto := TaskFile{
			Index:          file.Index,
			Path:           file.Path,
			Length:         file.Length,
			CompletedBytes: file.CompletedLength,
			Selected:       file.IsSelected(),
		}
		if len(file.URIs) > 0 {
			dto.URI = file.URIs[0].URI
		}
		out = append(out, dto)
	}
	return out
}

// FromUploadJob converts a ledger job row to its API representation.
func FromUploadJob(job *ledger.UploadJob) UploadJob {
	if job == nil {
		return UploadJob{}
	}
	return UploadJob{
		ID:            job.ID,
		GID:           job.GID,
		Backend:       job.Backend,
		State:         string(job.State),
		Attempts:      job.Attempts,
		LastError:     job.LastError,
		NextAttemptAt: FormatTime(job.NextAttemptAt),
		CreatedAt:     FormatTime(job.CreatedAt),
		UpdatedAt:     FormatTime(job.UpdatedAt),
	}
}

// FromUploadJobs converts a slice of ledger job rows into API DTOs.
func FromUploadJobs(jobs []*ledger.UploadJob) []UploadJob {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]UploadJob, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromUploadJob(job))
	}
	return out
}

// FromEvent converts a ledger event to its API representation.
func FromEvent(event *ledger.Event) DownloadEvent {
	if event == nil {
		return DownloadEvent{}
	}
	return DownloadEvent{
		GID:          event.GID,
		Kind:         string(event.Kind),
		Name:         event.Name,
		Files:        append([]string(nil), event.Files...),
		TotalBytes:   event.TotalBytes,
		ErrorCode:    event.ErrorCode,
		ErrorMessage: event.ErrorMessage,
		ObservedAt:   FormatTime(event.ObservedAt),
	}
}

// FromEvents converts a slice of ledger events into API DTOs.
func FromEvents(events []*ledger.Event) []DownloadEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]DownloadEvent, 0, len(events))
	for _, event := range events {
		if event == nil {
			continue
		}
		out = append(out, FromEvent(event))
	}
	return out
}

// FromServiceStatus converts a managed service view to its API representation.
func FromServiceStatus(status service.Status) ServiceStatus {
	return ServiceStatus{
		State:         string(status.State),
		Installed:     status.Installed,
		Enabled:       status.Enabled,
		Active:        status.Active,
		Degraded:      status.Degraded,
		PID:           status.PID,
		UptimeSeconds: status.UptimeSeconds,
		RSSBytes:      status.RSSBytes,
		Version:       status.Version,
		UnitName:      status.UnitName,
		Endpoint:      status.Endpoint,
		ProbeError:    status.ProbeError,
	}
}

// FromDependencies converts binary check results into API DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
			Path:        status.Path,
		})
	}
	return out
}

// FromStats combines aria2 global counters with ledger aggregates.
func FromStats(global aria2.GlobalStat, stats ledger.Stats) StatsSnapshot {
	snapshot := StatsSnapshot{
		Transfer: TransferTotals{
			DownloadSpeed:   global.DownloadSpeed,
			UploadSpeed:     global.UploadSpeed,
			NumActive:       global.NumActive,
			NumWaiting:      global.NumWaiting,
			NumStopped:      global.NumStopped,
			NumStoppedTotal: global.NumStoppedTotal,
		},
		Events: make(map[string]int, len(stats.Events)),
		Jobs:   make(map[string]int, len(stats.Jobs)),
	}
	for kind, count := range stats.Events {
		snapshot.Events[string(kind)] = count
	}
	for state, count := range stats.Jobs {
		snapshot.Jobs[string(state)] = count
	}
	return snapshot
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
