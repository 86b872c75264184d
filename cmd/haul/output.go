package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"haul/internal/ipc"
	"haul/internal/textutil"
)

const nameColumnWidth = 40

func buildTaskRows(tasks []ipc.DownloadTask) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		name := strings.TrimSpace(task.Name)
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			task.GID,
			textutil.Truncate(name, nameColumnWidth),
			task.Status,
			fmt.Sprintf("%.1f%%", task.ProgressPercent),
			textutil.HumanBytes(task.TotalBytes),
			textutil.HumanSpeed(task.DownloadSpeed),
			formatETA(task.ETASeconds),
		})
	}
	return rows
}

func buildFileRows(files []ipc.TaskFile) [][]string {
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		rows = append(rows, []string{
			strconv.Itoa(file.Index),
			file.Path,
			textutil.HumanBytes(file.Length),
			textutil.HumanBytes(file.CompletedBytes),
			yesNo(file.Selected),
		})
	}
	return rows
}

func buildUploadRows(jobs []ipc.UploadJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.GID,
			job.Backend,
			job.State,
			strconv.Itoa(job.Attempts),
			job.UpdatedAt,
			textutil.Truncate(job.LastError, nameColumnWidth),
		})
	}
	return rows
}

func buildEventRows(events []ipc.DownloadEvent) [][]string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		detail := event.ErrorMessage
		if detail == "" && len(event.Files) > 0 {
			detail = fmt.Sprintf("%d file(s)", len(event.Files))
		}
		rows = append(rows, []string{
			event.ObservedAt,
			event.GID,
			event.Kind,
			textutil.Truncate(event.Name, nameColumnWidth),
			textutil.HumanBytes(event.TotalBytes),
			textutil.Truncate(detail, nameColumnWidth),
		})
	}
	return rows
}

// buildCountRows renders a name-to-count map in stable order.
func buildCountRows(counts map[string]int) [][]string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(counts[name])})
	}
	return rows
}

func formatETA(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	return textutil.HumanDuration(time.Duration(seconds) * time.Second)
}

// serviceStatusLines renders the aria2 unit and endpoint state, shared by
// `haul status` and `haul service status`.
func serviceStatusLines(status ipc.ServiceStatus, colorize bool) []string {
	kind, message := serviceStateMessage(status)
	lines := []string{renderStatusLine("aria2 service", kind, message, colorize)}

	if status.Installed {
		lines = append(lines, renderStatusLine("Unit", statusInfo, fmt.Sprintf("%s (enabled: %s)", status.UnitName, yesNo(status.Enabled)), colorize))
	}
	if status.Active {
		if status.ProbeError != "" {
			lines = append(lines, renderStatusLine("RPC endpoint", statusError, fmt.Sprintf("%s (%s)", status.Endpoint, status.ProbeError), colorize))
		} else {
			lines = append(lines, renderStatusLine("RPC endpoint", statusOK, status.Endpoint, colorize))
		}
	}
	return lines
}

func serviceStateMessage(status ipc.ServiceStatus) (statusKind, string) {
	switch status.State {
	case "running":
		detail := fmt.Sprintf("Running (pid %d", status.PID)
		if status.Version != "" {
			detail += ", aria2 " + status.Version
		}
		if status.RSSBytes > 0 {
			detail += ", rss " + textutil.HumanBytes(int64(status.RSSBytes))
		}
		if status.UptimeSeconds > 0 {
			detail += ", up " + textutil.HumanDuration(time.Duration(status.UptimeSeconds)*time.Second)
		}
		return statusOK, detail + ")"
	case "running_degraded":
		detail := fmt.Sprintf("Running (pid %d) but RPC is unreachable", status.PID)
		if status.ProbeError != "" {
			detail = fmt.Sprintf("%s: %s", detail, status.ProbeError)
		}
		return statusWarn, detail
	case "starting":
		return statusInfo, "Starting"
	case "stopping":
		return statusInfo, "Stopping"
	case "stopped":
		return statusWarn, "Stopped (run `haul service start`)"
	case "failed":
		return statusError, "Failed (check `haul service logs`)"
	case "not_installed":
		return statusWarn, "Not installed (run `haul service install`)"
	default:
		return statusInfo, status.State
	}
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
