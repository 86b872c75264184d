package logging

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	"name",
	"status",
	"uri",
	FieldProgressPercent,
	"completed_bytes",
	"total_bytes",
	"download_speed_bytes",
	"upload_speed_bytes",
	"eta",
	"error_message",
	FieldErrorCode,
	FieldErrorHint,
	"attempt",
	"max_attempts",
	"next_attempt_in",
	"remote_path",
	"bucket",
	"object_key",
	"unit",
	"active_state",
	"pid",
	"version",
	"rpc_port",
	// Global stat summary fields
	"active",
	"waiting",
	"stopped",
	"file_count",
	"connections",
	"size_bytes",
	"duration",
	"uptime",
	"deleted_files",
	"reason",
}

// selectInfoFields returns formatted info-level fields and a count of hidden entries.
// limit=0 means no limit. includeDebug controls whether debug-only keys are allowed.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	if limit < 0 {
		limit = 0
	}
	used := make([]bool, len(attrs))
	formatted := make([]string, len(attrs))
	formattedSet := make([]bool, len(attrs))
	ensureValue := func(idx int) string {
		if !formattedSet[idx] {
			formatted[idx] = formatValueForKey(attrs[idx].key, attrs[idx].value)
			formattedSet[idx] = true
		}
		return formatted[idx]
	}
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0

	for _, key := range infoHighlightKeys {
		if limit > 0 && len(result) >= limit {
			break
		}
		for idx, attr := range attrs {
			if used[idx] || attr.key != key {
				continue
			}
			used[idx] = true
			if skipInfoKey(attr.key) {
				break
			}
			if !includeDebug && isDebugOnlyKey(attr.key) {
				hidden++
				break
			}
			val := ensureValue(idx)
			if !includeDebug && shouldHideInfoValue(attr.key, val) {
				hidden++
				break
			}
			result = append(result, infoField{label: displayLabel(attr.key), value: val})
			break
		}
	}

	for idx, attr := range attrs {
		if used[idx] {
			continue
		}
		used[idx] = true
		if skipInfoKey(attr.key) {
			continue
		}
		if !includeDebug && isDebugOnlyKey(attr.key) {
			hidden++
			continue
		}
		val := ensureValue(idx)
		if !includeDebug && shouldHideInfoValue(attr.key, val) {
			hidden++
			continue
		}
		if limit <= 0 || len(result) < limit {
			result = append(result, infoField{label: displayLabel(attr.key), value: val})
		} else if limit > 0 {
			hidden++
		}
	}

	return result, hidden
}

// formatValueForKey applies smart formatting based on the key name.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()

	// Speeds before plain byte sizes since both share the _bytes suffix.
	if isSpeedKey(key) && (v.Kind() == slog.KindInt64 || v.Kind() == slog.KindUint64) {
		return formatBytes(intFromValue(v)) + "/s"
	}

	if isByteSizeKey(key) && (v.Kind() == slog.KindInt64 || v.Kind() == slog.KindUint64) {
		return formatBytes(intFromValue(v))
	}

	if isDurationKey(key) && v.Kind() == slog.KindDuration {
		return formatDurationHuman(v.Duration())
	}

	if isPercentKey(key) && v.Kind() == slog.KindFloat64 {
		return formatPercent(v.Float64())
	}

	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}

	value := formatValue(v)
	if key == "error" || key == "error_message" {
		value = truncateErrorValue(value)
	}
	return value
}

func intFromValue(v slog.Value) int64 {
	if v.Kind() == slog.KindUint64 {
		return int64(v.Uint64())
	}
	return v.Int64()
}

// isSpeedKey returns true if the key represents a transfer rate in bytes per second.
func isSpeedKey(key string) bool {
	return strings.HasSuffix(key, "_speed_bytes") || key == "speed_bytes"
}

// isByteSizeKey returns true if the key represents a byte size.
func isByteSizeKey(key string) bool {
	return strings.HasSuffix(key, "_bytes") ||
		strings.HasSuffix(key, "_size") ||
		key == "size"
}

// isDurationKey returns true if the key represents a duration.
func isDurationKey(key string) bool {
	return strings.HasSuffix(key, "_duration") ||
		strings.HasSuffix(key, "_elapsed") ||
		strings.HasSuffix(key, "_latency") ||
		key == "elapsed" ||
		key == "duration" ||
		key == "uptime" ||
		key == "eta" ||
		key == "backoff" ||
		key == "next_attempt_in"
}

// isPercentKey returns true if the key represents a percentage.
func isPercentKey(key string) bool {
	return strings.HasSuffix(key, "_percent") || key == FieldProgressPercent
}

func truncateErrorValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	const maxLen = 200
	if len(value) > maxLen {
		value = value[:maxLen] + "…"
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldGID, FieldBackend, "component":
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	if key == "" {
		return true
	}
	switch key {
	case FieldCorrelationID,
		"rpc_method",
		"socket",
		"user_agent",
		"piece_length",
		"num_pieces",
		"info_hash",
		"bitfield",
		"seeder",
		"verified_length",
		"connections_per_server":
		return true
	}
	if strings.Contains(key, "correlation") {
		return true
	}
	if strings.HasSuffix(key, "_id") {
		return true
	}
	if key != "remote_path" && (strings.Contains(key, "_path") || strings.Contains(key, "_dir")) {
		return true
	}
	return false
}

func shouldHideInfoValue(key, value string) bool {
	switch key {
	case "error_message", "error", "uri", "reason":
		return false
	}
	return len(value) > 120
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorCode:
		return "Error Code"
	case FieldErrorHint:
		return "Hint"
	case FieldGID:
		return "Task"
	case FieldProgressPercent:
		return "Progress"
	case "name":
		return "Name"
	case "status":
		return "Status"
	case "uri":
		return "URI"
	case "eta":
		return "ETA"
	case "completed_bytes":
		return "Done"
	case "total_bytes", "size_bytes":
		return "Size"
	case "download_speed_bytes":
		return "Speed"
	case "upload_speed_bytes":
		return "Upload Speed"
	case "error_message":
		return "Error"
	case "attempt":
		return "Attempt"
	case "max_attempts":
		return "Attempt Limit"
	case "next_attempt_in":
		return "Next Attempt"
	case "remote_path":
		return "Remote Path"
	case "object_key":
		return "Key"
	case "active_state":
		return "State"
	case "pid":
		return "PID"
	case "rpc_port":
		return "RPC Port"
	case "file_count":
		return "Files"
	case "deleted_files":
		return "Deleted"
	case "active":
		return "Active"
	case "waiting":
		return "Waiting"
	case "stopped":
		return "Stopped"
	case "uptime":
		return "Uptime"
	case "reason":
		return "Reason"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	if key == "" {
		return ""
	}
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
	}
	for i, part := range parts {
		parts[i] = capitalizeASCII(part)
	}
	return strings.Join(parts, " ")
}

func capitalizeASCII(value string) string {
	switch len(value) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(value)
	default:
		lower := strings.ToLower(value)
		return strings.ToUpper(lower[:1]) + lower[1:]
	}
}

func infoSummaryKey(component, gid string, attrs []kv) string {
	gid = strings.TrimSpace(gid)
	if gid == "" {
		if name := attrValue(attrs, "name"); name != "" {
			gid = "name:" + name
		} else if component != "" {
			gid = component
		}
	}
	return gid
}

func attrValue(attrs []kv, key string) string {
	for _, kv := range attrs {
		if kv.key == key {
			return attrString(kv.value)
		}
	}
	return ""
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	value := float64(n)
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	idx := -1
	for value >= unit && idx < len(units)-1 {
		value /= unit
		idx++
	}
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + units[idx]
}

func formatDurationHuman(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	total := int64(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	switch {
	case hours > 0:
		return strconv.FormatInt(hours, 10) + "h" + pad2(minutes) + "m"
	case minutes > 0:
		return strconv.FormatInt(minutes, 10) + "m" + pad2(seconds) + "s"
	default:
		return strconv.FormatInt(seconds, 10) + "s"
	}
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

func formatPercent(value float64) string {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}
