package logging

import "strings"

// FormatSubject builds the task/backend subject string used in console output.
func FormatSubject(gid, backend string) string {
	gid = strings.TrimSpace(gid)
	backend = strings.TrimSpace(backend)
	switch {
	case gid != "" && backend != "":
		return "Task " + gid + " (" + backend + ")"
	case gid != "":
		return "Task " + gid
	case backend != "":
		return backend
	default:
		return ""
	}
}
