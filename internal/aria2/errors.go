package aria2

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnreachable marks transport failures: refused connections, DNS
	// errors, broken sockets.
	ErrUnreachable = errors.New("aria2: endpoint unreachable")
	// ErrTimeout marks calls that exceeded the RPC deadline.
	ErrTimeout = errors.New("aria2: call timed out")
	// ErrUnauthorized marks calls rejected because of a wrong or missing
	// RPC secret.
	ErrUnauthorized = errors.New("aria2: authentication rejected")
)

// RemoteError carries a structured JSON-RPC failure returned by the daemon.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("aria2: %s failed: code %d: %s", e.Method, e.Code, e.Message)
}

// ErrorKind buckets client errors for logging and health decisions.
func ErrorKind(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "auth"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "transport"
	case errors.As(err, &remote):
		return "remote"
	default:
		return "unknown"
	}
}

// IsGIDNotFound reports whether err is the daemon saying a download no longer
// exists. aria2 forgets stopped results on restart, so callers treat this as
// "task disappeared" rather than a hard failure.
func IsGIDNotFound(err error) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	return strings.Contains(remote.Message, "is not found")
}
