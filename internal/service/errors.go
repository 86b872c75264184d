package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInstalled is returned by Install when the unit file exists.
	ErrAlreadyInstalled = errors.New("service already installed")
	// ErrNotInstalled is returned by lifecycle operations that need an
	// installed unit.
	ErrNotInstalled = errors.New("service not installed")
	// ErrStartTimeout is returned when aria2 never answers the RPC probe
	// within the configured start window.
	ErrStartTimeout = errors.New("service start timed out")
)

// LifecycleError reports an operation attempted from an incompatible state,
// such as uninstalling a running service.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cannot %s service while %s", e.Op, e.State)
}
