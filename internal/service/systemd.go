package service

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Systemd is the slice of systemctl behavior the manager depends on.
type Systemd interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Enable(ctx context.Context, unit string) error
	Disable(ctx context.Context, unit string) error
	DaemonReload(ctx context.Context) error
	ActiveState(ctx context.Context, unit string) (string, error)
	IsEnabled(ctx context.Context, unit string) (bool, error)
	MainPID(ctx context.Context, unit string) (int32, error)
}

// CommandRunner executes systemctl with the given arguments and returns its
// combined output. Tests substitute a scripted runner.
type CommandRunner func(ctx context.Context, args ...string) (string, error)

// SystemdClient drives the caller's user-scope systemd instance through
// the systemctl binary.
type SystemdClient struct {
	run CommandRunner
}

// NewSystemd returns a client that shells out to systemctl --user.
func NewSystemd() *SystemdClient {
	return &SystemdClient{run: runSystemctl}
}

// NewSystemdWithRunner returns a client backed by a custom runner.
func NewSystemdWithRunner(run CommandRunner) *SystemdClient {
	return &SystemdClient{run: run}
}

var unitNamePattern = regexp.MustCompile(`^[a-zA-Z0-9:._@-]+$`)

func validateUnitName(unit string) error {
	if unit == "" {
		return fmt.Errorf("unit name is empty")
	}
	if !unitNamePattern.MatchString(unit) {
		return fmt.Errorf("invalid unit name %q", unit)
	}
	return nil
}

func runSystemctl(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "systemctl", append([]string{"--user"}, args...)...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("systemctl --user %s: %w", strings.Join(args, " "), err)
	}
	return output, nil
}

func (s *SystemdClient) unitCommand(ctx context.Context, verb, unit string) error {
	if err := validateUnitName(unit); err != nil {
		return err
	}
	output, err := s.run(ctx, verb, unit)
	if err != nil {
		if output != "" {
			return fmt.Errorf("%s %s: %s: %w", verb, unit, output, err)
		}
		return fmt.Errorf("%s %s: %w", verb, unit, err)
	}
	return nil
}

func (s *SystemdClient) Start(ctx context.Context, unit string) error {
	return s.unitCommand(ctx, "start", unit)
}

func (s *SystemdClient) Stop(ctx context.Context, unit string) error {
	return s.unitCommand(ctx, "stop", unit)
}

func (s *SystemdClient) Enable(ctx context.Context, unit string) error {
	return s.unitCommand(ctx, "enable", unit)
}

func (s *SystemdClient) Disable(ctx context.Context, unit string) error {
	return s.unitCommand(ctx, "disable", unit)
}

func (s *SystemdClient) DaemonReload(ctx context.Context) error {
	if _, err := s.run(ctx, "daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	return nil
}

// ActiveState returns systemd's activation state for the unit, such as
// "active", "inactive", "failed", or "activating". is-active exits nonzero
// for anything but "active" while still printing the state, so command
// failure with output is not an error here.
func (s *SystemdClient) ActiveState(ctx context.Context, unit string) (string, error) {
	if err := validateUnitName(unit); err != nil {
		return "", err
	}
	output, err := s.run(ctx, "is-active", unit)
	if output != "" {
		return output, nil
	}
	if err != nil {
		return "", fmt.Errorf("is-active %s: %w", unit, err)
	}
	return "unknown", nil
}

func (s *SystemdClient) IsEnabled(ctx context.Context, unit string) (bool, error) {
	if err := validateUnitName(unit); err != nil {
		return false, err
	}
	output, _ := s.run(ctx, "is-enabled", unit)
	return output == "enabled", nil
}

// MainPID reports the unit's main process id, or 0 when the unit is not
// running.
func (s *SystemdClient) MainPID(ctx context.Context, unit string) (int32, error) {
	if err := validateUnitName(unit); err != nil {
		return 0, err
	}
	output, err := s.run(ctx, "show", "--property", "MainPID", "--value", unit)
	if err != nil {
		return 0, fmt.Errorf("show %s: %w", unit, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil {
		return 0, fmt.Errorf("parse MainPID %q: %w", output, err)
	}
	return int32(pid), nil
}
