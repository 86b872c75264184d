package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"haul/internal/aria2"
	"haul/internal/config"
	"haul/internal/deps"
	"haul/internal/logging"
	"haul/internal/logs"
)

// HealthClient is the slice of the aria2 RPC client the manager uses for
// liveness probes and graceful shutdown.
type HealthClient interface {
	GetVersion(ctx context.Context) (aria2.VersionInfo, error)
	SaveSession(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Manager drives the aria2 systemd user unit through its lifecycle.
// Lifecycle operations serialize on an operation mutex; the cached state is
// guarded separately so Status and IPC reads never wait behind a slow
// systemctl call.
type Manager struct {
	cfg     *config.Config
	handle  Handle
	systemd Systemd
	client  HealthClient
	logger  *slog.Logger

	opMu sync.Mutex

	mu    sync.Mutex
	state State
}

// NewManager wires a manager from configuration and collaborators. A nil
// logger disables logging.
func NewManager(cfg *config.Config, client HealthClient, systemd Systemd, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		handle:  NewHandle(cfg),
		systemd: systemd,
		client:  client,
		logger:  logging.NewComponentLogger(logger, "service"),
		state:   StateNotInstalled,
	}
}

// Handle exposes the resolved paths and endpoint the manager operates on.
func (m *Manager) Handle() Handle {
	return m.handle
}

// State returns the manager's last observed lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// Install writes the aria2 configuration and systemd user unit, generating
// and persisting an RPC secret when the configuration does not provide one.
// The unit is enabled but not started.
func (m *Manager) Install(ctx context.Context) (InstallResult, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	result := InstallResult{ConfPath: m.handle.ConfPath}

	binaryPath, err := deps.ResolveBinary(m.handle.Binary)
	if err != nil {
		return result, err
	}
	m.handle.BinaryPath = binaryPath
	result.BinaryPath = binaryPath

	unitPath, err := m.handle.UnitPath()
	if err != nil {
		return result, err
	}
	result.UnitPath = unitPath
	if _, err := os.Stat(unitPath); err == nil {
		return result, ErrAlreadyInstalled
	} else if !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("stat unit file: %w", err)
	}

	if err := m.cfg.EnsureDirectories(); err != nil {
		return result, err
	}

	if m.handle.RPCSecret == "" {
		secret, err := GenerateSecret()
		if err != nil {
			return result, err
		}
		if err := os.WriteFile(m.handle.SecretPath, []byte(secret+"\n"), 0o600); err != nil {
			return result, fmt.Errorf("persist rpc secret: %w", err)
		}
		m.handle.RPCSecret = secret
		result.SecretGenerated = true
	}
	result.Secret = m.handle.RPCSecret

	conf, err := RenderConf(m.handle)
	if err != nil {
		return result, err
	}
	if err := writeFileWithParents(m.handle.ConfPath, []byte(conf), 0o600); err != nil {
		return result, fmt.Errorf("write aria2 conf: %w", err)
	}
	if err := touchFile(m.handle.SessionPath); err != nil {
		return result, fmt.Errorf("create session file: %w", err)
	}

	unit, err := RenderUnit(m.handle)
	if err != nil {
		return result, err
	}
	if err := writeFileWithParents(unitPath, []byte(unit), 0o644); err != nil {
		return result, fmt.Errorf("write unit file: %w", err)
	}

	if err := m.systemd.DaemonReload(ctx); err != nil {
		return result, err
	}
	if err := m.systemd.Enable(ctx, m.handle.UnitName); err != nil {
		return result, err
	}

	m.setState(StateStopped)
	m.logger.Info("service installed",
		logging.String("unit", m.handle.UnitName),
		logging.String("conf", m.handle.ConfPath),
		logging.Bool("secret_generated", result.SecretGenerated))
	return result, nil
}

// Start launches the unit and waits until the RPC endpoint answers. It is a
// no-op when the service is already running and healthy.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	installed, err := m.unitInstalled()
	if err != nil {
		return err
	}
	if !installed {
		return ErrNotInstalled
	}

	if state, err := m.systemd.ActiveState(ctx, m.handle.UnitName); err == nil && state == "active" {
		if m.probe(ctx) == nil {
			m.setState(StateRunning)
			m.logger.Info("service already running", logging.String("unit", m.handle.UnitName))
			return nil
		}
	}

	m.setState(StateStarting)
	if err := m.systemd.Start(ctx, m.handle.UnitName); err != nil {
		m.setState(StateFailed)
		return fmt.Errorf("start unit: %w", err)
	}

	if err := m.waitHealthy(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			m.setState(StateStopped)
			return err
		}
		m.setState(StateFailed)
		return err
	}

	m.setState(StateRunning)
	m.logger.Info("service started",
		logging.String("unit", m.handle.UnitName),
		logging.String("endpoint", m.handle.Endpoint()))
	return nil
}

// Stop shuts the daemon down gracefully over RPC, waiting up to the
// configured grace period for the process to exit before falling back to
// systemctl stop.
func (m *Manager) Stop(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	installed, err := m.unitInstalled()
	if err != nil {
		return err
	}
	if !installed {
		return ErrNotInstalled
	}

	if state, err := m.systemd.ActiveState(ctx, m.handle.UnitName); err == nil && state != "active" && state != "activating" {
		m.setState(StateStopped)
		return nil
	}

	m.setState(StateStopping)

	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := m.client.SaveSession(saveCtx); err != nil {
		m.logger.Debug("session save before stop failed", logging.Error(err))
	}
	cancel()
	shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := m.client.Shutdown(shutCtx); err != nil {
		m.logger.Debug("rpc shutdown failed, will use systemctl", logging.Error(err))
	}
	cancel()

	grace := seconds(m.cfg.Service.StopGrace)
	if m.waitProcessExit(ctx, grace) {
		m.setState(StateStopped)
		m.logger.Info("service stopped", logging.String("unit", m.handle.UnitName))
		return nil
	}

	m.logger.Warn("aria2 still alive after grace period, stopping unit",
		logging.String("unit", m.handle.UnitName),
		logging.Duration("grace", grace))
	if err := m.systemd.Stop(ctx, m.handle.UnitName); err != nil {
		m.setState(StateFailed)
		return fmt.Errorf("stop unit: %w", err)
	}
	m.setState(StateStopped)
	m.logger.Info("service stopped", logging.String("unit", m.handle.UnitName))
	return nil
}

// Restart stops then starts the service. The two phases are deliberately
// not atomic; a failure in the second leaves the service stopped.
func (m *Manager) Restart(ctx context.Context) error {
	if err := m.Stop(ctx); err != nil {
		return err
	}
	return m.Start(ctx)
}

// Status reports the current service state without mutating the manager.
// It combines the unit file, systemd activation, the process, and a live
// RPC probe; an active unit whose RPC endpoint does not answer is reported
// as degraded.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	status := Status{
		UnitName: m.handle.UnitName,
		Endpoint: m.handle.Endpoint(),
	}

	installed, err := m.unitInstalled()
	if err != nil {
		return status, err
	}
	if !installed {
		status.State = StateNotInstalled
		return status, nil
	}
	status.Installed = true

	activeState, err := m.systemd.ActiveState(ctx, m.handle.UnitName)
	if err != nil {
		return status, err
	}
	status.Active = activeState == "active"
	if enabled, err := m.systemd.IsEnabled(ctx, m.handle.UnitName); err == nil {
		status.Enabled = enabled
	}

	if !status.Active {
		if activeState == "failed" {
			status.State = StateFailed
		} else {
			status.State = StateStopped
		}
		return status, nil
	}

	if pid, err := m.systemd.MainPID(ctx, m.handle.UnitName); err == nil && pid > 0 {
		status.PID = pid
		if info, err := ProbeProcess(ctx, pid); err == nil && info.Running {
			status.RSSBytes = info.RSSBytes
			if !info.StartedAt.IsZero() {
				status.UptimeSeconds = int64(time.Since(info.StartedAt).Seconds())
			}
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	version, err := m.client.GetVersion(probeCtx)
	cancel()
	if err != nil {
		status.State = StateRunningDegraded
		status.Degraded = true
		status.ProbeError = err.Error()
		return status, nil
	}
	status.State = StateRunning
	status.Version = version.Version
	return status, nil
}

// Uninstall disables and removes the systemd unit. The service must not be
// active. With purge the rendered configuration, session file, and stored
// secret are removed as well. Uninstalling an absent unit succeeds.
func (m *Manager) Uninstall(ctx context.Context, purge bool) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	unitPath, err := m.handle.UnitPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(unitPath); errors.Is(err, os.ErrNotExist) {
		m.setState(StateNotInstalled)
		return nil
	} else if err != nil {
		return fmt.Errorf("stat unit file: %w", err)
	}

	if state, err := m.systemd.ActiveState(ctx, m.handle.UnitName); err == nil && (state == "active" || state == "activating") {
		return &LifecycleError{Op: "uninstall", State: StateRunning}
	}

	if err := m.systemd.Disable(ctx, m.handle.UnitName); err != nil {
		m.logger.Warn("disable unit failed", logging.Error(err))
	}
	if err := os.Remove(unitPath); err != nil {
		return fmt.Errorf("remove unit file: %w", err)
	}
	if err := m.systemd.DaemonReload(ctx); err != nil {
		return err
	}

	if purge {
		for _, path := range []string{m.handle.ConfPath, m.handle.SessionPath, m.handle.SecretPath} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				m.logger.Warn("purge failed", logging.String("path", path), logging.Error(err))
			}
		}
	}

	m.setState(StateNotInstalled)
	m.logger.Info("service uninstalled",
		logging.String("unit", m.handle.UnitName),
		logging.Bool("purge", purge))
	return nil
}

// Logs returns the last n lines of the aria2 log file.
func (m *Manager) Logs(ctx context.Context, n int) ([]string, error) {
	return logs.LastLines(ctx, m.handle.LogPath, n)
}

// ClearLogs truncates the aria2 log file.
func (m *Manager) ClearLogs() error {
	return logs.Clear(m.handle.LogPath)
}

func (m *Manager) unitInstalled() (bool, error) {
	unitPath, err := m.handle.UnitPath()
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(unitPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat unit file: %w", err)
	}
	return true, nil
}

func (m *Manager) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := m.client.GetVersion(probeCtx)
	return err
}

// waitHealthy polls the RPC endpoint until it answers or the start timeout
// elapses.
func (m *Manager) waitHealthy(ctx context.Context) error {
	interval := seconds(m.cfg.Service.HealthInterval)
	timeout := seconds(m.cfg.Service.StartTimeout)
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		_, err := m.client.GetVersion(probeCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no RPC answer within %s: %w", ErrStartTimeout, timeout, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitProcessExit reports whether the unit's main process went away within
// the grace period.
func (m *Manager) waitProcessExit(ctx context.Context, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		pid, err := m.systemd.MainPID(ctx, m.handle.UnitName)
		if err == nil && pid <= 0 {
			return true
		}
		if err == nil {
			if info, probeErr := ProbeProcess(ctx, pid); probeErr == nil && !info.Running {
				return true
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func writeFileWithParents(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func touchFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return file.Close()
}
