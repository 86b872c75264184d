package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"haul/internal/aria2"
	"haul/internal/config"
	"haul/internal/logging"
	"haul/internal/service"
	"haul/internal/testsupport"
)

// fakeSystemd stands in for the systemctl adapter so lifecycle tests can
// script unit behavior without a running systemd instance.
type fakeSystemd struct {
	mu      sync.Mutex
	state   string
	enabled bool
	pid     int32
	calls   []string
}

func newFakeSystemd(state string) *fakeSystemd {
	return &fakeSystemd{state: state}
}

func (f *fakeSystemd) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSystemd) has(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeSystemd) setState(state string) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

func (f *fakeSystemd) setPID(pid int32) {
	f.mu.Lock()
	f.pid = pid
	f.mu.Unlock()
}

func (f *fakeSystemd) Start(_ context.Context, unit string) error {
	f.record("start " + unit)
	f.setState("active")
	return nil
}

func (f *fakeSystemd) Stop(_ context.Context, unit string) error {
	f.record("stop " + unit)
	f.setState("inactive")
	f.setPID(0)
	return nil
}

func (f *fakeSystemd) Enable(_ context.Context, unit string) error {
	f.record("enable " + unit)
	f.mu.Lock()
	f.enabled = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSystemd) Disable(_ context.Context, unit string) error {
	f.record("disable " + unit)
	f.mu.Lock()
	f.enabled = false
	f.mu.Unlock()
	return nil
}

func (f *fakeSystemd) DaemonReload(_ context.Context) error {
	f.record("daemon-reload")
	return nil
}

func (f *fakeSystemd) ActiveState(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeSystemd) IsEnabled(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled, nil
}

func (f *fakeSystemd) MainPID(_ context.Context, _ string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pid, nil
}

func newManager(t *testing.T, fake *testsupport.FakeAria2, sd service.Systemd, mutate func(*config.Config)) (*service.Manager, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(testsupport.BaseDir(cfg), "xdg"))
	if mutate != nil {
		mutate(cfg)
	}
	client := aria2.NewClient(fake.Endpoint(), cfg.Aria2.RPCSecret, nil)
	return service.NewManager(cfg, client, sd, logging.NewNop()), cfg
}

func mustInstall(t *testing.T, mgr *service.Manager) service.InstallResult {
	t.Helper()
	result, err := mgr.Install(context.Background())
	if err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	return result
}

func TestInstallWritesUnitAndConf(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, nil)

	result := mustInstall(t, mgr)
	if result.SecretGenerated {
		t.Fatal("configured secret should be reused, not regenerated")
	}

	unit := string(testsupport.MustReadFile(t, result.UnitPath))
	if !strings.Contains(unit, "--conf-path="+cfg.Aria2.ConfPath) {
		t.Fatalf("unit file should point at rendered conf:\n%s", unit)
	}
	conf := string(testsupport.MustReadFile(t, cfg.Aria2.ConfPath))
	if !strings.Contains(conf, "rpc-secret=test-secret\n") {
		t.Fatalf("conf should carry the configured secret:\n%s", conf)
	}
	if _, err := os.Stat(cfg.Aria2.SessionPath); err != nil {
		t.Fatalf("session file should exist after install: %v", err)
	}
	if !sd.has("daemon-reload") || !sd.has("enable "+cfg.Service.UnitName) {
		t.Fatalf("expected daemon-reload and enable, got %v", sd.calls)
	}
	if got := mgr.State(); got != service.StateStopped {
		t.Fatalf("state after install = %q, want stopped", got)
	}

	if _, err := mgr.Install(context.Background()); !errors.Is(err, service.ErrAlreadyInstalled) {
		t.Fatalf("second install error = %v, want ErrAlreadyInstalled", err)
	}
}

func TestInstallGeneratesAndPersistsSecret(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, func(cfg *config.Config) {
		cfg.Aria2.RPCSecret = ""
	})

	result := mustInstall(t, mgr)
	if !result.SecretGenerated {
		t.Fatal("expected a generated secret")
	}
	if len(result.Secret) != 20 {
		t.Fatalf("secret length = %d, want 20", len(result.Secret))
	}

	data := testsupport.MustReadFile(t, cfg.RPCSecretPath())
	if strings.TrimSpace(string(data)) != result.Secret {
		t.Fatal("persisted secret does not match install result")
	}
	info, err := os.Stat(cfg.RPCSecretPath())
	if err != nil {
		t.Fatalf("stat secret file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("secret file mode = %v, want 0600", info.Mode().Perm())
	}
	conf := string(testsupport.MustReadFile(t, cfg.Aria2.ConfPath))
	if !strings.Contains(conf, "rpc-secret="+result.Secret+"\n") {
		t.Fatal("conf should carry the generated secret")
	}
}

func TestInstallRequiresBinary(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, func(cfg *config.Config) {
		cfg.Aria2.Binary = "no-such-downloader-binary"
	})

	if _, err := mgr.Install(context.Background()); err == nil {
		t.Fatal("expected install to fail without the aria2 binary")
	}
}

func TestStartWaitsForRPC(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !sd.has("start " + cfg.Service.UnitName) {
		t.Fatalf("expected systemctl start, got %v", sd.calls)
	}
	if fake.Calls("aria2.getVersion") == 0 {
		t.Fatal("Start should probe the RPC endpoint")
	}
	if got := mgr.State(); got != service.StateRunning {
		t.Fatalf("state = %q, want running", got)
	}
}

func TestStartIsNoOpWhenAlreadyRunning(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)
	sd.setState("active")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if sd.has("start " + cfg.Service.UnitName) {
		t.Fatal("healthy running service should not be started again")
	}
	if got := mgr.State(); got != service.StateRunning {
		t.Fatalf("state = %q, want running", got)
	}
}

func TestStartTimesOutWithoutRPC(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	fake.SetUnavailable(true)
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, func(cfg *config.Config) {
		cfg.Service.StartTimeout = 1
		cfg.Service.HealthInterval = 1
	})
	mustInstall(t, mgr)

	err := mgr.Start(context.Background())
	if !errors.Is(err, service.ErrStartTimeout) {
		t.Fatalf("Start error = %v, want ErrStartTimeout", err)
	}
	if got := mgr.State(); got != service.StateFailed {
		t.Fatalf("state = %q, want failed", got)
	}
}

func TestStartCancelLeavesStopped(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	fake.SetUnavailable(true)
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(200*time.Millisecond, cancel)
	defer timer.Stop()

	err := mgr.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Start error = %v, want context.Canceled", err)
	}
	if got := mgr.State(); got != service.StateStopped {
		t.Fatalf("state = %q, want stopped", got)
	}
}

func TestStartRequiresInstall(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	mgr, _ := newManager(t, fake, newFakeSystemd("inactive"), nil)

	if err := mgr.Start(context.Background()); !errors.Is(err, service.ErrNotInstalled) {
		t.Fatalf("Start error = %v, want ErrNotInstalled", err)
	}
}

func TestStopShutsDownOverRPC(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)
	sd.setState("active")

	if err := mgr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if fake.Calls("aria2.saveSession") != 1 {
		t.Fatal("Stop should save the session before shutdown")
	}
	if fake.Calls("aria2.shutdown") != 1 {
		t.Fatal("Stop should request an RPC shutdown")
	}
	if sd.has("stop " + cfg.Service.UnitName) {
		t.Fatal("graceful stop should not need systemctl")
	}
	if got := mgr.State(); got != service.StateStopped {
		t.Fatalf("state = %q, want stopped", got)
	}
}

func TestStopFallsBackToSystemctl(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, func(cfg *config.Config) {
		cfg.Service.StopGrace = 1
	})
	mustInstall(t, mgr)
	sd.setState("active")
	// Use our own pid so the process probe keeps seeing a live process.
	sd.setPID(int32(os.Getpid()))

	if err := mgr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if !sd.has("stop " + cfg.Service.UnitName) {
		t.Fatalf("expected systemctl stop fallback, got %v", sd.calls)
	}
	if got := mgr.State(); got != service.StateStopped {
		t.Fatalf("state = %q, want stopped", got)
	}
}

func TestStopWhenInactiveIsNoOp(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)

	if err := mgr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if fake.Calls("aria2.shutdown") != 0 {
		t.Fatal("inactive service should not receive a shutdown RPC")
	}
}

func TestRestartFromStopped(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)

	if err := mgr.Restart(context.Background()); err != nil {
		t.Fatalf("Restart returned error: %v", err)
	}
	if !sd.has("start " + cfg.Service.UnitName) {
		t.Fatalf("expected systemctl start, got %v", sd.calls)
	}
	if got := mgr.State(); got != service.StateRunning {
		t.Fatalf("state = %q, want running", got)
	}
}

func TestStatusNotInstalled(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	mgr, _ := newManager(t, fake, newFakeSystemd("inactive"), nil)

	status, err := mgr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.State != service.StateNotInstalled || status.Installed {
		t.Fatalf("status = %+v, want not_installed", status)
	}
}

func TestStatusStoppedAndFailed(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)

	status, err := mgr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.State != service.StateStopped || !status.Installed || status.Active {
		t.Fatalf("status = %+v, want stopped", status)
	}

	sd.setState("failed")
	status, err = mgr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.State != service.StateFailed {
		t.Fatalf("state = %q, want failed", status.State)
	}
}

func TestStatusRunningReportsVersionAndProcess(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)
	sd.setState("active")
	sd.setPID(int32(os.Getpid()))

	status, err := mgr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.State != service.StateRunning || !status.Active {
		t.Fatalf("status = %+v, want running", status)
	}
	if status.Version == "" {
		t.Fatal("running status should include the probed aria2 version")
	}
	if status.PID != int32(os.Getpid()) {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}
	if status.Degraded {
		t.Fatal("healthy service must not be degraded")
	}
}

func TestStatusDegradedWhenRPCUnreachable(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, nil)
	mustInstall(t, mgr)
	sd.setState("active")
	fake.SetUnavailable(true)

	status, err := mgr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.State != service.StateRunningDegraded || !status.Degraded {
		t.Fatalf("status = %+v, want running_degraded", status)
	}
	if status.ProbeError == "" {
		t.Fatal("degraded status should explain the probe failure")
	}
}

func TestUninstallRequiresStopped(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, _ := newManager(t, fake, sd, nil)
	result := mustInstall(t, mgr)
	sd.setState("active")

	err := mgr.Uninstall(context.Background(), false)
	var lifecycleErr *service.LifecycleError
	if !errors.As(err, &lifecycleErr) {
		t.Fatalf("Uninstall error = %v, want LifecycleError", err)
	}
	if _, statErr := os.Stat(result.UnitPath); statErr != nil {
		t.Fatal("unit file must survive a refused uninstall")
	}
}

func TestUninstallRemovesUnitKeepsConf(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, nil)
	result := mustInstall(t, mgr)

	if err := mgr.Uninstall(context.Background(), false); err != nil {
		t.Fatalf("Uninstall returned error: %v", err)
	}
	if _, err := os.Stat(result.UnitPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("unit file should be removed")
	}
	if _, err := os.Stat(cfg.Aria2.ConfPath); err != nil {
		t.Fatal("conf should survive uninstall without purge")
	}
	if !sd.has("disable " + cfg.Service.UnitName) {
		t.Fatalf("expected systemctl disable, got %v", sd.calls)
	}
	if got := mgr.State(); got != service.StateNotInstalled {
		t.Fatalf("state = %q, want not_installed", got)
	}

	// Uninstalling again is a no-op.
	if err := mgr.Uninstall(context.Background(), false); err != nil {
		t.Fatalf("second Uninstall returned error: %v", err)
	}
}

func TestUninstallPurgeRemovesRenderedFiles(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	sd := newFakeSystemd("inactive")
	mgr, cfg := newManager(t, fake, sd, func(cfg *config.Config) {
		cfg.Aria2.RPCSecret = ""
	})
	mustInstall(t, mgr)

	if err := mgr.Uninstall(context.Background(), true); err != nil {
		t.Fatalf("Uninstall returned error: %v", err)
	}
	for _, path := range []string{cfg.Aria2.ConfPath, cfg.Aria2.SessionPath, cfg.RPCSecretPath()} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("purge should remove %s", path)
		}
	}
}

func TestLogsAndClearLogs(t *testing.T) {
	fake := testsupport.NewFakeAria2(t, "test-secret")
	mgr, cfg := newManager(t, fake, newFakeSystemd("inactive"), nil)

	if err := os.MkdirAll(filepath.Dir(cfg.Aria2.LogPath), 0o755); err != nil {
		t.Fatalf("create log dir: %v", err)
	}
	content := "first download done\nsecond download done\nthird download done\n"
	if err := os.WriteFile(cfg.Aria2.LogPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write aria2 log: %v", err)
	}

	lines, err := mgr.Logs(context.Background(), 2)
	if err != nil {
		t.Fatalf("Logs returned error: %v", err)
	}
	if len(lines) != 2 || lines[1] != "third download done" {
		t.Fatalf("unexpected log lines: %v", lines)
	}

	if err := mgr.ClearLogs(); err != nil {
		t.Fatalf("ClearLogs returned error: %v", err)
	}
	data := testsupport.MustReadFile(t, cfg.Aria2.LogPath)
	if len(data) != 0 {
		t.Fatalf("log should be empty after clear, got %d bytes", len(data))
	}
}
