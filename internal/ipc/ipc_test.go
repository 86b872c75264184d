package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"haul/internal/aria2"
	"haul/internal/daemon"
	"haul/internal/ipc"
	"haul/internal/logging"
	"haul/internal/service"
	"haul/internal/testsupport"
)

func scriptedSystemd() service.Systemd {
	return service.NewSystemdWithRunner(func(_ context.Context, args ...string) (string, error) {
		switch args[0] {
		case "is-active":
			return "inactive", nil
		case "is-enabled":
			return "disabled", nil
		case "show":
			return "0", nil
		default:
			return "", nil
		}
	})
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(testsupport.BaseDir(cfg), "xdg"))
	fake := testsupport.NewFakeAria2(t, cfg.Aria2.RPCSecret)
	store := testsupport.MustOpenLedger(t, cfg)
	rpcClient := aria2.NewClient(fake.Endpoint(), cfg.Aria2.RPCSecret, nil)
	mgr := service.NewManager(cfg, rpcClient, scriptedSystemd(), logging.NewNop())
	logger := logging.NewNop()

	d, err := daemon.New(cfg, store, rpcClient, mgr, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping RPC failed: %v", err)
	}
	if !ping.Running || ping.PID <= 0 || ping.Version != daemon.Version {
		t.Fatalf("unexpected ping response: %#v", ping)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if !strings.HasSuffix(status.LedgerPath, "haul.db") {
		t.Fatalf("unexpected ledger path: %s", status.LedgerPath)
	}
	if status.Uploads.Enabled {
		t.Fatal("uploads should be disabled by default")
	}
	if status.Service.Installed {
		t.Fatalf("service should not be installed, got %#v", status.Service)
	}

	addResp, err := client.Add(ipc.AddRequest{URIs: []string{
		"https://example.com/a.iso",
		"https://example.com/b.iso",
	}})
	if err != nil {
		t.Fatalf("Add RPC failed: %v", err)
	}
	if len(addResp.GIDs) != 2 {
		t.Fatalf("expected 2 gids, got %d", len(addResp.GIDs))
	}
	if fake.Calls("aria2.addUri") != 2 {
		t.Fatalf("addUri calls = %d, want 2", fake.Calls("aria2.addUri"))
	}

	if _, err := client.Add(ipc.AddRequest{
		URIs: []string{"https://example.com/a.iso", "https://example.com/b.iso"},
		Out:  "renamed.iso",
	}); err == nil {
		t.Fatal("expected out with multiple URIs to fail")
	}

	listResp, err := client.List("waiting")
	if err != nil {
		t.Fatalf("List RPC failed: %v", err)
	}
	if len(listResp.Tasks) != 2 {
		t.Fatalf("expected 2 waiting tasks, got %d", len(listResp.Tasks))
	}

	gid := addResp.GIDs[0]
	describeResp, err := client.Describe(gid)
	if err != nil {
		t.Fatalf("Describe RPC failed: %v", err)
	}
	if describeResp.Task.GID != gid {
		t.Fatalf("described gid = %s, want %s", describeResp.Task.GID, gid)
	}
	if len(describeResp.Task.Files) == 0 {
		t.Fatal("expected describe to include files")
	}

	pauseResp, err := client.Pause(gid, false)
	if err != nil {
		t.Fatalf("Pause RPC failed: %v", err)
	}
	if !pauseResp.Paused {
		t.Fatal("expected pause acknowledgement")
	}
	if task, _ := fake.Task(gid); task.Status != "paused" {
		t.Fatalf("task status = %q, want paused", task.Status)
	}

	resumeResp, err := client.Resume(gid, false)
	if err != nil {
		t.Fatalf("Resume RPC failed: %v", err)
	}
	if !resumeResp.Resumed {
		t.Fatal("expected resume acknowledgement")
	}

	if _, err := client.Pause("", false); err == nil {
		t.Fatal("expected pause without gid to fail")
	}

	filesResp, err := client.Files(gid)
	if err != nil {
		t.Fatalf("Files RPC failed: %v", err)
	}
	if len(filesResp.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(filesResp.Files))
	}

	removeResp, err := client.Remove(gid, false)
	if err != nil {
		t.Fatalf("Remove RPC failed: %v", err)
	}
	if !removeResp.Removed {
		t.Fatal("expected remove acknowledgement")
	}
	forgetResp, err := client.Forget(gid)
	if err != nil {
		t.Fatalf("Forget RPC failed: %v", err)
	}
	if !forgetResp.Forgotten {
		t.Fatal("expected forget acknowledgement")
	}
	if _, ok := fake.Task(gid); ok {
		t.Fatal("expected forgotten task to be gone")
	}

	testsupport.SeedEvent(t, store, "feedfeedfeedfeed", "/downloads/a.iso")
	if _, _, err := store.EnsureJob(ctx, "feedfeedfeedfeed", "local"); err != nil {
		t.Fatalf("EnsureJob: %v", err)
	}

	statsResp, err := client.Stats()
	if err != nil {
		t.Fatalf("Stats RPC failed: %v", err)
	}
	if statsResp.Stats.Events["complete"] != 1 {
		t.Fatalf("expected 1 complete event, got %#v", statsResp.Stats.Events)
	}
	if statsResp.Stats.Jobs["pending"] != 1 {
		t.Fatalf("expected 1 pending job, got %#v", statsResp.Stats.Jobs)
	}

	eventsResp, err := client.Events(10)
	if err != nil {
		t.Fatalf("Events RPC failed: %v", err)
	}
	if len(eventsResp.Events) != 1 || eventsResp.Events[0].GID != "feedfeedfeedfeed" {
		t.Fatalf("unexpected events response: %#v", eventsResp.Events)
	}

	uploadsResp, err := client.Uploads(nil)
	if err != nil {
		t.Fatalf("Uploads RPC failed: %v", err)
	}
	if len(uploadsResp.Jobs) != 1 || uploadsResp.Jobs[0].State != "pending" {
		t.Fatalf("unexpected uploads response: %#v", uploadsResp.Jobs)
	}

	filtered, err := client.Uploads([]string{"succeeded", "bogus"})
	if err != nil {
		t.Fatalf("Uploads filtered RPC failed: %v", err)
	}
	if len(filtered.Jobs) != 0 {
		t.Fatalf("expected no succeeded jobs, got %d", len(filtered.Jobs))
	}

	if _, err := client.RetryUpload(uploadsResp.Jobs[0].ID); err == nil {
		t.Fatal("expected retry of a pending job to fail")
	}

	svcStatus, err := client.ServiceStatus()
	if err != nil {
		t.Fatalf("ServiceStatus RPC failed: %v", err)
	}
	if svcStatus.Status.State != "not_installed" {
		t.Fatalf("service state = %q, want not_installed", svcStatus.Status.State)
	}

	svcStart, err := client.ServiceStart()
	if err != nil {
		t.Fatalf("ServiceStart RPC failed: %v", err)
	}
	if svcStart.Started || svcStart.Message == "" {
		t.Fatalf("expected start refusal with message, got %#v", svcStart)
	}

	svcLogs, err := client.ServiceLogs(10)
	if err != nil {
		t.Fatalf("ServiceLogs RPC failed: %v", err)
	}
	if len(svcLogs.Lines) != 0 {
		t.Fatalf("expected no aria2 log lines, got %d", len(svcLogs.Lines))
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if notifyResp.Sent || notifyResp.Message == "" {
		t.Fatalf("expected unconfigured notification response, got %#v", notifyResp)
	}

	logPath := d.LogPath()
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	followDone := make(chan struct{})
	go func(offset int64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 500})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Lines) != 1 || resp.Lines[0] != "fourth" {
			t.Errorf("unexpected follow lines: %#v", resp.Lines)
		}
		close(followDone)
	}(logResp.Offset)

	time.Sleep(100 * time.Millisecond)
	if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		_, _ = f.WriteString("fourth\n")
		_ = f.Close()
	} else {
		t.Fatalf("append log: %v", err)
	}

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}

	shutdownResp, err := client.Shutdown()
	if err != nil {
		t.Fatalf("Shutdown RPC failed: %v", err)
	}
	if !shutdownResp.ShuttingDown {
		t.Fatal("expected shutdown acknowledgement")
	}
	select {
	case <-d.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown request not observed")
	}
}
