package daemonrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"haul/internal/aria2"
	"haul/internal/config"
	"haul/internal/daemon"
	"haul/internal/deps"
	"haul/internal/ipc"
	"haul/internal/ledger"
	"haul/internal/logging"
	"haul/internal/preflight"
	"haul/internal/service"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	Quiet    bool
}

// Run starts the hauld runtime loop: it acquires the instance lock, serves
// the control socket, and blocks until a signal or an IPC shutdown request
// arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	console := io.Writer(os.Stdout)
	if opts.Quiet {
		console = io.Discard
	}
	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, logging.DaemonLogFilename)
	logger, err := logging.New(logging.Options{
		Level:      level,
		Format:     cfg.Logging.Format,
		Console:    console,
		FilePath:   logPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		RunID:      runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	client := aria2.FromConfig(cfg)
	logger.Info("hauld starting",
		logging.String(logging.FieldEventType, "daemon_starting"),
		logging.String("run_id", runID),
		logging.String("version", daemon.Version),
		logging.String("endpoint", client.Endpoint()))
	logDependencySnapshot(logger, cfg)
	for _, check := range preflight.RunAll(signalCtx, cfg) {
		if check.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "downloads or uploads may fail until resolved"),
			logging.String(logging.FieldErrorHint, "run haul preflight for the full report"))
	}

	// The file sink prunes rotated backups only when a rotation happens, so
	// backups from quiet periods would otherwise outlive their max age.
	logging.PruneRotatedLogs(logger, cfg.Paths.LogDir, "hauld-*.log*", cfg.Logging.MaxAgeDays, logPath)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		return err
	}
	defer store.Close()

	manager := service.NewManager(cfg, client, service.NewSystemd(), logger)
	d, err := daemon.New(cfg, store, client, manager, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// Acquire the lock before touching the socket: a second instance must
	// not unlink the socket the first one is serving on.
	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for a running hauld instance and data directory access"))
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-signalCtx.Done():
		logger.Info("hauld shutting down",
			logging.String(logging.FieldEventType, "daemon_stopping"),
			logging.String("reason", "signal"))
	case <-d.ShutdownRequested():
		logger.Info("hauld shutting down",
			logging.String(logging.FieldEventType, "daemon_stopping"),
			logging.String("reason", "ipc"))
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs, logging.Bool(status.Command+"_available", status.Available))
		if status.Path != "" {
			attrs = append(attrs, logging.String(status.Command+"_path", status.Path))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
