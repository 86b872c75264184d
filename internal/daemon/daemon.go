package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"haul/internal/aria2"
	"haul/internal/backends"
	"haul/internal/config"
	"haul/internal/deps"
	"haul/internal/ledger"
	"haul/internal/logging"
	"haul/internal/notifications"
	"haul/internal/service"
	"haul/internal/upload"
	"haul/internal/watcher"
)

// Version identifies the hauld build in status output and logs.
const Version = "0.1.0"

// Daemon owns the background loops and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	client   *aria2.Client
	manager  *service.Manager
	watch    *watcher.Watcher
	uploads  *upload.Coordinator
	notifier notifications.Service

	lockPath  string
	lock      *flock.Flock
	logPath   string
	pid       int
	startedAt time.Time

	running atomic.Bool

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	Version        string
	StartedAt      time.Time
	LedgerPath     string
	LockPath       string
	SocketPath     string
	Service        service.Status
	ServiceError   string
	Watcher        watcher.Snapshot
	UploadsEnabled bool
	UploadBackends []string
	Jobs           map[ledger.JobState]int
	Dependencies   []deps.Status
}

// New constructs a daemon with initialized dependencies. The client and
// manager are shared with the watcher and the IPC surface respectively.
func New(cfg *config.Config, store *ledger.Store, client *aria2.Client, manager *service.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || client == nil || manager == nil {
		return nil, errors.New("daemon requires config, ledger, client, and service manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		client:    client,
		manager:   manager,
		notifier:  notifications.NewService(cfg),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
		logPath:   filepath.Join(cfg.Paths.LogDir, logging.DaemonLogFilename),
		pid:       os.Getpid(),
		startedAt: time.Now().UTC(),
		shutdown:  make(chan struct{}),
	}
	d.uploads = upload.New(cfg, store, backends.FromConfig(cfg), uploadNotifier{service: d.notifier, logger: d.logger}, logger)
	d.watch = watcher.New(cfg, client, store, d.handleEvent, logger)
	return d, nil
}

// Start acquires the instance lock, reclaims interrupted upload jobs, and
// launches the watcher and coordinator loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another hauld instance holds %s", d.lockPath)
	}

	reclaimed, err := d.store.ReclaimInProgress(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reclaim interrupted uploads: %w", err)
	}
	if reclaimed > 0 {
		d.logger.Info("reclaimed interrupted upload jobs", logging.Int64("count", reclaimed))
	}

	if err := d.watch.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}
	if d.uploads.Active() {
		if err := d.uploads.Start(ctx); err != nil {
			d.watch.Stop()
			_ = d.lock.Unlock()
			return fmt.Errorf("start upload coordinator: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("hauld started",
		logging.String("lock", d.lockPath),
		logging.String("endpoint", d.client.Endpoint()),
		logging.Bool("uploads", d.uploads.Active()))
	return nil
}

// Stop terminates the background loops and releases the instance lock.
// In-flight upload attempts stay in_progress for the next startup reclaim.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.watch.Stop()
	d.uploads.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("hauld stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the background loops are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// RequestShutdown asks the hosting process to exit. Safe to call more than
// once.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)
	})
}

// ShutdownRequested is closed once a shutdown has been requested over IPC.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            d.pid,
		Version:        Version,
		StartedAt:      d.startedAt,
		LedgerPath:     d.store.Path(),
		LockPath:       d.lockPath,
		SocketPath:     d.cfg.SocketPath(),
		Watcher:        d.watch.Snapshot(),
		UploadsEnabled: d.uploads.Active(),
		UploadBackends: d.uploads.Backends(),
		Dependencies:   deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if svc, err := d.manager.Status(ctx); err != nil {
		status.ServiceError = err.Error()
	} else {
		status.Service = svc
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Jobs = stats.Jobs
	}
	return status
}

// handleEvent is the watcher's delivery target. Upload queueing runs first
// so that a failed enqueue leaves the event for redelivery before any
// notification goes out.
func (d *Daemon) handleEvent(ctx context.Context, event ledger.Event) error {
	if err := d.uploads.HandleEvent(ctx, event); err != nil {
		return err
	}
	d.notifyDownload(ctx, event)
	return nil
}

func (d *Daemon) notifyDownload(ctx context.Context, event ledger.Event) {
	var err error
	switch event.Kind {
	case ledger.EventComplete:
		err = d.notifier.DownloadComplete(ctx, event.Name, event.TotalBytes)
	case ledger.EventError:
		reason := event.ErrorMessage
		if reason == "" {
			reason = fmt.Sprintf("exit code %d", event.ErrorCode)
		}
		err = d.notifier.DownloadError(ctx, event.Name, reason)
	case ledger.EventAbandoned:
		err = d.notifier.DownloadAbandoned(ctx, event.Name)
	}
	if err != nil {
		d.logger.Warn("download notification failed",
			logging.GID(event.GID),
			logging.String("kind", string(event.Kind)),
			logging.Error(err))
	}
}

// uploadNotifier adapts the notification service to the coordinator's
// outcome callbacks. Publish failures are logged, never propagated; they
// must not affect job state.
type uploadNotifier struct {
	service notifications.Service
	logger  *slog.Logger
}

func (n uploadNotifier) UploadSucceeded(ctx context.Context, meta upload.Meta, backend string) {
	if err := n.service.UploadComplete(ctx, meta.Name, backend); err != nil {
		n.logger.Warn("upload notification failed",
			logging.GID(meta.GID),
			logging.Backend(backend),
			logging.Error(err))
	}
}

func (n uploadNotifier) UploadFailed(ctx context.Context, meta upload.Meta, backend string, attempts int, cause error) {
	if err := n.service.UploadFailed(ctx, meta.Name, backend, attempts, cause); err != nil {
		n.logger.Warn("upload notification failed",
			logging.GID(meta.GID),
			logging.Backend(backend),
			logging.Error(err))
	}
}
