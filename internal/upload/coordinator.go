package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"haul/internal/aria2"
	"haul/internal/config"
	"haul/internal/ledger"
	"haul/internal/logging"
)

// Notifier receives upload outcomes. Implementations must not block for
// long; calls happen on the attempt goroutine.
type Notifier interface {
	UploadSucceeded(ctx context.Context, meta Meta, backend string)
	UploadFailed(ctx context.Context, meta Meta, backend string, attempts int, err error)
}

// Coordinator turns completion events into durable upload jobs and drives
// them to a terminal state. One job exists per (download, backend) pair;
// the rows live in the ledger so progress survives restarts.
type Coordinator struct {
	store    *ledger.Store
	backends map[string]Backend
	order    []string
	notifier Notifier
	logger   *slog.Logger

	enabled           bool
	deleteAfterUpload bool
	downloadDir       string
	maxAttempts       int
	backoffBase       time.Duration
	backoffMax        time.Duration
	attemptTimeout    time.Duration
	claimInterval     time.Duration

	kick chan struct{}

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight map[string]struct{}
}

// New builds a coordinator over the given backends. Order is preserved:
// jobs are created and the cleanup gate is checked in the order backends
// were registered. The notifier may be nil.
func New(cfg *config.Config, store *ledger.Store, backends []Backend, notifier Notifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		store:             store,
		backends:          make(map[string]Backend, len(backends)),
		notifier:          notifier,
		logger:            logging.NewComponentLogger(logger, "upload"),
		enabled:           cfg.Uploads.Enabled,
		deleteAfterUpload: cfg.Uploads.DeleteAfterUpload,
		downloadDir:       cfg.Paths.DownloadDir,
		maxAttempts:       cfg.Uploads.MaxAttempts,
		backoffBase:       time.Duration(cfg.Uploads.BackoffBase) * time.Second,
		backoffMax:        time.Duration(cfg.Uploads.BackoffMax) * time.Second,
		attemptTimeout:    time.Duration(cfg.Uploads.AttemptTimeout) * time.Second,
		claimInterval:     time.Duration(cfg.Uploads.ClaimInterval) * time.Second,
		kick:              make(chan struct{}, 1),
		inflight:          make(map[string]struct{}),
	}
	for _, backend := range backends {
		name := backend.Name()
		if _, dup := c.backends[name]; dup {
			continue
		}
		c.backends[name] = backend
		c.order = append(c.order, name)
	}
	return c
}

// Active reports whether the coordinator will act on completion events.
func (c *Coordinator) Active() bool {
	return c.enabled && len(c.order) > 0
}

// Backends returns the registered backend names in registration order.
func (c *Coordinator) Backends() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// HandleEvent enqueues one upload job per backend for a completed download.
// It is the watcher's delivery target: an error here leaves the event queued
// for redelivery, and EnsureJob makes repeated delivery harmless.
func (c *Coordinator) HandleEvent(ctx context.Context, event ledger.Event) error {
	if !c.Active() {
		return nil
	}
	if event.Kind != ledger.EventComplete {
		return nil
	}

	for _, name := range c.order {
		job, created, err := c.store.EnsureJob(ctx, event.GID, name)
		if err != nil {
			return fmt.Errorf("queue upload to %s: %w", name, err)
		}
		if created {
			c.logger.Info("upload job queued",
				logging.GID(event.GID),
				logging.Backend(name),
				logging.String("job_id", job.ID))
		}
	}
	c.Kick()
	return nil
}

// Kick asks the run loop to sweep for due jobs ahead of schedule. Safe to
// call from any goroutine; a pending kick absorbs further ones.
func (c *Coordinator) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Start begins the background claim loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("upload coordinator already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Stop terminates the claim loop and waits for in-flight attempts. Attempts
// interrupted here stay in_progress; the startup reclaim reruns them.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("upload sweep failed", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-c.kick:
		case <-time.After(c.claimInterval):
		}
	}
}

// Sweep claims every due job and launches an attempt for each. Jobs whose
// (gid, backend) pair already has an attempt in flight are skipped.
func (c *Coordinator) Sweep(ctx context.Context) error {
	jobs, err := c.store.DueJobs(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("claim due jobs: %w", err)
	}
	for _, job := range jobs {
		c.launch(ctx, job)
	}
	return nil
}

func (c *Coordinator) launch(ctx context.Context, job *ledger.UploadJob) {
	key := job.GID + "/" + job.Backend
	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
		}()
		c.attempt(ctx, job)
	}()
}

func (c *Coordinator) attempt(ctx context.Context, job *ledger.UploadJob) {
	backend, ok := c.backends[job.Backend]
	if !ok {
		// A job from a previous run whose backend was since disabled.
		c.recordFailure(ctx, job, Meta{GID: job.GID}, fmt.Errorf("backend %q is not configured", job.Backend), true)
		return
	}

	event, err := c.store.EventByGID(ctx, job.GID)
	if err != nil {
		c.logger.Warn("upload attempt skipped, event unreadable",
			logging.GID(job.GID),
			logging.Backend(job.Backend),
			logging.Error(err))
		return
	}
	if event == nil {
		c.recordFailure(ctx, job, Meta{GID: job.GID}, errors.New("download event missing from ledger"), true)
		return
	}
	meta := Meta{GID: event.GID, Name: event.Name}

	job.State = ledger.JobInProgress
	job.Attempts++
	if err := c.store.UpdateJob(ctx, job); err != nil {
		c.logger.Warn("upload attempt skipped, job not claimable",
			logging.GID(job.GID),
			logging.Backend(job.Backend),
			logging.Error(err))
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	uploadErr := backend.Upload(attemptCtx, event.Files, meta)
	cancel()

	if uploadErr == nil {
		c.recordSuccess(ctx, job, meta, event)
		return
	}
	if ctx.Err() != nil {
		// Shutdown interrupted the attempt. Leave the row in_progress so
		// the startup reclaim reruns it.
		return
	}
	permanent := IsPermanent(uploadErr) || job.Attempts >= c.maxAttempts
	c.recordFailure(ctx, job, meta, uploadErr, permanent)
}

func (c *Coordinator) recordSuccess(ctx context.Context, job *ledger.UploadJob, meta Meta, event *ledger.Event) {
	job.State = ledger.JobSucceeded
	job.LastError = ""
	if err := c.store.UpdateJob(ctx, job); err != nil {
		c.logger.Warn("persist upload success",
			logging.GID(job.GID),
			logging.Backend(job.Backend),
			logging.Error(err))
		return
	}

	c.logger.Info("upload succeeded",
		logging.GID(job.GID),
		logging.Backend(job.Backend),
		logging.String("name", meta.Name),
		logging.Int("attempts", job.Attempts))
	if c.notifier != nil {
		c.notifier.UploadSucceeded(ctx, meta, job.Backend)
	}
	c.maybeCleanup(ctx, event)
}

func (c *Coordinator) recordFailure(ctx context.Context, job *ledger.UploadJob, meta Meta, uploadErr error, permanent bool) {
	job.LastError = uploadErr.Error()
	if permanent {
		job.State = ledger.JobFailedPermanent
		if err := c.store.UpdateJob(ctx, job); err != nil {
			c.logger.Warn("persist upload failure", logging.GID(job.GID), logging.Backend(job.Backend), logging.Error(err))
			return
		}
		c.logger.Error("upload failed permanently",
			logging.GID(job.GID),
			logging.Backend(job.Backend),
			logging.Int("attempts", job.Attempts),
			logging.Error(uploadErr))
		if c.notifier != nil {
			c.notifier.UploadFailed(ctx, meta, job.Backend, job.Attempts, uploadErr)
		}
		return
	}

	delay := c.backoff(job.Attempts)
	job.State = ledger.JobFailedRetryable
	job.NextAttemptAt = time.Now().UTC().Add(delay)
	if err := c.store.UpdateJob(ctx, job); err != nil {
		c.logger.Warn("persist upload failure", logging.GID(job.GID), logging.Backend(job.Backend), logging.Error(err))
		return
	}
	c.logger.Warn("upload failed, will retry",
		logging.GID(job.GID),
		logging.Backend(job.Backend),
		logging.Int("attempts", job.Attempts),
		logging.Duration("retry_in", delay),
		logging.Error(uploadErr))
}

// backoff returns the delay before the next attempt: base doubled per prior
// attempt, capped at the configured maximum.
func (c *Coordinator) backoff(attempts int) time.Duration {
	delay := c.backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= c.backoffMax {
			return c.backoffMax
		}
	}
	if delay > c.backoffMax {
		return c.backoffMax
	}
	return delay
}

// maybeCleanup deletes the download's source files once every registered
// backend has delivered it. Deletion failures are logged, never retried;
// the uploads themselves already succeeded.
func (c *Coordinator) maybeCleanup(ctx context.Context, event *ledger.Event) {
	if !c.deleteAfterUpload {
		return
	}

	jobs, err := c.store.JobsByGID(ctx, event.GID)
	if err != nil {
		c.logger.Warn("cleanup check failed", logging.GID(event.GID), logging.Error(err))
		return
	}
	succeeded := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if job.State == ledger.JobSucceeded {
			succeeded[job.Backend] = true
		}
	}
	for _, name := range c.order {
		if !succeeded[name] {
			return
		}
	}

	task := aria2.Task{GID: event.GID}
	for _, path := range event.Files {
		task.Files = append(task.Files, aria2.File{Path: path, Selected: "true"})
	}
	removed, err := aria2.DeleteTaskFiles(task, c.downloadDir)
	if err != nil {
		c.logger.Warn("source cleanup failed", logging.GID(event.GID), logging.Error(err))
		return
	}
	c.logger.Info("source files deleted after upload",
		logging.GID(event.GID),
		logging.Int("files", removed))
}

// Retry re-queues a failed job with a fresh attempt budget and kicks the
// loop. It refuses jobs that are pending, in progress, or already done.
func (c *Coordinator) Retry(ctx context.Context, jobID string) (*ledger.UploadJob, error) {
	job, err := c.store.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("no upload job with id %s", jobID)
	}

	reset, err := c.store.ResetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !reset {
		return nil, fmt.Errorf("job %s is %s, only failed jobs can be retried", jobID, job.State)
	}

	c.Kick()
	return c.store.JobByID(ctx, jobID)
}
