package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"haul/internal/aria2"
	"haul/internal/config"
	"haul/internal/ledger"
	"haul/internal/logging"
)

// Client is the slice of the aria2 RPC client the watcher polls with.
type Client interface {
	TellActive(ctx context.Context) ([]aria2.Task, error)
	TellWaiting(ctx context.Context, offset, num int) ([]aria2.Task, error)
	TellStopped(ctx context.Context, offset, num int) ([]aria2.Task, error)
}

// Handler consumes download events in discovery order. Handlers run
// synchronously on the poll goroutine; a returned error leaves the event
// queued for redelivery on the next cycle, so handlers must be idempotent.
type Handler func(ctx context.Context, event ledger.Event) error

type trackedTask struct {
	task        aria2.Task
	absentSince time.Time
	sampler     *logging.ProgressSampler
}

// Snapshot reports the watcher's bookkeeping for status output.
type Snapshot struct {
	Tracked     int `json:"tracked"`
	Undelivered int `json:"undelivered"`
}

// Watcher owns the completion poll loop.
type Watcher struct {
	client  Client
	store   *ledger.Store
	handler Handler
	logger  *slog.Logger

	pollInterval   time.Duration
	abandonedGrace time.Duration
	listWindow     int

	inFlight atomic.Bool

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	primed      bool
	seen        map[string]struct{}
	tracked     map[string]*trackedTask
	undelivered map[string]ledger.Event
}

// New builds a watcher. The handler may be nil, in which case events are
// recorded but not delivered anywhere.
func New(cfg *config.Config, client Client, store *ledger.Store, handler Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		client:         client,
		store:          store,
		handler:        handler,
		logger:         logging.NewComponentLogger(logger, "watcher"),
		pollInterval:   time.Duration(cfg.Watcher.PollInterval) * time.Second,
		abandonedGrace: time.Duration(cfg.Watcher.AbandonedGrace) * time.Second,
		listWindow:     cfg.Watcher.StoppedWindow,
		seen:           make(map[string]struct{}),
		tracked:        make(map[string]*trackedTask),
		undelivered:    make(map[string]ledger.Event),
	}
}

// Start begins background polling.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(runCtx)
	return nil
}

// Stop terminates polling and waits for any in-flight cycle to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Snapshot returns current bookkeeping counters.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{Tracked: len(w.tracked), Undelivered: len(w.undelivered)}
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.Cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("poll cycle failed, state unchanged", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// Cycle performs one poll of aria2 and reconciles the result. Concurrent
// invocations collapse: while a cycle is in flight additional calls return
// immediately without queueing.
func (w *Watcher) Cycle(ctx context.Context) error {
	if !w.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer w.inFlight.Store(false)

	if err := w.prime(ctx); err != nil {
		return err
	}

	cycleCtx, cancel := context.WithTimeout(ctx, w.cycleTimeout())
	defer cancel()

	// Snapshot all three lists before touching any state so a transient
	// failure cannot leave the diff half-applied.
	active, err := w.client.TellActive(cycleCtx)
	if err != nil {
		return fmt.Errorf("tellActive: %w", err)
	}
	waiting, err := w.client.TellWaiting(cycleCtx, 0, w.listWindow)
	if err != nil {
		return fmt.Errorf("tellWaiting: %w", err)
	}
	stopped, err := w.client.TellStopped(cycleCtx, 0, w.listWindow)
	if err != nil {
		return fmt.Errorf("tellStopped: %w", err)
	}

	events := w.reconcile(ctx, active, waiting, stopped)
	w.deliver(ctx, events)
	return nil
}

// prime loads the persisted seen-set once so events recorded by earlier
// runs are not re-emitted.
func (w *Watcher) prime(ctx context.Context) error {
	w.mu.Lock()
	primed := w.primed
	w.mu.Unlock()
	if primed {
		return nil
	}

	gids, err := w.store.SeenGIDs(ctx)
	if err != nil {
		return fmt.Errorf("prime seen set: %w", err)
	}

	w.mu.Lock()
	for gid := range gids {
		w.seen[gid] = struct{}{}
	}
	w.primed = true
	w.mu.Unlock()

	w.logger.Debug("seen set primed", logging.Int("gids", len(gids)))
	return nil
}

func (w *Watcher) reconcile(ctx context.Context, active, waiting, stopped []aria2.Task) []ledger.Event {
	now := time.Now()
	present := make(map[string]struct{}, len(active)+len(waiting)+len(stopped))
	for _, lists := range [][]aria2.Task{active, waiting, stopped} {
		for _, task := range lists {
			present[task.GID] = struct{}{}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var events []ledger.Event

	for _, task := range active {
		w.observeLiveLocked(task)
	}
	for _, task := range waiting {
		w.observeLiveLocked(task)
	}

	for _, task := range stopped {
		switch task.Status {
		case aria2.StatusComplete:
			if event, ok := w.recordTerminalLocked(ctx, task, ledger.EventComplete); ok {
				events = append(events, event)
			}
		case aria2.StatusError:
			if event, ok := w.recordTerminalLocked(ctx, task, ledger.EventError); ok {
				events = append(events, event)
			}
		case aria2.StatusRemoved:
			// Removed on purpose; not an event.
		}
		delete(w.tracked, task.GID)
	}

	absent := make([]string, 0)
	for gid := range w.tracked {
		if _, ok := present[gid]; !ok {
			absent = append(absent, gid)
		}
	}
	sort.Strings(absent)
	for _, gid := range absent {
		tracked := w.tracked[gid]
		if tracked.absentSince.IsZero() {
			tracked.absentSince = now
			continue
		}
		if now.Sub(tracked.absentSince) < w.abandonedGrace {
			continue
		}
		if event, ok := w.recordTerminalLocked(ctx, tracked.task, ledger.EventAbandoned); ok {
			events = append(events, event)
		}
		delete(w.tracked, gid)
	}

	return events
}

func (w *Watcher) observeLiveLocked(task aria2.Task) {
	tracked, ok := w.tracked[task.GID]
	if !ok {
		tracked = &trackedTask{sampler: logging.NewProgressSampler(0)}
		w.tracked[task.GID] = tracked
		w.logger.Info("tracking download",
			logging.GID(task.GID),
			logging.String("name", task.Name()),
			logging.String("status", task.Status))
	}
	tracked.task = task
	tracked.absentSince = time.Time{}

	if tracked.sampler.ShouldLog(task.ProgressPercent(), task.Status) {
		w.logger.Info("download progress",
			logging.GID(task.GID),
			logging.String("name", task.Name()),
			logging.String("status", task.Status),
			logging.Float64("percent", task.ProgressPercent()),
			logging.Int64("total_bytes", task.TotalLength),
			logging.Int64("speed_bps", task.DownloadSpeed))
	}
}

// recordTerminalLocked persists the event and reports whether this run is
// the one that created it. Persistence failures leave the gid unseen so a
// later cycle retries.
func (w *Watcher) recordTerminalLocked(ctx context.Context, task aria2.Task, kind ledger.EventKind) (ledger.Event, bool) {
	if _, done := w.seen[task.GID]; done {
		return ledger.Event{}, false
	}

	event := eventFromTask(task, kind)
	created, err := w.store.RecordEvent(ctx, event)
	if err != nil {
		w.logger.Warn("record event failed",
			logging.GID(task.GID),
			logging.String("kind", string(kind)),
			logging.Error(err))
		return ledger.Event{}, false
	}
	w.seen[task.GID] = struct{}{}
	if !created {
		return ledger.Event{}, false
	}

	w.logger.Info("download event",
		logging.GID(task.GID),
		logging.String("kind", string(kind)),
		logging.String("name", event.Name),
		logging.Int64("total_bytes", event.TotalBytes))
	return event, true
}

// deliver pushes queued and fresh events to the handler, oldest first.
func (w *Watcher) deliver(ctx context.Context, events []ledger.Event) {
	w.mu.Lock()
	pending := make([]ledger.Event, 0, len(w.undelivered)+len(events))
	if len(w.undelivered) > 0 {
		gids := make([]string, 0, len(w.undelivered))
		for gid := range w.undelivered {
			gids = append(gids, gid)
		}
		sort.Strings(gids)
		for _, gid := range gids {
			pending = append(pending, w.undelivered[gid])
		}
	}
	pending = append(pending, events...)
	w.mu.Unlock()

	for _, event := range pending {
		if w.handler != nil {
			if err := w.handler(ctx, event); err != nil {
				w.logger.Warn("event delivery failed, will retry",
					logging.GID(event.GID),
					logging.String("kind", string(event.Kind)),
					logging.Error(err))
				w.mu.Lock()
				w.undelivered[event.GID] = event
				w.mu.Unlock()
				continue
			}
		}
		w.mu.Lock()
		delete(w.undelivered, event.GID)
		w.mu.Unlock()
	}
}

func (w *Watcher) cycleTimeout() time.Duration {
	if w.pollInterval > 10*time.Second {
		return w.pollInterval
	}
	return 10 * time.Second
}

func eventFromTask(task aria2.Task, kind ledger.EventKind) ledger.Event {
	files := make([]string, 0, len(task.Files))
	for _, file := range task.Files {
		if !file.IsSelected() || file.Path == "" {
			continue
		}
		files = append(files, file.Path)
	}
	return ledger.Event{
		GID:          task.GID,
		Kind:         kind,
		Name:         task.Name(),
		Files:        files,
		TotalBytes:   task.TotalLength,
		ErrorCode:    task.ErrorCode,
		ErrorMessage: task.ErrorMessage,
		ObservedAt:   time.Now().UTC(),
	}
}
