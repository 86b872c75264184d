package watcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"haul/internal/aria2"
	"haul/internal/config"
	"haul/internal/ledger"
	"haul/internal/logging"
	"haul/internal/testsupport"
	"haul/internal/watcher"
)

type eventSink struct {
	mu     sync.Mutex
	events []ledger.Event
	fail   int
}

func (s *eventSink) handle(_ context.Context, event ledger.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("consumer busy")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *eventSink) all() []ledger.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Event(nil), s.events...)
}

func (s *eventSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newWatcher(t *testing.T, mutate func(*config.Config)) (*watcher.Watcher, *testsupport.FakeAria2, *ledger.Store, *eventSink) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	store := testsupport.MustOpenLedger(t, cfg)
	fake := testsupport.NewFakeAria2(t, cfg.Aria2.RPCSecret)
	client := aria2.NewClient(fake.Endpoint(), cfg.Aria2.RPCSecret, nil)
	sink := &eventSink{}
	w := watcher.New(cfg, client, store, sink.handle, logging.NewNop())
	return w, fake, store, sink
}

func mustCycle(t *testing.T, w *watcher.Watcher) {
	t.Helper()
	if err := w.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle returned error: %v", err)
	}
}

func TestCycleEmitsCompleteExactlyOnce(t *testing.T) {
	w, fake, store, sink := newWatcher(t, nil)

	gid := fake.AddTask(testsupport.FakeTask{
		TotalLength:     2048,
		CompletedLength: 512,
		Files:           []string{"/downloads/movie.mkv"},
	})
	mustCycle(t, w)
	if sink.count() != 0 {
		t.Fatalf("active task should not emit events, got %d", sink.count())
	}

	fake.Complete(gid)
	mustCycle(t, w)
	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	event := events[0]
	if event.Kind != ledger.EventComplete || event.GID != gid {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Name != "movie.mkv" {
		t.Fatalf("event name = %q, want movie.mkv", event.Name)
	}
	if len(event.Files) != 1 || event.Files[0] != "/downloads/movie.mkv" {
		t.Fatalf("event files = %v", event.Files)
	}
	if event.TotalBytes != 2048 {
		t.Fatalf("event total = %d, want 2048", event.TotalBytes)
	}

	// The task stays in aria2's stopped list; further cycles must not
	// emit again.
	mustCycle(t, w)
	mustCycle(t, w)
	if sink.count() != 1 {
		t.Fatalf("completion re-emitted, got %d events", sink.count())
	}

	recorded, err := store.EventByGID(context.Background(), gid)
	if err != nil {
		t.Fatalf("EventByGID: %v", err)
	}
	if recorded == nil || recorded.Kind != ledger.EventComplete {
		t.Fatalf("event not persisted: %+v", recorded)
	}
}

func TestCycleEmitsErrorEvent(t *testing.T) {
	w, fake, _, sink := newWatcher(t, nil)

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/iso/distro.iso"}})
	mustCycle(t, w)
	fake.Fail(gid, 3, "resource was not found")
	mustCycle(t, w)

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != ledger.EventError {
		t.Fatalf("kind = %q, want error", events[0].Kind)
	}
	if events[0].ErrorCode != 3 || events[0].ErrorMessage != "resource was not found" {
		t.Fatalf("error detail lost: %+v", events[0])
	}
}

func TestRestartDoesNotReplayRecordedEvents(t *testing.T) {
	w, fake, store, sink := newWatcher(t, nil)

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/a.bin"}})
	fake.Complete(gid)
	mustCycle(t, w)
	if sink.count() != 1 {
		t.Fatalf("expected 1 event, got %d", sink.count())
	}

	// A fresh watcher over the same ledger stands in for a daemon restart.
	cfg := testsupport.NewConfig(t)
	replay := &eventSink{}
	client := aria2.NewClient(fake.Endpoint(), cfg.Aria2.RPCSecret, nil)
	restarted := watcher.New(cfg, client, store, replay.handle, logging.NewNop())
	mustCycle(t, restarted)

	if replay.count() != 0 {
		t.Fatalf("restart replayed %d events", replay.count())
	}
}

func TestAbandonedAfterGrace(t *testing.T) {
	w, fake, store, sink := newWatcher(t, func(cfg *config.Config) {
		cfg.Watcher.AbandonedGrace = 1
	})

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/gone.bin"}})
	mustCycle(t, w)

	fake.Drop(gid)
	mustCycle(t, w)
	if sink.count() != 0 {
		t.Fatal("absence should not be abandoned before the grace period")
	}

	time.Sleep(1100 * time.Millisecond)
	mustCycle(t, w)

	events := sink.all()
	if len(events) != 1 || events[0].Kind != ledger.EventAbandoned {
		t.Fatalf("expected one abandoned event, got %v", events)
	}
	if events[0].GID != gid {
		t.Fatalf("event gid = %q, want %q", events[0].GID, gid)
	}

	recorded, err := store.EventByGID(context.Background(), gid)
	if err != nil {
		t.Fatalf("EventByGID: %v", err)
	}
	if recorded == nil || recorded.Kind != ledger.EventAbandoned {
		t.Fatalf("abandoned event not persisted: %+v", recorded)
	}
}

func TestReappearanceCancelsAbandonment(t *testing.T) {
	w, fake, store, sink := newWatcher(t, func(cfg *config.Config) {
		cfg.Watcher.AbandonedGrace = 1
	})

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/flaky.bin"}})
	mustCycle(t, w)

	fake.Drop(gid)
	mustCycle(t, w)

	// The task comes back (e.g. listed again after an aria2 hiccup).
	fake.AddTask(testsupport.FakeTask{GID: gid, Files: []string{"/downloads/flaky.bin"}})
	mustCycle(t, w)

	time.Sleep(1100 * time.Millisecond)
	mustCycle(t, w)

	if sink.count() != 0 {
		t.Fatalf("reappeared task was abandoned anyway: %v", sink.all())
	}
	recorded, err := store.EventByGID(context.Background(), gid)
	if err != nil {
		t.Fatalf("EventByGID: %v", err)
	}
	if recorded != nil {
		t.Fatalf("no event should be recorded, got %+v", recorded)
	}
}

func TestTransientFailureKeepsState(t *testing.T) {
	w, fake, _, sink := newWatcher(t, nil)

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/keep.bin"}})
	mustCycle(t, w)
	if got := w.Snapshot().Tracked; got != 1 {
		t.Fatalf("tracked = %d, want 1", got)
	}

	fake.SetUnavailable(true)
	if err := w.Cycle(context.Background()); err == nil {
		t.Fatal("expected cycle error while aria2 is unreachable")
	}
	if got := w.Snapshot().Tracked; got != 1 {
		t.Fatalf("failed cycle changed tracking: %d", got)
	}
	if sink.count() != 0 {
		t.Fatal("failed cycle emitted events")
	}

	fake.SetUnavailable(false)
	fake.Complete(gid)
	mustCycle(t, w)
	if sink.count() != 1 {
		t.Fatalf("expected completion after recovery, got %d events", sink.count())
	}
}

func TestHandlerFailureRedelivers(t *testing.T) {
	w, fake, store, sink := newWatcher(t, nil)
	sink.fail = 1

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/retry.bin"}})
	fake.Complete(gid)
	mustCycle(t, w)

	if sink.count() != 0 {
		t.Fatal("first delivery should have failed")
	}
	if got := w.Snapshot().Undelivered; got != 1 {
		t.Fatalf("undelivered = %d, want 1", got)
	}
	// The event is already durable even though delivery failed.
	recorded, err := store.EventByGID(context.Background(), gid)
	if err != nil || recorded == nil {
		t.Fatalf("event should be persisted despite delivery failure: %v %+v", err, recorded)
	}

	mustCycle(t, w)
	if sink.count() != 1 {
		t.Fatalf("expected redelivery, got %d events", sink.count())
	}
	if got := w.Snapshot().Undelivered; got != 0 {
		t.Fatalf("undelivered = %d, want 0", got)
	}
}

func TestRemovedTaskEmitsNothing(t *testing.T) {
	w, fake, store, sink := newWatcher(t, nil)

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/cancelled.bin"}})
	mustCycle(t, w)

	client := aria2.NewClient(fake.Endpoint(), "test-secret", nil)
	if err := client.Remove(context.Background(), gid); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	mustCycle(t, w)

	if sink.count() != 0 {
		t.Fatalf("removal emitted events: %v", sink.all())
	}
	recorded, err := store.EventByGID(context.Background(), gid)
	if err != nil {
		t.Fatalf("EventByGID: %v", err)
	}
	if recorded != nil {
		t.Fatalf("removal should not be recorded, got %+v", recorded)
	}
}

func TestBackgroundLoopDeliversEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watcher.PollInterval = 1
	store := testsupport.MustOpenLedger(t, cfg)
	fake := testsupport.NewFakeAria2(t, cfg.Aria2.RPCSecret)
	client := aria2.NewClient(fake.Endpoint(), cfg.Aria2.RPCSecret, nil)

	got := make(chan ledger.Event, 1)
	w := watcher.New(cfg, client, store, func(_ context.Context, event ledger.Event) error {
		select {
		case got <- event:
		default:
		}
		return nil
	}, logging.NewNop())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	gid := fake.AddTask(testsupport.FakeTask{Files: []string{"/downloads/bg.bin"}})
	fake.Complete(gid)

	select {
	case event := <-got:
		if event.GID != gid || event.Kind != ledger.EventComplete {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("background loop never delivered the completion")
	}
}
