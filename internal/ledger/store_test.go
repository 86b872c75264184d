package ledger_test

import (
	"context"
	"testing"
	"time"

	"haul/internal/ledger"
	"haul/internal/testsupport"
)

func TestOpenAppliesMigrationsAndRecordsEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	event := ledger.Event{
		GID:        "2089b05ecca3d829",
		Kind:       ledger.EventComplete,
		Name:       "ubuntu.iso",
		Files:      []string{"/downloads/ubuntu.iso"},
		TotalBytes: 4096,
		ObservedAt: time.Now().UTC(),
	}
	created, err := store.RecordEvent(ctx, event)
	if err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if !created {
		t.Fatal("expected first record to report created")
	}

	again, err := store.RecordEvent(ctx, event)
	if err != nil {
		t.Fatalf("second RecordEvent failed: %v", err)
	}
	if again {
		t.Fatal("expected duplicate record to be ignored")
	}

	seen, err := store.SeenGIDs(ctx)
	if err != nil {
		t.Fatalf("SeenGIDs failed: %v", err)
	}
	if _, ok := seen["2089b05ecca3d829"]; !ok {
		t.Fatalf("expected gid in seen set, got %v", seen)
	}

	fetched, err := store.EventByGID(ctx, "2089b05ecca3d829")
	if err != nil {
		t.Fatalf("EventByGID failed: %v", err)
	}
	if fetched == nil || fetched.Name != "ubuntu.iso" || len(fetched.Files) != 1 {
		t.Fatalf("unexpected fetched event: %#v", fetched)
	}
	if fetched.Kind != ledger.EventComplete || fetched.TotalBytes != 4096 {
		t.Fatalf("unexpected event payload: %#v", fetched)
	}
}

func TestRecordEventRequiresGID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	if _, err := store.RecordEvent(context.Background(), ledger.Event{Kind: ledger.EventComplete}); err == nil {
		t.Fatal("expected error for empty gid")
	}
}

func TestListEventsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, gid := range []string{"aaaa", "bbbb", "cccc"} {
		event := ledger.Event{
			GID:        gid,
			Kind:       ledger.EventComplete,
			ObservedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := store.RecordEvent(ctx, event); err != nil {
			t.Fatalf("RecordEvent %s failed: %v", gid, err)
		}
	}

	events, err := store.ListEvents(ctx, 2)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].GID != "cccc" || events[1].GID != "bbbb" {
		t.Fatalf("unexpected order: %s, %s", events[0].GID, events[1].GID)
	}

	all, err := store.ListEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ListEvents all failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
}

func TestEnsureJobIsIdempotentPerPair(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	job, created, err := store.EnsureJob(ctx, "2089b05ecca3d829", "s3")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	if !created {
		t.Fatal("expected first ensure to create the job")
	}
	if job.State != ledger.JobPending || job.Attempts != 0 {
		t.Fatalf("unexpected new job: %#v", job)
	}

	same, createdAgain, err := store.EnsureJob(ctx, "2089b05ecca3d829", "s3")
	if err != nil {
		t.Fatalf("second EnsureJob failed: %v", err)
	}
	if createdAgain {
		t.Fatal("expected second ensure to reuse the row")
	}
	if same.ID != job.ID {
		t.Fatalf("expected same job id, got %s and %s", job.ID, same.ID)
	}

	other, created, err := store.EnsureJob(ctx, "2089b05ecca3d829", "sftp")
	if err != nil {
		t.Fatalf("EnsureJob for second backend failed: %v", err)
	}
	if !created || other.ID == job.ID {
		t.Fatalf("expected distinct job per backend, got %#v", other)
	}

	jobs, err := store.JobsByGID(ctx, "2089b05ecca3d829")
	if err != nil {
		t.Fatalf("JobsByGID failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestDueJobsRespectsDeadlinesAndStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	now := time.Now().UTC()

	ready, _, err := store.EnsureJob(ctx, "gid-ready", "local")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}

	waiting, _, err := store.EnsureJob(ctx, "gid-waiting", "local")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	waiting.State = ledger.JobFailedRetryable
	waiting.Attempts = 1
	waiting.NextAttemptAt = now.Add(time.Hour)
	if err := store.UpdateJob(ctx, waiting); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	running, _, err := store.EnsureJob(ctx, "gid-running", "local")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	running.State = ledger.JobInProgress
	if err := store.UpdateJob(ctx, running); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	done, _, err := store.EnsureJob(ctx, "gid-done", "local")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	done.State = ledger.JobSucceeded
	if err := store.UpdateJob(ctx, done); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	due, err := store.DueJobs(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("DueJobs failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != ready.ID {
		t.Fatalf("expected only the pending job due, got %#v", due)
	}

	later, err := store.DueJobs(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("DueJobs later failed: %v", err)
	}
	if len(later) != 2 {
		t.Fatalf("expected retryable job to become due, got %d", len(later))
	}
}

func TestResetJobOnlyTouchesFailedStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	job, _, err := store.EnsureJob(ctx, "gid-a", "local")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	job.State = ledger.JobFailedPermanent
	job.Attempts = 5
	job.LastError = "bucket gone"
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	reset, err := store.ResetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ResetJob failed: %v", err)
	}
	if !reset {
		t.Fatal("expected failed_permanent job to reset")
	}
	fresh, err := store.JobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if fresh.State != ledger.JobPending || fresh.Attempts != 0 || fresh.LastError != "" {
		t.Fatalf("unexpected job after reset: %#v", fresh)
	}

	fresh.State = ledger.JobSucceeded
	if err := store.UpdateJob(ctx, fresh); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	reset, err = store.ResetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ResetJob on succeeded failed: %v", err)
	}
	if reset {
		t.Fatal("succeeded job must not reset")
	}
}

func TestReclaimInProgressReturnsJobsToPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	job, _, err := store.EnsureJob(ctx, "gid-crashed", "local")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	job.State = ledger.JobInProgress
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	count, err := store.ReclaimInProgress(ctx)
	if err != nil {
		t.Fatalf("ReclaimInProgress failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed job, got %d", count)
	}
	fresh, err := store.JobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if fresh.State != ledger.JobPending {
		t.Fatalf("expected pending after reclaim, got %s", fresh.State)
	}
}

func TestStatsGroupsByKindAndState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	testsupport.SeedEvent(t, store, "gid-1", "/downloads/a.iso")
	testsupport.SeedEvent(t, store, "gid-2", "/downloads/b.iso")
	failed := ledger.Event{GID: "gid-3", Kind: ledger.EventError, ErrorCode: 3, ObservedAt: time.Now().UTC()}
	if _, err := store.RecordEvent(ctx, failed); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	if _, _, err := store.EnsureJob(ctx, "gid-1", "local"); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	job, _, err := store.EnsureJob(ctx, "gid-2", "local")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	job.State = ledger.JobSucceeded
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Events[ledger.EventComplete] != 2 || stats.Events[ledger.EventError] != 1 {
		t.Fatalf("unexpected event stats: %#v", stats.Events)
	}
	if stats.Jobs[ledger.JobPending] != 1 || stats.Jobs[ledger.JobSucceeded] != 1 {
		t.Fatalf("unexpected job stats: %#v", stats.Jobs)
	}
}

func TestListJobsFiltersByState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	if _, _, err := store.EnsureJob(ctx, "gid-1", "local"); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	job, _, err := store.EnsureJob(ctx, "gid-2", "s3")
	if err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	job.State = ledger.JobFailedPermanent
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	failedJobs, err := store.ListJobs(ctx, ledger.JobFailedPermanent)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(failedJobs) != 1 || failedJobs[0].GID != "gid-2" {
		t.Fatalf("unexpected filtered jobs: %#v", failedJobs)
	}

	all, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs all failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
}

func TestCheckHealthReportsTables(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}
