package testsupport

import (
	"context"
	"testing"
	"time"

	"haul/internal/config"
	"haul/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedEvent records a completion event for tests using the provided store.
func SeedEvent(t testing.TB, store *ledger.Store, gid string, files ...string) ledger.Event {
	t.Helper()

	event := ledger.Event{
		GID:        gid,
		Kind:       ledger.EventComplete,
		Name:       gid,
		Files:      files,
		ObservedAt: time.Now().UTC(),
	}
	created, err := store.RecordEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("store.RecordEvent: %v", err)
	}
	if !created {
		t.Fatalf("event for gid %s already recorded", gid)
	}
	return event
}
