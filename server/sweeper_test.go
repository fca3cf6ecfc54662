package server

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/signadot/sessiond/api"
	"github.com/signadot/sessiond/registry"
	"github.com/signadot/sessiond/storage"
)

func seedStale(t *testing.T, reg *registry.Registry, ids ...string) {
	t.Helper()
	stale := time.Now().Add(-time.Hour)
	for _, id := range ids {
		reg.Seed([]api.SessionInfo{{
			SessionID:    id,
			UserID:       "u1",
			Status:       api.StatusActive,
			CreatedAt:    stale,
			LastActivity: stale,
		}})
	}
}

func TestSweepEvictsAndDeletesCheckpoints(t *testing.T) {
	reg := registry.New()
	store, err := storage.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	seedStale(t, reg, "old1", "old2")
	if _, ok := reg.Register("fresh", "u1"); !ok {
		t.Fatalf("register refused")
	}
	if err := store.SaveAll(reg.ListAll()); err != nil {
		t.Fatalf("save: %v", err)
	}

	sw := NewSweeper(&SweeperConfig{
		Registry: reg,
		Store:    store,
		Interval: time.Hour,
		Timeout:  30 * time.Minute,
	})

	if got := sw.Sweep(); got != 2 {
		t.Fatalf("swept %d sessions, want 2", got)
	}
	if n := reg.Count(); n != 1 {
		t.Fatalf("registry holds %d sessions, want 1", n)
	}

	rows, err := store.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 || rows[0].SessionID != "fresh" {
		t.Fatalf("checkpoints after sweep: %+v, want only fresh", rows)
	}
}

func TestSweepLoopRunsOnTicker(t *testing.T) {
	reg := registry.New()
	seedStale(t, reg, "old1")

	sw := NewSweeper(&SweeperConfig{
		Registry: reg,
		Interval: 10 * time.Millisecond,
		Timeout:  30 * time.Minute,
	})
	sw.Start()
	defer sw.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper never evicted, count = %d", reg.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSweeperStopIdempotent(t *testing.T) {
	sw := NewSweeper(&SweeperConfig{
		Registry: registry.New(),
		Interval: time.Hour,
		Timeout:  time.Hour,
	})
	sw.Start()
	sw.Stop()
	sw.Stop()
}
