package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/signadot/sessiond/api"
)

func TestRegisterDefaults(t *testing.T) {
	r := New()
	info, ok := r.Register("s1", "u1")
	if !ok {
		t.Fatalf("register refused")
	}
	if info.Status != api.StatusActive {
		t.Fatalf("got status %q, want %q", info.Status, api.StatusActive)
	}
	if info.CurrentTask != api.DefaultTask {
		t.Fatalf("got task %q, want %q", info.CurrentTask, api.DefaultTask)
	}
	if info.Progress != 0 {
		t.Fatalf("got progress %v, want 0", info.Progress)
	}
	if info.ResourcesUsed == nil {
		t.Fatalf("resources map is nil")
	}
	if r.Count() != 1 {
		t.Fatalf("got count %d, want 1", r.Count())
	}
}

func TestDuplicateRegisterRefused(t *testing.T) {
	r := New()
	if _, ok := r.Register("s1", "u1"); !ok {
		t.Fatalf("register refused")
	}
	if _, ok := r.Apply("s1", map[string]any{"progress": 0.7}, false); !ok {
		t.Fatalf("apply failed")
	}
	if _, ok := r.Register("s1", "u2"); ok {
		t.Fatalf("duplicate register succeeded")
	}
	// the existing session is untouched
	info, ok := r.Get("s1")
	if !ok {
		t.Fatalf("session vanished")
	}
	if info.UserID != "u1" || info.Progress != 0.7 {
		t.Fatalf("duplicate register mutated session: %+v", info)
	}
	if r.Count() != 1 {
		t.Fatalf("got count %d, want 1", r.Count())
	}
}

func TestApplyRecognizedFields(t *testing.T) {
	r := New()
	if _, ok := r.Register("s1", "u1"); !ok {
		t.Fatalf("register refused")
	}
	info, ok := r.Apply("s1", map[string]any{
		"status":         "paused",
		"current_task":   "indexing",
		"progress":       0.25,
		"resources_used": map[string]any{"cpu": 2.0},
	}, false)
	if !ok {
		t.Fatalf("apply failed")
	}
	want := api.SessionInfo{
		SessionID:     "s1",
		UserID:        "u1",
		Status:        "paused",
		CurrentTask:   "indexing",
		Progress:      0.25,
		CreatedAt:     info.CreatedAt,
		LastActivity:  info.LastActivity,
		ResourcesUsed: map[string]any{"cpu": 2.0},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyCopiesResourceMap(t *testing.T) {
	r := New()
	if _, ok := r.Register("s1", "u1"); !ok {
		t.Fatalf("register refused")
	}
	updates := map[string]any{
		"resources_used": map[string]any{"cpu": 2.0},
	}
	if _, ok := r.Apply("s1", updates, false); !ok {
		t.Fatalf("apply failed")
	}
	// mutating the caller's map after Apply must not reach the record
	updates["resources_used"].(map[string]any)["cpu"] = 9.0
	info, ok := r.Get("s1")
	if !ok {
		t.Fatalf("session missing")
	}
	if info.ResourcesUsed["cpu"] != 2.0 {
		t.Fatalf("caller mutation leaked into store: %v", info.ResourcesUsed)
	}
}

func TestApplyIgnoresUnknownAndBadlyTyped(t *testing.T) {
	r := New()
	if _, ok := r.Register("s1", "u1"); !ok {
		t.Fatalf("register refused")
	}
	info, ok := r.Apply("s1", map[string]any{
		"status":     42,
		"progress":   "lots",
		"session_id": "hijack",
		"nonsense":   true,
	}, false)
	if !ok {
		t.Fatalf("apply failed")
	}
	if info.Status != api.StatusActive {
		t.Fatalf("badly typed status applied: %q", info.Status)
	}
	if info.Progress != 0 {
		t.Fatalf("badly typed progress applied: %v", info.Progress)
	}
	if info.SessionID != "s1" {
		t.Fatalf("immutable session id changed: %q", info.SessionID)
	}
}

func TestApplyEmptyRefreshesActivity(t *testing.T) {
	r := New()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	if _, ok := r.Register("s1", "u1"); !ok {
		t.Fatalf("register refused")
	}
	clock = clock.Add(time.Minute)
	info, ok := r.Apply("s1", nil, false)
	if !ok {
		t.Fatalf("apply failed")
	}
	if !info.LastActivity.Equal(clock) {
		t.Fatalf("got activity %v, want %v", info.LastActivity, clock)
	}
}

func TestApplyMissing(t *testing.T) {
	r := New()
	if _, ok := r.Apply("ghost", map[string]any{"status": "x"}, false); ok {
		t.Fatalf("apply to missing session reported ok")
	}
}

func TestApplyMergeResources(t *testing.T) {
	r := New()
	if _, ok := r.Register("s1", "u1"); !ok {
		t.Fatalf("register refused")
	}
	if _, ok := r.Apply("s1", map[string]any{
		"resources_used": map[string]any{"cpu": 2.0, "mem": 512.0},
	}, false); !ok {
		t.Fatalf("apply failed")
	}
	info, ok := r.Apply("s1", map[string]any{
		"resources_used": map[string]any{"cpu": 4.0, "mem": nil, "gpu": 1.0},
	}, true)
	if !ok {
		t.Fatalf("merge apply failed")
	}
	if info.ResourcesUsed["cpu"] != 4.0 {
		t.Fatalf("merged cpu = %v, want 4", info.ResourcesUsed["cpu"])
	}
	if info.ResourcesUsed["gpu"] != 1.0 {
		t.Fatalf("merged gpu = %v, want 1", info.ResourcesUsed["gpu"])
	}
	if _, present := info.ResourcesUsed["mem"]; present {
		t.Fatalf("null patch value did not remove mem: %v", info.ResourcesUsed)
	}
}

func TestListAllSnapshot(t *testing.T) {
	r := New()
	if got := r.ListAll(); got == nil || len(got) != 0 {
		t.Fatalf("empty list = %#v, want empty non-nil slice", got)
	}
	for _, id := range []string{"b", "a", "c"} {
		if _, ok := r.Register(id, "u1"); !ok {
			t.Fatalf("register %s refused", id)
		}
	}
	got := r.ListAll()
	if len(got) != 3 {
		t.Fatalf("got %d sessions, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].SessionID != want {
			t.Fatalf("position %d: got %q, want %q", i, got[i].SessionID, want)
		}
	}
	// mutating the snapshot must not touch the store
	got[0].ResourcesUsed["leak"] = true
	if info, _ := r.Get("a"); len(info.ResourcesUsed) != 0 {
		t.Fatalf("snapshot mutation leaked into store: %v", info.ResourcesUsed)
	}
}

func TestEvict(t *testing.T) {
	r := New()
	if _, ok := r.Register("s1", "u1"); !ok {
		t.Fatalf("register refused")
	}
	if !r.Evict("s1") {
		t.Fatalf("evict of existing session returned false")
	}
	if r.Evict("s1") {
		t.Fatalf("evict of missing session returned true")
	}
	if _, ok := r.Get("s1"); ok {
		t.Fatalf("session still present after evict")
	}
}

func TestSweepIdleBoundary(t *testing.T) {
	r := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Minute
	r.Seed([]api.SessionInfo{
		{SessionID: "fresh", UserID: "u", LastActivity: base.Add(-time.Minute)},
		{SessionID: "boundary", UserID: "u", LastActivity: base.Add(-timeout)},
		{SessionID: "stale", UserID: "u", LastActivity: base.Add(-timeout - time.Second)},
	})
	r.now = func() time.Time { return base }

	evicted := r.SweepIdle(timeout)
	if len(evicted) != 1 || evicted[0].SessionID != "stale" {
		t.Fatalf("evicted %#v, want only stale", evicted)
	}
	if _, ok := r.Get("boundary"); !ok {
		t.Fatalf("boundary session evicted at exactly the timeout")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Fatalf("fresh session evicted")
	}
}

func TestConcurrentRegisterDistinctIDs(t *testing.T) {
	r := New()
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%02d", i)
		wg.Go(func() {
			if _, ok := r.Register(id, "u1"); !ok {
				t.Errorf("register %s refused", id)
			}
		})
	}
	wg.Wait()
	if got := len(r.ListAll()); got != n {
		t.Fatalf("got %d sessions, want %d", got, n)
	}
}

func TestSeedPreservesTimestamps(t *testing.T) {
	r := New()
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	active := created.Add(time.Hour)
	r.Seed([]api.SessionInfo{{
		SessionID:    "s1",
		UserID:       "u1",
		Status:       api.StatusIdle,
		CreatedAt:    created,
		LastActivity: active,
	}})
	info, ok := r.Get("s1")
	if !ok {
		t.Fatalf("seeded session missing")
	}
	if !info.CreatedAt.Equal(created) || !info.LastActivity.Equal(active) {
		t.Fatalf("seed rewrote timestamps: %+v", info)
	}
	if info.ResourcesUsed == nil {
		t.Fatalf("seed left resources map nil")
	}
}
