package engram

import (
	"testing"
	"time"
)

func TestSessionWorkingMemoryActivateAndQuery(t *testing.T) {
	clock := &FixedClock{At: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	wm := newSessionWorkingMemory(SessionWMConfig{Capacity: 7, DecaySeconds: 300, OverlapRatio: 0.6}, clock)

	if !wm.IsEmpty() {
		t.Fatal("expected new working memory to be empty")
	}

	wm.Activate([]string{"e1", "e2"})
	if wm.IsEmpty() {
		t.Error("expected working memory to be non-empty after activation")
	}

	ids := wm.ActiveIDs()
	if len(ids) != 2 {
		t.Errorf("expected 2 active ids, got %d", len(ids))
	}
}

func TestSessionWorkingMemoryDecaysByWallClock(t *testing.T) {
	clock := &FixedClock{At: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	wm := newSessionWorkingMemory(SessionWMConfig{Capacity: 7, DecaySeconds: 300, OverlapRatio: 0.6}, clock)

	wm.Activate([]string{"e1"})

	clock.At = clock.At.Add(301 * time.Second)
	if !wm.IsEmpty() {
		t.Error("expected item older than DecaySeconds to have aged out")
	}
}

func TestSessionWorkingMemoryEnforcesCapacity(t *testing.T) {
	clock := &FixedClock{At: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	wm := newSessionWorkingMemory(SessionWMConfig{Capacity: 2, DecaySeconds: 300, OverlapRatio: 0.6}, clock)

	wm.Activate([]string{"e1"})
	clock.At = clock.At.Add(time.Second)
	wm.Activate([]string{"e2"})
	clock.At = clock.At.Add(time.Second)
	wm.Activate([]string{"e3"})

	ids := wm.ActiveIDs()
	if len(ids) != 2 {
		t.Fatalf("expected capacity to cap at 2, got %d", len(ids))
	}
	for _, id := range ids {
		if id == "e1" {
			t.Error("expected least-recently-activated entry to be evicted first")
		}
	}
}

func TestSessionWorkingMemoryClear(t *testing.T) {
	clock := &FixedClock{At: time.Now()}
	wm := newSessionWorkingMemory(SessionWMConfig{Capacity: 7, DecaySeconds: 300, OverlapRatio: 0.6}, clock)
	wm.Activate([]string{"e1", "e2"})
	wm.Clear()
	if !wm.IsEmpty() {
		t.Error("expected Clear to empty working memory")
	}
}

func TestEngramSessionRegistryIsPerInstance(t *testing.T) {
	e1 := newTestEngram(t)
	e2 := newTestEngram(t)

	e1.sessionWM("shared-id").Activate([]string{"e1"})

	if !e2.sessionWM("shared-id").IsEmpty() {
		t.Error("expected separate Engram instances to have isolated session registries")
	}
	if len(e1.Sessions()) != 1 {
		t.Errorf("expected e1 to track 1 session, got %d", len(e1.Sessions()))
	}
	if len(e2.Sessions()) != 1 {
		t.Errorf("expected e2's own lazily-created session to be tracked, got %d", len(e2.Sessions()))
	}
}

func TestClearSessionReportsExistence(t *testing.T) {
	e := newTestEngram(t)
	e.sessionWM("sess-1").Activate([]string{"e1"})

	if !e.ClearSession("sess-1") {
		t.Error("expected ClearSession to report true for an existing session")
	}
	if e.ClearSession("sess-1") {
		t.Error("expected ClearSession to report false the second time")
	}
	if e.ClearSession("never-existed") {
		t.Error("expected ClearSession to report false for an unknown session")
	}
}
