package engram

import (
	"context"
	"testing"
	"time"
)

func TestRunConsolidationLoopStopsOnContextCancel(t *testing.T) {
	e := newTestEngram(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		e.RunConsolidationLoop(ctx, 5*time.Millisecond, 1, 0.05)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected RunConsolidationLoop to return shortly after context cancellation")
	}
}

func TestRunConsolidationLoopRunsConsolidateOnEachTick(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)

	entry, err := e.Add(ctx, AddOptions{Content: "a fact worth remembering", Importance: 0.2})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	loopCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	e.RunConsolidationLoop(loopCtx, 5*time.Millisecond, 1, 0)

	got, err := e.store.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry to survive (forget threshold 0 never deletes)")
	}
	if got.WorkingStrength >= entry.WorkingStrength {
		t.Errorf("expected repeated consolidation ticks to decay working strength below %v, got %v",
			entry.WorkingStrength, got.WorkingStrength)
	}
}
