package engram

import (
	"context"
	"math"
	"testing"
	"time"
)

// newTestEngram builds an Engram against a temp-dir SQLite store with a
// FixedClock, bypassing Init's file-path defaults so tests control time.
func newTestEngram(t *testing.T) *Engram {
	t.Helper()
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.EmbeddingProvider = nullEmbedder{}
	cfg.Classifier = NewHeuristicClassifier("")
	cfg.EntityExtractor = DefaultEntityExtractor{}

	return &Engram{
		store:    testStore(t),
		config:   &cfg,
		clock:    &FixedClock{At: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		sessions: make(map[string]*SessionWorkingMemory),
	}
}

func TestAddRequiresContent(t *testing.T) {
	e := newTestEngram(t)
	if _, err := e.Add(context.Background(), AddOptions{}); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestAddRejectsUnrecognizedType(t *testing.T) {
	e := newTestEngram(t)
	_, err := e.Add(context.Background(), AddOptions{Content: "hi", Type: MemoryType("bogus")})
	if err == nil {
		t.Error("expected error for unrecognized type")
	}
}

func TestAddClassifiesWhenTypeOmitted(t *testing.T) {
	e := newTestEngram(t)
	entry, err := e.Add(context.Background(), AddOptions{Content: "Alex is a software engineer from Seattle"})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Type == "" {
		t.Error("expected a classified type")
	}
	if entry.Layer != LayerWorking {
		t.Errorf("expected new entry to start in working layer, got %s", entry.Layer)
	}
	if entry.WorkingStrength != 1.0 {
		t.Errorf("expected fresh working strength 1.0, got %.2f", entry.WorkingStrength)
	}
}

func TestAddDefaultsImportance(t *testing.T) {
	e := newTestEngram(t)
	entry, err := e.Add(context.Background(), AddOptions{Content: "hello there"})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Importance != 0.5 {
		t.Errorf("expected default importance 0.5, got %.2f", entry.Importance)
	}
}

func TestRecallRequiresQuery(t *testing.T) {
	e := newTestEngram(t)
	if _, err := e.Recall(context.Background(), SearchOptions{}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestAddThenRecallFindsIt(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)

	entry, err := e.Add(ctx, AddOptions{Content: "Jordan loves hiking in the Cascades"})
	if err != nil {
		t.Fatal(err)
	}

	results, err := e.Recall(ctx, SearchOptions{Query: "hiking Cascades", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != entry.ID {
		t.Errorf("expected %s to be the top result, got %s", entry.ID, results[0].ID)
	}
}

func TestRecallRecordsSideEffects(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	entry, _ := e.Add(ctx, AddOptions{Content: "Morgan prefers tea over coffee in the morning"})

	if _, err := e.Recall(ctx, SearchOptions{Query: "tea coffee morning", Limit: 5}); err != nil {
		t.Fatal(err)
	}

	got, err := e.store.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessCount != 1 {
		t.Errorf("expected access count 1 after recall, got %d", got.AccessCount)
	}
	if got.LastAccess == nil {
		t.Error("expected last access to be set")
	}
}

func TestRewardPositiveBoostsImportanceCapped(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	entry, _ := e.Add(ctx, AddOptions{Content: "some fact worth remembering", Importance: 0.5})

	if err := e.Reward(ctx, []string{entry.ID}, true); err != nil {
		t.Fatal(err)
	}

	got, _ := e.store.GetEntry(ctx, entry.ID)
	if math.Abs(got.Importance-0.55) > 0.0001 {
		t.Errorf("expected importance 0.5*1.1=0.55, got %.4f", got.Importance)
	}
	if got.AccessCount != 1 {
		t.Errorf("expected access count incremented, got %d", got.AccessCount)
	}

	for i := 0; i < 20; i++ {
		if err := e.Reward(ctx, []string{entry.ID}, true); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = e.store.GetEntry(ctx, entry.ID)
	if got.Importance != rewardImportanceCap {
		t.Errorf("expected importance capped at %v, got %.4f", rewardImportanceCap, got.Importance)
	}
}

func TestRewardNegativeShrinksImportanceFloored(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	entry, _ := e.Add(ctx, AddOptions{Content: "a fact that turned out wrong", Importance: 0.1})

	if err := e.Reward(ctx, []string{entry.ID}, false); err != nil {
		t.Fatal(err)
	}

	got, _ := e.store.GetEntry(ctx, entry.ID)
	if math.Abs(got.Importance-0.09) > 0.0001 {
		t.Errorf("expected importance 0.1*0.9=0.09, got %.4f", got.Importance)
	}

	for i := 0; i < 10; i++ {
		if err := e.Reward(ctx, []string{entry.ID}, false); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = e.store.GetEntry(ctx, entry.ID)
	if got.Importance != rewardImportanceFloor {
		t.Errorf("expected importance floored at %v, got %.4f", rewardImportanceFloor, got.Importance)
	}
}

func TestRewardReusesLastRecallWhenIDsEmpty(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	entry, _ := e.Add(ctx, AddOptions{Content: "a memorable fact about rewards", Importance: 0.5})
	if _, err := e.Recall(ctx, SearchOptions{Query: "memorable fact rewards", Limit: 5}); err != nil {
		t.Fatal(err)
	}

	if err := e.Reward(ctx, nil, true); err != nil {
		t.Fatal(err)
	}

	got, _ := e.store.GetEntry(ctx, entry.ID)
	if math.Abs(got.Importance-0.55) > 0.0001 {
		t.Errorf("expected reward to apply to last recall set, got %.4f", got.Importance)
	}
}

func TestStatsCountsByLayer(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	e.Add(ctx, AddOptions{Content: "first fact"})
	e.Add(ctx, AddOptions{Content: "second fact"})

	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 {
		t.Errorf("expected 2 total entries, got %d", stats.Total)
	}
	if stats.ByLayer[LayerWorking] != 2 {
		t.Errorf("expected both entries in working layer, got %d", stats.ByLayer[LayerWorking])
	}
}

func TestConsolidateDecaysStrength(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	entry, _ := e.Add(ctx, AddOptions{Content: "a fact that will decay"})

	if err := e.Consolidate(ctx, 1); err != nil {
		t.Fatal(err)
	}

	got, _ := e.store.GetEntry(ctx, entry.ID)
	if got.EffectiveStrength() >= entry.EffectiveStrength() {
		t.Errorf("expected strength to decay after one consolidation step: before=%.4f after=%.4f",
			entry.EffectiveStrength(), got.EffectiveStrength())
	}
}

// weakenEntry directly drives an entry's strength down, independent of the
// decay formula's numerics, so Forget is tested in isolation.
func weakenEntry(t *testing.T, e *Engram, id string) {
	t.Helper()
	entry, err := e.store.GetEntry(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	entry.WorkingStrength = 0.001
	entry.CoreStrength = 0.001
	if err := e.store.UpdateEntry(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
}

func TestForgetDeletesWeakUnpinnedEntries(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)

	weak, _ := e.Add(ctx, AddOptions{Content: "forgettable aside", Importance: 0.2})
	strong, _ := e.Add(ctx, AddOptions{Content: "important fact", Importance: 0.95})

	weakenEntry(t, e, weak.ID)
	weakenEntry(t, e, strong.ID)

	n, err := e.Forget(ctx, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 entry forgotten, got %d", n)
	}

	if _, err := e.store.GetEntry(ctx, weak.ID); err != ErrNotFound {
		t.Error("expected weak entry to be forgotten")
	}
	if _, err := e.store.GetEntry(ctx, strong.ID); err != nil {
		t.Error("expected high-importance entry to survive regardless of strength")
	}
}

func TestForgetSkipsPinnedRegardlessOfStrength(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	entry, _ := e.Add(ctx, AddOptions{Content: "pinned but weak", Pinned: true, Importance: 0.1})

	weakenEntry(t, e, entry.ID)
	e.Forget(ctx, 1.0) // a threshold so high it would catch anything unpinned

	if _, err := e.store.GetEntry(ctx, entry.ID); err != nil {
		t.Error("expected pinned entry to survive Forget")
	}
}

func TestEnforceMaxEntriesPrunesWeakestUnpinnedFirst(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	e.config.MaxEntries = 2

	first, _ := e.Add(ctx, AddOptions{Content: "entry one"})
	e.Add(ctx, AddOptions{Content: "entry two"})

	first.WorkingStrength = 0.01
	e.store.UpdateEntry(ctx, first)

	e.Add(ctx, AddOptions{Content: "entry three"})

	all, err := e.store.AllEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected MaxEntries to cap population at 2, got %d", len(all))
	}
	for _, en := range all {
		if en.ID == first.ID {
			t.Error("expected weakest entry to have been pruned")
		}
	}
}

func TestSortByEffectiveStrengthAsc(t *testing.T) {
	entries := []*Entry{
		{ID: "strong", WorkingStrength: 0.9},
		{ID: "weak", WorkingStrength: 0.1},
		{ID: "mid", WorkingStrength: 0.5},
	}
	sortByEffectiveStrengthAsc(entries)
	if entries[0].ID != "weak" || entries[1].ID != "mid" || entries[2].ID != "strong" {
		t.Errorf("expected ascending order weak,mid,strong; got %s,%s,%s",
			entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestTruncateSummaryBreaksAtWordBoundary(t *testing.T) {
	long := "the quick brown fox jumps over the lazy dog and keeps running far beyond the fence line today"
	got := truncateSummary(long, 20)
	if len(got) > 24 {
		t.Errorf("expected truncation near 20 chars, got %d: %q", len(got), got)
	}
	if got[len(got)-1] != '.' {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}

func TestTruncateSummaryShortStringUnchanged(t *testing.T) {
	short := "short"
	if got := truncateSummary(short, 20); got != short {
		t.Errorf("expected unchanged short string, got %q", got)
	}
}

func TestSessionRecallFullPathActivatesWorkingMemory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	e.Add(ctx, AddOptions{Content: "Taylor just started learning the violin"})

	results, err := e.SessionRecall(ctx, "sess-1", SearchOptions{Query: "violin learning", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}

	wm := e.sessionWM("sess-1")
	if wm.IsEmpty() {
		t.Error("expected session working memory to be populated after a full recall")
	}
}

func TestSessionRecallReusesWorkingMemoryOnHighOverlap(t *testing.T) {
	ctx := context.Background()
	e := newTestEngram(t)
	entry, _ := e.Add(ctx, AddOptions{Content: "Casey just adopted a rescue dog named Biscuit"})

	first, err := e.SessionRecall(ctx, "sess-1", SearchOptions{Query: "rescue dog Biscuit", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == 0 {
		t.Fatal("expected a result from the first recall")
	}

	second, err := e.SessionRecall(ctx, "sess-1", SearchOptions{Query: "rescue dog Biscuit", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(second) == 0 {
		t.Fatal("expected a result reused from working memory")
	}
	if second[0].ID != entry.ID {
		t.Errorf("expected reused result to be the same entry, got %s", second[0].ID)
	}
}

func TestSessionRecallRequiresSessionID(t *testing.T) {
	e := newTestEngram(t)
	if _, err := e.SessionRecall(context.Background(), "", SearchOptions{Query: "x"}); err == nil {
		t.Error("expected error for empty session id")
	}
}
