package engram

import (
	"context"
	"testing"
)

func TestExtractBracketedNameAsPerson(t *testing.T) {
	ents := DefaultEntityExtractor{}.Extract("Had lunch with [Alex] downtown.")
	found := false
	for _, e := range ents {
		if e.Text == "Alex" && e.Type == "person" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected bracketed name to be extracted as a person, got %+v", ents)
	}
}

func TestExtractQuotedPhraseAsTopic(t *testing.T) {
	ents := DefaultEntityExtractor{}.Extract(`They called it "the migration project" in the meeting.`)
	found := false
	for _, e := range ents {
		if e.Text == "the migration project" && e.Type == "topic" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected quoted phrase to be extracted as a topic, got %+v", ents)
	}
}

func TestExtractProperNounPhraseAsTopic(t *testing.T) {
	ents := DefaultEntityExtractor{}.Extract("We discussed Golden Gate Park on the call.")
	found := false
	for _, e := range ents {
		if e.Text == "Golden Gate Park" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected multi-word proper noun to be extracted, got %+v", ents)
	}
}

func TestExtractFiltersCommonSentenceStarters(t *testing.T) {
	ents := DefaultEntityExtractor{}.Extract("They Are happy about the results today.")
	for _, e := range ents {
		if e.Text == "They Are" {
			t.Errorf("expected common phrase to be filtered, got %+v", ents)
		}
	}
}

func TestExtractDeduplicatesCaseInsensitively(t *testing.T) {
	ents := DefaultEntityExtractor{}.Extract(`[Alex] said "Alex" was the one who called. [alex] again later.`)
	count := 0
	for _, e := range ents {
		if e.Type == "person" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected case-insensitive dedup to keep a single person entity, got %d: %+v", count, ents)
	}
}

func TestExtractEmptyContentYieldsNoEntities(t *testing.T) {
	ents := DefaultEntityExtractor{}.Extract("")
	if len(ents) != 0 {
		t.Errorf("expected no entities from empty content, got %+v", ents)
	}
}

func TestIndexEntitiesRecordsGraphEdges(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	entry := newTestEntry("e1", "Met with [Jordan] to plan the launch.")
	if err := store.InsertEntry(ctx, entry); err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}

	if err := indexEntities(ctx, store, DefaultEntityExtractor{}, entry); err != nil {
		t.Fatalf("indexEntities: %v", err)
	}

	ents, err := store.EntitiesOf(ctx, "e1")
	if err != nil {
		t.Fatalf("EntitiesOf: %v", err)
	}
	found := false
	for _, e := range ents {
		if e.Text == "Jordan" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Jordan to be indexed as a graph edge for e1, got %+v", ents)
	}
}

func TestExpandViaEntitiesExcludesSeedsAndWeighsByLinkWeight(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	seed := newTestEntry("seed", "Discussing [Jordan] and the roadmap.")
	other := newTestEntry("other", "Another note about [Jordan] and timing.")
	for _, e := range []*Entry{seed, other} {
		if err := store.InsertEntry(ctx, e); err != nil {
			t.Fatalf("InsertEntry: %v", err)
		}
	}
	if err := indexEntities(ctx, store, DefaultEntityExtractor{}, seed); err != nil {
		t.Fatalf("indexEntities: %v", err)
	}
	if err := indexEntities(ctx, store, DefaultEntityExtractor{}, other); err != nil {
		t.Fatalf("indexEntities: %v", err)
	}

	weights, err := expandViaEntities(ctx, store, []string{"seed"}, 0.4)
	if err != nil {
		t.Fatalf("expandViaEntities: %v", err)
	}
	if _, ok := weights["seed"]; ok {
		t.Error("expected seed entries to be excluded from expansion results")
	}
	if w, ok := weights["other"]; !ok || w != 0.4 {
		t.Errorf("expected other to be reached at link weight 0.4, got %v ok=%v", w, ok)
	}
}
