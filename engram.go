package engram

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engram is the memory engine: durable dual-layer entries, an activation
// scorer, Hebbian co-activation, and per-session working memory, all
// fronting a pluggable Store.
type Engram struct {
	store  Store
	config *Config
	clock  Clock
	mu     sync.RWMutex

	sessionsMu sync.Mutex
	sessions   map[string]*SessionWorkingMemory

	lastRecallMu sync.Mutex
	lastRecall   []string
}

// Init opens the configured store and returns a ready Engram. It does not
// start any background goroutine; call RunConsolidationLoop yourself if you
// want periodic consolidation (spec §5: no operation spawns background work).
func Init(cfg Config) (*Engram, error) {
	cfg.ApplyDefaults()
	if cfg.EmbeddingProvider == nil {
		cfg.EmbeddingProvider = nullEmbedder{}
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewHeuristicClassifier("")
	}
	if cfg.EntityExtractor == nil {
		cfg.EntityExtractor = DefaultEntityExtractor{}
	}

	store, err := NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	e := &Engram{
		store:    store,
		config:   &cfg,
		clock:    systemClock{},
		sessions: make(map[string]*SessionWorkingMemory),
	}
	log.Printf("[engram] initialized (db=%s)", cfg.DBPath)
	return e, nil
}

// Add stores a new entry, classifying its type when the caller doesn't supply
// one and extracting entities from its content (spec §4.1/§4.6 Add operation).
func (e *Engram) Add(ctx context.Context, opts AddOptions) (*Entry, error) {
	if opts.Content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if opts.Importance < 0 {
		return nil, fmt.Errorf("%w: importance must not be negative", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	typ := opts.Type
	if typ == "" {
		typ = e.config.Classifier.Classify(opts.Content)
	} else if !ValidType(typ) {
		return nil, fmt.Errorf("%w: unrecognized memory type %q", ErrInvalidInput, typ)
	}

	importance := opts.Importance
	if importance == 0 {
		importance = 0.5
	}

	now := e.clock.Now()
	entry := &Entry{
		ID:              uuid.NewString(),
		Content:         opts.Content,
		Summary:         truncateSummary(opts.Content, 200),
		Type:            typ,
		Importance:      importance,
		WorkingStrength: 1.0,
		CoreStrength:    0.0,
		Layer:           LayerWorking,
		CreatedAt:       now,
		Pinned:          opts.Pinned,
		Tags:            opts.Tags,
		Source:          opts.Source,
	}

	if err := e.store.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := indexEntities(ctx, e.store, e.config.EntityExtractor, entry); err != nil {
		log.Printf("[engram] entity indexing failed for %s: %v", entry.ID, err)
	}

	if vec, err := e.config.EmbeddingProvider.Embed(ctx, entry.Content); err != nil {
		log.Printf("[engram] embed failed, storing without vector: %v", err)
	} else if len(vec) > 0 {
		if err := e.store.UpsertVector(ctx, entry.ID, vec); err != nil {
			log.Printf("[engram] upsert vector failed for %s: %v", entry.ID, err)
		}
	}

	if err := e.enforceMaxEntries(ctx); err != nil {
		log.Printf("[engram] enforce max entries failed: %v", err)
	}

	return entry, nil
}

// enforceMaxEntries prunes the lowest-effective-strength unpinned entries
// once the configured cap is exceeded. Must be called with e.mu held.
func (e *Engram) enforceMaxEntries(ctx context.Context) error {
	if e.config.MaxEntries <= 0 {
		return nil
	}
	entries, err := e.store.AllEntries(ctx)
	if err != nil {
		return err
	}
	excess := len(entries) - e.config.MaxEntries
	if excess <= 0 {
		return nil
	}

	var unpinned []*Entry
	for _, en := range entries {
		if !en.Pinned {
			unpinned = append(unpinned, en)
		}
	}
	sortByEffectiveStrengthAsc(unpinned)

	for i := 0; i < excess && i < len(unpinned); i++ {
		if err := e.store.DeleteEntry(ctx, unpinned[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func sortByEffectiveStrengthAsc(entries []*Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].EffectiveStrength() < entries[j-1].EffectiveStrength(); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Recall runs the full retrieval pipeline (spec §4.3) and records the
// returned ids as the engine's "last recall set" for Reward to reuse.
func (e *Engram) Recall(ctx context.Context, opts SearchOptions) ([]RecallResult, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	results, err := e.recall(ctx, opts, false)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	e.lastRecallMu.Lock()
	e.lastRecall = ids
	e.lastRecallMu.Unlock()

	return results, nil
}

// SessionRecall implements the needs-recall shortcut of spec §4.6: when the
// session's working memory already covers the topic it is returned as-is,
// otherwise a full Recall runs and its results are activated in working
// memory alongside the ids still active there.
func (e *Engram) SessionRecall(ctx context.Context, sessionID string, opts SearchOptions) ([]RecallResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	need, err := e.needsRecall(ctx, sessionID, opts.Query)
	if err != nil {
		return nil, err
	}

	wm := e.sessionWM(sessionID)
	if !need {
		active := wm.ActiveIDs()
		now := e.clock.Now()
		e.mu.RLock()
		results := make([]RecallResult, 0, len(active))
		for _, id := range active {
			entry, err := e.store.GetEntry(ctx, id)
			if err != nil {
				continue
			}
			results = append(results, recallResultFromEntry(entry, now))
		}
		e.mu.RUnlock()
		sortResults(results)
		limit := opts.Limit
		if limit <= 0 {
			limit = 5
		}
		if len(results) > limit {
			results = results[:limit]
		}
		return results, nil
	}

	results, err := e.Recall(ctx, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	wm.Activate(ids)
	return results, nil
}

// recallResultFromEntry builds a result for an entry reused straight from
// session working memory, with no fresh query to score against. Its
// confidence is the strength-based approximation min(1, strength*1.2)
// rather than full query-scored activation (spec Design Notes: the two
// confidence computations serve different call paths, not the same one).
func recallResultFromEntry(entry *Entry, now time.Time) RecallResult {
	approx := entry.EffectiveStrength() * 1.2
	if approx > 1.0 {
		approx = 1.0
	}
	return RecallResult{
		ID:              entry.ID,
		Content:         entry.Content,
		Type:            entry.Type,
		Activation:      approx,
		Confidence:      approx,
		ConfidenceLabel: confidenceLabel(approx),
		Strength:        entry.EffectiveStrength(),
		AgeDays:         entry.AgeDays(now),
		Layer:           entry.Layer,
		Importance:      entry.Importance,
		Pinned:          entry.Pinned,
		Source:          entry.Source,
		sortLastAccess:  entry.LastAccess,
		sortCreatedAt:   entry.CreatedAt,
	}
}

// rewardPositiveFactor and rewardNegativeFactor are the fixed importance
// multipliers spec §4.1 names for feedback: 1.1 for positive signal capped
// at 1.0, 0.9 for negative signal floored at 0.05.
const (
	rewardPositiveFactor  = 1.1
	rewardNegativeFactor  = 0.9
	rewardImportanceCap   = 1.0
	rewardImportanceFloor = 0.05
)

// Reward adjusts the importance of entries per spec §4.1's feedback rule:
// positive signal multiplies importance by 1.1 (capped at 1.0), negative
// signal multiplies it by 0.9 (floored at 0.05). An empty ids slice rewards
// the most recently recalled set (spec §4.7's "last-recall set").
func (e *Engram) Reward(ctx context.Context, ids []string, positive bool) error {
	if len(ids) == 0 {
		e.lastRecallMu.Lock()
		ids = append([]string(nil), e.lastRecall...)
		e.lastRecallMu.Unlock()
	}
	if len(ids) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	for _, id := range ids {
		entry, err := e.store.GetEntry(ctx, id)
		if err != nil {
			continue
		}
		if positive {
			entry.Importance = min(entry.Importance*rewardPositiveFactor, rewardImportanceCap)
		} else {
			entry.Importance = max(entry.Importance*rewardNegativeFactor, rewardImportanceFloor)
		}
		entry.AccessCount++
		entry.LastAccess = &now
		entry.Layer = deriveLayer(entry, e.config)
		if err := e.store.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		if err := e.store.LogAccess(ctx, id, now); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes the current entry population (spec §4.5 stats operation).
func (e *Engram) Stats(ctx context.Context) (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entries, err := e.store.AllEntries(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(entries), ByLayer: make(map[Layer]int)}
	for _, en := range entries {
		stats.ByLayer[en.Layer]++
	}

	links, err := e.store.IterFormedAssoc(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.FormedLinks = len(links)

	return stats, nil
}

// Close releases the underlying store. It does not stop any
// RunConsolidationLoop the caller started; cancel that loop's context first.
func (e *Engram) Close() error {
	return e.store.Close()
}

// truncateSummary returns the first n characters of s, breaking at a word
// boundary where possible.
func truncateSummary(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut] != ' ' {
		cut--
	}
	if cut == 0 {
		cut = n
	}
	return s[:cut] + "..."
}
