package engram

import (
	"context"
	"sort"
	"time"
)

// candidate carries one entry through the recall pipeline: its entry,
// the signals the scorer needs, and the final computed activation.
type candidate struct {
	entry      *Entry
	lexical    float64
	semantic   float64
	linkWeight float64
	activation float64
	context    float64
}

// gatherCandidates implements spec §4.3 step 1: union of lexical search and
// (if available) vector search, sized to k_cand = max(multiplier*limit, floor).
func gatherCandidates(ctx context.Context, store Store, embedder EmbeddingProvider, query string, kCand int) (map[string]*candidate, error) {
	out := make(map[string]*candidate)

	hits, err := store.LexicalSearch(ctx, query, kCand)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		out[h.ID] = &candidate{lexical: h.Score}
	}

	if vs, ok := store.(VectorSearcher); ok && embedder != nil {
		if vec, err := embedder.Embed(ctx, query); err == nil && len(vec) > 0 {
			vhits, err := vs.VectorSearch(ctx, vec, kCand)
			if err == nil {
				for _, h := range vhits {
					if c, exists := out[h.ID]; exists {
						c.semantic = h.Score
					} else {
						out[h.ID] = &candidate{semantic: h.Score}
					}
				}
			}
		}
	}

	return out, nil
}

// recall is the shared implementation behind Recall and the probe recall
// that Engram.needsRecall uses (spec §4.3). skipSideEffects
// suppresses access logging and co-activation recording for probe calls.
func (e *Engram) recall(ctx context.Context, opts SearchOptions, skipSideEffects bool) ([]RecallResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	kCand := e.config.CandidateMultiplier * opts.Limit
	if kCand < e.config.CandidateFloor {
		kCand = e.config.CandidateFloor
	}

	cands, err := gatherCandidates(ctx, e.store, e.config.EmbeddingProvider, opts.Query, kCand)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}

	now := e.clock.Now()
	weights := e.config.scoringWeights

	for id, c := range cands {
		entry, err := e.store.GetEntry(ctx, id)
		if err != nil {
			delete(cands, id)
			continue
		}
		c.entry = entry
		c.linkWeight = 1.0
		c.activation, c.context = activation(scoreInputs{
			lexical:           c.lexical,
			semantic:          c.semantic,
			daysSinceAccess:   entry.DaysSinceAccess(now),
			accessCount:       entry.AccessCount,
			importance:        entry.Importance,
			effectiveStrength: entry.EffectiveStrength(),
			pinned:            entry.Pinned,
			linkWeight:        c.linkWeight,
		}, weights, e.config)
	}

	if opts.GraphExpand {
		if err := e.expandGraph(ctx, cands, weights, now); err != nil {
			return nil, err
		}
	}

	results := make([]RecallResult, 0, len(cands))
	for _, c := range cands {
		if c.entry == nil {
			continue
		}
		if c.activation < e.config.MinActivation {
			continue
		}
		label := confidenceLabel(c.activation)
		if opts.MinConfidence != "" && label.rank() < opts.MinConfidence.rank() {
			continue
		}
		results = append(results, RecallResult{
			ID:              c.entry.ID,
			Content:         c.entry.Content,
			Type:            c.entry.Type,
			Activation:      c.activation,
			Confidence:      c.activation,
			ConfidenceLabel: label,
			Strength:        c.entry.EffectiveStrength(),
			AgeDays:         c.entry.AgeDays(now),
			Layer:           c.entry.Layer,
			Importance:      c.entry.Importance,
			Pinned:          c.entry.Pinned,
			Source:          c.entry.Source,
			sortLastAccess:  c.entry.LastAccess,
			sortCreatedAt:   c.entry.CreatedAt,
		})
	}

	sortResults(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	if !skipSideEffects && len(results) > 0 {
		if err := e.applySideEffects(ctx, results, now); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// expandGraph implements spec §4.3 step 3: one-hop expansion over both the
// Hebbian formed-link graph and the entity graph, seeded from candidates
// whose activation already clears the expansion gate. Newly discovered
// neighbors are scored with the edge weight that connected them as their
// link weight. They were not lexical or vector hits, so they carry no
// lexical or semantic signal: their context term is zero whatever the edge
// weight, and their activation comes from recency, frequency, importance and
// strength alone.
func (e *Engram) expandGraph(ctx context.Context, cands map[string]*candidate, weights ScoringWeights, now time.Time) error {
	seeds := make([]string, 0, len(cands))
	for id, c := range cands {
		if c.activation >= e.config.Hebbian.ExpansionGate {
			seeds = append(seeds, id)
		}
	}
	if len(seeds) == 0 {
		return nil
	}

	borrowed := make(map[string]float64)

	for _, id := range seeds {
		neighbors, err := hebbianNeighbors(ctx, e.store, id)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			if _, already := cands[n.ID]; already {
				continue
			}
			w := clamp01(n.Strength)
			if w > borrowed[n.ID] {
				borrowed[n.ID] = w
			}
		}
	}

	entityWeights, err := expandViaEntities(ctx, e.store, seeds, 0.8)
	if err != nil {
		return err
	}
	for id, w := range entityWeights {
		if _, already := cands[id]; already {
			continue
		}
		if w > borrowed[id] {
			borrowed[id] = w
		}
	}

	for id, linkWeight := range borrowed {
		entry, err := e.store.GetEntry(ctx, id)
		if err != nil {
			continue
		}
		c := &candidate{entry: entry, linkWeight: linkWeight}
		c.activation, c.context = activation(scoreInputs{
			daysSinceAccess:   entry.DaysSinceAccess(now),
			accessCount:       entry.AccessCount,
			importance:        entry.Importance,
			effectiveStrength: entry.EffectiveStrength(),
			pinned:            entry.Pinned,
			linkWeight:        linkWeight,
		}, weights, e.config)
		cands[id] = c
	}

	return nil
}

// sortResults applies the deterministic ordering of spec §4.3 step 5:
// activation desc, then last access desc (never-accessed sorts last), then
// created_at asc.
func sortResults(results []RecallResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Activation != b.Activation {
			return a.Activation > b.Activation
		}
		switch {
		case a.sortLastAccess == nil && b.sortLastAccess == nil:
			return a.sortCreatedAt.Before(b.sortCreatedAt)
		case a.sortLastAccess == nil:
			return false
		case b.sortLastAccess == nil:
			return true
		case !a.sortLastAccess.Equal(*b.sortLastAccess):
			return a.sortLastAccess.After(*b.sortLastAccess)
		default:
			return a.sortCreatedAt.Before(b.sortCreatedAt)
		}
	})
}

// applySideEffects performs the atomic per-call bookkeeping of spec §4.3
// step 6: log an access, bump access_count, and record co-activation across
// every pair in the returned set.
func (e *Engram) applySideEffects(ctx context.Context, results []RecallResult, now time.Time) error {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
		if err := e.store.LogAccess(ctx, r.ID, now); err != nil {
			return err
		}
		entry, err := e.store.GetEntry(ctx, r.ID)
		if err != nil {
			continue
		}
		entry.AccessCount++
		entry.LastAccess = &now
		if err := e.store.UpdateEntry(ctx, entry); err != nil {
			return err
		}
	}

	if !e.config.Hebbian.Disabled {
		if err := recordCoActivations(ctx, e.store, ids, &e.config.Hebbian); err != nil {
			return err
		}
	}

	return nil
}
