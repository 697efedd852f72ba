package engram

import (
	"context"
	"fmt"
	"log"
)

// pairKey returns a and b in canonical order so the (a,b) key in
// hebbian_edges is insensitive to co-activation order.
func pairKey(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// recordCoActivation is called once per unordered pair of entries returned
// together from a single recall (spec §4.4). It is the only way a
// HebbianEdge's count advances.
//
//   - No existing record: insert a tracking record, count=1, strength=0;
//     when FormationThreshold is 1 the record is formed at once with
//     strength 1.0.
//   - Existing tracking record below FormationThreshold: count++; at
//     FormationThreshold it is promoted to a formed link with strength 1.0
//     (spec §4.4 step 3), regardless of StrengthenBoost.
//   - Existing formed link: count++, strength += StrengthenBoost, capped at
//     StrengthCap ("use it or lose it" reinforcement).
func recordCoActivation(ctx context.Context, store Store, id1, id2 string, cfg *HebbianConfig) error {
	if id1 == id2 {
		return nil
	}
	a, b := pairKey(id1, id2)

	edge, err := store.GetAssoc(ctx, a, b)
	if err != nil {
		return fmt.Errorf("hebbian: get assoc: %w", err)
	}

	if edge == nil {
		edge = &HebbianEdge{A: a, B: b, Strength: 0, Count: 1, Formed: false}
		if edge.Count >= cfg.FormationThreshold {
			edge.Formed = true
			edge.Strength = 1.0
		}
		return store.UpsertAssoc(ctx, edge)
	}

	edge.Count++
	switch {
	case edge.Formed:
		edge.Strength += cfg.StrengthenBoost
		if edge.Strength > cfg.StrengthCap {
			edge.Strength = cfg.StrengthCap
		}
	case edge.Count >= cfg.FormationThreshold:
		edge.Formed = true
		edge.Strength = 1.0
	}
	return store.UpsertAssoc(ctx, edge)
}

// recordCoActivations records every unordered pair within a set of entry
// IDs that were returned together from one recall.
func recordCoActivations(ctx context.Context, store Store, ids []string, cfg *HebbianConfig) error {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if err := recordCoActivation(ctx, store, ids[i], ids[j], cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// hebbianNeighbor pairs a formed link's strength with the ID on the other
// side of id.
type hebbianNeighbor struct {
	ID       string
	Strength float64
}

// hebbianNeighbors returns every entry formed-linked to id, for graph
// expansion and for session working memory's needs_recall overlap check.
func hebbianNeighbors(ctx context.Context, store Store, id string) ([]hebbianNeighbor, error) {
	edges, err := store.AssocNeighbors(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("hebbian: neighbors: %w", err)
	}
	out := make([]hebbianNeighbor, 0, len(edges))
	for _, e := range edges {
		other := e.A
		if other == id {
			other = e.B
		}
		out = append(out, hebbianNeighbor{ID: other, Strength: e.Strength})
	}
	return out, nil
}

// decayHebbian applies one consolidation step of co-activation decay: every
// formed link's strength multiplies by cfg.DecayFactor, and links below
// cfg.PruneFloor are deleted. Tracking records are untouched.
func decayHebbian(ctx context.Context, store Store, cfg *HebbianConfig) error {
	if cfg.Disabled {
		return nil
	}
	if _, err := healHebbianConsistency(ctx, store); err != nil {
		return fmt.Errorf("hebbian: consistency check: %w", err)
	}
	if err := store.DecayAssoc(ctx, cfg.DecayFactor, cfg.PruneFloor); err != nil {
		return fmt.Errorf("hebbian: decay: %w", err)
	}
	return nil
}

// healHebbianConsistency enforces the edge symmetry invariant (spec's
// testable property: every formed link is undirected). A HebbianEdge is
// keyed by an unordered pair (store.go), and pairKey is the only way
// recordCoActivation ever builds that key, so every edge this engine writes
// already has A <= B. The anomaly this guards against is a row that
// reached hebbian_edges some other way — a direct store write, a restored
// backup, a future Store implementation — with that ordering violated,
// which means its canonical mirror may also exist and the pair is
// effectively one-way. Each consolidation pass deletes any such malformed
// half, logging ErrConsistencyViolation rather than surfacing it, per
// spec §7. A healthy run finds none and this is a no-op.
func healHebbianConsistency(ctx context.Context, store Store) (int, error) {
	edges, err := store.IterFormedAssoc(ctx)
	if err != nil {
		return 0, fmt.Errorf("list formed edges: %w", err)
	}

	healed := 0
	for _, edge := range edges {
		if edge.A <= edge.B {
			continue
		}
		if err := store.DeleteAssoc(ctx, edge.A, edge.B); err != nil {
			return healed, fmt.Errorf("delete half-edge (%s,%s): %w", edge.A, edge.B, err)
		}
		log.Printf("[engram] %v: deleted half-edge (%s,%s)", ErrConsistencyViolation, edge.A, edge.B)
		healed++
	}
	return healed, nil
}
