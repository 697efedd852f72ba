package engram

import (
	"context"
	"fmt"
)

// Consolidate applies one dual-layer decay step of deltaDays to every entry,
// then decays the Hebbian graph (spec §4.5). deltaDays is caller-supplied
// rather than derived from wall-clock elapsed time, so repeated calls with
// the same deltaDays are reproducible regardless of real-world timing.
func (e *Engram) Consolidate(ctx context.Context, deltaDays float64) error {
	if deltaDays < 0 {
		return fmt.Errorf("consolidate: %w: delta days must not be negative", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.store.AllEntries(ctx)
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	for _, entry := range entries {
		rate, ok := e.config.decayRates[entry.Type]
		if !ok {
			rate = e.config.decayRates[TypeFactual]
		}
		ApplyDecay(entry, rate, deltaDays, e.config)
		if err := e.store.UpdateEntry(ctx, entry); err != nil {
			return fmt.Errorf("consolidate: update %s: %w", entry.ID, err)
		}
	}

	if err := decayHebbian(ctx, e.store, &e.config.Hebbian); err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	return nil
}

// Forget deletes every unpinned entry whose effective strength is below
// threshold and whose importance is below the pin-importance floor (spec
// §4.5). Deletion cascades to access log, vector, graph, and Hebbian rows.
// Forgetting always runs after decay in a consolidation sweep, never before.
func (e *Engram) Forget(ctx context.Context, threshold float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.store.AllEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("forget: %w", err)
	}

	forgotten := 0
	for _, entry := range entries {
		if entry.Pinned {
			continue
		}
		if entry.Importance >= e.config.PinImportanceFloor {
			continue
		}
		if entry.EffectiveStrength() >= threshold {
			continue
		}
		if err := e.store.DeleteEntry(ctx, entry.ID); err != nil {
			return forgotten, fmt.Errorf("forget: delete %s: %w", entry.ID, err)
		}
		forgotten++
	}

	return forgotten, nil
}
