package engram

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SessionWorkingMemory simulates a bounded, time-decaying active-memory
// cache (Miller's-law capacity, Baddeley-style 5-minute decay) used to
// decide whether a new message needs a full recall or can reuse the
// memories already active in the conversation (spec §4.6).
type SessionWorkingMemory struct {
	mu    sync.Mutex
	cfg   SessionWMConfig
	clock Clock
	items map[string]time.Time // entry id -> last-activated time
}

func newSessionWorkingMemory(cfg SessionWMConfig, clock Clock) *SessionWorkingMemory {
	return &SessionWorkingMemory{cfg: cfg, clock: clock, items: make(map[string]time.Time)}
}

// Activate brings entry ids into working memory, pruning decayed items and
// enforcing capacity afterward.
func (s *SessionWorkingMemory) Activate(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for _, id := range ids {
		s.items[id] = now
	}
	s.prune()
}

// prune must be called with s.mu held.
func (s *SessionWorkingMemory) prune() {
	now := s.clock.Now()
	for id, t := range s.items {
		if now.Sub(t).Seconds() >= s.cfg.DecaySeconds {
			delete(s.items, id)
		}
	}
	if len(s.items) <= s.cfg.Capacity {
		return
	}

	type kv struct {
		id string
		t  time.Time
	}
	sorted := make([]kv, 0, len(s.items))
	for id, t := range s.items {
		sorted = append(sorted, kv{id, t})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].t.After(sorted[j].t) })

	kept := make(map[string]time.Time, s.cfg.Capacity)
	for _, e := range sorted[:s.cfg.Capacity] {
		kept[e.id] = e.t
	}
	s.items = kept
}

// ActiveIDs returns the currently active entry ids, after pruning.
func (s *SessionWorkingMemory) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	return ids
}

// IsEmpty reports whether working memory is empty, after pruning.
func (s *SessionWorkingMemory) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return len(s.items) == 0
}

// Clear empties working memory immediately.
func (s *SessionWorkingMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]time.Time)
}

// needsRecall implements spec §4.6: empty working memory always needs a
// recall; otherwise a 3-result probe recall (no graph expansion) is checked
// for ≥60% overlap against the union of current active ids and their
// Hebbian neighbors. High overlap means the topic hasn't changed and the
// caller can reuse working memory instead of paying for a full recall.
func (e *Engram) needsRecall(ctx context.Context, sessionID, message string) (bool, error) {
	wm := e.sessionWM(sessionID)
	if wm.IsEmpty() {
		return true, nil
	}

	active := wm.ActiveIDs()
	activeSet := make(map[string]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}

	neighbors := make(map[string]bool)
	for _, id := range active {
		ns, err := hebbianNeighbors(ctx, e.store, id)
		if err != nil {
			return true, err
		}
		for _, n := range ns {
			neighbors[n.ID] = true
		}
	}

	probe, err := e.recall(ctx, SearchOptions{Query: message, Limit: 3, GraphExpand: false}, true)
	if err != nil {
		return true, err
	}
	if len(probe) == 0 {
		return true, nil
	}

	overlap := 0
	for _, r := range probe {
		if activeSet[r.ID] || neighbors[r.ID] {
			overlap++
		}
	}
	overlapRatio := float64(overlap) / float64(len(probe))

	return overlapRatio < e.config.SessionWM.OverlapRatio, nil
}

// sessionWM returns the SessionWorkingMemory for sessionID, creating one on
// first use. The registry is owned by the Engram instance, not a package
// global, so multiple engines in one process never share session state.
func (e *Engram) sessionWM(sessionID string) *SessionWorkingMemory {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	wm, ok := e.sessions[sessionID]
	if !ok {
		wm = newSessionWorkingMemory(e.config.SessionWM, e.clock)
		e.sessions[sessionID] = wm
	}
	return wm
}

// ClearSession removes a session's working memory. Reports whether the
// session existed.
func (e *Engram) ClearSession(sessionID string) bool {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return false
	}
	delete(e.sessions, sessionID)
	return true
}

// Sessions lists every session ID with active working memory state.
func (e *Engram) Sessions() []string {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}
