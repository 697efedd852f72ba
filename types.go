package engram

import "time"

// MemoryType classifies an entry; it selects the entry's decay rates at
// consolidation.
type MemoryType string

const (
	TypeFactual    MemoryType = "factual"
	TypeEpisodic   MemoryType = "episodic"
	TypeRelational MemoryType = "relational"
	TypeEmotional  MemoryType = "emotional"
	TypeProcedural MemoryType = "procedural"
	TypeOpinion    MemoryType = "opinion"
)

// ValidType reports whether t is one of the six recognized memory types.
func ValidType(t MemoryType) bool {
	switch t {
	case TypeFactual, TypeEpisodic, TypeRelational, TypeEmotional, TypeProcedural, TypeOpinion:
		return true
	}
	return false
}

// Layer is the derived storage tier of an entry, computed from its two
// strength components. See deriveLayer and ApplyDecay in strengths.go.
type Layer string

const (
	LayerWorking Layer = "working"
	LayerCore    Layer = "core"
	LayerArchive Layer = "archive"
)

// ConfidenceLabel buckets an activation score for user-facing display.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// confidenceLabel buckets activation per the canonical rule: high >= 0.7,
// medium >= 0.4, else low. Every result's label comes from this bucketing;
// the value bucketed is the activation on scored paths and the
// strength-based approximation in recallResultFromEntry on the session
// working-memory reuse path (see DESIGN.md Open Questions).
func confidenceLabel(activation float64) ConfidenceLabel {
	switch {
	case activation >= 0.7:
		return ConfidenceHigh
	case activation >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// rank reports the ordinal of a confidence label, high being largest, for
// comparisons against a caller-supplied MinConfidence filter.
func (c ConfidenceLabel) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Entry is the core memory record. All fields are mutated only by the engine.
type Entry struct {
	ID              string
	Content         string
	Summary         string
	Type            MemoryType
	Importance      float64
	WorkingStrength float64
	CoreStrength    float64
	Layer           Layer
	AccessCount     int
	LastAccess      *time.Time
	CreatedAt       time.Time
	Pinned          bool
	Tags            []string
	Contradicts     string // entry id, empty if none
	ContradictedBy  string // entry id, empty if none
	Source          string
}

// EffectiveStrength is working_strength + core_strength, floored at a small
// epsilon so downstream log/tanh math never sees exactly zero.
func (e *Entry) EffectiveStrength() float64 {
	s := e.WorkingStrength + e.CoreStrength
	if s < strengthEpsilon {
		return strengthEpsilon
	}
	return s
}

// AgeDays returns fractional days since creation, relative to now.
func (e *Entry) AgeDays(now time.Time) float64 {
	return now.Sub(e.CreatedAt).Hours() / 24.0
}

// DaysSinceAccess returns fractional days since last access, relative to
// now. An entry that has never been accessed returns 0, so its recency term
// is 1.0 however long ago it was created.
func (e *Entry) DaysSinceAccess(now time.Time) float64 {
	if e.LastAccess == nil {
		return 0
	}
	return now.Sub(*e.LastAccess).Hours() / 24.0
}

// Entity is an extracted mention used to form entity-graph edges.
type Entity struct {
	Text string
	Type string // "person", "place", "topic", ...
}

// AddOptions is the input to Add.
type AddOptions struct {
	Content    string
	Type       MemoryType // optional: classified from Content when empty
	Importance float64    // optional: default 0.5
	Tags       []string
	Source     string
	Pinned     bool
}

// SearchOptions is the input to Recall.
type SearchOptions struct {
	Query         string
	Limit         int             // default 5
	MinConfidence ConfidenceLabel // optional filter; "" disables it
	GraphExpand   bool
}

// RecallResult is one scored, ranked entry returned from Recall/SessionRecall.
type RecallResult struct {
	ID              string
	Content         string
	Type            MemoryType
	Activation      float64
	Confidence      float64
	ConfidenceLabel ConfidenceLabel
	Strength        float64
	AgeDays         float64
	Layer           Layer
	Importance      float64
	Pinned          bool
	Source          string

	// sortLastAccess and sortCreatedAt break activation ties deterministically
	// (spec §4.3 step 5) without exposing raw timestamps on the result type.
	sortLastAccess *time.Time
	sortCreatedAt  time.Time
}

// Stats summarizes the engine's current population, for the stats operation.
type Stats struct {
	Total       int
	ByLayer     map[Layer]int
	FormedLinks int
}
