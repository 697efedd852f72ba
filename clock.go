package engram

import "time"

// Clock abstracts wall-clock reads so retrieval and session working memory
// are reproducible in tests (spec §8 property 5: determinism). All
// timestamp reads in the engine flow through a single Clock.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FixedClock is a Clock that always returns the same instant, useful in
// tests that need deterministic recency/age math.
type FixedClock struct {
	At time.Time
}

func (f FixedClock) Now() time.Time { return f.At }
