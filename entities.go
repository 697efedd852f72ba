package engram

import (
	"context"
	"regexp"
	"strings"
)

// DefaultEntityExtractor pulls entities out of entry content using the same
// keyword-free heuristics as the teacher's waypoint extractor, minus the
// domain-specific artist list: bracketed names, quoted phrases, and
// capitalized multi-word proper nouns.
type DefaultEntityExtractor struct{}

var (
	bracketRe = regexp.MustCompile(`\[([A-Za-z0-9_]+)\]`)
	quoteRe   = regexp.MustCompile(`"([^"]{2,40})"`)
	properRe  = regexp.MustCompile(`(?:^|[.!?]\s+|\s)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`)
)

// Extract implements EntityExtractor.
func (DefaultEntityExtractor) Extract(content string) []Entity {
	var entities []Entity
	seen := make(map[string]bool)

	add := func(text, entityType string) {
		text = strings.TrimSpace(text)
		lower := strings.ToLower(text)
		if text == "" || len(text) < 2 || len(text) > 60 || seen[lower] {
			return
		}
		seen[lower] = true
		entities = append(entities, Entity{Text: text, Type: entityType})
	}

	for _, match := range bracketRe.FindAllStringSubmatch(content, -1) {
		add(match[1], "person")
	}
	for _, match := range quoteRe.FindAllStringSubmatch(content, -1) {
		add(match[1], "topic")
	}
	for _, match := range properRe.FindAllStringSubmatch(content, 5) {
		text := strings.TrimSpace(match[1])
		if !isCommonPhrase(text) {
			add(text, "topic")
		}
	}

	return entities
}

// isCommonPhrase filters out false-positive proper nouns at sentence starts.
func isCommonPhrase(s string) bool {
	common := []string{
		"The", "This", "That", "What", "When", "Where", "How", "Why",
		"I Am", "You Are", "We Are", "They Are",
	}
	lower := strings.ToLower(s)
	for _, c := range common {
		if strings.ToLower(c) == lower {
			return true
		}
	}
	return false
}

// indexEntities extracts entities from an entry's content and records them
// as graph edges, called once from Add.
func indexEntities(ctx context.Context, store Store, extractor EntityExtractor, e *Entry) error {
	for _, ent := range extractor.Extract(e.Content) {
		if err := store.AddGraphEdge(ctx, e.ID, ent.Text, ent.Type); err != nil {
			return err
		}
	}
	return nil
}

// expandViaEntities performs one-hop entity-graph expansion from a set of
// seed entry IDs (spec §4.3 step 3). Returns a link weight per neighbor,
// the maximum across every entity that connects it to a seed.
func expandViaEntities(ctx context.Context, store Store, seedIDs []string, linkWeight float64) (map[string]float64, error) {
	seen := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		seen[id] = true
	}

	weights := make(map[string]float64)
	for _, id := range seedIDs {
		ents, err := store.EntitiesOf(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, ent := range ents {
			neighbors, err := store.EntriesByEntity(ctx, ent.Text, seen)
			if err != nil {
				return nil, err
			}
			for _, nbr := range neighbors {
				if w := linkWeight; w > weights[nbr] {
					weights[nbr] = w
				}
			}
		}
	}
	return weights, nil
}
