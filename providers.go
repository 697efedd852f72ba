package engram

import "context"

// EmbeddingProvider generates vector embeddings from text. It is an
// optional collaborator: the engine never evaluates semantic similarity
// itself (spec §1 Non-goals). Built-in: GeminiEmbedder, OllamaEmbedder,
// OpenAIEmbedder. nil is modeled by nullEmbedder, whose similarity is
// always 0.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorHit is one result from a VectorSearcher, paired with its cosine
// similarity to the query so the scorer can use it as the semantic term.
type VectorHit struct {
	ID    string
	Score float64
}

// VectorSearcher is an optional capability a Store may additionally
// implement. When present and an EmbeddingProvider is configured, its
// top-k results are folded into the lexical candidate set during recall
// (spec §4.3 step 1).
type VectorSearcher interface {
	VectorSearch(ctx context.Context, vec []float32, k int) ([]VectorHit, error)
}

// TypeClassifier determines which memory type an entry belongs to when the
// caller does not supply one explicitly. Built-in: HeuristicClassifier
// (keyword matching with an optional LLM fallback for low-confidence cases).
type TypeClassifier interface {
	Classify(content string) MemoryType
}

// EntityExtractor pulls entities from entry content for the entity graph.
// Built-in: DefaultEntityExtractor (brackets, quotes, capitalized phrases).
type EntityExtractor interface {
	Extract(content string) []Entity
}

// nullEmbedder is the EmbeddingProvider used when none is configured. Its
// similarity is always 0, so the scorer's context term degrades to pure
// lexical match — this is the "null implementation" the Design Notes call
// for rather than a special-cased nil check scattered through the scorer.
type nullEmbedder struct{}

func (nullEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (nullEmbedder) Dimension() int                                            { return 0 }
