package engram

import "testing"

func TestHeuristicClassifyEpisodic(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("I remember when they visited last time and came back later")
	if typ != TypeEpisodic {
		t.Errorf("expected episodic, got %s", typ)
	}
}

func TestHeuristicClassifyFactual(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("Alex is a software engineer from Seattle, works at a startup")
	if typ != TypeFactual {
		t.Errorf("expected factual, got %s", typ)
	}
}

func TestHeuristicClassifyRelational(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("Alex is a friend of Jordan, they met through a colleague at work")
	if typ != TypeRelational {
		t.Errorf("expected relational, got %s", typ)
	}
}

func TestHeuristicClassifyEmotional(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("They seemed happy and excited, really grateful for the warm welcome")
	if typ != TypeEmotional {
		t.Errorf("expected emotional, got %s", typ)
	}
}

func TestHeuristicClassifyProcedural(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("They know how to do it using a specific technique and method")
	if typ != TypeProcedural {
		t.Errorf("expected procedural, got %s", typ)
	}
}

func TestHeuristicClassifyOpinion(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("Alex thinks that the new approach is better than the old one, and prefers it")
	if typ != TypeOpinion {
		t.Errorf("expected opinion, got %s", typ)
	}
}

func TestHeuristicClassifyAmbiguousDefaultsFactual(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("hello world")
	if typ != TypeFactual {
		t.Errorf("ambiguous content should default to factual, got %s", typ)
	}
}

func TestHeuristicClassifyNoGeminiFallbackWithoutKey(t *testing.T) {
	c := NewHeuristicClassifier("")
	typ := c.Classify("something completely ambiguous xyz")
	if typ != TypeFactual {
		t.Errorf("without API key, ambiguous should default to factual, got %s", typ)
	}
}
