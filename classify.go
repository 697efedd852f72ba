package engram

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// HeuristicClassifier determines which memory type content belongs to. It
// tries a keyword heuristic first (zero-cost), and falls back to Gemini for
// ambiguous content when an API key is configured. Implements TypeClassifier.
type HeuristicClassifier struct {
	apiKey string
	client *http.Client
}

// NewHeuristicClassifier creates a classifier. If apiKey is empty, only
// heuristic classification is used (no LLM fallback).
func NewHeuristicClassifier(apiKey string) *HeuristicClassifier {
	return &HeuristicClassifier{
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Classify determines the type for a piece of content.
func (c *HeuristicClassifier) Classify(content string) MemoryType {
	typ, confidence := c.heuristicClassify(content)
	if confidence >= 0.6 {
		return typ
	}

	if c.apiKey != "" {
		if llmType, err := c.geminiClassify(content); err == nil {
			return llmType
		} else {
			log.Printf("[engram] Gemini classify fallback failed: %v", err)
		}
	}

	return typ
}

// heuristicClassify uses keyword matching to classify content. Returns the
// best-scoring type and a confidence score (0.0-1.0).
func (c *HeuristicClassifier) heuristicClassify(content string) (MemoryType, float64) {
	lower := strings.ToLower(content)

	scores := map[MemoryType]float64{
		TypeFactual:    0,
		TypeEpisodic:   0,
		TypeRelational: 0,
		TypeEmotional:  0,
		TypeProcedural: 0,
		TypeOpinion:    0,
	}

	episodicSignals := []string{
		"last time", "remember when", "yesterday", "came in", "visited",
		"was here", "stopped by", "showed up", "dropped by", "earlier",
		"that time", "the other day", "first time", "came back", "returned",
	}
	for _, s := range episodicSignals {
		if strings.Contains(lower, s) {
			scores[TypeEpisodic] += 0.3
		}
	}

	factualSignals := []string{
		"is a", "works at", "born in", "from", "lives in", "speaks",
		"located", "measures", "consists of", "defined as", "equals",
	}
	for _, s := range factualSignals {
		if strings.Contains(lower, s) {
			scores[TypeFactual] += 0.3
		}
	}

	relationalSignals := []string{
		"friend", "colleague", "partner", "family", "married", "reports to",
		"works with", "knows", "introduced", "met through", "sibling", "manager",
	}
	for _, s := range relationalSignals {
		if strings.Contains(lower, s) {
			scores[TypeRelational] += 0.3
		}
	}

	emotionalSignals := []string{
		"feel", "love", "hate", "happy", "sad", "enjoy", "afraid",
		"angry", "excited", "nervous", "comfortable", "miss", "appreciate",
		"annoyed", "grateful", "proud", "anxious", "relieved",
	}
	for _, s := range emotionalSignals {
		if strings.Contains(lower, s) {
			scores[TypeEmotional] += 0.3
		}
	}

	proceduralSignals := []string{
		"how to", "can do", "knows how", "skill", "technique",
		"method", "approach", "process", "step", "instruction",
	}
	for _, s := range proceduralSignals {
		if strings.Contains(lower, s) {
			scores[TypeProcedural] += 0.3
		}
	}

	opinionSignals := []string{
		"thinks that", "believes", "prefers", "likes", "dislikes", "favorite",
		"in my opinion", "should", "would rather", "better than", "worse than",
	}
	for _, s := range opinionSignals {
		if strings.Contains(lower, s) {
			scores[TypeOpinion] += 0.3
		}
	}

	bestType := TypeFactual // default
	bestScore := 0.0
	for typ, score := range scores {
		if score > bestScore {
			bestScore = score
			bestType = typ
		}
	}

	confidence := bestScore
	if confidence > 1.0 {
		confidence = 1.0
	}

	return bestType, confidence
}

// geminiClassify uses Gemini to classify content when heuristics are ambiguous.
func (c *HeuristicClassifier) geminiClassify(content string) (MemoryType, error) {
	url := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-lite:generateContent?key=" + c.apiKey

	prompt := `Classify this memory into exactly one type. Reply with ONLY the type name, nothing else.
Types: factual (facts/knowledge), episodic (events/experiences), relational (people/relationships), emotional (feelings/sentiment), procedural (skills/how-to), opinion (beliefs/preferences)

Memory: "` + content + `"`

	reqBody := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": 10,
			"temperature":     0.0,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return TypeFactual, err
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return TypeFactual, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return TypeFactual, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return TypeFactual, &classifyError{status: resp.StatusCode, body: string(body)}
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return TypeFactual, err
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return TypeFactual, &classifyError{body: "empty response"}
	}

	text := strings.TrimSpace(strings.ToLower(geminiResp.Candidates[0].Content.Parts[0].Text))
	switch {
	case strings.Contains(text, "episodic"):
		return TypeEpisodic, nil
	case strings.Contains(text, "relational"):
		return TypeRelational, nil
	case strings.Contains(text, "emotional"):
		return TypeEmotional, nil
	case strings.Contains(text, "procedural"):
		return TypeProcedural, nil
	case strings.Contains(text, "opinion"):
		return TypeOpinion, nil
	case strings.Contains(text, "factual"):
		return TypeFactual, nil
	default:
		return TypeFactual, nil
	}
}

type classifyError struct {
	status int
	body   string
}

func (e *classifyError) Error() string {
	if e.status > 0 {
		return "gemini classify " + http.StatusText(e.status) + ": " + e.body
	}
	return "gemini classify: " + e.body
}
