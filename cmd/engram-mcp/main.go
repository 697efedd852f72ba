// engram-mcp exposes the memory engine as an MCP stdio server.
//
// Environment variables:
//
//	ENGRAM_DB_PATH   — SQLite database path (default: ./data/engram.db)
//	GEMINI_API_KEY   — Gemini API key for embeddings
//
// Usage:
//
//	go install github.com/engramhq/engram/cmd/engram-mcp
//	engram-mcp
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	engram "github.com/engramhq/engram"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/segmentio/encoding/json"
)

func main() {
	dbPath := os.Getenv("ENGRAM_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/engram.db"
	}

	cfg := engram.Config{DBPath: dbPath}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.EmbeddingProvider = engram.NewGeminiEmbedder(apiKey, 768)
	}

	en, err := engram.Init(cfg)
	if err != nil {
		log.Fatalf("engram init: %v", err)
	}
	defer en.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "engram-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add",
		Description: "Store a new memory, classifying its type automatically unless supplied and extracting entities from its content.",
	}, addHandler(en))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall",
		Description: "Run the full activation-scored retrieval pipeline against a query.",
	}, recallHandler(en))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_recall",
		Description: "Recall scoped to a conversation session, reusing session working memory when the topic hasn't shifted.",
	}, sessionRecallHandler(en))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reward",
		Description: "Adjust memory importance from feedback, defaulting to the most recent recall's results.",
	}, rewardHandler(en))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "consolidate",
		Description: "Run one dual-layer decay step across every stored memory and decay the co-activation graph.",
	}, consolidateHandler(en))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "forget",
		Description: "Delete unpinned, low-importance memories whose effective strength has fallen below a threshold.",
	}, forgetHandler(en))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Summarize the current memory population by layer and co-activation link count.",
	}, statsHandler(en))

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("engram-mcp: %v", err)
	}
}

// --- Input types ---

type addInput struct {
	Content    string   `json:"content"              jsonschema:"The memory content to store"`
	Type       string   `json:"type,omitempty"       jsonschema:"Optional type override: factual, episodic, relational, emotional, procedural, opinion"`
	Importance float64  `json:"importance,omitempty" jsonschema:"Optional importance 0.0-1.0 (default 0.5)"`
	Tags       []string `json:"tags,omitempty"       jsonschema:"Optional free-form tags"`
	Source     string   `json:"source,omitempty"     jsonschema:"Optional provenance label"`
	Pinned     bool     `json:"pinned,omitempty"     jsonschema:"Pinned memories skip core decay and are never auto-forgotten"`
}

type recallInput struct {
	Query         string `json:"query"                    jsonschema:"Search query"`
	Limit         int    `json:"limit,omitempty"          jsonschema:"Max results to return (default 5)"`
	MinConfidence string `json:"min_confidence,omitempty" jsonschema:"Filter: high, medium, or low"`
	GraphExpand   bool   `json:"graph_expand,omitempty"   jsonschema:"Expand one hop over the co-activation and entity graphs"`
}

type sessionRecallInput struct {
	SessionID string `json:"session_id"      jsonschema:"Conversation session ID"`
	Query     string `json:"query"            jsonschema:"Search query"`
	Limit     int    `json:"limit,omitempty"  jsonschema:"Max results to return (default 5)"`
}

type rewardInput struct {
	IDs      []string `json:"ids,omitempty" jsonschema:"Memory IDs to reinforce; empty reuses the most recent recall"`
	Positive bool     `json:"positive"      jsonschema:"True for positive feedback (importance x1.1, capped at 1.0), false for negative (importance x0.9, floored at 0.05)"`
}

type consolidateInput struct {
	DeltaDays float64 `json:"delta_days" jsonschema:"Elapsed days to simulate for this decay step"`
}

type forgetInput struct {
	Threshold float64 `json:"threshold" jsonschema:"Effective-strength floor below which unpinned, low-importance memories are deleted"`
}

// --- Handlers ---

func addHandler(en *engram.Engram) func(context.Context, *mcp.CallToolRequest, addInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input addInput) (*mcp.CallToolResult, any, error) {
		entry, err := en.Add(ctx, engram.AddOptions{
			Content:    input.Content,
			Type:       engram.MemoryType(input.Type),
			Importance: input.Importance,
			Tags:       input.Tags,
			Source:     input.Source,
			Pinned:     input.Pinned,
		})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"id":     entry.ID,
			"type":   entry.Type,
			"layer":  entry.Layer,
			"status": "stored",
		})), nil, nil
	}
}

func recallHandler(en *engram.Engram) func(context.Context, *mcp.CallToolRequest, recallInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input recallInput) (*mcp.CallToolResult, any, error) {
		results, err := en.Recall(ctx, engram.SearchOptions{
			Query:         input.Query,
			Limit:         input.Limit,
			MinConfidence: engram.ConfidenceLabel(input.MinConfidence),
			GraphExpand:   input.GraphExpand,
		})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(resultsToMaps(results))), nil, nil
	}
}

func sessionRecallHandler(en *engram.Engram) func(context.Context, *mcp.CallToolRequest, sessionRecallInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input sessionRecallInput) (*mcp.CallToolResult, any, error) {
		results, err := en.SessionRecall(ctx, input.SessionID, engram.SearchOptions{
			Query: input.Query,
			Limit: input.Limit,
		})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(resultsToMaps(results))), nil, nil
	}
}

func rewardHandler(en *engram.Engram) func(context.Context, *mcp.CallToolRequest, rewardInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input rewardInput) (*mcp.CallToolResult, any, error) {
		if err := en.Reward(ctx, input.IDs, input.Positive); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(`{"status": "rewarded"}`), nil, nil
	}
}

func consolidateHandler(en *engram.Engram) func(context.Context, *mcp.CallToolRequest, consolidateInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input consolidateInput) (*mcp.CallToolResult, any, error) {
		if err := en.Consolidate(ctx, input.DeltaDays); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(`{"status": "consolidated"}`), nil, nil
	}
}

func forgetHandler(en *engram.Engram) func(context.Context, *mcp.CallToolRequest, forgetInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input forgetInput) (*mcp.CallToolResult, any, error) {
		n, err := en.Forget(ctx, input.Threshold)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{"forgotten": n})), nil, nil
	}
}

func statsHandler(en *engram.Engram) func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, any, error) {
		stats, err := en.Stats(ctx)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(stats)), nil, nil
	}
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func resultsToMaps(results []engram.RecallResult) []map[string]any {
	out := make([]map[string]any, len(results))
	for i, r := range results {
		out[i] = map[string]any{
			"id":               r.ID,
			"content":          r.Content,
			"type":             r.Type,
			"activation":       r.Activation,
			"confidence":       r.Confidence,
			"confidence_label": r.ConfidenceLabel,
			"strength":         r.Strength,
			"age_days":         r.AgeDays,
			"layer":            r.Layer,
			"importance":       r.Importance,
			"pinned":           r.Pinned,
			"source":           r.Source,
		}
	}
	return out
}

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}
