// cortexd-mcp exposes the cognitive scheduling core as an MCP stdio server.
//
// Environment variables (loaded from .env if present):
//
//	CORTEX_DB_PATH     — SQLite database path (default: ./data/cortex.db)
//	GEMINI_API_KEY     — Gemini API key for embeddings, reasoning, and proofs
//	GEMINI_MODEL       — Gemini model for reasoning (default: gemini-2.5-flash-lite)
//
// Usage:
//
//	go install github.com/goblincore/cortexd/cmd/cortexd-mcp
//	cortexd-mcp
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	cortex "github.com/goblincore/cortexd"
)

func main() {
	_ = godotenv.Load(".env")

	instanceID := uuid.New().String()

	dbPath := os.Getenv("CORTEX_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/cortex.db"
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	model := os.Getenv("GEMINI_MODEL")

	cfg := cortex.Config{DBPath: dbPath}

	var llm cortex.LLMProvider
	var embedder cortex.EmbeddingProvider
	var bridge cortex.SemanticBridge
	var proof cortex.ProofProvider
	if apiKey != "" {
		gemini := cortex.NewGeminiLLM(apiKey, model)
		llm = gemini
		embedder = cortex.NewGeminiEmbedder(apiKey, 384)
		bridge = cortex.NewGeminiSemanticBridge(gemini)
		proof = cortex.NewLLMProofProver(gemini)
	}
	router := cortex.NewKeywordRouter()

	core, err := cortex.NewCore(cfg, llm, embedder, router, bridge, proof)
	if err != nil {
		log.Fatalf("cortexd-mcp: core init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[cortex] cortexd-mcp %s: shutting down", instanceID)
		core.Stop()
		cancel()
	}()

	core.Start(ctx)
	defer core.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cortexd-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest",
		Description: "Store new content as an engram, embedded if an embedding provider is configured. Content is stored as given; it does not pass through the translator gate.",
	}, ingestHandler(core))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query",
		Description: "Run a query through the full deliberation pipeline: retrieval, fast/symbolic competition, and prediction-error-driven refinement.",
	}, queryHandler(core))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "feedback_helpful",
		Description: "Mark the given engram as having served the user well, strengthening it.",
	}, feedbackHelpfulHandler(core))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "feedback_wrong",
		Description: "Mark the given engram as having misled the user, weakening it.",
	}, feedbackWrongHandler(core))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_salience",
		Description: "Override an engram's salience directly, clamped to [0.5, 2.0].",
	}, setSalienceHandler(core))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "brain_status",
		Description: "Read-only observability snapshot: heartbeat health, awake engine mode, market state, and per-component stats.",
	}, brainStatusHandler(core))

	log.Printf("[cortex] cortexd-mcp %s: serving (db=%s)", instanceID, dbPath)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("cortexd-mcp: %v", err)
	}
}

// --- Input types ---

type ingestInput struct {
	Content string `json:"content"           jsonschema:"Content to store as an engram"`
	Source  string `json:"source,omitempty"  jsonschema:"Origin tag, e.g. 'truth', 'chat', 'slack_noise'"`
	Domain  string `json:"domain,omitempty"  jsonschema:"Optional domain hint for proof/routing"`
}

type queryInput struct {
	Query string `json:"query" jsonschema:"Raw query to run through the deliberation pipeline"`
}

type feedbackInput struct {
	EngramID int64 `json:"engram_id" jsonschema:"ID of the engram this feedback refers to"`
}

type setSalienceInput struct {
	EngramID int64   `json:"engram_id" jsonschema:"ID of the engram to update"`
	Salience float64 `json:"salience"  jsonschema:"New salience value, clamped to [0.5, 2.0]"`
}

// --- Handlers ---

func ingestHandler(core *cortex.Core) func(context.Context, *mcp.CallToolRequest, ingestInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ingestInput) (*mcp.CallToolResult, any, error) {
		e, err := core.Ingest(ctx, input.Content, cortex.Metadata{Source: input.Source, Domain: input.Domain})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"engram_id": e.ID,
			"status":    "stored",
		})), nil, nil
	}
}

func queryHandler(core *cortex.Core) func(context.Context, *mcp.CallToolRequest, queryInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input queryInput) (*mcp.CallToolResult, any, error) {
		response, err := core.ProcessQuery(ctx, input.Query)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(response), nil, nil
	}
}

func feedbackHelpfulHandler(core *cortex.Core) func(context.Context, *mcp.CallToolRequest, feedbackInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input feedbackInput) (*mcp.CallToolResult, any, error) {
		if err := core.UserFeedbackHelpful(input.EngramID); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(`{"status": "strengthened"}`), nil, nil
	}
}

func feedbackWrongHandler(core *cortex.Core) func(context.Context, *mcp.CallToolRequest, feedbackInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input feedbackInput) (*mcp.CallToolResult, any, error) {
		if err := core.UserFeedbackWrong(input.EngramID); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(`{"status": "weakened"}`), nil, nil
	}
}

func setSalienceHandler(core *cortex.Core) func(context.Context, *mcp.CallToolRequest, setSalienceInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input setSalienceInput) (*mcp.CallToolResult, any, error) {
		if err := core.SetSalience(input.EngramID, input.Salience); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(`{"status": "updated"}`), nil, nil
	}
}

func brainStatusHandler(core *cortex.Core) func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, any, error) {
		return textResult(jsonString(core.GetBrainStatus())), nil, nil
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

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}
