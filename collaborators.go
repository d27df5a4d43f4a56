package cortex

import "context"

// Retriever searches stored engrams for a query, optionally narrowed to a
// cluster or widened to a graph traversal depth (§6). Default
// implementation wraps Store directly; a vector-index-backed Retriever can
// be swapped in without touching the deliberation pipeline.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, cluster string, graphDepth int) ([]RetrievedEngram, error)
}

// EmbeddingProvider generates vector embeddings from text, L2-normalized,
// for similarity scoring during retrieval (§6). Built-ins: GeminiEmbedder,
// OpenAIEmbedder, OllamaEmbedder.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	Dimension() int
}

// LLMProvider is the full language-model surface the cognitive core calls
// on (§6): reasoning over retrieved context, refining weak content,
// compressing for consolidation, rating salience of new material, expanding
// ambiguous queries, and connecting concepts for the bridge to symbolic
// axioms. AwakeEngine and TranslatorGate only need the RefineContent slice
// of this, exposed separately as Refiner so they can be satisfied by a
// narrower stub in tests.
type LLMProvider interface {
	Refiner
	Reason(ctx context.Context, query string, context []string) (answer string, confidence float64, err error)
	Compress(ctx context.Context, content string) (string, error)
	RateSalience(ctx context.Context, content string) (float64, error)
	ExpandQuery(ctx context.Context, query string, priorAttempts []string) (string, error)
	ConnectConcepts(ctx context.Context, a, b string) (relation string, strength float64, err error)
}

// ProofResult is the outcome of a ProofProvider attempt (§6).
type ProofResult struct {
	Proven     bool
	Confidence float64
	Verifier   string
	Steps      []string
	AxiomsUsed []string
	Error      string
	ProofTree  map[string]any
}

// ProofProvider attempts symbolic proof of a query within a domain (§6).
// ImpasseDetector can classify a failed proof as ImpasseNoAxioms or
// ImpasseProofFailed from its DetectContext fields; no caller in this
// package passes proof results to it.
type ProofProvider interface {
	Prove(ctx context.Context, query string, domain string) (ProofResult, error)
}

// SemanticBridge translates between the engram store's free-text memories
// and the proof engine's typed axioms (§6), in both directions.
type SemanticBridge interface {
	EngramToAxiom(ctx context.Context, e *Engram) (*Axiom, error)
	AxiomToEngram(ctx context.Context, a *Axiom) (*Engram, error)
}

// Router maps a query to candidate engram clusters, letting Retriever
// narrow its search instead of scanning every stored engram (§6).
type Router interface {
	Route(ctx context.Context, query string, topK int) ([]string, error)
}
