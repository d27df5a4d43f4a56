package cortex

import (
	"context"
	"path/filepath"
	"testing"
)

type countingRetriever struct {
	calls int
	item  *Engram
}

func (r *countingRetriever) Search(ctx context.Context, query string, topK int, cluster string, graphDepth int) ([]RetrievedEngram, error) {
	r.calls++
	return []RetrievedEngram{{Engram: r.item, RerankScore: 8}}, nil
}

type stubLLM struct {
	answer string
}

func (s *stubLLM) RefineContent(ctx context.Context, content string) (string, error) { return content, nil }
func (s *stubLLM) Reason(ctx context.Context, query string, context []string) (string, float64, error) {
	return s.answer, 0.9, nil
}
func (s *stubLLM) Compress(ctx context.Context, content string) (string, error) { return content, nil }
func (s *stubLLM) RateSalience(ctx context.Context, content string) (float64, error) {
	return 1.0, nil
}
func (s *stubLLM) ExpandQuery(ctx context.Context, query string, priorAttempts []string) (string, error) {
	return query, nil
}
func (s *stubLLM) ConnectConcepts(ctx context.Context, a, b string) (string, float64, error) {
	return "", 0, nil
}

func testCore(t *testing.T) *Core {
	t.Helper()
	var cfg Config
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	core, err := NewCore(cfg, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { core.Close() })
	return core
}

// TestProcessQueryStopsOnFirstConfidentRound is scenario S6: a high-quality
// retrieval with a matching answer clears the confidence/error bar on the
// first round, so deliberation runs exactly one retrieval round.
func TestProcessQueryStopsOnFirstConfidentRound(t *testing.T) {
	core := testCore(t)

	answer := "the golden answer to this question"
	item := NewEngram(answer, Metadata{})
	item.QualityScore = 0.95
	item.DecayScore = 0.0

	retriever := &countingRetriever{item: item}
	core.Retriever = retriever
	core.LLM = &stubLLM{answer: answer}

	response, err := core.ProcessQuery(context.Background(), "what is the golden answer")
	if err != nil {
		t.Fatal(err)
	}
	if response != answer {
		t.Fatalf("expected the winning fast-path answer, got %q", response)
	}
	if retriever.calls != 1 {
		t.Fatalf("expected deliberation to stop after exactly one retrieval round, got %d", retriever.calls)
	}
}

// TestProcessQueryNeverExceedsMaxDeliberations is invariant 8: a
// perpetually low-confidence answer still terminates within
// maxDeliberations rounds rather than looping forever.
func TestProcessQueryNeverExceedsMaxDeliberations(t *testing.T) {
	core := testCore(t)

	weak := NewEngram("irrelevant", Metadata{})
	weak.QualityScore = 0.05
	weak.DecayScore = 0.95

	retriever := &countingRetriever{item: weak}
	core.Retriever = retriever
	// No LLM wired, and the weak engram makes TruthGuard unsafe (risk ~0.68),
	// so fastPath returns the forced-honest answer at confidence 0.2 every
	// round.

	response, err := core.ProcessQuery(context.Background(), "a hard question")
	if err != nil {
		t.Fatal(err)
	}
	_ = response
	if retriever.calls != maxDeliberations {
		t.Fatalf("expected exactly %d retrieval rounds, got %d", maxDeliberations, retriever.calls)
	}
}

func TestProcessQueryGateRejectsEmptyInput(t *testing.T) {
	core := testCore(t)
	core.Gate = NewTranslatorGate(nil, 3, 0.6)

	response, err := core.ProcessQuery(context.Background(), "   ")
	if err != nil {
		t.Fatal(err)
	}
	if response != "I'm not confident I understood that. Could you rephrase?" {
		t.Fatalf("expected a clarification response for empty input, got %q", response)
	}
}
