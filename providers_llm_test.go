package cortex

import (
	"context"
	"testing"
)

func TestParseAnswerConfidenceSplitsTrailingMarker(t *testing.T) {
	answer, confidence, err := parseAnswerConfidence("the sky is blue\nCONFIDENCE: 0.8")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "the sky is blue" {
		t.Fatalf("expected answer without the marker line, got %q", answer)
	}
	if confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", confidence)
	}
}

func TestParseAnswerConfidenceMissingMarkerDefaultsToHalf(t *testing.T) {
	_, confidence, err := parseAnswerConfidence("just an answer, no marker")
	if err != nil {
		t.Fatal(err)
	}
	if confidence != 0.5 {
		t.Fatalf("expected default confidence 0.5, got %v", confidence)
	}
}

func TestParseRelationStrengthClampsOutOfRangeValue(t *testing.T) {
	relation, strength, err := parseRelationStrength("opposes\nSTRENGTH: 5.0")
	if err != nil {
		t.Fatal(err)
	}
	if relation != "opposes" {
		t.Fatalf("expected relation %q, got %q", "opposes", relation)
	}
	if strength != 1.0 {
		t.Fatalf("expected strength clamped to 1.0, got %v", strength)
	}
}

type fixedReasonLLM struct {
	answer     string
	confidence float64
}

func (f *fixedReasonLLM) RefineContent(ctx context.Context, content string) (string, error) {
	return content, nil
}
func (f *fixedReasonLLM) Reason(ctx context.Context, query string, context []string) (string, float64, error) {
	return f.answer, f.confidence, nil
}
func (f *fixedReasonLLM) Compress(ctx context.Context, content string) (string, error) {
	return content, nil
}
func (f *fixedReasonLLM) RateSalience(ctx context.Context, content string) (float64, error) {
	return 0.5, nil
}
func (f *fixedReasonLLM) ExpandQuery(ctx context.Context, query string, priorAttempts []string) (string, error) {
	return query, nil
}
func (f *fixedReasonLLM) ConnectConcepts(ctx context.Context, a, b string) (string, float64, error) {
	return "", 0, nil
}

// TestLLMProofProverAppliesSelfVerifyPenalty grounds the documented 0.6
// confidence penalty for the no-formal-verifier fallback path.
func TestLLMProofProverAppliesSelfVerifyPenalty(t *testing.T) {
	llm := &fixedReasonLLM{answer: "therefore it holds", confidence: 0.8}
	prover := NewLLMProofProver(llm)

	result, err := prover.Prove(context.Background(), "is this axiom true", "logic")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Proven {
		t.Fatalf("expected proven=true at confidence 0.8, got %+v", result)
	}
	want := 0.8 * 0.6
	if result.Confidence != want {
		t.Fatalf("expected penalized confidence %v, got %v", want, result.Confidence)
	}
}

func TestLLMProofProverCachesByQueryAndDomain(t *testing.T) {
	llm := &fixedReasonLLM{answer: "yes", confidence: 0.9}
	prover := NewLLMProofProver(llm)
	ctx := context.Background()

	first, err := prover.Prove(ctx, "same query", "physics")
	if err != nil {
		t.Fatal(err)
	}
	second, err := prover.Prove(ctx, "same query", "physics")
	if err != nil {
		t.Fatal(err)
	}
	if first.Confidence != second.Confidence || first.Steps[0] != second.Steps[0] {
		t.Fatalf("expected a cached proof result to round-trip identically, got %+v vs %+v", first, second)
	}
}

func TestLLMProofProverLowConfidenceIsNotProven(t *testing.T) {
	llm := &fixedReasonLLM{answer: "unsure", confidence: 0.2}
	prover := NewLLMProofProver(llm)

	result, err := prover.Prove(context.Background(), "a hard claim", "mathematics")
	if err != nil {
		t.Fatal(err)
	}
	if result.Proven {
		t.Fatalf("expected proven=false below the 0.5 bar, got %+v", result)
	}
	if result.Error == "" {
		t.Fatalf("expected an explanatory error for an unproven result")
	}
}

func TestGeminiSemanticBridgeRoundTripsDomainAndConfidence(t *testing.T) {
	llm := &fixedReasonLLM{answer: "unused"}
	bridge := NewGeminiSemanticBridge(llm)

	e := NewEngram("all bodies attract each other", Metadata{Domain: "physics"})
	e.QualityScore = 0.8

	axiom, err := bridge.EngramToAxiom(context.Background(), e)
	if err != nil {
		t.Fatal(err)
	}
	if axiom.Domain != "physics" {
		t.Fatalf("expected domain to round-trip, got %q", axiom.Domain)
	}
	if axiom.Confidence != 0.8*0.7 {
		t.Fatalf("expected confidence derived from quality score, got %v", axiom.Confidence)
	}

	back, err := bridge.AxiomToEngram(context.Background(), axiom)
	if err != nil {
		t.Fatal(err)
	}
	if !back.IsAxiomDerived || len(back.AxiomsUsed) != 1 || back.AxiomsUsed[0] != axiom.ID {
		t.Fatalf("expected the rendered engram to reference its source axiom, got %+v", back)
	}
}

func TestGeminiLLMEmptyKeyErrors(t *testing.T) {
	g := NewGeminiLLM("", "")
	if _, _, err := g.Reason(context.Background(), "q", nil); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNewGeminiLLMDefaultsModel(t *testing.T) {
	g := NewGeminiLLM("key", "")
	if g.model != "gemini-2.5-flash-lite" {
		t.Fatalf("expected the default model, got %q", g.model)
	}
}
