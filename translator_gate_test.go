package cortex

import (
	"context"
	"reflect"
	"testing"
)

// TestFilterInputIsIdempotentWithinCacheWindow is the round-trip law: a
// second FilterInput call for the same raw input within the cache window
// returns the exact same result rather than re-deriving it.
func TestFilterInputIsIdempotentWithinCacheWindow(t *testing.T) {
	g := NewTranslatorGate(nil, 3, 0.6)
	ctx := context.Background()

	first := g.FilterInput(ctx, "what causes the seasons to change")
	second := g.FilterInput(ctx, "what causes the seasons to change")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected a cached FilterInput result to round-trip identically, got %+v vs %+v", first, second)
	}
	if g.CacheSize() != 1 {
		t.Fatalf("expected exactly one cache entry after two identical calls, got %d", g.CacheSize())
	}
}

func TestFilterInputEmptyRequestsClarification(t *testing.T) {
	g := NewTranslatorGate(nil, 3, 0.6)
	result := g.FilterInput(context.Background(), "   ")
	if !result.NeedsClarification || result.Confidence != 0 {
		t.Fatalf("expected empty input to request clarification with zero confidence, got %+v", result)
	}
}

func TestComputeConsensusSingleTranslationIsCertain(t *testing.T) {
	consensus, agreement := computeConsensus([]string{"only one"})
	if consensus != "only one" || agreement != 1.0 {
		t.Fatalf("a single translation should be its own consensus with full agreement, got %q %v", consensus, agreement)
	}
}

func TestComputeConsensusPicksMostAgreedTranslation(t *testing.T) {
	translations := []string{
		"the quick brown fox",
		"the quick brown fox jumps",
		"completely unrelated text about something else",
	}
	consensus, _ := computeConsensus(translations)
	if consensus == "completely unrelated text about something else" {
		t.Fatalf("expected the outlier translation to lose consensus, got %q", consensus)
	}
}
