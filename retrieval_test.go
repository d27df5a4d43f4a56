package cortex

import (
	"context"
	"testing"
)

// stubEmbedder returns a fixed per-text vector keyed by exact string match,
// falling back to an all-zero vector (orthogonal to everything) otherwise.
type stubEmbedder struct {
	vectors map[string][]float32
	dim     int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }

// TestSearchSourceAuthorityBoostWinsOverHigherSimilarity is scenario S1: a
// needle-in-haystack query where an authoritative, lower-similarity engram
// must outrank a higher-similarity noise engram.
func TestSearchSourceAuthorityBoostWinsOverHigherSimilarity(t *testing.T) {
	store := testStore(t)

	truth := NewEngram("the verified fact", Metadata{Source: sourceAuthorityTruth})
	truth.QualityScore = 0.5
	if err := store.AddOrUpdate(truth); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertVector(truth.ID, []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	noise := NewEngram("ambient noise that looks similar", Metadata{Source: "ambient"})
	noise.QualityScore = 0.5
	if err := store.AddOrUpdate(noise); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertVector(noise.ID, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}

	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{"query": {1, 0}}}
	retriever := NewStoreRetriever(store, embedder, nil)

	results, err := retriever.Search(context.Background(), "query", 1, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one result at top_k=1, got %d", len(results))
	}
	if results[0].Engram.ID != truth.ID {
		t.Fatalf("expected the authoritative engram to win despite lower similarity, got %q", results[0].Engram.Content)
	}
}

func TestSearchNoCandidatesReturnsEmpty(t *testing.T) {
	store := testStore(t)
	retriever := NewStoreRetriever(store, nil, nil)
	results, err := retriever.Search(context.Background(), "anything", 5, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results against an empty store, got %d", len(results))
	}
}

func TestSearchGraphDepthExpandsLinkedEngrams(t *testing.T) {
	store := testStore(t)

	seed := NewEngram("seed content", Metadata{})
	seed.QualityScore = 0.9
	if err := store.AddOrUpdate(seed); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertVector(seed.ID, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}

	linked := NewEngram("linked content, not independently retrieved", Metadata{})
	linked.QualityScore = 0.9
	if err := store.AddOrUpdate(linked); err != nil {
		t.Fatal(err)
	}
	// Deliberately no vector for linked, so it can only surface via the hop.
	if err := store.AddLink(seed.ID, linked.ID, "related", 0.8); err != nil {
		t.Fatal(err)
	}

	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{"query": {1, 0}}}
	retriever := NewStoreRetriever(store, embedder, nil)

	results, err := retriever.Search(context.Background(), "query", 5, "", 1)
	if err != nil {
		t.Fatal(err)
	}

	var foundLinked bool
	for _, r := range results {
		if r.Engram.ID == linked.ID {
			foundLinked = true
		}
	}
	if !foundLinked {
		t.Fatalf("expected the one-hop-linked engram to appear via graph expansion, got %+v", results)
	}
}
