package cortex

import (
	"context"
	"testing"
)

func TestKeywordRouterScoresByOverlap(t *testing.T) {
	r := NewKeywordRouter()
	r.RegisterCluster("physics", []string{"force", "mass", "energy"})
	r.RegisterCluster("biology", []string{"cell", "organism"})

	clusters, err := r.Route(context.Background(), "what force acts on this mass", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 || clusters[0] != "physics" {
		t.Fatalf("expected physics to win on keyword overlap, got %v", clusters)
	}
}

func TestKeywordRouterNoMatchReturnsNil(t *testing.T) {
	r := NewKeywordRouter()
	r.RegisterCluster("physics", []string{"force", "mass"})

	clusters, err := r.Route(context.Background(), "completely unrelated text", 2)
	if err != nil {
		t.Fatal(err)
	}
	if clusters != nil {
		t.Fatalf("expected nil (search everything) when no cluster scores, got %v", clusters)
	}
}

func TestKeywordRouterTopKLimitsResults(t *testing.T) {
	r := NewKeywordRouter()
	r.RegisterCluster("a", []string{"alpha"})
	r.RegisterCluster("b", []string{"beta"})
	r.RegisterCluster("c", []string{"gamma"})

	clusters, err := r.Route(context.Background(), "alpha beta gamma", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected top_k=1 to return exactly one cluster, got %v", clusters)
	}
}
