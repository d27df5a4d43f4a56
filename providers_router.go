package cortex

import (
	"context"
	"sort"
	"strings"
)

// KeywordRouter maps a query to candidate clusters by keyword overlap
// against each cluster's registered keyword set, falling back to every
// known cluster when nothing scores. Adapted from the teacher's
// HeuristicClassifier keyword-scoring table, generalized from a fixed
// five-sector enum to an open, registrable set of cluster names.
type KeywordRouter struct {
	keywords map[string][]string
}

// NewKeywordRouter creates a router with no clusters registered; until
// clusters are registered, Route returns nil.
func NewKeywordRouter() *KeywordRouter {
	return &KeywordRouter{keywords: make(map[string][]string)}
}

// RegisterCluster associates a cluster name with the keywords that should
// route a query to it.
func (r *KeywordRouter) RegisterCluster(cluster string, keywords []string) {
	r.keywords[cluster] = keywords
}

// Route scores every registered cluster by keyword overlap against query
// and returns up to topK cluster names, highest score first. Returns nil
// (meaning "search everything") when no cluster scores.
func (r *KeywordRouter) Route(ctx context.Context, query string, topK int) ([]string, error) {
	q := strings.ToLower(query)

	type scored struct {
		cluster string
		score   int
	}
	var results []scored
	for cluster, kws := range r.keywords {
		score := 0
		for _, kw := range kws {
			if strings.Contains(q, kw) {
				score++
			}
		}
		if score > 0 {
			results = append(results, scored{cluster, score})
		}
	}
	if len(results) == 0 {
		return nil, nil
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}
	out := make([]string, topK)
	for i := 0; i < topK; i++ {
		out[i] = results[i].cluster
	}
	return out, nil
}
