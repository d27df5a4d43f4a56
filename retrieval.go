package cortex

import (
	"context"
	"sort"
	"sync/atomic"
)

// sourceAuthorityTruth is the source tag that earns a trust boost in
// ranking, for content ingested from a verified-authoritative channel
// rather than ambient noise.
const sourceAuthorityTruth = "truth"

// sourceAuthorityBoost is added to an authoritative engram's rerank score
// so it surfaces above higher-similarity noise (§8 S1).
const sourceAuthorityBoost = 100.0

// StoreRetriever is the default Retriever (§6): it embeds the query,
// scores every stored engram's embedding by cosine similarity, and folds
// in quality and decay the same way the teacher's Engram.Search
// composites similarity with sector weight and decay. Router narrows the
// candidate set to one or more clusters before scoring when provided.
type StoreRetriever struct {
	store    *Store
	embedder EmbeddingProvider
	router   Router

	searchesTotal   atomic.Int64
	candidatesTotal atomic.Int64
}

// NewStoreRetriever builds a retriever over store using embedder for query
// encoding. router is optional; when nil every cluster is searched.
func NewStoreRetriever(store *Store, embedder EmbeddingProvider, router Router) *StoreRetriever {
	return &StoreRetriever{
		store:    store,
		embedder: embedder,
		router:   router,
	}
}

// Stats reports how many searches this retriever has served and how many
// candidate engrams it has scored across all of them, for brain_status.
func (r *StoreRetriever) Stats() (searches, candidatesScored int64) {
	return r.searchesTotal.Load(), r.candidatesTotal.Load()
}

// Search embeds query, scores every candidate engram (optionally narrowed
// by cluster or Router) by cosine similarity against its stored embedding,
// composites that with quality and decay, and returns the top_k results.
// graphDepth additionally pulls in engrams linked to the top scorers, one
// hop per unit of depth, mirroring the teacher's waypoint-expansion step.
func (r *StoreRetriever) Search(ctx context.Context, query string, topK int, cluster string, graphDepth int) ([]RetrievedEngram, error) {
	r.searchesTotal.Add(1)
	if topK <= 0 {
		topK = 5
	}

	clusters := []string{cluster}
	if cluster == "" && r.router != nil {
		routed, err := r.router.Route(ctx, query, topK)
		if err == nil && len(routed) > 0 {
			clusters = routed
		}
	}

	var candidates []engramVector
	for _, c := range clusters {
		batch, err := r.store.AllVectors(c)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, batch...)
	}
	r.candidatesTotal.Add(int64(len(candidates)))
	if len(candidates) == 0 {
		return nil, nil
	}

	var queryVec []float32
	if r.embedder != nil {
		v, err := r.embedder.Embed(ctx, query, "RETRIEVAL_QUERY")
		if err == nil {
			queryVec = v
		}
	}

	type scored struct {
		engram *Engram
		score  float64
	}
	results := make([]scored, 0, len(candidates))
	seen := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		sim := 0.5
		if queryVec != nil {
			sim = CosineSimilarity(queryVec, c.Vector)
		}
		composite := sim*0.6 + c.Engram.QualityScore*0.25 + (1-c.Engram.DecayScore)*0.15
		rerank := composite * 10
		if c.Engram.Metadata.Source == sourceAuthorityTruth {
			rerank += sourceAuthorityBoost
		}
		results = append(results, scored{engram: c.Engram, score: rerank})
		seen[c.Engram.ID] = true
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]RetrievedEngram, 0, len(results))
	for _, s := range results {
		out = append(out, RetrievedEngram{Engram: s.engram, RerankScore: s.score})
	}

	for hop := 0; hop < graphDepth; hop++ {
		var frontier []RetrievedEngram
		for _, re := range out {
			links, err := r.store.Links(re.Engram.ID)
			if err != nil {
				continue
			}
			for _, link := range links {
				if seen[link.TargetID] {
					continue
				}
				target, found, err := r.store.Get(link.TargetID)
				if err != nil || !found {
					continue
				}
				seen[link.TargetID] = true
				frontier = append(frontier, RetrievedEngram{Engram: target, RerankScore: link.Weight * 5})
			}
		}
		out = append(out, frontier...)
	}
	return out, nil
}
