package cortex

import (
	"fmt"
	"strings"
)

// riskSafeThreshold is the cutoff below which the LLM is trusted to reason
// freely; at or above it, TruthGuard forces an honest fallback.
const riskSafeThreshold = 0.45

// defaultSimilarity is used when a retrieved engram carries no cached
// query-similarity score.
const defaultSimilarity = 0.65

// CalculateRisk scores the honesty risk of answering from a retrieved set
// (§4.8): weak retrieval similarity, low quality, and stale memory all push
// risk up. An empty retrieval set is maximally risky. Grounded on
// core/truth_guard.py — purely epistemic, never a content or topic filter.
func CalculateRisk(retrieved []*Engram) (risk float64, safe bool) {
	return CalculateRiskWithSimilarity(retrieved, nil)
}

// CalculateRiskWithSimilarity is CalculateRisk with an explicit per-engram
// query-similarity map (keyed by Engram.ID), falling back to
// defaultSimilarity for engrams absent from the map.
func CalculateRiskWithSimilarity(retrieved []*Engram, similarity map[int64]float64) (float64, bool) {
	if len(retrieved) == 0 {
		return 1.0, false
	}

	var sumQuality, sumDecay, sumSim float64
	for _, e := range retrieved {
		sumQuality += e.QualityScore
		sumDecay += e.DecayScore
		if similarity != nil {
			if s, ok := similarity[e.ID]; ok {
				sumSim += s
				continue
			}
		}
		sumSim += defaultSimilarity
	}
	n := float64(len(retrieved))
	avgQuality := sumQuality / n
	avgDecay := sumDecay / n
	avgSim := sumSim / n

	risk := 0.45*(1-avgSim) + 0.35*(1-avgQuality) + 0.20*avgDecay
	if risk > 1.0 {
		risk = 1.0
	}
	return risk, risk < riskSafeThreshold
}

// EnforceHonestResponse returns a forced-honest fallback message when risk
// is at or above the safe threshold, or "" when the caller may proceed with
// normal LLM reasoning.
func EnforceHonestResponse(risk float64, retrieved []*Engram) string {
	if risk < riskSafeThreshold {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Low confidence (risk %.2f). I only have these memories to work with and will not guess or hallucinate:\n\n", risk)
	limit := len(retrieved)
	if limit > 6 {
		limit = 6
	}
	for _, e := range retrieved[:limit] {
		b.WriteString("- ")
		b.WriteString(e.Content)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
