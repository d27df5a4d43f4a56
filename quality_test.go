package cortex

import (
	"math"
	"testing"
)

func TestQualityScoreClampsToUnitInterval(t *testing.T) {
	w := DefaultQualityWeights()
	e := NewEngram("x", Metadata{})
	e.SuccessfulApplicationCount = 1000
	e.ReuseContexts = 1000
	e.CompressionRatio = 1000
	e.AccuracyPreserved = 2.0
	e.DecayScore = -5.0
	e.Salience = 2.0

	score := QualityScore(e, w)
	if score < 0 || score > 1 {
		t.Fatalf("quality score out of [0,1]: %v", score)
	}
}

func TestQualityScoreSalienceTermAlwaysActive(t *testing.T) {
	// Open Question resolution (§9): the salience reweighting is always
	// active, not gated by a config flag.
	w := DefaultQualityWeights()
	e := NewEngram("x", Metadata{})
	e.Salience = minSalience

	low := QualityScore(e, w)
	e.Salience = maxSalience
	high := QualityScore(e, w)

	if high <= low {
		t.Fatalf("raising salience from min to max should raise quality: low=%v high=%v", low, high)
	}
}

func TestQualityScoreFreshnessDecreasesWithDecay(t *testing.T) {
	w := DefaultQualityWeights()
	fresh := NewEngram("x", Metadata{})
	fresh.DecayScore = 0.0
	stale := NewEngram("x", Metadata{})
	stale.DecayScore = 0.9

	if QualityScore(stale, w) >= QualityScore(fresh, w) {
		t.Fatalf("decayed engram should not score higher than fresh one")
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	sim := CosineSimilarity(v, v)
	if math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("identical vectors should have similarity 1.0, got %v", sim)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	sim := CosineSimilarity(a, b)
	if math.Abs(sim) > 1e-9 {
		t.Fatalf("orthogonal vectors should have similarity 0, got %v", sim)
	}
}

func TestCosineSimilarityMismatchedLength(t *testing.T) {
	if sim := CosineSimilarity([]float32{1}, []float32{1, 2}); sim != 0 {
		t.Fatalf("mismatched-length vectors should score 0, got %v", sim)
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	if sim := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); sim != 0 {
		t.Fatalf("zero vector should score 0, got %v", sim)
	}
}

func TestJaccardIdentical(t *testing.T) {
	if j := Jaccard("the quick fox", "the quick fox"); j != 1.0 {
		t.Fatalf("identical strings should have Jaccard 1.0, got %v", j)
	}
}

func TestJaccardDisjoint(t *testing.T) {
	if j := Jaccard("apples oranges", "trucks planes"); j != 0.0 {
		t.Fatalf("disjoint strings should have Jaccard 0.0, got %v", j)
	}
}

func TestJaccardBothEmpty(t *testing.T) {
	if j := Jaccard("", ""); j != 1.0 {
		t.Fatalf("two empty strings are trivially identical, got %v", j)
	}
}
