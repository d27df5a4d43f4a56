package cortex

import "testing"

// TestEvaluateAndModifyStrengthensOnHighQualityLowError is scenario S3:
// a well-served recall with low prediction error strengthens the engram.
func TestEvaluateAndModifyStrengthensOnHighQualityLowError(t *testing.T) {
	r := NewReconsolidationEngine(0)
	e := NewEngram("x", Metadata{})
	e.QualityScore = 0.50
	e.ConsistencyScore = 0.60

	r.OpenWindow(e.ID, "query")
	mod := r.EvaluateAndModify(e, 0.9, 0.1)
	if mod == nil {
		t.Fatalf("expected a modification for a high-quality, low-error recall")
	}

	if diff := e.QualityScore - 0.518; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected quality to rise to 0.518, got %v", e.QualityScore)
	}
	if diff := e.ConsistencyScore - 0.61; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected consistency to rise to 0.61, got %v", e.ConsistencyScore)
	}
	if r.totalStrengthened != 1 {
		t.Fatalf("expected strengthened counter to be 1, got %d", r.totalStrengthened)
	}
}

func TestEvaluateAndModifyWeakensOnHighError(t *testing.T) {
	r := NewReconsolidationEngine(0)
	e := NewEngram("x", Metadata{})
	e.QualityScore = 0.6
	e.DecayScore = 0.1

	r.OpenWindow(e.ID, "query")
	mod := r.EvaluateAndModify(e, 0.2, 0.9)
	if mod == nil || mod.QualityScoreDelta >= 0 {
		t.Fatalf("expected a negative quality delta on high prediction error, got %+v", mod)
	}
	if e.DecayScore <= 0.1 {
		t.Fatalf("expected decay to increase when weakening, got %v", e.DecayScore)
	}
	if r.totalWeakened != 1 {
		t.Fatalf("expected weakened counter to be 1, got %d", r.totalWeakened)
	}
}

func TestEvaluateAndModifyQueuesRefinementOnModerateError(t *testing.T) {
	r := NewReconsolidationEngine(0)
	e := NewEngram("x", Metadata{})

	r.OpenWindow(e.ID, "the triggering query")
	mod := r.EvaluateAndModify(e, 0.5, 0.5)
	if mod == nil || !mod.NeedsRefinement {
		t.Fatalf("expected moderate error to queue refinement, got %+v", mod)
	}
	if mod.RefinementContext != "the triggering query" {
		t.Fatalf("expected refinement context to carry the triggering query, got %q", mod.RefinementContext)
	}
	if r.totalUpdated != 1 {
		t.Fatalf("expected updated counter to be 1, got %d", r.totalUpdated)
	}
}

func TestEvaluateAndModifyNoOpWithoutOpenWindow(t *testing.T) {
	r := NewReconsolidationEngine(0)
	e := NewEngram("x", Metadata{})
	if mod := r.EvaluateAndModify(e, 0.9, 0.1); mod != nil {
		t.Fatalf("expected no modification without an open window, got %+v", mod)
	}
}

// TestEvaluateAndModifyPreservesClamps is invariant 4: reconsolidation
// mutations never push scores outside [0,1].
func TestEvaluateAndModifyPreservesClamps(t *testing.T) {
	r := NewReconsolidationEngine(0)
	e := NewEngram("x", Metadata{})
	e.QualityScore = 0.99
	e.ConsistencyScore = 0.99

	r.OpenWindow(e.ID, "q")
	r.EvaluateAndModify(e, 0.95, 0.05)

	if e.QualityScore > 1.0 || e.QualityScore < 0 {
		t.Fatalf("quality score left [0,1]: %v", e.QualityScore)
	}
	if e.ConsistencyScore > 1.0 || e.ConsistencyScore < 0 {
		t.Fatalf("consistency score left [0,1]: %v", e.ConsistencyScore)
	}
}
