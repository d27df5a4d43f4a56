package cortex

import "testing"

func TestWorkingMemoryCapacityInvariant(t *testing.T) {
	w := NewWorkingMemory(3)
	for i := 0; i < 10; i++ {
		e := NewEngram("content", Metadata{})
		e.ID = int64(i + 1)
		e.QualityScore = 0.9
		w.Update("q", []RetrievedEngram{{Engram: e, RerankScore: 5}}, 0)
		if n := len(w.EngramIDs()); n > w.capacity {
			t.Fatalf("working memory exceeded capacity: %d > %d", n, w.capacity)
		}
	}
}

// TestWorkingMemoryCapacityOneEvictsExactlyOne is the §8 boundary test:
// a capacity-1 buffer evicts exactly one item per qualifying update.
func TestWorkingMemoryCapacityOneEvictsExactlyOne(t *testing.T) {
	w := NewWorkingMemory(1)

	first := NewEngram("first", Metadata{})
	first.ID = 1
	first.QualityScore = 0.9
	added := w.Update("q", []RetrievedEngram{{Engram: first, RerankScore: 5}}, 0)
	if len(added) != 1 {
		t.Fatalf("expected first item to be added, got %d", len(added))
	}

	second := NewEngram("second", Metadata{})
	second.ID = 2
	second.QualityScore = 0.9
	added = w.Update("q", []RetrievedEngram{{Engram: second, RerankScore: 5}}, 0)
	if len(added) != 1 {
		t.Fatalf("expected second item to be added, got %d", len(added))
	}

	ids := w.EngramIDs()
	if len(ids) != 1 {
		t.Fatalf("capacity-1 buffer should hold exactly one item, got %d", len(ids))
	}
	if ids[0] != second.ID {
		t.Fatalf("expected the lowest-priority item (first) to be evicted, buffer holds %d", ids[0])
	}
}

func TestWorkingMemoryGetContextAlwaysIncludesStoredItems(t *testing.T) {
	w := NewWorkingMemory(5)
	e := NewEngram("remember me", Metadata{})
	e.ID = 1
	e.QualityScore = 0.9
	w.Update("q", []RetrievedEngram{{Engram: e, RerankScore: 5}}, 0)

	ctx := w.GetContext()
	if len(ctx) != 1 || ctx[0] != "remember me" {
		t.Fatalf("expected GetContext to return stored content, got %v", ctx)
	}
}

func TestWorkingMemoryLowRelevanceLowQualitySkipped(t *testing.T) {
	w := NewWorkingMemory(5)
	e := NewEngram("noise", Metadata{})
	e.ID = 1
	e.QualityScore = 0.1
	added := w.Update("q", []RetrievedEngram{{Engram: e, RerankScore: -4}}, 0)
	if len(added) != 0 {
		t.Fatalf("low-relevance, low-quality item should not be inserted, got %d added", len(added))
	}
}

func TestWorkingMemoryPrimeBoostsRelevance(t *testing.T) {
	w := NewWorkingMemory(5)
	e := NewEngram("x", Metadata{})
	e.ID = 1
	e.QualityScore = 0.9
	w.Update("q", []RetrievedEngram{{Engram: e, RerankScore: 0}}, 0)
	w.Prime(1)

	status := w.GetStatus()
	items := status["items"].([]map[string]any)
	if len(items) != 1 || items[0]["relevance"].(float64) != 1.0 {
		t.Fatalf("Prime should boost relevance to 1.0, got %+v", items)
	}
}
