package cortex

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultWorkingMemoryCapacity = 7
	workingMemoryRecencyWindow   = 300 * time.Second
	workingMemoryMinRelevance    = 0.3
	workingMemoryMinQuality      = 0.6
	workingMemoryTruncateLen     = 200
)

// priority is the combined eviction score for a MemoryItem (§4.13):
// relevance, quality, recency decay, and access frequency.
func priority(item *MemoryItem) float64 {
	recency := 1.0 - time.Since(item.AddedAt).Seconds()/workingMemoryRecencyWindow.Seconds()
	if recency < 0 {
		recency = 0
	}
	accessTerm := float64(item.AccessCount) / 10.0
	if accessTerm > 1.0 {
		accessTerm = 1.0
	}
	return item.Relevance*0.4 + item.Quality*0.3 + recency*0.2 + accessTerm*0.1
}

// WorkingMemory is a fixed-capacity focus buffer sized to Miller's 7±2
// (§4.13): engrams that score high on relevance and quality persist here
// across queries and are always prepended to deliberation context,
// regardless of what the current retrieval returns. Grounded on
// reasoning/working_memory.py, restructured around the teacher's
// mutex-guarded-struct idiom.
type WorkingMemory struct {
	mu       sync.Mutex
	capacity int
	items    []*MemoryItem

	totalInsertions int
	totalEvictions  int
	totalAccesses   int
}

// NewWorkingMemory creates a buffer at the given capacity (defaults to 7
// when <= 0).
func NewWorkingMemory(capacity int) *WorkingMemory {
	if capacity <= 0 {
		capacity = defaultWorkingMemoryCapacity
	}
	return &WorkingMemory{capacity: capacity}
}

// RetrievedEngram pairs an engram with the rerank score that determines
// its working-memory relevance.
type RetrievedEngram struct {
	Engram      *Engram
	RerankScore float64
}

// Update folds newly retrieved engrams into working memory: already-present
// items get their access count and relevance bumped, sufficiently relevant
// or high-quality new items are inserted (evicting the lowest-priority
// item if full). Returns the newly added items.
func (w *WorkingMemory) Update(query string, retrieved []RetrievedEngram, minRelevance float64) []*MemoryItem {
	if minRelevance <= 0 {
		minRelevance = workingMemoryMinRelevance
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var added []*MemoryItem
	for _, r := range retrieved {
		relevance := (r.RerankScore + 5) / 10
		if relevance < 0 {
			relevance = 0
		}
		if relevance > 1.0 {
			relevance = 1.0
		}

		if existing := w.findLocked(r.Engram.ID); existing != nil {
			existing.AccessCount++
			if relevance > existing.Relevance {
				existing.Relevance = relevance
			}
			w.totalAccesses++
			continue
		}

		if relevance < minRelevance && r.Engram.QualityScore < workingMemoryMinQuality {
			continue
		}

		content := r.Engram.Content
		if len(content) > workingMemoryTruncateLen {
			content = content[:workingMemoryTruncateLen]
		}
		item := &MemoryItem{
			EngramID:    r.Engram.ID,
			Content:     content,
			Relevance:   relevance,
			Quality:     r.Engram.QualityScore,
			AddedAt:     time.Now(),
			AccessCount: 1,
			SourceQuery: query,
		}
		w.insertLocked(item)
		added = append(added, item)
	}
	return added
}

// GetContext returns buffer contents as context strings, highest priority
// first, for unconditional inclusion in the deliberation pipeline.
func (w *WorkingMemory) GetContext() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedByPriorityLocked()
	out := make([]string, len(sorted))
	for i, item := range sorted {
		out[i] = item.Content
	}
	return out
}

// EngramIDs returns the ids of engrams currently held in working memory.
func (w *WorkingMemory) EngramIDs() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int64, len(w.items))
	for i, item := range w.items {
		out[i] = item.EngramID
	}
	return out
}

// Prime manually boosts an item to maximum priority, used when user
// feedback marks an engram as helpful.
func (w *WorkingMemory) Prime(engramID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if item := w.findLocked(engramID); item != nil {
		item.Relevance = 1.0
		item.AccessCount += 3
		item.AddedAt = time.Now()
	}
}

// Clear empties the buffer.
func (w *WorkingMemory) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = nil
}

func (w *WorkingMemory) insertLocked(item *MemoryItem) {
	if len(w.items) >= w.capacity {
		lowestIdx := 0
		lowestPriority := priority(w.items[0])
		for i, existing := range w.items[1:] {
			if p := priority(existing); p < lowestPriority {
				lowestPriority = p
				lowestIdx = i + 1
			}
		}
		w.items = append(w.items[:lowestIdx], w.items[lowestIdx+1:]...)
		w.totalEvictions++
	}
	w.items = append(w.items, item)
	w.totalInsertions++
}

func (w *WorkingMemory) findLocked(engramID int64) *MemoryItem {
	for _, item := range w.items {
		if item.EngramID == engramID {
			return item
		}
	}
	return nil
}

func (w *WorkingMemory) sortedByPriorityLocked() []*MemoryItem {
	out := make([]*MemoryItem, len(w.items))
	copy(out, w.items)
	sort.SliceStable(out, func(i, j int) bool { return priority(out[i]) > priority(out[j]) })
	return out
}

// GetStatus returns buffer occupancy and per-item priority for the
// brain_status tool.
func (w *WorkingMemory) GetStatus() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedByPriorityLocked()
	items := make([]map[string]any, len(sorted))
	for i, item := range sorted {
		items[i] = map[string]any{
			"id":        item.EngramID,
			"relevance": item.Relevance,
			"priority":  priority(item),
			"accesses":  item.AccessCount,
		}
	}
	return map[string]any{
		"capacity":         w.capacity,
		"current_size":     len(w.items),
		"items":            items,
		"total_insertions": w.totalInsertions,
		"total_evictions":  w.totalEvictions,
	}
}
