package cortex

import (
	"sync"
	"time"
)

const defaultReconsolidationWindow = 30 * time.Second

// ReconsolidationEngine implements retrieval-triggered memory
// reconsolidation (§4.12): every recalled engram enters a short fragile
// window during which it may be strengthened, updated, or weakened based
// on how well it served the query. Refinement happens at the moment of
// use rather than in a disconnected background loop. Grounded on
// reasoning/reconsolidation.py, restructured around the teacher's
// mutex-guarded map idiom.
type ReconsolidationEngine struct {
	mu sync.Mutex

	windows      map[int64]*ReconsolidationWindow
	windowDur    time.Duration

	totalOpened       int
	totalStrengthened int
	totalUpdated      int
	totalWeakened     int
}

// NewReconsolidationEngine creates an engine with the given window
// duration (defaults to 30s when <= 0).
func NewReconsolidationEngine(windowDuration time.Duration) *ReconsolidationEngine {
	if windowDuration <= 0 {
		windowDuration = defaultReconsolidationWindow
	}
	return &ReconsolidationEngine{
		windows:   make(map[int64]*ReconsolidationWindow),
		windowDur: windowDuration,
	}
}

// OpenWindow opens a reconsolidation window for a just-retrieved engram.
// If a window is already open it is returned unchanged; its expiry is not
// extended. Called once per recall.
func (r *ReconsolidationEngine) OpenWindow(engramID int64, queryContext string) *ReconsolidationWindow {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.windows[engramID]; ok && existing.IsOpen(now) {
		return existing
	}

	w := &ReconsolidationWindow{
		EngramID:        engramID,
		TriggeringQuery: queryContext,
		OpenedAt:        now,
		Duration:        r.windowDur,
	}
	r.windows[engramID] = w
	r.totalOpened++
	return w
}

// Modification describes a field-level change proposed while an engram is
// inside its reconsolidation window.
type Modification struct {
	QualityScoreDelta     float64
	ConsistencyScoreDelta float64
	DecayScoreDelta       float64
	NeedsRefinement       bool
	RefinementContext     string
}

// EvaluateAndModify decides how a recalled engram should change given how
// well it served the query (§4.12): high quality + low prediction error
// strengthens it, high prediction error weakens it, moderate error marks
// it for refinement (NeedsRefinement in the returned Modification); this
// method does not enqueue it anywhere. Returns nil if the window is closed
// or nothing changed.
func (r *ReconsolidationEngine) EvaluateAndModify(e *Engram, responseQuality, predictionError float64) *Modification {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[e.ID]
	if !ok || !w.IsOpen(time.Now()) {
		return nil
	}

	var mod Modification
	switch {
	case responseQuality > 0.7 && predictionError < 0.3:
		boost := responseQuality * 0.02
		if boost > 0.05 {
			boost = 0.05
		}
		mod.QualityScoreDelta = boost
		mod.ConsistencyScoreDelta = 0.01
		w.Modifications = append(w.Modifications, "strengthen")
		r.totalStrengthened++
	case predictionError > 0.7:
		penalty := predictionError * 0.05
		if penalty > 0.1 {
			penalty = 0.1
		}
		mod.QualityScoreDelta = -penalty
		mod.DecayScoreDelta = 0.05
		w.Modifications = append(w.Modifications, "weaken")
		r.totalWeakened++
	case predictionError > 0.3:
		mod.NeedsRefinement = true
		mod.RefinementContext = w.TriggeringQuery
		w.Modifications = append(w.Modifications, "update")
		r.totalUpdated++
	default:
		return nil
	}

	e.QualityScore = clamp01(e.QualityScore + mod.QualityScoreDelta)
	e.ConsistencyScore = clamp01(e.ConsistencyScore + mod.ConsistencyScoreDelta)
	e.DecayScore = clamp01(e.DecayScore + mod.DecayScoreDelta)
	return &mod
}

// CloseExpiredWindows marks windows past their duration as closed and
// drops them from the active map.
func (r *ReconsolidationEngine) CloseExpiredWindows() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeExpiredLocked()
}

func (r *ReconsolidationEngine) closeExpiredLocked() {
	now := time.Now()
	for id, w := range r.windows {
		if !w.IsOpen(now) {
			w.Closed = true
			delete(r.windows, id)
		}
	}
}

// OpenWindows returns every currently-open window.
func (r *ReconsolidationEngine) OpenWindows() []*ReconsolidationWindow {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeExpiredLocked()
	out := make([]*ReconsolidationWindow, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w)
	}
	return out
}

// GetStats returns reconsolidation counters for the brain_status tool.
func (r *ReconsolidationEngine) GetStats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeExpiredLocked()
	return map[string]any{
		"active_windows":     len(r.windows),
		"total_opened":       r.totalOpened,
		"total_strengthened": r.totalStrengthened,
		"total_updated":      r.totalUpdated,
		"total_weakened":     r.totalWeakened,
	}
}
