package cortex

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	maxHeartbeatHistory = 300
	errorWindowSize      = 60
	circuitBreakerRate   = 5.0
)

// BrainSnapshotCollector is implemented by anything the Heartbeat polls once
// per tick to build a BrainSnapshot. AwakeEngine, the Store, and
// TranslatorGate each implement the slice of it they have data for.
type BrainSnapshotCollector interface {
	GetStatus() map[string]any
}

// Heartbeat is the 1Hz master clock (§4.5): it collects a BrainSnapshot every
// tick, runs the circuit breaker and metacognitive feedback rules, drives the
// Market's auction, and keeps a ring-buffer history for diagnostics.
// Grounded on original_source/reasoning/heartbeat.py, restructured around
// the teacher's decay_worker.go ticker+context.Cancel idiom instead of the
// original's singleton/daemon-thread pattern (Design Notes §9: no package
// singletons).
type Heartbeat struct {
	mu sync.RWMutex

	tickCount int
	startTime time.Time

	history []BrainSnapshot
	current BrainSnapshot

	market *Market
	awake  *AwakeEngine
	store  *Store
	gate   *TranslatorGate

	errorWindow []int
	errorRate   float64
	halted      bool
	haltReason  string

	listeners []func(BrainSnapshot)

	cancel context.CancelFunc
	done   chan struct{}
}

// stopJoinTimeout bounds how long Stop waits for the beat loop goroutine to
// exit before giving up (§5).
const stopJoinTimeout = 3 * time.Second

// NewHeartbeat creates a stopped Heartbeat. Call Start to begin ticking.
func NewHeartbeat(market *Market, store *Store) *Heartbeat {
	return &Heartbeat{
		startTime: time.Now(),
		market:    market,
		store:     store,
	}
}

// SetAwakeEngine wires the AwakeEngine for bid collection and metacognitive
// feedback. Optional — a Heartbeat with no AwakeEngine still ticks the
// Market and records snapshots.
func (h *Heartbeat) SetAwakeEngine(a *AwakeEngine) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.awake = a
}

// SetTranslatorGate wires the gate for cache-size reporting in snapshots.
func (h *Heartbeat) SetTranslatorGate(g *TranslatorGate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gate = g
}

// OnTick registers a callback invoked with every new snapshot.
func (h *Heartbeat) OnTick(fn func(BrainSnapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Start begins the 1Hz beat loop in a background goroutine. Safe to call
// once; a second call is a no-op until Stop.
func (h *Heartbeat) Start(ctx context.Context) {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	done := make(chan struct{})
	h.done = done
	h.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.tick()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the beat loop and joins the goroutine, waiting up to
// stopJoinTimeout before giving up (§5). On timeout Stop logs and returns
// without waiting for an in-flight tick, which may still be updating the
// Market and AwakeEngine.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	done := h.done
	h.cancel = nil
	h.done = nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		log.Printf("[cortex] heartbeat: stop timed out after %s, beat loop may still be draining", stopJoinTimeout)
	}
}

func (h *Heartbeat) tick() {
	h.mu.Lock()
	h.tickCount++
	snap := h.collectSnapshot()
	h.history = append(h.history, snap)
	if len(h.history) > maxHeartbeatHistory {
		h.history = h.history[len(h.history)-maxHeartbeatHistory:]
	}
	h.current = snap
	h.checkCircuitBreaker(snap)
	h.metacognitiveAdjust(snap)
	listeners := append([]func(BrainSnapshot){}, h.listeners...)
	market := h.market
	awake := h.awake
	h.mu.Unlock()

	for _, cb := range listeners {
		cb(snap)
	}

	if market != nil {
		var bids []Bid
		if awake != nil {
			bids = append(bids, awake.ConstructBid())
		}
		allocations := market.Tick(bids)
		if awake != nil {
			h.distributeAllocations(awake, allocations)
		}
	}
}

func (h *Heartbeat) distributeAllocations(awake *AwakeEngine, allocations map[string][]Allocation) {
	for resource, wins := range allocations {
		for _, w := range wins {
			if w.Winner == awakeAgentID {
				awake.ReceiveAllocation(resource, w.Amount)
			}
		}
	}
}

func (h *Heartbeat) collectSnapshot() BrainSnapshot {
	snap := BrainSnapshot{
		Tick:      h.tickCount,
		Timestamp: time.Now(),
	}

	if h.awake != nil {
		status := h.awake.GetStatus()
		snap.AwakeMode, _ = status["mode"].(string)
		snap.AwakeHz, _ = status["hz"].(float64)
		if q, ok := status["queue_size"].(int); ok {
			snap.AwakeQueue = q
		}
		if p, ok := status["proofs_generated"].(int); ok {
			snap.ProofsTotal = p
		}
		if r, ok := status["refinements_made"].(int); ok {
			snap.RefinementsTotal = r
		}
	}

	if h.store != nil {
		total, avgQ, avgC, axiomCt, lowCt, err := h.store.QualitySummary()
		if err == nil {
			snap.TotalEngrams = total
			snap.AvgQuality = avgQ
			snap.AvgConsistency = avgC
			snap.AxiomDerivedCount = axiomCt
			snap.LowConsistencyCount = lowCt
		}
	}

	if h.gate != nil {
		snap.GateCacheSize = h.gate.CacheSize()
		snap.GateConfidence = h.gate.LastConfidence()
	}

	return snap
}

func (h *Heartbeat) checkCircuitBreaker(snap BrainSnapshot) {
	errorsThisTick := 0
	if n := len(h.history); n >= 2 {
		errorsThisTick = snap.ErrorsTotal - h.history[n-2].ErrorsTotal
	}
	h.errorWindow = append(h.errorWindow, errorsThisTick)
	if len(h.errorWindow) > errorWindowSize {
		h.errorWindow = h.errorWindow[len(h.errorWindow)-errorWindowSize:]
	}

	sum := 0
	for _, v := range h.errorWindow {
		sum += v
	}
	h.errorRate = float64(sum) / float64(max(len(h.errorWindow), 1))

	if h.errorRate > circuitBreakerRate && !h.halted {
		h.halted = true
		h.haltReason = "circuit breaker tripped: error rate exceeds threshold"
		log.Printf("[cortex] heartbeat: %s (%.2f/tick)", h.haltReason, h.errorRate)
		if h.awake != nil {
			h.awake.Stop()
		}
	}
}

// metacognitiveAdjust is the brain watching itself (§4.5): low consistency
// escalates the AwakeEngine, a high error rate slows it, a deep queue speeds
// it up.
func (h *Heartbeat) metacognitiveAdjust(snap BrainSnapshot) {
	if h.awake == nil || !h.awake.Running() {
		return
	}

	if snap.LowConsistencyCount > 5 && h.awake.Mode() == ModeIdle {
		weak, err := h.store.WeakEngrams(3)
		if err == nil && len(weak) > 0 {
			h.awake.TriggerFocusedBurst(weak)
		}
	}

	if h.errorRate > 2.0 {
		h.awake.ScaleHz(0.5)
	}

	if snap.AwakeQueue > 10 {
		h.awake.ScaleHz(1.5)
	}
}

// RecordError feeds an out-of-band error into the circuit breaker window,
// for failures that don't surface through ErrorsTotal (e.g. a panic
// recovered elsewhere).
func (h *Heartbeat) RecordError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorWindow = append(h.errorWindow, 1)
}

// Current returns the most recent snapshot.
func (h *Heartbeat) Current() BrainSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// History returns up to lastN most recent snapshots, oldest first.
func (h *Heartbeat) History(lastN int) []BrainSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if lastN <= 0 || lastN > len(h.history) {
		lastN = len(h.history)
	}
	out := make([]BrainSnapshot, lastN)
	copy(out, h.history[len(h.history)-lastN:])
	return out
}

// Health summarizes circuit-breaker and uptime state for brain_status tools.
func (h *Heartbeat) Health() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]any{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"total_ticks":    h.tickCount,
		"error_rate":     h.errorRate,
		"halted":         h.halted,
		"halt_reason":    h.haltReason,
	}
}
