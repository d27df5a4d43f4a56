package cortex

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// EngineMode is an AwakeEngine operating mode (§4.6).
type EngineMode string

const (
	ModeIdle     EngineMode = "idle"
	ModeThinking EngineMode = "thinking"
	ModeFocused  EngineMode = "focused"
	ModeDreaming EngineMode = "dreaming"
	ModeSleeping EngineMode = "sleeping"
)

const awakeAgentID = "awake_engine"

const (
	dreamEnergyThreshold = 20.0
	wakeEnergyThreshold  = 80.0
	reaperEvery          = 10
	reaperStaleAfter     = time.Hour
	reaperQualityFloor   = 0.5
	queueHardCap         = 500
	pruneFraction        = 0.9
	bailoutQueueSize     = 50
)

// Refiner does LLM-backed content refinement for THINKING mode. Default
// implementations live in providers_llm.go.
type Refiner interface {
	RefineContent(ctx context.Context, content string) (string, error)
}

// ProofAttempter does bridge-to-axiom extraction and symbolic proof for
// FOCUSED mode.
type ProofAttempter interface {
	AttemptProof(ctx context.Context, e *Engram) (proven bool, axiomsUsed []string, err error)
}

// AwakeEngine is the dynamic 0.5-60Hz cognitive loop (§4.6): a mode state
// machine driven by Market bids, working a priority queue of weak engrams
// with age-weighted urgency, escalation, and ruthless pruning under
// overflow. Grounded on original_source/reasoning/awake_engine.py,
// restructured around the teacher's mutex-guarded-struct + background
// goroutine idiom (no package singleton, no asyncio).
type AwakeEngine struct {
	mu sync.Mutex

	store   *Store
	market  *Market
	drive   *SeekingDrive
	refiner Refiner
	prover  ProofAttempter

	mode       EngineMode
	running    bool
	currentHz  float64
	minHz      float64
	maxHz      float64
	allocation float64
	leaseHeld  bool

	workloadQueue []*Engram

	cycleCount         int
	proofsGenerated    int
	refinementsMade    int
	consistencyChecks  int
	modeSwitches       int
	lastModeChange     time.Time

	consistencyThreshold float64
	escalationThreshold  float64
	uncertaintyThreshold float64

	cancel context.CancelFunc
}

// NewAwakeEngine builds an engine in the SLEEPING state. Call SetMarket to
// register it with the economy, then Start to begin cycling.
func NewAwakeEngine(store *Store, cfg Config) *AwakeEngine {
	return &AwakeEngine{
		store:                 store,
		mode:                  ModeSleeping,
		currentHz:             cfg.Awake.MinHz,
		minHz:                 cfg.Awake.MinHz,
		maxHz:                 cfg.Awake.MaxHz,
		lastModeChange:        time.Now(),
		consistencyThreshold:  cfg.Reasoning.ConsistencyThreshold,
		escalationThreshold:   0.6,
		uncertaintyThreshold:  cfg.Awake.UncertaintyThreshold,
	}
}

// SetMarket wires the engine into the internal economy and registers its
// wallet.
func (a *AwakeEngine) SetMarket(m *Market) {
	a.mu.Lock()
	a.market = m
	a.mu.Unlock()
	m.RegisterAgent(awakeAgentID, 100.0)
}

// SetRefiner wires the LLM refinement collaborator used in THINKING mode.
func (a *AwakeEngine) SetRefiner(r Refiner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refiner = r
}

// SetProver wires the symbolic proof collaborator used in FOCUSED mode.
func (a *AwakeEngine) SetProver(p ProofAttempter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prover = p
}

// ConstructBid builds this tick's Market bid from queue pressure (§4.6):
// background maintenance by default, a bailout grant proposal plus an
// exclusive power-lease bid when the queue is badly backed up, and an
// escalated bid when queued items are low quality.
func (a *AwakeEngine) ConstructBid() Bid {
	a.mu.Lock()
	queueSize := len(a.workloadQueue)
	var avgQuality float64
	if queueSize > 0 {
		var sum float64
		for _, e := range a.workloadQueue {
			sum += e.QualityScore
		}
		avgQuality = sum / float64(queueSize)
	}
	market := a.market
	a.mu.Unlock()

	value := 1.0
	amount := 10.0
	resource := ResourceComputeRPM

	switch {
	case queueSize > bailoutQueueSize:
		needed := float64(queueSize) * 5.0
		utility := needed * 2.0
		if market != nil {
			market.SubmitProposal(GrantRequest{AgentID: awakeAgentID, Cost: needed, Utility: utility, Reason: "workload bailout"})
		}
		value = needed / 60.0
		amount = 60.0
		resource = ResourcePowerLease
	case queueSize > 0:
		value += float64(queueSize) * 0.5
		amount = 30.0
	}

	if avgQuality < 0.5 && queueSize > 0 {
		value += 10.0
		amount = 60.0
		resource = ResourcePowerLease
	}

	return Bid{AgentID: awakeAgentID, Resource: resource, Amount: amount, Value: value}
}

// ReceiveAllocation applies the Market's response to this tick's bid.
func (a *AwakeEngine) ReceiveAllocation(resource string, amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allocation = amount
	if amount > 0 {
		a.currentHz = amount
		switch {
		case resource == ResourcePowerLease:
			a.leaseHeld = true
			a.setMode(ModeFocused)
		case a.currentHz >= 10:
			a.leaseHeld = false
			a.setMode(ModeThinking)
		default:
			a.leaseHeld = false
			a.setMode(ModeIdle)
		}
	} else {
		a.leaseHeld = false
		a.currentHz = a.minHz
		a.setMode(ModeIdle)
	}
}

// Start begins the cognitive loop in a background goroutine, sleeping for
// 1/currentHz between steps.
func (a *AwakeEngine) Start(ctx context.Context) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true
	a.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			a.mu.Lock()
			alloc := a.allocation
			a.mu.Unlock()

			if alloc > 0 {
				a.step(ctx)
			}

			a.mu.Lock()
			hz := a.currentHz
			a.mu.Unlock()
			if hz <= 0 {
				hz = 0.1
			}
			select {
			case <-time.After(time.Duration(1.0 / hz * float64(time.Second))):
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and enters SLEEPING.
func (a *AwakeEngine) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.running = false
	a.mode = ModeSleeping
	log.Printf("[cortex] awake engine: stopped after %d cycles, %d proofs, %d refinements",
		a.cycleCount, a.proofsGenerated, a.refinementsMade)
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether the loop is active.
func (a *AwakeEngine) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Mode returns the current engine mode.
func (a *AwakeEngine) Mode() EngineMode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// ScaleHz multiplies the current rate by factor, clamped to [minHz, maxHz].
// Used by the Heartbeat's metacognitive feedback rules.
func (a *AwakeEngine) ScaleHz(factor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hz := a.currentHz * factor
	if hz < a.minHz {
		hz = a.minHz
	}
	if hz > a.maxHz {
		hz = a.maxHz
	}
	a.currentHz = hz
}

// TriggerFocusedBurst queues engrams for immediate FOCUSED-mode attention.
func (a *AwakeEngine) TriggerFocusedBurst(engrams []*Engram) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workloadQueue = append(a.workloadQueue, engrams...)
	a.setMode(ModeFocused)
}

func (a *AwakeEngine) step(ctx context.Context) {
	a.mu.Lock()
	a.cycleCount++
	market := a.market
	mode := a.mode
	a.mu.Unlock()

	if market != nil {
		energy := market.EnergyLevel()
		if energy < dreamEnergyThreshold {
			if mode != ModeDreaming {
				a.mu.Lock()
				a.setMode(ModeDreaming)
				a.mu.Unlock()
			}
		} else if mode == ModeDreaming && energy > wakeEnergyThreshold {
			a.mu.Lock()
			a.setMode(ModeIdle)
			a.mu.Unlock()
		}
	}

	a.mu.Lock()
	mode = a.mode
	a.mu.Unlock()

	switch mode {
	case ModeIdle:
		a.idleScan()
	case ModeThinking:
		a.think(ctx)
	case ModeFocused:
		a.focusedReasoning(ctx)
	case ModeDreaming:
		a.dream()
	}

	a.adjustHz()
}

// idleScan scans for weak engrams, escalates to THINKING when found, and
// runs the reaper every tenth check (§4.6).
func (a *AwakeEngine) idleScan() {
	candidates, err := a.store.WeakEngrams(3)
	if err != nil {
		return
	}
	filtered := candidates[:0]
	for _, c := range candidates {
		if c.QualityScore < a.uncertaintyThreshold || c.ConsistencyScore < a.consistencyThreshold {
			filtered = append(filtered, c)
		}
	}

	a.mu.Lock()
	if len(filtered) > 0 {
		a.workloadQueue = append(a.workloadQueue, filtered...)
		a.setMode(ModeThinking)
	}

	a.consistencyChecks++
	if a.consistencyChecks%reaperEvery == 0 {
		now := time.Now()
		kept := a.workloadQueue[:0]
		removed := 0
		for _, e := range a.workloadQueue {
			if now.Sub(e.CreatedAt) < reaperStaleAfter || e.QualityScore > reaperQualityFloor {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		a.workloadQueue = kept
		if removed > 0 {
			log.Printf("[cortex] awake engine: reaper removed %d stale queue items", removed)
		}
	}
	a.mu.Unlock()
}

func urgency(e *Engram, now time.Time) float64 {
	return e.QualityScore + now.Sub(e.CreatedAt).Minutes()/10.0
}

func sortByUrgency(q []*Engram) {
	now := time.Now()
	sort.SliceStable(q, func(i, j int) bool { return urgency(q[i], now) > urgency(q[j], now) })
}

// think refines the most urgent queued engram via the LLM collaborator,
// escalating to FOCUSED when it is below the escalation threshold (§4.6).
func (a *AwakeEngine) think(ctx context.Context) {
	a.mu.Lock()
	if len(a.workloadQueue) == 0 {
		a.setMode(ModeIdle)
		a.mu.Unlock()
		return
	}
	sortByUrgency(a.workloadQueue)
	e := a.workloadQueue[0]
	a.workloadQueue = a.workloadQueue[1:]
	a.mu.Unlock()

	if e.ConsistencyScore < a.escalationThreshold {
		a.mu.Lock()
		a.workloadQueue = append([]*Engram{e}, a.workloadQueue...)
		a.setMode(ModeFocused)
		a.mu.Unlock()
		return
	}

	if a.refiner == nil {
		return
	}
	improved, err := a.refiner.RefineContent(ctx, e.Content)
	if err != nil || improved == "" || improved == e.Content {
		return
	}

	risk, safe := CalculateRisk([]*Engram{e})
	if !safe {
		improved = "[REFINED WITH LOW CONFIDENCE, risk=" + formatRisk(risk) + "] " + improved
	}
	e.Content = improved
	e.Hash = contentHash(improved)
	e.Version++
	if err := a.store.AddOrUpdate(e); err == nil {
		a.mu.Lock()
		a.refinementsMade++
		a.mu.Unlock()
	}
}

func formatRisk(r float64) string {
	const digits = "0123456789"
	i := int(r * 100)
	if i < 0 {
		i = 0
	}
	if i > 100 {
		i = 100
	}
	return string([]byte{digits[i/100%10], '.', digits[i/10%10], digits[i%10]})
}

// focusedReasoning attempts a symbolic proof on the most urgent queued
// engram, enforcing the hard queue cap via ruthless pruning (§4.6).
func (a *AwakeEngine) focusedReasoning(ctx context.Context) {
	a.mu.Lock()
	if len(a.workloadQueue) == 0 {
		a.setMode(ModeThinking)
		a.mu.Unlock()
		return
	}
	sortByUrgency(a.workloadQueue)
	e := a.workloadQueue[0]
	a.workloadQueue = a.workloadQueue[1:]
	if len(a.workloadQueue) > queueHardCap {
		cut := int(float64(len(a.workloadQueue)) * pruneFraction)
		a.workloadQueue = a.workloadQueue[:cut]
		log.Printf("[cortex] awake engine: ruthless pruning dropped queue overflow")
	}
	prover := a.prover
	a.mu.Unlock()

	if prover == nil {
		e.ConsistencyScore = 0.7
		a.store.UpdateMetrics(e)
		a.mu.Lock()
		a.setMode(ModeThinking)
		a.mu.Unlock()
		return
	}

	proven, axioms, err := prover.AttemptProof(ctx, e)
	if err == nil && proven {
		e.ConsistencyScore = 1.0
		e.IsAxiomDerived = true
		e.AxiomsUsed = axioms
		a.mu.Lock()
		a.proofsGenerated++
		a.mu.Unlock()
	} else {
		if e.ConsistencyScore-0.2 > 0.3 {
			e.ConsistencyScore -= 0.2
		} else {
			e.ConsistencyScore = 0.3
		}
	}
	a.store.UpdateMetrics(e)

	a.mu.Lock()
	if len(a.workloadQueue) == 0 {
		a.setMode(ModeThinking)
	}
	a.mu.Unlock()
}

// dream prunes orphaned low-quality engrams (§4.6 DREAMING). Triggered when
// energy falls below 20%; the original's clustering step is left for a
// later pass (no clustering collaborator is wired in this core, per
// Non-goals).
func (a *AwakeEngine) dream() {
	count, err := a.store.PruneOrphans(0.4)
	if err == nil && count > 0 {
		log.Printf("[cortex] awake engine: dream cycle pruned %d orphans", count)
	}
}

// setMode switches mode under the caller's lock, logging the transition.
func (a *AwakeEngine) setMode(m EngineMode) {
	if m == a.mode {
		return
	}
	old := a.mode
	a.mode = m
	a.modeSwitches++
	a.lastModeChange = time.Now()
	log.Printf("[cortex] awake engine: %s -> %s (queue %d)", old, m, len(a.workloadQueue))
}

// adjustHz recomputes currentHz from the active mode and queue pressure.
func (a *AwakeEngine) adjustHz() {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.mode {
	case ModeIdle:
		a.currentHz = a.minHz
	case ModeThinking:
		pressure := float64(min(len(a.workloadQueue), 10)) / 10.0
		a.currentHz = 2 + pressure*13
	case ModeFocused:
		hz := 15 + float64(len(a.workloadQueue))*5
		if hz > a.maxHz {
			hz = a.maxHz
		}
		a.currentHz = hz
	case ModeSleeping:
		a.currentHz = 0.0
	}
}

// GetStatus returns a snapshot-shaped status map for the Heartbeat.
func (a *AwakeEngine) GetStatus() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{
		"mode":               string(a.mode),
		"hz":                 a.currentHz,
		"queue_size":         len(a.workloadQueue),
		"cycle_count":        a.cycleCount,
		"proofs_generated":   a.proofsGenerated,
		"refinements_made":   a.refinementsMade,
		"consistency_checks": a.consistencyChecks,
		"mode_switches":      a.modeSwitches,
		"running":            a.running,
	}
}

// thinkingPauses are human-readable stalling phrases surfaced by the
// DeliberationPipeline while confidence is still low.
var thinkingPauses = []string{
	"Hmm, let me think about that...",
	"Interesting question. Working through the logic...",
	"That requires some deeper reasoning...",
	"Let me verify this against what I know...",
	"Thinking carefully about this one...",
}

// ThinkingResponse returns a human-like pause message when confidence is
// below 0.75, or "" when no pause is warranted.
func ThinkingResponse(confidence float64) string {
	if confidence >= 0.75 {
		return ""
	}
	return thinkingPauses[rand.Intn(len(thinkingPauses))]
}
