package cortex

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	impasseDuplicateWindow = time.Hour
	impasseMaxAgeHours     = 48
	impasseResolvedHistMax = 100
)

// domainKeywords infers a query's domain via keyword matching, same
// zero-cost-heuristic-first idiom as the teacher's HeuristicClassifier.
var domainKeywords = map[string][]string{
	"physics":           {"force", "mass", "energy", "velocity", "acceleration", "gravity", "quantum"},
	"mathematics":       {"equation", "number", "sum", "integral", "derivative", "function", "proof"},
	"logic":             {"implies", "therefore", "if then", "contradiction", "syllogism"},
	"biology":           {"cell", "dna", "gene", "organism", "evolution", "protein"},
	"philosophy":        {"consciousness", "existence", "epistemology", "ontology", "ethics"},
	"computer_science":  {"algorithm", "data structure", "complexity", "program", "code"},
}

// inferDomain guesses a query's domain from keyword overlap, defaulting to
// "general" when nothing matches.
func inferDomain(query string) string {
	q := strings.ToLower(query)
	for _, domain := range []string{"physics", "mathematics", "logic", "biology", "philosophy", "computer_science"} {
		for _, kw := range domainKeywords[domain] {
			if strings.Contains(q, kw) {
				return domain
			}
		}
	}
	return "general"
}

// DetectContext carries the signals ImpasseDetector needs to classify a
// stuck deliberation (§4.11).
type DetectContext struct {
	Confidence     float64
	ProofAttempted bool
	ProofProven    bool
	ProofError     string
	AxiomsUsed     []string
	EngramsFound   int
	GateConfidence float64
}

// ImpasseDetector classifies WHY a deliberation got stuck into a typed
// Impasse carrying a concrete sub-goal, instead of simply lowering a
// confidence score (§4.11). Grounded on reasoning/impasse.py, restructured
// around the teacher's mutex-guarded-struct idiom and a plain incrementing
// counter in place of Python's time()-derived id hash.
type ImpasseDetector struct {
	mu sync.Mutex

	active         []*Impasse
	resolvedHistory []*Impasse

	nextID        int64
	totalCreated  int
	totalResolved int
}

// NewImpasseDetector creates an empty detector.
func NewImpasseDetector() *ImpasseDetector {
	return &ImpasseDetector{}
}

// Detect analyzes a processing result and, if the system is stuck,
// produces (and records) a typed Impasse. Returns nil when nothing is
// wrong. Duplicate impasses (same type+domain within the last hour) are
// not re-added; instead the existing one's attempt count and priority
// increase.
func (d *ImpasseDetector) Detect(query string, ctx DetectContext) *Impasse {
	confidence := ctx.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	engramsFound := ctx.EngramsFound
	gateConfidence := ctx.GateConfidence
	if gateConfidence == 0 {
		gateConfidence = 1.0
	}

	var imp *Impasse
	switch {
	case gateConfidence < 0.4:
		imp = &Impasse{
			OriginalQuery: query,
			Type:          ImpasseGateRejected,
			FailureReason: fmt.Sprintf("input too noisy (gate confidence: %.2f)", gateConfidence),
			SubGoal:       "expand translator vocabulary or ask user to rephrase",
			Domain:        "general",
			Priority:      0.3,
		}
	case engramsFound == 0:
		domain := inferDomain(query)
		imp = &Impasse{
			OriginalQuery: query,
			Type:          ImpasseNoEngrams,
			FailureReason: "no relevant engrams found for this query",
			SubGoal:       "acquire knowledge in domain: " + domain,
			Domain:        domain,
			Priority:      0.7,
		}
	case ctx.ProofAttempted && !ctx.ProofProven:
		domain := inferDomain(query)
		if strings.Contains(strings.ToLower(ctx.ProofError), "no axioms") || len(ctx.AxiomsUsed) == 0 {
			imp = &Impasse{
				OriginalQuery: query,
				Type:          ImpasseNoAxioms,
				FailureReason: "no axioms available in domain: " + domain,
				SubGoal:       "seed axioms for domain: " + domain,
				Domain:        domain,
				Priority:      0.8,
			}
		} else {
			imp = &Impasse{
				OriginalQuery: query,
				Type:          ImpasseProofFailed,
				FailureReason: "proof failed: " + ctx.ProofError,
				SubGoal:       "strengthen reasoning in domain: " + domain,
				Domain:        domain,
				Priority:      0.6,
			}
		}
	case confidence < 0.3:
		domain := inferDomain(query)
		imp = &Impasse{
			OriginalQuery: query,
			Type:          ImpasseLowConfidence,
			FailureReason: fmt.Sprintf("all paths produced low confidence (%.2f)", confidence),
			SubGoal:       "improve coverage in domain: " + domain,
			Domain:        domain,
			Priority:      0.5,
		}
	default:
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing := d.findDuplicateLocked(imp); existing != nil {
		existing.Attempts++
		if existing.Priority+0.1 < 1.0 {
			existing.Priority += 0.1
		} else {
			existing.Priority = 1.0
		}
		return imp
	}

	d.nextID++
	imp.ID = d.nextID
	imp.CreatedAt = time.Now()
	imp.MaxAttempts = MaxImpasseAttempts
	d.active = append(d.active, imp)
	d.totalCreated++
	return imp
}

func (d *ImpasseDetector) findDuplicateLocked(imp *Impasse) *Impasse {
	cutoff := time.Now().Add(-impasseDuplicateWindow)
	for _, existing := range d.active {
		if existing.Type == imp.Type && existing.Domain == imp.Domain && existing.CreatedAt.After(cutoff) {
			return existing
		}
	}
	return nil
}

// Resolve marks an active impasse resolved and moves it to history.
func (d *ImpasseDetector) Resolve(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, imp := range d.active {
		if imp.ID == id {
			imp.Resolved = true
			d.active = append(d.active[:i], d.active[i+1:]...)
			d.resolvedHistory = append(d.resolvedHistory, imp)
			if len(d.resolvedHistory) > impasseResolvedHistMax {
				d.resolvedHistory = d.resolvedHistory[len(d.resolvedHistory)-impasseResolvedHistMax:]
			}
			d.totalResolved++
			return true
		}
	}
	return false
}

// ActiveByPriority returns active impasses sorted highest priority first.
func (d *ImpasseDetector) ActiveByPriority() []*Impasse {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Impasse, len(d.active))
	copy(out, d.active)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// ActiveByDomain returns active impasses restricted to domain.
func (d *ImpasseDetector) ActiveByDomain(domain string) []*Impasse {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Impasse
	for _, imp := range d.active {
		if imp.Domain == domain {
			out = append(out, imp)
		}
	}
	return out
}

// PruneStale removes impasses older than maxAgeHours or past their max
// attempt count, marking them resolved and moving them to the resolved
// history. No reason is recorded on the pruned impasse.
func (d *ImpasseDetector) PruneStale(maxAgeHours int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if maxAgeHours <= 0 {
		maxAgeHours = impasseMaxAgeHours
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)

	kept := d.active[:0]
	pruned := 0
	for _, imp := range d.active {
		if imp.CreatedAt.Before(cutoff) || imp.Attempts >= imp.MaxAttempts {
			imp.Resolved = true
			d.resolvedHistory = append(d.resolvedHistory, imp)
			pruned++
			continue
		}
		kept = append(kept, imp)
	}
	d.active = kept
	if len(d.resolvedHistory) > impasseResolvedHistMax {
		d.resolvedHistory = d.resolvedHistory[len(d.resolvedHistory)-impasseResolvedHistMax:]
	}
	return pruned
}

// GetStats returns impasse counters for the brain_status tool.
func (d *ImpasseDetector) GetStats() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	byType := make(map[string]int)
	for _, imp := range d.active {
		byType[string(imp.Type)]++
	}
	rate := 0.0
	if d.totalCreated > 0 {
		rate = float64(d.totalResolved) / float64(d.totalCreated)
	}
	return map[string]any{
		"active_impasses": len(d.active),
		"total_created":   d.totalCreated,
		"total_resolved":  d.totalResolved,
		"resolution_rate": rate,
		"by_type":         byType,
	}
}
