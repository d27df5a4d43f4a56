package cortex

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	maxDeliberations     = 3
	deliberationLowError = 0.3
	deliberationOkConf   = 0.5
)

// competitionPath names which of the fast/symbolic paths produced a
// CompetitionResult.
type competitionPath string

const (
	pathFastHonest     competitionPath = "fast_honest"
	pathFast           competitionPath = "fast"
	pathSymbolic       competitionPath = "symbolic"
	pathSymbolicFailed competitionPath = "symbolic_failed"
)

// CompetitionResult is one contender's answer in a deliberation round
// (§4.14f): the fast LLM-reasoning path and the symbolic proof path race,
// and the higher-confidence result wins.
type CompetitionResult struct {
	Content    string
	Confidence float64
	Path       competitionPath
	Retrieved  []RetrievedEngram
}

// symbolicKeywords flags a query as worth routing to the proof path, the
// same keyword-gate idiom as ImpasseDetector's domain inference.
var symbolicKeywords = []string{"prove", "derive", "theorem", "axiom", "logically", "if and only if", "therefore"}

func looksSymbolic(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range symbolicKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// DeliberationPipeline implements process_query (§4.14): gate-filtered
// input runs through up to MAX_DELIBERATIONS retrieval rounds, each
// pitting a fast LLM-reasoning path against a symbolic proof path in
// parallel, winner-take-all, with prediction-error-driven query
// refinement between rounds. Grounded on the fast/symbolic competition
// described in original_source/reasoning/awake_engine.py and
// symbolic_reasoning.py's "LLM proposer vs formal verifier" split,
// restructured around goroutines joined by a sync.WaitGroup in place of
// asyncio.gather.
type DeliberationPipeline struct {
	core *Core
}

// NewDeliberationPipeline builds a pipeline over core's wired components.
func NewDeliberationPipeline(core *Core) *DeliberationPipeline {
	return &DeliberationPipeline{core: core}
}

// Process runs the full eight-step deliberation algorithm and returns the
// final response text.
func (p *DeliberationPipeline) Process(ctx context.Context, rawQuery string) (string, error) {
	c := p.core

	var filtered FilteredInput
	if c.Gate != nil {
		filtered = c.Gate.FilterInput(ctx, rawQuery)
	} else {
		filtered = FilteredInput{Content: rawQuery, Original: rawQuery, Confidence: 1.0, IsClean: true}
	}

	if filtered.NeedsClarification && filtered.Confidence < 0.4 {
		c.Impasses.Detect(rawQuery, DetectContext{GateConfidence: filtered.Confidence})
		return "I'm not confident I understood that. Could you rephrase?", nil
	}

	clean := filtered.Content
	if clean == "" {
		clean = rawQuery
	}
	currentQuery := clean

	var best *CompetitionResult
	topK := c.Config.Retrieval.DefaultTopK

	for attempt := 0; attempt < maxDeliberations; attempt++ {
		var cluster string
		if c.Router != nil {
			if clusters, err := c.Router.Route(ctx, currentQuery, 1); err == nil && len(clusters) > 0 {
				cluster = clusters[0]
			}
		}

		graphDepth := 0
		if attempt == 0 {
			graphDepth = 1
		}

		var retrieved []RetrievedEngram
		if c.Retriever != nil {
			retrieved, _ = c.Retriever.Search(ctx, currentQuery, topK, cluster, graphDepth)
		}

		wm := c.WorkingMem.GetContext()

		prediction := c.Prediction.Predict(currentQuery, engramsOf(retrieved))
		for _, r := range retrieved {
			c.Reconsolidation.OpenWindow(r.Engram.ID, currentQuery)
		}

		result := p.compete(ctx, currentQuery, wm, retrieved)

		domain := inferDomain(currentQuery)
		predErr := c.Prediction.ComputeError(prediction, result.Content, result.Confidence, domain)

		if best == nil || result.Confidence > best.Confidence {
			best = result
		}

		if result.Confidence >= deliberationOkConf && predErr.ErrorMagnitude < deliberationLowError {
			break
		}

		currentQuery = refineQuery(clean, currentQuery, result, predErr, attempt)
	}

	if best == nil {
		best = &CompetitionResult{Content: "", Confidence: 0, Path: pathFastHonest}
	}

	for _, r := range best.Retrieved {
		mod := c.Reconsolidation.EvaluateAndModify(r.Engram, best.Confidence, 1-best.Confidence)
		if mod != nil {
			_ = c.Store.UpdateMetrics(r.Engram)
		}
	}

	c.WorkingMem.Update(clean, best.Retrieved, 0)

	if best.Confidence < deliberationOkConf {
		c.Impasses.Detect(clean, DetectContext{
			Confidence:     best.Confidence,
			EngramsFound:   len(best.Retrieved),
			GateConfidence: filtered.Confidence,
		})
	}

	successful := best.Confidence > deliberationOkConf
	for _, r := range best.Retrieved {
		r.Engram.UsageCount++
		if successful {
			r.Engram.SuccessfulApplicationCount++
		}
		r.Engram.LastUsed = time.Now()
		_ = c.Store.UpdateMetrics(r.Engram)
	}

	return best.Content, nil
}

func engramsOf(retrieved []RetrievedEngram) []*Engram {
	out := make([]*Engram, len(retrieved))
	for i, r := range retrieved {
		out[i] = r.Engram
	}
	return out
}

// compete runs the fast and symbolic paths in parallel and returns the
// higher-confidence winner (§4.14f).
func (p *DeliberationPipeline) compete(ctx context.Context, query string, wm []string, retrieved []RetrievedEngram) *CompetitionResult {
	c := p.core

	var wg sync.WaitGroup
	var fast, symbolic *CompetitionResult

	wg.Add(1)
	go func() {
		defer wg.Done()
		fast = p.fastPath(ctx, query, wm, retrieved)
	}()

	if looksSymbolic(query) && c.Proof != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			symbolic = p.symbolicPath(ctx, query, retrieved)
		}()
	}

	wg.Wait()

	winner := fast
	if symbolic != nil && symbolic.Confidence > winner.Confidence {
		winner = symbolic
	}
	return winner
}

func (p *DeliberationPipeline) fastPath(ctx context.Context, query string, wm []string, retrieved []RetrievedEngram) *CompetitionResult {
	c := p.core
	risk, safe := CalculateRisk(engramsOf(retrieved))
	if !safe {
		return &CompetitionResult{
			Content:    EnforceHonestResponse(risk, engramsOf(retrieved)),
			Confidence: 0.2,
			Path:       pathFastHonest,
			Retrieved:  retrieved,
		}
	}

	if c.LLM == nil {
		return &CompetitionResult{Content: "", Confidence: 0, Path: pathFast, Retrieved: retrieved}
	}

	context := append([]string{}, wm...)
	for _, r := range retrieved {
		context = append(context, r.Engram.Content)
	}

	answer, _, err := c.LLM.Reason(ctx, query, context)
	if err != nil {
		return &CompetitionResult{
			Content:    EnforceHonestResponse(risk, engramsOf(retrieved)),
			Confidence: 0.2,
			Path:       pathFastHonest,
			Retrieved:  retrieved,
		}
	}

	avgQuality := 0.0
	if len(retrieved) > 0 {
		for _, r := range retrieved {
			avgQuality += r.Engram.QualityScore
		}
		avgQuality /= float64(len(retrieved))
	}

	return &CompetitionResult{
		Content:    answer,
		Confidence: (1 - risk) * avgQuality,
		Path:       pathFast,
		Retrieved:  retrieved,
	}
}

func (p *DeliberationPipeline) symbolicPath(ctx context.Context, query string, retrieved []RetrievedEngram) *CompetitionResult {
	c := p.core
	domain := inferDomain(query)
	result, err := c.Proof.Prove(ctx, query, domain)
	if err != nil || !result.Proven {
		return &CompetitionResult{Content: "", Confidence: 0, Path: pathSymbolicFailed, Retrieved: retrieved}
	}

	e := NewEngram(strings.Join(result.Steps, "\n"), Metadata{Domain: domain, Source: "proof"})
	e.IsAxiomDerived = true
	e.AxiomsUsed = result.AxiomsUsed
	e.ConsistencyScore = 1.0
	e.clampAll()
	if err := c.Store.AddOrUpdate(e); err != nil {
		log.Printf("[cortex] pipeline: store proof-derived engram failed: %v", err)
	}
	if c.Embedder != nil {
		if vec, err := c.Embedder.Embed(ctx, e.Content, "RETRIEVAL_DOCUMENT"); err == nil {
			_ = c.Store.InsertVector(e.ID, vec)
		}
	}

	return &CompetitionResult{
		Content:    e.Content,
		Confidence: result.Confidence,
		Path:       pathSymbolic,
		Retrieved:  append(retrieved, RetrievedEngram{Engram: e, RerankScore: 10}),
	}
}

// refineQuery implements the §4.14j refinement strategy: too few
// retrieved results reverts to the original query, a large prediction
// error appends key tokens (the longest words) from the round's winning
// answer, otherwise the second attempt gets an "Explain: " prefix, and any
// other case reverts to the original query.
func refineQuery(original, current string, result *CompetitionResult, predErr PredictionErrorSignal, attempt int) string {
	switch {
	case len(result.Retrieved) < 2:
		return original
	case predErr.ErrorMagnitude > 0.7:
		tokens := keyTokens(result.Content, 5)
		if len(tokens) == 0 {
			return original
		}
		return current + " " + strings.Join(tokens, " ")
	case attempt == 1:
		return "Explain: " + original
	default:
		return original
	}
}

func keyTokens(content string, n int) []string {
	words := strings.Fields(content)
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	if len(words) > n {
		words = words[:n]
	}
	return words
}
