package cortex

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

const translatorGateCacheMax = 200

// promptVariants are the translation-diversity prompts used to build the
// N-translator ensemble (§4.9). Kept as named functions rather than a
// closure slice so each variant reads as a distinct strategy, matching the
// teacher's one-function-per-concern layout.
var promptVariants = []func(string) string{
	variantConcise,
	variantPrecise,
	variantStructured,
	variantSemantic,
	variantInferential,
	variantDecomposed,
	variantAdversarial,
}

func variantConcise(raw string) string {
	return "Clean and clarify this input. Remove noise, fix grammar, preserve core meaning. Return ONLY the cleaned text, nothing else.\n\nInput: " + raw
}

func variantPrecise(raw string) string {
	return "Parse this input with maximum precision. Extract the core question or statement. Remove ambiguity. Return ONLY the precise, unambiguous version.\n\nInput: " + raw
}

func variantStructured(raw string) string {
	return "Normalize this input into a clear, well-formed statement or question. Ensure it is grammatically correct and unambiguous. Return ONLY the normalized text.\n\nInput: " + raw
}

func variantSemantic(raw string) string {
	return "Identify the core semantic intent of this input. What does the user actually mean? Distill to the essential meaning. Return ONLY the clarified intent as a clean sentence.\n\nInput: " + raw
}

func variantInferential(raw string) string {
	return "Read this input and infer any implied context or assumptions. Rewrite it to be explicit and self-contained, including implicit meaning. Return ONLY the expanded, explicit text.\n\nInput: " + raw
}

func variantDecomposed(raw string) string {
	return "Break this input down to its simplest possible form. If it contains multiple parts, focus on the primary request. Return ONLY the simplified, single-focus version.\n\nInput: " + raw
}

func variantAdversarial(raw string) string {
	return "Assume this input might contain errors, typos, or misleading phrasing. Correct any detectable issues and produce the most charitable interpretation. Return ONLY the corrected text.\n\nInput: " + raw
}

// FilteredInput is the result of running raw input through the
// TranslatorGate.
type FilteredInput struct {
	Content             string
	Original            string
	Confidence          float64
	IsClean             bool
	NeedsClarification  bool
	TruthGuardFlagged   bool
	RiskScore           float64
	NoiseWarning        string
	Translations        []string
	ConsensusAgreement  float64
}

// TranslatorGate is Layer 0 (§4.9): an N-translator ensemble with
// consensus voting and a TruthGuard safety check, filtering noisy or
// adversarial input before it reaches the Engram store or reasoning
// engines. Grounded on reasoning/translator_gate.py, restructured around
// the teacher's classify.go Gemini-call idiom for LLM round-trips and a
// mutex-guarded FIFO cache in place of the original's insertion-order
// dict eviction.
type TranslatorGate struct {
	mu sync.Mutex

	llm            Refiner
	numTranslators int
	minAgreement   float64

	cache     map[string]FilteredInput
	cacheKeys []string

	lastConfidence float64
}

// NewTranslatorGate builds a gate with the given translator count and
// minimum agreement threshold.
func NewTranslatorGate(llm Refiner, numTranslators int, minAgreement float64) *TranslatorGate {
	if numTranslators <= 0 {
		numTranslators = 3
	}
	if minAgreement <= 0 {
		minAgreement = 0.6
	}
	return &TranslatorGate{
		llm:            llm,
		numTranslators: numTranslators,
		minAgreement:   minAgreement,
		cache:          make(map[string]FilteredInput),
		lastConfidence: 1.0,
	}
}

// FilterInput runs the gate pipeline: translate, vote, TruthGuard check.
func (g *TranslatorGate) FilterInput(ctx context.Context, rawInput string) FilteredInput {
	if strings.TrimSpace(rawInput) == "" {
		return FilteredInput{Confidence: 0, NeedsClarification: true, NoiseWarning: "empty input received"}
	}

	key := cacheKey(rawInput)
	g.mu.Lock()
	if cached, ok := g.cache[key]; ok {
		g.lastConfidence = cached.Confidence
		g.mu.Unlock()
		return cached
	}
	g.mu.Unlock()

	translations := g.generateTranslations(ctx, rawInput)
	if len(translations) == 0 {
		result := FilteredInput{Content: rawInput, Original: rawInput, Confidence: 0.3, NoiseWarning: "translation failed - using raw input"}
		g.cacheResult(key, result)
		return result
	}

	consensus, agreement := computeConsensus(translations)

	if agreement < g.minAgreement {
		result := FilteredInput{
			Content:            rawInput,
			Original:           rawInput,
			Confidence:         agreement,
			NeedsClarification: true,
			NoiseWarning:       fmt.Sprintf("low consensus (%.0f%%) - input may be ambiguous", agreement*100),
			Translations:       translations,
			ConsensusAgreement: agreement,
		}
		g.cacheResult(key, result)
		return result
	}

	risk, _ := CalculateRisk([]*Engram{{Content: consensus, QualityScore: 0.5}})

	if risk > 0.6 {
		result := FilteredInput{
			Content:            consensus,
			Original:           rawInput,
			Confidence:         agreement * 0.5,
			TruthGuardFlagged:  true,
			RiskScore:          risk,
			Translations:       translations,
			ConsensusAgreement: agreement,
		}
		g.cacheResult(key, result)
		return result
	}

	result := FilteredInput{
		Content:            consensus,
		Original:           rawInput,
		Confidence:         agreement,
		IsClean:            true,
		RiskScore:          risk,
		Translations:       translations,
		ConsensusAgreement: agreement,
	}
	g.cacheResult(key, result)
	return result
}

func (g *TranslatorGate) generateTranslations(ctx context.Context, rawInput string) []string {
	n := g.numTranslators
	if n > len(promptVariants) {
		n = len(promptVariants)
	}

	var translations []string
	if g.llm != nil {
		for i := 0; i < n; i++ {
			prompt := promptVariants[i](rawInput)
			result, err := g.llm.RefineContent(ctx, prompt)
			if err == nil && strings.TrimSpace(result) != "" {
				translations = append(translations, strings.TrimSpace(result))
			}
		}
	}

	trimmed := strings.TrimSpace(rawInput)
	found := false
	for _, t := range translations {
		if t == trimmed {
			found = true
			break
		}
	}
	if !found {
		translations = append(translations, trimmed)
	}
	return translations
}

// computeConsensus picks the translation with highest average similarity
// to the rest of the ensemble.
func computeConsensus(translations []string) (string, float64) {
	if len(translations) <= 1 {
		if len(translations) == 1 {
			return translations[0], 1.0
		}
		return "", 1.0
	}

	bestIdx := 0
	bestScore := -1.0
	for i, t1 := range translations {
		var sum float64
		for j, t2 := range translations {
			if i != j {
				sum += Jaccard(t1, t2)
			}
		}
		avg := sum / float64(max(len(translations)-1, 1))
		if avg > bestScore {
			bestScore = avg
			bestIdx = i
		}
	}
	return translations[bestIdx], bestScore
}

func (g *TranslatorGate) cacheResult(key string, result FilteredInput) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.cache[key]; !exists {
		if len(g.cacheKeys) >= translatorGateCacheMax {
			oldest := g.cacheKeys[0]
			g.cacheKeys = g.cacheKeys[1:]
			delete(g.cache, oldest)
		}
		g.cacheKeys = append(g.cacheKeys, key)
	}
	g.cache[key] = result
	g.lastConfidence = result.Confidence
}

// CacheSize reports the current FIFO cache occupancy, for Heartbeat
// snapshots.
func (g *TranslatorGate) CacheSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

// LastConfidence returns the confidence of the most recently filtered
// input.
func (g *TranslatorGate) LastConfidence() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastConfidence
}

func cacheKey(raw string) string {
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
