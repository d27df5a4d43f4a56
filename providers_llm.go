package cortex

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// GeminiLLM is the default LLMProvider and Refiner, backed by the Gemini
// generateContent API. Adapted from the teacher's GeminiReflector HTTP
// call shape, generalized from "produce reflections" to the six-method
// LLMProvider surface the cognitive core needs.
type GeminiLLM struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGeminiLLM creates an LLM provider using the given Gemini model (empty
// defaults to gemini-2.5-flash-lite).
func NewGeminiLLM(apiKey, model string) *GeminiLLM {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	return &GeminiLLM{apiKey: apiKey, model: model, client: &http.Client{Timeout: 30 * time.Second}}
}

func (g *GeminiLLM) generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("no API key")
	}
	url := "https://generativelanguage.googleapis.com/v1beta/models/" + g.model + ":generateContent?key=" + g.apiKey

	reqBody := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": maxTokens,
			"temperature":     temperature,
		},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini generate %d: %s", resp.StatusCode, string(body[:min(len(body), 300)]))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}

// RefineContent rewrites weak or noisy content into something clearer,
// satisfying Refiner for both AwakeEngine's THINKING mode and
// TranslatorGate's consensus ensemble.
func (g *GeminiLLM) RefineContent(ctx context.Context, content string) (string, error) {
	prompt := "Rewrite the following content to be clearer and more precise, preserving its meaning exactly. Reply with ONLY the rewritten text.\n\n" + content
	return g.generate(ctx, prompt, 0.3, 512)
}

// Reason answers a query given retrieved context, returning a confidence
// in [0,1] self-reported by the model.
func (g *GeminiLLM) Reason(ctx context.Context, query string, context []string) (string, float64, error) {
	var b strings.Builder
	b.WriteString("Answer the question using the given context. After the answer, on a new line, write CONFIDENCE: <0.0-1.0>.\n\n")
	b.WriteString("Context:\n")
	for _, c := range context {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nQuestion: " + query)

	raw, err := g.generate(ctx, b.String(), 0.2, 512)
	if err != nil {
		return "", 0, err
	}
	return parseAnswerConfidence(raw)
}

// Compress shortens content for consolidation while preserving meaning.
func (g *GeminiLLM) Compress(ctx context.Context, content string) (string, error) {
	prompt := "Compress the following to its essential meaning in as few words as possible, preserving all facts. Reply with ONLY the compressed text.\n\n" + content
	return g.generate(ctx, prompt, 0.1, 256)
}

// RateSalience asks the model how important a new piece of content is,
// in [0,1].
func (g *GeminiLLM) RateSalience(ctx context.Context, content string) (float64, error) {
	prompt := "Rate how significant or memorable this content is on a scale from 0.0 (trivial) to 1.0 (critical). Reply with ONLY the number.\n\n" + content
	raw, err := g.generate(ctx, prompt, 0.0, 10)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if perr != nil {
		return 0.5, nil
	}
	return clamp01(v), nil
}

// ExpandQuery rewrites an ambiguous or under-specified query, informed by
// prior failed attempts, as part of the deliberation pipeline's refinement
// loop.
func (g *GeminiLLM) ExpandQuery(ctx context.Context, query string, priorAttempts []string) (string, error) {
	var b strings.Builder
	b.WriteString("The following query did not retrieve a confident answer. Rewrite it to be more specific and answerable. Reply with ONLY the rewritten query.\n\n")
	b.WriteString("Original query: " + query + "\n")
	if len(priorAttempts) > 0 {
		b.WriteString("Prior rewrites that also failed:\n")
		for _, a := range priorAttempts {
			b.WriteString("- " + a + "\n")
		}
	}
	return g.generate(ctx, b.String(), 0.5, 128)
}

// ConnectConcepts asks the model to name the relation between two concepts
// and how strongly they relate, in [0,1], for the waypoint/link graph.
func (g *GeminiLLM) ConnectConcepts(ctx context.Context, a, b string) (string, float64, error) {
	prompt := fmt.Sprintf("Name the relationship between these two concepts in one or two words, then on a new line write STRENGTH: <0.0-1.0>.\n\nA: %s\nB: %s", a, b)
	raw, err := g.generate(ctx, prompt, 0.2, 64)
	if err != nil {
		return "", 0, err
	}
	return parseRelationStrength(raw)
}

func parseAnswerConfidence(raw string) (string, float64, error) {
	lines := strings.Split(raw, "\n")
	confidence := 0.5
	var answerLines []string
	for _, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))
		if strings.HasPrefix(upper, "CONFIDENCE:") {
			numStr := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			if v, err := strconv.ParseFloat(numStr, 64); err == nil {
				confidence = clamp01(v)
			}
			continue
		}
		answerLines = append(answerLines, line)
	}
	return strings.TrimSpace(strings.Join(answerLines, "\n")), confidence, nil
}

func parseRelationStrength(raw string) (string, float64, error) {
	lines := strings.Split(raw, "\n")
	strength := 0.5
	var relationLines []string
	for _, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))
		if strings.HasPrefix(upper, "STRENGTH:") {
			numStr := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			if v, err := strconv.ParseFloat(numStr, 64); err == nil {
				strength = clamp01(v)
			}
			continue
		}
		relationLines = append(relationLines, line)
	}
	return strings.TrimSpace(strings.Join(relationLines, " ")), strength, nil
}

// LLMProofProver implements ProofProvider by asking an LLM to propose a
// proof strategy and then self-verify it, with a confidence penalty for
// the lack of a formal verifier — exactly the v1 fallback path of
// reasoning/symbolic_reasoning.py's ReasoningEngine ("LLM proposes and
// self-verifies, no Lean yet"). Results are cached per (query, domain).
type LLMProofProver struct {
	llm LLMProvider

	mu    sync.Mutex
	cache map[string]ProofResult
}

// NewLLMProofProver builds a prover backed by llm.
func NewLLMProofProver(llm LLMProvider) *LLMProofProver {
	return &LLMProofProver{llm: llm, cache: make(map[string]ProofResult)}
}

// Prove attempts to prove query within domain via LLM strategy generation
// and self-verification, confidence-penalized since no formal verifier
// (Lean/Z3) backs it.
func (p *LLMProofProver) Prove(ctx context.Context, query string, domain string) (ProofResult, error) {
	key := proofCacheKey(query, domain)

	p.mu.Lock()
	if cached, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	answer, confidence, err := p.llm.Reason(ctx, query, []string{"domain: " + domain})
	if err != nil {
		return ProofResult{Verifier: "none", Error: err.Error()}, err
	}

	const llmOnlyPenalty = 0.6
	result := ProofResult{
		Proven:     confidence >= 0.5,
		Confidence: confidence * llmOnlyPenalty,
		Verifier:   "llm_self_verify",
		Steps:      []string{answer},
	}
	if !result.Proven {
		result.Error = "llm could not reach confident proof"
	}

	p.mu.Lock()
	p.cache[key] = result
	p.mu.Unlock()
	return result, nil
}

func proofCacheKey(query, domain string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(query)) + "|" + domain))
	return hex.EncodeToString(sum[:])
}

// GeminiSemanticBridge translates engrams to axioms and back via single-
// sample LLM structured extraction, a simplified form of bridge.py's
// multi-sample voting (TranslatorGate already owns the consensus-voting
// pattern for noisy input; the bridge only needs one clean extraction per
// direction since it operates on already-vetted engram content).
type GeminiSemanticBridge struct {
	llm LLMProvider
}

// NewGeminiSemanticBridge builds a bridge backed by llm.
func NewGeminiSemanticBridge(llm LLMProvider) *GeminiSemanticBridge {
	return &GeminiSemanticBridge{llm: llm}
}

// EngramToAxiom extracts a formal proposition from an engram's content.
func (b *GeminiSemanticBridge) EngramToAxiom(ctx context.Context, e *Engram) (*Axiom, error) {
	compressed, err := b.llm.Compress(ctx, e.Content)
	if err != nil {
		return nil, err
	}
	return &Axiom{
		Formula:    compressed,
		Domain:     e.Metadata.Domain,
		Confidence: e.QualityScore * 0.7,
		Version:    1,
		Source:     "derived",
		CreatedAt:  time.Now(),
	}, nil
}

// AxiomToEngram renders an axiom back into natural-language engram content.
func (b *GeminiSemanticBridge) AxiomToEngram(ctx context.Context, a *Axiom) (*Engram, error) {
	e := NewEngram(a.Formula, Metadata{Domain: a.Domain, Source: "axiom:" + a.ID})
	e.IsAxiomDerived = true
	e.AxiomsUsed = []string{a.ID}
	e.QualityScore = a.Confidence
	e.clampAll()
	return e, nil
}
