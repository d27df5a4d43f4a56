package cortex

import (
	"context"
	"log"
	"time"
)

// BridgedProver adapts a ProofProvider + SemanticBridge pair into a
// ProofAttempter: it turns the engram into an axiom-shaped query via the
// bridge before handing off to the proof engine, so AwakeEngine's FOCUSED
// mode never has to know about the vector/logic split (§6).
type BridgedProver struct {
	proof  ProofProvider
	bridge SemanticBridge
}

// NewBridgedProver builds a ProofAttempter from a proof engine and bridge.
func NewBridgedProver(proof ProofProvider, bridge SemanticBridge) *BridgedProver {
	return &BridgedProver{proof: proof, bridge: bridge}
}

// AttemptProof extracts an axiom-shaped query from e and asks the proof
// engine to prove it, returning the axiom ids used on success.
func (b *BridgedProver) AttemptProof(ctx context.Context, e *Engram) (bool, []string, error) {
	query := e.Content
	domain := e.Metadata.Domain
	if b.bridge != nil {
		if axiom, err := b.bridge.EngramToAxiom(ctx, e); err == nil && axiom.Formula != "" {
			query = axiom.Formula
			if domain == "" {
				domain = axiom.Domain
			}
		}
	}

	result, err := b.proof.Prove(ctx, query, domain)
	if err != nil {
		return false, nil, err
	}
	return result.Proven, result.AxiomsUsed, nil
}

// Core is the cognitive scheduling core's aggregate handle: every
// component wired together, replacing the teacher's package-singleton
// convention with an explicit struct the caller constructs and owns
// (Design Notes §9).
type Core struct {
	Config Config

	Store           *Store
	Market          *Market
	Drive           *SeekingDrive
	Heartbeat       *Heartbeat
	Rhythms         *RhythmRegistry
	Awake           *AwakeEngine
	Gate            *TranslatorGate
	Prediction      *PredictionEngine
	Impasses        *ImpasseDetector
	Reconsolidation *ReconsolidationEngine
	WorkingMem      *WorkingMemory
	Retriever       Retriever
	LLM             LLMProvider
	Embedder        EmbeddingProvider
	Router          Router
	Bridge          SemanticBridge
	Proof           ProofProvider

	pipeline *DeliberationPipeline
}

// NewCore wires a full Core from a Config and the given collaborators.
// Any collaborator may be nil; components degrade gracefully (AwakeEngine
// without a Refiner simply never refines, etc.) the same way the teacher's
// Engram tolerates a nil ReflectionProvider.
func NewCore(cfg Config, llm LLMProvider, embedder EmbeddingProvider, router Router, bridge SemanticBridge, proof ProofProvider) (*Core, error) {
	cfg.ApplyDefaults()

	store, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	drive := NewSeekingDrive()
	market := NewMarket(drive)
	awake := NewAwakeEngine(store, cfg)
	awake.SetMarket(market)
	if llm != nil {
		awake.SetRefiner(llm)
	}
	if proof != nil {
		awake.SetProver(NewBridgedProver(proof, bridge))
	}

	heartbeat := NewHeartbeat(market, store)
	heartbeat.SetAwakeEngine(awake)

	var gate *TranslatorGate
	if llm != nil {
		gate = NewTranslatorGate(llm, cfg.Gate.NumTranslators, cfg.Gate.MinAgreement)
		heartbeat.SetTranslatorGate(gate)
	}

	retriever := NewStoreRetriever(store, embedder, router)

	c := &Core{
		Config:          cfg,
		Store:           store,
		Market:          market,
		Drive:           drive,
		Heartbeat:       heartbeat,
		Rhythms:         NewRhythmRegistry(),
		Awake:           awake,
		Gate:            gate,
		Prediction:      NewPredictionEngine(),
		Impasses:        NewImpasseDetector(),
		Reconsolidation: NewReconsolidationEngine(time.Duration(cfg.Reconsolidation.WindowSeconds) * time.Second),
		WorkingMem:      NewWorkingMemory(cfg.WorkingMemory.Capacity),
		Retriever:       retriever,
		LLM:             llm,
		Embedder:        embedder,
		Router:          router,
		Bridge:          bridge,
		Proof:           proof,
	}
	c.pipeline = NewDeliberationPipeline(c)
	log.Printf("[cortex] core initialized (db=%s, working_memory=%d)", cfg.DBPath, cfg.WorkingMemory.Capacity)
	return c, nil
}

// Start begins every background loop: the Heartbeat's 1Hz tick, the
// AwakeEngine's variable-rate cycle, and the named rhythms.
func (c *Core) Start(ctx context.Context) {
	c.Heartbeat.Start(ctx)
	c.Awake.Start(ctx)
	c.Rhythms.Start(ctx, "consolidation", func(ctx context.Context) error {
		c.Reconsolidation.CloseExpiredWindows()
		return nil
	})
	c.Rhythms.Start(ctx, "dreaming", func(ctx context.Context) error {
		_, err := c.Store.PruneOrphans(0.3)
		return err
	})
}

// Stop halts every background loop.
func (c *Core) Stop() {
	c.Heartbeat.Stop()
	c.Awake.Stop()
	c.Rhythms.Stop("consolidation")
	c.Rhythms.Stop("dreaming")
}

// Close releases the store's database handle. Call after Stop.
func (c *Core) Close() error {
	return c.Store.Close()
}

// ProcessQuery is the public process_query operation (§6): runs a raw
// query through the full deliberation pipeline and returns the response
// text.
func (c *Core) ProcessQuery(ctx context.Context, rawQuery string) (string, error) {
	return c.pipeline.Process(ctx, rawQuery)
}

// Ingest stores new content as an engram, embedding it if an
// EmbeddingProvider is wired.
func (c *Core) Ingest(ctx context.Context, content string, meta Metadata) (*Engram, error) {
	e := NewEngram(content, meta)
	if err := c.Store.AddOrUpdate(e); err != nil {
		return nil, err
	}
	if c.Embedder != nil {
		vec, err := c.Embedder.Embed(ctx, content, "RETRIEVAL_DOCUMENT")
		if err != nil {
			log.Printf("[cortex] ingest: embed failed, storing engram #%d without vector: %v", e.ID, err)
		} else {
			_ = c.Store.InsertVector(e.ID, vec)
		}
	}
	return e, nil
}

// UserFeedbackHelpful records that a recalled engram served the user well,
// priming it in working memory and strengthening it via reconsolidation.
func (c *Core) UserFeedbackHelpful(engramID int64) error {
	c.WorkingMem.Prime(engramID)
	e, found, err := c.Store.Get(engramID)
	if err != nil || !found {
		return err
	}
	c.Reconsolidation.OpenWindow(engramID, "user_feedback")
	c.Reconsolidation.EvaluateAndModify(e, 0.9, 0.1)
	e.IntegrityScore += 0.05
	return c.Store.UpdateMetrics(e)
}

// UserFeedbackWrong records that a recalled engram misled the user,
// weakening it via reconsolidation.
func (c *Core) UserFeedbackWrong(engramID int64) error {
	e, found, err := c.Store.Get(engramID)
	if err != nil || !found {
		return err
	}
	c.Reconsolidation.OpenWindow(engramID, "user_feedback")
	c.Reconsolidation.EvaluateAndModify(e, 0.1, 0.9)
	e.IntegrityScore -= 0.25
	return c.Store.UpdateMetrics(e)
}

// SetSalience overrides an engram's salience directly, clamped to
// [0.5, 2.0].
func (c *Core) SetSalience(engramID int64, salience float64) error {
	e, found, err := c.Store.Get(engramID)
	if err != nil || !found {
		return err
	}
	e.Salience = salience
	e.clampAll()
	return c.Store.UpdateMetrics(e)
}

// GetBrainStatus aggregates every component's status for the brain_status
// tool (§6).
func (c *Core) GetBrainStatus() map[string]any {
	status := map[string]any{
		"heartbeat":       c.Heartbeat.Health(),
		"awake_engine":    c.Awake.GetStatus(),
		"rhythms":         c.Rhythms.Status(),
		"market":          c.Market.GetStatus(),
		"seeking_drive":   c.Drive.GetStatus(),
		"prediction":      c.Prediction.GetStats(),
		"impasses":        c.Impasses.GetStats(),
		"reconsolidation": c.Reconsolidation.GetStats(),
		"working_memory":  c.WorkingMem.GetStatus(),
	}
	if sr, ok := c.Retriever.(*StoreRetriever); ok {
		searches, candidates := sr.Stats()
		status["retrieval"] = map[string]any{
			"searches_total":          searches,
			"candidates_scored_total": candidates,
		}
	}
	return status
}
