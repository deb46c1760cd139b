// Package engine is the facade over the memory pipeline: detection,
// embedding, deduplication, storage, background relationship analysis and
// retrieval.
//
// CreateOrMerge runs the synchronous write path. Detection decides whether
// the text is worth keeping; embedding and hashing run fail-open, so a
// broken provider degrades dedup instead of losing the memory; the dedup
// decision is applied against the store; and a relationship-analysis task
// is queued for the background scheduler. Retrieve delegates to the ranked
// retrieval engine. Background failures never surface through either call.
//
//	eng := engine.New(store, engine.Config{Embedder: provider})
//	eng.Start(ctx)
//	defer eng.Stop()
//
//	res, err := eng.CreateOrMerge(ctx, ownerID, "I prefer morning workouts", nil)
//	memories, err := eng.Retrieve(ctx, ownerID, "when should we schedule the session", nil)
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/smallnest/memograph/dedup"
	"github.com/smallnest/memograph/detect"
	"github.com/smallnest/memograph/embedding"
	"github.com/smallnest/memograph/log"
	"github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/queue"
	"github.com/smallnest/memograph/relationship"
	"github.com/smallnest/memograph/retrieval"
	"github.com/smallnest/memograph/store"
)

// Action is the outcome of a CreateOrMerge call.
type Action string

const (
	// ActionIgnored means detection decided the text is not worth keeping.
	ActionIgnored Action = "ignored"
	ActionCreated Action = "created"
	ActionMerged  Action = "merged"
	ActionSkipped Action = "skipped"
)

// Result reports what CreateOrMerge did.
type Result struct {
	Action   Action
	MemoryID string
	Category memory.Category
	// Conflicts lists merge conflicts flagged for review.
	Conflicts []*memory.DedupConflict
}

// Config assembles the pipeline. Only the store is mandatory; every nil or
// zero field falls back to a sensible default, and a nil Embedder runs the
// engine in degraded lexical-only mode.
type Config struct {
	// Analyzer is the detection provider, usually an LLM. Nil means
	// heuristic-only detection.
	Analyzer detect.Analyzer
	// Embedder is the embedding provider. Nil disables vector similarity.
	Embedder embedding.Embedder

	Detect     detect.Config
	Cache      embedding.CacheConfig
	Dedup      dedup.Config
	Retrieval  retrieval.Config
	Scheduler  queue.SchedulerConfig
	Classifier relationship.ClassifierConfig
	Logger     log.Logger
}

// Engine wires the pipeline components together.
type Engine struct {
	store         store.Store
	detector      *detect.Detector
	embedder      *embedding.Cache
	dedup         *dedup.Engine
	relationships *relationship.Engine
	scheduler     *queue.Scheduler
	retrieval     *retrieval.Engine
	logger        log.Logger
}

// New assembles an engine on top of the given store.
func New(s store.Store, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Detect.Logger == nil {
		cfg.Detect.Logger = cfg.Logger
	}
	if cfg.Dedup.Logger == nil {
		cfg.Dedup.Logger = cfg.Logger
	}
	if cfg.Retrieval.Logger == nil {
		cfg.Retrieval.Logger = cfg.Logger
	}
	if cfg.Scheduler.Logger == nil {
		cfg.Scheduler.Logger = cfg.Logger
	}
	if cfg.Cache.MaxEntries == 0 && cfg.Cache.TTL == 0 {
		cfg.Cache = embedding.DefaultCacheConfig()
	}
	if cfg.Classifier == (relationship.ClassifierConfig{}) {
		cfg.Classifier = relationship.DefaultClassifierConfig()
	}

	var embedCache *embedding.Cache
	if cfg.Embedder != nil {
		embedCache = embedding.NewCache(cfg.Embedder, cfg.Cache)
	}

	e := &Engine{
		store:    s,
		detector: detect.NewDetector(cfg.Analyzer, cfg.Detect),
		embedder: embedCache,
		dedup:    dedup.New(s, cfg.Dedup),
		relationships: relationship.NewEngine(s,
			relationship.WithClassifierConfig(cfg.Classifier),
			relationship.WithLogger(cfg.Logger)),
		scheduler: queue.NewScheduler(cfg.Scheduler),
		retrieval: retrieval.New(s, embedCache, cfg.Retrieval),
		logger:    cfg.Logger,
	}
	e.scheduler.RegisterHandler(queue.KindRelationshipAnalysis, e.handleRelationshipAnalysis)
	e.scheduler.RegisterHandler(queue.KindFactExtraction, e.handleFactExtraction)
	return e
}

// Start launches the background scheduler.
func (e *Engine) Start(ctx context.Context) {
	e.scheduler.Start(ctx)
}

// Stop shuts the background scheduler down, waiting for the in-flight
// batch.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// CreateOrMerge runs a piece of conversation text through the write path:
// detect, embed (fail open), dedup, store, and queue relationship analysis.
func (e *Engine) CreateOrMerge(ctx context.Context, ownerID, text string, convContext []string) (*Result, error) {
	if ownerID == "" {
		return nil, &memory.ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}

	decision := e.detector.Detect(ctx, text, convContext)
	if !decision.ShouldRemember {
		return &Result{Action: ActionIgnored}, nil
	}

	candidate := memory.NewEntry(ownerID, text, decision.Category)
	candidate.ImportanceScore = decision.Importance
	candidate.Keywords = decision.Keywords
	candidate.SemanticHash = embedding.SemanticHash(text)

	if e.embedder != nil {
		vec, hash, err := e.embedder.Embed(ctx, ownerID, text)
		if err != nil {
			// Fail open: keep the memory, skip vector dedup.
			e.logger.Warn("engine: embed for %s: %v", ownerID, err)
		} else {
			candidate.Embedding = vec
			candidate.SemanticHash = hash
		}
	}

	res, err := e.dedup.Resolve(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("resolve memory: %w", err)
	}

	result := &Result{
		MemoryID:  res.Memory.ID,
		Category:  res.Memory.Category,
		Conflicts: res.Conflicts,
	}
	switch res.Action {
	case dedup.ActionSkip:
		result.Action = ActionSkipped
		return result, nil
	case dedup.ActionMerge:
		result.Action = ActionMerged
	default:
		result.Action = ActionCreated
	}

	e.enqueueAnalysis(res.Memory, len(res.Conflicts) > 0)
	if res.Action == dedup.ActionCreate {
		e.enqueueFactExtraction(res.Memory)
	}
	e.retrieval.Invalidate(ownerID)
	return result, nil
}

// Retrieve returns the owner's memories ranked against the conversation
// context.
func (e *Engine) Retrieve(ctx context.Context, ownerID, convContext string, keywords []string) (*retrieval.Response, error) {
	return e.retrieval.Retrieve(ctx, retrieval.Query{
		OwnerID:  ownerID,
		Text:     convContext,
		Keywords: keywords,
	})
}

// ProcessBackground drains one batch of queued background work. The tick
// loop does this on its own once Start is called; callers that need
// deterministic completion (tests, batch imports) can drive it directly.
func (e *Engine) ProcessBackground(ctx context.Context) {
	e.scheduler.ProcessBatch(ctx)
}

// Graph loads the owner's relationship graph.
func (e *Engine) Graph(ctx context.Context, ownerID string) (*relationship.Graph, error) {
	return relationship.LoadGraph(ctx, e.store, ownerID)
}

// Metrics returns the background scheduler counters.
func (e *Engine) Metrics() queue.Metrics {
	return e.scheduler.Metrics()
}

// enqueueAnalysis queues relationship analysis for a written memory.
// Contradiction-suspect writes jump the queue. Queue overflow is logged,
// never surfaced.
func (e *Engine) enqueueAnalysis(entry *memory.Entry, conflictSuspect bool) {
	priority := queue.PriorityMedium
	if conflictSuspect {
		priority = queue.PriorityHigh
	}
	task := queue.NewTask(queue.KindRelationshipAnalysis, entry.OwnerID, entry.ID, priority)
	if err := e.scheduler.Enqueue(task); err != nil {
		e.logger.Warn("engine: queue analysis for %s: %v", entry.ID, err)
	}
}

// enqueueFactExtraction queues fact decomposition for a newly created
// memory.
func (e *Engine) enqueueFactExtraction(entry *memory.Entry) {
	task := queue.NewTask(queue.KindFactExtraction, entry.OwnerID, entry.ID, queue.PriorityLow)
	if err := e.scheduler.Enqueue(task); err != nil {
		e.logger.Warn("engine: queue fact extraction for %s: %v", entry.ID, err)
	}
}

// handleRelationshipAnalysis is the queue handler that links a memory to
// its neighbors.
func (e *Engine) handleRelationshipAnalysis(ctx context.Context, task *queue.Task) error {
	_, err := e.relationships.AnalyzeMemory(ctx, task.OwnerID, task.MemoryID)
	return err
}

// handleFactExtraction records the memory's content as an atomic fact typed
// after its category. Idempotent: an already extracted memory is left
// alone.
func (e *Engine) handleFactExtraction(ctx context.Context, task *queue.Task) error {
	entry, err := e.store.GetEntry(ctx, task.OwnerID, task.MemoryID)
	if err != nil {
		return fmt.Errorf("load memory %s: %w", task.MemoryID, err)
	}
	existing, err := e.store.ListFacts(ctx, task.OwnerID, entry.ID)
	if err != nil {
		return fmt.Errorf("list facts: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	fact := &memory.Fact{
		ID:         uuid.NewString(),
		MemoryID:   entry.ID,
		Type:       factType(entry),
		Statement:  entry.Content,
		Confidence: entry.ImportanceScore,
	}
	if err := e.store.PutFact(ctx, task.OwnerID, fact); err != nil {
		return fmt.Errorf("store fact: %w", err)
	}
	return nil
}

var goalPhrases = []string{"i want to", "i plan to", "my goal", "i am going to", "i'm going to"}

func factType(entry *memory.Entry) memory.FactType {
	switch entry.Category {
	case memory.CategoryPreference:
		return memory.FactPreference
	case memory.CategoryPersonalInfo:
		return memory.FactAttribute
	case memory.CategoryInstruction:
		return memory.FactBehavior
	default:
		content := strings.ToLower(entry.Content)
		for _, phrase := range goalPhrases {
			if strings.Contains(content, phrase) {
				return memory.FactGoal
			}
		}
		return memory.FactBehavior
	}
}
