// Package semcache is the cache façade (C14): it orchestrates
// vectorization, sharded candidate search, the decision engine,
// hierarchical storage, and the predictive prefetcher behind a single
// synchronous API, adapted from the host application's semantic-cache
// wrapper shape (atomic counters, a thin Config, a Stats snapshot) to this
// core's richer multi-tier, multi-component pipeline.
package semcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/config"
	"github.com/blueberrycongee/semcache/internal/decision"
	"github.com/blueberrycongee/semcache/internal/ensemble"
	"github.com/blueberrycongee/semcache/internal/metrics"
	"github.com/blueberrycongee/semcache/internal/observability"
	"github.com/blueberrycongee/semcache/internal/prefetch"
	"github.com/blueberrycongee/semcache/internal/semvector"
	"github.com/blueberrycongee/semcache/internal/shard"
	"github.com/blueberrycongee/semcache/internal/storage"
	"github.com/blueberrycongee/semcache/internal/storage/redisbackend"
	"github.com/blueberrycongee/semcache/internal/threshold"
	"github.com/blueberrycongee/semcache/pkg/embedtable"
	"github.com/blueberrycongee/semcache/pkg/semcache/snapshot"
)

// Producer is the external, opaque image-generation backend (§4.8
// "Generation producer"). The façade never implements generation itself;
// it calls Producer only when the decision is diff or new.
type Producer interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationRequest carries everything the spec says the producer may
// need: the prompt, an optional diff strength for seeded regeneration, an
// optional base item to seed from, and optional reference images.
type GenerationRequest struct {
	Prompt          string
	DiffStrength    float64
	BaseItem        *cachemodel.CacheItem
	ReferenceImages [][]byte
}

// GenerationResult is what the producer hands back for the façade to wrap
// in a new CacheItem.
type GenerationResult struct {
	ImageBytes []byte
	Params     map[string]any
	Width      int
	Height     int
	Format     string
	Difficulty float64 // cost to have produced this from scratch, in [0,1]
}

// Options wires every collaborator the façade needs. Table and Producer
// are required; everything else falls back to a sensible default so a
// minimal deployment only has to supply those two.
type Options struct {
	Config   config.Config
	Table    embedtable.Table
	Producer Producer
	Logger   *observability.Logger

	// S3Snapshot, when set, makes New build an S3 snapshot store for the
	// named bucket/key and fail if it cannot. Cache has no method that
	// saves a snapshot to that store or restores one from it.
	S3Snapshot *snapshot.S3Config
}

// Cache is the top-level entry point (C14).
type Cache struct {
	cfg    config.Config
	table  embedtable.Table
	vec    *semvector.Engine
	store  *storage.Store
	shards *shard.Manager
	engine *decision.Engine
	pre    *prefetch.Prefetcher
	prod   Producer
	log    *observability.Logger

	tracerProvider *observability.TracerProvider
	tracer         trace.Tracer
	s3             *snapshot.S3Store

	relationOpts semvector.RelationOptions

	hits    atomic.Int64
	diffs   atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
	lookups atomic.Int64

	latencySum   atomic.Int64 // nanoseconds, for health()'s avg latency
	latencyCount atomic.Int64
}

// New builds a Cache from opts. Table and Producer are required.
func New(opts Options) (*Cache, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("semcache: embedding table is required")
	}
	if opts.Producer == nil {
		return nil, fmt.Errorf("semcache: a generation producer is required")
	}
	cfg := opts.Config
	if cfg.Thresholds.HitCut == 0 {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Noop()
	}

	relationOpts := semvector.DefaultRelationOptions()
	vec := semvector.NewEngine(opts.Table, relationOpts)

	var coldOverflow storage.ColdOverflow
	if cfg.ColdOverflow.Enable {
		rb, err := redisbackend.New(redisbackend.Config{
			Addr:         cfg.ColdOverflow.Addr,
			Password:     cfg.ColdOverflow.Password,
			DB:           cfg.ColdOverflow.DB,
			Namespace:    cfg.ColdOverflow.Namespace,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("semcache: cold overflow: %w", err)
		}
		coldOverflow = rb
	}

	store := storage.New(storage.Options{
		Capacities:          storageCapacities(cfg),
		EvictionWeights:     storage.DefaultEvictionWeights(),
		PromotionThreshold:  cfg.Promotion.Threshold,
		MemoryLimitFraction: cfg.MemoryLimit,
		ColdOverflow:        coldOverflow,
	})

	shardMgr := shard.New(shard.Options{NumShards: cfg.Storage.NumShards})

	em := ensemble.NewModel(ensemble.DefaultParameters()).
		WithLearningRate(cfg.Ensemble.LearningRate).
		WithBatchSize(cfg.Ensemble.BatchSize)

	th := threshold.NewAdapter(threshold.Pair{HitCut: cfg.Thresholds.HitCut, DiffCut: cfg.Thresholds.DiffCut})

	engine := decision.NewEngine(em, th, cfg.Decision.UncertaintyThreshold)

	tp, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:     cfg.Tracing.Enable,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("semcache: init tracing: %w", err)
	}

	var s3store *snapshot.S3Store
	if opts.S3Snapshot != nil {
		s3store, err = snapshot.NewS3Store(context.Background(), *opts.S3Snapshot)
		if err != nil {
			return nil, fmt.Errorf("semcache: s3 snapshot: %w", err)
		}
	}

	return &Cache{
		cfg:            cfg,
		table:          opts.Table,
		vec:            vec,
		store:          store,
		shards:         shardMgr,
		engine:         engine,
		pre:            prefetch.New(),
		prod:           opts.Producer,
		log:            logger,
		tracerProvider: tp,
		tracer:         tp.Tracer(),
		s3:             s3store,
		relationOpts:   relationOpts,
	}, nil
}

// Shutdown drains the trace exporter, when one is running. Safe to call on
// a Cache built with tracing disabled.
func (c *Cache) Shutdown(ctx context.Context) error {
	return c.tracerProvider.Shutdown(ctx)
}

func storageCapacities(cfg config.Config) map[cachemodel.Tier]int64 {
	out := make(map[cachemodel.Tier]int64, 4)
	for name, bytes := range cfg.Storage.LevelCapacities {
		out[cachemodel.Tier(name)] = bytes
	}
	return out
}

// Request is the primary entry point: vectorize prompt, search the shard
// index for candidates, run the decision engine, and — on diff/new —
// call the producer and insert the result (§3, "data flow for one
// request"). ctxFP is used only for prefetch scoring. images carries the
// caller's optional reference images (§1), forwarded to the producer
// verbatim when generation is needed; it is nil for a plain hit.
func (c *Cache) Request(ctx context.Context, prompt string, ctxFP cachemodel.ContextFingerprint, images [][]byte) (*Result, error) {
	start := time.Now()
	defer c.recordLatency(start)

	ctx, span := observability.StartDecisionSpan(ctx, c.tracer, "semcache.decide")
	defer span.End()

	query := c.vec.Vectorize(prompt)
	candidates := c.candidatesFor(query)

	decideStart := time.Now()
	dec := c.engine.Decide(query, candidates)
	metrics.DecisionLatencySeconds.Observe(time.Since(decideStart).Seconds())
	observability.RecordDecision(span, string(dec.Action), dec.Similarity, dec.Uncertainty)
	metrics.DecisionsTotal.WithLabelValues(string(dec.Action)).Inc()

	switch dec.Action {
	case decision.Hit:
		c.hits.Add(1)
		c.afterAccess(dec.MatchedItem, ctxFP)
		return &Result{Decision: dec, Item: dec.MatchedItem}, nil
	case decision.Diff:
		c.diffs.Add(1)
		return c.generateAndInsert(ctx, prompt, dec, query, dec.MatchedItem, images)
	default:
		c.misses.Add(1)
		return c.generateAndInsert(ctx, prompt, dec, query, nil, images)
	}
}

func (c *Cache) generateAndInsert(ctx context.Context, prompt string, dec decision.Decision, query *semvector.MultiLayerVector, base *cachemodel.CacheItem, images [][]byte) (*Result, error) {
	genReq := GenerationRequest{Prompt: prompt, DiffStrength: dec.DiffStrength, BaseItem: base, ReferenceImages: images}
	gen, err := c.prod.Generate(ctx, genReq)
	if err != nil {
		c.errors.Add(1)
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			observability.RecordError(span, err)
		}
		return nil, err
	}

	item := cachemodel.NewCacheItem(query, gen.ImageBytes, cachemodel.Metadata{
		OriginalPrompt:   prompt,
		GenerationParams: gen.Params,
		SizeBytes:        len(gen.ImageBytes),
		Format:           gen.Format,
		Width:            gen.Width,
		Height:           gen.Height,
	}, gen.Difficulty)

	if err := c.Add(item, ""); err != nil {
		c.errors.Add(1)
		return nil, err
	}
	return &Result{Decision: dec, Item: item}, nil
}

// candidatesFor asks the shard index for the top-10 nearest ids (§5
// "bounding candidate list sizes") and resolves each to its live
// CacheItem via the store, skipping ids the store no longer holds (e.g.
// evicted between shard insert and lookup).
func (c *Cache) candidatesFor(query *semvector.MultiLayerVector) []*cachemodel.CacheItem {
	results := c.shards.Search(query.Layers, shard.SearchOptions{TopK: 10})
	candidates := make([]*cachemodel.CacheItem, 0, len(results))
	for _, r := range results {
		if item, ok := c.store.Lookup(r.ID); ok {
			candidates = append(candidates, item)
		}
	}
	return candidates
}

func (c *Cache) afterAccess(item *cachemodel.CacheItem, ctxFP cachemodel.ContextFingerprint) {
	if item == nil {
		return
	}
	c.pre.Observe(item.ID, ctxFP)
	if c.store.ShouldPromote(item) {
		_ = c.store.Promote(item.ID)
	}
	for _, pred := range c.pre.Predict(item.ID, ctxFP) {
		predicted, ok := c.store.Lookup(pred.ItemID)
		if !ok {
			continue
		}
		// Promote moves one tier per call; cold reaches L1 in three.
		for i := 0; i < 3 && predicted.Tier != cachemodel.L1; i++ {
			if err := c.store.Promote(predicted.ID); err != nil {
				break
			}
		}
	}
}

func (c *Cache) recordLatency(start time.Time) {
	c.latencySum.Add(int64(time.Since(start)))
	c.latencyCount.Add(1)
}

// Result is what Request returns to the host: the decision and the matched
// or newly inserted item. Request does not fill in Tier or Shard.
type Result struct {
	Decision decision.Decision
	Item     *cachemodel.CacheItem
	Tier     cachemodel.Tier
	Shard    int
}

// Add places item into the cache directly (§4.10 "add"), used when the
// host already has a generated artifact (e.g. from generateAndInsert, or
// a host-driven warm load) rather than going through Request. tier, when
// empty, is derived from the placement rule (§4.7).
func (c *Cache) Add(item *cachemodel.CacheItem, tier cachemodel.Tier) error {
	if err := c.store.Add(item, tier); err != nil {
		return err
	}
	c.shards.Insert(item.ID, item.Vector.Layers)
	return nil
}

// Get looks up id directly by identity, bypassing vectorization and
// decision-making (§4.10 "get(id, context?)"). Returns false, not an
// error, when id is not present (§4.10 failure semantics).
func (c *Cache) Get(id string, ctxFP cachemodel.ContextFingerprint) (*cachemodel.CacheItem, bool) {
	c.lookups.Add(1)
	item, ok := c.store.Lookup(id)
	if !ok {
		return nil, false
	}
	c.afterAccess(item, ctxFP)
	return item, true
}

// Remove deletes id from its owning tier and the shard index (§4.10).
// Idempotent.
func (c *Cache) Remove(id string) {
	if _, ok := c.store.Remove(id); ok {
		c.shards.Remove(id)
	}
}

// Search delegates to the shard index for a raw top-k similarity query
// (§4.10 "search(query)"), optionally recording the top result as an
// access for prefetch purposes.
func (c *Cache) Search(prompt string, topK int, ctxFP cachemodel.ContextFingerprint, recordAccess bool) []shard.Result {
	query := c.vec.Vectorize(prompt)
	results := c.shards.Search(query.Layers, shard.SearchOptions{TopK: topK})
	if recordAccess && len(results) > 0 {
		if item, ok := c.store.Lookup(results[0].ID); ok {
			c.afterAccess(item, ctxFP)
		}
	}
	return results
}

// PromoteItem moves id one tier up (§4.10).
func (c *Cache) PromoteItem(id string) error {
	return c.store.Promote(id)
}

// OptimizeMemory runs the composite-eviction demotion sweep over every
// over-capacity tier and returns bytes freed (§4.10).
func (c *Cache) OptimizeMemory() int64 {
	return c.store.OptimizeMemory()
}

// ClearCache empties level, or the whole cache when level is the zero
// value, removing items from both storage and the shard index (§9 open
// question, resolved: this genuinely clears rather than no-op).
func (c *Cache) ClearCache(level cachemodel.Tier) int {
	removed := c.store.Clear(level)
	for _, item := range removed {
		c.shards.Remove(item.ID)
	}
	return len(removed)
}
