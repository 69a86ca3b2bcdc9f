// engine.go - Engine: owns a set of named Stores plus the compilation
// caches shared across all of them, and exposes compile/explain/aggregate/
// open_ivm as the library's external surface. An Engine registers
// in-memory Stores directly and hands out collection handles over a
// shared compiler cache; there is no remote connection to dial.

package aggo

import "time"

// NewEngine creates an empty Engine using cfg for tier thresholds and
// cache sizes. A zero EngineConfig is not valid; callers that don't need
// to tune anything should pass DefaultConfig().
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		cfg:      cfg,
		stores:   make(map[string]*Store),
		compiler: NewExprCompiler(cfg.ExprCacheSize),
		diag:     NewDiagnostics(cfg.DebugEngine),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the engine's time source; $NOW and IVM snapshots use
// it instead of the wall clock. Intended for deterministic tests.
func (e *Engine) SetClock(nowFn func() time.Time) { e.nowFn = nowFn }

// Diagnostics returns the engine's shared diagnostics sink.
func (e *Engine) Diagnostics() *Diagnostics { return e.diag }

// C returns the named collection, creating its backing Store (with "_id"
// as the primary-key field) on first use.
func (e *Engine) C(name string) *Collection {
	store, ok := e.stores[name]
	if !ok {
		store = NewStore(name, "_id")
		e.stores[name] = store
	}
	return &Collection{engine: e, name: name, store: store}
}

// Store exposes the collection's backing document store directly, for
// callers that want to bulk-load without going through Insert/Bulk.
func (c *Collection) Store() *Store { return c.store }

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Insert adds doc to the collection and returns its assigned row id.
func (c *Collection) Insert(doc Document) RowId { return c.store.Insert(doc) }

// InsertBulk adds every document in docs and returns their assigned ids.
func (c *Collection) InsertBulk(docs []Document) []RowId { return c.store.InsertBulk(docs) }

// RemoveByPK removes the document whose primary key equals pk.
func (c *Collection) RemoveByPK(pk Value) (RowId, bool) { return c.store.RemoveByPK(pk) }

// Count returns the number of currently live documents.
func (c *Collection) Count() int { return c.store.Count() }

// Find begins a fluent Query over this collection's documents, equivalent
// to an aggregation pipeline with a single $match stage.
func (c *Collection) Find(filter Value) *Query {
	return &Query{coll: c, filter: filter}
}

// Pipe compiles stages into a reusable PipelineHandle. Compilation is
// pure: it neither executes the pipeline nor mutates the collection.
func (c *Collection) Pipe(stages []Value) (*PipelineHandle, error) {
	parsed, err := ParsePipeline(stages)
	if err != nil {
		return nil, err
	}
	plan, err := CompilePlan(parsed, c.engine.cfg, c.store.Count())
	if err != nil {
		return nil, err
	}
	return &PipelineHandle{coll: c, plan: plan, stages: parsed}, nil
}

// Bulk starts an ordered or unordered batch of mutations.
func (c *Collection) Bulk(ordered bool) *Bulk {
	return &Bulk{coll: c, ordered: ordered}
}

// Plan returns the compiled Plan, one PlanOp per pipeline stage (after
// fusion), each carrying the tier it was assigned and, if downgraded from
// the ideal tier, the reason why.
func (p *PipelineHandle) Plan() *Plan { return p.plan }

// Explain produces a pure plan description; it never executes the
// pipeline.
func (p *PipelineHandle) Explain() []ExplainStep { return explainPlan(p.plan) }

// Run executes the compiled pipeline against the collection's current
// documents and returns the resulting documents in output order. The
// row-id tier is the single dispatch target for full-pipeline execution;
// the columnar tier's kernels are exercised standalone (RunColumnarPrefix,
// ColumnarOp) rather than spliced into this path, since splicing would
// need RunColumnarPrefix to hand back RowIds instead of bare Documents to
// preserve virtual-id parent-chaining into a following fan-out stage.
func (p *PipelineHandle) Run() ([]Document, error) {
	exec := NewRowIDExecutor(p.coll.engine.compiler, p.coll.engine.stores, p.coll.engine.nowFn())
	return exec.Run(p.plan, p.coll.store)
}

// OpenIVM opens a live incremental handle over the compiled pipeline: its
// Snapshot method reflects every mutation made to the collection since
// the handle was opened, recomputing the pipeline's output from the
// store's current live set on each call.
func (p *PipelineHandle) OpenIVM() (*IVMHandle, error) {
	return OpenIVM(p.plan, p.coll.engine.compiler, p.coll.store, p.coll.engine.stores, p.coll.engine.nowFn)
}
