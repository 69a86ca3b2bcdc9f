// types.go - core struct definitions: Engine, Pipeline handle, Query,
// Iterator, Bulk, layered over in-memory Stores and compiled Plans.

package aggo

import "time"

// Engine owns a set of named Stores and the shared compilation caches
// (expression cache, singleflight group) every Store's pipelines reuse.
type Engine struct {
	cfg      EngineConfig
	stores   map[string]*Store
	compiler *ExprCompiler
	diag     *Diagnostics
	nowFn    func() time.Time
}

// Collection is a named, engine-registered handle onto one Store.
type Collection struct {
	engine *Engine
	name   string
	store  *Store
}

// PipelineHandle is a compiled pipeline bound to one collection: Plan and
// Explain are pure (they never mutate or, in Explain's case, execute),
// Run drives the tiered executors, and OpenIVM opens a live incremental
// handle over the same compiled Plan.
type PipelineHandle struct {
	coll  *Collection
	plan  *Plan
	stages []Stage
}

// Query is a fluent convenience builder translating Sort/Limit/Skip/Match
// calls into an equivalent aggregation pipeline.
type Query struct {
	coll       *Collection
	filter     Value
	sortKeys   []SortKey
	skipN      int64
	limitN     int64
	projection Value
	hasLimit   bool
	hasSkip    bool
	hasProj    bool
}

// Iterator walks a materialized result set one document at a time.
type Iterator struct {
	docs []Document
	pos  int
	err  error
}

// Bulk accumulates ordered or unordered mutation operations against one
// collection's Store, aggregating per-operation failures.
type Bulk struct {
	coll      *Collection
	ordered   bool
	inserts   []Document
	removePKs []Value
	opcount   int
}
