// rowid_kernels.go - the Row-Id hot path: executes a compiled Plan over a
// dense set of (row id, document) bindings. Fan-out operators ($unwind,
// $group) mint virtual ids from their own rowIdSpace so that two operator
// instances in the same plan never collide.
//
// Execution is a straightforward slice-rebuilding interpreter: each
// operator consumes the current binding slice and produces a new one. It
// does not swap buffers in place with a scratch slice, so operators
// allocate as they go.

package aggo

import (
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// xxhashString hashes a group key string into the discriminator a
// fan-out operator's rowIdSpace attaches to its minted virtual ids.
func xxhashString(s string) uint64 { return xxhash.Sum64String(s) }

// rowBinding pairs a row id (physical or virtual) with its current
// effective document as it flows through the operator chain.
type rowBinding struct {
	id  RowId
	doc Document
}

// RowIDExecutor runs a compiled Plan's operators in sequence over an
// initial row set drawn from one or more Stores.
type RowIDExecutor struct {
	compiler *ExprCompiler
	stores   map[string]*Store
	tags     ownerTagAllocator
	now      time.Time
	vars     map[string]Value // "let" bindings for a sub-pipeline $lookup invocation; nil otherwise
}

// NewRowIDExecutor builds an executor bound to the given store registry
// (for $lookup's "from" resolution) and expression compiler.
func NewRowIDExecutor(compiler *ExprCompiler, stores map[string]*Store, now time.Time) *RowIDExecutor {
	return &RowIDExecutor{compiler: compiler, stores: stores, now: now}
}

func (ex *RowIDExecutor) evalCtx() *EvalContext {
	return &EvalContext{Now: ex.now, Vars: ex.vars}
}

// Run executes plan against primary, returning the final documents in
// output order.
func (ex *RowIDExecutor) Run(plan *Plan, primary *Store) ([]Document, error) {
	live := primary.LiveSet()
	rows := make([]rowBinding, 0, live.GetCardinality())
	it := live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		doc, ok := primary.Get(PhysicalRowId(idx))
		if !ok {
			continue
		}
		rows = append(rows, rowBinding{id: PhysicalRowId(idx), doc: doc})
	}

	var err error
	for _, op := range plan.Ops {
		rows, err = ex.runOp(op, rows)
		if err != nil {
			return nil, err
		}
	}
	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = r.doc
	}
	return out, nil
}

func (ex *RowIDExecutor) runOp(op PlanOp, rows []rowBinding) ([]rowBinding, error) {
	if op.Tier == TierCompat {
		return RunCompat(op, ex, rows)
	}
	switch op.Kind {
	case OpMatch:
		return ex.runMatch(op.Stage, rows)
	case OpProject, OpAddFields:
		return ex.runProject(op.Stage, rows)
	case OpGroup:
		return ex.runGroup(op.Stage, rows)
	case OpSort:
		return ex.runSort(op.Stage.SortKeys, rows), nil
	case OpLimit:
		return runLimit(rows, op.Stage.N), nil
	case OpSkip:
		return runSkip(rows, op.Stage.N), nil
	case OpUnwind:
		return ex.runUnwind(op.Stage, rows)
	case OpLookup:
		return ex.runLookup(op.Stage, rows)
	case OpCount:
		return runCount(op.Stage, rows), nil
	case OpTopK:
		return ex.runTopK(op.SortKeys, op.TopKLimit, rows)
	case OpUnwindGroup:
		unwound, err := ex.runUnwind(op.Stage, rows)
		if err != nil {
			return nil, err
		}
		return ex.runGroup(op.Extra, unwound)
	}
	return rows, nil
}

func (ex *RowIDExecutor) runMatch(st Stage, rows []rowBinding) ([]rowBinding, error) {
	ev, err := CompileMatch(ex.compiler, st.MatchExpr)
	if err != nil {
		return nil, err
	}
	ctx := ex.evalCtx()
	out := rows[:0:0]
	for _, r := range rows {
		if ev(ctx, r.doc.Root()).Truthy() {
			out = append(out, r)
		}
	}
	return out, nil
}

type compiledProjectField struct {
	name    string
	ev      Evaluator
	exclude bool
}

func (ex *RowIDExecutor) runProject(st Stage, rows []rowBinding) ([]rowBinding, error) {
	fields := make([]compiledProjectField, len(st.Fields))
	for i, f := range st.Fields {
		if f.Exclude {
			fields[i] = compiledProjectField{name: f.Name, exclude: true}
			continue
		}
		ev, err := ex.compiler.Compile(f.Expr)
		if err != nil {
			return nil, err
		}
		fields[i] = compiledProjectField{name: f.Name, ev: ev}
	}
	ctx := ex.evalCtx()
	out := make([]rowBinding, len(rows))
	for i, r := range rows {
		root := r.doc.Root()
		var next Document
		if st.Kind == StageAddFields {
			next = r.doc
			for _, f := range fields {
				v := f.ev(ctx, root)
				if v.IsMissing() {
					continue
				}
				next = next.WithField(f.name, v)
			}
		} else if st.Inclusive {
			obj := NewObject()
			if !hasExcludeID(fields) {
				if idv := r.doc.Get("_id"); !idv.IsMissing() {
					obj.Set("_id", idv)
				}
			}
			for _, f := range fields {
				if f.exclude {
					continue
				}
				v := f.ev(ctx, root)
				if v.IsMissing() {
					continue
				}
				obj.Set(f.name, v)
			}
			next = NewDocument(obj)
		} else {
			next = r.doc
			for _, f := range fields {
				if f.exclude {
					next = next.WithoutField(f.name)
				}
			}
		}
		out[i] = rowBinding{id: r.id, doc: next}
	}
	return out, nil
}

func hasExcludeID(fields []compiledProjectField) bool {
	for _, f := range fields {
		if f.name == "_id" && f.exclude {
			return true
		}
	}
	return false
}

func runLimit(rows []rowBinding, n int64) []rowBinding {
	if int64(len(rows)) <= n {
		return rows
	}
	return rows[:n]
}

func runSkip(rows []rowBinding, n int64) []rowBinding {
	if int64(len(rows)) <= n {
		return rows[:0]
	}
	return rows[n:]
}

func (ex *RowIDExecutor) runSort(keys []SortKey, rows []rowBinding) []rowBinding {
	out := append([]rowBinding(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, sk := range keys {
			a := out[i].doc.Get(sk.Field)
			b := out[j].doc.Get(sk.Field)
			c := Compare(a, b)
			if !sk.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out
}

func (ex *RowIDExecutor) runTopK(keys []SortKey, k int, rows []rowBinding) ([]rowBinding, error) {
	topk := NewTopK(k, keys)
	for _, r := range rows {
		topk.Add(r.doc, r.id)
	}
	items := topk.Result()
	out := make([]rowBinding, len(items))
	for i, it := range items {
		out[i] = rowBinding{id: it.rowID, doc: it.doc}
	}
	return out, nil
}

func (ex *RowIDExecutor) runUnwind(st Stage, rows []rowBinding) ([]rowBinding, error) {
	space := newRowIdSpace(ex.tags.next())
	var out []rowBinding
	for _, r := range rows {
		v := resolvePath(r.doc.Root(), []string{st.UnwindPath})
		if v.Kind() != KindArray || len(v.AsArray()) == 0 {
			if st.PreserveNullAndEmptyArrays {
				next := r.doc
				if st.IncludeArrayIndex != "" {
					next = next.WithField(st.IncludeArrayIndex, Null())
				}
				if v.Kind() != KindArray {
					// leave scalar/missing/null field untouched, matching
					// MongoDB's behavior of passing non-array values through.
				} else {
					next = next.WithField(st.UnwindPath, Missing())
				}
				out = append(out, rowBinding{id: r.id, doc: next})
			}
			continue
		}
		for idx, elem := range v.AsArray() {
			vid := space.Mint(r.id, uint64(idx))
			next := r.doc.WithField(st.UnwindPath, elem)
			if st.IncludeArrayIndex != "" {
				next = next.WithField(st.IncludeArrayIndex, Int(int64(idx)))
			}
			out = append(out, rowBinding{id: vid, doc: next})
		}
	}
	return out, nil
}

func (ex *RowIDExecutor) runLookup(st Stage, rows []rowBinding) ([]rowBinding, error) {
	if st.LookupSubPipeline {
		return nil, NewEngineError(UnsupportedFeature, "$lookup", "sub-pipeline lookups run only on the compatibility shim")
	}
	foreign, ok := ex.stores[st.LookupFrom]
	if !ok {
		return nil, NewEngineError(InvalidPipeline, "$lookup", "unknown collection %q", st.LookupFrom)
	}
	index := make(map[string][]Document)
	fLive := foreign.LiveSet()
	fit := fLive.Iterator()
	for fit.HasNext() {
		idx := fit.Next()
		doc, ok := foreign.Get(PhysicalRowId(idx))
		if !ok {
			continue
		}
		key := GroupKey(doc.Get(st.LookupForeignField))
		index[key] = append(index[key], doc)
	}
	out := make([]rowBinding, len(rows))
	for i, r := range rows {
		localVal := resolvePath(r.doc.Root(), []string{st.LookupLocalField})
		matches := index[GroupKey(localVal)]
		arr := make([]Value, len(matches))
		for j, m := range matches {
			arr[j] = m.Root()
		}
		out[i] = rowBinding{id: r.id, doc: r.doc.WithField(st.LookupAs, Array(arr...))}
	}
	return out, nil
}

func runCount(st Stage, rows []rowBinding) []rowBinding {
	o := NewObject()
	o.Set(st.CountField, Int(int64(len(rows))))
	return []rowBinding{{id: PhysicalRowId(0), doc: NewDocument(o)}}
}

// groupAccState holds running accumulator state for one group and one
// accumulator field. Every accumulator kind (numeric sum, array push,
// comparable min/max) shares this struct and uses only the fields it
// needs.
type groupAccState struct {
	sum    float64
	sumInt bool
	count  int64
	first  Value
	last   Value
	min    Value
	max    Value
	hasMM  bool
	pushed []Value
	seen   map[string]bool
}

func (ex *RowIDExecutor) runGroup(st Stage, rows []rowBinding) ([]rowBinding, error) {
	idEv, err := ex.compiler.Compile(st.GroupID)
	if err != nil {
		return nil, err
	}
	accEvs := make([]Evaluator, len(st.Accumulators))
	for i, acc := range st.Accumulators {
		if acc.Op == "$count" {
			continue
		}
		ev, err := ex.compiler.Compile(acc.Expr)
		if err != nil {
			return nil, err
		}
		accEvs[i] = ev
	}

	ctx := ex.evalCtx()
	space := newRowIdSpace(ex.tags.next())

	type groupEntry struct {
		key   Value
		id    RowId
		state []*groupAccState
	}
	order := make([]string, 0)
	groups := make(map[string]*groupEntry)

	for _, r := range rows {
		root := r.doc.Root()
		key := idEv(ctx, root)
		gk := GroupKey(key)
		entry, ok := groups[gk]
		if !ok {
			entry = &groupEntry{key: key, id: space.Mint(r.id, xxhashString(gk)), state: make([]*groupAccState, len(st.Accumulators))}
			for i := range entry.state {
				entry.state[i] = &groupAccState{seen: make(map[string]bool)}
			}
			groups[gk] = entry
			order = append(order, gk)
		}
		for i, acc := range st.Accumulators {
			applyAccumulator(entry.state[i], acc.Op, accEvs[i], ctx, root)
		}
	}

	out := make([]rowBinding, 0, len(order))
	for _, gk := range order {
		entry := groups[gk]
		obj := NewObject()
		obj.Set("_id", entry.key)
		for i, acc := range st.Accumulators {
			obj.Set(acc.Field, finalizeAccumulator(entry.state[i], acc.Op))
		}
		out = append(out, rowBinding{id: entry.id, doc: NewDocument(obj)})
	}
	return out, nil
}

func applyAccumulator(s *groupAccState, op string, ev Evaluator, ctx *EvalContext, root Value) {
	switch op {
	case "$count":
		s.count++
		return
	}
	v := ev(ctx, root)
	switch op {
	case "$sum":
		n, ok := v.Numeric()
		if ok {
			s.sum += n
			if v.Kind() == KindFloat {
				s.sumInt = false
			} else if s.count == 0 {
				s.sumInt = true
			}
		}
		s.count++
	case "$avg":
		if n, ok := v.Numeric(); ok {
			s.sum += n
			s.count++
		}
	case "$first":
		if s.count == 0 {
			s.first = v
		}
		s.count++
	case "$last":
		s.last = v
		s.count++
	case "$min":
		if !s.hasMM || Compare(v, s.min) < 0 {
			s.min = v
			s.hasMM = true
		}
	case "$max":
		if !s.hasMM || Compare(v, s.max) > 0 {
			s.max = v
			s.hasMM = true
		}
	case "$push":
		s.pushed = append(s.pushed, v)
	case "$addToSet":
		k := GroupKey(v)
		if !s.seen[k] {
			s.seen[k] = true
			s.pushed = append(s.pushed, v)
		}
	}
}

func finalizeAccumulator(s *groupAccState, op string) Value {
	switch op {
	case "$count":
		return Int(s.count)
	case "$sum":
		if s.sumInt {
			return Int(int64(s.sum))
		}
		return Float(s.sum)
	case "$avg":
		if s.count == 0 {
			return Null()
		}
		return Float(s.sum / float64(s.count))
	case "$first":
		return s.first
	case "$last":
		return s.last
	case "$min":
		if !s.hasMM {
			return Null()
		}
		return s.min
	case "$max":
		if !s.hasMM {
			return Null()
		}
		return s.max
	case "$push", "$addToSet":
		return Array(s.pushed...)
	default:
		return Null()
	}
}
