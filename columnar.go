// columnar.go - the Columnar tier: batches of fixed size carrying a
// selection vector and lazily-extracted per-field columns, processed
// through an init/push/flush/close operator contract.
//
// columnView is the Store's lazily-materialized per-field column cache
// referenced by store.go; it is rebuilt from scratch whenever the store
// invalidates it on mutation, since columnar reads always go through a
// point-in-time live snapshot rather than tracking incremental column
// edits.

package aggo

import "time"

// columnView is one field's column, extracted once per store generation:
// the Value at row i (physical index) if the field's value at that row
// was itself non-missing, else a gap recorded in missing.
type columnView struct {
	field   string
	values  map[uint32]Value
	missing map[uint32]bool
}

func buildColumnView(store *Store, field string) *columnView {
	cv := &columnView{field: field, values: make(map[uint32]Value), missing: make(map[uint32]bool)}
	live := store.LiveSet()
	it := live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		doc, ok := store.Get(PhysicalRowId(idx))
		if !ok {
			continue
		}
		v := resolvePath(doc.Root(), []string{field})
		if v.IsMissing() {
			cv.missing[idx] = true
			continue
		}
		cv.values[idx] = v
	}
	return cv
}

// Batch is a fixed-capacity chunk of rows flowing through the columnar
// tier: a selection vector of active row indices (dense Uint32, not
// necessarily contiguous) plus whichever columns downstream operators
// have requested so far.
type Batch struct {
	Selection []uint32
	Columns   map[string][]Value // field -> value per selection slot (index-aligned with Selection)
	RowIDs    []RowId            // physical row id per selection slot
}

// NewBatch allocates an empty batch with room for the configured
// BatchSize rows.
func NewBatch(cap int) *Batch {
	return &Batch{
		Selection: make([]uint32, 0, cap),
		Columns:   make(map[string][]Value),
		RowIDs:    make([]RowId, 0, cap),
	}
}

func (b *Batch) Len() int { return len(b.Selection) }

// ColumnarOp is the init/push/flush/close operator contract. push may
// return zero or more output batches; most operators return exactly one.
type ColumnarOp interface {
	Init(store *Store)
	Push(in *Batch) []*Batch
	Flush() []*Batch
	Close()
}

// columnarSource splits a Store's live set into fixed-size Batches.
type columnarSource struct {
	store     *Store
	batchSize int
}

func newColumnarSource(store *Store, batchSize int) *columnarSource {
	return &columnarSource{store: store, batchSize: batchSize}
}

func (s *columnarSource) Batches() []*Batch {
	live := s.store.LiveSet()
	var batches []*Batch
	cur := NewBatch(s.batchSize)
	it := live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		cur.Selection = append(cur.Selection, idx)
		cur.RowIDs = append(cur.RowIDs, PhysicalRowId(idx))
		if len(cur.Selection) == s.batchSize {
			batches = append(batches, cur)
			cur = NewBatch(s.batchSize)
		}
	}
	if len(cur.Selection) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// columnarMatchOp evaluates a compiled boolean predicate over each batch's
// root documents (materialized on demand from the owning store) and
// shrinks the selection vector to the matching slots.
type columnarMatchOp struct {
	ev    Evaluator
	ctx   *EvalContext
	store *Store
}

func (o *columnarMatchOp) Init(store *Store) { o.store = store }
func (o *columnarMatchOp) Push(in *Batch) []*Batch {
	out := NewBatch(len(in.Selection))
	for i, idx := range in.Selection {
		doc, ok := o.store.Get(PhysicalRowId(idx))
		if !ok {
			continue
		}
		if o.ev(o.ctx, doc.Root()).Truthy() {
			out.Selection = append(out.Selection, idx)
			out.RowIDs = append(out.RowIDs, in.RowIDs[i])
		}
	}
	return []*Batch{out}
}
func (o *columnarMatchOp) Flush() []*Batch { return nil }
func (o *columnarMatchOp) Close()          {}

// columnarLimitOp truncates the overall stream (across batches) to n rows.
type columnarLimitOp struct {
	n       int64
	emitted int64
}

func (o *columnarLimitOp) Init(*Store) {}
func (o *columnarLimitOp) Push(in *Batch) []*Batch {
	remaining := o.n - o.emitted
	if remaining <= 0 {
		return nil
	}
	out := NewBatch(len(in.Selection))
	for i, idx := range in.Selection {
		if int64(len(out.Selection)) >= remaining {
			break
		}
		out.Selection = append(out.Selection, idx)
		out.RowIDs = append(out.RowIDs, in.RowIDs[i])
	}
	o.emitted += int64(len(out.Selection))
	return []*Batch{out}
}
func (o *columnarLimitOp) Flush() []*Batch { return nil }
func (o *columnarLimitOp) Close()          {}

// MaterializeBatches converts a stream of output batches back into
// Documents: materialization is deferred until results escape the
// columnar tier.
func MaterializeBatches(store *Store, batches []*Batch) []Document {
	var out []Document
	for _, b := range batches {
		for _, idx := range b.Selection {
			if doc, ok := store.Get(PhysicalRowId(idx)); ok {
				out = append(out, doc)
			}
		}
	}
	return out
}

// RunColumnarPrefix runs the leading run of TierColumnar operators in plan
// (match/limit only, the two kernels implemented here) and returns the
// resulting documents plus the index of the first operator NOT consumed,
// so the caller can hand the remainder to the row-id executor.
func RunColumnarPrefix(plan *Plan, store *Store, compiler *ExprCompiler, now time.Time, batchSize int) ([]Document, int) {
	i := 0
	src := newColumnarSource(store, batchSize)
	batches := src.Batches()
	for i < len(plan.Ops) {
		op := plan.Ops[i]
		if op.Tier != TierColumnar {
			break
		}
		var cop ColumnarOp
		switch op.Kind {
		case OpMatch:
			ev, err := CompileMatch(compiler, op.Stage.MatchExpr)
			if err != nil {
				return nil, i
			}
			cop = &columnarMatchOp{ev: ev, ctx: &EvalContext{Now: now}}
		case OpLimit:
			cop = &columnarLimitOp{n: op.Stage.N}
		default:
			// $project / $unwind columnar kernels are not implemented in
			// this build; stop the columnar prefix here so the row-id
			// executor picks up from this operator instead.
			return MaterializeBatches(store, batches), i
		}
		cop.Init(store)
		var next []*Batch
		for _, b := range batches {
			next = append(next, cop.Push(b)...)
		}
		next = append(next, cop.Flush()...)
		cop.Close()
		batches = next
		i++
	}
	return MaterializeBatches(store, batches), i
}
