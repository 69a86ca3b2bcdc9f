// ivm.go - the IVM operator chain: each stage is realized as an operator
// implementing snapshot/get_effective_document/on_add/on_remove, with the
// engine (not the operator) owning propagation of the upstream active
// row-id set.
//
// Two operator taxonomy members have incremental OnAdd/OnRemove methods
// here: Filter ($match) and Transform ($project/$addFields), neither of
// which iterates the full live set to process one delta. ivmChain does
// not call OnAdd/OnRemove: its Snapshot recomputes every operator's
// output from the store's live set on each call. Reorder/Slice/Fan-out
// ($sort/$limit/$skip/$unwind/$group/$lookup) run as a tail through the
// row-id batch path on every Snapshot, with ReasonNotImplemented recorded
// in the chain's reasons list; IVMHandle does not expose that list.

package aggo

import "time"

// IVMOperator is the per-stage contract every tier-4 operator implements.
type IVMOperator interface {
	// Snapshot returns the full set of row ids this operator currently
	// outputs, computed from scratch against store.
	Snapshot(store *Store, ctx *EvalContext) map[RowId]bool
	// GetEffectiveDocument resolves id to the document this operator
	// would emit for it, if any.
	GetEffectiveDocument(id RowId, store *Store, ctx *EvalContext) (Document, bool)
	// OnAdd/OnRemove incorporate one upstream delta and report whether
	// they could do so incrementally; when false, the caller must fall
	// back to Snapshot.
	OnAdd(d Delta, store *Store, ctx *EvalContext) ([]Delta, bool)
	OnRemove(d Delta, store *Store, ctx *EvalContext) ([]Delta, bool)
}

// ivmFilterOp realizes $match as a Filter operator.
type ivmFilterOp struct {
	ev Evaluator
}

func (o *ivmFilterOp) Snapshot(store *Store, ctx *EvalContext) map[RowId]bool {
	out := make(map[RowId]bool)
	live := store.LiveSet()
	it := live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		doc, ok := store.Get(PhysicalRowId(idx))
		if ok && o.ev(ctx, doc.Root()).Truthy() {
			out[PhysicalRowId(idx)] = true
		}
	}
	return out
}

func (o *ivmFilterOp) GetEffectiveDocument(id RowId, store *Store, ctx *EvalContext) (Document, bool) {
	return store.Get(id)
}

func (o *ivmFilterOp) OnAdd(d Delta, store *Store, ctx *EvalContext) ([]Delta, bool) {
	if o.ev(ctx, d.Doc.Root()).Truthy() {
		return []Delta{d}, true
	}
	return nil, true
}

func (o *ivmFilterOp) OnRemove(d Delta, store *Store, ctx *EvalContext) ([]Delta, bool) {
	if o.ev(ctx, d.Doc.Root()).Truthy() {
		return []Delta{d}, true
	}
	return nil, true
}

// ivmTransformOp realizes $project/$addFields: a Transform operator that
// caches a transformed document per upstream id. $lookup is not built as
// a Transform; buildIVMChain leaves it to the tail.
type ivmTransformOp struct {
	transform func(ctx *EvalContext, doc Document) Document
	cache     map[RowId]Document
}

func newIVMTransformOp(fn func(ctx *EvalContext, doc Document) Document) *ivmTransformOp {
	return &ivmTransformOp{transform: fn, cache: make(map[RowId]Document)}
}

func (o *ivmTransformOp) Snapshot(store *Store, ctx *EvalContext) map[RowId]bool {
	out := make(map[RowId]bool)
	live := store.LiveSet()
	it := live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		id := PhysicalRowId(idx)
		doc, ok := store.Get(id)
		if !ok {
			continue
		}
		o.cache[id] = o.transform(ctx, doc)
		out[id] = true
	}
	return out
}

func (o *ivmTransformOp) GetEffectiveDocument(id RowId, store *Store, ctx *EvalContext) (Document, bool) {
	d, ok := o.cache[id]
	return d, ok
}

func (o *ivmTransformOp) OnAdd(d Delta, store *Store, ctx *EvalContext) ([]Delta, bool) {
	out := o.transform(ctx, d.Doc)
	o.cache[d.RowID] = out
	return []Delta{{Sign: d.Sign, RowID: d.RowID, Doc: out}}, true
}

func (o *ivmTransformOp) OnRemove(d Delta, store *Store, ctx *EvalContext) ([]Delta, bool) {
	out, ok := o.cache[d.RowID]
	delete(o.cache, d.RowID)
	if !ok {
		out = d.Doc
	}
	return []Delta{{Sign: d.Sign, RowID: d.RowID, Doc: out}}, true
}

// ivmChain drives a sequence of IVMOperators, plus a possibly-empty tail
// of non-incremental PlanOps that require full recomputation from the
// chain's output on every change.
type ivmChain struct {
	ops        []IVMOperator
	tailPlan   *Plan // remaining ops after the incremental prefix; executed via RowIDExecutor
	compiler   *ExprCompiler
	stores     map[string]*Store
	primary    *Store
	reasons    []ReasonCode
}

// buildIVMChain compiles the incremental prefix of plan (Filter/Transform
// only) and leaves the rest for full recomputation.
func buildIVMChain(plan *Plan, compiler *ExprCompiler, primary *Store, stores map[string]*Store) (*ivmChain, error) {
	chain := &ivmChain{compiler: compiler, stores: stores, primary: primary}
	i := 0
	for ; i < len(plan.Ops); i++ {
		op := plan.Ops[i]
		switch op.Kind {
		case OpMatch:
			ev, err := CompileMatch(compiler, op.Stage.MatchExpr)
			if err != nil {
				return nil, err
			}
			chain.ops = append(chain.ops, &ivmFilterOp{ev: ev})
		case OpProject, OpAddFields:
			st := op.Stage
			exec := &RowIDExecutor{compiler: compiler, stores: stores}
			chain.ops = append(chain.ops, newIVMTransformOp(func(ctx *EvalContext, doc Document) Document {
				exec.now = ctx.Now
				rows, err := exec.runProject(st, []rowBinding{{doc: doc}})
				if err != nil || len(rows) == 0 {
					return doc
				}
				return rows[0].doc
			}))
		default:
			chain.reasons = append(chain.reasons, ReasonNotImplemented)
			goto done
		}
	}
done:
	chain.tailPlan = &Plan{Ops: plan.Ops[i:]}
	return chain, nil
}

// Snapshot materializes the chain's current output documents, applying
// the incremental prefix then the non-incremental tail in full.
func (c *ivmChain) Snapshot(now time.Time) []Document {
	ctx := &EvalContext{Now: now}
	ids := map[RowId]bool{}
	live := c.primary.LiveSet()
	it := live.Iterator()
	for it.HasNext() {
		ids[PhysicalRowId(it.Next())] = true
	}
	for _, op := range c.ops {
		ids = op.Snapshot(c.primary, ctx)
	}
	rows := make([]rowBinding, 0, len(ids))
	for id := range ids {
		var doc Document
		var ok bool
		if len(c.ops) > 0 {
			doc, ok = c.ops[len(c.ops)-1].GetEffectiveDocument(id, c.primary, ctx)
		} else {
			doc, ok = c.primary.Get(id)
		}
		if ok {
			rows = append(rows, rowBinding{id: id, doc: doc})
		}
	}
	exec := NewRowIDExecutor(c.compiler, c.stores, now)
	var err error
	for _, op := range c.tailPlan.Ops {
		rows, err = exec.runOp(op, rows)
		if err != nil {
			return nil
		}
	}
	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = r.doc
	}
	return out
}

// IVMHandle is the external handle a caller opens against a live Store:
// Add/Remove/AddBulk/RemoveBy mutate the store, and Snapshot observes the
// pipeline's current output. The handle has no update-callback
// subscription; callers see changes only by calling Snapshot.
type IVMHandle struct {
	store *Store
	chain *ivmChain
	now   func() time.Time
}

// OpenIVM compiles plan against store and returns a live handle.
func OpenIVM(plan *Plan, compiler *ExprCompiler, store *Store, stores map[string]*Store, nowFn func() time.Time) (*IVMHandle, error) {
	chain, err := buildIVMChain(plan, compiler, store, stores)
	if err != nil {
		return nil, err
	}
	if nowFn == nil {
		nowFn = func() time.Time { return time.Unix(0, 0).UTC() }
	}
	return &IVMHandle{store: store, chain: chain, now: nowFn}, nil
}

// Add inserts doc into the underlying store.
func (h *IVMHandle) Add(doc Document) RowId { return h.store.Insert(doc) }

// AddBulk inserts every document in docs.
func (h *IVMHandle) AddBulk(docs []Document) []RowId { return h.store.InsertBulk(docs) }

// Remove removes id from the underlying store.
func (h *IVMHandle) Remove(id RowId) bool { return h.store.Remove(id) }

// RemoveBy removes every live document matching pred.
func (h *IVMHandle) RemoveBy(pred func(Document) bool) []RowId { return h.store.RemoveWhere(pred) }

// Snapshot returns the pipeline's current output documents.
func (h *IVMHandle) Snapshot() []Document { return h.chain.Snapshot(h.now()) }
