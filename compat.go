// compat.go - the Compatibility Shim: a correctness-first interpreter for
// stages/operators no other tier supports, sharing the Value model and
// expression/match compilers so its semantics match the fast paths
// exactly. It allocates freely and is invoked only when the plan
// annotates an operator with a fallback reason.
//
// It exists to give callers a path that still works when the fast
// tiers can't take them there.
package aggo

// RunCompat executes a single hard-blocked operator (currently only
// sub-pipeline $lookup) against rows, returning the rows with the
// operator's effect applied.
func RunCompat(op PlanOp, ex *RowIDExecutor, rows []rowBinding) ([]rowBinding, error) {
	switch op.Kind {
	case OpLookup:
		return runCompatLookup(op.Stage, ex, rows)
	default:
		return nil, NewEngineError(UnsupportedFeature, op.Kind.String(), "no compatibility interpreter for this operator")
	}
}

// runCompatLookup evaluates a sub-pipeline $lookup by running the foreign
// collection's compiled sub-pipeline once per input document, with "let"
// bindings resolved against that document and exposed as pipeline
// variables (MongoDB's $$ syntax), then attaching the results array.
func runCompatLookup(st Stage, ex *RowIDExecutor, rows []rowBinding) ([]rowBinding, error) {
	foreign, ok := ex.stores[st.LookupFrom]
	if !ok {
		return nil, NewEngineError(InvalidPipeline, "$lookup", "unknown collection %q", st.LookupFrom)
	}
	subStages, err := ParsePipeline(st.LookupPipeline)
	if err != nil {
		return nil, err
	}
	subPlan, err := CompilePlan(subStages, DefaultConfig(), foreign.Count())
	if err != nil {
		return nil, err
	}

	out := make([]rowBinding, len(rows))
	for i, r := range rows {
		vars := map[string]Value{}
		if st.LookupLet.Kind() == KindObject {
			for _, k := range st.LookupLet.AsObject().Keys() {
				ev, err := ex.compiler.Compile(st.LookupLet.AsObject().Get(k))
				if err != nil {
					return nil, err
				}
				vars[k] = ev(&EvalContext{Now: ex.now}, r.doc.Root())
			}
		}
		subExec := &RowIDExecutor{compiler: ex.compiler, stores: ex.stores, now: ex.now, vars: vars}
		subRows, err := subExecWithVars(subExec, subPlan, foreign)
		if err != nil {
			return nil, err
		}
		arr := make([]Value, len(subRows))
		for j, d := range subRows {
			arr[j] = d.Root()
		}
		out[i] = rowBinding{id: r.id, doc: r.doc.WithField(st.LookupAs, Array(arr...))}
	}
	return out, nil
}

// subExecWithVars runs plan against foreign through ex, whose vars field
// is already pre-bound, the mechanism by which the sub-pipeline's
// $project/$addFields/$group expressions can reference "$$letVarName". A
// sub-pipeline $match does not see these vars: the filter compiler never
// reads EvalContext.Vars.
func subExecWithVars(ex *RowIDExecutor, plan *Plan, foreign *Store) ([]Document, error) {
	live := foreign.LiveSet()
	rows := make([]rowBinding, 0, live.GetCardinality())
	it := live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		doc, ok := foreign.Get(PhysicalRowId(idx))
		if !ok {
			continue
		}
		rows = append(rows, rowBinding{id: PhysicalRowId(idx), doc: doc})
	}
	var err error
	for _, op := range plan.Ops {
		if op.Tier == TierCompat {
			rows, err = RunCompat(op, ex, rows)
		} else {
			rows, err = ex.runOp(op, rows)
		}
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
