// planner.go - Pipeline Compiler/Planner: validate -> rewrite -> tier
// selection, producing a Plan of physical operators each annotated with
// its chosen tier and (if downgraded) a reason code.

package aggo

// PlanOpKind names a physical operator. Most map 1:1 to a StageKind;
// OpTopK is the synthetic operator produced by fusing $sort+$limit.
type PlanOpKind int

const (
	OpMatch PlanOpKind = iota
	OpProject
	OpGroup
	OpSort
	OpLimit
	OpSkip
	OpUnwind
	OpLookup
	OpAddFields
	OpCount
	OpTopK
	OpUnwindGroup
)

func (k PlanOpKind) String() string {
	switch k {
	case OpMatch:
		return "match"
	case OpProject:
		return "project"
	case OpGroup:
		return "group"
	case OpSort:
		return "sort"
	case OpLimit:
		return "limit"
	case OpSkip:
		return "skip"
	case OpUnwind:
		return "unwind"
	case OpLookup:
		return "lookup"
	case OpAddFields:
		return "addFields"
	case OpCount:
		return "count"
	case OpTopK:
		return "topk"
	case OpUnwindGroup:
		return "unwind+group"
	default:
		return "unknown"
	}
}

// PlanOp is one physical operator in a compiled Plan.
type PlanOp struct {
	Kind PlanOpKind
	Stage Stage // primary stage this operator realizes
	Extra Stage // second stage for fused operators (e.g. the $group in unwind+group)

	TopKLimit int
	SortKeys  []SortKey

	Tier   Tier
	Reason ReasonCode
}

// Plan is a pipeline's compiled form.
type Plan struct {
	Ops []PlanOp
}

// hardBlocker reports whether a stage can never run on any tier but the
// compatibility shim.
func hardBlocker(st Stage) bool {
	return st.Kind == StageLookup && st.LookupSubPipeline
}

// CompilePlan runs validate, rewrite, and tier-selection over stages.
func CompilePlan(stages []Stage, cfg EngineConfig, liveRows int) (*Plan, error) {
	ops := make([]PlanOp, 0, len(stages))
	for _, st := range stages {
		ops = append(ops, PlanOp{Kind: stageKindToOpKind(st.Kind), Stage: st})
	}
	ops = fuseAdjacentMatches(ops)
	ops = fuseSortLimit(ops)
	ops = fuseUnwindGroup(ops)
	for i := range ops {
		selectTier(&ops[i], cfg, liveRows)
	}
	return &Plan{Ops: ops}, nil
}

func stageKindToOpKind(k StageKind) PlanOpKind {
	switch k {
	case StageMatch:
		return OpMatch
	case StageProject:
		return OpProject
	case StageGroup:
		return OpGroup
	case StageSort:
		return OpSort
	case StageLimit:
		return OpLimit
	case StageSkip:
		return OpSkip
	case StageUnwind:
		return OpUnwind
	case StageLookup:
		return OpLookup
	case StageAddFields:
		return OpAddFields
	case StageCount:
		return OpCount
	}
	return OpMatch
}

// fuseAdjacentMatches combines consecutive $match stages into one by
// conjunction, since evaluating one combined predicate avoids a
// materialization boundary between them.
func fuseAdjacentMatches(ops []PlanOp) []PlanOp {
	out := make([]PlanOp, 0, len(ops))
	for _, op := range ops {
		if op.Kind == OpMatch && len(out) > 0 && out[len(out)-1].Kind == OpMatch {
			prev := &out[len(out)-1]
			prev.Stage.MatchExpr = andExprs(prev.Stage.MatchExpr, op.Stage.MatchExpr)
			continue
		}
		out = append(out, op)
	}
	return out
}

// andExprs combines two $match filter documents by conjunction, matching
// MongoDB's own $and stage-level operator shape: {"$and": [a, b]}.
func andExprs(a, b Value) Value {
	o := NewObject()
	o.Set("$and", Array(a, b))
	return ObjectValue(o)
}

// fuseSortLimit rewrites a $sort immediately followed by a $limit k into a
// single bounded TopK(k, keys) operator, replacing an O(n log n) sort
// with an O(n log k) bounded selection.
func fuseSortLimit(ops []PlanOp) []PlanOp {
	out := make([]PlanOp, 0, len(ops))
	for i := 0; i < len(ops); i++ {
		if ops[i].Kind == OpSort && i+1 < len(ops) && ops[i+1].Kind == OpLimit {
			out = append(out, PlanOp{
				Kind:      OpTopK,
				Stage:     ops[i].Stage,
				Extra:     ops[i+1].Stage,
				TopKLimit: int(ops[i+1].Stage.N),
				SortKeys:  ops[i].Stage.SortKeys,
			})
			i++
			continue
		}
		out = append(out, ops[i])
	}
	return out
}

// fuseUnwindGroup combines a $unwind on path immediately followed by a
// $group whose _id references that same path, avoiding materializing the
// intermediate fanned-out rows.
func fuseUnwindGroup(ops []PlanOp) []PlanOp {
	out := make([]PlanOp, 0, len(ops))
	for i := 0; i < len(ops); i++ {
		if ops[i].Kind == OpUnwind && i+1 < len(ops) && ops[i+1].Kind == OpGroup {
			groupIDPath := ""
			if gid := ops[i+1].Stage.GroupID; gid.Kind() == KindString {
				groupIDPath = stripFieldPrefix(gid.AsString())
			}
			if groupIDPath == ops[i].Stage.UnwindPath {
				out = append(out, PlanOp{Kind: OpUnwindGroup, Stage: ops[i].Stage, Extra: ops[i+1].Stage})
				i++
				continue
			}
		}
		out = append(out, ops[i])
	}
	return out
}

// columnarCapable is the vectorized-capable stage set.
func columnarCapable(k PlanOpKind) bool {
	switch k {
	case OpMatch, OpProject, OpUnwind, OpLimit:
		return true
	}
	return false
}

// rowIDCapable is the row-id hot path's supported stage set.
func rowIDCapable(k PlanOpKind) bool {
	switch k {
	case OpMatch, OpProject, OpGroup, OpSort, OpLimit, OpSkip, OpUnwind, OpLookup, OpAddFields, OpTopK, OpUnwindGroup, OpCount:
		return true
	}
	return false
}

func selectTier(op *PlanOp, cfg EngineConfig, liveRows int) {
	if hardBlocker(op.Stage) || hardBlocker(op.Extra) {
		op.Tier = TierCompat
		op.Reason = ReasonNotImplemented
		return
	}
	if columnarCapable(op.Kind) {
		if !columnarFeatureEnabled(op.Kind, cfg) {
			op.Tier = TierRowID
			op.Reason = ReasonFeatureOff
		} else if liveRows < cfg.ColumnarMinRows {
			op.Tier = TierRowID
			op.Reason = ReasonSmallDataset
		} else {
			op.Tier = TierColumnar
			op.Reason = ReasonNone
			return
		}
	} else if !columnarFeatureEnabled(op.Kind, cfg) {
		op.Tier = TierRowID
		op.Reason = ReasonFeatureOff
	}
	if rowIDCapable(op.Kind) {
		if op.Tier == 0 && op.Reason == ReasonNone {
			op.Tier = TierRowID
		}
		return
	}
	op.Tier = TierCompat
	op.Reason = ReasonNotImplemented
}

func columnarFeatureEnabled(k PlanOpKind, cfg EngineConfig) bool {
	switch k {
	case OpGroup, OpUnwindGroup:
		return cfg.EnableColumnarGroup
	case OpUnwind:
		return cfg.EnableColumnarUnwind
	default:
		return true
	}
}
