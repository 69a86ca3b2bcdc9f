package aggo_test

import (
	"testing"

	"github.com/globalsign/aggo"
)

func compilePlanFor(t *testing.T, stageVals []aggo.Value, cfg aggo.EngineConfig, liveRows int) *aggo.Plan {
	t.Helper()
	stages, err := aggo.ParsePipeline(stageVals)
	AssertNoError(t, err, "parse pipeline")
	plan, err := aggo.CompilePlan(stages, cfg, liveRows)
	AssertNoError(t, err, "compile plan")
	return plan
}

func TestPlannerFusesAdjacentMatches(t *testing.T) {
	first := matchStage("a", aggo.Int(1))
	second := matchStage("b", aggo.Int(2))
	plan := compilePlanFor(t, []aggo.Value{first, second}, aggo.DefaultConfig(), 0)

	AssertEqual(t, 1, len(plan.Ops), "expected two adjacent $match stages to fuse into one operator")
	AssertEqual(t, aggo.OpMatch, plan.Ops[0].Kind, "fused operator should remain a match")
	if plan.Ops[0].Stage.MatchExpr.AsObject().Get("$and").IsMissing() {
		t.Fatal("expected the fused match expression to be wrapped in $and")
	}
}

func TestPlannerFusesSortLimitIntoTopK(t *testing.T) {
	sortBody := aggo.NewObject()
	sortBody.Set("price", aggo.Int(1))
	sort := aggo.NewObject()
	sort.Set("$sort", aggo.ObjectValue(sortBody))
	limit := aggo.NewObject()
	limit.Set("$limit", aggo.Int(5))

	plan := compilePlanFor(t, []aggo.Value{aggo.ObjectValue(sort), aggo.ObjectValue(limit)}, aggo.DefaultConfig(), 0)

	AssertEqual(t, 1, len(plan.Ops), "expected $sort+$limit to fuse into a single TopK operator")
	AssertEqual(t, aggo.OpTopK, plan.Ops[0].Kind, "expected the fused operator kind to be TopK")
	AssertEqual(t, 5, plan.Ops[0].TopKLimit, "incorrect fused TopK limit")
}

func TestPlannerFusesUnwindGroupOnMatchingPath(t *testing.T) {
	unwind := aggo.NewObject()
	unwind.Set("$unwind", aggo.String("$items"))

	sum := aggo.NewObject()
	sum.Set("$sum", aggo.Int(1))
	groupBody := aggo.NewObject()
	groupBody.Set("_id", aggo.String("$items"))
	groupBody.Set("count", aggo.ObjectValue(sum))
	group := aggo.NewObject()
	group.Set("$group", aggo.ObjectValue(groupBody))

	plan := compilePlanFor(t, []aggo.Value{aggo.ObjectValue(unwind), aggo.ObjectValue(group)}, aggo.DefaultConfig(), 0)

	AssertEqual(t, 1, len(plan.Ops), "expected $unwind+$group on the same path to fuse")
	AssertEqual(t, aggo.OpUnwindGroup, plan.Ops[0].Kind, "expected fused unwind+group operator kind")
}

func TestPlannerDoesNotFuseUnwindGroupOnDifferentPath(t *testing.T) {
	unwind := aggo.NewObject()
	unwind.Set("$unwind", aggo.String("$items"))

	sum := aggo.NewObject()
	sum.Set("$sum", aggo.Int(1))
	groupBody := aggo.NewObject()
	groupBody.Set("_id", aggo.String("$category"))
	groupBody.Set("count", aggo.ObjectValue(sum))
	group := aggo.NewObject()
	group.Set("$group", aggo.ObjectValue(groupBody))

	plan := compilePlanFor(t, []aggo.Value{aggo.ObjectValue(unwind), aggo.ObjectValue(group)}, aggo.DefaultConfig(), 0)

	AssertEqual(t, 2, len(plan.Ops), "expected unwind and group on different paths to stay separate")
	AssertEqual(t, aggo.OpUnwind, plan.Ops[0].Kind, "first operator should remain unwind")
	AssertEqual(t, aggo.OpGroup, plan.Ops[1].Kind, "second operator should remain group")
}

func TestPlannerSmallDatasetDowngradesColumnarToRowID(t *testing.T) {
	cfg := aggo.DefaultConfig()
	cfg.ColumnarMinRows = 1000

	plan := compilePlanFor(t, []aggo.Value{matchStage("a", aggo.Int(1))}, cfg, 10)

	AssertEqual(t, aggo.TierRowID, plan.Ops[0].Tier, "expected a small live-row count to downgrade the columnar tier")
	AssertEqual(t, aggo.ReasonSmallDataset, plan.Ops[0].Reason, "incorrect downgrade reason for a small dataset")
}

func TestPlannerLargeDatasetPrefersColumnar(t *testing.T) {
	cfg := aggo.DefaultConfig()
	cfg.ColumnarMinRows = 10

	plan := compilePlanFor(t, []aggo.Value{matchStage("a", aggo.Int(1))}, cfg, 10000)

	AssertEqual(t, aggo.TierColumnar, plan.Ops[0].Tier, "expected a large live-row count to prefer the columnar tier")
	AssertEqual(t, aggo.ReasonNone, plan.Ops[0].Reason, "expected no downgrade reason when columnar tier is chosen")
}

func TestPlannerFeatureOffDowngradesColumnarGroup(t *testing.T) {
	cfg := aggo.DefaultConfig()
	cfg.ColumnarMinRows = 0
	cfg.EnableColumnarGroup = false

	sum := aggo.NewObject()
	sum.Set("$sum", aggo.Int(1))
	groupBody := aggo.NewObject()
	groupBody.Set("_id", aggo.String("$category"))
	groupBody.Set("count", aggo.ObjectValue(sum))
	group := aggo.NewObject()
	group.Set("$group", aggo.ObjectValue(groupBody))

	plan := compilePlanFor(t, []aggo.Value{aggo.ObjectValue(group)}, cfg, 100000)

	AssertEqual(t, aggo.TierRowID, plan.Ops[0].Tier, "expected $group to stay on the row-id tier when columnar group is disabled")
	AssertEqual(t, aggo.ReasonFeatureOff, plan.Ops[0].Reason, "incorrect downgrade reason for a disabled feature")
}

func TestPlannerGroupIsNotColumnarCapable(t *testing.T) {
	cfg := aggo.DefaultConfig()
	cfg.ColumnarMinRows = 0
	cfg.EnableColumnarGroup = true

	sum := aggo.NewObject()
	sum.Set("$sum", aggo.Int(1))
	groupBody := aggo.NewObject()
	groupBody.Set("_id", aggo.String("$category"))
	groupBody.Set("count", aggo.ObjectValue(sum))
	group := aggo.NewObject()
	group.Set("$group", aggo.ObjectValue(groupBody))

	plan := compilePlanFor(t, []aggo.Value{aggo.ObjectValue(group)}, cfg, 100000)

	AssertEqual(t, aggo.TierRowID, plan.Ops[0].Tier, "$group is not in the columnar-capable stage set regardless of the feature flag")
}

func TestPlannerSubPipelineLookupForcesCompatTier(t *testing.T) {
	lookupBody := aggo.NewObject()
	lookupBody.Set("from", aggo.String("orders"))
	pipelineStage := aggo.NewObject()
	pipelineStage.Set("$match", aggo.ObjectValue(aggo.NewObject()))
	lookupBody.Set("pipeline", aggo.Array(aggo.ObjectValue(pipelineStage)))
	lookupBody.Set("as", aggo.String("joined"))
	lookup := aggo.NewObject()
	lookup.Set("$lookup", aggo.ObjectValue(lookupBody))

	plan := compilePlanFor(t, []aggo.Value{aggo.ObjectValue(lookup)}, aggo.DefaultConfig(), 0)

	AssertEqual(t, aggo.TierCompat, plan.Ops[0].Tier, "expected a sub-pipeline $lookup to force the compatibility tier")
	AssertEqual(t, aggo.ReasonNotImplemented, plan.Ops[0].Reason, "incorrect reason for a compat-only stage")
}

func TestPlanOpKindStringNames(t *testing.T) {
	cases := map[aggo.PlanOpKind]string{
		aggo.OpMatch:       "match",
		aggo.OpGroup:       "group",
		aggo.OpTopK:        "topk",
		aggo.OpUnwindGroup: "unwind+group",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("PlanOpKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
