package aggo_test

import (
	"testing"
	"time"

	"github.com/globalsign/aggo"
)

func TestEngineCollectionsAreIndependent(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())

	users := engine.C("users")
	orders := engine.C("orders")

	users.Insert(docWithID("u1", map[string]aggo.Value{"name": aggo.String("Ann")}))
	orders.Insert(docWithID("o1", map[string]aggo.Value{"total": aggo.Int(5)}))

	AssertEqual(t, 1, users.Count(), "users collection count")
	AssertEqual(t, 1, orders.Count(), "orders collection count")

	again := engine.C("users")
	AssertEqual(t, 1, again.Count(), "re-fetching a collection should return the same backing store")
}

func TestEngineSetClockDrivesNow(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	engine.SetClock(func() time.Time { return fixed })

	coll := engine.C("events")
	coll.Insert(docWithID("e1", nil))

	nowExpr := aggo.NewObject()
	nowExpr.Set("stampedAt", aggo.String("$$NOW"))
	addFields := aggo.NewObject()
	addFields.Set("$addFields", aggo.ObjectValue(nowExpr))

	handle, err := coll.Pipe([]aggo.Value{aggo.ObjectValue(addFields)})
	AssertNoError(t, err, "compile pipeline")

	docs, err := handle.Run()
	AssertNoError(t, err, "run pipeline")
	AssertEqual(t, 1, len(docs), "expected one document")
	got := docs[0].Get("stampedAt")
	if got.Kind() != aggo.KindDate || !got.AsDate().Equal(fixed) {
		t.Fatalf("expected stampedAt to equal the fixed clock value, got %v", got)
	}
}

func TestEngineDiagnosticsAreShared(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	if engine.Diagnostics() == nil {
		t.Fatal("expected a non-nil diagnostics sink")
	}
}

func TestEnginePipeExplainIsPure(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("products")
	coll.Insert(docWithID("p1", map[string]aggo.Value{"price": aggo.Int(10)}))

	limitStage := aggo.NewObject()
	limitStage.Set("$limit", aggo.Int(1))
	handle, err := coll.Pipe([]aggo.Value{aggo.ObjectValue(limitStage)})
	AssertNoError(t, err, "compile pipeline")

	steps := handle.Explain()
	if len(steps) == 0 {
		t.Fatal("expected at least one explain step")
	}
	AssertEqual(t, 1, coll.Count(), "Explain must not execute or mutate the collection")
}

func TestEngineOpenIVMReflectsMutations(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("tasks")

	match := aggo.NewObject()
	status := aggo.NewObject()
	status.Set("status", aggo.String("open"))
	match.Set("$match", aggo.ObjectValue(status))

	handle, err := coll.Pipe([]aggo.Value{aggo.ObjectValue(match)})
	AssertNoError(t, err, "compile pipeline")

	ivm, err := handle.OpenIVM()
	AssertNoError(t, err, "open IVM handle")

	coll.Insert(docWithID("t1", map[string]aggo.Value{"status": aggo.String("open")}))
	coll.Insert(docWithID("t2", map[string]aggo.Value{"status": aggo.String("closed")}))

	snap := ivm.Snapshot()
	AssertEqual(t, 1, len(snap), "expected one open task in the IVM snapshot")

	coll.RemoveByPK(aggo.String("t1"))
	snap = ivm.Snapshot()
	AssertEqual(t, 0, len(snap), "expected the IVM snapshot to reflect the removal")
}
