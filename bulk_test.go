package aggo_test

import (
	"testing"

	"github.com/globalsign/aggo"
)

func docWithID(id string, fields map[string]aggo.Value) aggo.Document {
	o := aggo.NewObject()
	o.Set("_id", aggo.String(id))
	for k, v := range fields {
		o.Set(k, v)
	}
	return aggo.NewDocument(o)
}

func TestBulkInsert(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("items")

	bulk := coll.Bulk(true)
	bulk.Insert(
		docWithID("1", map[string]aggo.Value{"name": aggo.String("Doc1")}),
		docWithID("2", map[string]aggo.Value{"name": aggo.String("Doc2")}),
		docWithID("3", map[string]aggo.Value{"name": aggo.String("Doc3")}),
	)

	result, err := bulk.Run()
	AssertNoError(t, err, "failed to execute bulk insert")
	AssertEqual(t, 3, result.Inserted, "incorrect inserted count")
	AssertEqual(t, 3, coll.Count(), "incorrect document count after bulk insert")
}

func TestBulkRemove(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("items")

	coll.InsertBulk([]aggo.Document{
		docWithID("1", map[string]aggo.Value{"category": aggo.String("A")}),
		docWithID("2", map[string]aggo.Value{"category": aggo.String("B")}),
		docWithID("3", map[string]aggo.Value{"category": aggo.String("A")}),
		docWithID("4", map[string]aggo.Value{"category": aggo.String("C")}),
	})

	bulk := coll.Bulk(true)
	bulk.Remove(aggo.String("1"), aggo.String("3"))

	result, err := bulk.Run()
	AssertNoError(t, err, "failed to execute bulk remove")
	AssertEqual(t, 2, result.Removed, "incorrect removed count")
	AssertEqual(t, 2, coll.Count(), "incorrect document count after removal")
}

func TestBulkMixedInsertAndRemove(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("items")

	coll.Insert(docWithID("1", map[string]aggo.Value{"value": aggo.Int(100)}))

	bulk := coll.Bulk(true)
	bulk.Insert(docWithID("2", map[string]aggo.Value{"value": aggo.Int(200)}))
	bulk.Insert(docWithID("3", map[string]aggo.Value{"value": aggo.Int(300)}))
	bulk.Remove(aggo.String("2"))

	result, err := bulk.Run()
	AssertNoError(t, err, "failed to execute mixed bulk operations")
	AssertEqual(t, 2, result.Inserted, "incorrect inserted count")
	AssertEqual(t, 1, result.Removed, "incorrect removed count")
	AssertEqual(t, 2, coll.Count(), "incorrect final document count")
}

func TestBulkOrderedStopsAtFirstFailure(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("items")

	bulk := coll.Bulk(true)
	bulk.Remove(aggo.String("missing-1"))
	bulk.Remove(aggo.String("missing-2"))

	result, err := bulk.Run()
	AssertError(t, err, "expected an error for removing a nonexistent primary key")
	AssertEqual(t, 0, result.Removed, "ordered bulk should stop after the first failing removal")
}

func TestBulkUnorderedRunsEveryOperation(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("items")
	coll.Insert(docWithID("1", nil))

	bulk := coll.Bulk(true).Unordered()
	bulk.Remove(aggo.String("missing"))
	bulk.Remove(aggo.String("1"))

	result, err := bulk.Run()
	AssertError(t, err, "expected an error reporting the missing primary key")
	AssertEqual(t, 1, result.Removed, "unordered bulk should still remove the valid primary key")
}

func TestBulkEmptyOperations(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("items")

	bulk := coll.Bulk(true)
	result, err := bulk.Run()
	AssertNoError(t, err, "an empty bulk should not error")
	AssertEqual(t, 0, result.Inserted, "empty bulk inserted count")
	AssertEqual(t, 0, result.Removed, "empty bulk removed count")
}

func TestBulkLargeInsert(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("items")

	bulk := coll.Bulk(true)
	numOps := 100
	for i := 0; i < numOps; i++ {
		o := aggo.NewObject()
		o.Set("_id", aggo.Int(int64(i)))
		o.Set("value", aggo.Int(int64(i*10)))
		bulk.Insert(aggo.NewDocument(o))
	}

	result, err := bulk.Run()
	AssertNoError(t, err, "failed to execute large bulk operation")
	AssertEqual(t, numOps, result.Inserted, "not all documents reported inserted")
	AssertEqual(t, numOps, coll.Count(), "not all documents were inserted")
}
