package aggo_test

import (
	"testing"
	"time"

	"github.com/globalsign/aggo"
)

// TestData provides sample documents for pipeline/store tests.
type TestData struct {
	Users    []aggo.Value
	Products []aggo.Value
	Orders   []aggo.Value
}

// GetTestData returns sample test data as object Values.
func GetTestData() *TestData {
	now := time.Now().UTC()
	return &TestData{
		Users: []aggo.Value{
			obj(map[string]aggo.Value{
				"_id":       aggo.String("u1"),
				"name":      aggo.String("John Doe"),
				"email":     aggo.String("john@example.com"),
				"age":       aggo.Int(30),
				"active":    aggo.Bool(true),
				"createdAt": aggo.Date(now),
			}),
			obj(map[string]aggo.Value{
				"_id":       aggo.String("u2"),
				"name":      aggo.String("Jane Smith"),
				"email":     aggo.String("jane@example.com"),
				"age":       aggo.Int(25),
				"active":    aggo.Bool(true),
				"createdAt": aggo.Date(now.Add(-24 * time.Hour)),
			}),
			obj(map[string]aggo.Value{
				"_id":       aggo.String("u3"),
				"name":      aggo.String("Bob Johnson"),
				"email":     aggo.String("bob@example.com"),
				"age":       aggo.Int(35),
				"active":    aggo.Bool(false),
				"createdAt": aggo.Date(now.Add(-48 * time.Hour)),
			}),
		},
		Products: []aggo.Value{
			obj(map[string]aggo.Value{
				"_id":      aggo.String("p1"),
				"name":     aggo.String("Product A"),
				"price":    aggo.Float(100.50),
				"category": aggo.String("Electronics"),
				"inStock":  aggo.Bool(true),
				"quantity": aggo.Int(50),
			}),
			obj(map[string]aggo.Value{
				"_id":      aggo.String("p2"),
				"name":     aggo.String("Product B"),
				"price":    aggo.Float(50.25),
				"category": aggo.String("Books"),
				"inStock":  aggo.Bool(true),
				"quantity": aggo.Int(100),
			}),
			obj(map[string]aggo.Value{
				"_id":      aggo.String("p3"),
				"name":     aggo.String("Product C"),
				"price":    aggo.Float(200.00),
				"category": aggo.String("Electronics"),
				"inStock":  aggo.Bool(false),
				"quantity": aggo.Int(0),
			}),
		},
		Orders: []aggo.Value{
			obj(map[string]aggo.Value{
				"_id":    aggo.String("o1"),
				"userId": aggo.String("u1"),
				"total":  aggo.Float(150.75),
				"status": aggo.String("pending"),
			}),
			obj(map[string]aggo.Value{
				"_id":    aggo.String("o2"),
				"userId": aggo.String("u2"),
				"total":  aggo.Float(50.25),
				"status": aggo.String("completed"),
			}),
		},
	}
}

// obj builds an object Value from a field map, in deterministic key order.
func obj(fields map[string]aggo.Value) aggo.Value {
	o := aggo.NewObject()
	for _, k := range []string{"_id", "name", "email", "age", "active", "createdAt", "price", "category", "inStock", "quantity", "userId", "total", "status"} {
		if v, ok := fields[k]; ok {
			o.Set(k, v)
		}
	}
	return aggo.ObjectValue(o)
}

// InsertTestData inserts every document in data into coll.
func InsertTestData(t *testing.T, coll *aggo.Collection, data []aggo.Value) {
	t.Helper()
	for _, v := range data {
		coll.Insert(aggo.NewDocument(v.AsObject()))
	}
}

// AssertError checks if an error occurred when one was expected.
func AssertError(t *testing.T, err error, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error but got none: %s", message)
	}
}

// AssertNoError checks if no error occurred when none was expected.
func AssertNoError(t *testing.T, err error, message string) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %s - %v", message, err)
	}
}

// AssertEqual checks if two values are equal.
func AssertEqual(t *testing.T, expected, actual interface{}, message string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s - expected: %v, got: %v", message, expected, actual)
	}
}
