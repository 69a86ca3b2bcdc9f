package aggo_test

import (
	"testing"
	"time"

	"github.com/globalsign/aggo"
)

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		v    aggo.Value
		want bool
	}{
		{aggo.Missing(), false},
		{aggo.Null(), false},
		{aggo.Bool(false), false},
		{aggo.Bool(true), true},
		{aggo.Int(0), false},
		{aggo.Int(1), true},
		{aggo.Float(0), false},
		{aggo.String(""), true},
		{aggo.Array(), true},
		{aggo.ObjectValue(aggo.NewObject()), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestValueCompareCrossType(t *testing.T) {
	if aggo.Compare(aggo.Null(), aggo.Int(1)) >= 0 {
		t.Error("expected null to rank below a number")
	}
	if aggo.Compare(aggo.Int(1), aggo.String("a")) >= 0 {
		t.Error("expected a number to rank below a string")
	}
	if aggo.Compare(aggo.String("a"), aggo.Bool(true)) >= 0 {
		t.Error("expected a string to rank below a bool")
	}
}

func TestValueCompareNumericCrossKind(t *testing.T) {
	if aggo.Compare(aggo.Int(2), aggo.Float(2.0)) != 0 {
		t.Error("expected int 2 and float 2.0 to compare equal")
	}
	if aggo.Compare(aggo.Int(1), aggo.Float(2.0)) >= 0 {
		t.Error("expected int 1 to be less than float 2.0")
	}
}

func TestValueCompareArraysLexicographic(t *testing.T) {
	a := aggo.Array(aggo.Int(1), aggo.Int(2))
	b := aggo.Array(aggo.Int(1), aggo.Int(3))
	if aggo.Compare(a, b) >= 0 {
		t.Error("expected [1,2] < [1,3]")
	}
	shorter := aggo.Array(aggo.Int(1))
	if aggo.Compare(shorter, a) >= 0 {
		t.Error("expected a shorter equal-prefix array to sort first")
	}
}

func TestValueEqualTypeStrict(t *testing.T) {
	if aggo.Equal(aggo.String("1"), aggo.Int(1)) {
		t.Error("expected a string and a number never to compare equal")
	}
	if !aggo.Equal(aggo.Int(1), aggo.Float(1.0)) {
		t.Error("expected numeric cross-kind equality for int and float")
	}
}

func TestValueEqualObjectIgnoresKeyOrder(t *testing.T) {
	a := aggo.NewObject()
	a.Set("x", aggo.Int(1))
	a.Set("y", aggo.Int(2))
	b := aggo.NewObject()
	b.Set("y", aggo.Int(2))
	b.Set("x", aggo.Int(1))
	if !aggo.Equal(aggo.ObjectValue(a), aggo.ObjectValue(b)) {
		t.Error("expected objects with the same key/value pairs to be equal regardless of insertion order")
	}
}

func TestValueGroupKeyStableAcrossObjectKeyOrder(t *testing.T) {
	a := aggo.NewObject()
	a.Set("x", aggo.Int(1))
	a.Set("y", aggo.String("z"))
	b := aggo.NewObject()
	b.Set("y", aggo.String("z"))
	b.Set("x", aggo.Int(1))
	if aggo.GroupKey(aggo.ObjectValue(a)) != aggo.GroupKey(aggo.ObjectValue(b)) {
		t.Error("expected GroupKey to be stable regardless of object key insertion order")
	}
}

func TestValueGroupKeyDistinguishesKinds(t *testing.T) {
	if aggo.GroupKey(aggo.Int(1)) == aggo.GroupKey(aggo.String("1")) {
		t.Error("expected GroupKey to distinguish an int from a string with the same printed form")
	}
}

func TestObjectBasics(t *testing.T) {
	o := aggo.NewObject()
	if o.Has("x") {
		t.Fatal("expected a fresh object to have no keys")
	}
	o.Set("x", aggo.Int(1))
	o.Set("y", aggo.Int(2))
	if !o.Has("x") || o.Len() != 2 {
		t.Fatalf("unexpected object state after Set: has(x)=%v len=%d", o.Has("x"), o.Len())
	}
	o.Delete("x")
	if o.Has("x") || o.Len() != 1 {
		t.Fatalf("unexpected object state after Delete: has(x)=%v len=%d", o.Has("x"), o.Len())
	}
	if !o.Get("x").IsMissing() {
		t.Error("expected a deleted key to report Missing")
	}
}

func TestObjectCloneIsIndependent(t *testing.T) {
	o := aggo.NewObject()
	o.Set("x", aggo.Int(1))
	clone := o.Clone()
	clone.Set("y", aggo.Int(2))
	if o.Has("y") {
		t.Error("expected mutating a clone not to affect the original")
	}
}

func TestFromGoAndToGoRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	in := map[string]interface{}{
		"name": "a",
		"age":  int64(30),
		"tags": []interface{}{"x", "y"},
		"when": now,
	}
	v := aggo.FromGo(in)
	if v.Kind() != aggo.KindObject {
		t.Fatalf("expected FromGo of a map to produce an object Value, got %v", v.Kind())
	}
	back := aggo.ToGo(v).(map[string]interface{})
	if back["name"] != "a" {
		t.Errorf("expected name 'a', got %v", back["name"])
	}
	if back["age"] != int64(30) {
		t.Errorf("expected age 30, got %v", back["age"])
	}
	tags := back["tags"].([]interface{})
	if len(tags) != 2 || tags[0] != "x" {
		t.Errorf("unexpected tags: %v", tags)
	}
	if !back["when"].(time.Time).Equal(now) {
		t.Errorf("expected when %v, got %v", now, back["when"])
	}
}

func TestFromGoUnknownTypeFallsBackToString(t *testing.T) {
	type weird struct{ X int }
	v := aggo.FromGo(weird{X: 5})
	if v.Kind() != aggo.KindString {
		t.Fatalf("expected an unrecognized type to fall back to a string Value, got %v", v.Kind())
	}
}
