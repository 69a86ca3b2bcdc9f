package aggo

import (
	"reflect"
	"testing"
	"time"
)

func TestStructToValueSimpleStruct(t *testing.T) {
	type Person struct {
		Name string `bson:"name"`
		Age  int    `bson:"age"`
	}
	v := StructToValue(Person{Name: "Ann", Age: 30})
	if v.Kind() != KindObject {
		t.Fatalf("expected an object Value, got %v", v.Kind())
	}
	if v.AsObject().Get("name").AsString() != "Ann" {
		t.Errorf("expected name 'Ann', got %v", v.AsObject().Get("name"))
	}
	if v.AsObject().Get("age").AsInt() != 30 {
		t.Errorf("expected age 30, got %v", v.AsObject().Get("age"))
	}
}

func TestStructToValueFallsBackToLowercasedFieldName(t *testing.T) {
	type NoTags struct {
		City string
	}
	v := StructToValue(NoTags{City: "Oslo"})
	if v.AsObject().Get("city").AsString() != "Oslo" {
		t.Errorf("expected untagged field to fall back to its lowercased name, got %v", v.AsObject().Get("city"))
	}
}

func TestStructToValueOmitsDashTaggedField(t *testing.T) {
	type WithSecret struct {
		Name   string `bson:"name"`
		Secret string `bson:"-"`
	}
	v := StructToValue(WithSecret{Name: "a", Secret: "b"})
	if !v.AsObject().Get("secret").IsMissing() {
		t.Error("expected a dash-tagged field to be omitted entirely")
	}
}

func TestStructToValueOmitsEmptyOnOmitempty(t *testing.T) {
	type Optional struct {
		Name string `bson:"name,omitempty"`
		Note string `bson:"note,omitempty"`
	}
	v := StructToValue(Optional{Name: "a"})
	if !v.AsObject().Get("note").IsMissing() {
		t.Error("expected a zero-valued omitempty field to be dropped")
	}
	if v.AsObject().Get("name").AsString() != "a" {
		t.Error("expected a non-zero field to survive omitempty")
	}
}

func TestStructToValueTimeField(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	type Event struct {
		At time.Time `bson:"at"`
	}
	v := StructToValue(Event{At: now})
	got := v.AsObject().Get("at")
	if got.Kind() != KindDate {
		t.Fatalf("expected a time.Time field to encode as KindDate, got %v", got.Kind())
	}
	if !got.AsDate().Equal(now) {
		t.Errorf("expected %v, got %v", now, got.AsDate())
	}
}

func TestStructToValueNestedStructAndSlice(t *testing.T) {
	type Address struct {
		City string `bson:"city"`
	}
	type Person struct {
		Name      string    `bson:"name"`
		Addresses []Address `bson:"addresses"`
	}
	v := StructToValue(Person{
		Name:      "Bo",
		Addresses: []Address{{City: "Bergen"}, {City: "Oslo"}},
	})
	arr := v.AsObject().Get("addresses").AsArray()
	if len(arr) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(arr))
	}
	if arr[0].AsObject().Get("city").AsString() != "Bergen" {
		t.Errorf("expected first address city 'Bergen', got %v", arr[0].AsObject().Get("city"))
	}
}

func TestStructToValueNilPointer(t *testing.T) {
	type WithPtr struct {
		Name *string `bson:"name"`
	}
	v := StructToValue(WithPtr{})
	if v.AsObject().Get("name").Kind() != KindNull {
		t.Errorf("expected a nil pointer field to encode as null, got %v", v.AsObject().Get("name").Kind())
	}
}

func TestValueToStructSimpleStruct(t *testing.T) {
	o := NewObject()
	o.Set("name", String("Ann"))
	o.Set("age", Int(30))

	var dst struct {
		Name string `bson:"name"`
		Age  int    `bson:"age"`
	}
	if err := ValueToStruct(ObjectValue(o), &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Name != "Ann" || dst.Age != 30 {
		t.Errorf("got %+v", dst)
	}
}

func TestValueToStructMissingFieldLeavesZeroValue(t *testing.T) {
	o := NewObject()
	o.Set("name", String("Ann"))

	dst := struct {
		Name string `bson:"name"`
		Age  int    `bson:"age"`
	}{Age: 99}
	if err := ValueToStruct(ObjectValue(o), &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Age != 99 {
		t.Errorf("expected a missing field to leave the destination untouched, got %d", dst.Age)
	}
}

func TestValueToStructTimeField(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewObject()
	o.Set("at", Date(now))

	var dst struct {
		At time.Time `bson:"at"`
	}
	if err := ValueToStruct(ObjectValue(o), &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dst.At.Equal(now) {
		t.Errorf("expected %v, got %v", now, dst.At)
	}
}

func TestValueToStructRejectsNonDateIntoTime(t *testing.T) {
	o := NewObject()
	o.Set("at", String("not a date"))

	var dst struct {
		At time.Time `bson:"at"`
	}
	if err := ValueToStruct(ObjectValue(o), &dst); err == nil {
		t.Error("expected an error decoding a non-date Value into a time.Time field")
	}
}

func TestValueToStructSliceOfStructs(t *testing.T) {
	item := func(city string) Value {
		o := NewObject()
		o.Set("city", String(city))
		return ObjectValue(o)
	}
	o := NewObject()
	o.Set("addresses", Array(item("Bergen"), item("Oslo")))

	var dst struct {
		Addresses []struct {
			City string `bson:"city"`
		} `bson:"addresses"`
	}
	if err := ValueToStruct(ObjectValue(o), &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dst.Addresses) != 2 || dst.Addresses[0].City != "Bergen" {
		t.Errorf("got %+v", dst.Addresses)
	}
}

func TestValueToStructMap(t *testing.T) {
	o := NewObject()
	o.Set("a", Int(1))
	o.Set("b", Int(2))

	var dst map[string]int
	if err := ValueToStruct(ObjectValue(o), &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst["a"] != 1 || dst["b"] != 2 {
		t.Errorf("got %+v", dst)
	}
}

func TestValueToStructRequiresPointerDestination(t *testing.T) {
	var dst struct{}
	if err := ValueToStruct(Null(), dst); err == nil {
		t.Error("expected an error when the destination is not a pointer")
	}
}

func TestStructValueRoundTrip(t *testing.T) {
	type Inner struct {
		Tag string `bson:"tag"`
	}
	type Outer struct {
		ID      string    `bson:"_id"`
		Count   int64     `bson:"count"`
		When    time.Time `bson:"when"`
		Inner   Inner     `bson:"inner"`
		Nil     *string   `bson:"nil"`
		Skipped string    `bson:"-"`
	}
	now := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	original := Outer{
		ID:      "x1",
		Count:   7,
		When:    now,
		Inner:   Inner{Tag: "t"},
		Skipped: "should not round-trip",
	}

	v := StructToValue(original)
	var decoded Outer
	decoded.Skipped = "untouched"
	if err := ValueToStruct(v, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded.Skipped = ""
	original.Skipped = ""
	if !reflect.DeepEqual(original.ID, decoded.ID) || original.Count != decoded.Count ||
		!original.When.Equal(decoded.When) || original.Inner != decoded.Inner {
		t.Fatalf("round trip mismatch: original=%+v decoded=%+v", original, decoded)
	}
}

func TestBsonFieldNameParsesOptions(t *testing.T) {
	type S struct {
		A string `bson:"a,omitempty"`
		B string
		C string `bson:"-"`
	}
	typ := reflect.TypeOf(S{})

	name, omitempty, skip := bsonFieldName(typ.Field(0))
	if name != "a" || !omitempty || skip {
		t.Errorf("field A: got name=%q omitempty=%v skip=%v", name, omitempty, skip)
	}

	name, omitempty, skip = bsonFieldName(typ.Field(1))
	if name != "b" || omitempty || skip {
		t.Errorf("field B: got name=%q omitempty=%v skip=%v", name, omitempty, skip)
	}

	_, _, skip = bsonFieldName(typ.Field(2))
	if !skip {
		t.Error("expected a dash-tagged field to be marked skip")
	}
}
