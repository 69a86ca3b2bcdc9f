// value.go - canonical Value representation shared by every execution tier.
//
// Every tier (columnar, row-id hot path, IVM, compatibility shim) evaluates
// expressions and compares documents through this single Value union so
// that semantics never diverge between tiers.

package aggo

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindArray
	KindObject
)

// Value is a tagged union over the document model's scalar and compound
// types, plus the Missing sentinel (distinct from Null: a field that does
// not exist vs. a field explicitly set to null).
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	arr  []Value
	obj  *Object
}

// Object is an ordered mapping from string key to Value. Equality on
// objects is key-set plus value-wise and ignores insertion order, but the
// order is preserved for projection and marshaling purposes.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty, ready-to-use Object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set assigns key to v, appending key to the iteration order if new.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Delete removes key, if present.
func (o *Object) Delete(key string) {
	if _, exists := o.values[key]; !exists {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Get returns the value at key, or Missing() if key is absent.
func (o *Object) Get(key string) Value {
	if o == nil {
		return Missing()
	}
	if v, ok := o.values[key]; ok {
		return v
	}
	return Missing()
}

// Has reports whether key is present (even if its value is Null).
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in insertion order. Callers must not mutate it.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns a deep-enough copy: a new Object with the same keys and
// Values (Values are themselves immutable once constructed).
func (o *Object) Clone() *Object {
	if o == nil {
		return NewObject()
	}
	c := &Object{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]Value, len(o.values)),
	}
	for k, v := range o.values {
		c.values[k] = v
	}
	return c
}

// Constructors.

func Missing() Value { return Value{kind: KindMissing} }
func Null() Value    { return Value{kind: KindNull} }
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}
func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}
func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}
func String(s string) Value {
	return Value{kind: KindString, s: s}
}
func Date(t time.Time) Value {
	return Value{kind: KindDate, t: t.UTC()}
}
func Array(vs ...Value) Value {
	return Value{kind: KindArray, arr: vs}
}
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports the variant tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsNullish() bool { return v.kind == KindNull || v.kind == KindMissing }

func (v Value) AsBool() bool          { return v.b }
func (v Value) AsInt() int64          { return v.i }
func (v Value) AsFloat() float64      { return v.f }
func (v Value) AsString() string      { return v.s }
func (v Value) AsDate() time.Time     { return v.t }
func (v Value) AsArray() []Value      { return v.arr }
func (v Value) AsObject() *Object     { return v.obj }

// Numeric promotes Int/Float to float64; other kinds return (0, false).
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Truthy implements MongoDB-style truthiness: false, null, missing, 0, NaN
// are falsy; everything else (including empty string, empty array/object)
// is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindMissing, KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0 && !math.IsNaN(v.f)
	default:
		return true
	}
}

// typeRank gives the fixed cross-type ordering rank used by Compare.
// MongoDB's BSON type-order: MinKey, Null, Numbers, String, Object, Array,
// BinData, ObjectId, Bool, Date, Timestamp, Regex, MaxKey. We collapse to
// the subset this Value union supports.
func typeRank(k Kind) int {
	switch k {
	case KindMissing:
		return 0
	case KindNull:
		return 1
	case KindInt, KindFloat:
		return 2
	case KindString:
		return 3
	case KindObject:
		return 4
	case KindArray:
		return 5
	case KindBool:
		return 6
	case KindDate:
		return 7
	}
	return 99
}

// Compare returns -1, 0, or 1 following the cross-type rank for values of
// different kinds, and the natural order within a kind (numeric with
// int/float promotion, byte-wise for strings, chronological for dates,
// element-wise for arrays, and key-then-value for objects).
func Compare(a, b Value) int {
	if an, aok := a.Numeric(); aok {
		if bn, bok := b.Numeric(); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}

	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch a.kind {
	case KindMissing, KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindDate:
		switch {
		case a.t.Before(b.t):
			return -1
		case a.t.After(b.t):
			return 1
		default:
			return 0
		}
	case KindArray:
		n := len(a.arr)
		if len(b.arr) < n {
			n = len(b.arr)
		}
		for i := 0; i < n; i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a.arr) < len(b.arr):
			return -1
		case len(a.arr) > len(b.arr):
			return 1
		default:
			return 0
		}
	case KindObject:
		ak := append([]string(nil), a.obj.Keys()...)
		bk := append([]string(nil), b.obj.Keys()...)
		sort.Strings(ak)
		sort.Strings(bk)
		n := len(ak)
		if len(bk) < n {
			n = len(bk)
		}
		for i := 0; i < n; i++ {
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := Compare(a.obj.Get(ak[i]), b.obj.Get(bk[i])); c != 0 {
				return c
			}
		}
		switch {
		case len(ak) < len(bk):
			return -1
		case len(ak) > len(bk):
			return 1
		default:
			return 0
		}
	}
	return 0
}

// Equal reports Value-model equality: type-strict for scalars (no string
// coercion), key-set-plus-value-wise for objects regardless of insertion
// order, and element-wise for arrays.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// Numeric cross-kind equality (int 2 == float 2.0) is allowed;
		// everything else requires identical kinds.
		an, aok := a.Numeric()
		bnv, bok := b.Numeric()
		if aok && bok {
			return an == bnv
		}
		return false
	}
	switch a.kind {
	case KindMissing, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindDate:
		return a.t.Equal(b.t)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.Keys() {
			if !b.obj.Has(k) || !Equal(a.obj.Get(k), b.obj.Get(k)) {
				return false
			}
		}
		return true
	}
	return false
}

// GroupKey produces a comparable, hashable representation of v suitable
// for use as a Go map key inside $group's accumulator table; it is built
// from the canonical string encoding so that two Values equal under Equal
// always map to the same key, and objects hash independent of key order.
func GroupKey(v Value) string {
	var sb strings.Builder
	writeGroupKey(&sb, v)
	return sb.String()
}

func writeGroupKey(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindMissing:
		sb.WriteString("M;")
	case KindNull:
		sb.WriteString("N;")
	case KindBool:
		fmt.Fprintf(sb, "B%t;", v.b)
	case KindInt:
		if f, ok := v.Numeric(); ok {
			fmt.Fprintf(sb, "#%v;", f)
		}
	case KindFloat:
		fmt.Fprintf(sb, "#%v;", v.f)
	case KindString:
		fmt.Fprintf(sb, "S%d:%s;", len(v.s), v.s)
	case KindDate:
		fmt.Fprintf(sb, "D%d;", v.t.UnixMilli())
	case KindArray:
		sb.WriteString("A[")
		for _, e := range v.arr {
			writeGroupKey(sb, e)
		}
		sb.WriteString("];")
	case KindObject:
		sb.WriteString("O{")
		keys := append([]string(nil), v.obj.Keys()...)
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(sb, "%d:%s=", len(k), k)
			writeGroupKey(sb, v.obj.Get(k))
		}
		sb.WriteString("};")
	}
}

// FromGo converts a plain Go value (as produced by typical JSON/BSON-ish
// decoding: nil, bool, int/int32/int64, float32/float64, string,
// time.Time, []interface{}, map[string]interface{}) into a Value. Unknown
// types are converted to their fmt.Sprint string form so construction
// never fails; callers needing strict typing should build Values directly.
func FromGo(in interface{}) Value {
	switch v := in.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case string:
		return String(v)
	case time.Time:
		return Date(v)
	case []interface{}:
		out := make([]Value, len(v))
		for i, e := range v {
			out[i] = FromGo(e)
		}
		return Array(out...)
	case []Value:
		return Array(v...)
	case map[string]interface{}:
		o := NewObject()
		for k, e := range v {
			o.Set(k, FromGo(e))
		}
		return ObjectValue(o)
	case *Object:
		return ObjectValue(v)
	default:
		return String(fmt.Sprint(v))
	}
}

// ToGo converts a Value back into a plain Go value for callers that want
// to decode results without depending on this package's Value type.
func ToGo(v Value) interface{} {
	switch v.kind {
	case KindMissing, KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindDate:
		return v.t
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToGo(e)
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, v.obj.Len())
		for _, k := range v.obj.Keys() {
			out[k] = ToGo(v.obj.Get(k))
		}
		return out
	}
	return nil
}
