// utils.go - Value<->Go marshaling helpers: bridges arbitrary Go structs
// (addressed by "bson" struct tags, falling back to the field name) into
// and out of the Value model.
//
// Reflects over each field's "bson" tag to translate between a Go
// struct and aggo's own Value union. Primary-key generation for
// documents ingested without one is handled by ensurePrimaryKey
// (docid.go) and is not duplicated here.
package aggo

import (
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// StructToValue converts an arbitrary Go value into a Value via
// FromGo/reflection: structs are walked field-by-field using each
// field's "bson" tag (or, lacking one, its lowercased name) as the
// output key; anything FromGo already understands (maps, slices,
// primitives, time.Time) is delegated to it directly.
func StructToValue(in interface{}) Value {
	if in == nil {
		return Null()
	}
	if v, ok := in.(Value); ok {
		return v
	}
	val := reflect.ValueOf(in)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return Null()
		}
		val = val.Elem()
	}
	switch val.Kind() {
	case reflect.Struct:
		if val.Type() == timeType {
			return FromGo(val.Interface())
		}
		return structValueToValue(val)
	case reflect.Slice, reflect.Array:
		out := make([]Value, val.Len())
		for i := range out {
			out[i] = StructToValue(val.Index(i).Interface())
		}
		return Array(out...)
	case reflect.Map:
		o := NewObject()
		for _, k := range val.MapKeys() {
			o.Set(toString(k), StructToValue(val.MapIndex(k).Interface()))
		}
		return ObjectValue(o)
	default:
		return FromGo(in)
	}
}

func toString(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	return reflect.ValueOf(v.Interface()).String()
}

func structValueToValue(val reflect.Value) Value {
	t := val.Type()
	o := NewObject()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		name, omitempty, skip := bsonFieldName(field)
		if skip {
			continue
		}
		fv := val.Field(i)
		if omitempty && fv.IsZero() {
			continue
		}
		o.Set(name, StructToValue(fv.Interface()))
	}
	return ObjectValue(o)
}

// bsonFieldName resolves field's output key from its "bson" tag
// (name,option1,option2...), falling back to the lowercased Go field
// name when no tag is present.
func bsonFieldName(field reflect.StructField) (name string, omitempty bool, skip bool) {
	tag := field.Tag.Get("bson")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	return name, omitempty, false
}

// ValueToStruct decodes v into dst, a pointer to a struct, slice, or map,
// using the same bson-tag field matching as StructToValue.
func ValueToStruct(v Value, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return NewEngineError(TypeError, "", "ValueToStruct requires a non-nil pointer destination")
	}
	return valueInto(v, rv.Elem())
}

func valueInto(v Value, dst reflect.Value) error {
	switch dst.Kind() {
	case reflect.Struct:
		if dst.Type() == timeType {
			if v.Kind() != KindDate {
				return NewEngineError(TypeError, "", "cannot decode non-date Value into time.Time")
			}
			dst.Set(reflect.ValueOf(v.AsDate()))
			return nil
		}
		if v.Kind() != KindObject {
			return NewEngineError(TypeError, "", "cannot decode non-object Value into struct")
		}
		t := dst.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue
			}
			name, _, skip := bsonFieldName(field)
			if skip {
				continue
			}
			fv := v.AsObject().Get(name)
			if fv.IsMissing() {
				continue
			}
			if err := valueInto(fv, dst.Field(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Ptr:
		if v.IsNullish() {
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return valueInto(v, dst.Elem())
	case reflect.Slice:
		if v.Kind() != KindArray {
			return NewEngineError(TypeError, "", "cannot decode non-array Value into slice")
		}
		arr := v.AsArray()
		out := reflect.MakeSlice(dst.Type(), len(arr), len(arr))
		for i, e := range arr {
			if err := valueInto(e, out.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Map:
		if v.Kind() != KindObject {
			return NewEngineError(TypeError, "", "cannot decode non-object Value into map")
		}
		out := reflect.MakeMap(dst.Type())
		for _, k := range v.AsObject().Keys() {
			ev := reflect.New(dst.Type().Elem()).Elem()
			if err := valueInto(v.AsObject().Get(k), ev); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k), ev)
		}
		dst.Set(out)
		return nil
	default:
		goVal := ToGo(v)
		if goVal == nil {
			return nil
		}
		gv := reflect.ValueOf(goVal)
		if gv.Type().ConvertibleTo(dst.Type()) {
			dst.Set(gv.Convert(dst.Type()))
			return nil
		}
		return NewEngineError(TypeError, "", "cannot decode %T into %s", goVal, dst.Type())
	}
}
