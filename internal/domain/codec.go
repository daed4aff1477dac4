package domain

import (
	"fmt"
	"reflect"
	"time"

	"github.com/roach88/rfsync/internal/ir"
)

// IsScalar reports whether v is a value the codec passes through.
func IsScalar(v any) bool {
	_, ok := ScalarRefOf(v)
	return ok
}

// ScalarRefOf returns the scalar type of a runtime value.
func ScalarRefOf(v any) (TypeRef, bool) {
	switch v.(type) {
	case string:
		return StringType, true
	case int, int32, int64:
		return IntType, true
	case float32, float64:
		return FloatType, true
	case bool:
		return BoolType, true
	case time.Time:
		return DateType, true
	}
	return TypeRef{}, false
}

// EncodeScalar encodes a scalar domain value. Dates are sent as Unix
// milliseconds.
func EncodeScalar(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(val), nil
	case int:
		return ir.IRInt(val), nil
	case int32:
		return ir.IRInt(val), nil
	case int64:
		return ir.IRInt(val), nil
	case float32:
		return ir.IRFloat(val), nil
	case float64:
		return ir.IRFloat(val), nil
	case bool:
		return ir.IRBool(val), nil
	case time.Time:
		return ir.IRInt(val.UnixMilli()), nil
	}
	return nil, fmt.Errorf("domain: %T is not a scalar", v)
}

// DecodeScalar decodes an encoded value as the declared scalar type.
// Null decodes to nil for every type. KindAny decodes to the natural Go
// type of the encoding.
func DecodeScalar(t TypeRef, v ir.IRValue) (any, error) {
	if ir.IsNull(v) {
		return nil, nil
	}
	switch t.Kind {
	case KindString:
		if s, ok := v.(ir.IRString); ok {
			return string(s), nil
		}
	case KindInt:
		if n, ok := v.(ir.IRInt); ok {
			return int64(n), nil
		}
	case KindFloat:
		switch n := v.(type) {
		case ir.IRFloat:
			return float64(n), nil
		case ir.IRInt:
			return float64(n), nil
		}
	case KindBool:
		if b, ok := v.(ir.IRBool); ok {
			return bool(b), nil
		}
	case KindDate:
		if n, ok := v.(ir.IRInt); ok {
			return time.UnixMilli(int64(n)).UTC(), nil
		}
	case KindAny:
		switch val := v.(type) {
		case ir.IRString:
			return string(val), nil
		case ir.IRInt:
			return int64(val), nil
		case ir.IRFloat:
			return float64(val), nil
		case ir.IRBool:
			return bool(val), nil
		}
	}
	return nil, fmt.Errorf("domain: cannot decode %T as %s", v, t)
}

// Elements returns the members of a domain collection. Any slice type is
// accepted; ok is false for anything else.
func Elements(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = NormalizeNil(rv.Index(i).Interface())
	}
	return out, true
}

// NormalizeNil turns typed nil pointers, maps and slices into untyped nil so
// callers can test for absence with == nil.
func NormalizeNil(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}
