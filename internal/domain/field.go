package domain

import (
	"fmt"
	"reflect"
)

// Accessor reads and writes one property of a domain object.
// Set is nil for read-only properties.
type Accessor struct {
	Type TypeRef
	Get  func(obj any) (any, error)
	Set  func(obj any, value any) error
}

// Field builds a typed accessor for objects of type T holding a V.
// Typed nils read as nil. On write, nil stores the zero V and a []any is
// converted element by element into a slice-typed V.
func Field[T any, V any](typ TypeRef, get func(T) V, set func(T, V)) Accessor {
	a := ReadOnly(typ, get)
	if set != nil {
		a.Set = func(obj any, value any) error {
			o, ok := obj.(T)
			if !ok {
				return fmt.Errorf("domain: %T is not a %s", obj, typeName[T]())
			}
			v, err := convert[V](value)
			if err != nil {
				return err
			}
			set(o, v)
			return nil
		}
	}
	return a
}

// ReadOnly builds an accessor without a setter.
func ReadOnly[T any, V any](typ TypeRef, get func(T) V) Accessor {
	return Accessor{
		Type: typ,
		Get: func(obj any) (any, error) {
			o, ok := obj.(T)
			if !ok {
				return nil, fmt.Errorf("domain: %T is not a %s", obj, typeName[T]())
			}
			return NormalizeNil(get(o)), nil
		},
	}
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func convert[V any](value any) (V, error) {
	var zero V
	if value == nil {
		return zero, nil
	}
	if v, ok := value.(V); ok {
		return v, nil
	}

	target := reflect.TypeFor[V]()
	rv := reflect.ValueOf(value)

	if target.Kind() == reflect.Slice {
		elems, ok := Elements(value)
		if !ok {
			return zero, fmt.Errorf("domain: cannot assign %T to %s", value, target)
		}
		out := reflect.MakeSlice(target, len(elems), len(elems))
		for i, e := range elems {
			ev, err := convertValue(e, target.Elem())
			if err != nil {
				return zero, fmt.Errorf("domain: element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out.Interface().(V), nil
	}

	ev, err := convertValue(rv.Interface(), target)
	if err != nil {
		return zero, err
	}
	return ev.Interface().(V), nil
}

func convertValue(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) {
		return rv.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", value, target)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// NonZero builds a read-only accessor that reads the zero V as nil. Use it
// for id and version properties of objects that have not been stored yet.
func NonZero[T any, V comparable](typ TypeRef, get func(T) V) Accessor {
	a := ReadOnly(typ, get)
	inner := a.Get
	a.Get = func(obj any) (any, error) {
		v, err := inner(obj)
		if err != nil || v == nil {
			return v, err
		}
		var zero V
		if v.(V) == zero {
			return nil, nil
		}
		return v, nil
	}
	return a
}
