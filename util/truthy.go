package util

import (
	"math"
	"reflect"
)

// Truthy applies JavaScript truthiness: nil, false, "", 0 and NaN are falsy,
// everything else (including empty objects and arrays) is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return len(t) != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
