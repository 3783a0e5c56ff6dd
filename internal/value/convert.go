package value

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// FromGo converts decoded data (from YAML, TOML, JSON or a host runtime
// export) into a Value. Unknown types become Opaque.
func FromGo(x any) Value {
	return fromGo(x, 0)
}

func fromGo(x any, depth int) Value {
	if depth > maxDepth {
		return Opaque{Desc: "[Circular]"}
	}

	switch t := x.(type) {
	case nil:
		return Null{}
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case time.Time:
		return String(t.Format(time.RFC3339Nano))
	case []any:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = fromGo(item, depth+1)
		}
		return out
	case map[string]any:
		out := make(Map, len(t))
		for k, item := range t {
			out[k] = fromGo(item, depth+1)
		}
		return out
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make(List, rv.Len())
		for i := range out {
			out[i] = fromGo(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Map:
		out := make(Map, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = fromGo(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}
		}
		return fromGo(rv.Elem().Interface(), depth+1)
	}

	return Opaque{Desc: fmt.Sprint(x)}
}

// ToGo converts v into plain Go data suitable for encoding/json. NaN and
// infinities become their names as strings, Sets become slices and
// Undefined becomes nil.
func ToGo(v Value) any {
	switch tv := v.(type) {
	case nil, Undefined, Null:
		return nil
	case Bool:
		return bool(tv)
	case Number:
		f := float64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return FormatNumber(f)
		}
		return f
	case String:
		return string(tv)
	case List:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = ToGo(item)
		}
		return out
	case Set:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = ToGo(item)
		}
		return out
	case Map:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = ToGo(item)
		}
		return out
	case Opaque:
		return tv.Desc
	}
	return nil
}
