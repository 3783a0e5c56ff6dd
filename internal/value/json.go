package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Wire tags for variants plain JSON cannot express. An object whose only
// key is one of these is decoded as the tagged variant.
const (
	tagNumber    = "$num"
	tagUndefined = "$undefined"
	tagSet       = "$set"
	tagMap       = "$map"
	tagOpaque    = "$opaque"
)

// Marshal encodes v as JSON. Plain data encodes as plain JSON; NaN,
// Infinity, Undefined, Set, Opaque and maps with "$"-prefixed keys use
// single-key tagged objects so that Unmarshal restores them exactly.
func Marshal(v Value) ([]byte, error) {
	return json.Marshal(toWire(v, 0))
}

// Unmarshal decodes JSON produced by Marshal (or any plain JSON).
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return fromWire(raw, 0)
}

func toWire(v Value, depth int) any {
	if depth > maxDepth {
		return map[string]any{tagOpaque: "..."}
	}

	switch tv := v.(type) {
	case nil, Undefined:
		return map[string]any{tagUndefined: true}
	case Null:
		return nil
	case Bool:
		return bool(tv)
	case Number:
		f := float64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return map[string]any{tagNumber: FormatNumber(f)}
		}
		return f
	case String:
		return string(tv)
	case List:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = toWire(item, depth+1)
		}
		return out
	case Set:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = toWire(item, depth+1)
		}
		return map[string]any{tagSet: out}
	case Map:
		out := make(map[string]any, len(tv))
		escaped := false
		for k, item := range tv {
			if strings.HasPrefix(k, "$") {
				escaped = true
			}
			out[k] = toWire(item, depth+1)
		}
		if escaped {
			return map[string]any{tagMap: out}
		}
		return out
	case Opaque:
		return map[string]any{tagOpaque: tv.Desc}
	}
	return nil
}

func fromWire(raw any, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}

	switch t := raw.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("parse number %q: %w", t, err)
		}
		return Number(f), nil
	case []any:
		out := make(List, len(t))
		for i, item := range t {
			v, err := fromWire(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case map[string]any:
		if len(t) == 1 {
			if v, ok, err := fromTagged(t, depth); ok || err != nil {
				return v, err
			}
		}
		return mapFromWire(t, depth)
	}
	return nil, fmt.Errorf("unexpected JSON type %T", raw)
}

func fromTagged(t map[string]any, depth int) (Value, bool, error) {
	for tag, inner := range t {
		switch tag {
		case tagUndefined:
			return Undefined{}, true, nil
		case tagNumber:
			s, _ := inner.(string)
			switch s {
			case "NaN":
				return Number(math.NaN()), true, nil
			case "Infinity":
				return Number(math.Inf(1)), true, nil
			case "-Infinity":
				return Number(math.Inf(-1)), true, nil
			}
			return nil, true, fmt.Errorf("invalid tagged number %v", inner)
		case tagOpaque:
			return Opaque{Desc: fmt.Sprint(inner)}, true, nil
		case tagSet:
			items, ok := inner.([]any)
			if !ok {
				return nil, true, fmt.Errorf("tagged set must hold an array")
			}
			out := make(Set, len(items))
			for i, item := range items {
				v, err := fromWire(item, depth+1)
				if err != nil {
					return nil, true, err
				}
				out[i] = v
			}
			return out, true, nil
		case tagMap:
			m, ok := inner.(map[string]any)
			if !ok {
				return nil, true, fmt.Errorf("tagged map must hold an object")
			}
			v, err := mapFromWire(m, depth)
			return v, true, err
		}
	}
	return nil, false, nil
}

func mapFromWire(t map[string]any, depth int) (Value, error) {
	out := make(Map, len(t))
	for k, item := range t {
		v, err := fromWire(item, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
