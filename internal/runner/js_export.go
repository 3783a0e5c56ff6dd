package runner

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/felixgeelhaar/drillpad/internal/value"
)

const (
	maxConvertDepth = 128
	// maxConvertItems caps the elements read from one array, set, map or
	// object. Longer collections end in a "..." placeholder.
	maxConvertItems = 10000
)

// converter turns goja values into runtime-neutral values.
type converter struct {
	ctx       context.Context
	vm        *goja.Runtime
	arrayFrom goja.Callable
	seen      map[*goja.Object]bool
}

// newConverter must run before user code so that a snippet replacing
// Array.from cannot change how results are read. Conversion panics with
// the context error once ctx is done.
func newConverter(ctx context.Context, vm *goja.Runtime) *converter {
	c := &converter{ctx: ctx, vm: vm, seen: make(map[*goja.Object]bool)}
	if arr := vm.Get("Array"); arr != nil {
		if from, ok := goja.AssertFunction(arr.ToObject(vm).Get("from")); ok {
			c.arrayFrom = from
		}
	}
	return c
}

func (c *converter) convert(v goja.Value) value.Value {
	return c.conv(v, 0)
}

// safeConvert converts v, turning a panic raised by a throwing getter or
// an interrupt into an error.
func (c *converter) safeConvert(v goja.Value) (out value.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", p)
		}
	}()
	return c.convert(v), nil
}

func (c *converter) conv(v goja.Value, depth int) value.Value {
	if v == nil || goja.IsUndefined(v) {
		return value.Undefined{}
	}
	if goja.IsNull(v) {
		return value.Null{}
	}
	if depth > maxConvertDepth {
		return value.Opaque{Desc: "..."}
	}
	c.checkBudget()

	obj, ok := v.(*goja.Object)
	if !ok {
		return primitive(v)
	}
	if c.seen[obj] {
		return value.Opaque{Desc: "[Circular]"}
	}
	c.seen[obj] = true
	defer delete(c.seen, obj)

	switch obj.ClassName() {
	case "Array":
		n := obj.Get("length").ToInteger()
		var out value.List
		for i := int64(0); i < n; i++ {
			if i == maxConvertItems {
				return append(out, value.Opaque{Desc: "..."})
			}
			out = append(out, c.conv(obj.Get(fmt.Sprint(i)), depth+1))
		}
		if out == nil {
			out = value.List{}
		}
		return out

	case "Set":
		items, more := c.entries(obj)
		out := make(value.Set, len(items))
		for i, item := range items {
			out[i] = c.conv(item, depth+1)
		}
		if more {
			out = append(out, value.Opaque{Desc: "..."})
		}
		return out

	case "Map":
		out := make(value.Map)
		entries, more := c.entries(obj)
		if more {
			out["..."] = value.Opaque{Desc: "..."}
		}
		for _, entry := range entries {
			pair, ok := entry.(*goja.Object)
			if !ok {
				continue
			}
			key := c.conv(pair.Get("0"), depth+1)
			out[value.Display(key)] = c.conv(pair.Get("1"), depth+1)
		}
		return out

	case "Function":
		if name := obj.Get("name"); name != nil && name.String() != "" {
			return value.Opaque{Desc: "[Function: " + name.String() + "]"}
		}
		return value.Opaque{Desc: "[Function (anonymous)]"}

	case "Date":
		if t, ok := obj.Export().(time.Time); ok {
			return value.Opaque{Desc: t.UTC().Format(time.RFC3339Nano)}
		}
		return value.Opaque{Desc: "Invalid Date"}

	case "Promise":
		return value.Opaque{Desc: "Promise {}"}

	case "RegExp", "Error", "Number", "String", "Boolean", "Symbol", "BigInt":
		return value.Opaque{Desc: obj.String()}
	}

	keys := obj.Keys()
	out := make(value.Map, min(len(keys), maxConvertItems))
	for i, key := range keys {
		if i == maxConvertItems {
			out["..."] = value.Opaque{Desc: "..."}
			break
		}
		out[key] = c.conv(obj.Get(key), depth+1)
	}
	return out
}

// checkBudget aborts conversion once the execution budget is spent.
func (c *converter) checkBudget() {
	if c.ctx != nil && c.ctx.Err() != nil {
		panic(c.ctx.Err())
	}
}

// entries lists a Map's [key, value] pairs or a Set's values, at most
// maxConvertItems of them. more reports whether any were left out.
func (c *converter) entries(obj *goja.Object) (items []goja.Value, more bool) {
	if c.arrayFrom == nil {
		return nil, false
	}
	arr, err := c.arrayFrom(goja.Undefined(), obj)
	if err != nil {
		return nil, false
	}
	list, ok := arr.(*goja.Object)
	if !ok {
		return nil, false
	}
	n := list.Get("length").ToInteger()
	for i := int64(0); i < n; i++ {
		if i == maxConvertItems {
			return items, true
		}
		c.checkBudget()
		items = append(items, list.Get(fmt.Sprint(i)))
	}
	return items, false
}

func primitive(v goja.Value) value.Value {
	switch x := v.Export().(type) {
	case bool:
		return value.Bool(x)
	case int64:
		return value.Number(float64(x))
	case float64:
		return value.Number(x)
	case string:
		return value.String(x)
	case *big.Int:
		return value.Opaque{Desc: x.String() + "n"}
	}
	return value.Opaque{Desc: v.String()}
}

// display renders console arguments separated by spaces. When the budget
// runs out mid-way the line is cut short; the interrupt then stops the
// script as soon as control returns to it.
func (c *converter) display(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		v, err := c.safeConvert(arg)
		if err != nil {
			if c.ctx == nil || c.ctx.Err() == nil {
				panic(err)
			}
			parts = append(parts, "...")
			break
		}
		parts = append(parts, value.Display(v))
	}
	return strings.Join(parts, " ")
}

// thrown extracts a name and message from a thrown value. Error objects
// report their own name and message; anything else is stringified.
func (c *converter) thrown(v goja.Value) (name, msg string) {
	defer func() {
		if recover() != nil {
			name, msg = "", "uncaught exception"
		}
	}()
	if v == nil || goja.IsUndefined(v) {
		return "", "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
				name = n.String()
			}
			return name, m.String()
		}
	}
	return "", value.Display(c.convert(v))
}
