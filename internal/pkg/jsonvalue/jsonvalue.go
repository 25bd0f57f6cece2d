// Package jsonvalue models arbitrary decoded JSON as a closed set of kinds so
// callers can walk tenant-supplied documents without type assertions.
package jsonvalue

import (
	"bytes"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is an immutable JSON node. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Int(n int) Value { return Value{kind: KindNumber, num: json.Number(strconv.Itoa(n))} }

func Array(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// Parse decodes a JSON document. Blank input decodes to null.
func Parse(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Null(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null(), err
	}
	return FromAny(raw), nil
}

// FromAny converts the output of a generic JSON decode, or plain Go maps and
// slices built by hand, into a Value. Unsupported types become their string form.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		return Value{kind: KindNumber, num: t}
	case float64:
		return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(t, 'f', -1, 64))}
	case float32:
		return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(float64(t), 'f', -1, 32))}
	case int:
		return Int(t)
	case int32:
		return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(int64(t), 10))}
	case int64:
		return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(t, 10))}
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Array(items)
	case []map[string]any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Array(items)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromAny(item)
		}
		return Object(fields)
	case map[string]string:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = String(item)
		}
		return Object(fields)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return Null()
		}
		parsed, err := Parse(data)
		if err != nil {
			return Null()
		}
		return parsed
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the string payload of a string node.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Int reads a number, or a string holding an integer, truncating fractions.
func (v Value) Int() (int, bool) {
	switch v.kind {
	case KindNumber:
		if n, err := v.num.Int64(); err == nil {
			return int(n), true
		}
		f, err := v.num.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	case KindString:
		n, err := strconv.Atoi(v.str)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Items returns the elements of an array node.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Field returns a direct member of an object node.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	f, ok := v.obj[key]
	return f, ok
}

func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, ".") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// Get walks a dotted path such as "data.items" or "results.0.rows". Numeric
// segments index arrays; empty segments are ignored. A blank path never resolves.
func (v Value) Get(path string) (Value, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Null(), false
	}
	cur := v
	for _, part := range parts {
		switch cur.kind {
		case KindObject:
			next, ok := cur.obj[part]
			if !ok {
				return Null(), false
			}
			cur = next
		case KindArray:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(cur.arr) {
				return Null(), false
			}
			cur = cur.arr[idx]
		default:
			return Null(), false
		}
	}
	return cur, true
}

// Set returns a copy of v with the node at path replaced by val. The path
// must already resolve; intermediate nodes are never created.
func (v Value) Set(path string, val Value) (Value, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return v, false
	}
	return v.set(parts, val)
}

func (v Value) set(parts []string, val Value) (Value, bool) {
	if len(parts) == 0 {
		return val, true
	}
	switch v.kind {
	case KindObject:
		child, ok := v.obj[parts[0]]
		if !ok {
			return v, false
		}
		next, ok := child.set(parts[1:], val)
		if !ok {
			return v, false
		}
		return v.With(parts[0], next), true
	case KindArray:
		idx, err := strconv.Atoi(parts[0])
		if err != nil || idx < 0 || idx >= len(v.arr) {
			return v, false
		}
		next, ok := v.arr[idx].set(parts[1:], val)
		if !ok {
			return v, false
		}
		items := slices.Clone(v.arr)
		items[idx] = next
		return Array(items), true
	default:
		return v, false
	}
}

// With returns a shallow copy of an object node with key set to val.
// Non-object receivers yield a single-member object.
func (v Value) With(key string, val Value) Value {
	fields := make(map[string]Value, len(v.obj)+1)
	if v.kind == KindObject {
		for k, f := range v.obj {
			fields[k] = f
		}
	}
	fields[key] = val
	return Object(fields)
}

// Any converts back to plain Go values (map[string]any, []any, json.Number, ...).
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Any()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.Any()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String renders compact JSON.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}
