package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of a Value.
type ValueKind int

// Value variants.
const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Value is a tagged-variant payload for categorical entries. It replaces
// untyped "bag of any" maps so consumers can switch exhaustively on Kind
// instead of runtime-casting. Values marshal to and from natural JSON.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	List []Value
	Map  map[string]Value
}

// StringValue constructs a string variant.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue constructs a number variant.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// BoolValue constructs a boolean variant.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// ListValue constructs a list variant.
func ListValue(items ...Value) Value { return Value{Kind: KindList, List: items} }

// MapValue constructs a map variant.
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// String renders the value for display and substring search. Map keys are
// emitted in sorted order so the rendering is deterministic.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + v.Map[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

// MarshalJSON encodes the value as the natural JSON form of its variant.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindMap:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes arbitrary JSON into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Value{Kind: KindNull}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var list []Value
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*v = Value{Kind: KindList, List: list}
	case '{':
		var m map[string]Value
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = Value{Kind: KindMap, Map: m}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("value: unsupported JSON payload %q", trimmed)
		}
		*v = NumberValue(n)
	}
	return nil
}
