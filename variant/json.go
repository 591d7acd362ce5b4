package variant

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FromJSON decodes a JSON document into a Variant, the same shape of
// conversion script/host.go performs for Lua values: object/array/string/
// number/bool/null map onto Object/Array/String/Integer-or-Float/
// Boolean/Null. A JSON number decodes to Integer only when it has no
// fractional part, matching encoding/json's float64 intermediate
// representation.
func FromJSON(data []byte) (Variant, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Null(), fmt.Errorf("donut: decode JSON value: %w", err)
	}
	return fromAny(raw), nil
}

func fromAny(raw any) Variant {
	switch v := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(v)
	case bool:
		return Boolean(v)
	case float64:
		if v == float64(int64(v)) {
			return Integer(int64(v))
		}
		return Float(v)
	case []any:
		elems := make([]Variant, len(v))
		for i, e := range v {
			elems[i] = fromAny(e)
		}
		return Array(elems)
	case map[string]any:
		fields := make(map[string]Variant, len(v))
		for k, e := range v {
			fields[k] = fromAny(e)
		}
		return Object(fields)
	default:
		return Null()
	}
}

// ToJSON encodes v as a JSON document.
func ToJSON(v Variant) ([]byte, error) {
	return json.Marshal(toAny(v))
}

func toAny(v Variant) any {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindString:
		s, _ := v.AsString()
		return s
	case KindInteger:
		i, _ := v.AsInteger()
		return i
	case KindFloat:
		f, _ := v.AsFloat()
		return f
	case KindBoolean:
		b, _ := v.AsBoolean()
		return b
	case KindArray:
		arr, _ := v.AsArray()
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = toAny(e)
		}
		return out
	case KindObject:
		obj, _ := v.AsObject()
		out := make(map[string]any, len(obj))
		for k, e := range obj {
			out[k] = toAny(e)
		}
		return out
	default:
		return nil
	}
}

// StateToJSON renders a State's keys in sorted order as a JSON object, for
// deterministic CLI output.
func StateToJSON(s *State) ([]byte, error) {
	keys := s.Keys()
	sort.Strings(keys)
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, _ := s.Get(k)
		out[k] = toAny(v)
	}
	return json.MarshalIndent(out, "", "  ")
}

// StateFromJSON decodes a JSON object into a fresh State, one key per
// top-level field.
func StateFromJSON(data []byte) (*State, error) {
	v, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("donut: initial state must be a JSON object")
	}
	s := NewState()
	for k, val := range obj {
		s.Set(k, val)
	}
	return s, nil
}
