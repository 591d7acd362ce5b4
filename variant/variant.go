// Package variant implements the dynamic value type exchanged between the
// procedure engine and embedded scripts, and the State map that carries it
// on a cursor's context.
package variant

import "fmt"

// Kind identifies which alternative of the closed Variant set is populated.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBoolean
	KindArray
	KindObject
)

// String returns a human-readable name for the kind, used in logging.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Variant is the closed dynamic value type: Null, String, Integer (signed
// 64-bit), Float (IEEE-754 double), Boolean, Array of Variant, or Object
// (string-keyed map of Variant). The zero value is Null.
type Variant struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	arr  []Variant
	obj  map[string]Variant
}

// Null returns the Null variant.
func Null() Variant { return Variant{kind: KindNull} }

// String returns a String variant.
func String(s string) Variant { return Variant{kind: KindString, str: s} }

// Integer returns a signed 64-bit Integer variant.
func Integer(i int64) Variant { return Variant{kind: KindInteger, i: i} }

// Float returns a 64-bit Float variant.
func Float(f float64) Variant { return Variant{kind: KindFloat, f: f} }

// Boolean returns a Boolean variant.
func Boolean(b bool) Variant { return Variant{kind: KindBoolean, b: b} }

// Array returns an Array variant wrapping the given ordered elements.
// The slice is copied so later mutation by the caller is not observed.
func Array(elems []Variant) Variant {
	cp := make([]Variant, len(elems))
	copy(cp, elems)
	return Variant{kind: KindArray, arr: cp}
}

// Object returns an Object variant wrapping the given string-keyed map.
// The map is copied so later mutation by the caller is not observed.
func Object(fields map[string]Variant) Variant {
	cp := make(map[string]Variant, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Variant{kind: KindObject, obj: cp}
}

// Kind reports which alternative is populated.
func (v Variant) Kind() Kind { return v.kind }

// IsNull reports whether v is the Null variant.
func (v Variant) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload and true if v is a String variant.
func (v Variant) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInteger returns the int64 payload and true if v is an Integer variant.
func (v Variant) AsInteger() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the float64 payload and true if v is a Float variant.
func (v Variant) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// AsBoolean returns the bool payload and true if v is a Boolean variant.
func (v Variant) AsBoolean() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

// AsArray returns the element slice and true if v is an Array variant.
// The returned slice is a copy.
func (v Variant) AsArray() ([]Variant, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	cp := make([]Variant, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

// AsObject returns the field map and true if v is an Object variant.
// The returned map is a copy.
func (v Variant) AsObject() (map[string]Variant, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	cp := make(map[string]Variant, len(v.obj))
	for k, val := range v.obj {
		cp[k] = val
	}
	return cp, true
}

// Equal reports deep structural equality between two variants.
func Equal(a, b Variant) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindInteger:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindBoolean:
		return a.b == b.b
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// GoString renders a debug representation, used by %v/%#v in logs.
func (v Variant) GoString() string {
	switch v.kind {
	case KindNull:
		return "Null"
	case KindString:
		return fmt.Sprintf("String(%q)", v.str)
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("Float(%g)", v.f)
	case KindBoolean:
		return fmt.Sprintf("Boolean(%t)", v.b)
	case KindArray:
		return fmt.Sprintf("Array(len=%d)", len(v.arr))
	case KindObject:
		return fmt.Sprintf("Object(len=%d)", len(v.obj))
	default:
		return "Invalid"
	}
}
