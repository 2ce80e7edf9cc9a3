// Package measure maps named metrics onto projects and runs them in bounded
// parallel batches.
package measure

import (
	"math"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindNull marks a value that could not be computed for a project.
	KindNull Kind = iota
	// KindNumber holds an integer or floating point measurement.
	KindNumber
	// KindBool holds a yes/no judgement such as packageability.
	KindBool
	// KindString holds a textual result such as a licence identifier.
	KindString
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a single metric result. The zero Value is null, which is distinct
// from a computed zero.
type Value struct {
	kind Kind
	num  float64
	b    bool
	s    string
}

// Null returns the "not computable" value.
func Null() Value { return Value{} }

// Number wraps a floating point measurement. NaN is treated as null.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Null()
	}
	return Value{kind: KindNumber, num: f}
}

// Int wraps an integer measurement.
func Int(i int) Value { return Value{kind: KindNumber, num: float64(i)} }

// Bool wraps a boolean measurement.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a textual measurement.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload. Booleans convert to 0 or 1.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Boolean returns the boolean payload.
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Text returns the natural textual form of v, or nullToken when v is null.
func (v Value) Text(nullToken string) string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	default:
		return nullToken
	}
}

// String implements fmt.Stringer. Null renders as "null".
func (v Value) String() string {
	return v.Text("null")
}
