package jsrt

import (
	"math"

	"github.com/pavanmanishd/stackarena"
)

// Kind is the type tag of a Value.
type Kind uint32

const (
	Undefined Kind = iota
	Bool
	Number
	String
	Object
	Array
	Function
)

var kindNames = map[Kind]string{
	Undefined: "undefined",
	Bool:      "boolean",
	Number:    "number",
	String:    "string",
	Object:    "object",
	Array:     "array",
	Function:  "function",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Value is a runtime value. Strings, objects, arrays and functions refer to
// heap blocks owned by the Context that created them.
type Value struct {
	kind Kind
	bits uint64
}

// UndefinedValue is the zero Value.
var UndefinedValue = Value{}

// NumberValue wraps f.
func NumberValue(f float64) Value {
	return Value{kind: Number, bits: math.Float64bits(f)}
}

// BoolValue wraps b.
func BoolValue(b bool) Value {
	v := Value{kind: Bool}
	if b {
		v.bits = 1
	}
	return v
}

// Kind returns the type tag.
func (v Value) Kind() Kind {
	return v.kind
}

// Float returns the number held by v, NaN for other kinds.
func (v Value) Float() float64 {
	if v.kind != Number {
		return math.NaN()
	}
	return math.Float64frombits(v.bits)
}

func (v Value) isObject() bool {
	return v.kind == Object || v.kind == Array || v.kind == Function
}

func (v Value) ptr() stackarena.Ptr {
	return stackarena.Ptr(v.bits)
}
