package ir

import (
	"fmt"
	"math"
	"strconv"
)

// Value is a typed IR operand: a temporary, parameter, global or constant.
type Value struct {
	Type  Type
	Ref   string
	konst bool
	ival  int64
}

// Local references a named local or parameter (%name).
func Local(name string, t Type) Value {
	return Value{Type: t, Ref: "%" + name}
}

// GlobalRef references a global symbol (@name) in the given address space.
func GlobalRef(symbol string, space AddrSpace) Value {
	return Value{Type: Pointer(space), Ref: "@" + symbol}
}

// ConstInt returns an integer constant of type s.
func ConstInt(s ScalarType, v int64) Value {
	if s == Int32 {
		v = int64(int32(v))
	}
	return Value{Type: Scalar(s), Ref: strconv.FormatInt(v, 10), konst: true, ival: v}
}

// ConstFloat returns a floating point constant of type s.
// Constants are written in the hexadecimal double form so every value is exact.
func ConstFloat(s ScalarType, v float64) Value {
	if s == Float32 {
		v = float64(float32(v))
	}
	return Value{Type: Scalar(s), Ref: fmt.Sprintf("0x%016X", math.Float64bits(v)), konst: true}
}

// IntConst returns the value of an integer constant.
func (v Value) IntConst() (int64, bool) {
	if !v.konst || v.Type.Ptr || !v.Type.Scalar.IsInt() {
		return 0, false
	}
	return v.ival, true
}

// IsConst reports whether v is a literal.
func (v Value) IsConst() bool {
	return v.konst
}

// Operand renders v as a typed operand, e.g. "i32 %t1".
func (v Value) Operand() string {
	return v.Type.String() + " " + v.Ref
}

func (v Value) String() string {
	return v.Operand()
}
