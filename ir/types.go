package ir

import (
	"fmt"
	"reflect"

	"github.com/wippyai/gpu-runtime/errors"
)

// ScalarType enumerates the host scalar types that have an IR token.
type ScalarType uint8

const (
	Void ScalarType = iota
	Int32
	Int64
	Float32
	Float64
)

type scalarInfo struct {
	name  string
	token string
	size  int
	align int
	float bool
}

var scalarTable = [...]scalarInfo{
	Void:    {name: "void", token: "void", size: 0, align: 1},
	Int32:   {name: "int32", token: "i32", size: 4, align: 4},
	Int64:   {name: "int64", token: "i64", size: 8, align: 8},
	Float32: {name: "float32", token: "float", size: 4, align: 4, float: true},
	Float64: {name: "float64", token: "double", size: 8, align: 8, float: true},
}

var tokenIndex = func() map[string]ScalarType {
	m := make(map[string]ScalarType, len(scalarTable))
	for i, info := range scalarTable {
		m[info.token] = ScalarType(i)
	}
	return m
}()

// ScalarTypes returns every mapped scalar type in table order.
func ScalarTypes() []ScalarType {
	out := make([]ScalarType, len(scalarTable))
	for i := range scalarTable {
		out[i] = ScalarType(i)
	}
	return out
}

// Valid reports whether s is present in the mapping table.
func (s ScalarType) Valid() bool {
	return int(s) < len(scalarTable)
}

func (s ScalarType) String() string {
	if !s.Valid() {
		return fmt.Sprintf("scalar(%d)", uint8(s))
	}
	return scalarTable[s].name
}

// Token returns the IR type token for s.
func (s ScalarType) Token() (string, error) {
	if !s.Valid() {
		return "", errors.UnsupportedType(errors.PhaseEmit, s.String())
	}
	return scalarTable[s].token, nil
}

// ToLowLevel maps a host scalar type to its IR token.
func ToLowLevel(s ScalarType) (string, error) {
	return s.Token()
}

// ToHost maps an IR token back to its host scalar type.
func ToHost(token string) (ScalarType, error) {
	s, ok := tokenIndex[token]
	if !ok {
		return 0, errors.UnsupportedToken(errors.PhaseEmit, token)
	}
	return s, nil
}

// ParseToken is ToHost under the name tooling uses.
func ParseToken(token string) (ScalarType, error) {
	return ToHost(token)
}

// Size returns the storage size in bytes.
func (s ScalarType) Size() int {
	if !s.Valid() {
		return 0
	}
	return scalarTable[s].size
}

// Align returns the natural alignment in bytes.
func (s ScalarType) Align() int {
	if !s.Valid() {
		return 0
	}
	return scalarTable[s].align
}

// IsFloat reports whether s is a floating point type.
func (s ScalarType) IsFloat() bool {
	return s.Valid() && scalarTable[s].float
}

// IsInt reports whether s is an integer type.
func (s ScalarType) IsInt() bool {
	return s == Int32 || s == Int64
}

// Bits returns the bit width, 0 for void.
func (s ScalarType) Bits() int {
	return s.Size() * 8
}

// HostTypeOf maps a Go value's kind onto the table.
// Narrow integers, unsigned kinds and everything else fail with unsupported_type.
func HostTypeOf(v any) (ScalarType, error) {
	if v == nil {
		return Void, nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int32:
		return Int32, nil
	case reflect.Int64:
		return Int64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	default:
		return 0, errors.UnsupportedType(errors.PhaseLower, reflect.TypeOf(v).String())
	}
}

// AddrSpace is an NVPTX address space number.
type AddrSpace uint8

const (
	AddrGeneric  AddrSpace = 0
	AddrGlobal   AddrSpace = 1
	AddrShared   AddrSpace = 3
	AddrConstant AddrSpace = 4
	AddrLocal    AddrSpace = 5
)

// Type is either a mapped scalar or an opaque pointer into an address space.
type Type struct {
	Scalar ScalarType
	Ptr    bool
	Space  AddrSpace
}

// Scalar returns the scalar type s.
func Scalar(s ScalarType) Type {
	return Type{Scalar: s}
}

// Pointer returns an opaque pointer type in the given address space.
func Pointer(space AddrSpace) Type {
	return Type{Ptr: true, Space: space}
}

// Token renders t as an IR type token.
func (t Type) Token() (string, error) {
	if t.Ptr {
		if t.Space == AddrGeneric {
			return "ptr", nil
		}
		return fmt.Sprintf("ptr addrspace(%d)", t.Space), nil
	}
	return t.Scalar.Token()
}

func (t Type) String() string {
	tok, err := t.Token()
	if err != nil {
		return t.Scalar.String()
	}
	return tok
}

// IsVoid reports whether t is the void scalar.
func (t Type) IsVoid() bool {
	return !t.Ptr && t.Scalar == Void
}
