package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/gpu-runtime/errors"
)

// Builder accumulates the body of one function together with the
// declarations and globals it depends on.
type Builder struct {
	declSeen   map[string]struct{}
	globalSeen map[string]struct{}
	decls      []string
	globals    []string
	body       []string
	next       int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		declSeen:   make(map[string]struct{}),
		globalSeen: make(map[string]struct{}),
	}
}

// temp returns a fresh temporary of type t.
func (b *Builder) temp(t Type) Value {
	b.next++
	return Value{Type: t, Ref: "%t" + strconv.Itoa(b.next)}
}

// Inst appends a raw instruction line.
func (b *Builder) Inst(format string, args ...any) {
	b.body = append(b.body, "  "+fmt.Sprintf(format, args...))
}

// Declare records a declaration line once.
func (b *Builder) Declare(decl string) {
	if _, ok := b.declSeen[decl]; ok {
		return
	}
	b.declSeen[decl] = struct{}{}
	b.decls = append(b.decls, decl)
}

// Global records a global definition for symbol once.
// It reports whether the definition was added.
func (b *Builder) Global(symbol, definition string) bool {
	if _, ok := b.globalSeen[symbol]; ok {
		return false
	}
	b.globalSeen[symbol] = struct{}{}
	b.globals = append(b.globals, definition)
	return true
}

// Call emits a call to the template described by sig.
// Operand count and types must match sig exactly.
func (b *Builder) Call(sig Signature, args ...Value) (Value, error) {
	decl, err := sig.Declaration()
	if err != nil {
		return Value{}, err
	}
	if len(args) != len(sig.Params) {
		return Value{}, errors.ArityMismatch(errors.PhaseEmit, sig.Name, len(sig.Params), len(args))
	}
	for i, p := range sig.Params {
		if args[i].Type != Scalar(p) {
			return Value{}, errors.TypeMismatch(errors.PhaseEmit,
				[]string{sig.Name, "arg" + strconv.Itoa(i)}, Scalar(p).String(), args[i].Type.String())
		}
	}

	b.Declare(decl)
	ret, _ := sig.Result.Token()
	call := fmt.Sprintf("call %s @%s(%s)", ret, sig.Name, operands(args))
	if sig.Result == Void {
		b.Inst("%s", call)
		return Value{Type: Scalar(Void)}, nil
	}
	res := b.temp(Scalar(sig.Result))
	b.Inst("%s = %s", res.Ref, call)
	return res, nil
}

// CallConverted is the calling shim: operands are widened or narrowed to the
// declared parameter types, and the result is converted to want.
// Only int32<->int64 and float32<->float64 conversions are inserted.
func (b *Builder) CallConverted(sig Signature, want ScalarType, args ...Value) (Value, error) {
	if err := sig.Validate(); err != nil {
		return Value{}, err
	}
	if len(args) != len(sig.Params) {
		return Value{}, errors.ArityMismatch(errors.PhaseEmit, sig.Name, len(sig.Params), len(args))
	}
	conv := make([]Value, len(args))
	for i, p := range sig.Params {
		v, err := b.Convert(args[i], p)
		if err != nil {
			return Value{}, err
		}
		conv[i] = v
	}
	res, err := b.Call(sig, conv...)
	if err != nil {
		return Value{}, err
	}
	if sig.Result == Void || want == Void {
		return res, nil
	}
	return b.Convert(res, want)
}

// Convert changes v to scalar type to using sext/trunc or fpext/fptrunc.
func (b *Builder) Convert(v Value, to ScalarType) (Value, error) {
	if _, err := to.Token(); err != nil {
		return Value{}, err
	}
	if v.Type.Ptr {
		return Value{}, errors.TypeMismatch(errors.PhaseEmit, []string{"convert"}, Scalar(to).String(), v.Type.String())
	}
	from := v.Type.Scalar
	if from == to {
		return v, nil
	}
	var op string
	switch {
	case from == Int32 && to == Int64:
		op = "sext"
	case from == Int64 && to == Int32:
		op = "trunc"
	case from == Float32 && to == Float64:
		op = "fpext"
	case from == Float64 && to == Float32:
		op = "fptrunc"
	default:
		return Value{}, errors.TypeMismatch(errors.PhaseEmit, []string{"convert"}, Scalar(to).String(), from.String())
	}
	return b.Cast(op, v, Scalar(to))
}

// Cast emits a conversion instruction (sext, trunc, zext, bitcast, addrspacecast, ...).
func (b *Builder) Cast(op string, v Value, to Type) (Value, error) {
	tok, err := to.Token()
	if err != nil {
		return Value{}, err
	}
	res := b.temp(to)
	b.Inst("%s = %s %s to %s", res.Ref, op, v.Operand(), tok)
	return res, nil
}

// Bitcast reinterprets v as a scalar of the same width.
func (b *Builder) Bitcast(v Value, to ScalarType) (Value, error) {
	if v.Type.Ptr || v.Type.Scalar.Size() != to.Size() {
		return Value{}, errors.TypeMismatch(errors.PhaseEmit, []string{"bitcast"}, Scalar(to).String(), v.Type.String())
	}
	if v.Type.Scalar == to {
		return v, nil
	}
	return b.Cast("bitcast", v, Scalar(to))
}

// Binary emits a two-operand arithmetic or bitwise instruction.
func (b *Builder) Binary(op string, x, y Value) (Value, error) {
	if x.Type != y.Type {
		return Value{}, errors.TypeMismatch(errors.PhaseEmit, []string{op}, x.Type.String(), y.Type.String())
	}
	res := b.temp(x.Type)
	b.Inst("%s = %s %s, %s", res.Ref, op, x.Operand(), y.Ref)
	return res, nil
}

// GEP emits an inbounds getelementptr over elem (an IR type token).
func (b *Builder) GEP(elem string, base Value, indices ...Value) Value {
	res := b.temp(base.Type)
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = idx.Operand()
	}
	b.Inst("%s = getelementptr inbounds %s, %s, %s", res.Ref, elem, base.Operand(), strings.Join(parts, ", "))
	return res
}

// Load emits a load of scalar t through ptr.
func (b *Builder) Load(t ScalarType, ptr Value) (Value, error) {
	tok, err := t.Token()
	if err != nil {
		return Value{}, err
	}
	res := b.temp(Scalar(t))
	b.Inst("%s = load %s, %s, align %d", res.Ref, tok, ptr.Operand(), t.Align())
	return res, nil
}

// Store emits a store of v through ptr.
func (b *Builder) Store(v, ptr Value) {
	align := v.Type.Scalar.Align()
	if v.Type.Ptr {
		align = 8
	}
	b.Inst("store %s, %s, align %d", v.Operand(), ptr.Operand(), align)
}

// Asm emits an inline assembly call. Operands are passed in order; result is
// the type of the single output.
func (b *Builder) Asm(template, constraints string, result ScalarType, args ...Value) (Value, error) {
	ret, err := result.Token()
	if err != nil {
		return Value{}, err
	}
	call := fmt.Sprintf("call %s asm sideeffect %q, %q(%s)", ret, template, constraints, operands(args))
	if result == Void {
		b.Inst("%s", call)
		return Value{Type: Scalar(Void)}, nil
	}
	res := b.temp(Scalar(result))
	b.Inst("%s = %s", res.Ref, call)
	return res, nil
}

// Ret terminates the body returning v, or void when v is void.
func (b *Builder) Ret(v Value) {
	if v.Type.IsVoid() {
		b.Inst("ret void")
		return
	}
	b.Inst("ret %s", v.Operand())
}

// Body returns the instruction lines emitted so far.
func (b *Builder) Body() []string {
	return append([]string(nil), b.body...)
}

// Declarations returns the deduplicated declare lines in first-use order.
func (b *Builder) Declarations() []string {
	return append([]string(nil), b.decls...)
}

// Globals returns the global definitions in first-use order.
func (b *Builder) Globals() []string {
	return append([]string(nil), b.globals...)
}

// Fragment snapshots the builder with result as the produced value.
func (b *Builder) Fragment(result Value, argTypes []Type) *Fragment {
	return &Fragment{
		Declarations: b.Declarations(),
		Globals:      b.Globals(),
		Body:         b.Body(),
		Result:       result,
		ArgTypes:     argTypes,
	}
}

func operands(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Operand()
	}
	return strings.Join(parts, ", ")
}
