package intrinsics

import (
	"fmt"

	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/ir"
	"github.com/wippyai/gpu-runtime/target"
)

// ShuffleMode is the lane relocation pattern of a shuffle.
type ShuffleMode uint8

const (
	ShuffleUp ShuffleMode = iota
	ShuffleDown
	ShuffleXor
	ShuffleIdx
)

// ShuffleModes lists every mode.
var ShuffleModes = [...]ShuffleMode{ShuffleUp, ShuffleDown, ShuffleXor, ShuffleIdx}

var shuffleModes = [...]struct {
	name string
	ptx  string
	mask int32
}{
	ShuffleUp:   {"up", "up", 0x00},
	ShuffleDown: {"down", "down", 0x1f},
	ShuffleXor:  {"xor", "bfly", 0x1f},
	ShuffleIdx:  {"idx", "idx", 0x1f},
}

func (m ShuffleMode) String() string {
	if int(m) >= len(shuffleModes) {
		return fmt.Sprintf("shfl(%d)", uint8(m))
	}
	return shuffleModes[m].name
}

// PTX returns the mode keyword used by shfl instructions.
func (m ShuffleMode) PTX() string {
	return shuffleModes[m].ptx
}

// Mask returns the fixed lane-mask constant of the mode.
func (m ShuffleMode) Mask() int32 {
	return shuffleModes[m].mask
}

// Pack builds the shfl control word for a logical warp of width lanes.
func Pack(m ShuffleMode, width int) int32 {
	return int32((WarpSize-width)<<8) | m.Mask()
}

// ShuffleType is a host value type a shuffle can move.
// Unsigned types share the signed IR representation.
type ShuffleType struct {
	Name   string
	Scalar ir.ScalarType
}

// Wide reports whether the type is moved as two 32-bit halves.
func (t ShuffleType) Wide() bool {
	return t.Scalar.Size() == 8
}

// ShuffleTypes lists the shuffle value types.
var ShuffleTypes = []ShuffleType{
	{"i32", ir.Int32},
	{"u32", ir.Int32},
	{"f32", ir.Float32},
	{"i64", ir.Int64},
	{"u64", ir.Int64},
	{"f64", ir.Float64},
}

// ShuffleName returns the catalog name, e.g. "shfl_down_f32".
func ShuffleName(m ShuffleMode, t ShuffleType) string {
	return "shfl_" + m.String() + "_" + t.Name
}

// FullWarp is the default shuffle width.
var FullWarp = ir.ConstInt(ir.Int32, WarpSize)

func registerShuffle(cb *catalogBuilder) {
	for _, m := range ShuffleModes {
		for _, t := range ShuffleTypes {
			m := m
			tmpl := "shfl." + m.PTX() + " (32-bit)"
			if t.Wide() {
				tmpl = "shfl." + m.PTX() + " x2 (split 64-bit)"
			}
			cb.add(&Intrinsic{
				Name:     ShuffleName(m, t),
				Family:   FamilyShuffle,
				Params:   []ir.ScalarType{t.Scalar, ir.Int32, ir.Int32},
				Result:   t.Scalar,
				Template: tmpl,
				defaults: []ir.Value{FullWarp},
				lower: func(s *Session, b *ir.Builder, args []ir.Value) (ir.Value, error) {
					return s.Shuffle(b, m, args[0], args[1], args[2])
				},
			})
		}
	}
}

// shuffleLowering moves a 32-bit i32 or float value.
type shuffleLowering func(b *ir.Builder, m ShuffleMode, v, lane, packed ir.Value) (ir.Value, error)

// resolveShuffle picks the lowering once per session.
func resolveShuffle(form target.ShuffleForm) shuffleLowering {
	switch form {
	case target.ShuffleSync:
		return shuffleSync
	case target.ShuffleIntrinsic:
		return shuffleIntrinsic
	case target.ShuffleInlineAsm:
		return shuffleAsm
	default:
		return func(*ir.Builder, ShuffleMode, ir.Value, ir.Value, ir.Value) (ir.Value, error) {
			return ir.Value{}, errors.Unsupported(errors.PhaseLower, "warp shuffle requires sm_30 or newer")
		}
	}
}

func shuffleSuffix(t ir.ScalarType) string {
	if t == ir.Float32 {
		return "f32"
	}
	return "i32"
}

func shuffleSync(b *ir.Builder, m ShuffleMode, v, lane, packed ir.Value) (ir.Value, error) {
	t := v.Type.Scalar
	sig := ir.Signature{
		Name:   fmt.Sprintf("llvm.nvvm.shfl.sync.%s.%s", m.PTX(), shuffleSuffix(t)),
		Params: []ir.ScalarType{ir.Int32, t, ir.Int32, ir.Int32},
		Result: t,
		Attrs:  ir.Convergent | ir.NoUnwind,
	}
	return b.Call(sig, ir.ConstInt(ir.Int32, -1), v, lane, packed)
}

func shuffleIntrinsic(b *ir.Builder, m ShuffleMode, v, lane, packed ir.Value) (ir.Value, error) {
	t := v.Type.Scalar
	sig := ir.Signature{
		Name:   fmt.Sprintf("llvm.nvvm.shfl.%s.%s", m.PTX(), shuffleSuffix(t)),
		Params: []ir.ScalarType{t, ir.Int32, ir.Int32},
		Result: t,
		Attrs:  ir.Convergent | ir.NoUnwind,
	}
	return b.Call(sig, v, lane, packed)
}

func shuffleAsm(b *ir.Builder, m ShuffleMode, v, lane, packed ir.Value) (ir.Value, error) {
	t := v.Type.Scalar
	bits, err := b.Bitcast(v, ir.Int32)
	if err != nil {
		return ir.Value{}, err
	}
	out, err := b.Asm(fmt.Sprintf("shfl.%s.b32 $0, $1, $2, $3;", m.PTX()), "=r,r,r,r", ir.Int32, bits, lane, packed)
	if err != nil {
		return ir.Value{}, err
	}
	return b.Bitcast(out, t)
}

// packed returns the control word for width, folding constants.
func packed(b *ir.Builder, m ShuffleMode, width ir.Value) (ir.Value, error) {
	if w, ok := width.IntConst(); ok {
		if w < 1 || w > WarpSize || w&(w-1) != 0 {
			return ir.Value{}, errors.New(errors.PhaseLower, errors.KindInvalidInput).
				Path("shfl_"+m.String(), "width").
				Value(w).
				Detail("width must be a power of two in [1, %d]", WarpSize).
				Build()
		}
		return ir.ConstInt(ir.Int32, int64(Pack(m, int(w)))), nil
	}
	if width.Type != ir.Scalar(ir.Int32) {
		return ir.Value{}, errors.TypeMismatch(errors.PhaseLower, []string{"shfl_" + m.String(), "width"}, "i32", width.Type.String())
	}
	d, err := b.Binary("sub", ir.ConstInt(ir.Int32, WarpSize), width)
	if err != nil {
		return ir.Value{}, err
	}
	sh, err := b.Binary("shl", d, ir.ConstInt(ir.Int32, 8))
	if err != nil {
		return ir.Value{}, err
	}
	return b.Binary("or", sh, ir.ConstInt(ir.Int32, int64(m.Mask())))
}

// Shuffle moves v from another lane. 32-bit values use a single shuffle;
// 64-bit values are split into halves, shuffled independently with the same
// lane and width, and recomposed bit for bit.
func (s *Session) Shuffle(b *ir.Builder, m ShuffleMode, v, lane, width ir.Value) (ir.Value, error) {
	if int(m) >= len(shuffleModes) {
		return ir.Value{}, errors.InvalidInput(errors.PhaseLower, "unknown shuffle mode "+m.String())
	}
	if lane.Type != ir.Scalar(ir.Int32) {
		return ir.Value{}, errors.TypeMismatch(errors.PhaseLower, []string{"shfl_" + m.String(), "lane"}, "i32", lane.Type.String())
	}
	if width.Ref == "" {
		width = FullWarp
	}
	if v.Type.Ptr {
		return ir.Value{}, errors.UnsupportedType(errors.PhaseLower, v.Type.String())
	}
	if s.form == target.ShuffleNone {
		return s.shfl32(b, m, v, lane, width)
	}
	c, err := packed(b, m, width)
	if err != nil {
		return ir.Value{}, err
	}

	switch v.Type.Scalar {
	case ir.Int32, ir.Float32:
		return s.shfl32(b, m, v, lane, c)
	case ir.Int64, ir.Float64:
		return s.shuffle64(b, m, v, lane, c)
	default:
		return ir.Value{}, errors.UnsupportedType(errors.PhaseLower, v.Type.Scalar.String())
	}
}

func (s *Session) shuffle64(b *ir.Builder, m ShuffleMode, v, lane, c ir.Value) (ir.Value, error) {
	orig := v.Type.Scalar
	bits, err := b.Bitcast(v, ir.Int64)
	if err != nil {
		return ir.Value{}, err
	}
	lo, err := b.Cast("trunc", bits, ir.Scalar(ir.Int32))
	if err != nil {
		return ir.Value{}, err
	}
	shifted, err := b.Binary("lshr", bits, ir.ConstInt(ir.Int64, 32))
	if err != nil {
		return ir.Value{}, err
	}
	hi, err := b.Cast("trunc", shifted, ir.Scalar(ir.Int32))
	if err != nil {
		return ir.Value{}, err
	}

	lo, err = s.shfl32(b, m, lo, lane, c)
	if err != nil {
		return ir.Value{}, err
	}
	hi, err = s.shfl32(b, m, hi, lane, c)
	if err != nil {
		return ir.Value{}, err
	}

	lo64, err := b.Cast("zext", lo, ir.Scalar(ir.Int64))
	if err != nil {
		return ir.Value{}, err
	}
	hi64, err := b.Cast("zext", hi, ir.Scalar(ir.Int64))
	if err != nil {
		return ir.Value{}, err
	}
	hiShifted, err := b.Binary("shl", hi64, ir.ConstInt(ir.Int64, 32))
	if err != nil {
		return ir.Value{}, err
	}
	joined, err := b.Binary("or", hiShifted, lo64)
	if err != nil {
		return ir.Value{}, err
	}
	return b.Bitcast(joined, orig)
}
