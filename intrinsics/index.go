package intrinsics

import (
	"fmt"

	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/ir"
)

// WarpSize is the number of lanes in a warp.
const WarpSize = 32

// Axis is one of the three launch dimensions.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists x, y, z.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", uint8(a))
	}
}

// IndexKind selects one of the four index/dimension register groups.
type IndexKind uint8

const (
	ThreadIdx IndexKind = iota
	BlockDim
	BlockIdx
	GridDim
)

var indexKinds = [...]struct {
	name     string
	register string
	oneBased bool
}{
	ThreadIdx: {"thread_idx", "tid", true},
	BlockDim:  {"block_dim", "ntid", false},
	BlockIdx:  {"block_idx", "ctaid", true},
	GridDim:   {"grid_dim", "nctaid", false},
}

// IndexKinds lists the four register groups.
var IndexKinds = [...]IndexKind{ThreadIdx, BlockDim, BlockIdx, GridDim}

func (k IndexKind) String() string {
	if int(k) >= len(indexKinds) {
		return fmt.Sprintf("index(%d)", uint8(k))
	}
	return indexKinds[k].name
}

// OneBased reports whether the lowering adds one to the hardware register.
// Indices are shifted; sizes are not.
func (k IndexKind) OneBased() bool {
	return int(k) < len(indexKinds) && indexKinds[k].oneBased
}

// Register returns the special register read for kind on axis.
func Register(k IndexKind, a Axis) string {
	return fmt.Sprintf("llvm.nvvm.read.ptx.sreg.%s.%s", indexKinds[k].register, a)
}

func registerSig(k IndexKind, a Axis) ir.Signature {
	return ir.Signature{
		Name:   Register(k, a),
		Result: ir.Int32,
		Attrs:  ir.ReadNone | ir.NoUnwind,
	}
}

// IndexName returns the catalog name for kind on axis, e.g. "thread_idx_x".
func IndexName(k IndexKind, a Axis) string {
	return k.String() + "_" + a.String()
}

func registerIndex(cb *catalogBuilder) {
	for _, k := range IndexKinds {
		for _, a := range Axes {
			k, a := k, a
			tmpl := Register(k, a)
			if k.OneBased() {
				tmpl += " + 1"
			}
			cb.add(&Intrinsic{
				Name:     IndexName(k, a),
				Family:   FamilyIndex,
				Result:   ir.Int32,
				Template: tmpl,
				lower: func(s *Session, b *ir.Builder, _ []ir.Value) (ir.Value, error) {
					return s.Index(b, k, a)
				},
			})
		}
	}
}

// Index lowers a single-axis index or dimension query.
func (s *Session) Index(b *ir.Builder, k IndexKind, a Axis) (ir.Value, error) {
	if int(k) >= len(indexKinds) || a > AxisZ {
		return ir.Value{}, errors.InvalidInput(errors.PhaseLower, fmt.Sprintf("no register for %s.%s", k, a))
	}
	raw, err := b.Call(registerSig(k, a))
	if err != nil {
		return ir.Value{}, err
	}
	if !k.OneBased() {
		return raw, nil
	}
	return b.Binary("add", raw, ir.ConstInt(ir.Int32, 1))
}

// Tuple is a three-component (x, y, z) result.
type Tuple [3]ir.Value

// IndexTuple lowers all three axes of kind.
func (s *Session) IndexTuple(b *ir.Builder, k IndexKind) (Tuple, error) {
	var t Tuple
	for i, a := range Axes {
		v, err := s.Index(b, k, a)
		if err != nil {
			return Tuple{}, err
		}
		t[i] = v
	}
	return t, nil
}

func registerWarp(cb *catalogBuilder) {
	cb.add(&Intrinsic{
		Name:     "warp_size",
		Family:   FamilyWarp,
		Result:   ir.Int32,
		Template: "constant 32",
		lower: func(s *Session, _ *ir.Builder, _ []ir.Value) (ir.Value, error) {
			return s.WarpSize(), nil
		},
	})
}

// WarpSize returns the warp size as an i32 constant.
func (s *Session) WarpSize() ir.Value {
	return ir.ConstInt(ir.Int32, WarpSize)
}

// CeilToWarp rounds n up to the nearest multiple of the warp size.
func CeilToWarp(n int) int {
	return n + ((WarpSize-n%WarpSize)%WarpSize+WarpSize)%WarpSize
}

var barrierSig = ir.Signature{
	Name:   "llvm.nvvm.barrier0",
	Result: ir.Void,
	Attrs:  ir.ReadNone | ir.NoUnwind,
}

func registerBarrier(cb *catalogBuilder) {
	cb.add(&Intrinsic{
		Name:     "sync_threads",
		Family:   FamilyBarrier,
		Result:   ir.Void,
		Template: barrierSig.Name,
		lower: func(s *Session, b *ir.Builder, _ []ir.Value) (ir.Value, error) {
			return ir.Value{Type: ir.Scalar(ir.Void)}, s.SyncThreads(b)
		},
	})
}

// SyncThreads lowers a block-wide barrier.
func (s *Session) SyncThreads(b *ir.Builder) error {
	_, err := b.Call(barrierSig)
	return err
}
