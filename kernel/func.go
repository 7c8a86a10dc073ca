package kernel

import (
	"fmt"
	"runtime"

	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/intrinsics"
	"github.com/wippyai/gpu-runtime/ir"
)

// Param is a kernel parameter.
type Param struct {
	Name string
	Type ir.Type
}

// Kernel is a named kernel with a Go body that emits its instructions.
type Kernel struct {
	Name   string
	Params []Param
	Body   func(f *Func) error
}

// Func is the emission surface handed to a kernel body.
type Func struct {
	name   string
	sess   *intrinsics.Session
	b      *ir.Builder
	params map[string]ir.Value
}

func newFunc(k Kernel, sess *intrinsics.Session) *Func {
	f := &Func{
		name:   k.Name,
		sess:   sess,
		b:      ir.NewBuilder(),
		params: make(map[string]ir.Value, len(k.Params)),
	}
	for _, p := range k.Params {
		f.params[p.Name] = ir.Local(p.Name, p.Type)
	}
	return f
}

// Name returns the kernel name.
func (f *Func) Name() string { return f.name }

// Builder exposes the underlying IR builder for raw emission.
func (f *Func) Builder() *ir.Builder { return f.b }

// Session returns the code-generation session.
func (f *Func) Session() *intrinsics.Session { return f.sess }

// Param returns the named parameter.
func (f *Func) Param(name string) (ir.Value, error) {
	v, ok := f.params[name]
	if !ok {
		return ir.Value{}, errors.NotFound(errors.PhaseCompile, "parameter", name)
	}
	return v, nil
}

// ThreadIdx is the 1-based thread index on axis a.
func (f *Func) ThreadIdx(a intrinsics.Axis) (ir.Value, error) {
	return f.sess.Index(f.b, intrinsics.ThreadIdx, a)
}

// BlockIdx is the 1-based block index on axis a.
func (f *Func) BlockIdx(a intrinsics.Axis) (ir.Value, error) {
	return f.sess.Index(f.b, intrinsics.BlockIdx, a)
}

// BlockDim is the block size on axis a.
func (f *Func) BlockDim(a intrinsics.Axis) (ir.Value, error) {
	return f.sess.Index(f.b, intrinsics.BlockDim, a)
}

// GridDim is the grid size on axis a.
func (f *Func) GridDim(a intrinsics.Axis) (ir.Value, error) {
	return f.sess.Index(f.b, intrinsics.GridDim, a)
}

// Tuple returns all three axes of k.
func (f *Func) Tuple(k intrinsics.IndexKind) (intrinsics.Tuple, error) {
	return f.sess.IndexTuple(f.b, k)
}

// GlobalIndex returns the 0-based global thread index on axis a:
// (blockIdx-1)*blockDim + (threadIdx-1).
func (f *Func) GlobalIndex(a intrinsics.Axis) (ir.Value, error) {
	bid, err := f.BlockIdx(a)
	if err != nil {
		return ir.Value{}, err
	}
	dim, err := f.BlockDim(a)
	if err != nil {
		return ir.Value{}, err
	}
	tid, err := f.ThreadIdx(a)
	if err != nil {
		return ir.Value{}, err
	}
	one := ir.ConstInt(ir.Int32, 1)
	if bid, err = f.b.Binary("sub", bid, one); err != nil {
		return ir.Value{}, err
	}
	if tid, err = f.b.Binary("sub", tid, one); err != nil {
		return ir.Value{}, err
	}
	base, err := f.b.Binary("mul", bid, dim)
	if err != nil {
		return ir.Value{}, err
	}
	return f.b.Binary("add", base, tid)
}

// WarpSize is the constant 32.
func (f *Func) WarpSize() ir.Value {
	return f.sess.WarpSize()
}

// SyncThreads emits a block-wide barrier.
func (f *Func) SyncThreads() error {
	return f.sess.SyncThreads(f.b)
}

// Math applies a math intrinsic (sin, cos, floor, ceil, abs, sqrt, exp, log,
// log10, erf) to x.
func (f *Func) Math(op string, x ir.Value) (ir.Value, error) {
	return f.sess.Math(f.b, op, x)
}

// Shfl moves v from the lane selected by mode and lane within width lanes.
// An unset width (the zero Value) means the full warp; an explicit constant
// 0 is rejected as invalid input.
func (f *Func) Shfl(mode intrinsics.ShuffleMode, v, lane, width ir.Value) (ir.Value, error) {
	return f.sess.Shuffle(f.b, mode, v, lane, width)
}

// Call lowers any catalog intrinsic by name.
func (f *Func) Call(name string, args ...ir.Value) (ir.Value, error) {
	return f.sess.Lower(f.b, name, args...)
}

// Shared allocates static shared memory for the calling source line.
// Repeated compilation of the same line reuses the same backing symbol.
func (f *Func) Shared(elem ir.ScalarType, count int) (*intrinsics.Region, error) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "cannot determine declaration site")
	}
	return f.SharedAt(fmt.Sprintf("%s:%d", file, line), elem, count)
}

// SharedAt allocates static shared memory for an explicit declaration site.
func (f *Func) SharedAt(site string, elem ir.ScalarType, count int) (*intrinsics.Region, error) {
	return f.sess.AllocStatic(f.b, site, elem, count)
}

// SharedDynamic addresses length elements at byteOffset in the launch-sized
// dynamic shared buffer.
func (f *Func) SharedDynamic(elem ir.ScalarType, length, byteOffset ir.Value) (*intrinsics.Region, error) {
	return f.sess.AllocDynamic(f.b, elem, length, byteOffset)
}

// Binary emits a two-operand instruction (add, fadd, mul, ...).
func (f *Func) Binary(op string, x, y ir.Value) (ir.Value, error) {
	return f.b.Binary(op, x, y)
}

// Convert widens or narrows v to t.
func (f *Func) Convert(v ir.Value, t ir.ScalarType) (ir.Value, error) {
	return f.b.Convert(v, t)
}

// Elem returns a pointer to element idx of an array of elem starting at base.
func (f *Func) Elem(elem ir.ScalarType, base, idx ir.Value) (ir.Value, error) {
	if !base.Type.Ptr {
		return ir.Value{}, errors.TypeMismatch(errors.PhaseCompile, []string{f.name, "elem"}, "ptr", base.Type.String())
	}
	tok, err := elem.Token()
	if err != nil {
		return ir.Value{}, err
	}
	i64, err := f.b.Convert(idx, ir.Int64)
	if err != nil {
		return ir.Value{}, err
	}
	return f.b.GEP(tok, base, i64), nil
}

// Load reads a t through ptr.
func (f *Func) Load(t ir.ScalarType, ptr ir.Value) (ir.Value, error) {
	return f.b.Load(t, ptr)
}

// Store writes v through ptr.
func (f *Func) Store(v, ptr ir.Value) {
	f.b.Store(v, ptr)
}
