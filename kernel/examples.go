package kernel

import (
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/intrinsics"
	"github.com/wippyai/gpu-runtime/ir"
)

var global = ir.Pointer(ir.AddrGlobal)

// VectorAdd computes c[i] = a[i] + b[i] for i < n.
func VectorAdd() Kernel {
	return Kernel{
		Name: "vadd",
		Params: []Param{
			{Name: "a", Type: global},
			{Name: "b", Type: global},
			{Name: "c", Type: global},
		},
		Body: func(f *Func) error {
			i, err := f.GlobalIndex(intrinsics.AxisX)
			if err != nil {
				return err
			}
			var vals [2]ir.Value
			for k, name := range []string{"a", "b"} {
				p, err := f.Param(name)
				if err != nil {
					return err
				}
				ptr, err := f.Elem(ir.Float32, p, i)
				if err != nil {
					return err
				}
				if vals[k], err = f.Load(ir.Float32, ptr); err != nil {
					return err
				}
			}
			sum, err := f.Binary("fadd", vals[0], vals[1])
			if err != nil {
				return err
			}
			c, err := f.Param("c")
			if err != nil {
				return err
			}
			out, err := f.Elem(ir.Float32, c, i)
			if err != nil {
				return err
			}
			f.Store(sum, out)
			return nil
		},
	}
}

// BlockReduce sums one warp of in using xor shuffles and writes lane 0's
// result into a shared staging slot before the block barrier.
func BlockReduce() Kernel {
	return Kernel{
		Name: "reduce",
		Params: []Param{
			{Name: "in", Type: global},
			{Name: "out", Type: global},
		},
		Body: func(f *Func) error {
			i, err := f.GlobalIndex(intrinsics.AxisX)
			if err != nil {
				return err
			}
			in, err := f.Param("in")
			if err != nil {
				return err
			}
			ptr, err := f.Elem(ir.Float32, in, i)
			if err != nil {
				return err
			}
			acc, err := f.Load(ir.Float32, ptr)
			if err != nil {
				return err
			}
			for off := intrinsics.WarpSize / 2; off > 0; off /= 2 {
				other, err := f.Shfl(intrinsics.ShuffleXor, acc,
					ir.ConstInt(ir.Int32, int64(off)), ir.ConstInt(ir.Int32, intrinsics.WarpSize))
				if err != nil {
					return err
				}
				if acc, err = f.Binary("fadd", acc, other); err != nil {
					return err
				}
			}

			stage, err := f.SharedAt("reduce.stage", ir.Float32, intrinsics.WarpSize)
			if err != nil {
				return err
			}
			tid, err := f.ThreadIdx(intrinsics.AxisX)
			if err != nil {
				return err
			}
			tid0, err := f.Binary("sub", tid, ir.ConstInt(ir.Int32, 1))
			if err != nil {
				return err
			}
			warp, err := f.Binary("udiv", tid0, f.WarpSize())
			if err != nil {
				return err
			}
			slot, err := f.Elem(ir.Float32, stage.Ptr, warp)
			if err != nil {
				return err
			}
			f.Store(acc, slot)
			if err := f.SyncThreads(); err != nil {
				return err
			}

			first, err := f.Elem(ir.Float32, stage.Ptr, ir.ConstInt(ir.Int32, 0))
			if err != nil {
				return err
			}
			total, err := f.Load(ir.Float32, first)
			if err != nil {
				return err
			}
			bid, err := f.BlockIdx(intrinsics.AxisX)
			if err != nil {
				return err
			}
			bid0, err := f.Binary("sub", bid, ir.ConstInt(ir.Int32, 1))
			if err != nil {
				return err
			}
			outp, err := f.Param("out")
			if err != nil {
				return err
			}
			dst, err := f.Elem(ir.Float32, outp, bid0)
			if err != nil {
				return err
			}
			f.Store(total, dst)
			return nil
		},
	}
}

// Examples returns the bundled kernels keyed by their CLI name.
func Examples() map[string]func() Kernel {
	return map[string]func() Kernel{
		"vadd":   VectorAdd,
		"reduce": BlockReduce,
	}
}

// Example returns a bundled kernel by name.
func Example(name string) (Kernel, error) {
	fn, ok := Examples()[name]
	if !ok {
		return Kernel{}, errors.NotFound(errors.PhaseCompile, "example", name)
	}
	return fn(), nil
}
