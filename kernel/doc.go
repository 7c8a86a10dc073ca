// Package kernel builds GPU kernels in Go and compiles them into NVPTX LLVM
// IR modules.
//
// A Kernel's Body receives a *Func, the only surface through which device
// operations are emitted:
//
//	k := kernel.Kernel{
//	    Name:   "scale",
//	    Params: []kernel.Param{{Name: "x", Type: ir.Pointer(ir.AddrGlobal)}},
//	    Body: func(f *kernel.Func) error {
//	        i, err := f.GlobalIndex(intrinsics.AxisX)
//	        if err != nil {
//	            return err
//	        }
//	        x, _ := f.Param("x")
//	        p, err := f.Elem(ir.Float32, x, i)
//	        ...
//	    },
//	}
//
// Compiler.Compile gates code generation on the device lifecycle manager:
// the calling thread is bound lazily (device 0 by default) and the bound
// device's compute capability selects the target.
package kernel
