// Package gpuruntime lowers device operations used by GPU kernels into NVPTX
// LLVM IR and manages the device/context state needed to run them.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	gpuruntime/          Root package with shared value types (Dim3, Version)
//	├── ir/              Scalar type table, foreign-instruction emitter, IR builder
//	├── target/          GPU target table and capability-gated lowering choices
//	├── intrinsics/      Intrinsic catalog, shared memory allocator, warp shuffles
//	├── kernel/          Kernel builder, module assembly and the compiler entry point
//	├── device/          Per-thread device/context lifecycle manager
//	├── driver/          Driver interface consumed by the lifecycle manager
//	│   └── cuda/        libcuda binding loaded at run time (no cgo)
//	├── sim/             Simulated accelerator: driver, registers, warp semantics
//	├── errors/          Structured error types
//	└── cmd/kernelc/     Command line tool
//
// # Quick Start
//
// Compile a kernel against whatever device the calling thread is bound to:
//
//	mgr := device.NewManager(drv, nil)
//	c := kernel.NewCompiler(mgr, nil)
//
//	img, err := c.Compile(ctx, kernel.Kernel{
//	    Name:   "scale",
//	    Params: []kernel.Param{{Name: "x", Type: ir.Pointer(ir.AddrGlobal)}},
//	    Body: func(f *kernel.Func) error {
//	        i, err := f.ThreadIdx(intrinsics.AxisX)
//	        ...
//	    },
//	})
//
// The first Compile on a thread with no bound context lazily binds device 0.
//
// # Thread Binding
//
// Driver contexts are bound to OS threads, not goroutines. Callers that select
// a device should pin their goroutine with runtime.LockOSThread for as long as
// they rely on the binding.
//
// # Index Conventions
//
// Thread and block indices are 1-based: the lowering adds one to the raw
// hardware register. Block and grid dimensions are sizes and are returned
// unmodified.
package gpuruntime
