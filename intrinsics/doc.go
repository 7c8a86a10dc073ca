// Package intrinsics is the catalog of device operations a kernel body may
// use, together with their lowerings into NVPTX LLVM IR.
//
// Families:
//
//	index    thread_idx_x .. grid_dim_z (special register reads)
//	warp     warp_size (constant 32)
//	barrier  sync_threads
//	math     <op>_<f32|f64|i32|i64> over libdevice
//	shuffle  shfl_<up|down|xor|idx>_<i32|u32|f32|i64|u64|f64>
//
// Shared memory allocation is not a catalog entry because it produces globals
// rather than a value-to-value template; see Session.AllocStatic and
// Session.AllocDynamic.
//
// The catalog is built once from static tables. Lowering state that depends on
// the code-generation target (shuffle form, symbol counter, declaration sites)
// lives in a Session.
package intrinsics
