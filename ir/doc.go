// Package ir emits NVPTX LLVM IR text for device operations.
//
// It owns the fixed mapping between host scalar types and IR type tokens and
// the foreign-instruction emitter that turns a Signature and operands into a
// declaration plus a call sequence.
//
// # Type Mapping
//
//	Int32   <-> i32
//	Int64   <-> i64
//	Float32 <-> float
//	Float64 <-> double
//	Void    <-> void
//
// The table is bijective. Any other type fails with an unsupported_type error
// at the point of lowering; nothing is truncated silently.
//
// # Emission
//
// Emit produces a standalone Fragment with fresh temporary numbering:
//
//	sig := ir.Signature{Name: "__nv_sinf", Params: []ir.ScalarType{ir.Float32},
//		Result: ir.Float32, Attrs: ir.ReadNone | ir.NoUnwind}
//	frag, err := ir.Emit(sig, ir.Local("x", ir.Scalar(ir.Float32)))
//
// Inside a function body use a Builder, which numbers temporaries across calls
// and deduplicates declarations and globals.
package ir
