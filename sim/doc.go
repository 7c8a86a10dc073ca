// Package sim is an in-memory accelerator: a driver.Driver implementation
// with per-thread current contexts and primary-context reset semantics, a
// model of the special registers the index intrinsics read, bit-exact PTX
// shfl semantics, and a grid launcher that runs kernel bodies written in Go.
package sim
