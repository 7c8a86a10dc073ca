package sim

import (
	"math"

	"github.com/wippyai/gpu-runtime/intrinsics"
)

// SourceLane returns the lane a shfl in mode m reads for lane, given the
// operand b and the packed control word c. ok is false when the source is
// out of range; the lane then keeps its own value.
func SourceLane(m intrinsics.ShuffleMode, lane, b int, c int32) (src int, ok bool) {
	b &= 0x1f
	segMask := int(c>>8) & 0x1f
	clamp := int(c) & 0x1f
	maxLane := (lane & segMask) | (clamp &^ segMask)
	minLane := lane & segMask

	switch m {
	case intrinsics.ShuffleUp:
		src = lane - b
		ok = src >= maxLane
	case intrinsics.ShuffleDown:
		src = lane + b
		ok = src <= maxLane
	case intrinsics.ShuffleXor:
		src = lane ^ b
		ok = src <= maxLane
	case intrinsics.ShuffleIdx:
		src = minLane | (b &^ segMask)
		ok = src <= maxLane
	}
	if !ok || src < 0 || src >= intrinsics.WarpSize {
		return lane, false
	}
	return src, true
}

// Lanes holds one 32-bit value per lane of a warp.
type Lanes [intrinsics.WarpSize]uint32

// Lanes64 holds one 64-bit value per lane of a warp.
type Lanes64 [intrinsics.WarpSize]uint64

// Shfl32 applies a shfl to every lane of a full warp.
func Shfl32(m intrinsics.ShuffleMode, v Lanes, b, width int) Lanes {
	c := intrinsics.Pack(m, width)
	var out Lanes
	for lane := range v {
		src, _ := SourceLane(m, lane, b, c)
		out[lane] = v[src]
	}
	return out
}

// Split returns the low and high 32-bit halves of each lane.
func Split(v Lanes64) (lo, hi Lanes) {
	for i, x := range v {
		lo[i] = uint32(x)
		hi[i] = uint32(x >> 32)
	}
	return lo, hi
}

// Join recomposes Split halves.
func Join(lo, hi Lanes) Lanes64 {
	var out Lanes64
	for i := range out {
		out[i] = uint64(hi[i])<<32 | uint64(lo[i])
	}
	return out
}

// Shfl64 shuffles 64-bit values as two independent 32-bit shuffles.
func Shfl64(m intrinsics.ShuffleMode, v Lanes64, b, width int) Lanes64 {
	lo, hi := Split(v)
	return Join(Shfl32(m, lo, b, width), Shfl32(m, hi, b, width))
}

// ShflF64 shuffles float64 values through their bit patterns.
func ShflF64(m intrinsics.ShuffleMode, v [intrinsics.WarpSize]float64, b, width int) [intrinsics.WarpSize]float64 {
	var bits Lanes64
	for i, f := range v {
		bits[i] = math.Float64bits(f)
	}
	bits = Shfl64(m, bits, b, width)
	var out [intrinsics.WarpSize]float64
	for i, x := range bits {
		out[i] = math.Float64frombits(x)
	}
	return out
}

// ShflF32 shuffles float32 values through their bit patterns.
func ShflF32(m intrinsics.ShuffleMode, v [intrinsics.WarpSize]float32, b, width int) [intrinsics.WarpSize]float32 {
	var bits Lanes
	for i, f := range v {
		bits[i] = math.Float32bits(f)
	}
	bits = Shfl32(m, bits, b, width)
	var out [intrinsics.WarpSize]float32
	for i, x := range bits {
		out[i] = math.Float32frombits(x)
	}
	return out
}
