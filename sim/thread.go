package sim

import (
	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/intrinsics"
)

// Thread is one simulated device thread. The register fields hold raw,
// 0-based hardware values; the accessors apply the same conventions as the
// index intrinsics.
type Thread struct {
	Tid    gpuruntime.Dim3 // %tid
	Ntid   gpuruntime.Dim3 // %ntid
	Ctaid  gpuruntime.Dim3 // %ctaid
	Nctaid gpuruntime.Dim3 // %nctaid

	linear int
	block  *block
}

// NewThread creates a thread outside any launch. Barriers are no-ops and
// shuffles return the thread's own value.
func NewThread(tid, ntid, ctaid, nctaid gpuruntime.Dim3) *Thread {
	return &Thread{
		Tid:    tid,
		Ntid:   ntid,
		Ctaid:  ctaid,
		Nctaid: nctaid,
		linear: tid.X + ntid.X*(tid.Y+ntid.Y*tid.Z),
	}
}

func component(d gpuruntime.Dim3, a intrinsics.Axis) int {
	switch a {
	case intrinsics.AxisY:
		return d.Y
	case intrinsics.AxisZ:
		return d.Z
	default:
		return d.X
	}
}

// Register returns the raw special register for kind on axis.
func (t *Thread) Register(k intrinsics.IndexKind, a intrinsics.Axis) int32 {
	switch k {
	case intrinsics.ThreadIdx:
		return int32(component(t.Tid, a))
	case intrinsics.BlockDim:
		return int32(component(t.Ntid, a))
	case intrinsics.BlockIdx:
		return int32(component(t.Ctaid, a))
	default:
		return int32(component(t.Nctaid, a))
	}
}

// Index evaluates the index intrinsic for kind on axis.
func (t *Thread) Index(k intrinsics.IndexKind, a intrinsics.Axis) int32 {
	v := t.Register(k, a)
	if k.OneBased() {
		v++
	}
	return v
}

// ThreadIdx is the 1-based thread index on axis a.
func (t *Thread) ThreadIdx(a intrinsics.Axis) int32 { return t.Index(intrinsics.ThreadIdx, a) }

// BlockIdx is the 1-based block index on axis a.
func (t *Thread) BlockIdx(a intrinsics.Axis) int32 { return t.Index(intrinsics.BlockIdx, a) }

// BlockDim is the block size on axis a.
func (t *Thread) BlockDim(a intrinsics.Axis) int32 { return t.Index(intrinsics.BlockDim, a) }

// GridDim is the grid size on axis a.
func (t *Thread) GridDim(a intrinsics.Axis) int32 { return t.Index(intrinsics.GridDim, a) }

// Lane returns the lane within the warp.
func (t *Thread) Lane() int {
	return t.linear % intrinsics.WarpSize
}

// Linear returns the thread's position within its block, x fastest.
func (t *Thread) Linear() int {
	return t.linear
}

// Shared returns the block's dynamic shared memory.
func (t *Thread) Shared() []byte {
	if t.block == nil {
		return nil
	}
	return t.block.shared
}

// SyncThreads waits for every live thread of the block.
func (t *Thread) SyncThreads() {
	if t.block == nil {
		return
	}
	if !t.block.bar.wait() {
		panic(errAborted)
	}
}

// Shfl32 exchanges v with the lane selected by m, b and width.
// Every live lane of the warp must call it.
func (t *Thread) Shfl32(m intrinsics.ShuffleMode, v uint32, b, width int) uint32 {
	if t.block == nil {
		return v
	}
	w := t.block.warps[t.linear/intrinsics.WarpSize]
	lane := t.Lane()

	w.slots[lane] = v
	if !w.bar.wait() {
		panic(errAborted)
	}
	src, _ := SourceLane(m, lane, b, intrinsics.Pack(m, width))
	if src >= w.size {
		src = lane
	}
	out := w.slots[src]
	if !w.bar.wait() {
		panic(errAborted)
	}
	return out
}

// Shfl64 exchanges a 64-bit value as two 32-bit shuffles.
func (t *Thread) Shfl64(m intrinsics.ShuffleMode, v uint64, b, width int) uint64 {
	lo := t.Shfl32(m, uint32(v), b, width)
	hi := t.Shfl32(m, uint32(v>>32), b, width)
	return uint64(hi)<<32 | uint64(lo)
}
