package kernel

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/device"
	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/internal/osthread"
	"github.com/wippyai/gpu-runtime/intrinsics"
	"github.com/wippyai/gpu-runtime/ir"
	"github.com/wippyai/gpu-runtime/sim"
	"github.com/wippyai/gpu-runtime/target"
)

func fixedThread() osthread.ID { return 7 }

func newCompiler(t *testing.T, cfg *Config, caps ...gpuruntime.Version) (*Compiler, *device.Manager, *sim.Driver) {
	t.Helper()
	var opts []sim.DriverOption
	if len(caps) > 0 {
		opts = append(opts, sim.WithCapabilities(caps...))
	}
	opts = append(opts, sim.WithThreadID(fixedThread))
	drv := sim.NewDriver(opts...)
	mgr := device.NewManager(drv, &device.Config{ThreadID: fixedThread})
	return NewCompiler(mgr, cfg), mgr, drv
}

func threadIdxKernel() Kernel {
	return Kernel{
		Name:   "tid",
		Params: []Param{{Name: "out", Type: ir.Pointer(ir.AddrGlobal)}},
		Body: func(f *Func) error {
			tid, err := f.ThreadIdx(intrinsics.AxisX)
			if err != nil {
				return err
			}
			out, err := f.Param("out")
			if err != nil {
				return err
			}
			f.Store(tid, out)
			return nil
		},
	}
}

func TestCompileBindsDefaultDevice(t *testing.T) {
	c, mgr, drv := newCompiler(t, nil)

	_, bound := mgr.Current()
	require.False(t, bound)

	img, err := c.Compile(context.Background(), threadIdxKernel())
	require.NoError(t, err)

	b, bound := mgr.Current()
	require.True(t, bound)
	assert.Equal(t, 1, drv.Refs(b.Device))
	assert.Equal(t, "sm_70", img.Target.Name)
	assert.Equal(t, []string{"tid"}, img.Kernels)
	assert.Contains(t, img.IR, "%t1 = call i32 @llvm.nvvm.read.ptx.sreg.tid.x()")
	assert.Contains(t, img.IR, "%t2 = add i32 %t1, 1")
	assert.Contains(t, img.IR, "store i32 %t2, ptr addrspace(1) %out, align 4")

	// The raw register for thread 5 is one less than the value the kernel sees.
	th := sim.NewThread(gpuruntime.Dim3{X: 5}, gpuruntime.Dim3{X: 32, Y: 1, Z: 1},
		gpuruntime.Dim3{}, gpuruntime.Dim3{X: 1, Y: 1, Z: 1})
	assert.Equal(t, int32(5), th.Register(intrinsics.ThreadIdx, intrinsics.AxisX))
	assert.Equal(t, int32(6), th.ThreadIdx(intrinsics.AxisX))
}

func TestCompileTargetFromCapability(t *testing.T) {
	tests := []struct {
		name string
		cap  gpuruntime.Version
		cfg  *Config
		want string
		form string
	}{
		{"volta", gpuruntime.Version{Major: 7}, nil, "sm_70", "llvm.nvvm.shfl.sync.bfly.f32"},
		{"pascal", gpuruntime.Version{Major: 6, Minor: 1}, nil, "sm_61", "llvm.nvvm.shfl.bfly.f32"},
		{"override", gpuruntime.Version{Major: 7}, &Config{Target: "sm_35"}, "sm_35", "llvm.nvvm.shfl.bfly.f32"},
		{"old llvm", gpuruntime.Version{Major: 6}, &Config{LLVM: 3}, "sm_60", "shfl.bfly.b32"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newCompiler(t, tt.cfg, tt.cap)
			img, err := c.Compile(context.Background(), BlockReduce())
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Target.Name)
			assert.Contains(t, img.IR, tt.form)
			assert.Contains(t, img.IR, "call void @llvm.nvvm.barrier0()")
		})
	}
}

func TestCompileWithoutManager(t *testing.T) {
	c := NewCompiler(nil, nil)
	_, err := c.Compile(context.Background(), VectorAdd())
	assert.True(t, errors.IsKind(err, errors.KindUninitializedContext))

	tgt, err := target.GetTarget("sm_80")
	require.NoError(t, err)
	img, err := c.CompileTarget(context.Background(), tgt, VectorAdd())
	require.NoError(t, err)
	assert.Equal(t, "sm_80", img.Target.Name)
}

func TestCompileDriverFailure(t *testing.T) {
	c, _, drv := newCompiler(t, nil)
	drv.Fail("cuDevicePrimaryCtxRetain", driver.ErrorOutOfMemory)
	_, err := c.Compile(context.Background(), VectorAdd())
	assert.True(t, errors.IsKind(err, errors.KindDriverFailure))
}

func TestCompileCanceled(t *testing.T) {
	c, mgr, _ := newCompiler(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Compile(ctx, VectorAdd())
	assert.ErrorIs(t, err, context.Canceled)
	_, bound := mgr.Current()
	assert.False(t, bound)
}

func TestVectorAddGolden(t *testing.T) {
	c, _, _ := newCompiler(t, nil)
	img, err := c.Compile(context.Background(), VectorAdd())
	require.NoError(t, err)

	out := strings.Replace(img.IR, img.Session.String(), "SESSION", 1)
	g := goldie.New(t)
	g.Assert(t, "vadd_sm_70", []byte(out))
}

var shmemRe = regexp.MustCompile(`@(shmem\.\d+) = internal addrspace\(3\) global \[(\d+) x (\w+)\]`)

func TestSharedSites(t *testing.T) {
	tgt, err := target.GetTarget("sm_70")
	require.NoError(t, err)
	c := NewCompiler(nil, nil)

	twoSites := Kernel{
		Name: "two",
		Body: func(f *Func) error {
			a, err := f.Shared(ir.Float32, 128)
			if err != nil {
				return err
			}
			b, err := f.Shared(ir.Float32, 128)
			if err != nil {
				return err
			}
			assert.Equal(t, 512, a.Bytes())
			assert.Equal(t, 512, b.Bytes())
			assert.NotEqual(t, a.Symbol, b.Symbol)
			return nil
		},
	}
	img, err := c.CompileTarget(context.Background(), tgt, twoSites)
	require.NoError(t, err)
	first := shmemRe.FindAllStringSubmatch(img.IR, -1)
	require.Len(t, first, 2)
	for _, m := range first {
		assert.Equal(t, "128", m[2])
		assert.Equal(t, "float", m[3])
	}

	again, err := c.CompileTarget(context.Background(), tgt, twoSites)
	require.NoError(t, err)
	second := shmemRe.FindAllStringSubmatch(again.IR, -1)
	require.Len(t, second, 2)
	assert.Equal(t, first[0][1], second[0][1])
	assert.Equal(t, first[1][1], second[1][1])
	assert.Equal(t, img.Session, again.Session)
}

func TestSharedDynamic(t *testing.T) {
	tgt, err := target.GetTarget("sm_70")
	require.NoError(t, err)
	k := Kernel{
		Name: "dyn",
		Body: func(f *Func) error {
			r, err := f.SharedDynamic(ir.Float64, ir.ConstInt(ir.Int32, 64), ir.ConstInt(ir.Int32, 256))
			if err != nil {
				return err
			}
			assert.True(t, r.Dynamic)
			return nil
		},
	}
	img, err := NewCompiler(nil, nil).CompileTarget(context.Background(), tgt, k)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(img.IR, "@shmem.dynamic = external addrspace(3) global [0 x i8], align 16"))
	assert.Contains(t, img.IR, "getelementptr inbounds i8, ptr addrspace(3) @shmem.dynamic, i64 %t1")
}

func TestModuleDedupesAcrossKernels(t *testing.T) {
	tgt, err := target.GetTarget("sm_75")
	require.NoError(t, err)
	img, err := NewCompiler(nil, nil).CompileTarget(context.Background(), tgt, VectorAdd(), threadIdxKernel())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(img.IR, "declare i32 @llvm.nvvm.read.ptx.sreg.tid.x()"))
	assert.Contains(t, img.IR, "!nvvm.annotations = !{!0, !1}")
	assert.Contains(t, img.IR, `!1 = !{ptr @tid, !"kernel", i32 1}`)
}

func TestCompileValidation(t *testing.T) {
	tgt, err := target.GetTarget("sm_70")
	require.NoError(t, err)
	noop := func(*Func) error { return nil }
	tests := []struct {
		name    string
		kernels []Kernel
		kind    errors.Kind
	}{
		{"empty", nil, errors.KindInvalidInput},
		{"bad name", []Kernel{{Name: "1abc", Body: noop}}, errors.KindInvalidInput},
		{"duplicate", []Kernel{{Name: "k", Body: noop}, {Name: "k", Body: noop}}, errors.KindInvalidInput},
		{"no body", []Kernel{{Name: "k"}}, errors.KindInvalidInput},
		{"void param", []Kernel{{Name: "k", Body: noop, Params: []Param{{Name: "p", Type: ir.Scalar(ir.Void)}}}}, errors.KindInvalidInput},
		{"duplicate param", []Kernel{{Name: "k", Body: noop, Params: []Param{
			{Name: "p", Type: ir.Scalar(ir.Int32)}, {Name: "p", Type: ir.Scalar(ir.Int32)},
		}}}, errors.KindInvalidInput},
		{"unknown param", []Kernel{{Name: "k", Body: func(f *Func) error {
			_, err := f.Param("missing")
			return err
		}}}, errors.KindNotFound},
		{"type mismatch", []Kernel{{Name: "k", Body: func(f *Func) error {
			_, err := f.Binary("add", ir.ConstInt(ir.Int32, 1), ir.ConstInt(ir.Int64, 1))
			return err
		}}}, errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler(nil, nil).CompileTarget(context.Background(), tgt, tt.kernels...)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, tt.kind), err.Error())
		})
	}
}

func TestExample(t *testing.T) {
	k, err := Example("reduce")
	require.NoError(t, err)
	assert.Equal(t, "reduce", k.Name)
	_, err = Example("nope")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestSessionPerTarget(t *testing.T) {
	c := NewCompiler(nil, nil)
	a, _ := target.GetTarget("sm_70")
	b, _ := target.GetTarget("sm_80")
	assert.Same(t, c.Session(a), c.Session(a))
	assert.NotSame(t, c.Session(a), c.Session(b))
}
