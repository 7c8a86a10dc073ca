package device

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/internal/osthread"
	"github.com/wippyai/gpu-runtime/sim"
)

type threads struct {
	id osthread.ID
}

func (t *threads) current() osthread.ID { return t.id }

func setup(t *testing.T, devices int) (*Manager, *sim.Driver, *threads) {
	t.Helper()
	th := &threads{id: 100}
	caps := make([]gpuruntime.Version, devices)
	for i := range caps {
		caps[i] = gpuruntime.Version{Major: 7 + i}
	}
	drv := sim.NewDriver(sim.WithCapabilities(caps...), sim.WithThreadID(th.current))
	return NewManager(drv, &Config{ThreadID: th.current}), drv, th
}

func currentCtx(t *testing.T, drv *sim.Driver) driver.Context {
	t.Helper()
	ctx, err := drv.CtxGetCurrent()
	require.NoError(t, err)
	return ctx
}

func TestSelectThenReset(t *testing.T) {
	tests := []struct {
		name      string
		reset     driver.Device
		wantBound bool
	}{
		{"reset other device keeps binding", 0, true},
		{"reset bound device clears binding", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, drv, _ := setup(t, 2)
			require.NoError(t, m.SelectDevice(0))
			require.NoError(t, m.SelectDevice(1))

			b, ok := m.Current()
			require.True(t, ok)
			assert.Equal(t, driver.Device(1), b.Device)

			require.NoError(t, m.ResetDevice(tt.reset))
			got, ok := m.Current()
			assert.Equal(t, tt.wantBound, ok)
			if tt.wantBound {
				assert.Equal(t, b, got)
				assert.True(t, drv.Live(got.Ctx))
			} else {
				assert.False(t, drv.Live(b.Ctx))
			}
		})
	}
}

func TestEnsureInitializedAllowList(t *testing.T) {
	m, drv, _ := setup(t, 2)

	for _, op := range []string{"cuDeviceGetCount", "cuDriverGetVersion", "cuGetErrorString", "cuDevicePrimaryCtxRetain"} {
		require.NoError(t, m.EnsureInitialized(op))
		_, ok := m.Current()
		assert.False(t, ok, "%s must not bind", op)
	}
	assert.Zero(t, drv.Calls("cuInit"))

	require.NoError(t, m.EnsureInitialized("cuLaunchKernel"))
	b, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, driver.Device(0), b.Device)
	assert.Equal(t, b.Ctx, currentCtx(t, drv))

	require.NoError(t, m.EnsureInitialized("cuMemAlloc"))
	assert.Equal(t, 1, drv.Calls("cuDevicePrimaryCtxRetain"))
	assert.Equal(t, 1, drv.Calls("cuInit"))
}

func TestEnsureInitializedDefaultDevice(t *testing.T) {
	th := &threads{id: 1}
	drv := sim.NewDriver(sim.WithCapabilities(gpuruntime.Version{Major: 7}, gpuruntime.Version{Major: 8}),
		sim.WithThreadID(th.current))
	m := NewManager(drv, &Config{ThreadID: th.current, DefaultDevice: 1})

	require.NoError(t, m.EnsureInitialized("cuModuleLoadData"))
	b, _ := m.Current()
	assert.Equal(t, driver.Device(1), b.Device)
}

func TestSelectFastPath(t *testing.T) {
	m, drv, _ := setup(t, 1)
	calls := 0
	m.AddListener(EventDeviceSelected, NewListener(func(driver.Device, driver.Context) error {
		calls++
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, m.SelectDevice(0))
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, drv.Calls("cuCtxSetCurrent"))
}

func TestSelectReactivatesUnmanagedContext(t *testing.T) {
	tests := []struct {
		name    string
		foreign func(t *testing.T, drv *sim.Driver) driver.Context
	}{
		{"other primary", func(t *testing.T, drv *sim.Driver) driver.Context {
			ctx, err := drv.PrimaryCtxRetain(1)
			require.NoError(t, err)
			return ctx
		}},
		{"cleared", func(*testing.T, *sim.Driver) driver.Context { return driver.NoContext }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, drv, _ := setup(t, 2)
			require.NoError(t, m.SelectDevice(0))
			bound, _ := m.Current()

			require.NoError(t, drv.CtxSetCurrent(tt.foreign(t, drv)))
			calls := 0
			m.AddListener(EventDeviceSelected, NewListener(func(driver.Device, driver.Context) error {
				calls++
				return nil
			}))

			require.NoError(t, m.SelectDevice(0))
			assert.Equal(t, bound.Ctx, currentCtx(t, drv))
			assert.Zero(t, calls)
			b, ok := m.Current()
			require.True(t, ok)
			assert.Equal(t, bound, b)
		})
	}
}

func TestSelectAfterResetRebinds(t *testing.T) {
	m, drv, _ := setup(t, 1)
	require.NoError(t, m.SelectDevice(0))
	old, _ := m.Current()
	require.NoError(t, m.ResetDevice(0))

	require.NoError(t, m.SelectDevice(0))
	b, ok := m.Current()
	require.True(t, ok)
	assert.NotEqual(t, old.Ctx, b.Ctx)
	assert.True(t, drv.Live(b.Ctx))
}

func TestSelectDeviceScoped(t *testing.T) {
	t.Run("restores previous", func(t *testing.T) {
		m, drv, _ := setup(t, 2)
		require.NoError(t, m.SelectDevice(0))
		before, _ := m.Current()

		err := m.SelectDeviceScoped(1, func() error {
			b, _ := m.Current()
			assert.Equal(t, driver.Device(1), b.Device)
			assert.Equal(t, b.Ctx, currentCtx(t, drv))
			return nil
		})
		require.NoError(t, err)
		after, _ := m.Current()
		assert.Equal(t, before, after)
		assert.Equal(t, before.Ctx, currentCtx(t, drv))
	})

	t.Run("restores on error", func(t *testing.T) {
		m, drv, _ := setup(t, 2)
		require.NoError(t, m.SelectDevice(0))
		before, _ := m.Current()
		boom := stderrors.New("kernel failed")

		err := m.SelectDeviceScoped(1, func() error { return boom })
		assert.ErrorIs(t, err, boom)
		after, _ := m.Current()
		assert.Equal(t, before, after)
		assert.Equal(t, before.Ctx, currentCtx(t, drv))
	})

	t.Run("restores on panic", func(t *testing.T) {
		m, drv, _ := setup(t, 2)
		require.NoError(t, m.SelectDevice(0))
		before, _ := m.Current()

		assert.Panics(t, func() {
			_ = m.SelectDeviceScoped(1, func() error { panic("launch") })
		})
		after, _ := m.Current()
		assert.Equal(t, before, after)
		assert.Equal(t, before.Ctx, currentCtx(t, drv))
	})

	t.Run("no previous leaves none", func(t *testing.T) {
		m, drv, _ := setup(t, 2)
		require.NoError(t, m.SelectDeviceScoped(1, func() error { return nil }))
		_, ok := m.Current()
		assert.False(t, ok)
		assert.Equal(t, driver.NoContext, currentCtx(t, drv))
	})

	t.Run("previous reset inside body leaves none", func(t *testing.T) {
		m, drv, _ := setup(t, 2)
		require.NoError(t, m.SelectDevice(0))
		require.NoError(t, m.SelectDeviceScoped(1, func() error {
			return m.ResetDevice(0)
		}))
		_, ok := m.Current()
		assert.False(t, ok)
		assert.Equal(t, driver.NoContext, currentCtx(t, drv))
	})

	t.Run("unmanaged previous restored unbound", func(t *testing.T) {
		m, drv, _ := setup(t, 2)
		require.NoError(t, m.SelectDevice(0))
		bound, _ := m.Current()
		foreign, err := drv.PrimaryCtxRetain(1)
		require.NoError(t, err)
		require.NoError(t, drv.CtxSetCurrent(foreign))

		require.NoError(t, m.SelectDeviceScoped(1, func() error { return nil }))
		assert.Equal(t, foreign, currentCtx(t, drv))
		_, ok := m.Current()
		assert.False(t, ok)

		require.NoError(t, m.SelectDevice(0))
		b, ok := m.Current()
		require.True(t, ok)
		assert.Equal(t, bound, b)
		assert.Equal(t, bound.Ctx, currentCtx(t, drv))
	})
}

func TestListenerSet(t *testing.T) {
	m, _, _ := setup(t, 1)
	var seen []driver.Context
	l := NewListener(func(_ driver.Device, ctx driver.Context) error {
		seen = append(seen, ctx)
		return nil
	})

	assert.True(t, m.AddListener(EventDeviceReset, l))
	assert.False(t, m.AddListener(EventDeviceReset, l))
	assert.Equal(t, 1, m.Listeners(EventDeviceReset))
	assert.Zero(t, m.Listeners(EventDeviceSelected))

	require.NoError(t, m.SelectDevice(0))
	b, _ := m.Current()
	require.NoError(t, m.ResetDevice(0))
	assert.Equal(t, []driver.Context{b.Ctx}, seen)

	assert.True(t, m.RemoveListener(EventDeviceReset, l))
	assert.False(t, m.RemoveListener(EventDeviceReset, l))
	require.NoError(t, m.ResetDevice(0))
	assert.Len(t, seen, 1)
}

func TestSelectListenerError(t *testing.T) {
	m, drv, _ := setup(t, 1)
	boom := stderrors.New("listener")
	m.AddListener(EventDeviceSelected, NewListener(func(driver.Device, driver.Context) error { return boom }))

	err := m.SelectDevice(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrListenerFailure)
	assert.ErrorIs(t, err, boom)

	b, ok := m.Current()
	require.True(t, ok, "binding is not rolled back")
	assert.Equal(t, b.Ctx, currentCtx(t, drv))
}

func TestResetListenerError(t *testing.T) {
	m, drv, _ := setup(t, 1)
	require.NoError(t, m.SelectDevice(0))
	b, _ := m.Current()

	boom := stderrors.New("listener")
	m.AddListener(EventDeviceReset, NewListener(func(driver.Device, driver.Context) error { return boom }))

	err := m.ResetDevice(0)
	assert.True(t, errors.IsKind(err, errors.KindListenerFailure))
	assert.ErrorIs(t, err, boom)
	assert.False(t, drv.Live(b.Ctx), "teardown happens despite listener failure")
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestDriverFailures(t *testing.T) {
	t.Run("retain", func(t *testing.T) {
		m, drv, _ := setup(t, 1)
		drv.Fail("cuDevicePrimaryCtxRetain", driver.ErrorOutOfMemory)
		err := m.EnsureInitialized("cuLaunchKernel")
		assert.ErrorIs(t, err, errors.ErrDriverFailure)

		var r driver.Result
		require.ErrorAs(t, err, &r)
		assert.Equal(t, driver.ErrorOutOfMemory, r)
		_, ok := m.Current()
		assert.False(t, ok)
	})

	t.Run("reset", func(t *testing.T) {
		m, drv, _ := setup(t, 1)
		require.NoError(t, m.SelectDevice(0))
		drv.Fail("cuDevicePrimaryCtxReset", driver.ErrorInvalidContext)
		err := m.ResetDevice(0)
		assert.True(t, errors.IsKind(err, errors.KindDriverFailure))
	})

	t.Run("init", func(t *testing.T) {
		th := &threads{}
		m := NewManager(sim.NewDriver(sim.WithDevices(), sim.WithThreadID(th.current)), &Config{ThreadID: th.current})
		err := m.SelectDevice(0)
		assert.ErrorIs(t, err, errors.ErrDriverFailure)
		assert.ErrorIs(t, err, driver.ErrorNoDevice)
		assert.ErrorIs(t, m.EnsureInitialized("cuLaunchKernel"), driver.ErrorNoDevice)
	})
}

func TestResetSweepsOtherThreads(t *testing.T) {
	m, _, th := setup(t, 2)
	for id := osthread.ID(1); id <= 6; id++ {
		th.id = id
		require.NoError(t, m.SelectDevice(driver.Device(id % 2)))
	}
	assert.Equal(t, 6, m.Bound())

	th.id = 99
	require.NoError(t, m.ResetDevice(0))
	assert.Equal(t, 3, m.Bound())
	for id := osthread.ID(1); id <= 6; id++ {
		th.id = id
		b, ok := m.Current()
		assert.Equal(t, id%2 == 1, ok, "thread %d", id)
		if ok {
			assert.Equal(t, driver.Device(1), b.Device)
		}
	}
}

func TestDevicesDoesNotBind(t *testing.T) {
	m, _, _ := setup(t, 3)
	infos, err := m.Devices()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, gpuruntime.Version{Major: 9}, infos[2].Capability)
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestInfoAndSynchronize(t *testing.T) {
	m, _, _ := setup(t, 2)
	info, err := m.Info()
	require.NoError(t, err)
	assert.Equal(t, 0, info.Ordinal)
	assert.NoError(t, m.Synchronize())
}

func TestClose(t *testing.T) {
	m, drv, _ := setup(t, 2)
	require.NoError(t, m.SelectDevice(0))
	require.NoError(t, m.SelectDevice(1))
	require.NoError(t, m.Close())
	assert.Zero(t, drv.Refs(0))
	assert.Zero(t, drv.Refs(1))
	assert.Zero(t, m.Bound())
}

func TestPreInit(t *testing.T) {
	assert.True(t, PreInit("cuDeviceGetCount"))
	assert.True(t, PreInit("cuCtxPushCurrent"))
	assert.False(t, PreInit("cuLaunchKernel"))
	assert.False(t, PreInit("cuCtxSynchronize"))
}
