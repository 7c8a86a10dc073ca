//go:build linux

package cuda

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/errors"
)

func TestResultsReturnedUnwrapped(t *testing.T) {
	saved := lib
	t.Cleanup(func() { lib = saved })

	tests := []struct {
		name string
		r    driver.Result
		call func(d *Driver) error
	}{
		{"init", driver.ErrorNoDevice, func(d *Driver) error { return d.Init() }},
		{"set current", driver.ErrorInvalidContext, func(d *Driver) error { return d.CtxSetCurrent(0x10) }},
		{"synchronize", driver.Success, func(d *Driver) error { return d.CtxSynchronize() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib.cuInit = func(uint32) driver.Result { return tt.r }
			lib.cuCtxSetCurrent = func(uintptr) driver.Result { return tt.r }
			lib.cuCtxSynchronize = func() driver.Result { return tt.r }

			err := tt.call(&Driver{})
			if tt.r == driver.Success {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tt.r, err)
			assert.False(t, errors.IsKind(err, errors.KindDriverFailure))

			wrapped := errors.DriverFailure("cuInit", err)
			assert.ErrorIs(t, wrapped, tt.r)
			assert.Equal(t, 1, strings.Count(wrapped.Error(), "cuInit"))
		})
	}
}

// Runs only where a driver is installed.
func TestOpen(t *testing.T) {
	d, err := Open()
	if err != nil {
		t.Skipf("libcuda not available: %v", err)
	}
	if err := d.Init(); err != nil {
		t.Skipf("cuInit: %v", err)
	}
	n, err := d.DeviceCount()
	require.NoError(t, err)
	if n == 0 {
		t.Skip("no devices")
	}
	info, err := driver.Query(d, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, info.Name)
	assert.GreaterOrEqual(t, info.Capability.Major, 2)
}
