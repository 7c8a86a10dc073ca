//go:build linux || windows

package device

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/sim"
)

// Bindings on real OS threads; a reset from another thread clears only the
// threads bound to the reset device.
func TestConcurrentResetOnOSThreads(t *testing.T) {
	drv := sim.NewDriver(sim.WithCapabilities(gpuruntime.Version{Major: 7}, gpuruntime.Version{Major: 8}))
	m := NewManager(drv, nil)

	const workers = 8
	var (
		bound   sync.WaitGroup
		done    sync.WaitGroup
		release = make(chan struct{})
		results = make([]bool, workers)
	)
	bound.Add(workers)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer done.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			err := m.SelectDevice(driver.Device(i % 2))
			bound.Done()
			if err != nil {
				return
			}
			<-release
			_, results[i] = m.Current()
		}(i)
	}
	bound.Wait()
	require.Equal(t, workers, m.Bound())

	require.NoError(t, m.ResetDevice(0))
	close(release)
	done.Wait()

	for i, ok := range results {
		assert.Equal(t, i%2 == 1, ok, "worker %d", i)
	}
}
