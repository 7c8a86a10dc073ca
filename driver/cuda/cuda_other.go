//go:build !linux

package cuda

import (
	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/errors"
)

// Driver is unavailable on this platform.
type Driver struct {
	driver.Driver
}

// Open always fails on this platform.
func Open() (*Driver, error) {
	return nil, errors.Unsupported(errors.PhaseDriver, "libcuda binding is only built for linux")
}
