// Package driver defines the device driver operations the lifecycle manager
// consumes. Implementations: driver/cuda (libcuda) and sim (in-memory).
package driver

import (
	"fmt"

	gpuruntime "github.com/wippyai/gpu-runtime"
)

// Device is a driver device handle.
type Device int

// Context is a driver context handle. The zero value means no context.
type Context uintptr

// NoContext is the absent context.
const NoContext Context = 0

func (c Context) String() string {
	if c == NoContext {
		return "none"
	}
	return fmt.Sprintf("ctx:%#x", uintptr(c))
}

// Driver is the subset of the CUDA driver API used by this module.
// Context operations act on the calling OS thread.
type Driver interface {
	Init() error
	Version() (int, error)

	DeviceCount() (int, error)
	DeviceGet(ordinal int) (Device, error)
	DeviceName(dev Device) (string, error)
	DeviceTotalMem(dev Device) (uint64, error)
	ComputeCapability(dev Device) (gpuruntime.Version, error)

	PrimaryCtxRetain(dev Device) (Context, error)
	PrimaryCtxRelease(dev Device) error
	PrimaryCtxReset(dev Device) error

	CtxSetCurrent(ctx Context) error
	CtxGetCurrent() (Context, error)
	CtxSynchronize() error
}

// Info describes one device.
type Info struct {
	Ordinal    int
	Device     Device
	Name       string
	Capability gpuruntime.Version
	TotalMem   uint64
}

func (i Info) String() string {
	return fmt.Sprintf("%d: %s (sm_%d%d, %d MB)", i.Ordinal, i.Name,
		i.Capability.Major, i.Capability.Minor, i.TotalMem/(1024*1024))
}

// Query collects Info for the device at ordinal.
func Query(d Driver, ordinal int) (Info, error) {
	dev, err := d.DeviceGet(ordinal)
	if err != nil {
		return Info{}, err
	}
	info := Info{Ordinal: ordinal, Device: dev}
	if info.Name, err = d.DeviceName(dev); err != nil {
		return Info{}, err
	}
	if info.Capability, err = d.ComputeCapability(dev); err != nil {
		return Info{}, err
	}
	if info.TotalMem, err = d.DeviceTotalMem(dev); err != nil {
		return Info{}, err
	}
	return info, nil
}
