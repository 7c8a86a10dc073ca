//go:build linux

package cuda

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/errors"
)

var libraryNames = []string{"libcuda.so.1", "libcuda.so"}

const (
	attrComputeCapabilityMajor = 75
	attrComputeCapabilityMinor = 76
)

type symbols struct {
	cuInit                    func(flags uint32) driver.Result
	cuDriverGetVersion        func(version *int32) driver.Result
	cuDeviceGetCount          func(count *int32) driver.Result
	cuDeviceGet               func(dev *int32, ordinal int32) driver.Result
	cuDeviceGetName           func(name *byte, size int32, dev int32) driver.Result
	cuDeviceGetAttribute      func(value *int32, attr int32, dev int32) driver.Result
	cuDeviceTotalMem          func(bytes *uint64, dev int32) driver.Result
	cuDevicePrimaryCtxRetain  func(ctx *uintptr, dev int32) driver.Result
	cuDevicePrimaryCtxRelease func(dev int32) driver.Result
	cuDevicePrimaryCtxReset   func(dev int32) driver.Result
	cuCtxSetCurrent           func(ctx uintptr) driver.Result
	cuCtxGetCurrent           func(ctx *uintptr) driver.Result
	cuCtxSynchronize          func() driver.Result
}

var (
	lib     symbols
	libOnce sync.Once
	libErr  error
)

func load() error {
	libOnce.Do(func() {
		var handle uintptr
		for _, name := range libraryNames {
			handle, libErr = purego.Dlopen(name, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
			if libErr == nil {
				Logger().Debug("loaded driver library", zap.String("library", name))
				break
			}
		}
		if libErr != nil {
			libErr = errors.Wrap(errors.PhaseDriver, errors.KindDriverFailure, libErr, "load libcuda")
			return
		}
		purego.RegisterLibFunc(&lib.cuInit, handle, "cuInit")
		purego.RegisterLibFunc(&lib.cuDriverGetVersion, handle, "cuDriverGetVersion")
		purego.RegisterLibFunc(&lib.cuDeviceGetCount, handle, "cuDeviceGetCount")
		purego.RegisterLibFunc(&lib.cuDeviceGet, handle, "cuDeviceGet")
		purego.RegisterLibFunc(&lib.cuDeviceGetName, handle, "cuDeviceGetName")
		purego.RegisterLibFunc(&lib.cuDeviceGetAttribute, handle, "cuDeviceGetAttribute")
		purego.RegisterLibFunc(&lib.cuDeviceTotalMem, handle, "cuDeviceTotalMem_v2")
		purego.RegisterLibFunc(&lib.cuDevicePrimaryCtxRetain, handle, "cuDevicePrimaryCtxRetain")
		purego.RegisterLibFunc(&lib.cuDevicePrimaryCtxRelease, handle, "cuDevicePrimaryCtxRelease_v2")
		purego.RegisterLibFunc(&lib.cuDevicePrimaryCtxReset, handle, "cuDevicePrimaryCtxReset_v2")
		purego.RegisterLibFunc(&lib.cuCtxSetCurrent, handle, "cuCtxSetCurrent")
		purego.RegisterLibFunc(&lib.cuCtxGetCurrent, handle, "cuCtxGetCurrent")
		purego.RegisterLibFunc(&lib.cuCtxSynchronize, handle, "cuCtxSynchronize")
	})
	return libErr
}

// Driver calls into libcuda.
type Driver struct{}

var _ driver.Driver = (*Driver)(nil)

// Open loads libcuda and returns a driver bound to it.
func Open() (*Driver, error) {
	if err := load(); err != nil {
		return nil, err
	}
	return &Driver{}, nil
}

func (d *Driver) Init() error {
	return lib.cuInit(0).Err()
}

func (d *Driver) Version() (int, error) {
	var v int32
	if err := lib.cuDriverGetVersion(&v).Err(); err != nil {
		return 0, err
	}
	return int(v), nil
}

func (d *Driver) DeviceCount() (int, error) {
	var n int32
	if err := lib.cuDeviceGetCount(&n).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *Driver) DeviceGet(ordinal int) (driver.Device, error) {
	var dev int32
	if err := lib.cuDeviceGet(&dev, int32(ordinal)).Err(); err != nil {
		return 0, err
	}
	return driver.Device(dev), nil
}

func (d *Driver) DeviceName(dev driver.Device) (string, error) {
	buf := make([]byte, 256)
	if err := lib.cuDeviceGetName(&buf[0], int32(len(buf)), int32(dev)).Err(); err != nil {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}

func (d *Driver) DeviceTotalMem(dev driver.Device) (uint64, error) {
	var n uint64
	if err := lib.cuDeviceTotalMem(&n, int32(dev)).Err(); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Driver) ComputeCapability(dev driver.Device) (gpuruntime.Version, error) {
	var major, minor int32
	if err := lib.cuDeviceGetAttribute(&major, attrComputeCapabilityMajor, int32(dev)).Err(); err != nil {
		return gpuruntime.Version{}, err
	}
	if err := lib.cuDeviceGetAttribute(&minor, attrComputeCapabilityMinor, int32(dev)).Err(); err != nil {
		return gpuruntime.Version{}, err
	}
	return gpuruntime.Version{Major: int(major), Minor: int(minor)}, nil
}

func (d *Driver) PrimaryCtxRetain(dev driver.Device) (driver.Context, error) {
	var ctx uintptr
	if err := lib.cuDevicePrimaryCtxRetain(&ctx, int32(dev)).Err(); err != nil {
		return driver.NoContext, err
	}
	return driver.Context(ctx), nil
}

func (d *Driver) PrimaryCtxRelease(dev driver.Device) error {
	return lib.cuDevicePrimaryCtxRelease(int32(dev)).Err()
}

func (d *Driver) PrimaryCtxReset(dev driver.Device) error {
	return lib.cuDevicePrimaryCtxReset(int32(dev)).Err()
}

func (d *Driver) CtxSetCurrent(ctx driver.Context) error {
	return lib.cuCtxSetCurrent(uintptr(ctx)).Err()
}

func (d *Driver) CtxGetCurrent() (driver.Context, error) {
	var ctx uintptr
	if err := lib.cuCtxGetCurrent(&ctx).Err(); err != nil {
		return driver.NoContext, err
	}
	return driver.Context(ctx), nil
}

func (d *Driver) CtxSynchronize() error {
	return lib.cuCtxSynchronize().Err()
}

func (d *Driver) String() string {
	return fmt.Sprintf("cuda(%s)", libraryNames[0])
}
