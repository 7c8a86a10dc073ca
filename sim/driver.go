package sim

import (
	"sync"

	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/internal/osthread"
)

// DeviceSpec describes a simulated device.
type DeviceSpec struct {
	Name       string
	Capability gpuruntime.Version
	TotalMem   uint64
}

// DefaultDevice is used when no devices are configured.
var DefaultDevice = DeviceSpec{
	Name:       "Simulated GPU",
	Capability: gpuruntime.Version{Major: 7, Minor: 0},
	TotalMem:   8 << 30,
}

type primary struct {
	ctx  driver.Context
	refs int
}

// Driver is a driver.Driver kept entirely in memory.
type Driver struct {
	mu       sync.Mutex
	devices  []DeviceSpec
	thread   func() osthread.ID
	init     bool
	version  int
	nextCtx  driver.Context
	primary  map[driver.Device]*primary
	live     map[driver.Context]driver.Device
	current  map[osthread.ID]driver.Context
	faults   map[string]driver.Result
	calls    map[string]int
	syncHook func(driver.Context) error
}

var _ driver.Driver = (*Driver)(nil)

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDevices sets the simulated devices, ordinal order.
func WithDevices(specs ...DeviceSpec) DriverOption {
	return func(d *Driver) {
		d.devices = append([]DeviceSpec(nil), specs...)
	}
}

// WithCapabilities adds one default-named device per capability.
func WithCapabilities(caps ...gpuruntime.Version) DriverOption {
	return func(d *Driver) {
		d.devices = d.devices[:0]
		for _, c := range caps {
			spec := DefaultDevice
			spec.Capability = c
			d.devices = append(d.devices, spec)
		}
	}
}

// WithThreadID replaces the OS thread identity used for current contexts.
func WithThreadID(fn func() osthread.ID) DriverOption {
	return func(d *Driver) {
		d.thread = fn
	}
}

// WithSynchronize installs a hook run by CtxSynchronize.
func WithSynchronize(fn func(driver.Context) error) DriverOption {
	return func(d *Driver) {
		d.syncHook = fn
	}
}

// NewDriver creates a simulated driver.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		devices: []DeviceSpec{DefaultDevice},
		thread:  osthread.Current,
		version: 12040,
		nextCtx: 0x1000,
		primary: make(map[driver.Device]*primary),
		live:    make(map[driver.Context]driver.Device),
		current: make(map[osthread.ID]driver.Context),
		faults:  make(map[string]driver.Result),
		calls:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fail makes every later call to op return r until cleared with Success.
func (d *Driver) Fail(op string, r driver.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r == driver.Success {
		delete(d.faults, op)
		return
	}
	d.faults[op] = r
}

// Calls returns how many times op was invoked.
func (d *Driver) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Live reports whether ctx has not been destroyed.
func (d *Driver) Live(ctx driver.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.live[ctx]
	return ok
}

// Refs returns the primary context reference count of dev.
func (d *Driver) Refs(dev driver.Device) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.primary[dev]; p != nil {
		return p.refs
	}
	return 0
}

// enter records a call and returns the injected fault for op.
// Callers hold d.mu.
func (d *Driver) enter(op string, needInit bool) error {
	d.calls[op]++
	if r, ok := d.faults[op]; ok {
		return r
	}
	if needInit && !d.init {
		return driver.ErrorNotInitialized
	}
	return nil
}

func (d *Driver) device(dev driver.Device) (*DeviceSpec, error) {
	if dev < 0 || int(dev) >= len(d.devices) {
		return nil, driver.ErrorInvalidDevice
	}
	return &d.devices[dev], nil
}

func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuInit", false); err != nil {
		return err
	}
	if len(d.devices) == 0 {
		return driver.ErrorNoDevice
	}
	d.init = true
	return nil
}

func (d *Driver) Version() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDriverGetVersion", false); err != nil {
		return 0, err
	}
	return d.version, nil
}

func (d *Driver) DeviceCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDeviceGetCount", true); err != nil {
		return 0, err
	}
	return len(d.devices), nil
}

func (d *Driver) DeviceGet(ordinal int) (driver.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDeviceGet", true); err != nil {
		return 0, err
	}
	if _, err := d.device(driver.Device(ordinal)); err != nil {
		return 0, err
	}
	return driver.Device(ordinal), nil
}

func (d *Driver) DeviceName(dev driver.Device) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDeviceGetName", true); err != nil {
		return "", err
	}
	spec, err := d.device(dev)
	if err != nil {
		return "", err
	}
	return spec.Name, nil
}

func (d *Driver) DeviceTotalMem(dev driver.Device) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDeviceTotalMem", true); err != nil {
		return 0, err
	}
	spec, err := d.device(dev)
	if err != nil {
		return 0, err
	}
	return spec.TotalMem, nil
}

func (d *Driver) ComputeCapability(dev driver.Device) (gpuruntime.Version, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDeviceComputeCapability", true); err != nil {
		return gpuruntime.Version{}, err
	}
	spec, err := d.device(dev)
	if err != nil {
		return gpuruntime.Version{}, err
	}
	return spec.Capability, nil
}

func (d *Driver) PrimaryCtxRetain(dev driver.Device) (driver.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDevicePrimaryCtxRetain", true); err != nil {
		return driver.NoContext, err
	}
	if _, err := d.device(dev); err != nil {
		return driver.NoContext, err
	}
	p := d.primary[dev]
	if p == nil {
		p = &primary{}
		d.primary[dev] = p
	}
	if p.ctx == driver.NoContext {
		d.nextCtx += 0x10
		p.ctx = d.nextCtx
		d.live[p.ctx] = dev
	}
	p.refs++
	return p.ctx, nil
}

func (d *Driver) PrimaryCtxRelease(dev driver.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDevicePrimaryCtxRelease", true); err != nil {
		return err
	}
	p := d.primary[dev]
	if p == nil || p.refs == 0 {
		return driver.ErrorInvalidContext
	}
	p.refs--
	if p.refs == 0 {
		d.destroy(p)
	}
	return nil
}

func (d *Driver) PrimaryCtxReset(dev driver.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuDevicePrimaryCtxReset", true); err != nil {
		return err
	}
	if _, err := d.device(dev); err != nil {
		return err
	}
	if p := d.primary[dev]; p != nil {
		d.destroy(p)
		p.refs = 0
	}
	return nil
}

func (d *Driver) destroy(p *primary) {
	delete(d.live, p.ctx)
	p.ctx = driver.NoContext
}

func (d *Driver) CtxSetCurrent(ctx driver.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuCtxSetCurrent", true); err != nil {
		return err
	}
	id := d.thread()
	if ctx == driver.NoContext {
		delete(d.current, id)
		return nil
	}
	if _, ok := d.live[ctx]; !ok {
		return driver.ErrorInvalidContext
	}
	d.current[id] = ctx
	return nil
}

// CtxGetCurrent reports the calling thread's context. A context destroyed by
// a reset is still reported until the thread replaces it.
func (d *Driver) CtxGetCurrent() (driver.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("cuCtxGetCurrent", true); err != nil {
		return driver.NoContext, err
	}
	return d.current[d.thread()], nil
}

func (d *Driver) CtxSynchronize() error {
	d.mu.Lock()
	if err := d.enter("cuCtxSynchronize", true); err != nil {
		d.mu.Unlock()
		return err
	}
	ctx := d.current[d.thread()]
	_, ok := d.live[ctx]
	hook := d.syncHook
	d.mu.Unlock()

	if !ok {
		return driver.ErrorInvalidContext
	}
	if hook != nil {
		return hook(ctx)
	}
	return nil
}
