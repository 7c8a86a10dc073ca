package device

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/internal/osthread"
)

// Config configures a Manager. The zero value is ready to use.
type Config struct {
	// ThreadID identifies the calling OS thread. Defaults to osthread.Current.
	ThreadID func() osthread.ID
	// DefaultDevice is the ordinal bound by lazy initialization.
	DefaultDevice int
}

// Binding is a thread table entry.
type Binding struct {
	Device driver.Device
	Ctx    driver.Context
}

// Manager owns the thread table and primary contexts for one driver.
type Manager struct {
	drv    driver.Driver
	thread func() osthread.ID
	defDev int
	log    *zap.Logger

	initOnce sync.Once
	initErr  error

	// lifecycle orders bindings against reset teardown: binds share it,
	// a reset holds it exclusively.
	lifecycle sync.RWMutex

	// table is written by its owning threads and swept by resets.
	mu    sync.RWMutex
	table map[osthread.ID]Binding

	pmu      sync.Mutex
	primSeen map[driver.Device]driver.Context

	listeners *listenerSet
}

// NewManager creates a manager over drv. cfg may be nil.
func NewManager(drv driver.Driver, cfg *Config) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	m := &Manager{
		drv:       drv,
		thread:    cfg.ThreadID,
		defDev:    cfg.DefaultDevice,
		log:       Logger(),
		table:     make(map[osthread.ID]Binding),
		primSeen:  make(map[driver.Device]driver.Context),
		listeners: newListenerSet(),
	}
	if m.thread == nil {
		m.thread = osthread.Current
	}
	return m
}

// Driver returns the underlying driver.
func (m *Manager) Driver() driver.Driver {
	return m.drv
}

// init runs the driver's Init exactly once.
func (m *Manager) init() error {
	m.initOnce.Do(func() {
		if err := m.drv.Init(); err != nil {
			m.initErr = errors.DriverFailure("cuInit", err)
			return
		}
		m.log.Debug("driver initialized")
	})
	return m.initErr
}

// Current returns the calling thread's binding.
func (m *Manager) Current() (Binding, bool) {
	id := m.thread()
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.table[id]
	return b, ok
}

// Bound returns the number of threads with a binding.
func (m *Manager) Bound() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}

func (m *Manager) setEntry(id osthread.ID, b Binding, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.table[id] = b
	} else {
		delete(m.table, id)
	}
}

// primary returns the cached primary context of dev, retaining it on first use.
func (m *Manager) primary(dev driver.Device) (driver.Context, error) {
	m.pmu.Lock()
	defer m.pmu.Unlock()
	if ctx, ok := m.primSeen[dev]; ok {
		return ctx, nil
	}
	ctx, err := m.drv.PrimaryCtxRetain(dev)
	if err != nil {
		return driver.NoContext, errors.DriverFailure("cuDevicePrimaryCtxRetain", err)
	}
	m.primSeen[dev] = ctx
	return ctx, nil
}

func (m *Manager) livePrimary(b Binding) bool {
	m.pmu.Lock()
	defer m.pmu.Unlock()
	ctx, ok := m.primSeen[b.Device]
	return ok && ctx == b.Ctx
}

// EnsureInitialized makes sure the calling thread can issue op. Allow-listed
// calls and already-bound threads are left alone; otherwise the default
// device is bound.
func (m *Manager) EnsureInitialized(op string) error {
	if PreInit(op) {
		return nil
	}
	if _, ok := m.Current(); ok {
		return nil
	}
	if err := m.init(); err != nil {
		return err
	}
	dev, err := m.drv.DeviceGet(m.defDev)
	if err != nil {
		return errors.DriverFailure("cuDeviceGet", err)
	}
	m.log.Debug("lazy device binding", zap.String("op", op), zap.Int("device", int(dev)))
	return m.SelectDevice(dev)
}

// SelectDevice binds dev's primary context to the calling thread and
// notifies device-selected listeners. Selecting the device the thread is
// already bound to only reactivates its context if another one was made
// current behind the manager's back; listeners are not notified again.
func (m *Manager) SelectDevice(dev driver.Device) error {
	if err := m.init(); err != nil {
		return err
	}
	id := m.thread()
	if cur, ok := m.Current(); ok && cur.Device == dev && m.livePrimary(cur) {
		return m.reactivate(cur)
	}

	ctx, err := m.bind(id, dev)
	if err != nil {
		return err
	}
	m.log.Debug("device selected",
		zap.Uint64("thread", uint64(id)),
		zap.Int("device", int(dev)),
		zap.Stringer("ctx", ctx))

	if err := m.listeners.notify(EventDeviceSelected, dev, ctx); err != nil {
		m.log.Warn("device-selected listener failed", zap.Int("device", int(dev)), zap.Error(err))
		return errors.ListenerFailure(EventDeviceSelected.String(), err)
	}
	return nil
}

func (m *Manager) reactivate(b Binding) error {
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()

	active, err := m.drv.CtxGetCurrent()
	if err != nil {
		return errors.DriverFailure("cuCtxGetCurrent", err)
	}
	if active == b.Ctx {
		return nil
	}
	if err := m.drv.CtxSetCurrent(b.Ctx); err != nil {
		return errors.DriverFailure("cuCtxSetCurrent", err)
	}
	m.log.Debug("context reactivated",
		zap.Int("device", int(b.Device)),
		zap.Stringer("ctx", b.Ctx),
		zap.Stringer("replaced", active))
	return nil
}

func (m *Manager) bind(id osthread.ID, dev driver.Device) (driver.Context, error) {
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()

	ctx, err := m.primary(dev)
	if err != nil {
		return driver.NoContext, err
	}
	if err := m.drv.CtxSetCurrent(ctx); err != nil {
		return driver.NoContext, errors.DriverFailure("cuCtxSetCurrent", err)
	}
	m.setEntry(id, Binding{Device: dev, Ctx: ctx}, true)
	return ctx, nil
}

// SelectDeviceScoped runs fn with dev selected and restores the thread's
// previous context afterwards, including when fn fails or panics. A thread
// with no previous context, or whose previous context was reset meanwhile,
// is left with none. A context made current outside the manager is restored
// as-is but leaves the thread unbound.
func (m *Manager) SelectDeviceScoped(dev driver.Device, fn func() error) (err error) {
	if err := m.init(); err != nil {
		return err
	}
	id := m.thread()
	prev, hadPrev := m.Current()
	prevCtx, err := m.drv.CtxGetCurrent()
	if err != nil {
		return errors.DriverFailure("cuCtxGetCurrent", err)
	}

	defer func() {
		restoreErr := m.restore(id, prev, hadPrev, prevCtx)
		if err == nil {
			err = restoreErr
		}
	}()

	if err := m.SelectDevice(dev); err != nil {
		return err
	}
	return fn()
}

func (m *Manager) restore(id osthread.ID, prev Binding, hadPrev bool, prevCtx driver.Context) error {
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()

	if hadPrev && !m.livePrimary(prev) {
		hadPrev = false
		if prevCtx == prev.Ctx {
			prevCtx = driver.NoContext
		}
	}
	if err := m.drv.CtxSetCurrent(prevCtx); err != nil {
		// the previous handle went stale; leave nothing active
		m.setEntry(id, Binding{}, false)
		if err := m.drv.CtxSetCurrent(driver.NoContext); err != nil {
			return errors.DriverFailure("cuCtxSetCurrent", err)
		}
		return nil
	}
	// the table only records a binding whose context is actually active
	m.setEntry(id, prev, hadPrev && prevCtx == prev.Ctx)
	return nil
}

// ResetDevice notifies device-reset listeners, tears down dev's primary
// context and clears every thread bound to it. Teardown happens even when a
// listener fails; the listener error is returned afterwards.
func (m *Manager) ResetDevice(dev driver.Device) error {
	if err := m.init(); err != nil {
		return err
	}
	ctx, err := m.primary(dev)
	if err != nil {
		return err
	}

	listenerErr := m.listeners.notify(EventDeviceReset, dev, ctx)
	if listenerErr != nil {
		m.log.Warn("device-reset listener failed", zap.Int("device", int(dev)), zap.Error(listenerErr))
	}

	m.lifecycle.Lock()
	resetErr := m.drv.PrimaryCtxReset(dev)

	m.pmu.Lock()
	latest, had := m.primSeen[dev]
	delete(m.primSeen, dev)
	m.pmu.Unlock()

	m.mu.Lock()
	cleared := 0
	for id, b := range m.table {
		if b.Ctx == ctx || (had && b.Ctx == latest) {
			delete(m.table, id)
			cleared++
		}
	}
	m.mu.Unlock()
	m.lifecycle.Unlock()

	m.log.Debug("device reset",
		zap.Int("device", int(dev)),
		zap.Stringer("ctx", ctx),
		zap.Int("threads_cleared", cleared))

	if resetErr != nil {
		return errors.DriverFailure("cuDevicePrimaryCtxReset", resetErr)
	}
	if listenerErr != nil {
		return errors.ListenerFailure(EventDeviceReset.String(), listenerErr)
	}
	return nil
}

// AddListener registers l for e. It reports false if l was already registered.
func (m *Manager) AddListener(e Event, l Listener) bool {
	return m.listeners.add(e, l)
}

// RemoveListener unregisters l from e.
func (m *Manager) RemoveListener(e Event, l Listener) bool {
	return m.listeners.remove(e, l)
}

// Listeners returns how many listeners are registered for e.
func (m *Manager) Listeners(e Event) int {
	return m.listeners.len(e)
}

// Devices enumerates the driver's devices without binding a context.
func (m *Manager) Devices() ([]driver.Info, error) {
	if err := m.init(); err != nil {
		return nil, err
	}
	n, err := m.drv.DeviceCount()
	if err != nil {
		return nil, errors.DriverFailure("cuDeviceGetCount", err)
	}
	out := make([]driver.Info, 0, n)
	for i := 0; i < n; i++ {
		info, err := driver.Query(m.drv, i)
		if err != nil {
			return nil, errors.DriverFailure("cuDeviceGet", err)
		}
		out = append(out, info)
	}
	return out, nil
}

// Info describes the device the calling thread is bound to, binding the
// default device first if needed.
func (m *Manager) Info() (driver.Info, error) {
	if err := m.EnsureInitialized("cuCtxGetDevice"); err != nil {
		return driver.Info{}, err
	}
	b, ok := m.Current()
	if !ok {
		return driver.Info{}, errors.Uninitialized("cuCtxGetDevice")
	}
	info, err := driver.Query(m.drv, int(b.Device))
	if err != nil {
		return driver.Info{}, errors.DriverFailure("cuDeviceGet", err)
	}
	return info, nil
}

// Synchronize waits for all work on the calling thread's context.
func (m *Manager) Synchronize() error {
	if err := m.EnsureInitialized("cuCtxSynchronize"); err != nil {
		return err
	}
	if err := m.drv.CtxSynchronize(); err != nil {
		return errors.DriverFailure("cuCtxSynchronize", err)
	}
	return nil
}

// Close releases every primary context the manager retained and clears the
// thread table.
func (m *Manager) Close() error {
	m.pmu.Lock()
	prims := m.primSeen
	m.primSeen = make(map[driver.Device]driver.Context)
	m.pmu.Unlock()

	var first error
	for dev := range prims {
		if err := m.drv.PrimaryCtxRelease(dev); err != nil && first == nil {
			first = errors.DriverFailure("cuDevicePrimaryCtxRelease", err)
		}
	}

	m.mu.Lock()
	clear(m.table)
	m.mu.Unlock()
	return first
}
