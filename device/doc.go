// Package device binds driver contexts to OS threads.
//
// Each OS thread that touches the device subsystem has at most one entry in
// the Manager's thread table:
//
//	Uninitialized --EnsureInitialized / SelectDevice--> Bound(device, ctx)
//	Bound(ctx)    --ResetDevice(device of ctx), any thread--> Uninitialized
//
// EnsureInitialized lazily binds device 0 unless the requested driver call
// is on the pre-init allow-list (enumeration, version and error queries).
//
// # Listeners
//
// Listeners registered for EventDeviceSelected run after a thread switches
// device; listeners for EventDeviceReset run before the primary context is
// torn down. Listeners form a set: adding the same Listener twice has no
// effect. Invocation order is unspecified, and the first listener error stops
// the remaining listeners and is returned after the state change has taken
// effect.
//
// # Threads
//
// Bindings belong to OS threads. Goroutines that rely on a binding must call
// runtime.LockOSThread first.
package device
