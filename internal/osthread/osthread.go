// Package osthread identifies the OS thread the calling goroutine runs on.
// Callers that depend on a stable answer must hold runtime.LockOSThread.
package osthread

// ID is an operating system thread identifier.
type ID uint64

// Current returns the identifier of the calling OS thread.
func Current() ID {
	return current()
}
