//go:build linux || windows

package osthread

import (
	"runtime"
	"testing"
)

func TestCurrentStableWhileLocked(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a := Current()
	runtime.Gosched()
	if b := Current(); a != b {
		t.Errorf("Current() changed while locked: %d then %d", a, b)
	}
}

func TestCurrentDistinctThreads(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	mine := Current()

	other := make(chan ID)
	go func() {
		runtime.LockOSThread()
		// keep the thread locked on exit so the runtime retires it
		other <- Current()
	}()
	if id := <-other; id == mine {
		t.Errorf("two locked goroutines reported the same thread %d", id)
	}
}
