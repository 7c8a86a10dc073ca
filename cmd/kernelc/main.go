// Command kernelc compiles kernels and manages devices.
package main

import (
	"fmt"
	"os"
	"runtime"
)

func main() {
	// Device bindings are per OS thread.
	runtime.LockOSThread()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
