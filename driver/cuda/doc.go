// Package cuda implements driver.Driver on top of libcuda, loaded at run
// time with purego. Building it needs neither cgo nor the CUDA toolkit; only
// the driver library must be present when Open is called.
package cuda
