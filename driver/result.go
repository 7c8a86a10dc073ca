package driver

import "fmt"

// Result is a CUDA driver status code. Non-zero results are errors.
type Result int32

const (
	Success                  Result = 0
	ErrorInvalidValue        Result = 1
	ErrorOutOfMemory         Result = 2
	ErrorNotInitialized      Result = 3
	ErrorDeinitialized       Result = 4
	ErrorNoDevice            Result = 100
	ErrorInvalidDevice       Result = 101
	ErrorInvalidContext      Result = 201
	ErrorContextAlreadyInUse Result = 216
	ErrorInvalidHandle       Result = 400
	ErrorNotFound            Result = 500
	ErrorNotReady            Result = 600
	ErrorLaunchFailed        Result = 719
	ErrorNotSupported        Result = 801
	ErrorUnknown             Result = 999
)

var resultNames = map[Result]string{
	ErrorInvalidValue:        "INVALID_VALUE",
	ErrorOutOfMemory:         "OUT_OF_MEMORY",
	ErrorNotInitialized:      "NOT_INITIALIZED",
	ErrorDeinitialized:       "DEINITIALIZED",
	ErrorNoDevice:            "NO_DEVICE",
	ErrorInvalidDevice:       "INVALID_DEVICE",
	ErrorInvalidContext:      "INVALID_CONTEXT",
	ErrorContextAlreadyInUse: "CONTEXT_ALREADY_IN_USE",
	ErrorInvalidHandle:       "INVALID_HANDLE",
	ErrorNotFound:            "NOT_FOUND",
	ErrorNotReady:            "NOT_READY",
	ErrorLaunchFailed:        "LAUNCH_FAILED",
	ErrorNotSupported:        "NOT_SUPPORTED",
	ErrorUnknown:             "UNKNOWN",
}

func (r Result) Error() string {
	if r == Success {
		return "CUDA_SUCCESS"
	}
	if name, ok := resultNames[r]; ok {
		return fmt.Sprintf("CUDA_ERROR_%s (%d)", name, int32(r))
	}
	return fmt.Sprintf("CUDA_ERROR(%d)", int32(r))
}

// Err returns nil for Success and r otherwise.
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return r
}
