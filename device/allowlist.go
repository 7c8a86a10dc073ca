package device

// preInit lists driver calls that are safe without a bound context.
var preInit = map[string]struct{}{
	"cuInit":                    {},
	"cuDriverGetVersion":        {},
	"cuDeviceGet":               {},
	"cuDeviceGetCount":          {},
	"cuDeviceGetName":           {},
	"cuDeviceGetAttribute":      {},
	"cuDeviceTotalMem":          {},
	"cuDeviceComputeCapability": {},
	"cuGetErrorName":            {},
	"cuGetErrorString":          {},
	"cuCtxGetCurrent":           {},
	"cuCtxPushCurrent":          {},
	"cuDevicePrimaryCtxRetain":  {},
}

// PreInit reports whether op may be issued before any context is bound.
func PreInit(op string) bool {
	_, ok := preInit[op]
	return ok
}
