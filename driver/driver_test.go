package driver

import (
	"errors"
	"fmt"
	"testing"
)

func TestResultError(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{Success, "CUDA_SUCCESS"},
		{ErrorInvalidContext, "CUDA_ERROR_INVALID_CONTEXT (201)"},
		{Result(12345), "CUDA_ERROR(12345)"},
	}
	for _, tt := range tests {
		if got := tt.r.Error(); got != tt.want {
			t.Errorf("Result(%d).Error() = %q, want %q", int32(tt.r), got, tt.want)
		}
	}
}

func TestResultErr(t *testing.T) {
	if err := Success.Err(); err != nil {
		t.Errorf("Success.Err() = %v, want nil", err)
	}
	wrapped := fmt.Errorf("retain: %w", ErrorNoDevice.Err())
	var r Result
	if !errors.As(wrapped, &r) || r != ErrorNoDevice {
		t.Errorf("errors.As recovered %v", r)
	}
}

func TestContextString(t *testing.T) {
	if got := NoContext.String(); got != "none" {
		t.Errorf("NoContext.String() = %q", got)
	}
	if got := Context(0x10).String(); got != "ctx:0x10" {
		t.Errorf("Context(0x10).String() = %q", got)
	}
}
