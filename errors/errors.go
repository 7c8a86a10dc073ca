package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLower    Phase = "lower"    // intrinsic lowering
	PhaseEmit     Phase = "emit"     // foreign instruction emission
	PhaseAlloc    Phase = "alloc"    // shared memory allocation
	PhaseContext  Phase = "context"  // device/context lifecycle
	PhaseDriver   Phase = "driver"   // driver binding calls
	PhaseListener Phase = "listener" // device select/reset callbacks
	PhaseCompile  Phase = "compile"  // module assembly
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedType      Kind = "unsupported_type"
	KindUninitializedContext Kind = "uninitialized_context"
	KindDriverFailure        Kind = "driver_failure"
	KindListenerFailure      Kind = "listener_failure"
	KindTypeMismatch         Kind = "type_mismatch"
	KindInvalidInput         Kind = "invalid_input"
	KindNotFound             Kind = "not_found"
	KindUnsupported          Kind = "unsupported"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	HostType string
	IRType   string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.HostType != "" || e.IRType != "" {
		b.WriteString(": ")
		if e.HostType != "" && e.IRType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
			b.WriteString(", IR type ")
			b.WriteString(e.IRType)
		} else if e.HostType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
		} else {
			b.WriteString("IR type ")
			b.WriteString(e.IRType)
		}
	}

	if e.Detail != "" {
		if e.HostType != "" || e.IRType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinels for matching a Kind in any phase with errors.Is.
var (
	ErrUnsupportedType      = &Error{Kind: KindUnsupportedType}
	ErrUninitializedContext = &Error{Kind: KindUninitializedContext}
	ErrDriverFailure        = &Error{Kind: KindDriverFailure}
	ErrListenerFailure      = &Error{Kind: KindListenerFailure}
	ErrTypeMismatch         = &Error{Kind: KindTypeMismatch}
)

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the operation path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// HostType sets the host type name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// IRType sets the IR type token
func (b *Builder) IRType(t string) *Builder {
	b.err.IRType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnsupportedType creates an error for a type with no IR mapping
func UnsupportedType(phase Phase, hostType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUnsupportedType,
		HostType: hostType,
		Detail:   "no low-level type mapping",
	}
}

// UnsupportedToken creates an error for an IR token with no host mapping
func UnsupportedToken(phase Phase, token string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedType,
		IRType: token,
		Detail: "no host type mapping",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		IRType:   want,
		HostType: got,
	}
}

// ArityMismatch creates an error for a wrong number of operands
func ArityMismatch(phase Phase, name string, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   []string{name},
		Detail: fmt.Sprintf("expected %d arguments, got %d", want, got),
		Value:  got,
	}
}

// Uninitialized creates an error for an operation issued without a bound context
func Uninitialized(op string) *Error {
	return &Error{
		Phase:  PhaseContext,
		Kind:   KindUninitializedContext,
		Path:   []string{op},
		Detail: "no context bound to the calling thread",
	}
}

// DriverFailure wraps an error reported by the driver binding
func DriverFailure(op string, cause error) *Error {
	return &Error{
		Phase: PhaseDriver,
		Kind:  KindDriverFailure,
		Path:  []string{op},
		Cause: cause,
	}
}

// ListenerFailure wraps an error returned by a device select/reset callback
func ListenerFailure(event string, cause error) *Error {
	return &Error{
		Phase:  PhaseListener,
		Kind:   KindListenerFailure,
		Path:   []string{event},
		Detail: "listener returned an error",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
