package intrinsics

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/ir"
	"github.com/wippyai/gpu-runtime/target"
)

// Counter hands out shared-memory symbol numbers. It only moves forward.
type Counter struct {
	n atomic.Uint64
}

// Next returns the next symbol number, starting at 1.
func (c *Counter) Next() uint64 {
	return c.n.Add(1)
}

// Peek returns the last number handed out.
func (c *Counter) Peek() uint64 {
	return c.n.Load()
}

// Option configures a Session.
type Option func(*Session)

// WithCounter shares a symbol counter between sessions.
func WithCounter(c *Counter) Option {
	return func(s *Session) {
		s.counter = c
	}
}

// WithLLVM sets the toolchain LLVM major version used to pick the shuffle form.
func WithLLVM(major int) Option {
	return func(s *Session) {
		s.llvm = major
	}
}

// WithCatalog replaces the default catalog.
func WithCatalog(c *Catalog) Option {
	return func(s *Session) {
		s.catalog = c
	}
}

// Session is one code-generation session for a single target.
// It owns the static shared-memory sites and the resolved shuffle lowering.
type Session struct {
	id      uuid.UUID
	target  target.Target
	llvm    int
	catalog *Catalog
	counter *Counter
	form    target.ShuffleForm
	shfl32  shuffleLowering

	mu    sync.Mutex
	sites map[string]*Region
}

// NewSession creates a session for t.
func NewSession(t target.Target, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New(),
		target: t,
		llvm:   target.DefaultLLVM,
		sites:  make(map[string]*Region),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = Default()
	}
	if s.counter == nil {
		s.counter = &Counter{}
	}
	s.form = t.ShuffleForm(s.llvm)
	s.shfl32 = resolveShuffle(s.form)
	return s
}

// ID identifies the session in logs and module headers.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Target returns the session target.
func (s *Session) Target() target.Target {
	return s.target
}

// ShuffleForm returns the shuffle lowering resolved for the target.
func (s *Session) ShuffleForm() target.ShuffleForm {
	return s.form
}

// Catalog returns the catalog the session lowers from.
func (s *Session) Catalog() *Catalog {
	return s.catalog
}

// Lower emits the catalog entry called name into b. Omitted trailing
// arguments take the entry's defaults. Argument types must match exactly.
func (s *Session) Lower(b *ir.Builder, name string, args ...ir.Value) (ir.Value, error) {
	in, err := s.catalog.Lookup(name)
	if err != nil {
		return ir.Value{}, err
	}
	if len(args) < in.MinArgs() || len(args) > len(in.Params) {
		return ir.Value{}, errors.ArityMismatch(errors.PhaseLower, name, len(in.Params), len(args))
	}
	if missing := len(in.Params) - len(args); missing > 0 {
		args = append(append([]ir.Value(nil), args...), in.defaults[len(in.defaults)-missing:]...)
	}
	for i, p := range in.Params {
		if args[i].Type != ir.Scalar(p) {
			return ir.Value{}, errors.TypeMismatch(errors.PhaseLower,
				[]string{name, "arg" + strconv.Itoa(i)}, ir.Scalar(p).String(), args[i].Type.String())
		}
	}
	return in.lower(s, b, args)
}

// EmitFragment lowers name once against parameter placeholders %a0, %a1, ...
// into a standalone fragment.
func (s *Session) EmitFragment(name string) (*ir.Fragment, error) {
	in, err := s.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	b := ir.NewBuilder()
	args := make([]ir.Value, len(in.Params))
	argTypes := make([]ir.Type, len(in.Params))
	for i, p := range in.Params {
		argTypes[i] = ir.Scalar(p)
		args[i] = ir.Local(fmt.Sprintf("a%d", i), argTypes[i])
	}
	res, err := s.Lower(b, name, args...)
	if err != nil {
		return nil, err
	}
	return b.Fragment(res, argTypes), nil
}
