package kernel

import (
	"context"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/gpu-runtime/device"
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/intrinsics"
	"github.com/wippyai/gpu-runtime/ir"
	"github.com/wippyai/gpu-runtime/target"
)

// Config configures a Compiler. The zero value is ready to use.
type Config struct {
	// LLVM is the toolchain LLVM major version; target.DefaultLLVM when zero.
	LLVM int
	// Target overrides the target derived from the bound device ("sm_75").
	Target string
}

// Image is a compiled module.
type Image struct {
	Target  target.Target
	Session uuid.UUID
	Kernels []string
	IR      string
}

// Compiler compiles kernels for the device bound to the calling thread.
// It keeps one code-generation session per target; all sessions share one
// shared-memory symbol counter.
type Compiler struct {
	mgr *device.Manager
	cfg Config

	mu       sync.Mutex
	counter  *intrinsics.Counter
	sessions map[string]*intrinsics.Session
}

// NewCompiler creates a compiler. mgr may be nil for CompileTarget-only use.
func NewCompiler(mgr *device.Manager, cfg *Config) *Compiler {
	c := &Compiler{
		mgr:      mgr,
		counter:  &intrinsics.Counter{},
		sessions: make(map[string]*intrinsics.Session),
	}
	if cfg != nil {
		c.cfg = *cfg
	}
	if c.cfg.LLVM == 0 {
		c.cfg.LLVM = target.DefaultLLVM
	}
	return c
}

// Session returns the session for t, creating it on first use.
func (c *Compiler) Session(t target.Target) *intrinsics.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[t.Name]
	if !ok {
		s = intrinsics.NewSession(t, intrinsics.WithCounter(c.counter), intrinsics.WithLLVM(c.cfg.LLVM))
		c.sessions[t.Name] = s
		Logger().Debug("code generation session",
			zap.Stringer("session", s.ID()),
			zap.String("target", t.Name),
			zap.Stringer("shuffle", s.ShuffleForm()))
	}
	return s
}

// Compile binds the calling thread if needed, resolves the target from the
// bound device and compiles kernels into one module.
func (c *Compiler) Compile(ctx context.Context, kernels ...Kernel) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.mgr == nil {
		return nil, errors.Uninitialized("cuModuleLoadData")
	}
	if err := c.mgr.EnsureInitialized("cuModuleLoadData"); err != nil {
		return nil, err
	}
	t, err := c.resolveTarget()
	if err != nil {
		return nil, err
	}
	return c.CompileTarget(ctx, t, kernels...)
}

func (c *Compiler) resolveTarget() (target.Target, error) {
	if c.cfg.Target != "" {
		return target.GetTarget(c.cfg.Target)
	}
	info, err := c.mgr.Info()
	if err != nil {
		return target.Target{}, err
	}
	return target.ForCapability(info.Capability)
}

var identRe = regexp.MustCompile(`^[A-Za-z_.$][A-Za-z0-9_.$]*$`)

func validate(kernels []Kernel) error {
	if len(kernels) == 0 {
		return errors.InvalidInput(errors.PhaseCompile, "no kernels")
	}
	seen := make(map[string]bool, len(kernels))
	for _, k := range kernels {
		if !identRe.MatchString(k.Name) {
			return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
				Value(k.Name).
				Detail("invalid kernel name").
				Build()
		}
		if seen[k.Name] {
			return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
				Path(k.Name).
				Detail("duplicate kernel name").
				Build()
		}
		seen[k.Name] = true
		if k.Body == nil {
			return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
				Path(k.Name).
				Detail("kernel has no body").
				Build()
		}
		params := make(map[string]bool, len(k.Params))
		for _, p := range k.Params {
			if !identRe.MatchString(p.Name) || params[p.Name] {
				return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
					Path(k.Name, p.Name).
					Detail("invalid or duplicate parameter name").
					Build()
			}
			params[p.Name] = true
			if _, err := p.Type.Token(); err != nil {
				return err
			}
			if p.Type.IsVoid() {
				return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
					Path(k.Name, p.Name).
					IRType(ir.Scalar(ir.Void).String()).
					Detail("void parameter").
					Build()
			}
		}
	}
	return nil
}

// CompileTarget compiles kernels for an explicit target without consulting
// the device manager.
func (c *Compiler) CompileTarget(ctx context.Context, t target.Target, kernels ...Kernel) (*Image, error) {
	if err := validate(kernels); err != nil {
		return nil, err
	}
	sess := c.Session(t)
	mod := NewModule(sess.ID(), t)

	for _, k := range kernels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := newFunc(k, sess)
		if err := k.Body(f); err != nil {
			return nil, errors.New(errors.PhaseCompile, kindOf(err)).
				Path(k.Name).
				Cause(err).
				Detail("kernel body").
				Build()
		}
		if err := mod.add(k, f); err != nil {
			return nil, err
		}
	}

	Logger().Info("compiled module",
		zap.Stringer("session", sess.ID()),
		zap.String("target", t.Name),
		zap.Strings("kernels", mod.Kernels()))

	return &Image{
		Target:  t,
		Session: sess.ID(),
		Kernels: mod.Kernels(),
		IR:      mod.String(),
	}, nil
}

// kindOf keeps the kind of a structured cause.
func kindOf(err error) errors.Kind {
	for _, k := range []errors.Kind{
		errors.KindUnsupportedType,
		errors.KindTypeMismatch,
		errors.KindUnsupported,
		errors.KindInvalidInput,
		errors.KindNotFound,
	} {
		if errors.IsKind(err, k) {
			return k
		}
	}
	return errors.KindInvalidInput
}
