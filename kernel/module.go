package kernel

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/gpu-runtime/target"
)

// Module collects kernel definitions and renders a complete IR module.
type Module struct {
	Session uuid.UUID
	Target  target.Target

	globals    []string
	globalSeen map[string]struct{}
	decls      []string
	declSeen   map[string]struct{}
	defines    []string
	kernels    []string
}

// NewModule creates an empty module.
func NewModule(session uuid.UUID, t target.Target) *Module {
	return &Module{
		Session:    session,
		Target:     t,
		globalSeen: make(map[string]struct{}),
		declSeen:   make(map[string]struct{}),
	}
}

// Kernels returns the kernel names in definition order.
func (m *Module) Kernels() []string {
	return append([]string(nil), m.kernels...)
}

func (m *Module) add(k Kernel, f *Func) error {
	params := make([]string, len(k.Params))
	for i, p := range k.Params {
		tok, err := p.Type.Token()
		if err != nil {
			return err
		}
		params[i] = fmt.Sprintf("%s %%%s", tok, p.Name)
	}

	for _, g := range f.b.Globals() {
		if _, ok := m.globalSeen[g]; !ok {
			m.globalSeen[g] = struct{}{}
			m.globals = append(m.globals, g)
		}
	}
	for _, d := range f.b.Declarations() {
		if _, ok := m.declSeen[d]; !ok {
			m.declSeen[d] = struct{}{}
			m.decls = append(m.decls, d)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "define void @%s(%s) {\n", k.Name, strings.Join(params, ", "))
	b.WriteString("entry:\n")
	for _, line := range f.b.Body() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("  ret void\n}")
	m.defines = append(m.defines, b.String())
	m.kernels = append(m.kernels, k.Name)
	return nil
}

// String renders the module as LLVM IR text.
func (m *Module) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "; ModuleID = 'kernels'\n")
	fmt.Fprintf(&b, "; session %s\n", m.Session)
	fmt.Fprintf(&b, "; target %s (%s)\n", m.Target.Name, m.Target.Features())
	fmt.Fprintf(&b, "target datalayout = %q\n", target.DataLayout)
	fmt.Fprintf(&b, "target triple = %q\n", target.Triple)

	section := func(lines []string, sep string) {
		if len(lines) == 0 {
			return
		}
		b.WriteByte('\n')
		b.WriteString(strings.Join(lines, sep))
		b.WriteByte('\n')
	}
	section(m.globals, "\n")
	section(m.defines, "\n\n")
	section(m.decls, "\n")

	if len(m.kernels) > 0 {
		refs := make([]string, len(m.kernels))
		for i := range m.kernels {
			refs[i] = fmt.Sprintf("!%d", i)
		}
		fmt.Fprintf(&b, "\n!nvvm.annotations = !{%s}\n", strings.Join(refs, ", "))
		for i, k := range m.kernels {
			fmt.Fprintf(&b, "!%d = !{ptr @%s, !\"kernel\", i32 1}\n", i, k)
		}
	}
	return b.String()
}
