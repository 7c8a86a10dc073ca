package ir

import (
	"strings"

	"github.com/wippyai/gpu-runtime/errors"
)

// Attribute is a set of function attributes attached to a declaration.
type Attribute uint8

const (
	ReadNone Attribute = 1 << iota
	NoUnwind
	Convergent
)

var attributeNames = []struct {
	attr Attribute
	name string
}{
	{ReadNone, "readnone"},
	{NoUnwind, "nounwind"},
	{Convergent, "convergent"},
}

// Has reports whether all bits of other are set.
func (a Attribute) Has(other Attribute) bool {
	return a&other == other
}

func (a Attribute) String() string {
	var parts []string
	for _, n := range attributeNames {
		if a.Has(n.attr) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// Signature identifies one foreign-instruction template.
type Signature struct {
	Name   string
	Params []ScalarType
	Result ScalarType
	Attrs  Attribute
}

// Validate checks that every type in the signature is mapped.
func (s Signature) Validate() error {
	if _, err := s.Result.Token(); err != nil {
		return signatureError(s.Name, "result", s.Result)
	}
	for _, p := range s.Params {
		if _, err := p.Token(); err != nil {
			return signatureError(s.Name, "param", p)
		}
		if p == Void {
			return errors.New(errors.PhaseEmit, errors.KindInvalidInput).
				Path(s.Name).
				Detail("void parameter").
				Build()
		}
	}
	return nil
}

func signatureError(name, where string, t ScalarType) error {
	return errors.New(errors.PhaseEmit, errors.KindUnsupportedType).
		Path(name, where).
		HostType(t.String()).
		Detail("no low-level type mapping").
		Build()
}

// Declaration renders the declare line, e.g.
// "declare float @__nv_sinf(float) readnone nounwind".
func (s Signature) Declaration() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	ret, _ := s.Result.Token()
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i], _ = p.Token()
	}
	var b strings.Builder
	b.WriteString("declare ")
	b.WriteString(ret)
	b.WriteString(" @")
	b.WriteString(s.Name)
	b.WriteByte('(')
	b.WriteString(strings.Join(params, ", "))
	b.WriteByte(')')
	if s.Attrs != 0 {
		b.WriteByte(' ')
		b.WriteString(s.Attrs.String())
	}
	return b.String(), nil
}
