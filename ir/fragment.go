package ir

import "strings"

// Fragment is the output of lowering one call site.
type Fragment struct {
	Declarations []string
	Globals      []string
	Body         []string
	Result       Value
	ArgTypes     []Type
}

// Declaration returns the declarations and globals, one per line.
func (f *Fragment) Declaration() string {
	lines := make([]string, 0, len(f.Globals)+len(f.Declarations))
	lines = append(lines, f.Globals...)
	lines = append(lines, f.Declarations...)
	return strings.Join(lines, "\n")
}

// BodyText returns the call sequence, one instruction per line.
func (f *Fragment) BodyText() string {
	return strings.Join(f.Body, "\n")
}

// ResultType returns the type of the produced value.
func (f *Fragment) ResultType() Type {
	return f.Result.Type
}

func (f *Fragment) String() string {
	var b strings.Builder
	if d := f.Declaration(); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	b.WriteString(f.BodyText())
	b.WriteByte('\n')
	return b.String()
}

// Emit lowers a single call to sig with fresh temporary numbering.
func Emit(sig Signature, args ...Value) (*Fragment, error) {
	b := NewBuilder()
	res, err := b.Call(sig, args...)
	if err != nil {
		return nil, err
	}
	argTypes := make([]Type, len(sig.Params))
	for i, p := range sig.Params {
		argTypes[i] = Scalar(p)
	}
	return b.Fragment(res, argTypes), nil
}
