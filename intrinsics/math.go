package intrinsics

import (
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/ir"
)

// MathOps lists the one-argument math operations.
var MathOps = []string{"sin", "cos", "floor", "ceil", "abs", "sqrt", "exp", "log", "log10", "erf"}

type mathTemplate struct {
	sig ir.Signature
	// the template operates on a different width than the entry
	promoted bool
}

const mathAttrs = ir.ReadNone | ir.NoUnwind

func libdevice(name string, t ir.ScalarType) ir.Signature {
	return ir.Signature{Name: name, Params: []ir.ScalarType{t}, Result: t, Attrs: mathAttrs}
}

// mathTable maps (op, type) to its libdevice template.
// abs on float32 goes through the float64 template.
func mathTable() map[string]map[ir.ScalarType]mathTemplate {
	t := make(map[string]map[ir.ScalarType]mathTemplate, len(MathOps))
	for _, op := range MathOps {
		if op == "abs" {
			continue
		}
		t[op] = map[ir.ScalarType]mathTemplate{
			ir.Float32: {sig: libdevice("__nv_"+op+"f", ir.Float32)},
			ir.Float64: {sig: libdevice("__nv_"+op, ir.Float64)},
		}
	}
	t["abs"] = map[ir.ScalarType]mathTemplate{
		ir.Float32: {sig: libdevice("__nv_fabs", ir.Float64), promoted: true},
		ir.Float64: {sig: libdevice("__nv_fabs", ir.Float64)},
		ir.Int32:   {sig: libdevice("__nv_abs", ir.Int32)},
		ir.Int64:   {sig: libdevice("__nv_llabs", ir.Int64)},
	}
	return t
}

var mathTemplates = mathTable()

var mathSuffix = map[ir.ScalarType]string{
	ir.Float32: "f32",
	ir.Float64: "f64",
	ir.Int32:   "i32",
	ir.Int64:   "i64",
}

// MathName returns the catalog name for op over t, e.g. "sin_f32".
func MathName(op string, t ir.ScalarType) string {
	return op + "_" + mathSuffix[t]
}

func registerMath(cb *catalogBuilder) {
	order := []ir.ScalarType{ir.Float32, ir.Float64, ir.Int32, ir.Int64}
	for _, op := range MathOps {
		for _, t := range order {
			tmpl, ok := mathTemplates[op][t]
			if !ok {
				continue
			}
			op, t := op, t
			desc := tmpl.sig.Name
			if tmpl.promoted {
				desc += " (via double)"
			}
			cb.add(&Intrinsic{
				Name:     MathName(op, t),
				Family:   FamilyMath,
				Params:   []ir.ScalarType{t},
				Result:   t,
				Template: desc,
				lower: func(s *Session, b *ir.Builder, args []ir.Value) (ir.Value, error) {
					return s.Math(b, op, args[0])
				},
			})
		}
	}
}

// Math lowers op applied to x, choosing the template by x's type.
func (s *Session) Math(b *ir.Builder, op string, x ir.Value) (ir.Value, error) {
	byType, ok := mathTemplates[op]
	if !ok {
		return ir.Value{}, errors.NotFound(errors.PhaseLower, "math op", op)
	}
	if x.Type.Ptr {
		return ir.Value{}, errors.UnsupportedType(errors.PhaseLower, x.Type.String())
	}
	tmpl, ok := byType[x.Type.Scalar]
	if !ok {
		return ir.Value{}, errors.New(errors.PhaseLower, errors.KindUnsupportedType).
			Path(op).
			HostType(x.Type.Scalar.String()).
			Detail("no %s template for this width", op).
			Build()
	}
	if tmpl.promoted {
		return b.CallConverted(tmpl.sig, x.Type.Scalar, x)
	}
	return b.Call(tmpl.sig, x)
}
