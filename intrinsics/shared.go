package intrinsics

import (
	"fmt"

	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/ir"
)

// DynamicSymbol is the external buffer backing every dynamic region.
const DynamicSymbol = "shmem.dynamic"

// Region is a block of shared memory usable from a kernel body.
type Region struct {
	Elem    ir.ScalarType
	Count   int      // element count of a static region
	Symbol  string   // backing global, without '@'
	Dynamic bool
	Length  ir.Value // runtime element count of a dynamic region
	Offset  ir.Value // byte offset into the dynamic buffer
	Ptr     ir.Value // generic address space pointer to the first element
	site    string
}

// Bytes returns the static size of the region, 0 for dynamic regions.
func (r *Region) Bytes() int {
	if r.Dynamic {
		return 0
	}
	return r.Count * r.Elem.Size()
}

func sharedElem(elem ir.ScalarType) (string, error) {
	tok, err := elem.Token()
	if err != nil {
		return "", errors.UnsupportedType(errors.PhaseAlloc, elem.String())
	}
	if elem == ir.Void {
		return "", errors.InvalidInput(errors.PhaseAlloc, "shared memory of void elements")
	}
	return tok, nil
}

// AllocStatic allocates count elements of elem for the declaration site
// identified by site. The first call for a site creates a new global;
// later calls for the same site reuse it.
func (s *Session) AllocStatic(b *ir.Builder, site string, elem ir.ScalarType, count int) (*Region, error) {
	tok, err := sharedElem(elem)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Path(site).
			Value(count).
			Detail("static shared memory needs a positive element count").
			Build()
	}

	s.mu.Lock()
	r, ok := s.sites[site]
	if ok && (r.Elem != elem || r.Count != count) {
		s.mu.Unlock()
		return nil, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Path(site).
			Detail("site already allocates [%d x %s], got [%d x %s]", r.Count, r.Elem, count, elem).
			Build()
	}
	if !ok {
		r = &Region{
			Elem:   elem,
			Count:  count,
			Symbol: fmt.Sprintf("shmem.%d", s.counter.Next()),
			site:   site,
		}
		s.sites[site] = r
	}
	s.mu.Unlock()

	arr := fmt.Sprintf("[%d x %s]", count, tok)
	b.Global(r.Symbol, fmt.Sprintf("@%s = internal addrspace(3) global %s zeroinitializer, align %d",
		r.Symbol, arr, elem.Align()))

	zero := ir.ConstInt(ir.Int64, 0)
	p := b.GEP(arr, ir.GlobalRef(r.Symbol, ir.AddrShared), zero, zero)
	ptr, err := b.Cast("addrspacecast", p, ir.Pointer(ir.AddrGeneric))
	if err != nil {
		return nil, err
	}

	out := *r
	out.Ptr = ptr
	return &out, nil
}

// AllocDynamic addresses length elements of elem at byteOffset inside the
// launch-sized dynamic buffer. No storage is declared and no bounds are
// checked against the launch configuration.
func (s *Session) AllocDynamic(b *ir.Builder, elem ir.ScalarType, length, byteOffset ir.Value) (*Region, error) {
	if _, err := sharedElem(elem); err != nil {
		return nil, err
	}
	if byteOffset.Ref == "" {
		byteOffset = ir.ConstInt(ir.Int64, 0)
	}
	if byteOffset.Type.Ptr || !byteOffset.Type.Scalar.IsInt() {
		return nil, errors.TypeMismatch(errors.PhaseAlloc, []string{"offset"}, "i64", byteOffset.Type.String())
	}
	off, err := b.Convert(byteOffset, ir.Int64)
	if err != nil {
		return nil, err
	}

	b.Global(DynamicSymbol, fmt.Sprintf("@%s = external addrspace(3) global [0 x i8], align 16", DynamicSymbol))
	p := b.GEP("i8", ir.GlobalRef(DynamicSymbol, ir.AddrShared), off)
	ptr, err := b.Cast("addrspacecast", p, ir.Pointer(ir.AddrGeneric))
	if err != nil {
		return nil, err
	}
	return &Region{
		Elem:    elem,
		Symbol:  DynamicSymbol,
		Dynamic: true,
		Length:  length,
		Offset:  off,
		Ptr:     ptr,
	}, nil
}

// Sites returns the number of distinct static declaration sites seen.
func (s *Session) Sites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sites)
}
