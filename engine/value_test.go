package engine

import (
	"io"
	"math/big"
	"testing"
)

func TestCstRoundTripDecAndHex(t *testing.T) {
	v := NewInt(42, DomainDec)
	n, domain, ok := v.AsCst()
	if !ok {
		t.Fatalf("AsCst on a Cst value returned ok=false")
	}
	if n.Int64() != 42 || domain != DomainDec {
		t.Errorf("AsCst = (%v, %v), want (42, DomainDec)", n, domain)
	}
	if v.String() != "42" {
		t.Errorf("String() = %q, want %q", v.String(), "42")
	}

	hex := NewUint64(0x2a, DomainHex)
	if hex.String() != "0x2a" {
		t.Errorf("hex String() = %q, want %q", hex.String(), "0x2a")
	}
}

func TestCstNegativeHexRendering(t *testing.T) {
	v := NewCst(big.NewInt(-1), DomainHex)
	if v.String() != "-0x1" {
		t.Errorf("String() = %q, want %q", v.String(), "-0x1")
	}
}

func TestValueCloneIsIndependent(t *testing.T) {
	v := NewInt(1, DomainDec)
	c := v.Clone()
	n, _, _ := c.AsCst()
	n.SetInt64(99)
	orig, _, _ := v.AsCst()
	if orig.Int64() != 1 {
		t.Errorf("mutating a clone's big.Int affected the original")
	}
}

func TestStrRoundTrip(t *testing.T) {
	v := NewStr("hello")
	s, ok := v.AsStr()
	if !ok || s != "hello" {
		t.Errorf("AsStr = (%q, %v), want (\"hello\", true)", s, ok)
	}
}

func TestSeqRoundTripAndPositionStamping(t *testing.T) {
	v := NewSeq([]Value{NewInt(1, DomainDec), NewInt(2, DomainDec)})
	elems, ok := v.AsSeq()
	if !ok {
		t.Fatalf("AsSeq on a Seq value returned ok=false")
	}
	if len(elems) != 2 {
		t.Fatalf("len(elems) = %d, want 2", len(elems))
	}
	for i, e := range elems {
		if e.Pos != i {
			t.Errorf("elems[%d].Pos = %d, want %d", i, e.Pos, i)
		}
	}
}

func TestSeqCloneRecursesIntoElements(t *testing.T) {
	v := NewSeq([]Value{NewInt(1, DomainDec)})
	c := v.Clone()
	elems, _ := c.AsSeq()
	n, _, _ := elems[0].AsCst()
	n.SetInt64(99)

	origElems, _ := v.AsSeq()
	origN, _, _ := origElems[0].AsCst()
	if origN.Int64() != 1 {
		t.Errorf("mutating a clone's nested element affected the original")
	}
}

func TestClosureRoundTripAndCmp(t *testing.T) {
	frame := NewFrame(0, nil)
	origin := NewOrigin()
	body := &ClosureBody{Origin: origin, Root: NewDup(origin)}

	v := NewClosure(frame, body)
	gotFrame, gotBody, ok := v.AsClosure()
	if !ok || gotFrame != frame || gotBody != body {
		t.Errorf("AsClosure = (%v, %v, %v), want (frame, body, true)", gotFrame, gotBody, ok)
	}

	other := NewClosure(frame, body)
	if v.Cmp(other) != Equal {
		t.Errorf("two closures sharing frame+body compared %v, want Equal", v.Cmp(other))
	}

	otherBody := &ClosureBody{Origin: NewOrigin(), Root: NewDup(NewOrigin())}
	different := NewClosure(frame, otherBody)
	if v.Cmp(different) != Undefined {
		t.Errorf("closures with different bodies compared %v, want Undefined", v.Cmp(different))
	}
}

func TestAddrSetRoundTripAndCmp(t *testing.T) {
	cov := NewCoverage(Range{Start: 0, Length: 0x10})
	v := NewAddrSet(cov)
	got, ok := v.AsAddrSet()
	if !ok || got != cov {
		t.Errorf("AsAddrSet = (%v, %v), want (cov, true)", got, ok)
	}

	same := NewAddrSet(cov.Clone())
	if v.Cmp(same) != Equal {
		t.Errorf("AddrSets covering the same addresses compared %v, want Equal", v.Cmp(same))
	}

	different := NewAddrSet(NewCoverage(Range{Start: 0x100, Length: 0x10}))
	if v.Cmp(different) != Undefined {
		t.Errorf("AddrSets covering different addresses compared %v, want Undefined", v.Cmp(different))
	}
}

func TestValueCmpOrdersDifferentVariantsByTypeCode(t *testing.T) {
	cst := NewInt(1, DomainDec)
	str := NewStr("a")
	if cst.TypeCode() >= str.TypeCode() {
		t.Skip("type registration order changed; ordering assumption no longer holds")
	}
	if cst.Cmp(str) != Less {
		t.Errorf("Cst.Cmp(Str) = %v, want Less (Cst registers before Str)", cst.Cmp(str))
	}
	if str.Cmp(cst) != Greater {
		t.Errorf("Str.Cmp(Cst) = %v, want Greater", str.Cmp(cst))
	}
}

func TestValueEqual(t *testing.T) {
	a := NewInt(5, DomainDec)
	b := NewInt(5, DomainHex)
	if !a.Equal(b) {
		t.Errorf("values differing only in domain should compare Equal (domain governs rendering only)")
	}
	c := NewInt(6, DomainDec)
	if a.Equal(c) {
		t.Errorf("5 and 6 compared Equal")
	}
}

func TestValueWithPos(t *testing.T) {
	v := NewInt(1, DomainDec).WithPos(3)
	if v.Pos != 3 {
		t.Errorf("Pos = %d, want 3", v.Pos)
	}
}

// stubOpaque is a minimal Opaque implementation for exercising the
// wrapping/unwrapping path without any real domain package.
var stubCode = RegisterOpaqueType("stub-test-opaque")

type stubOpaque struct{ id int }

func (s *stubOpaque) TypeCode() TypeCode        { return stubCode }
func (s *stubOpaque) Clone() Opaque             { return &stubOpaque{id: s.id} }
func (s *stubOpaque) Show(w io.Writer)          { w.Write([]byte("stub")) }
func (s *stubOpaque) Cmp(other Opaque) Ordering {
	o := other.(*stubOpaque)
	if s.id == o.id {
		return Equal
	}
	return Undefined
}

func TestOpaqueRoundTrip(t *testing.T) {
	v := NewOpaque(&stubOpaque{id: 1})
	got, ok := v.AsOpaque()
	if !ok {
		t.Fatalf("AsOpaque returned ok=false")
	}
	if got.(*stubOpaque).id != 1 {
		t.Errorf("AsOpaque id = %d, want 1", got.(*stubOpaque).id)
	}
	if v.TypeCode() != stubCode {
		t.Errorf("TypeCode() = %v, want stubCode", v.TypeCode())
	}

	same := NewOpaque(&stubOpaque{id: 1})
	if v.Cmp(same) != Equal {
		t.Errorf("opaques with equal ids compared %v, want Equal", v.Cmp(same))
	}
	different := NewOpaque(&stubOpaque{id: 2})
	if v.Cmp(different) != Undefined {
		t.Errorf("opaques with different ids compared %v, want Undefined", v.Cmp(different))
	}
}
