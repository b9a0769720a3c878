package engine

import (
	"fmt"
	"io"
	"math/big"
	"strings"
)

// payload is the variant-specific half of a Value. Two payloads are only
// ever compared via cmp after their typeCodes have already been checked
// equal, so each implementation may safely assert the other's concrete
// type.
type payload interface {
	typeCode() TypeCode
	clone() payload
	show(w io.Writer)
	cmp(other payload) Ordering
}

// Value is the single value type flowing through stacks, frames, and
// producers. Every variant is closed over payload; Pos records the
// zero-based index of this value within whatever stream produced it (see
// the position discipline in DESIGN.md: each producer stamps its own
// output monotone from 0).
type Value struct {
	Pos int
	p   payload
}

// TypeCode reports v's variant.
func (v Value) TypeCode() TypeCode { return v.p.typeCode() }

// Clone deep-copies v. Sequences recurse; opaque domain values copy their
// handle, which is cheap and, by contract, shareable.
func (v Value) Clone() Value {
	return Value{Pos: v.Pos, p: v.p.clone()}
}

// Show renders v in human-readable form.
func (v Value) Show(w io.Writer) { v.p.show(w) }

// String renders v via Show.
func (v Value) String() string {
	var b strings.Builder
	v.Show(&b)
	return b.String()
}

// Cmp orders v against other. Values of different variants order by type
// code. Within one variant, Cst and Str order totally and Seq orders
// element by element. Closure and AddrSet values are Equal only when they
// are the same closure or cover the same addresses, and Undefined
// otherwise; they have no Less/Greater order. Opaque domain values return
// whatever their own Cmp returns, which may be Undefined.
func (v Value) Cmp(other Value) Ordering {
	vc, oc := v.p.typeCode(), other.p.typeCode()
	if vc != oc {
		if vc < oc {
			return Less
		}
		return Greater
	}
	return v.p.cmp(other.p)
}

// Equal reports whether v and other compare Equal. Values whose
// comparison is Undefined are never Equal.
func (v Value) Equal(other Value) bool {
	return v.Cmp(other) == Equal
}

// WithPos returns a copy of v with its position field replaced. Producers
// use this to stamp positions on values pulled from an unordered source.
func (v Value) WithPos(pos int) Value {
	v.Pos = pos
	return v
}

// ---- Cst: arbitrary-precision integer with a rendering/arithmetic domain ----

// ConstDomain controls how a Cst value renders. It holds a name and a
// renderer only; it carries no setting that governs arithmetic between
// values of different domains. The core only predefines Dec and Hex;
// domain packages may register more (words registers one for DWARF
// attribute names).
type ConstDomain struct {
	Name string
	show func(*big.Int) string
}

func (d *ConstDomain) render(v *big.Int) string {
	if d.show != nil {
		return d.show(v)
	}
	return v.String()
}

// RegisterConstDomain creates a new constant domain with a custom
// renderer. show may be nil to use the default decimal rendering.
func RegisterConstDomain(name string, show func(*big.Int) string) *ConstDomain {
	return &ConstDomain{Name: name, show: show}
}

var (
	DomainDec = RegisterConstDomain("dec", nil)
	DomainHex = RegisterConstDomain("hex", func(v *big.Int) string {
		if v.Sign() < 0 {
			return "-0x" + new(big.Int).Neg(v).Text(16)
		}
		return "0x" + v.Text(16)
	})
)

type cstPayload struct {
	val    *big.Int
	domain *ConstDomain
}

func (p *cstPayload) typeCode() TypeCode { return CodeCst }

func (p *cstPayload) clone() payload {
	return &cstPayload{val: new(big.Int).Set(p.val), domain: p.domain}
}

func (p *cstPayload) show(w io.Writer) {
	io.WriteString(w, p.domain.render(p.val))
}

// cmp compares the numeric value regardless of domain: domain governs
// rendering, not ordering, and two constants never compare Undefined.
func (p *cstPayload) cmp(other payload) Ordering {
	o := other.(*cstPayload)
	switch p.val.Cmp(o.val) {
	case -1:
		return Less
	case 1:
		return Greater
	default:
		return Equal
	}
}

// NewCst constructs a constant value in the given domain. A nil domain is
// treated as DomainDec, the plain decimal rendering.
func NewCst(v *big.Int, domain *ConstDomain) Value {
	if domain == nil {
		domain = DomainDec
	}
	return Value{p: &cstPayload{val: new(big.Int).Set(v), domain: domain}}
}

// NewInt is a convenience constructor for small integer constants.
func NewInt(i int64, domain *ConstDomain) Value {
	return NewCst(big.NewInt(i), domain)
}

// NewUint64 is a convenience constructor for unsigned 64-bit constants
// (addresses, offsets), which do not fit in an int64 in general.
func NewUint64(u uint64, domain *ConstDomain) Value {
	return NewCst(new(big.Int).SetUint64(u), domain)
}

// AsCst extracts the underlying integer and domain, if v is a Cst.
func (v Value) AsCst() (*big.Int, *ConstDomain, bool) {
	p, ok := v.p.(*cstPayload)
	if !ok {
		return nil, nil, false
	}
	return p.val, p.domain, true
}

// ---- Str: UTF-8 string ----

type strPayload struct{ s string }

func (p *strPayload) typeCode() TypeCode { return CodeStr }
func (p *strPayload) clone() payload     { return p } // strings are immutable
func (p *strPayload) show(w io.Writer)   { fmt.Fprintf(w, "%q", p.s) }
func (p *strPayload) cmp(other payload) Ordering {
	o := other.(*strPayload)
	switch strings.Compare(p.s, o.s) {
	case -1:
		return Less
	case 1:
		return Greater
	default:
		return Equal
	}
}

// NewStr constructs a string value.
func NewStr(s string) Value {
	return Value{p: &strPayload{s: s}}
}

// AsStr extracts the underlying string, if v is a Str.
func (v Value) AsStr() (string, bool) {
	p, ok := v.p.(*strPayload)
	if !ok {
		return "", false
	}
	return p.s, true
}

// ---- Seq: ordered, heterogeneous sequence of owned values ----

type seqPayload struct{ elems []Value }

func (p *seqPayload) typeCode() TypeCode { return CodeSeq }

func (p *seqPayload) clone() payload {
	out := make([]Value, len(p.elems))
	for i, e := range p.elems {
		out[i] = e.Clone()
	}
	return &seqPayload{elems: out}
}

func (p *seqPayload) show(w io.Writer) {
	io.WriteString(w, "[")
	for i, e := range p.elems {
		if i > 0 {
			io.WriteString(w, ", ")
		}
		e.Show(w)
	}
	io.WriteString(w, "]")
}

func (p *seqPayload) cmp(other payload) Ordering {
	o := other.(*seqPayload)
	n := len(p.elems)
	if len(o.elems) < n {
		n = len(o.elems)
	}
	for i := 0; i < n; i++ {
		switch c := p.elems[i].Cmp(o.elems[i]); c {
		case Equal:
			continue
		default:
			return c
		}
	}
	switch {
	case len(p.elems) < len(o.elems):
		return Less
	case len(p.elems) > len(o.elems):
		return Greater
	default:
		return Equal
	}
}

// NewSeq constructs a sequence value. Per the sequence-literal invariant,
// elements are stamped with zero-based monotone positions; NewSeq owns
// the slice it is given (clone before passing in if the caller still
// needs it).
func NewSeq(elems []Value) Value {
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = e.WithPos(i)
	}
	return Value{p: &seqPayload{elems: out}}
}

// AsSeq extracts the underlying elements, if v is a Seq. The returned
// slice is shared with v; callers must not mutate it.
func (v Value) AsSeq() ([]Value, bool) {
	p, ok := v.p.(*seqPayload)
	if !ok {
		return nil, false
	}
	return p.elems, true
}

// ---- Closure: captured frame + compiled operator body ----

type closurePayload struct {
	frame *Frame
	body  *ClosureBody
}

func (p *closurePayload) typeCode() TypeCode { return CodeClosure }

// clone shares the frame and body: closures are cheaply cloneable by
// design, and re-applying the same closure must reuse the same body so
// that repeated Apply calls observe consistent reset/set_next discipline.
func (p *closurePayload) clone() payload {
	p.frame.ref()
	return &closurePayload{frame: p.frame, body: p.body}
}

func (p *closurePayload) show(w io.Writer) {
	fmt.Fprintf(w, "<closure %s>", p.body.Root.Name())
}

func (p *closurePayload) cmp(other payload) Ordering {
	o := other.(*closurePayload)
	if p.frame == o.frame && p.body == o.body {
		return Equal
	}
	return Undefined
}

// NewClosure constructs a closure value capturing frame and body. The
// frame's reference count is incremented; the caller retains its own
// reference.
func NewClosure(frame *Frame, body *ClosureBody) Value {
	frame.ref()
	return Value{p: &closurePayload{frame: frame, body: body}}
}

// AsClosure extracts the captured frame and body, if v is a Closure.
func (v Value) AsClosure() (*Frame, *ClosureBody, bool) {
	p, ok := v.p.(*closurePayload)
	if !ok {
		return nil, nil, false
	}
	return p.frame, p.body, true
}

// ---- AddrSet: a Coverage wrapped as a value ----

type addrSetPayload struct{ cov *Coverage }

func (p *addrSetPayload) typeCode() TypeCode { return CodeAddrSet }
func (p *addrSetPayload) clone() payload     { return &addrSetPayload{cov: p.cov.Clone()} }
func (p *addrSetPayload) show(w io.Writer)   { io.WriteString(w, p.cov.String()) }

func (p *addrSetPayload) cmp(other payload) Ordering {
	o := other.(*addrSetPayload)
	if p.cov.Equal(o.cov) {
		return Equal
	}
	return Undefined
}

// NewAddrSet constructs an AddrSet value wrapping cov. cov is not copied;
// callers should Clone it first if they intend to keep mutating their
// own reference.
func NewAddrSet(cov *Coverage) Value {
	return Value{p: &addrSetPayload{cov: cov}}
}

// AsAddrSet extracts the underlying Coverage, if v is an AddrSet.
func (v Value) AsAddrSet() (*Coverage, bool) {
	p, ok := v.p.(*addrSetPayload)
	if !ok {
		return nil, false
	}
	return p.cov, true
}

// ---- Opaque: domain-supplied payloads (DIEs, attributes, CUs, ...) ----

// Opaque is implemented by domain packages to plug arbitrary handles into
// the value model. TypeCode must return a code obtained once from
// RegisterOpaqueType, stored in a package-level variable.
type Opaque interface {
	TypeCode() TypeCode
	Clone() Opaque
	Show(w io.Writer)
	// Cmp compares against another Opaque of the same TypeCode. It may
	// return Undefined, e.g. for handles from different files.
	Cmp(other Opaque) Ordering
}

type opaquePayload struct{ v Opaque }

func (p *opaquePayload) typeCode() TypeCode { return p.v.TypeCode() }
func (p *opaquePayload) clone() payload     { return &opaquePayload{v: p.v.Clone()} }
func (p *opaquePayload) show(w io.Writer)   { p.v.Show(w) }

func (p *opaquePayload) cmp(other payload) Ordering {
	o := other.(*opaquePayload)
	return p.v.Cmp(o.v)
}

// NewOpaque wraps a domain value as an engine Value.
func NewOpaque(v Opaque) Value {
	return Value{p: &opaquePayload{v: v}}
}

// AsOpaque extracts the underlying domain value, if v wraps one.
func (v Value) AsOpaque() (Opaque, bool) {
	p, ok := v.p.(*opaquePayload)
	if !ok {
		return nil, false
	}
	return p.v, true
}
