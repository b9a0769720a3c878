package engine

// PredResult is the tri-valued result of testing a predicate against a
// stack. Fail is distinct from an engine-level fatal error: it is a
// value predicates can compute and combinators can propagate, and it
// never contributes to query success (§7).
type PredResult int

const (
	No PredResult = iota
	Yes
	Fail
)

func (r PredResult) String() string {
	switch r {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "fail"
	}
}

// Predicate tests a stack without consuming it. Unlike Operator, a
// Predicate does not produce results or advance any lazy state of its
// own; SubXAny and SubXCompare drive their own sub-expression operators
// internally, once per Result call.
type Predicate interface {
	Result(s *Stack) PredResult
}

// FuncPredicate adapts a plain closure to the Predicate interface.
type FuncPredicate func(s *Stack) PredResult

func (f FuncPredicate) Result(s *Stack) PredResult { return f(s) }

// PredNot flips yes and no, and leaves fail untouched.
type PredNot struct{ inner Predicate }

func NewPredNot(inner Predicate) *PredNot { return &PredNot{inner} }

func (p *PredNot) Result(s *Stack) PredResult {
	switch p.inner.Result(s) {
	case Yes:
		return No
	case No:
		return Yes
	default:
		return Fail
	}
}

// PredAnd evaluates its operands left to right and short-circuits on the
// first non-yes result, returning that result. If every operand yields
// yes, the overall result is yes. An empty PredAnd is vacuously yes.
type PredAnd struct{ ops []Predicate }

func NewPredAnd(ops ...Predicate) *PredAnd { return &PredAnd{ops} }

func (p *PredAnd) Result(s *Stack) PredResult {
	for _, op := range p.ops {
		if r := op.Result(s); r != Yes {
			return r
		}
	}
	return Yes
}

// PredOr evaluates its operands left to right and short-circuits on the
// first non-no result, returning that result. If every operand yields
// no, the overall result is no. An empty PredOr is vacuously no.
type PredOr struct{ ops []Predicate }

func NewPredOr(ops ...Predicate) *PredOr { return &PredOr{ops} }

func (p *PredOr) Result(s *Stack) PredResult {
	for _, op := range p.ops {
		if r := op.Result(s); r != No {
			return r
		}
	}
	return No
}

// SubXAny is yes iff inner yields at least one result when driven on a
// clone of the tested stack. Every result inner produces, including the
// first, is released: SubXAny only tests existence.
type SubXAny struct {
	inner branch
}

func NewSubXAny(inner branch) *SubXAny { return &SubXAny{inner} }

func (p *SubXAny) Result(s *Stack) PredResult {
	clone := s.Clone()
	p.inner.root.Reset()
	p.inner.origin.SetNext(clone)
	found := false
	for {
		r, ok := p.inner.root.Next()
		if !ok {
			break
		}
		r.Release()
		found = true
	}
	if found {
		return Yes
	}
	return No
}

// SubXCompare is yes iff, for some a produced by inner1 and some b
// produced by inner2 (each driven independently on a fresh clone of the
// tested stack), cmp holds on the two-element stack {a, b} (b on top).
// inner1 and inner2 are each expected to leave exactly one value on top
// of the clone they were given; that top value is the a or b compared.
type SubXCompare struct {
	inner1, inner2 branch
	cmp            Predicate
}

func NewSubXCompare(inner1, inner2 branch, cmp Predicate) *SubXCompare {
	return &SubXCompare{inner1, inner2, cmp}
}

func (p *SubXCompare) Result(s *Stack) PredResult {
	var as []Value
	clone1 := s.Clone()
	p.inner1.root.Reset()
	p.inner1.origin.SetNext(clone1)
	for {
		r, ok := p.inner1.root.Next()
		if !ok {
			break
		}
		a, ok := r.Pop()
		if !ok {
			fail("subxcompare: inner1 result is empty")
		}
		as = append(as, a)
		r.Release()
	}
	if len(as) == 0 {
		return No
	}

	var bs []Value
	clone2 := s.Clone()
	p.inner2.root.Reset()
	p.inner2.origin.SetNext(clone2)
	for {
		r, ok := p.inner2.root.Next()
		if !ok {
			break
		}
		b, ok := r.Pop()
		if !ok {
			fail("subxcompare: inner2 result is empty")
		}
		bs = append(bs, b)
		r.Release()
	}
	if len(bs) == 0 {
		return No
	}

	sawFail := false
	for _, a := range as {
		for _, b := range bs {
			pair := NewStack(s.Frame())
			pair.Push(a.Clone())
			pair.Push(b.Clone())
			switch p.cmp.Result(pair) {
			case Yes:
				pair.Release()
				return Yes
			case Fail:
				sawFail = true
			}
			pair.Release()
		}
	}
	if sawFail {
		return Fail
	}
	return No
}

// CmpPredicate tests the two-element stack {a, b} (b on top, a below) via
// Value.Cmp, yielding yes iff the resulting Ordering is one of Allowed.
// Undefined yields fail, per §7's "comparison undefined" policy. This is
// the generic implementation behind ?eq/?ne/?lt/?le/?gt/?ge (SPEC_FULL.md
// §4: "built once generically over Value.cmp, not re-implemented per pair
// of types"); domain packages contribute only their Opaque.Cmp.
type CmpPredicate struct{ Allowed []Ordering }

// NewCmpPredicate builds a comparison predicate for the given set of
// acceptable orderings.
func NewCmpPredicate(allowed ...Ordering) *CmpPredicate {
	return &CmpPredicate{Allowed: allowed}
}

func (p *CmpPredicate) Result(s *Stack) PredResult {
	b, ok := s.Top(0)
	if !ok {
		return Fail
	}
	a, ok := s.Top(1)
	if !ok {
		return Fail
	}
	ord := a.Cmp(b)
	if ord == Undefined {
		return Fail
	}
	for _, want := range p.Allowed {
		if ord == want {
			return Yes
		}
	}
	return No
}

// Pos is yes iff the top-of-stack value's position equals k.
type Pos struct{ k int }

func NewPos(k int) *Pos { return &Pos{k} }

func (p *Pos) Result(s *Stack) PredResult {
	v, ok := s.Top(0)
	if !ok {
		return Fail
	}
	if v.Pos == p.k {
		return Yes
	}
	return No
}
