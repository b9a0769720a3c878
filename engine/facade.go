package engine

import "io"

// Vocabulary binds word names to overload tables and named constants. A
// Vocabulary can be layered over a parent: lookups fall through to the
// parent when the child has no binding of its own, so a later,
// more-specific Vocabulary can shadow an earlier, more-general one (e.g.
// a DWARF vocabulary layered over the language-core vocabulary).
type Vocabulary struct {
	parent      *Vocabulary
	ops         map[string]*OverloadTable
	preds       map[string]*PredOverloadTable
	direct      map[string]DirectOpBuilder
	directPreds map[string]Predicate
	consts      map[string]Value
}

// DirectOpBuilder wires a word directly to an Operator constructor,
// bypassing selector-based overload dispatch. Used for words whose
// behavior does not depend on operand types, e.g. dup/swap/drop.
type DirectOpBuilder func(up Operator) Operator

// NewVocabulary creates an empty vocabulary layered over parent, which
// may be nil.
func NewVocabulary(parent *Vocabulary) *Vocabulary {
	return &Vocabulary{
		parent:      parent,
		ops:         make(map[string]*OverloadTable),
		preds:       make(map[string]*PredOverloadTable),
		direct:      make(map[string]DirectOpBuilder),
		directPreds: make(map[string]Predicate),
		consts:      make(map[string]Value),
	}
}

// DefineDirectOp registers a type-agnostic word.
func (v *Vocabulary) DefineDirectOp(name string, build DirectOpBuilder) {
	v.direct[name] = build
}

// LookupDirectOp resolves a type-agnostic word, checking the parent
// chain.
func (v *Vocabulary) LookupDirectOp(name string) (DirectOpBuilder, bool) {
	for cur := v; cur != nil; cur = cur.parent {
		if b, ok := cur.direct[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// DefineDirectPred registers a type-agnostic predicate word, one built
// once generically over Value.Cmp (e.g. ?eq/?lt) rather than per operand
// type tuple, per SPEC_FULL.md's comparison-predicate design note.
func (v *Vocabulary) DefineDirectPred(name string, p Predicate) {
	v.directPreds[name] = p
}

// LookupDirectPred resolves a type-agnostic predicate word, checking the
// parent chain.
func (v *Vocabulary) LookupDirectPred(name string) (Predicate, bool) {
	for cur := v; cur != nil; cur = cur.parent {
		if p, ok := cur.directPreds[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// DefineOp registers or extends the overload table for an operator word.
// Repeated calls with the same name accumulate entries in one table.
func (v *Vocabulary) DefineOp(name string) *OverloadTable {
	t, ok := v.ops[name]
	if !ok {
		t = NewOverloadTable(name)
		v.ops[name] = t
	}
	return t
}

// DefinePred registers or extends the overload table for a predicate
// word.
func (v *Vocabulary) DefinePred(name string) *PredOverloadTable {
	t, ok := v.preds[name]
	if !ok {
		t = NewPredOverloadTable(name)
		v.preds[name] = t
	}
	return t
}

// DefineConst binds a named constant, e.g. a tag or attribute code.
func (v *Vocabulary) DefineConst(name string, val Value) {
	v.consts[name] = val
}

// LookupOp resolves an operator word, checking the parent chain if this
// vocabulary has no binding. The bool reports whether a table was found
// at all, not whether any of its entries will match a given stack.
func (v *Vocabulary) LookupOp(name string) (*OverloadTable, bool) {
	for cur := v; cur != nil; cur = cur.parent {
		if t, ok := cur.ops[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// LookupPred resolves a predicate word, checking the parent chain.
func (v *Vocabulary) LookupPred(name string) (*PredOverloadTable, bool) {
	for cur := v; cur != nil; cur = cur.parent {
		if t, ok := cur.preds[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// LookupConst resolves a named constant, checking the parent chain.
func (v *Vocabulary) LookupConst(name string) (Value, bool) {
	for cur := v; cur != nil; cur = cur.parent {
		if val, ok := cur.consts[name]; ok {
			return val, true
		}
	}
	return Value{}, false
}

// Query is a compiled operator graph ready to run against an initial
// stack. Front ends (see the lang package) build a Query by compiling
// source text against a Vocabulary and calling NewQuery with the
// resulting root and its Origin.
type Query struct {
	origin *Origin
	root   Operator
}

// NewQuery packages a compiled operator graph as a runnable Query. root
// must be the operator chain rooted (at its leaf) in origin.
func NewQuery(origin *Origin, root Operator) *Query {
	return &Query{origin: origin, root: root}
}

// Run primes the query with initial and returns an iterator over its
// result stacks. initial's frame reference is adopted by the query; the
// caller should not use initial after calling Run.
func (q *Query) Run(initial *Stack) *ResultIterator {
	logf("engine: running query, root=%s", q.root.Name())
	q.root.Reset()
	q.origin.SetNext(initial)
	return &ResultIterator{root: q.root}
}

// ResultIterator drives a Query's operator graph one result at a time.
// It is the one place a query is actually driven, and so the one place
// recoverFatal is applied: a fatal error raised anywhere in the graph
// surfaces here as Next's error return instead of unwinding out of the
// package.
type ResultIterator struct {
	root Operator
	done bool
	err  error
}

// Next returns the next result stack. It returns (nil, io.EOF) once
// the query is exhausted, or (nil, err) if a fatal error aborted
// the query; once either happens, every subsequent call returns the same
// terminal outcome.
func (it *ResultIterator) Next() (s *Stack, err error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.done {
		return nil, io.EOF
	}
	defer func() {
		if err != nil && err != io.EOF {
			it.err = err
		}
	}()
	defer recoverFatal(&err)
	r, ok := it.root.Next()
	if !ok {
		it.done = true
		return nil, io.EOF
	}
	verbosef("engine: emit %s", r.structKey())
	return r, nil
}

// Drain runs it to completion, invoking fn on every result stack.
// Drain releases each stack after fn returns, whatever fn did with it;
// callers that need to keep a stack alive should Clone it inside fn.
func (it *ResultIterator) Drain(fn func(*Stack)) error {
	for {
		s, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fn(s)
		s.Release()
	}
}
