package engine

import "fmt"

// Diagnostics receives advisory errors: dispatch misses and anything
// else that should drop one stack rather than abort the whole query. pos
// identifies the word in source text that produced err, or the zero
// Position if the caller compiled without position tracking. The sink
// is supplied by the caller of NewOverloaded (lang.Compile passes its
// own diag argument through).
type Diagnostics interface {
	Report(pos Position, err error)
}

// DiscardDiagnostics silently drops every advisory error. Useful for
// tests that only care about result stacks.
type DiscardDiagnostics struct{}

func (DiscardDiagnostics) Report(Position, error) {}

// OverloadKind distinguishes a builder that returns exactly one value
// from one that yields a stream of them.
type OverloadKind int

const (
	// Once overloads return a single value per invocation.
	Once OverloadKind = iota
	// Yielding overloads return a Producer; the overloaded operator
	// clones the upstream stack once per produced value.
	Yielding
)

// OverloadEntry is one row of a word's overload table: an expected
// operand-type tuple (read top-of-stack first) and the implementation to
// invoke when a stack's selector matches it.
type OverloadEntry struct {
	Types []TypeCode
	Kind  OverloadKind
	// Once is called for Once entries. args[0] is the value that was on
	// top of stack, args[1] the next, and so on.
	Once func(args []Value) (Value, error)
	// Yield is called for Yielding entries, with the same argument
	// convention as Once.
	Yield func(args []Value) Producer
}

func (e OverloadEntry) arity() int { return len(e.Types) }

func sameTypes(a, b []TypeCode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// OverloadTable holds every registered implementation of one word. Entry
// resolution picks the highest-arity entry whose type tuple matches the
// stack's top values exactly; two entries with the same arity and type
// tuple are a registration error, since dispatch could never break the
// tie at run time.
type OverloadTable struct {
	Name    string
	entries []OverloadEntry
}

// NewOverloadTable creates an empty table for the word named name.
func NewOverloadTable(name string) *OverloadTable {
	return &OverloadTable{Name: name}
}

// Register adds e to the table. It panics if an entry with the same
// arity and type tuple is already registered.
func (t *OverloadTable) Register(e OverloadEntry) {
	for _, ex := range t.entries {
		if sameTypes(ex.Types, e.Types) {
			panic(fmt.Sprintf("engine: word %q: duplicate overload for types %v", t.Name, e.Types))
		}
	}
	t.entries = append(t.entries, e)
}

// resolve finds the best-matching entry for s's current contents, or
// reports ok=false if none match.
func (t *OverloadTable) resolve(s *Stack) (OverloadEntry, bool) {
	var best *OverloadEntry
	for i := range t.entries {
		e := &t.entries[i]
		if e.arity() > s.Len() {
			continue
		}
		matched := true
		for k := 0; k < e.arity(); k++ {
			v, _ := s.Top(k)
			if v.TypeCode() != e.Types[k] {
				matched = false
				break
			}
		}
		if matched && (best == nil || e.arity() > best.arity()) {
			best = e
		}
	}
	if best == nil {
		return OverloadEntry{}, false
	}
	return *best, true
}

// Overloaded is the operator built for a word with one or more
// registered overloads. On each upstream stack it resolves the matching
// entry by selector, pops the operand values, and either pushes a single
// result (Once) or clones the stack once per value drawn from a producer
// (Yielding). A dispatch miss reports an advisory diagnostic and drops
// the stack.
type Overloaded struct {
	namedOp
	up    Operator
	table *OverloadTable
	pos   Position
	diag  Diagnostics

	cur     Producer
	curBase *Stack
}

// NewOverloaded builds the dispatching operator for table, reporting
// misses to diag tagged with pos (the word's source position, or the
// zero Position if the caller doesn't track one).
func NewOverloaded(up Operator, table *OverloadTable, pos Position, diag Diagnostics) *Overloaded {
	if diag == nil {
		diag = DiscardDiagnostics{}
	}
	return &Overloaded{namedOp: namedOp{table.Name}, up: up, table: table, pos: pos, diag: diag}
}

func (o *Overloaded) Next() (*Stack, bool) {
	for {
		if o.cur != nil {
			if v, ok := o.cur.Next(); ok {
				out := o.curBase.Clone()
				out.Push(v)
				return out, true
			}
			o.curBase.Release()
			o.cur = nil
			o.curBase = nil
		}

		s, ok := o.up.Next()
		if !ok {
			return nil, false
		}
		entry, ok := o.table.resolve(s)
		if !ok {
			verbosef("%s: no matching overload for selector %v", o.table.Name, s.Selector())
			o.diag.Report(o.pos, newAdvisory("%s: no matching overload for selector %v", o.table.Name, s.Selector()))
			s.Release()
			continue
		}
		verbosef("%s: dispatching to overload %v", o.table.Name, entry.Types)
		args := make([]Value, entry.arity())
		for k := range args {
			v, _ := s.Pop()
			args[k] = v
		}
		switch entry.Kind {
		case Once:
			v, err := entry.Once(args)
			if err != nil {
				fail("%s: %v", o.table.Name, err)
			}
			s.Push(v)
			return s, true
		case Yielding:
			o.cur = entry.Yield(args)
			o.curBase = s
		default:
			fail("%s: overload entry has unknown kind", o.table.Name)
		}
	}
}

func (o *Overloaded) Reset() {
	o.up.Reset()
	if o.curBase != nil {
		o.curBase.Release()
	}
	o.cur = nil
	o.curBase = nil
}

// PredOverloadEntry is one row of a predicate word's overload table.
// Unlike an operator overload, a predicate never pops its operands: Test
// receives them peeked from the top of stack and the stack is left
// untouched.
type PredOverloadEntry struct {
	Types []TypeCode
	Test  func(args []Value) PredResult
}

func (e PredOverloadEntry) arity() int { return len(e.Types) }

// PredOverloadTable is the predicate-word analogue of OverloadTable; kept
// as a distinct type rather than sharing code with it because predicate
// dispatch never pops the stack, mirroring dwgrep's separate
// pred_overload template family.
type PredOverloadTable struct {
	Name    string
	entries []PredOverloadEntry
}

// NewPredOverloadTable creates an empty table for the predicate word
// named name.
func NewPredOverloadTable(name string) *PredOverloadTable {
	return &PredOverloadTable{Name: name}
}

// Register adds e to the table, panicking on a duplicate type tuple.
func (t *PredOverloadTable) Register(e PredOverloadEntry) {
	for _, ex := range t.entries {
		if sameTypes(ex.Types, e.Types) {
			panic(fmt.Sprintf("engine: predicate %q: duplicate overload for types %v", t.Name, e.Types))
		}
	}
	t.entries = append(t.entries, e)
}

func (t *PredOverloadTable) resolve(s *Stack) (PredOverloadEntry, bool) {
	var best *PredOverloadEntry
	for i := range t.entries {
		e := &t.entries[i]
		if e.arity() > s.Len() {
			continue
		}
		matched := true
		for k := 0; k < e.arity(); k++ {
			v, _ := s.Top(k)
			if v.TypeCode() != e.Types[k] {
				matched = false
				break
			}
		}
		if matched && (best == nil || e.arity() > best.arity()) {
			best = e
		}
	}
	if best == nil {
		return PredOverloadEntry{}, false
	}
	return *best, true
}

// OverloadedPred is the Predicate built for a word with one or more
// registered overloads. A dispatch miss is Fail, not an advisory: a
// predicate has no upstream stack to drop, so §4.9's fail propagation
// covers this case naturally.
type OverloadedPred struct {
	table *PredOverloadTable
}

// NewOverloadedPred builds the dispatching predicate for table.
func NewOverloadedPred(table *PredOverloadTable) *OverloadedPred {
	return &OverloadedPred{table: table}
}

func (p *OverloadedPred) Result(s *Stack) PredResult {
	entry, ok := p.table.resolve(s)
	if !ok {
		return Fail
	}
	args := make([]Value, entry.arity())
	for k := range args {
		v, _ := s.Top(k)
		args[k] = v
	}
	return entry.Test(args)
}
