package engine

import (
	"fmt"
	"io"
)

// Operator is a lazy, restartable node in the pipeline graph. Every
// operator except Origin has a single upstream operator it pulls from.
type Operator interface {
	// Next produces the next result stack, pulling from upstream as
	// needed, or returns ok=false when exhausted for the current
	// upstream priming.
	Next() (*Stack, bool)
	// Reset propagates an "about to be re-driven from scratch" signal
	// upstream; every cached partial state must be cleared.
	Reset()
	// Name identifies the operator for diagnostics.
	Name() string
}

// namedOp centralizes the Name() method that every concrete operator
// embeds.
type namedOp struct{ name string }

func (n namedOp) Name() string { return n.name }

// ClosureBody packages a compiled sub-expression: the Origin that must be
// reset and re-primed on each application, and the compiled operator
// graph rooted above it. Closures store a ClosureBody rather than a bare
// Operator so Apply can find the Origin to drive it.
type ClosureBody struct {
	Origin *Origin
	Root   Operator
}

// Origin is the leaf operator every re-drivable sub-expression owns at
// its root. Its upstream is a single-value slot: SetNext writes it,
// Next returns it exactly once, and Reset clears it and re-arms the
// slot for another SetNext.
type Origin struct {
	namedOp
	slot   *Stack
	filled bool
	taken  bool
}

// NewOrigin creates an Origin with an empty slot.
func NewOrigin() *Origin { return &Origin{namedOp: namedOp{"origin"}} }

// SetNext writes s into the slot. Calling SetNext twice without an
// intervening Reset is a programming error (per §5, this can only happen
// if a caller violates the reset/set_next discipline).
func (o *Origin) SetNext(s *Stack) {
	if o.filled {
		panic("engine: Origin.SetNext called twice without intervening Reset")
	}
	o.slot = s
	o.filled = true
	o.taken = false
}

func (o *Origin) Next() (*Stack, bool) {
	if !o.filled || o.taken {
		return nil, false
	}
	o.taken = true
	s := o.slot
	o.slot = nil
	return s, true
}

func (o *Origin) Reset() {
	o.slot = nil
	o.filled = false
	o.taken = false
}

// Nop passes every upstream stack through unchanged.
type Nop struct {
	namedOp
	up Operator
}

func NewNop(up Operator) *Nop { return &Nop{namedOp{"nop"}, up} }
func (n *Nop) Next() (*Stack, bool) { return n.up.Next() }
func (n *Nop) Reset()               { n.up.Reset() }

// Const pushes a clone of v onto every upstream stack.
type Const struct {
	namedOp
	up Operator
	v  Value
}

func NewConst(up Operator, v Value) *Const { return &Const{namedOp{"const"}, up, v} }

func (c *Const) Next() (*Stack, bool) {
	s, ok := c.up.Next()
	if !ok {
		return nil, false
	}
	s.Push(c.v.Clone())
	return s, true
}
func (c *Const) Reset() { c.up.Reset() }

// Assert yields only those upstream stacks on which predicate p holds.
type Assert struct {
	namedOp
	up   Operator
	pred Predicate
}

func NewAssert(up Operator, pred Predicate) *Assert {
	return &Assert{namedOp{"assert"}, up, pred}
}

func (a *Assert) Next() (*Stack, bool) {
	for {
		s, ok := a.up.Next()
		if !ok {
			return nil, false
		}
		if a.pred.Result(s) == Yes {
			return s, true
		}
		s.Release()
	}
}
func (a *Assert) Reset() { a.up.Reset() }

// Bind pops the top-of-stack value and binds it to slot in the frame
// reached by walking depth parents from the current frame.
type Bind struct {
	namedOp
	up         Operator
	depth, slt int
}

func NewBind(up Operator, depth, slt int) *Bind {
	return &Bind{namedOp{"bind"}, up, depth, slt}
}

func (b *Bind) Next() (*Stack, bool) {
	s, ok := b.up.Next()
	if !ok {
		return nil, false
	}
	v, ok := s.Pop()
	if !ok {
		fail("bind: stack underflow")
	}
	if err := s.Frame().Bind(b.depth, b.slt, v); err != nil {
		fail("bind: %v", err)
	}
	return s, true
}
func (b *Bind) Reset() { b.up.Reset() }

// Read pushes a clone of the named variable onto the top of stack.
type Read struct {
	namedOp
	up         Operator
	depth, slt int
}

func NewRead(up Operator, depth, slt int) *Read {
	return &Read{namedOp{"read"}, up, depth, slt}
}

func (r *Read) Next() (*Stack, bool) {
	s, ok := r.up.Next()
	if !ok {
		return nil, false
	}
	v, err := s.Frame().Read(r.depth, r.slt)
	if err != nil {
		fail("read: %v", err)
	}
	s.Push(v)
	return s, true
}
func (r *Read) Reset() { r.up.Reset() }

// LexClosure pushes a Closure value wrapping body and the stack's current
// frame.
type LexClosure struct {
	namedOp
	up   Operator
	body *ClosureBody
}

func NewLexClosure(up Operator, body *ClosureBody) *LexClosure {
	return &LexClosure{namedOp{"closure"}, up, body}
}

func (c *LexClosure) Next() (*Stack, bool) {
	s, ok := c.up.Next()
	if !ok {
		return nil, false
	}
	s.Push(NewClosure(s.Frame(), c.body))
	return s, true
}
func (c *LexClosure) Reset() { c.up.Reset() }

// Apply pops a Closure, swaps the stack's frame for the closure's frame,
// executes the body to exhaustion, and restores the original frame on
// each emitted stack.
type Apply struct {
	namedOp
	up          Operator
	cur         Operator
	callerFrame *Frame
}

func NewApply(up Operator) *Apply { return &Apply{namedOp: namedOp{"apply"}, up: up} }

func (a *Apply) Next() (*Stack, bool) {
	for {
		if a.cur != nil {
			if s, ok := a.cur.Next(); ok {
				s.SetFrame(a.callerFrame)
				return s, true
			}
			a.cur = nil
			a.callerFrame.unref()
			a.callerFrame = nil
		}
		s, ok := a.up.Next()
		if !ok {
			return nil, false
		}
		v, ok := s.Pop()
		if !ok {
			fail("apply: stack underflow")
		}
		frame, body, ok := v.AsClosure()
		if !ok {
			fail("apply: top of stack is not a closure")
		}
		a.callerFrame = s.Frame()
		a.callerFrame.ref()
		s.SetFrame(frame)
		body.Root.Reset()
		body.Origin.SetNext(s)
		a.cur = body.Root
	}
}

func (a *Apply) Reset() {
	a.up.Reset()
	a.cur = nil
	if a.callerFrame != nil {
		a.callerFrame.unref()
		a.callerFrame = nil
	}
}

// Scope installs a fresh frame of n slots (parented to the incoming
// frame) on each upstream stack, runs body, and restores the parent frame
// on each emitted stack, unlinking the scope's frame if nothing captured
// it (via ordinary frame refcounting, see frame.go).
type Scope struct {
	namedOp
	up          Operator
	n           int
	bodyOrigin  *Origin
	bodyRoot    Operator
	cur         Operator
	curFrame    *Frame
	parentFrame *Frame
}

func NewScope(up Operator, n int, bodyOrigin *Origin, bodyRoot Operator) *Scope {
	return &Scope{namedOp: namedOp{"scope"}, up: up, n: n, bodyOrigin: bodyOrigin, bodyRoot: bodyRoot}
}

func (sc *Scope) Next() (*Stack, bool) {
	for {
		if sc.cur != nil {
			if s, ok := sc.cur.Next(); ok {
				s.SetFrame(sc.parentFrame)
				return s, true
			}
			sc.cur = nil
			sc.curFrame.unref()
			sc.curFrame = nil
			sc.parentFrame = nil
		}
		s, ok := sc.up.Next()
		if !ok {
			return nil, false
		}
		parent := s.Frame()
		newFrame := NewFrame(sc.n, parent)
		s.SetFrame(newFrame)
		sc.curFrame = newFrame
		sc.parentFrame = parent
		sc.bodyRoot.Reset()
		sc.bodyOrigin.SetNext(s)
		sc.cur = sc.bodyRoot
	}
}

func (sc *Scope) Reset() {
	sc.up.Reset()
	sc.bodyRoot.Reset()
	sc.cur = nil
	if sc.curFrame != nil {
		sc.curFrame.unref()
		sc.curFrame = nil
	}
	sc.parentFrame = nil
}

// branch pairs a sub-expression's Origin with its compiled root, used by
// Or and IfElse to prime and drive alternatives.
type branch struct {
	origin *Origin
	root   Operator
}

// NewBranch pairs origin with root for use with Or, IfElse, SubX, Capture,
// and TrClosure. Front ends outside this package (see lang) have no other
// way to construct the branch argument those constructors take, since a
// compiled sub-expression is always exactly an Origin plus the operator
// chain rooted above it.
func NewBranch(origin *Origin, root Operator) branch {
	return branch{origin: origin, root: root}
}

// NewBranches collects branch values built with NewBranch into the slice
// type NewOr expects. Go infers []branch from this function's return
// type, so a caller outside this package can build the slice NewOr wants
// without ever spelling the unexported branch type by name.
func NewBranches(branches ...branch) []branch { return branches }

// Or drives branches in order for each upstream stack; the first branch
// that yields at least one result is the only branch whose results are
// emitted for that input (short-circuit alternation).
type Or struct {
	namedOp
	up       Operator
	branches []branch
	active   Operator
}

func NewOr(up Operator, branches []branch) *Or {
	return &Or{namedOp: namedOp{"or"}, up: up, branches: branches}
}

func (o *Or) Next() (*Stack, bool) {
	for {
		if o.active != nil {
			if s, ok := o.active.Next(); ok {
				return s, true
			}
			o.active = nil
		}
		up, ok := o.up.Next()
		if !ok {
			return nil, false
		}
		var winner Operator
		var first *Stack
		for _, br := range o.branches {
			clone := up.Clone()
			br.root.Reset()
			br.origin.SetNext(clone)
			if r, ok := br.root.Next(); ok {
				winner, first = br.root, r
				break
			}
		}
		up.Release()
		if winner == nil {
			continue
		}
		o.active = winner
		return first, true
	}
}

func (o *Or) Reset() {
	o.up.Reset()
	for _, br := range o.branches {
		br.root.Reset()
	}
	o.active = nil
}

// IfElse runs cond on a clone of the input; if it yields >=1 result,
// drives then, else drives elseBr (which may be the zero branch, meaning
// "drop the stack" -- dwgrep's default when no else clause is written).
type IfElse struct {
	namedOp
	up      Operator
	cond    branch
	thenBr  branch
	elseBr  branch
	hasElse bool
	active  Operator
}

func NewIfElse(up Operator, cond, thenBr, elseBr branch, hasElse bool) *IfElse {
	return &IfElse{namedOp: namedOp{"ifelse"}, up: up, cond: cond, thenBr: thenBr, elseBr: elseBr, hasElse: hasElse}
}

func (ie *IfElse) Next() (*Stack, bool) {
	for {
		if ie.active != nil {
			if s, ok := ie.active.Next(); ok {
				return s, true
			}
			ie.active = nil
		}
		up, ok := ie.up.Next()
		if !ok {
			return nil, false
		}
		condClone := up.Clone()
		ie.cond.root.Reset()
		ie.cond.origin.SetNext(condClone)
		matched := false
		if r, ok := ie.cond.root.Next(); ok {
			matched = true
			r.Release()
		}
		for {
			r, ok := ie.cond.root.Next()
			if !ok {
				break
			}
			r.Release()
		}
		if matched {
			ie.thenBr.root.Reset()
			ie.thenBr.origin.SetNext(up)
			ie.active = ie.thenBr.root
			continue
		}
		if ie.hasElse {
			ie.elseBr.root.Reset()
			ie.elseBr.origin.SetNext(up)
			ie.active = ie.elseBr.root
			continue
		}
		up.Release()
	}
}

func (ie *IfElse) Reset() {
	ie.up.Reset()
	ie.cond.root.Reset()
	ie.thenBr.root.Reset()
	if ie.hasElse {
		ie.elseBr.root.Reset()
	}
	ie.active = nil
}

// SubX drives inner for each upstream stack and, for each inner result,
// copies the upstream stack and appends the top `keep` values of the
// inner result, preserving their order. Used to capture values out of a
// sub-expression, e.g. the compiled form of "(expr) -> N" style captures.
type SubX struct {
	namedOp
	up      Operator
	inner   branch
	keep    int
	savedUp *Stack
	active  bool
}

func NewSubX(up Operator, inner branch, keep int) *SubX {
	return &SubX{namedOp: namedOp{"subx"}, up: up, inner: inner, keep: keep}
}

func (sx *SubX) Next() (*Stack, bool) {
	for {
		if sx.active {
			r, ok := sx.inner.root.Next()
			if ok {
				vals := make([]Value, sx.keep)
				for i := sx.keep - 1; i >= 0; i-- {
					v, ok := r.Pop()
					if !ok {
						fail("subx: inner result has fewer than %d values", sx.keep)
					}
					vals[i] = v
				}
				r.Release()
				out := sx.savedUp.Clone()
				for _, v := range vals {
					out.Push(v)
				}
				return out, true
			}
			sx.active = false
			sx.savedUp.Release()
			sx.savedUp = nil
		}
		up, ok := sx.up.Next()
		if !ok {
			return nil, false
		}
		sx.savedUp = up
		clone := up.Clone()
		sx.inner.root.Reset()
		sx.inner.origin.SetNext(clone)
		sx.active = true
	}
}

func (sx *SubX) Reset() {
	sx.up.Reset()
	sx.inner.root.Reset()
	sx.active = false
	if sx.savedUp != nil {
		sx.savedUp.Release()
		sx.savedUp = nil
	}
}

// Capture drives inner to exhaustion for each upstream stack, collecting
// the top-of-stack value of each result into a Seq, which is pushed onto
// the original (uncloned) upstream stack.
type Capture struct {
	namedOp
	up    Operator
	inner branch
}

func NewCapture(up Operator, inner branch) *Capture {
	return &Capture{namedOp: namedOp{"capture"}, up: up, inner: inner}
}

func (c *Capture) Next() (*Stack, bool) {
	up, ok := c.up.Next()
	if !ok {
		return nil, false
	}
	clone := up.Clone()
	c.inner.root.Reset()
	c.inner.origin.SetNext(clone)
	var elems []Value
	for {
		r, ok := c.inner.root.Next()
		if !ok {
			break
		}
		v, ok := r.Pop()
		if !ok {
			fail("capture: inner result stack is empty")
		}
		elems = append(elems, v)
		r.Release()
	}
	up.Push(NewSeq(elems))
	return up, true
}
func (c *Capture) Reset() { c.up.Reset(); c.inner.root.Reset() }

// TrKind selects reflexive-transitive (Star) or transitive (Plus) closure.
type TrKind int

const (
	Star TrKind = iota
	Plus
)

// TrClosure computes the reflexive-transitive (Star) or transitive (Plus)
// closure of inner, per the worklist/seen-set algorithm in §4.4.
type TrClosure struct {
	namedOp
	up       Operator
	inner    branch
	kind     TrKind
	worklist []*Stack
	seen     map[string]bool
	active   bool
}

func NewTrClosure(up Operator, inner branch, kind TrKind) *TrClosure {
	return &TrClosure{namedOp: namedOp{"trclosure"}, up: up, inner: inner, kind: kind}
}

func (t *TrClosure) Next() (*Stack, bool) {
	for {
		if t.active {
			r, ok := t.inner.root.Next()
			if !ok {
				t.active = false
				continue
			}
			key := r.structKey()
			if t.seen[key] {
				r.Release()
				continue
			}
			t.seen[key] = true
			t.worklist = append(t.worklist, r.Clone())
			return r, true
		}
		if n := len(t.worklist); n > 0 {
			item := t.worklist[n-1]
			t.worklist = t.worklist[:n-1]
			t.inner.root.Reset()
			t.inner.origin.SetNext(item)
			t.active = true
			continue
		}
		up, ok := t.up.Next()
		if !ok {
			return nil, false
		}
		if t.kind == Star {
			t.seen = map[string]bool{up.structKey(): true}
			t.worklist = append(t.worklist, up.Clone())
			return up, true
		}
		t.seen = map[string]bool{}
		t.worklist = append(t.worklist, up.Clone())
		up.Release()
	}
}

func (t *TrClosure) Reset() {
	t.up.Reset()
	t.inner.root.Reset()
	t.worklist = nil
	t.seen = nil
	t.active = false
}

// Merge round-robins one result from each branch until all drain. Used
// together with Tine to implement tee-style parallel sub-pipelines (§4.8).
type Merge struct {
	namedOp
	branches []Operator
	i        int
	done     []bool
}

func NewMerge(branches []Operator) *Merge {
	return &Merge{namedOp: namedOp{"merge"}, branches: branches, done: make([]bool, len(branches))}
}

func (m *Merge) Next() (*Stack, bool) {
	n := len(m.branches)
	for tries := 0; tries < n; tries++ {
		i := m.i
		m.i = (m.i + 1) % n
		if m.done[i] {
			continue
		}
		if s, ok := m.branches[i].Next(); ok {
			return s, true
		}
		m.done[i] = true
	}
	return nil, false
}

func (m *Merge) Reset() {
	for i, b := range m.branches {
		b.Reset()
		m.done[i] = false
	}
	m.i = 0
}

// tineShared is the state shared by a set of Tine peers created together
// by NewTineSet: a slot file of k stacks, a common upstream, and a done
// flag.
type tineShared struct {
	up     Operator
	k      int
	file   []*Stack
	filled bool
	done   bool
}

// Tine is one of k peers splitting an upstream stack into k independent
// copies. When any peer asks for a stack and the shared file is empty,
// that peer pulls one upstream stack and copies it k-fold into the file
// (or marks the set done); it then returns its own slot.
type Tine struct {
	namedOp
	shared *tineShared
	index  int
}

// NewTineSet creates k Tine peers sharing one upstream.
func NewTineSet(up Operator, k int) []*Tine {
	shared := &tineShared{up: up, k: k, file: make([]*Stack, k)}
	peers := make([]*Tine, k)
	for i := 0; i < k; i++ {
		peers[i] = &Tine{namedOp: namedOp{"tine"}, shared: shared, index: i}
	}
	return peers
}

func (t *Tine) Next() (*Stack, bool) {
	sh := t.shared
	if !sh.filled {
		if sh.done {
			return nil, false
		}
		up, ok := sh.up.Next()
		if !ok {
			sh.done = true
			return nil, false
		}
		for i := 0; i < sh.k; i++ {
			if i == 0 {
				sh.file[i] = up
			} else {
				sh.file[i] = up.Clone()
			}
		}
		sh.filled = true
	}
	s := sh.file[t.index]
	sh.file[t.index] = nil
	allTaken := true
	for _, x := range sh.file {
		if x != nil {
			allTaken = false
			break
		}
	}
	if allTaken {
		sh.filled = false
	}
	return s, true
}

func (t *Tine) Reset() {
	sh := t.shared
	sh.up.Reset()
	for i := range sh.file {
		sh.file[i] = nil
	}
	sh.filled = false
	sh.done = false
}

// Debug is the identity operator that also prints each stack it passes,
// for tracing.
type Debug struct {
	namedOp
	up Operator
	w  io.Writer
}

func NewDebug(up Operator, w io.Writer) *Debug { return &Debug{namedOp{"debug"}, up, w} }

func (d *Debug) Next() (*Stack, bool) {
	s, ok := d.up.Next()
	if ok {
		fmt.Fprintln(d.w, stackString(s))
	}
	return s, ok
}
func (d *Debug) Reset() { d.up.Reset() }

func stackString(s *Stack) string {
	out := "["
	for i := s.Len() - 1; i >= 0; i-- {
		v, _ := s.Top(i)
		if i != s.Len()-1 {
			out += " "
		}
		out += v.String()
	}
	return out + "]"
}

// Dup duplicates the top-of-stack value. Type-agnostic, so words like
// dup are wired as a DirectOpBuilder rather than an overload table entry
// (see Vocabulary.DefineDirectOp).
type Dup struct {
	namedOp
	up Operator
}

func NewDup(up Operator) *Dup { return &Dup{namedOp{"dup"}, up} }

func (d *Dup) Next() (*Stack, bool) {
	s, ok := d.up.Next()
	if !ok {
		return nil, false
	}
	v, ok := s.Top(0)
	if !ok {
		fail("dup: stack underflow")
	}
	s.Push(v.Clone())
	return s, true
}
func (d *Dup) Reset() { d.up.Reset() }

// Swap exchanges the top two stack values.
type Swap struct {
	namedOp
	up Operator
}

func NewSwap(up Operator) *Swap { return &Swap{namedOp{"swap"}, up} }

func (sw *Swap) Next() (*Stack, bool) {
	s, ok := sw.up.Next()
	if !ok {
		return nil, false
	}
	a, ok1 := s.Pop()
	b, ok2 := s.Pop()
	if !ok1 || !ok2 {
		fail("swap: stack underflow")
	}
	s.Push(a)
	s.Push(b)
	return s, true
}
func (sw *Swap) Reset() { sw.up.Reset() }

// DropN removes the top n values from the stack, failing the query if
// fewer than n are present.
type DropN struct {
	namedOp
	up Operator
	n  int
}

func NewDropN(up Operator, n int) *DropN { return &DropN{namedOp{"drop"}, up, n} }

func (d *DropN) Next() (*Stack, bool) {
	s, ok := d.up.Next()
	if !ok {
		return nil, false
	}
	if s.Len() < d.n {
		fail("drop: stack underflow")
	}
	s.Drop(d.n)
	return s, true
}
func (d *DropN) Reset() { d.up.Reset() }

// Over pushes a clone of the second-from-top value.
type Over struct {
	namedOp
	up Operator
}

func NewOver(up Operator) *Over { return &Over{namedOp{"over"}, up} }

func (o *Over) Next() (*Stack, bool) {
	s, ok := o.up.Next()
	if !ok {
		return nil, false
	}
	v, ok := s.Top(1)
	if !ok {
		fail("over: stack underflow")
	}
	s.Push(v.Clone())
	return s, true
}
func (o *Over) Reset() { o.up.Reset() }
