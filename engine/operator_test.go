package engine

import (
	"math/big"
	"testing"
)

func runToStacks(t *testing.T, origin *Origin, root Operator, initial *Stack) []*Stack {
	t.Helper()
	root.Reset()
	origin.SetNext(initial)
	var out []*Stack
	for {
		s, ok := root.Next()
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out
}

func newRootStack() (*Frame, *Stack) {
	f := NewFrame(0, nil)
	return f, NewStack(f)
}

func cstOf(t *testing.T, v Value) int64 {
	t.Helper()
	c, _, ok := v.AsCst()
	if !ok {
		t.Fatalf("value %v is not a Cst", v)
	}
	return c.Int64()
}

func TestDupSwapOverDrop(t *testing.T) {
	_, s := newRootStack()
	s.Push(NewInt(1, DomainDec))
	s.Push(NewInt(2, DomainDec))
	o := NewOrigin()
	stacks := runToStacks(t, o, NewDup(o), s)
	if len(stacks) != 1 {
		t.Fatalf("Dup: got %d stacks, want 1", len(stacks))
	}
	got := stacks[0]
	if got.Len() != 3 {
		t.Fatalf("Dup: stack length = %d, want 3", got.Len())
	}
	if v, _ := got.Top(0); cstOf(t, v) != 2 {
		t.Errorf("Dup: top = %v, want 2", v)
	}

	_, s2 := newRootStack()
	s2.Push(NewInt(1, DomainDec))
	s2.Push(NewInt(2, DomainDec))
	o2 := NewOrigin()
	stacks = runToStacks(t, o2, NewSwap(o2), s2)
	got = stacks[0]
	if v, _ := got.Top(0); cstOf(t, v) != 1 {
		t.Errorf("Swap: top = %v, want 1", v)
	}
	if v, _ := got.Top(1); cstOf(t, v) != 2 {
		t.Errorf("Swap: second = %v, want 2", v)
	}

	_, s3 := newRootStack()
	s3.Push(NewInt(1, DomainDec))
	s3.Push(NewInt(2, DomainDec))
	o3 := NewOrigin()
	stacks = runToStacks(t, o3, NewOver(o3), s3)
	got = stacks[0]
	if v, _ := got.Top(0); cstOf(t, v) != 1 {
		t.Errorf("Over: top = %v, want 1", v)
	}

	_, s4 := newRootStack()
	s4.Push(NewInt(1, DomainDec))
	s4.Push(NewInt(2, DomainDec))
	o4 := NewOrigin()
	stacks = runToStacks(t, o4, NewDropN(o4, 1), s4)
	got = stacks[0]
	if got.Len() != 1 {
		t.Fatalf("Drop: length = %d, want 1", got.Len())
	}
	if v, _ := got.Top(0); cstOf(t, v) != 1 {
		t.Errorf("Drop: top = %v, want 1", v)
	}
}

func TestAssertFiltersOnPredicate(t *testing.T) {
	origin := NewOrigin()
	root := NewAssert(origin, NewCmpPredicate(Less))

	_, s := newRootStack()
	s.Push(NewInt(1, DomainDec))
	s.Push(NewInt(2, DomainDec))
	stacks := runToStacks(t, origin, root, s)
	if len(stacks) != 1 {
		t.Fatalf("Assert(?lt) on 1,2 = %d stacks, want 1", len(stacks))
	}

	origin2 := NewOrigin()
	root2 := NewAssert(origin2, NewCmpPredicate(Greater))
	_, s2 := newRootStack()
	s2.Push(NewInt(1, DomainDec))
	s2.Push(NewInt(2, DomainDec))
	stacks = runToStacks(t, origin2, root2, s2)
	if len(stacks) != 0 {
		t.Fatalf("Assert(?gt) on 1,2 = %d stacks, want 0", len(stacks))
	}
}

// TestOrShortCircuitsOnFirstSuccess exercises the alternation semantics
// decided in DESIGN.md's Open Question section: the first branch to
// yield >=1 result wins outright, later branches never run.
func TestOrShortCircuitsOnFirstSuccess(t *testing.T) {
	failOrigin := NewOrigin()
	failBranch := NewAssert(failOrigin, NewCmpPredicate(Greater)) // 1 vs 2: fails

	succeedOrigin := NewOrigin()
	succeedBranch := NewAssert(succeedOrigin, NewCmpPredicate(Less)) // succeeds

	// A later branch that would also succeed; if Or ran it, there would be
	// two result stacks instead of one.
	laterOrigin := NewOrigin()
	laterBranch := NewAssert(laterOrigin, NewCmpPredicate(Less))

	origin := NewOrigin()
	root := NewOr(origin, NewBranches(
		NewBranch(failOrigin, failBranch),
		NewBranch(succeedOrigin, succeedBranch),
		NewBranch(laterOrigin, laterBranch),
	))

	_, s := newRootStack()
	s.Push(NewInt(1, DomainDec))
	s.Push(NewInt(2, DomainDec))
	stacks := runToStacks(t, origin, root, s)
	if len(stacks) != 1 {
		t.Fatalf("Or = %d stacks, want 1", len(stacks))
	}
}

func newMulOverload() *OverloadTable {
	table := NewOverloadTable("*")
	table.Register(OverloadEntry{
		Types: []TypeCode{CodeCst, CodeCst},
		Kind:  Once,
		Once: func(args []Value) (Value, error) {
			a, _, _ := args[0].AsCst()
			b, _, _ := args[1].AsCst()
			return NewCst(new(big.Int).Mul(a, b), DomainDec), nil
		},
	})
	return table
}

// TestApplyReusesClosure applies "{ dup * }" to 3 twice via independent
// LexClosure/Apply pairs sharing one ClosureBody, matching scenario 6's
// "C may be applied repeatedly and yields the same result".
func TestApplyReusesClosure(t *testing.T) {
	bodyOrigin := NewOrigin()
	body := NewOverloaded(NewDup(bodyOrigin), newMulOverload(), Position{}, DiscardDiagnostics{})
	closureBody := &ClosureBody{Origin: bodyOrigin, Root: body}

	for i := 0; i < 2; i++ {
		frame, s := newRootStack()
		s.Push(NewInt(3, DomainDec))

		lexOrigin := NewOrigin()
		lc := NewLexClosure(lexOrigin, closureBody)
		applyRoot := NewApply(lc)

		applyRoot.Reset()
		lexOrigin.SetNext(s)
		out, ok := applyRoot.Next()
		if !ok {
			t.Fatalf("iteration %d: Apply produced no result", i)
		}
		if v, _ := out.Top(0); cstOf(t, v) != 9 {
			t.Errorf("iteration %d: Apply result = %v, want 9", i, v)
		}
		frame.unref()
	}
}

// tree is a tiny fixture shared by the TrClosure test: node 0 (root) has
// children 1 and 2, node 1 has child 3, nodes 2 and 3 are leaves. This
// mirrors scenario 7's "root with children b,c and grandchild d".
var tree = map[int64][]int64{
	0: {1, 2},
	1: {3},
	2: nil,
	3: nil,
}

// childOp pushes one result per child of the upstream stack's
// top-of-stack node id, standing in for the dwarfinfo "child" word so
// TestTrClosureStarEnumeratesEachStackOnce can drive TrClosure's
// worklist algorithm without needing a real DWARF fixture.
type childOp struct {
	namedOp
	up      Operator
	graph   map[int64][]int64
	pending []int64
	base    *Stack
}

func newChildOp(up Operator) *childOp {
	return &childOp{namedOp: namedOp{"child"}, up: up, graph: tree}
}

func newChildOpWithGraph(up Operator, graph map[int64][]int64) *childOp {
	return &childOp{namedOp: namedOp{"child"}, up: up, graph: graph}
}

func (c *childOp) Next() (*Stack, bool) {
	for {
		if len(c.pending) > 0 {
			id := c.pending[0]
			c.pending = c.pending[1:]
			out := c.base.Clone()
			out.Push(NewInt(id, DomainDec))
			if len(c.pending) == 0 {
				c.base.Release()
				c.base = nil
			}
			return out, true
		}
		s, ok := c.up.Next()
		if !ok {
			return nil, false
		}
		v, _ := s.Pop()
		id := cstFromValue(v)
		children := c.graph[id]
		if len(children) == 0 {
			s.Release()
			continue
		}
		c.base = s
		c.pending = children
	}
}

func (c *childOp) Reset() {
	c.up.Reset()
	c.pending = nil
	if c.base != nil {
		c.base.Release()
		c.base = nil
	}
}

func cstFromValue(v Value) int64 {
	c, _, _ := v.AsCst()
	return c.Int64()
}

// TestTrClosureStarEnumeratesEachStackOnce mirrors scenario 7: starting
// from a root with children b, c and grandchild d, "root child*" must
// yield each of the four nodes exactly once, root first.
func TestTrClosureStarEnumeratesEachStackOnce(t *testing.T) {
	innerOrigin := NewOrigin()
	child := newChildOp(innerOrigin)

	origin := NewOrigin()
	root := NewTrClosure(origin, NewBranch(innerOrigin, child), Star)

	_, s := newRootStack()
	s.Push(NewInt(0, DomainDec))

	stacks := runToStacks(t, origin, root, s)
	if len(stacks) != 4 {
		t.Fatalf("TrClosure(Star) = %d stacks, want 4", len(stacks))
	}
	seen := map[int64]bool{}
	for i, st := range stacks {
		v, _ := st.Top(0)
		id := cstOf(t, v)
		if seen[id] {
			t.Errorf("node %d visited more than once", id)
		}
		seen[id] = true
		if i == 0 && id != 0 {
			t.Errorf("first result = %d, want root (0)", id)
		}
	}
	for _, id := range []int64{0, 1, 2, 3} {
		if !seen[id] {
			t.Errorf("node %d never visited", id)
		}
	}
}

// TestTrClosurePlusExcludesRoot confirms Plus (transitive, not
// reflexive-transitive) never emits the starting node itself unless it
// is also reachable as its own descendant.
func TestTrClosurePlusExcludesRoot(t *testing.T) {
	innerOrigin := NewOrigin()
	child := newChildOp(innerOrigin)

	origin := NewOrigin()
	root := NewTrClosure(origin, NewBranch(innerOrigin, child), Plus)

	_, s := newRootStack()
	s.Push(NewInt(0, DomainDec))

	stacks := runToStacks(t, origin, root, s)
	if len(stacks) != 3 {
		t.Fatalf("TrClosure(Plus) = %d stacks, want 3", len(stacks))
	}
	for _, st := range stacks {
		v, _ := st.Top(0)
		if cstOf(t, v) == 0 {
			t.Errorf("TrClosure(Plus) emitted the root node")
		}
	}
}

// cycleGraph is a two-node cycle: node 10 -> 11 -> 10. Unlike tree, the
// starting node is reachable from itself, so TrClosure(Plus) must emit it.
var cycleGraph = map[int64][]int64{
	10: {11},
	11: {10},
}

// TestTrClosurePlusIncludesSelfCycle confirms Plus emits the starting node
// when it is reachable from itself via one or more applications of the
// inner branch, per §8 Testable Property #5 ("TrClosure(f, plus) contains
// i iff i ∈ f(i)").
func TestTrClosurePlusIncludesSelfCycle(t *testing.T) {
	innerOrigin := NewOrigin()
	child := newChildOpWithGraph(innerOrigin, cycleGraph)

	origin := NewOrigin()
	root := NewTrClosure(origin, NewBranch(innerOrigin, child), Plus)

	_, s := newRootStack()
	s.Push(NewInt(10, DomainDec))

	stacks := runToStacks(t, origin, root, s)
	seen := map[int64]bool{}
	for _, st := range stacks {
		v, _ := st.Top(0)
		seen[cstOf(t, v)] = true
	}
	if !seen[10] {
		t.Errorf("TrClosure(Plus) on a self-reachable root never emitted the root; got %v", seen)
	}
	if !seen[11] {
		t.Errorf("TrClosure(Plus) on a self-reachable root never emitted its neighbor; got %v", seen)
	}
}

// TestMergeRoundRobinsUntilAllDrain checks Merge interleaves rather than
// draining one branch before starting the next.
func TestMergeRoundRobinsUntilAllDrain(t *testing.T) {
	mk := func(vals ...int64) Operator {
		frame, s := newRootStack()
		var results []*Stack
		for _, v := range vals {
			c := s.Clone()
			c.Push(NewInt(v, DomainDec))
			results = append(results, c)
		}
		s.Release()
		frame.unref()
		i := 0
		return &funcOperator{
			name: "fixed",
			next: func() (*Stack, bool) {
				if i >= len(results) {
					return nil, false
				}
				r := results[i]
				i++
				return r, true
			},
			reset: func() { i = 0 },
		}
	}

	a := mk(1, 2)
	b := mk(3, 4, 5)
	merge := NewMerge([]Operator{a, b})

	var got []int64
	for {
		s, ok := merge.Next()
		if !ok {
			break
		}
		v, _ := s.Top(0)
		got = append(got, cstOf(t, v))
	}
	if len(got) != 5 {
		t.Fatalf("Merge produced %d results, want 5", len(got))
	}
	want := []int64{1, 3, 2, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Merge order = %v, want %v", got, want)
		}
	}
}

// funcOperator adapts a pair of closures to Operator, for tests that
// need a canned result stream without a full compiled sub-expression.
type funcOperator struct {
	name  string
	next  func() (*Stack, bool)
	reset func()
}

func (f *funcOperator) Next() (*Stack, bool) { return f.next() }
func (f *funcOperator) Reset()               { f.reset() }
func (f *funcOperator) Name() string         { return f.name }
