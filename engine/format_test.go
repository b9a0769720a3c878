package engine

import "testing"

// TestFormatAssemblesLiteralAndInterpolatedParts builds the stringer chain
// the way compileString assembles one from an interpolated literal like
// "tag=%( dup %)": a StringerOrigin leaf, wrapped by a StringerOp driving
// a trivial sub-expression (Dup, so the rendered value is whatever was on
// top of stack), wrapped by a StringerLit prepending the literal prefix.
// Per the reverse-build-order convention (see DESIGN.md), each stage's
// Next return value is the suffix accumulated by everything BELOW it in
// the chain, so the outermost stage (StringerLit here) yields the fully
// assembled string.
func TestFormatAssemblesLiteralAndInterpolatedParts(t *testing.T) {
	origin := NewStringerOrigin()

	subOrigin := NewOrigin()
	subRoot := NewDup(subOrigin)

	opStage := NewStringerOp(origin, subOrigin, subRoot)
	chain := NewStringerLit(opStage, "tag=")

	upOrigin := NewOrigin()
	format := NewFormat(upOrigin, origin, chain)

	_, s := newRootStack()
	s.Push(NewInt(5, DomainDec))

	format.Reset()
	upOrigin.SetNext(s)
	out, ok := format.Next()
	if !ok {
		t.Fatalf("Format produced no result")
	}
	v, ok := out.Top(0)
	if !ok {
		t.Fatalf("Format's result stack is empty")
	}
	got, ok := v.AsStr()
	if !ok {
		t.Fatalf("Format's result is not a Str: %v", v)
	}
	if got != "tag=5" {
		t.Errorf("assembled string = %q, want %q", got, "tag=5")
	}
}

// TestFormatEmitsOneStringPerSubExpressionResult mirrors an interpolated
// literal whose embedded expression yields more than one result: Format
// must emit one Str per (stack, suffix) pair the chain produces, each
// with a fresh, chain-scoped position.
func TestFormatEmitsOneStringPerSubExpressionResult(t *testing.T) {
	origin := NewStringerOrigin()

	subOrigin := NewOrigin()
	table := NewOverloadTable("elem")
	table.Register(OverloadEntry{
		Types: []TypeCode{CodeSeq},
		Kind:  Yielding,
		Yield: func(args []Value) Producer {
			elems, _ := args[0].AsSeq()
			return NewSliceProducer(elems)
		},
	})
	subRoot := NewOverloaded(subOrigin, table, Position{}, DiscardDiagnostics{})

	opStage := NewStringerOp(origin, subOrigin, subRoot)

	upOrigin := NewOrigin()
	format := NewFormat(upOrigin, origin, opStage)

	_, s := newRootStack()
	s.Push(NewSeq([]Value{NewInt(1, DomainDec), NewInt(2, DomainDec)}))

	format.Reset()
	upOrigin.SetNext(s)

	var got []string
	var positions []int
	for {
		out, ok := format.Next()
		if !ok {
			break
		}
		v, _ := out.Top(0)
		str, _ := v.AsStr()
		got = append(got, str)
		positions = append(positions, v.Pos)
	}
	if len(got) != 2 {
		t.Fatalf("Format produced %d results, want 2", len(got))
	}
	if got[0] != "1" || got[1] != "2" {
		t.Errorf("results = %v, want [1 2]", got)
	}
	if positions[0] != 0 || positions[1] != 1 {
		t.Errorf("positions = %v, want [0 1]", positions)
	}
}

func TestStringerOriginYieldsOnceThenExhausts(t *testing.T) {
	origin := NewStringerOrigin()
	_, s := newRootStack()
	origin.SetNext(s)

	_, suffix, ok := origin.Next()
	if !ok || suffix != "" {
		t.Fatalf("first Next: ok=%v suffix=%q, want ok=true suffix=\"\"", ok, suffix)
	}
	if _, _, ok := origin.Next(); ok {
		t.Errorf("second Next before Reset succeeded, want exhausted")
	}
}
