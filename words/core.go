// Package words registers the built-in word catalog against an
// engine.Vocabulary: stack shuffling, arithmetic, sequence iteration,
// coverage construction, and the generic comparison predicates. DWARF-
// specific words (entry, attribute, @AT_*, ...) live in dwarf.go and
// depend on the dwarfinfo package; this file is domain-agnostic and only
// depends on engine.
package words

import (
	"fmt"
	"math/big"

	"github.com/tombergan/dwarfquery/engine"
)

// Core installs the type-agnostic and generically-typed words into vocab.
// Callers building a DWARF vocabulary layer DWARF (see dwarf.go) on top of
// a vocabulary that has had Core applied.
func Core(vocab *engine.Vocabulary) {
	registerStackWords(vocab)
	registerComparisonWords(vocab)
	registerArithmeticWords(vocab)
	registerSequenceWords(vocab)
	registerCoverageWords(vocab)
}

// registerStackWords wires the words whose behavior has no per-type
// variation, via DirectOpBuilder rather than a selector-matched overload
// table (see engine/facade.go's DirectOpBuilder doc).
func registerStackWords(vocab *engine.Vocabulary) {
	vocab.DefineDirectOp("dup", func(up engine.Operator) engine.Operator { return engine.NewDup(up) })
	vocab.DefineDirectOp("swap", func(up engine.Operator) engine.Operator { return engine.NewSwap(up) })
	vocab.DefineDirectOp("over", func(up engine.Operator) engine.Operator { return engine.NewOver(up) })
	vocab.DefineDirectOp("drop", func(up engine.Operator) engine.Operator { return engine.NewDropN(up, 1) })
	vocab.DefineDirectOp("apply", func(up engine.Operator) engine.Operator { return engine.NewApply(up) })
}

// registerComparisonWords wires ?eq/?ne/?lt/?le/?gt/?ge, each built once
// generically over Value.Cmp per SPEC_FULL.md §4 ("built once generically
// over Value.cmp, not re-implemented per pair of types").
func registerComparisonWords(vocab *engine.Vocabulary) {
	vocab.DefineDirectPred("?eq", engine.NewCmpPredicate(engine.Equal))
	vocab.DefineDirectPred("?ne", engine.NewCmpPredicate(engine.Less, engine.Greater))
	vocab.DefineDirectPred("?lt", engine.NewCmpPredicate(engine.Less))
	vocab.DefineDirectPred("?le", engine.NewCmpPredicate(engine.Less, engine.Equal))
	vocab.DefineDirectPred("?gt", engine.NewCmpPredicate(engine.Greater))
	vocab.DefineDirectPred("?ge", engine.NewCmpPredicate(engine.Greater, engine.Equal))
}

// registerArithmeticWords wires add: Cst+Cst sums, Seq+Seq concatenates,
// AddrSet+AddrSet unions; and "*": Cst,Cst multiplication (a bare word,
// lexed as such only when whitespace-separated from its neighbors -
// "child*" is the unrelated postfix transitive-closure operator, but
// "dup *" calls this word). Each entry pops [top, second] per the
// overload argument convention (args[0] was on top of stack).
func registerArithmeticWords(vocab *engine.Vocabulary) {
	add := vocab.DefineOp("add")

	add.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeCst, engine.CodeCst},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			b, domain, _ := args[0].AsCst()
			a, aDomain, _ := args[1].AsCst()
			sum := new(big.Int).Add(a, b)
			if aDomain != domain {
				aDomain = engine.DomainDec
			}
			return engine.NewCst(sum, aDomain), nil
		},
	})

	add.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeSeq, engine.CodeSeq},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			b, _ := args[0].AsSeq()
			a, _ := args[1].AsSeq()
			out := make([]engine.Value, 0, len(a)+len(b))
			for _, v := range a {
				out = append(out, v.Clone())
			}
			for _, v := range b {
				out = append(out, v.Clone())
			}
			return engine.NewSeq(out), nil
		},
	})

	add.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeAddrSet, engine.CodeAddrSet},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			b, _ := args[0].AsAddrSet()
			a, _ := args[1].AsAddrSet()
			return engine.NewAddrSet(a.Union(b)), nil
		},
	})

	mul := vocab.DefineOp("*")
	mul.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeCst, engine.CodeCst},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			b, domain, _ := args[0].AsCst()
			a, aDomain, _ := args[1].AsCst()
			product := new(big.Int).Mul(a, b)
			if aDomain != domain {
				aDomain = engine.DomainDec
			}
			return engine.NewCst(product, aDomain), nil
		},
	})
}

// registerSequenceWords wires elem/relem (forward/reverse iteration,
// stamping positions 0..n-1 on their own output per the position
// discipline) and length for Seq.
func registerSequenceWords(vocab *engine.Vocabulary) {
	elem := vocab.DefineOp("elem")
	elem.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeSeq},
		Kind:  engine.Yielding,
		Yield: func(args []engine.Value) engine.Producer {
			elems, _ := args[0].AsSeq()
			return engine.NewSliceProducer(elems)
		},
	})

	relem := vocab.DefineOp("relem")
	relem.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeSeq},
		Kind:  engine.Yielding,
		Yield: func(args []engine.Value) engine.Producer {
			elems, _ := args[0].AsSeq()
			return engine.NewReverseSliceProducer(elems)
		},
	})

	length := vocab.DefineOp("length")
	length.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeSeq},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			elems, _ := args[0].AsSeq()
			return engine.NewInt(int64(len(elems)), engine.DomainDec), nil
		},
	})
	length.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeAddrSet},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			cov, _ := args[0].AsAddrSet()
			return engine.NewUint64(cov.Length(), engine.DomainDec), nil
		},
	})
}

// registerCoverageWords wires aset (Cst, Cst -> AddrSet, taking [start,
// end) per scenario 4: "0 0x10 aset" covers addresses 0..0xf) and
// ?contains (AddrSet, Cst -> predicate).
func registerCoverageWords(vocab *engine.Vocabulary) {
	aset := vocab.DefineOp("aset")
	aset.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{engine.CodeCst, engine.CodeCst},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			end, _, _ := args[0].AsCst()
			start, _, _ := args[1].AsCst()
			length := new(big.Int).Sub(end, start)
			if length.Sign() <= 0 {
				return engine.Value{}, fmt.Errorf("aset: empty or negative range [%s, %s)", start, end)
			}
			return engine.NewAddrSet(engine.NewCoverage(engine.Range{
				Start:  start.Uint64(),
				Length: length.Uint64(),
			})), nil
		},
	})

	contains := vocab.DefinePred("?contains")
	contains.Register(engine.PredOverloadEntry{
		Types: []engine.TypeCode{engine.CodeCst, engine.CodeAddrSet},
		Test: func(args []engine.Value) engine.PredResult {
			addr, _, _ := args[0].AsCst()
			cov, _ := args[1].AsAddrSet()
			if cov.ContainsAddr(addr.Uint64()) {
				return engine.Yes
			}
			return engine.No
		},
	})
}
