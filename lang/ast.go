package lang

import "github.com/tombergan/dwarfquery/engine"

// Node is one step of a compiled pipeline. Every concrete node type below
// is handled by exactly one case in compile.go's compileNode.
type Node interface {
	node()
}

// WordNode is a bare vocabulary word: a stack-shuffling word (dup), a
// comparison predicate (?eq), a domain operator (child, entry), or a
// named constant (@AT_name).
type WordNode struct {
	Name string
	Pos  Pos
}

// NumberNode is a decimal or 0x-prefixed hexadecimal integer literal; the
// prefix used at parse time also selects the constant's rendering domain
// (DomainDec or DomainHex), per the glossary's note that domain governs
// display, not value.
type NumberNode struct {
	Text string
	Pos  Pos
}

// StringPart is one fragment of an interpolated string literal: either a
// literal run of text, or an embedded sub-pipeline (the "%( ... %)"
// portion) whose result is rendered and spliced in.
type StringPart struct {
	Literal string // valid only when Expr == nil
	Expr    []Node // the embedded sub-pipeline, or nil for a literal run
}

// StringNode is a double-quoted string literal, exploded into literal and
// embedded-expression parts by splitString (see parser.go).
type StringNode struct {
	Parts []StringPart
	Pos   Pos
}

// SeqNode is a "[elem, elem, ...]" literal. Per the sequence-literal
// invariant, every element must be constant-foldable: elements are
// restricted at parse time to numbers, non-interpolated strings, named
// constants, and nested seq literals of the same kind, never a general
// sub-pipeline.
type SeqNode struct {
	Elements []Node
	Pos      Pos
}

// ClosureNode is a "{ ... }" literal: compiles to a LexClosure pushing a
// value that a later apply can invoke.
type ClosureNode struct {
	Body []Node
	Pos  Pos
}

// GroupNode is a parenthesized sub-pipeline "( ... )" used purely for
// grouping, e.g. as the operand of a postfix "*"/"+" or as one operand of
// an arithmetic word.
type GroupNode struct {
	Body []Node
	Pos  Pos
}

// TrClosureNode wraps Inner (whatever atom precedes the postfix marker:
// a GroupNode, an OrNode, a WordNode, or any other atom) with a postfix
// "*" (Star, reflexive-transitive closure) or "+" (Plus, transitive
// closure).
type TrClosureNode struct {
	Inner Node
	Kind  engine.TrKind
	Pos   Pos
}

// OrNode is a parenthesized "(a | b | c)" alternation: the first branch
// that yields any result wins.
type OrNode struct {
	Branches [][]Node
	Pos      Pos
}

func (WordNode) node()      {}
func (NumberNode) node()    {}
func (StringNode) node()    {}
func (SeqNode) node()       {}
func (ClosureNode) node()   {}
func (GroupNode) node()     {}
func (TrClosureNode) node() {}
func (OrNode) node()        {}
