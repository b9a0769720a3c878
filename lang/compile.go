package lang

import (
	"fmt"

	"github.com/tombergan/dwarfquery/engine"
)

// Compile parses source and builds a runnable engine.Query against
// vocab. diag receives advisory diagnostics (dispatch misses); it may be
// nil to discard them, per engine.NewOverloaded's contract.
func Compile(source string, vocab *engine.Vocabulary, diag engine.Diagnostics) (*engine.Query, error) {
	nodes, err := Parse(source)
	if err != nil {
		return nil, err
	}
	c := &compiler{vocab: vocab, diag: diag, source: source}
	origin, root, err := c.compileBranch(nodes)
	if err != nil {
		return nil, err
	}
	return engine.NewQuery(origin, root), nil
}

// compiler resolves each WordNode against vocab in priority order and
// assembles the operator graph for a parsed pipeline. It carries no
// per-call state beyond vocab/diag, so the same compiler serves every
// sub-pipeline (closure bodies, Or/TrClosure branches, string
// interpolation) encountered while walking one top-level program.
type compiler struct {
	vocab  *engine.Vocabulary
	diag   engine.Diagnostics
	source string
}

// position converts a token's byte offset into an engine.Position, for
// tagging advisory diagnostics with a source location.
func (c *compiler) position(p Pos) engine.Position {
	line, col := p.LineCol(c.source)
	return engine.Position{Line: line, Col: col}
}

// compileBranch compiles nodes as a self-contained sub-expression, i.e.
// one with its own Origin, for use as a branch operand of Or or
// TrClosure, or as a closure/string-interpolation body.
func (c *compiler) compileBranch(nodes []Node) (*engine.Origin, engine.Operator, error) {
	origin := engine.NewOrigin()
	root, err := c.compilePipeline(origin, nodes)
	if err != nil {
		return nil, nil, err
	}
	return origin, root, nil
}

func (c *compiler) compilePipeline(up engine.Operator, nodes []Node) (engine.Operator, error) {
	cur := up
	for _, n := range nodes {
		var err error
		cur, err = c.compileNode(cur, n)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (c *compiler) compileNode(up engine.Operator, n Node) (engine.Operator, error) {
	switch v := n.(type) {
	case WordNode:
		return c.compileWord(up, v)
	case NumberNode:
		val, err := numberValue(v)
		if err != nil {
			return nil, err
		}
		return engine.NewConst(up, val), nil
	case StringNode:
		return c.compileString(up, v)
	case SeqNode:
		val, err := c.seqValue(v)
		if err != nil {
			return nil, err
		}
		return engine.NewConst(up, val), nil
	case ClosureNode:
		origin, root, err := c.compileBranch(v.Body)
		if err != nil {
			return nil, err
		}
		return engine.NewLexClosure(up, &engine.ClosureBody{Origin: origin, Root: root}), nil
	case GroupNode:
		// Grouping has no semantic effect on its own; it only matters as
		// the operand of a postfix "*"/"+" (TrClosureNode) or as a
		// branch of "(a | b)" (OrNode), both handled elsewhere. A bare
		// group standing alone in a pipeline just splices its body in
		// place.
		return c.compilePipeline(up, v.Body)
	case TrClosureNode:
		return c.compileTrClosure(up, v)
	case OrNode:
		return c.compileOr(up, v)
	default:
		return nil, fmt.Errorf("lang: internal error: unhandled node type %T", n)
	}
}

// compileWord resolves name against the vocabulary, trying each binding
// kind in turn: a type-agnostic operator, an overloaded operator, a
// type-agnostic predicate (wrapped as an assertion), an overloaded
// predicate (wrapped as an assertion), then a named constant.
func (c *compiler) compileWord(up engine.Operator, w WordNode) (engine.Operator, error) {
	name := w.Name
	if build, ok := c.vocab.LookupDirectOp(name); ok {
		return build(up), nil
	}
	if table, ok := c.vocab.LookupOp(name); ok {
		return engine.NewOverloaded(up, table, c.position(w.Pos), c.diag), nil
	}
	if pred, ok := c.vocab.LookupDirectPred(name); ok {
		return engine.NewAssert(up, pred), nil
	}
	if table, ok := c.vocab.LookupPred(name); ok {
		return engine.NewAssert(up, engine.NewOverloadedPred(table)), nil
	}
	if val, ok := c.vocab.LookupConst(name); ok {
		return engine.NewConst(up, val), nil
	}
	return nil, fmt.Errorf("lang: unknown word %q at offset %d", name, w.Pos)
}

// compileTrClosure builds a TrClosure from a postfix "*"/"+" node. The
// wrapped node is either a GroupNode, whose body is the sub-expression to
// iterate, or any other single atom, treated as a one-element
// sub-expression (e.g. "child*" iterates plain "child").
func (c *compiler) compileTrClosure(up engine.Operator, v TrClosureNode) (engine.Operator, error) {
	var innerNodes []Node
	if g, ok := v.Inner.(GroupNode); ok {
		innerNodes = g.Body
	} else {
		innerNodes = []Node{v.Inner}
	}
	origin, root, err := c.compileBranch(innerNodes)
	if err != nil {
		return nil, err
	}
	return engine.NewTrClosure(up, engine.NewBranch(origin, root), v.Kind), nil
}

// compileOr builds an Or from a "(a | b | c)" alternation, using
// engine.NewBranches to assemble the slice NewOr expects without this
// package ever needing to name engine's unexported branch type.
func (c *compiler) compileOr(up engine.Operator, v OrNode) (engine.Operator, error) {
	branches := engine.NewBranches()
	for _, body := range v.Branches {
		origin, root, err := c.compileBranch(body)
		if err != nil {
			return nil, err
		}
		branches = append(branches, engine.NewBranch(origin, root))
	}
	return engine.NewOr(up, branches), nil
}
