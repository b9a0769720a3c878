package lang

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/tombergan/dwarfquery/engine"
)

// numberValue converts a NumberNode's lexed text into a Cst value. A
// "0x"/"0X" prefix selects DomainHex so the value renders the way it was
// written; anything else is DomainDec.
func numberValue(n NumberNode) (engine.Value, error) {
	text := n.Text
	domain := engine.DomainDec
	base := 10
	digits := text
	if len(text) > 2 && (text[1] == 'x' || text[1] == 'X') && text[0] == '0' {
		domain = engine.DomainHex
		base = 16
		digits = text[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return engine.Value{}, fmt.Errorf("lang: malformed number %q at offset %d", text, n.Pos)
	}
	return engine.NewCst(v, domain), nil
}

// stringLiteralValue concatenates the literal runs of a non-interpolated
// StringNode into a single Str value. Callers (seqValue) are responsible
// for having already rejected any Expr parts.
func stringLiteralValue(s StringNode) engine.Value {
	var b strings.Builder
	for _, part := range s.Parts {
		b.WriteString(part.Literal)
	}
	return engine.NewStr(b.String())
}

// seqValue evaluates a SeqNode into a Seq value. Every element must be
// one of the constant-foldable kinds the parser already restricted seq
// literals to; the one remaining check performed here is that a bare
// word names an actual constant in vocab.
func (c *compiler) seqValue(n SeqNode) (engine.Value, error) {
	elems := make([]engine.Value, 0, len(n.Elements))
	for _, el := range n.Elements {
		switch e := el.(type) {
		case NumberNode:
			v, err := numberValue(e)
			if err != nil {
				return engine.Value{}, err
			}
			elems = append(elems, v)
		case StringNode:
			elems = append(elems, stringLiteralValue(e))
		case SeqNode:
			v, err := c.seqValue(e)
			if err != nil {
				return engine.Value{}, err
			}
			elems = append(elems, v)
		case WordNode:
			v, ok := c.vocab.LookupConst(e.Name)
			if !ok {
				return engine.Value{}, fmt.Errorf("lang: %q at offset %d is not a constant, and only constants may appear in a sequence literal", e.Name, e.Pos)
			}
			elems = append(elems, v)
		default:
			return engine.Value{}, fmt.Errorf("lang: internal error: unexpected sequence literal element %T", el)
		}
	}
	return engine.NewSeq(elems), nil
}

// compileString assembles the Stringer chain for an interpolated string
// literal and wraps it in a Format boundary operator. Parts are wired in
// reverse so that, following Format/StringerLit's prepend-the-suffix
// convention, the final rendered string reads the parts in source order:
// the last part is closest to the chain's origin (computed first, with
// the empty upstream suffix) and each earlier part's text is prepended
// as the suffix bubbles back out to the chain root.
func (c *compiler) compileString(up engine.Operator, s StringNode) (engine.Operator, error) {
	origin := engine.NewStringerOrigin()
	var chain engine.Stringer = origin
	for i := len(s.Parts) - 1; i >= 0; i-- {
		part := s.Parts[i]
		if part.Expr == nil {
			chain = engine.NewStringerLit(chain, part.Literal)
			continue
		}
		subOrigin, subRoot, err := c.compileBranch(part.Expr)
		if err != nil {
			return nil, err
		}
		chain = engine.NewStringerOp(chain, subOrigin, subRoot)
	}
	return engine.NewFormat(up, origin, chain), nil
}
