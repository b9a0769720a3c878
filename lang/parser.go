package lang

import (
	"fmt"
	"strings"

	"github.com/tombergan/dwarfquery/engine"
)

// Parse tokenizes and parses source into a top-level pipeline: a sequence
// of nodes applied left to right, the concatenative-language analogue of
// a Unix pipe chain. Grounded on spore/parser's hand-written
// recursive-descent shape (no parser generator in the retrieval pack
// reaches for one for a language this small).
func Parse(source string) ([]Node, error) {
	toks, err := Lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	nodes, err := p.parsePipeline(isEOF)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != EOF {
		return nil, fmt.Errorf("lang: unexpected trailing %s at offset %d", p.peek(), p.peek().Pos)
	}
	return nodes, nil
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Type: EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) expect(tt TokenType) (Token, error) {
	t := p.peek()
	if t.Type != tt {
		return Token{}, fmt.Errorf("lang: expected %s, got %s at offset %d", tt, t, t.Pos)
	}
	return p.advance(), nil
}

func isEOF(tt TokenType) bool          { return tt == EOF }
func isRBrace(tt TokenType) bool       { return tt == RBrace }
func isPipeOrRParen(tt TokenType) bool { return tt == Pipe || tt == RParen }

// parsePipeline reads atoms until the next token type satisfies stop.
func (p *parser) parsePipeline(stop func(TokenType) bool) ([]Node, error) {
	var nodes []Node
	for !stop(p.peek().Type) {
		if p.peek().Type == EOF {
			return nil, fmt.Errorf("lang: unexpected end of input")
		}
		n, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// parseAtom parses one pipeline element and, if it is immediately
// followed by a postfix "*" or "+", wraps it in a TrClosureNode. Any base
// node type may carry a postfix operator; compile.go decides what that
// means for each type.
func (p *parser) parseAtom() (Node, error) {
	tok := p.peek()
	var base Node
	var err error
	switch tok.Type {
	case Word:
		p.advance()
		base = WordNode{Name: tok.Text, Pos: tok.Pos}
	case Number:
		p.advance()
		base = NumberNode{Text: tok.Text, Pos: tok.Pos}
	case String:
		p.advance()
		parts, perr := splitString(tok.Text)
		if perr != nil {
			return nil, perr
		}
		base = StringNode{Parts: parts, Pos: tok.Pos}
	case LBracket:
		base, err = p.parseSeq()
	case LBrace:
		base, err = p.parseClosure()
	case LParen:
		base, err = p.parseParenOrOr()
	default:
		return nil, fmt.Errorf("lang: unexpected token %s at offset %d", tok, tok.Pos)
	}
	if err != nil {
		return nil, err
	}
	switch p.peek().Type {
	case Star:
		pos := p.advance().Pos
		return TrClosureNode{Inner: base, Kind: engine.Star, Pos: pos}, nil
	case Plus:
		pos := p.advance().Pos
		return TrClosureNode{Inner: base, Kind: engine.Plus, Pos: pos}, nil
	default:
		return base, nil
	}
}

// parseSeq parses a "[elem, elem, ...]" literal. Elements are restricted
// to numbers, non-interpolated strings, named constants, and nested
// sequence literals, per SeqNode's doc comment.
func (p *parser) parseSeq() (Node, error) {
	open, err := p.expect(LBracket)
	if err != nil {
		return nil, err
	}
	var elems []Node
	if p.peek().Type != RBracket {
		for {
			e, err := p.parseLiteralAtom()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.peek().Type == Comma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(RBracket); err != nil {
		return nil, err
	}
	return SeqNode{Elements: elems, Pos: open.Pos}, nil
}

func (p *parser) parseLiteralAtom() (Node, error) {
	tok := p.peek()
	switch tok.Type {
	case Number:
		p.advance()
		return NumberNode{Text: tok.Text, Pos: tok.Pos}, nil
	case String:
		p.advance()
		parts, err := splitString(tok.Text)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			if part.Expr != nil {
				return nil, fmt.Errorf("lang: sequence literal element at offset %d may not use %%( ... %%) interpolation", tok.Pos)
			}
		}
		return StringNode{Parts: parts, Pos: tok.Pos}, nil
	case Word:
		p.advance()
		return WordNode{Name: tok.Text, Pos: tok.Pos}, nil
	case LBracket:
		return p.parseSeq()
	default:
		return nil, fmt.Errorf("lang: sequence literal element at offset %d must be a number, string, constant, or nested sequence", tok.Pos)
	}
}

// parseClosure parses a "{ ... }" literal.
func (p *parser) parseClosure() (Node, error) {
	open, err := p.expect(LBrace)
	if err != nil {
		return nil, err
	}
	body, err := p.parsePipeline(isRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RBrace); err != nil {
		return nil, err
	}
	return ClosureNode{Body: body, Pos: open.Pos}, nil
}

// parseParenOrOr parses either a grouping "( ... )" or, when the group
// contains one or more top-level "|" separators, an alternation
// "(a | b | c)".
func (p *parser) parseParenOrOr() (Node, error) {
	open, err := p.expect(LParen)
	if err != nil {
		return nil, err
	}
	first, err := p.parsePipeline(isPipeOrRParen)
	if err != nil {
		return nil, err
	}
	if p.peek().Type == Pipe {
		branches := [][]Node{first}
		for p.peek().Type == Pipe {
			p.advance()
			next, err := p.parsePipeline(isPipeOrRParen)
			if err != nil {
				return nil, err
			}
			branches = append(branches, next)
		}
		if _, err := p.expect(RParen); err != nil {
			return nil, err
		}
		return OrNode{Branches: branches, Pos: open.Pos}, nil
	}
	if _, err := p.expect(RParen); err != nil {
		return nil, err
	}
	return GroupNode{Body: first, Pos: open.Pos}, nil
}

// splitString explodes a raw string-literal body (as lexed by
// lexer.lexString) into literal and embedded-expression parts, resolving
// backslash escapes in the literal runs and recursively parsing each
// "%( ... %)" span as its own pipeline.
func splitString(raw string) ([]StringPart, error) {
	runes := []rune(raw)
	var parts []StringPart
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, StringPart{Literal: lit.String()})
			lit.Reset()
		}
	}
	i := 0
	for i < len(runes) {
		switch {
		case runes[i] == '\\' && i+1 < len(runes):
			lit.WriteRune(unescape(runes[i+1]))
			i += 2
		case runes[i] == '%' && i+1 < len(runes) && runes[i+1] == '(':
			flush()
			i += 2
			start := i
			for i < len(runes) && !(runes[i] == '%' && i+1 < len(runes) && runes[i+1] == ')') {
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("lang: unterminated %%( ... %%) in string literal")
			}
			expr, err := Parse(string(runes[start:i]))
			if err != nil {
				return nil, fmt.Errorf("lang: parsing embedded expression %q: %w", string(runes[start:i]), err)
			}
			i += 2 // skip closing %)
			parts = append(parts, StringPart{Expr: expr})
		default:
			lit.WriteRune(runes[i])
			i++
		}
	}
	flush()
	if parts == nil {
		parts = []StringPart{{Literal: ""}}
	}
	return parts, nil
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}
