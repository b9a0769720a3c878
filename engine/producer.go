package engine

// Producer is a lazy, consumed-once enumerator of typed values: the
// fundamental building block underneath every multi-result operator
// (overload results, sequence iteration, string-format sub-expressions).
// A Producer never supports Reset; once drained it stays drained. Callers
// that need to re-enumerate construct a fresh Producer.
type Producer interface {
	// Next returns the next value, or ok=false once the producer is
	// drained. Calling Next again after ok=false continues to return
	// ok=false.
	Next() (Value, bool)
}

// FuncProducer adapts a plain closure to the Producer interface.
type FuncProducer func() (Value, bool)

func (f FuncProducer) Next() (Value, bool) { return f() }

// sliceProducer enumerates a fixed slice of values in order, stamping
// positions 0..n-1 as it emits them (per the position-stamping discipline
// in DESIGN.md: each producer stamps its own output monotone from 0).
type sliceProducer struct {
	vals []Value
	i    int
}

// NewSliceProducer returns a Producer over vals in order. vals is not
// copied; callers should Clone elements first if they still need the
// originals.
func NewSliceProducer(vals []Value) Producer {
	return &sliceProducer{vals: vals}
}

func (p *sliceProducer) Next() (Value, bool) {
	if p.i >= len(p.vals) {
		return Value{}, false
	}
	v := p.vals[p.i].WithPos(p.i)
	p.i++
	return v, true
}

// reverseSliceProducer enumerates vals back-to-front, still stamping
// positions 0..n-1 on its own output stream (used by relem: the reversal
// is in enumeration order, not in the positions assigned).
type reverseSliceProducer struct {
	vals []Value
	i    int
	pos  int
}

func NewReverseSliceProducer(vals []Value) Producer {
	return &reverseSliceProducer{vals: vals, i: len(vals) - 1}
}

func (p *reverseSliceProducer) Next() (Value, bool) {
	if p.i < 0 {
		return Value{}, false
	}
	v := p.vals[p.i].WithPos(p.pos)
	p.i--
	p.pos++
	return v, true
}

// concatProducer drains a, then b. This is the only combinator specified
// at the Producer layer; richer combinators live one layer up, on
// Operator and Predicate.
type concatProducer struct {
	a, b   Producer
	onB    bool
	nextPos int
}

// ConcatProducers returns a producer that drains a to exhaustion, then b,
// restamping positions monotone from 0 across the whole concatenation.
func ConcatProducers(a, b Producer) Producer {
	return &concatProducer{a: a, b: b}
}

func (p *concatProducer) Next() (Value, bool) {
	if !p.onB {
		if v, ok := p.a.Next(); ok {
			v = v.WithPos(p.nextPos)
			p.nextPos++
			return v, true
		}
		p.onB = true
	}
	if v, ok := p.b.Next(); ok {
		v = v.WithPos(p.nextPos)
		p.nextPos++
		return v, true
	}
	return Value{}, false
}
