package lang

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tombergan/dwarfquery/engine"
)

func TestNumberValueDecimalAndHex(t *testing.T) {
	t.Parallel()

	v, err := numberValue(NumberNode{Text: "123"})
	require.NoError(t, err)
	c, domain, ok := v.AsCst()
	require.True(t, ok)
	require.Equal(t, "123", c.String())
	require.Equal(t, engine.DomainDec, domain)

	v, err = numberValue(NumberNode{Text: "0x7b"})
	require.NoError(t, err)
	c, domain, ok = v.AsCst()
	require.True(t, ok)
	require.Equal(t, "123", c.String())
	require.Equal(t, engine.DomainHex, domain)
}

func TestNumberValueMalformedIsError(t *testing.T) {
	t.Parallel()
	_, err := numberValue(NumberNode{Text: "0xzz"})
	require.Error(t, err)
}

func TestSeqValueNestedAndConstant(t *testing.T) {
	t.Parallel()

	vocab := engine.NewVocabulary(nil)
	vocab.DefineConst("FOO", engine.NewInt(42, engine.DomainDec))
	c := &compiler{vocab: vocab}

	nodes, err := Parse(`[1, [2, 3], FOO]`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	seq := nodes[0].(SeqNode)

	v, err := c.seqValue(seq)
	require.NoError(t, err)
	elems, ok := v.AsSeq()
	require.True(t, ok)
	require.Len(t, elems, 3)

	first, _, _ := elems[0].AsCst()
	require.Equal(t, "1", first.String())

	nested, ok := elems[1].AsSeq()
	require.True(t, ok)
	require.Len(t, nested, 2)

	foo, _, _ := elems[2].AsCst()
	require.Equal(t, "42", foo.String())
}

func TestSeqValueUnknownWordIsError(t *testing.T) {
	t.Parallel()

	vocab := engine.NewVocabulary(nil)
	c := &compiler{vocab: vocab}

	nodes, err := Parse(`[NOT_A_CONST]`)
	require.NoError(t, err)
	_, err = c.seqValue(nodes[0].(SeqNode))
	require.Error(t, err)
}

func TestStringLiteralValueConcatenatesLiteralRuns(t *testing.T) {
	t.Parallel()

	sn := StringNode{Parts: []StringPart{{Literal: "hello "}, {Literal: "world"}}}
	v := stringLiteralValue(sn)
	s, ok := v.AsStr()
	require.True(t, ok)
	require.Equal(t, "hello world", s)
}
