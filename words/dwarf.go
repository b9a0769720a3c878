package words

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/debug/dwarf"

	"github.com/tombergan/dwarfquery/dwarfinfo"
	"github.com/tombergan/dwarfquery/engine"
)

// DomainAttr renders @AT_* constants by name (e.g. "@AT_name" prints as
// "name" rather than a bare attribute number), per SPEC_FULL.md §4's
// "constant domains are a registered, extensible table" supplement.
// ?TAG_* words are predicates, not constants (a tag test is a yes/no
// question about a DIE, not a value to push), so tags need no domain of
// their own.
var DomainAttr = engine.RegisterConstDomain("attr", func(v *big.Int) string {
	code := dwarf.Attr(v.Uint64())
	for _, row := range attrTable {
		if row.attr == code {
			return row.name
		}
	}
	return code.String()
})

// tagTable and attrTable list the DWARF tags/attributes exposed as
// ?TAG_*/@AT_* words. This is a representative subset of the DWARF
// vocabulary, not the full standard; extending it means adding a row
// here, not touching the dispatch machinery.
var tagTable = []struct {
	name string
	tag  dwarf.Tag
}{
	{"compile_unit", dwarf.TagCompileUnit},
	{"subprogram", dwarf.TagSubprogram},
	{"variable", dwarf.TagVariable},
	{"formal_parameter", dwarf.TagFormalParameter},
	{"pointer_type", dwarf.TagPointerType},
	{"structure_type", dwarf.TagStructType},
	{"member", dwarf.TagMember},
	{"base_type", dwarf.TagBaseType},
	{"array_type", dwarf.TagArrayType},
	{"lexical_block", dwarf.TagLexDwarfBlock},
}

var attrTable = []struct {
	name string
	attr dwarf.Attr
}{
	{"name", dwarf.AttrName},
	{"type", dwarf.AttrType},
	{"byte_size", dwarf.AttrByteSize},
	{"low_pc", dwarf.AttrLowpc},
	{"high_pc", dwarf.AttrHighpc},
	{"decl_file", dwarf.AttrDeclFile},
	{"decl_line", dwarf.AttrDeclLine},
	{"declaration", dwarf.AttrDeclaration},
	{"encoding", dwarf.AttrEncoding},
	{"external", dwarf.AttrExternal},
	{"abstract_origin", dwarf.AttrAbstractOrigin},
	{"specification", dwarf.AttrSpecification},
}

// Dwarf installs the DWARF-domain words into vocab, layered over whatever
// Core already installed. Grounded on §6.2's collaborator interface: every
// word here is implemented purely in terms of dwarfinfo's File/CU/DIE/Attr.
func Dwarf(vocab *engine.Vocabulary) {
	registerTagAttrConsts(vocab)
	registerEntryWords(vocab)
	registerTreeWords(vocab)
	registerAttrWords(vocab)
	registerModeWords(vocab)
}

func registerTagAttrConsts(vocab *engine.Vocabulary) {
	for _, row := range tagTable {
		row := row
		p := vocab.DefinePred("?TAG_" + row.name)
		p.Register(engine.PredOverloadEntry{
			Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
			Test: func(args []engine.Value) engine.PredResult {
				d := mustDIE(args[0])
				if d.Tag() == row.tag {
					return engine.Yes
				}
				return engine.No
			},
		})
	}
	for _, row := range attrTable {
		row := row
		vocab.DefineConst("@AT_"+row.name, engine.NewInt(int64(row.attr), DomainAttr))
	}
}

func mustDIE(v engine.Value) *dwarfinfo.DIE {
	o, ok := v.AsOpaque()
	if !ok {
		panic("words: expected DIE opaque value")
	}
	d, ok := o.(*dwarfinfo.DIE)
	if !ok {
		panic("words: expected *dwarfinfo.DIE")
	}
	return d
}

func mustCU(v engine.Value) *dwarfinfo.CU {
	o, _ := v.AsOpaque()
	return o.(*dwarfinfo.CU)
}

func mustAttr(v engine.Value) *dwarfinfo.Attr {
	o, _ := v.AsOpaque()
	return o.(*dwarfinfo.Attr)
}

func mustFile(v engine.Value) *dwarfinfo.File {
	o, _ := v.AsOpaque()
	return o.(*dwarfinfo.File)
}

// registerEntryWords wires entry (File -> every CU's root DIE; CU -> its
// root DIE) and root (CU -> root DIE, an alias kept distinct per the
// dwgrep vocabulary this is modeled on).
func registerEntryWords(vocab *engine.Vocabulary) {
	entry := vocab.DefineOp("entry")
	entry.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.FileTypeCode()},
		Kind:  engine.Yielding,
		Yield: func(args []engine.Value) engine.Producer {
			f := mustFile(args[0])
			cus, err := f.CUs()
			if err != nil {
				return engine.NewSliceProducer(nil)
			}
			vals := make([]engine.Value, len(cus))
			for i, cu := range cus {
				vals[i] = engine.NewOpaque(cu.Root())
			}
			return engine.NewSliceProducer(vals)
		},
	})
	entry.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.CUTypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return engine.NewOpaque(mustCU(args[0]).Root()), nil
		},
	})

	root := vocab.DefineOp("root")
	root.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.CUTypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return engine.NewOpaque(mustCU(args[0]).Root()), nil
		},
	})
}

// registerTreeWords wires child (DIE -> many DIEs) and parent (DIE -> at
// most one DIE; a DIE with no parent, i.e. a CU root, yields nothing).
func registerTreeWords(vocab *engine.Vocabulary) {
	child := vocab.DefineOp("child")
	child.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
		Kind:  engine.Yielding,
		Yield: func(args []engine.Value) engine.Producer {
			d := mustDIE(args[0])
			kids, err := d.Children()
			if err != nil {
				return engine.NewSliceProducer(nil)
			}
			vals := make([]engine.Value, len(kids))
			for i, k := range kids {
				vals[i] = engine.NewOpaque(k)
			}
			return engine.NewSliceProducer(vals)
		},
	})

	parent := vocab.DefineOp("parent")
	parent.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
		Kind:  engine.Yielding,
		Yield: func(args []engine.Value) engine.Producer {
			d := mustDIE(args[0])
			p, err := d.Parent()
			if err != nil || p == nil {
				return engine.NewSliceProducer(nil)
			}
			return engine.NewSliceProducer([]engine.Value{engine.NewOpaque(p)})
		},
	})
}

// registerAttrWords wires attribute (DIE -> many Attr), value (Attr ->
// the typed constant/string/reference value), offset (DIE -> Cst hex),
// and name (DIE -> Str, "" if unnamed).
func registerAttrWords(vocab *engine.Vocabulary) {
	attribute := vocab.DefineOp("attribute")
	attribute.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
		Kind:  engine.Yielding,
		Yield: func(args []engine.Value) engine.Producer {
			d := mustDIE(args[0])
			attrs := d.Attrs()
			vals := make([]engine.Value, len(attrs))
			for i, a := range attrs {
				vals[i] = engine.NewOpaque(a)
			}
			return engine.NewSliceProducer(vals)
		},
	})

	value := vocab.DefineOp("value")
	value.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.AttrTypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return attrValueToValue(mustAttr(args[0]).Val()), nil
		},
	})

	loclist := vocab.DefineOp("loclist")
	loclist.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.AttrTypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			ll, err := mustAttr(args[0]).Loclist()
			if err != nil {
				return engine.Value{}, err
			}
			return loclistToValue(ll), nil
		},
	})

	offset := vocab.DefineOp("offset")
	offset.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return engine.NewUint64(uint64(mustDIE(args[0]).Offset()), engine.DomainHex), nil
		},
	})

	name := vocab.DefineOp("name")
	name.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return engine.NewStr(mustDIE(args[0]).Name()), nil
		},
	})
	name.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.AttrTypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return engine.NewStr(mustAttr(args[0]).Name()), nil
		},
	})
}

// attrValueToValue converts a raw attribute value (whose concrete Go type
// depends on the DWARF form) into an engine.Value, per §6.2's "extract
// attribute values (typed: constant, string, reference, address, block,
// flag)".
func attrValueToValue(raw interface{}) engine.Value {
	switch v := raw.(type) {
	case string:
		return engine.NewStr(v)
	case bool:
		if v {
			return engine.NewInt(1, engine.DomainDec)
		}
		return engine.NewInt(0, engine.DomainDec)
	case int64:
		return engine.NewInt(v, engine.DomainDec)
	case uint64:
		return engine.NewUint64(v, engine.DomainHex)
	case dwarf.Offset:
		return engine.NewUint64(uint64(v), engine.DomainHex)
	case []uint8:
		elems := make([]engine.Value, len(v))
		for i, b := range v {
			elems[i] = engine.NewInt(int64(b), engine.DomainHex)
		}
		return engine.NewSeq(elems)
	default:
		return engine.NewStr("")
	}
}

// locOpToValue renders one decoded location-expression operator as a
// string, e.g. "DW_OP_fbreg -8" or "DW_OP_call_frame_cfa".
func locOpToValue(op dwarfinfo.LocOp) engine.Value {
	if len(op.Operands) == 0 {
		return engine.NewStr(op.Name)
	}
	var sb strings.Builder
	sb.WriteString(op.Name)
	for _, n := range op.Operands {
		fmt.Fprintf(&sb, " %d", n)
	}
	return engine.NewStr(sb.String())
}

// locEntryToValue renders one loclist range as a 3-element sequence
// {low, high, expr}, where expr is itself a sequence of operator
// strings, per §6.2's "enumerate loclist elements and operators".
func locEntryToValue(e dwarfinfo.LocEntry) engine.Value {
	ops := make([]engine.Value, len(e.Expr))
	for i, op := range e.Expr {
		ops[i] = locOpToValue(op)
	}
	return engine.NewSeq([]engine.Value{
		engine.NewUint64(e.Low, engine.DomainHex),
		engine.NewUint64(e.High, engine.DomainHex),
		engine.NewSeq(ops),
	})
}

// loclistToValue renders a whole Loclist as a sequence of entries.
func loclistToValue(ll *dwarfinfo.Loclist) engine.Value {
	entries := make([]engine.Value, len(ll.Entries))
	for i, e := range ll.Entries {
		entries[i] = locEntryToValue(e)
	}
	return engine.NewSeq(entries)
}

// registerModeWords wires raw and cooked (DIE -> DIE, switching indirection
// resolution mode per the glossary's raw-vs-cooked entry).
func registerModeWords(vocab *engine.Vocabulary) {
	raw := vocab.DefineOp("raw")
	raw.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return engine.NewOpaque(mustDIE(args[0]).Raw()), nil
		},
	})

	cooked := vocab.DefineOp("cooked")
	cooked.Register(engine.OverloadEntry{
		Types: []engine.TypeCode{dwarfinfo.DIETypeCode()},
		Kind:  engine.Once,
		Once: func(args []engine.Value) (engine.Value, error) {
			return engine.NewOpaque(mustDIE(args[0]).Cooked()), nil
		},
	})
}
