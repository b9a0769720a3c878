package words

import (
	"testing"

	"golang.org/x/debug/dwarf"

	"github.com/tombergan/dwarfquery/engine"
)

// These tests cover the parts of dwarf.go that don't require a real
// *dwarfinfo.DIE/CU/Attr/File: the tag/attr name tables, the @AT_*
// constant renderer, and the raw-to-Value conversion. The tree- and
// attribute-walking words (entry, root, child, parent, attribute, value,
// offset, name, raw, cooked, ?TAG_*) all go through mustDIE/mustCU/
// mustAttr/mustFile, which type-assert to concrete *dwarfinfo types with
// entirely unexported fields; dwarfinfo.Open is the only way to build one
// of those and it requires a real ELF binary on disk, so those paths are
// left to dwarfinfo's own package tests and are not exercised here. See
// DESIGN.md for the corresponding entry.

func TestAttrValueToValueString(t *testing.T) {
	v := attrValueToValue("hello")
	s, ok := v.AsStr()
	if !ok || s != "hello" {
		t.Errorf("attrValueToValue(string) = %v, want Str(\"hello\")", v)
	}
}

func TestAttrValueToValueBool(t *testing.T) {
	tv := attrValueToValue(true)
	n, _, _ := tv.AsCst()
	if n.Int64() != 1 {
		t.Errorf("attrValueToValue(true) = %v, want 1", tv)
	}
	fv := attrValueToValue(false)
	n2, _, _ := fv.AsCst()
	if n2.Int64() != 0 {
		t.Errorf("attrValueToValue(false) = %v, want 0", fv)
	}
}

func TestAttrValueToValueInt64(t *testing.T) {
	v := attrValueToValue(int64(-7))
	n, domain, _ := v.AsCst()
	if n.Int64() != -7 || domain != engine.DomainDec {
		t.Errorf("attrValueToValue(int64) = %v, want -7 in DomainDec", v)
	}
}

func TestAttrValueToValueUint64(t *testing.T) {
	v := attrValueToValue(uint64(0xff))
	if v.String() != "0xff" {
		t.Errorf("attrValueToValue(uint64) = %v, want 0xff", v.String())
	}
}

func TestAttrValueToValueOffset(t *testing.T) {
	v := attrValueToValue(dwarf.Offset(0x10))
	if v.String() != "0x10" {
		t.Errorf("attrValueToValue(dwarf.Offset) = %v, want 0x10", v.String())
	}
}

func TestAttrValueToValueByteBlock(t *testing.T) {
	v := attrValueToValue([]uint8{0x01, 0xff})
	elems, ok := v.AsSeq()
	if !ok || len(elems) != 2 {
		t.Fatalf("attrValueToValue([]uint8) = %v, want a 2-element seq", v)
	}
	if elems[0].String() != "0x1" || elems[1].String() != "0xff" {
		t.Errorf("byte block elems = [%v %v], want [0x1 0xff]", elems[0], elems[1])
	}
}

func TestAttrValueToValueUnknownFallsBackToEmptyStr(t *testing.T) {
	v := attrValueToValue(3.14)
	s, ok := v.AsStr()
	if !ok || s != "" {
		t.Errorf("attrValueToValue(unrecognized type) = %v, want empty Str", v)
	}
}

func TestDomainAttrRendersKnownAttributesByName(t *testing.T) {
	v := engine.NewInt(int64(dwarf.AttrName), DomainAttr)
	if v.String() != "name" {
		t.Errorf("@AT_name rendered as %q, want %q", v.String(), "name")
	}
}

func TestDomainAttrFallsBackToRawCodeForUnknownAttribute(t *testing.T) {
	// Pick an attribute code not present in attrTable.
	v := engine.NewInt(int64(dwarf.AttrOrdering), DomainAttr)
	if v.String() != dwarf.AttrOrdering.String() {
		t.Errorf("unrecognized attribute rendered as %q, want %q", v.String(), dwarf.AttrOrdering.String())
	}
}

func TestDwarfRegistersAtConstantsForEveryAttrTableRow(t *testing.T) {
	vocab := engine.NewVocabulary(nil)
	Dwarf(vocab)
	for _, row := range attrTable {
		v, ok := vocab.LookupConst("@AT_" + row.name)
		if !ok {
			t.Errorf("@AT_%s not registered", row.name)
			continue
		}
		n, _, _ := v.AsCst()
		if n.Int64() != int64(row.attr) {
			t.Errorf("@AT_%s = %v, want %d", row.name, v, row.attr)
		}
	}
}

func TestTagTableNamesAreUniqueAndNonEmpty(t *testing.T) {
	seen := make(map[string]bool)
	for _, row := range tagTable {
		if row.name == "" {
			t.Errorf("tagTable has an entry with an empty name")
		}
		if seen[row.name] {
			t.Errorf("tagTable has a duplicate name %q", row.name)
		}
		seen[row.name] = true
	}
}

func TestAttrTableNamesAreUniqueAndNonEmpty(t *testing.T) {
	seen := make(map[string]bool)
	for _, row := range attrTable {
		if row.name == "" {
			t.Errorf("attrTable has an entry with an empty name")
		}
		if seen[row.name] {
			t.Errorf("attrTable has a duplicate name %q", row.name)
		}
		seen[row.name] = true
	}
}
