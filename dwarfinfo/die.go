package dwarfinfo

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/debug/dwarf"

	"github.com/tombergan/dwarfquery/engine"
)

// Domain type codes for the four opaque values this package plugs into
// engine.Value: files, compilation units, DIEs, and attributes. Registered once
// at package init, per engine.RegisterOpaqueType's contract.
var (
	codeFile = engine.RegisterOpaqueType("file")
	codeCU   = engine.RegisterOpaqueType("cu")
	codeDIE  = engine.RegisterOpaqueType("die")
	codeAttr = engine.RegisterOpaqueType("attr")
)

// FileTypeCode, CUTypeCode, DIETypeCode, and AttrTypeCode expose this
// package's opaque type codes so the words package can register overload
// entries keyed on them without dwarfinfo needing to know about engine's
// dispatch tables itself.
func FileTypeCode() engine.TypeCode { return codeFile }
func CUTypeCode() engine.TypeCode   { return codeCU }
func DIETypeCode() engine.TypeCode  { return codeDIE }
func AttrTypeCode() engine.TypeCode { return codeAttr }

// Mode selects whether attribute and child lookups on a DIE see the
// tree as literally stored (Raw) or with indirections resolved
// (Cooked): DW_AT_abstract_origin and DW_AT_specification references
// are followed to fill in attributes missing on the DIE itself. See the
// glossary's "raw vs cooked" entry.
type Mode int

const (
	Raw Mode = iota
	Cooked
)

// CU is a compilation unit: the root DIE of one top-level subtree of
// .debug_info, plus the file it came from.
type CU struct {
	file  *File
	entry *dwarf.Entry
}

func (c *CU) TypeCode() engine.TypeCode { return codeCU }
func (c *CU) Clone() engine.Opaque      { return c }
func (c *CU) Show(w io.Writer) {
	fmt.Fprintf(w, "<cu offset=0x%x>", c.entry.Offset)
}

func (c *CU) Cmp(other engine.Opaque) engine.Ordering {
	o, ok := other.(*CU)
	if !ok || o.file != c.file {
		return engine.Undefined
	}
	switch {
	case c.entry.Offset < o.entry.Offset:
		return engine.Less
	case c.entry.Offset > o.entry.Offset:
		return engine.Greater
	default:
		return engine.Equal
	}
}

// Root returns the CU's root DIE, in Raw mode.
func (c *CU) Root() *DIE {
	return &DIE{file: c.file, entry: c.entry, mode: Raw}
}

// File returns the file this CU belongs to.
func (c *CU) File() *File { return c.file }

// DIE is a single Debug Information Entry.
type DIE struct {
	file  *File
	entry *dwarf.Entry
	mode  Mode
}

func (d *DIE) TypeCode() engine.TypeCode { return codeDIE }
func (d *DIE) Clone() engine.Opaque      { c := *d; return &c }

func (d *DIE) Show(w io.Writer) {
	fmt.Fprintf(w, "<die %s offset=0x%x>", d.entry.Tag, d.entry.Offset)
}

func (d *DIE) Cmp(other engine.Opaque) engine.Ordering {
	o, ok := other.(*DIE)
	if !ok || o.file != d.file {
		return engine.Undefined
	}
	switch {
	case d.entry.Offset < o.entry.Offset:
		return engine.Less
	case d.entry.Offset > o.entry.Offset:
		return engine.Greater
	default:
		return engine.Equal
	}
}

// Offset returns the DIE's byte offset into .debug_info, used as its
// stable identity.
func (d *DIE) Offset() dwarf.Offset { return d.entry.Offset }

// Tag returns the DIE's tag, e.g. DW_TAG_subprogram.
func (d *DIE) Tag() dwarf.Tag { return d.entry.Tag }

// File returns the file this DIE belongs to.
func (d *DIE) File() *File { return d.file }

// Raw returns a copy of d with lookups set to Raw mode.
func (d *DIE) Raw() *DIE { c := *d; c.mode = Raw; return &c }

// Cooked returns a copy of d with lookups set to Cooked mode.
func (d *DIE) Cooked() *DIE { c := *d; c.mode = Cooked; return &c }

// Attrs enumerates the attributes literally present on d. In Cooked
// mode, attributes from a DW_AT_abstract_origin or DW_AT_specification
// referenced DIE are appended for any attribute class not already
// present, mirroring the glossary's description of cooked resolution.
func (d *DIE) Attrs() []*Attr {
	out := make([]*Attr, 0, len(d.entry.Field))
	seen := make(map[dwarf.Attr]bool, len(d.entry.Field))
	for i := range d.entry.Field {
		f := &d.entry.Field[i]
		out = append(out, &Attr{file: d.file, die: d, field: f})
		seen[f.Attr] = true
	}
	if d.mode == Cooked {
		if origin := d.indirection(); origin != nil {
			for _, a := range origin.Attrs() {
				if !seen[a.field.Attr] {
					out = append(out, a)
					seen[a.field.Attr] = true
				}
			}
		}
	}
	return out
}

// indirection returns the DIE referenced by this DIE's
// DW_AT_abstract_origin or DW_AT_specification attribute, or nil if
// neither is present or the reference cannot be resolved.
func (d *DIE) indirection() *DIE {
	for _, attr := range []dwarf.Attr{dwarf.AttrAbstractOrigin, dwarf.AttrSpecification} {
		if off, ok := d.rawVal(attr).(dwarf.Offset); ok {
			if target, err := d.file.dieAt(off); err == nil {
				target.mode = d.mode
				return target
			}
		}
	}
	return nil
}

func (d *DIE) rawVal(attr dwarf.Attr) interface{} {
	for i := range d.entry.Field {
		if d.entry.Field[i].Attr == attr {
			return d.entry.Field[i].Val
		}
	}
	return nil
}

// Val looks up attr on d, following the Cooked-mode indirection chain
// when the attribute is absent locally.
func (d *DIE) Val(attr dwarf.Attr) (interface{}, bool) {
	if v := d.rawVal(attr); v != nil {
		return v, true
	}
	if d.mode == Cooked {
		if origin := d.indirection(); origin != nil {
			return origin.Val(attr)
		}
	}
	return nil, false
}

// Name returns the DIE's DW_AT_name attribute, or "" if it has none.
func (d *DIE) Name() string {
	name, _ := d.Val(dwarf.AttrName).(string)
	return name
}

// Children returns d's immediate children. Grounded on the
// Reader.Seek/Next/SkipChildren idiom in corefile/pcinfo.go.
func (d *DIE) Children() ([]*DIE, error) {
	if !d.entry.Children {
		return nil, nil
	}
	r := d.file.dwarf.Reader()
	r.Seek(d.entry.Offset)
	if _, err := r.Next(); err != nil {
		return nil, fmt.Errorf("dwarfinfo: re-reading DIE at 0x%x: %w", d.entry.Offset, err)
	}
	var kids []*DIE
	for {
		e, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("dwarfinfo: reading children of DIE at 0x%x: %w", d.entry.Offset, err)
		}
		if e == nil || e.Tag == 0 {
			break
		}
		kids = append(kids, &DIE{file: d.file, entry: e, mode: d.mode})
		r.SkipChildren()
	}
	return kids, nil
}

// Parent returns d's parent DIE, or nil if d is a CU root. Parent
// offsets are computed by one full walk of the tree, cached on File
// (§6.2's "compute a DIE's parent offset (cached)").
func (d *DIE) Parent() (*DIE, error) {
	off, ok, err := d.file.parentOf(d.entry.Offset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return d.file.dieAt(off)
}

// Attr is a single named, typed attribute on a DIE.
type Attr struct {
	file  *File
	die   *DIE
	field *dwarf.Field
}

func (a *Attr) TypeCode() engine.TypeCode { return codeAttr }
func (a *Attr) Clone() engine.Opaque      { return a }

func (a *Attr) Show(w io.Writer) {
	fmt.Fprintf(w, "%s=%v", a.field.Attr, a.field.Val)
}

func (a *Attr) Cmp(other engine.Opaque) engine.Ordering {
	o, ok := other.(*Attr)
	if !ok || o.die.file != a.die.file {
		return engine.Undefined
	}
	if a.die.entry.Offset == o.die.entry.Offset && a.field.Attr == o.field.Attr {
		return engine.Equal
	}
	return engine.Undefined
}

// Name returns the attribute's name, e.g. DW_AT_name.
func (a *Attr) Name() string { return a.field.Attr.String() }

// Val returns the attribute's raw decoded value, whose concrete Go type
// depends on the attribute's DWARF form/class (int64, string,
// dwarf.Offset, []byte, bool, ...).
func (a *Attr) Val() interface{} { return a.field.Val }

// DIE returns the attribute's owning DIE.
func (a *Attr) DIE() *DIE { return a.die }

// dieAt resolves an offset to a DIE.
func (f *File) dieAt(off dwarf.Offset) (*DIE, error) {
	r := f.dwarf.Reader()
	r.Seek(off)
	e, err := r.Next()
	if err != nil {
		return nil, fmt.Errorf("dwarfinfo: resolving offset 0x%x: %w", off, err)
	}
	if e == nil {
		return nil, fmt.Errorf("dwarfinfo: no DIE at offset 0x%x", off)
	}
	return &DIE{file: f, entry: e}, nil
}

// parentIndex maps a DIE's offset to its parent's offset, built once by
// walking the whole tree.
type parentIndex struct {
	once    sync.Once
	err     error
	parents map[dwarf.Offset]dwarf.Offset
}

func (f *File) parentOf(off dwarf.Offset) (dwarf.Offset, bool, error) {
	f.parents.once.Do(func() { f.buildParentIndex() })
	if f.parents.err != nil {
		return 0, false, f.parents.err
	}
	p, ok := f.parents.parents[off]
	return p, ok, nil
}

func (f *File) buildParentIndex() {
	f.parents.parents = make(map[dwarf.Offset]dwarf.Offset)
	r := f.dwarf.Reader()
	var stack []dwarf.Offset
	for {
		e, err := r.Next()
		if err != nil {
			f.parents.err = fmt.Errorf("dwarfinfo: building parent index: %w", err)
			return
		}
		if e == nil {
			return
		}
		if e.Tag == 0 {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		if len(stack) > 0 {
			f.parents.parents[e.Offset] = stack[len(stack)-1]
		}
		if e.Children {
			stack = append(stack, e.Offset)
		}
	}
}
