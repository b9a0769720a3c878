// Package dwarfinfo is the debug-info collaborator described in the
// engine's external interfaces: it opens ELF files, enumerates
// compilation units and DIEs, and exposes attribute values, all without
// the engine package knowing anything about ELF or DWARF itself. The
// words package plugs File/CU/DIE/Attr into engine.Vocabulary as opaque
// values.
package dwarfinfo

import (
	"fmt"
	"io"

	"golang.org/x/debug/dwarf"
	"golang.org/x/debug/elf"

	"github.com/tombergan/dwarfquery/engine"
)

// File is an opened ELF file together with the DWARF data extracted from
// it. Opening is eager (it reads and decodes the abbreviation and
// .debug_info tables via golang.org/x/debug/dwarf); DIE tree traversal
// is lazy.
type File struct {
	Path        string
	PointerSize int
	elf         *elf.File
	dwarf       *dwarf.Data
	parents     parentIndex
}

// Open reads path as an ELF file and loads its DWARF debug info.
// Grounded on corefile/open_elf.go's readELF: elf.NewFile followed by
// f.DWARF(), with pointer size derived from the ELF class (4 bytes for
// ELFCLASS32, 8 for ELFCLASS64).
func Open(path string) (*File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dwarfinfo: opening %s: %w", path, err)
	}
	dw, err := ef.DWARF()
	if err != nil {
		ef.Close()
		return nil, fmt.Errorf("dwarfinfo: loading DWARF from %s: %w", path, err)
	}
	ptrSize, err := pointerSize(ef)
	if err != nil {
		ef.Close()
		return nil, err
	}
	return &File{Path: path, PointerSize: ptrSize, elf: ef, dwarf: dw}, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error { return f.elf.Close() }

// TypeCode, Clone, Show, and Cmp make *File an engine.Opaque so that a
// dwopen-style word can push an opened file as a value and entry can pull
// CUs out of it.
func (f *File) TypeCode() engine.TypeCode { return codeFile }
func (f *File) Clone() engine.Opaque      { return f }
func (f *File) Show(w io.Writer)          { io.WriteString(w, f.Path) }

func (f *File) Cmp(other engine.Opaque) engine.Ordering {
	o, ok := other.(*File)
	if !ok {
		return engine.Undefined
	}
	if o == f {
		return engine.Equal
	}
	return engine.Undefined
}

func pointerSize(ef *elf.File) (int, error) {
	switch ef.Class {
	case elf.ELFCLASS32:
		return 4, nil
	case elf.ELFCLASS64:
		return 8, nil
	default:
		return 0, fmt.Errorf("dwarfinfo: unsupported ELF class %v", ef.Class)
	}
}

// CUs enumerates the compilation units in f, in the order they appear in
// .debug_info. Grounded on the standard debug/dwarf Reader idiom used
// throughout corefile/pcinfo.go (Reader, Next, SkipChildren).
func (f *File) CUs() ([]*CU, error) {
	var cus []*CU
	r := f.dwarf.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("dwarfinfo: reading compilation units: %w", err)
		}
		if e == nil {
			break
		}
		if e.Tag == dwarf.TagCompileUnit {
			cus = append(cus, &CU{file: f, entry: e})
		}
		r.SkipChildren()
	}
	return cus, nil
}
