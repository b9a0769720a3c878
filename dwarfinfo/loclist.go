package dwarfinfo

import (
	"encoding/binary"
	"fmt"
)

// LocOp is one operator in a decoded DWARF location expression, e.g.
// "DW_OP_fbreg -8" or "DW_OP_call_frame_cfa" with no operands.
type LocOp struct {
	Name     string
	Operands []int64
}

// LocEntry is one range covered by a location list: Expr applies to
// program-counter values in [Low, High). A DW_AT_location attribute
// whose value is a single expression (not an offset into .debug_loc)
// produces one LocEntry with Low == High == 0, meaning "valid for the
// DIE's whole scope" rather than a specific address range.
type LocEntry struct {
	Low, High uint64
	Expr      []LocOp
}

// Loclist is the decoded form of a location-class attribute: one or
// more (address range, expression) pairs. Grounded on spec.md §6.2's
// "enumerate loclist elements and operators" collaborator capability
// and the GLOSSARY's "Loclist" entry.
type Loclist struct {
	Entries []LocEntry
}

// Loclist decodes a's raw value into a Loclist. Attributes whose form
// decodes to a plain byte block (DW_FORM_block*, DW_FORM_exprloc) hold
// a single location expression valid across the DIE's whole scope;
// attributes whose form decodes to a section offset (DW_FORM_sec_offset
// pre-DWARF5, or a bare constant in DWARF2/3) are resolved through the
// file's .debug_loc section into one entry per covered address range.
func (a *Attr) Loclist() (*Loclist, error) {
	switch v := a.field.Val.(type) {
	case []byte:
		ops, err := decodeLocExpr(v, a.die.file.PointerSize)
		if err != nil {
			return nil, fmt.Errorf("dwarfinfo: decoding %s location expression: %w", a.Name(), err)
		}
		return &Loclist{Entries: []LocEntry{{Expr: ops}}}, nil
	case int64:
		return a.die.file.readDebugLoc(uint64(v))
	case uint64:
		return a.die.file.readDebugLoc(v)
	default:
		return nil, fmt.Errorf("dwarfinfo: %s is not a location-class attribute (raw type %T)", a.Name(), a.field.Val)
	}
}

// readDebugLoc decodes the range-list entries starting at offset in
// .debug_loc, DWARF2-4 format: pairs of address-sized values, each
// followed by a uint16 expression length and the expression bytes,
// terminated by a (0, 0) pair. A pair whose low half is all-ones sets a
// new base address (DW_LLE_base_addressx-equivalent) for later entries.
func (f *File) readDebugLoc(offset uint64) (*Loclist, error) {
	sec := f.elf.Section(".debug_loc")
	if sec == nil {
		return nil, fmt.Errorf("dwarfinfo: file has no .debug_loc section")
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("dwarfinfo: reading .debug_loc: %w", err)
	}
	if offset > uint64(len(data)) {
		return nil, fmt.Errorf("dwarfinfo: loclist offset 0x%x beyond .debug_loc (len %d)", offset, len(data))
	}

	addrSize := f.PointerSize
	maxAddr := uint64(1)<<(uint(addrSize)*8) - 1
	buf := data[offset:]
	var base uint64
	var entries []LocEntry
	for {
		low, high, n, err := readAddrPair(buf, addrSize, f.elf.ByteOrder)
		if err != nil {
			return nil, fmt.Errorf("dwarfinfo: malformed .debug_loc at offset 0x%x: %w", offset, err)
		}
		buf = buf[n:]
		if low == 0 && high == 0 {
			break
		}
		if low == maxAddr {
			base = high
			continue
		}
		if len(buf) < 2 {
			return nil, fmt.Errorf("dwarfinfo: truncated .debug_loc at offset 0x%x", offset)
		}
		exprLen := f.elf.ByteOrder.Uint16(buf)
		buf = buf[2:]
		if len(buf) < int(exprLen) {
			return nil, fmt.Errorf("dwarfinfo: truncated location expression at offset 0x%x", offset)
		}
		ops, err := decodeLocExpr(buf[:exprLen], addrSize)
		if err != nil {
			return nil, fmt.Errorf("dwarfinfo: decoding loclist expression at offset 0x%x: %w", offset, err)
		}
		buf = buf[exprLen:]
		entries = append(entries, LocEntry{Low: base + low, High: base + high, Expr: ops})
	}
	return &Loclist{Entries: entries}, nil
}

func readAddrPair(buf []byte, addrSize int, order binary.ByteOrder) (low, high uint64, n int, err error) {
	if len(buf) < 2*addrSize {
		return 0, 0, 0, fmt.Errorf("truncated address pair")
	}
	switch addrSize {
	case 4:
		return uint64(order.Uint32(buf[0:4])), uint64(order.Uint32(buf[4:8])), 8, nil
	case 8:
		return order.Uint64(buf[0:8]), order.Uint64(buf[8:16]), 16, nil
	default:
		return 0, 0, 0, fmt.Errorf("unsupported address size %d", addrSize)
	}
}

// decodeLocExpr decodes the DWARF stack-machine bytecode in data into a
// sequence of LocOps. Covers the operators that appear in practice
// (register/frame-relative locations, constants, arithmetic, and
// DWARF3+'s call_frame_cfa/stack_value); unrecognized opcodes decode to
// a placeholder named by their raw byte so a query can still see that
// something was there.
func decodeLocExpr(data []byte, addrSize int) ([]LocOp, error) {
	d := &locDecoder{data: data}
	var ops []LocOp
	for d.i < len(d.data) {
		code := d.data[d.i]
		d.i++
		switch {
		case code == 0x03: // DW_OP_addr
			v, err := d.readUint(addrSize)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_addr", []int64{int64(v)}})
		case code == 0x06: // DW_OP_deref
			ops = append(ops, LocOp{"DW_OP_deref", nil})
		case code == 0x08: // DW_OP_const1u
			v, err := d.readUint(1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const1u", []int64{int64(v)}})
		case code == 0x09: // DW_OP_const1s
			v, err := d.readUint(1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const1s", []int64{int64(int8(v))}})
		case code == 0x0a: // DW_OP_const2u
			v, err := d.readUint(2)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const2u", []int64{int64(v)}})
		case code == 0x0b: // DW_OP_const2s
			v, err := d.readUint(2)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const2s", []int64{int64(int16(v))}})
		case code == 0x0c: // DW_OP_const4u
			v, err := d.readUint(4)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const4u", []int64{int64(v)}})
		case code == 0x0d: // DW_OP_const4s
			v, err := d.readUint(4)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const4s", []int64{int64(int32(v))}})
		case code == 0x0e: // DW_OP_const8u
			v, err := d.readUint(8)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const8u", []int64{int64(v)}})
		case code == 0x0f: // DW_OP_const8s
			v, err := d.readUint(8)
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_const8s", []int64{int64(v)}})
		case code == 0x10: // DW_OP_constu
			v, err := d.readULEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_constu", []int64{int64(v)}})
		case code == 0x11: // DW_OP_consts
			v, err := d.readSLEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_consts", []int64{v}})
		case code == 0x12: // DW_OP_dup
			ops = append(ops, LocOp{"DW_OP_dup", nil})
		case code == 0x13: // DW_OP_drop
			ops = append(ops, LocOp{"DW_OP_drop", nil})
		case code == 0x16: // DW_OP_swap
			ops = append(ops, LocOp{"DW_OP_swap", nil})
		case code == 0x1c: // DW_OP_minus
			ops = append(ops, LocOp{"DW_OP_minus", nil})
		case code == 0x22: // DW_OP_plus
			ops = append(ops, LocOp{"DW_OP_plus", nil})
		case code == 0x23: // DW_OP_plus_uconst
			v, err := d.readULEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_plus_uconst", []int64{int64(v)}})
		case code == 0x1a: // DW_OP_and
			ops = append(ops, LocOp{"DW_OP_and", nil})
		case code == 0x21: // DW_OP_or
			ops = append(ops, LocOp{"DW_OP_or", nil})
		case code == 0x24: // DW_OP_shl
			ops = append(ops, LocOp{"DW_OP_shl", nil})
		case code == 0x25: // DW_OP_shr
			ops = append(ops, LocOp{"DW_OP_shr", nil})
		case code >= 0x30 && code <= 0x4f: // DW_OP_lit0..31
			ops = append(ops, LocOp{fmt.Sprintf("DW_OP_lit%d", code-0x30), nil})
		case code >= 0x50 && code <= 0x6f: // DW_OP_reg0..31
			ops = append(ops, LocOp{fmt.Sprintf("DW_OP_reg%d", code-0x50), nil})
		case code >= 0x70 && code <= 0x8f: // DW_OP_breg0..31
			v, err := d.readSLEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{fmt.Sprintf("DW_OP_breg%d", code-0x70), []int64{v}})
		case code == 0x90: // DW_OP_regx
			v, err := d.readULEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_regx", []int64{int64(v)}})
		case code == 0x91: // DW_OP_fbreg
			v, err := d.readSLEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_fbreg", []int64{v}})
		case code == 0x92: // DW_OP_bregx
			reg, err := d.readULEB()
			if err != nil {
				return nil, err
			}
			off, err := d.readSLEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_bregx", []int64{int64(reg), off}})
		case code == 0x93: // DW_OP_piece
			v, err := d.readULEB()
			if err != nil {
				return nil, err
			}
			ops = append(ops, LocOp{"DW_OP_piece", []int64{int64(v)}})
		case code == 0x9c: // DW_OP_call_frame_cfa
			ops = append(ops, LocOp{"DW_OP_call_frame_cfa", nil})
		case code == 0x9f: // DW_OP_stack_value
			ops = append(ops, LocOp{"DW_OP_stack_value", nil})
		default:
			ops = append(ops, LocOp{fmt.Sprintf("DW_OP_unknown_0x%02x", code), nil})
		}
	}
	return ops, nil
}

// locDecoder is a cursor over a location expression's raw bytes.
type locDecoder struct {
	data []byte
	i    int
}

func (d *locDecoder) readUint(n int) (uint64, error) {
	if d.i+n > len(d.data) {
		return 0, fmt.Errorf("truncated operand at byte %d", d.i)
	}
	var v uint64
	for k := 0; k < n; k++ {
		v |= uint64(d.data[d.i+k]) << (8 * uint(k))
	}
	d.i += n
	return v, nil
}

func (d *locDecoder) readULEB() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if d.i >= len(d.data) {
			return 0, fmt.Errorf("truncated ULEB128 at byte %d", d.i)
		}
		b := d.data[d.i]
		d.i++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

func (d *locDecoder) readSLEB() (int64, error) {
	var result int64
	var shift uint
	var b byte
	for {
		if d.i >= len(d.data) {
			return 0, fmt.Errorf("truncated SLEB128 at byte %d", d.i)
		}
		b = d.data[d.i]
		d.i++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}
