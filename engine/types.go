// Package engine implements the query execution machinery: the value
// model, the operand stack and lexical frames, the lazy operator/predicate
// graphs, overload dispatch, and the coverage and string-format
// sub-engines. It knows nothing about DWARF, ELF, or any concrete source
// language; those plug in through the Vocabulary described in facade.go.
package engine

import (
	"fmt"
	"sync"
)

// TypeCode identifies a value variant for comparison, rendering, and
// overload dispatch. The set of registered codes is closed once program
// startup finishes: the five core variants register themselves in this
// package's var initializers, and domain packages (see dwarfinfo/)
// register additional codes for opaque values before any query is
// compiled.
type TypeCode uint8

// codeEmpty is a reserved sentinel used to zero-pad a Selector when the
// stack is shallower than SelectorWidth. It is never assigned to a real
// variant; the registry refuses to hand it out.
const codeEmpty TypeCode = 0xFF

var (
	typeRegistryMu sync.Mutex
	typeNames      []string
)

func registerType(name string) TypeCode {
	typeRegistryMu.Lock()
	defer typeRegistryMu.Unlock()
	if len(typeNames) == int(codeEmpty) {
		panic("engine: too many registered types, TypeCode has only 8 bits")
	}
	code := TypeCode(len(typeNames))
	typeNames = append(typeNames, name)
	return code
}

// RegisterOpaqueType assigns a fresh TypeCode to a domain-defined value
// variant. Call this once per Go type, typically from a package-level var
// initializer in a domain package such as dwarfinfo/.
func RegisterOpaqueType(name string) TypeCode {
	return registerType(name)
}

func (c TypeCode) String() string {
	typeRegistryMu.Lock()
	defer typeRegistryMu.Unlock()
	if int(c) < len(typeNames) {
		return typeNames[c]
	}
	return fmt.Sprintf("type(%d)", c)
}

// Core type codes. Domain type codes are always >= codeFirstDomain.
var (
	CodeCst     = registerType("cst")
	CodeStr     = registerType("str")
	CodeSeq     = registerType("seq")
	CodeClosure = registerType("closure")
	CodeAddrSet = registerType("addrset")
)

var codeFirstDomain = CodeAddrSet + 1

// Ordering is the result of comparing two values of the same variant.
type Ordering int

const (
	Less Ordering = iota
	Equal
	Greater
	// Undefined is returned when comparison is meaningless, e.g. comparing
	// two opaque debug-info handles that come from different files.
	Undefined
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "undefined"
	}
}
