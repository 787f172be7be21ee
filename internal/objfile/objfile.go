// Package objfile reads symbols and per-symbol code bytes out of an
// ELF or PE object, the minimum needed to feed cmd/maqcore-dump's x86
// decoder. Directly adapted from the teacher's obj/internal/obj
// (obj.go/elf.go/pe.go): same Obj/Sym contract and the same two
// debug/elf and debug/pe backends, unchanged in substance since
// reading a binary's symbol table isn't something this module's
// spec redefines — the analysis starts once bytes are decoded into
// asm.Instruction, which is the x86 package's job.
package objfile

import (
	"fmt"
	"io"
)

// Obj is a minimal object-file reader: its symbol table and the raw
// bytes backing each symbol.
type Obj interface {
	Symbols() ([]Sym, error)
	SymbolData(s Sym) ([]byte, error)
}

// Sym is one symbol-table entry.
type Sym struct {
	Name        string
	Value, Size uint64
	Kind        SymKind
	Local       bool
	section     int
}

type SymKind uint8

const (
	SymUnknown SymKind = '?'
	SymText            = 'T'
	SymData            = 'D'
	SymROData          = 'R'
	SymBSS             = 'B'
	SymUndef           = 'U'
)

// Open attempts to open r as a known object file format (ELF, then
// PE).
func Open(r io.ReaderAt) (Obj, error) {
	if f, err := openElf(r); err == nil {
		return f, nil
	}
	if f, err := openPE(r); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("objfile: unrecognized object file format")
}
