// Package fileimage is the §6 "file image (consumed)" collaborator: a
// byte-addressable view of the object file an instruction stream was
// disassembled from, used by the indirect-branch solver to read jump
// table entries out of read-only data sections. Adapted from the
// teacher's obj/internal/obj, which opens the same two container
// formats for the same reason (locating a symbol's backing bytes);
// here the lookup key is an absolute address instead of a symbol.
package fileimage

import (
	"debug/elf"
	"debug/pe"
	"fmt"
	"io"
)

// Reader is the byte-addressable view an indirect-branch solver reads
// jump tables through: ReadBytes returns the n bytes stored at the
// file's load address addr, or an error if addr..addr+n falls outside
// every loaded section.
type Reader interface {
	ReadBytes(addr uint64, n int) ([]byte, error)
}

// Open attempts to open r as a known object file format, trying ELF
// then PE, mirroring obj.Open's two-format probe.
func Open(r io.ReaderAt) (Reader, error) {
	if f, err := openElf(r); err == nil {
		return f, nil
	}
	if f, err := openPE(r); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("fileimage: unrecognized object file format")
}

type section struct {
	addr uint64
	size uint64
	read func(off int64, p []byte) (int, error)
}

func (s section) contains(addr uint64, n int) bool {
	if addr < s.addr {
		return false
	}
	end := addr - s.addr + uint64(n)
	return end <= s.size
}

type sectionedReader struct {
	sections []section
}

func (r *sectionedReader) ReadBytes(addr uint64, n int) ([]byte, error) {
	for _, s := range r.sections {
		if s.contains(addr, n) {
			buf := make([]byte, n)
			off := int64(addr - s.addr)
			if _, err := s.read(off, buf); err != nil && err != io.EOF {
				return nil, err
			}
			return buf, nil
		}
	}
	return nil, fmt.Errorf("fileimage: no loaded section contains [%#x, %#x)", addr, addr+uint64(n))
}

func openElf(r io.ReaderAt) (Reader, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	sr := &sectionedReader{}
	for _, sect := range f.Sections {
		if sect.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		sect := sect
		sr.sections = append(sr.sections, section{
			addr: sect.Addr,
			size: sect.Size,
			read: func(off int64, p []byte) (int, error) { return sect.ReadAt(p, off) },
		})
	}
	return sr, nil
}

func openPE(r io.ReaderAt) (Reader, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}
	var imageBase uint64
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
	}
	sr := &sectionedReader{}
	for _, sect := range f.Sections {
		sect := sect
		sr.sections = append(sr.sections, section{
			addr: imageBase + uint64(sect.VirtualAddress),
			size: uint64(sect.VirtualSize),
			read: func(off int64, p []byte) (int, error) { return sect.ReadAt(p, off) },
		})
	}
	return sr, nil
}
