package objfile

import (
	"debug/pe"
	"fmt"
	"io"
	"sort"
)

type peFile struct {
	pe        *pe.File
	imageBase uint64
}

func openPE(r io.ReaderAt) (Obj, error) {
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
	default:
		return nil, fmt.Errorf("objfile: PE header has unexpected type")
	}

	return &peFile{f, imageBase}, nil
}

func (f *peFile) Symbols() ([]Sym, error) {
	const (
		imageSymUndefined = 0
		imageSymAbsolute  = -1
		imageSymDebug     = -2

		imageSymClassStatic = 3

		imageSCNCntCode             = 0x20
		imageSCNCntInitializedData  = 0x40
		imageSCNCntUninitialized    = 0x80
		imageSCNMemWrite            = 0x80000000
	)

	var out []Sym
	for _, s := range f.pe.Symbols {
		sym := Sym{s.Name, uint64(s.Value), 0, SymUnknown, false, int(s.SectionNumber)}
		switch s.SectionNumber {
		case imageSymUndefined:
			sym.Kind = SymUndef
		case imageSymAbsolute, imageSymDebug:
		default:
			if int(s.SectionNumber)-1 < 0 || int(s.SectionNumber)-1 >= len(f.pe.Sections) {
				continue
			}
			sect := f.pe.Sections[int(s.SectionNumber)-1]
			c := sect.Characteristics
			switch {
			case c&imageSCNCntCode != 0:
				sym.Kind = SymText
			case c&imageSCNCntInitializedData != 0:
				if c&imageSCNMemWrite != 0 {
					sym.Kind = SymData
				} else {
					sym.Kind = SymROData
				}
			case c&imageSCNCntUninitialized != 0:
				sym.Kind = SymBSS
			}
			sym.Local = s.StorageClass == imageSymClassStatic
			sym.Value += f.imageBase + uint64(sect.VirtualAddress)
		}

		out = append(out, sym)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	for i := range out {
		sym1 := &out[i]
		if i+1 < len(out) {
			sym2 := out[i+1]
			if sym1.section == sym2.section {
				sym1.Size = sym2.Value - sym1.Value
				continue
			}
		}
		sect := f.pe.Sections[sym1.section-1]
		sym1.Size = uint64(sect.VirtualAddress) + uint64(sect.VirtualSize) - sym1.Value
	}

	return out, nil
}

func (f *peFile) SymbolData(s Sym) ([]byte, error) {
	if s.section <= 0 || s.section-1 >= len(f.pe.Sections) {
		return nil, nil
	}
	sect := f.pe.Sections[s.section-1]
	if s.Value < uint64(sect.VirtualAddress) {
		return nil, fmt.Errorf("symbol %q starts before section %q", s.Name, sect.Name)
	}
	out := make([]byte, s.Size)
	pos := s.Value - (f.imageBase + uint64(sect.VirtualAddress))
	if pos >= uint64(sect.Size) {
		return out, nil
	}
	flen := s.Size
	if flen > uint64(sect.Size)-pos {
		flen = uint64(sect.Size) - pos
	}
	_, err := sect.ReadAt(out[:flen], int64(pos))
	return out, err
}
