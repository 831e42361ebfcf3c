// Package elftest builds small ELF64 images in memory for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Section is one section of an Image.
type Section struct {
	Name  string
	Type  elf.SectionType // defaults to SHT_PROGBITS
	Flags elf.SectionFlag
	Addr  uint64
	Data  []byte
}

// Symbol is a function symbol defined in the named section.
type Symbol struct {
	Name    string
	Section string
	Value   uint64
	Size    uint64
}

// Image describes an ELF64 file.
type Image struct {
	Order    binary.ByteOrder // defaults to little endian
	Machine  elf.Machine      // defaults to EM_X86_64
	Type     elf.Type         // defaults to ET_EXEC
	Sections []Section
	Symbols  []Symbol
	// Load adds one PT_LOAD segment per SHF_ALLOC section.
	Load bool
}

const (
	ehdrSize = 64
	phdrSize = 56
	shdrSize = 64
	symSize  = 24
)

type strtab struct {
	buf bytes.Buffer
}

func (s *strtab) add(name string) uint32 {
	if s.buf.Len() == 0 {
		s.buf.WriteByte(0)
	}
	if name == "" {
		return 0
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

func (s *strtab) bytes() []byte {
	if s.buf.Len() == 0 {
		s.buf.WriteByte(0)
	}
	return s.buf.Bytes()
}

type shdr struct {
	name    uint32
	typ     elf.SectionType
	flags   elf.SectionFlag
	addr    uint64
	off     uint64
	size    uint64
	link    uint32
	align   uint64
	entsize uint64
	data    []byte
}

// Bytes encodes the image.
func (img Image) Bytes() []byte {
	order := img.Order
	if order == nil {
		order = binary.LittleEndian
	}
	machine := img.Machine
	if machine == elf.EM_NONE {
		machine = elf.EM_X86_64
	}
	typ := img.Type
	if typ == elf.ET_NONE {
		typ = elf.ET_EXEC
	}

	var shstr strtab
	shstr.add("")
	headers := []shdr{{}}
	index := map[string]int{}
	for _, s := range img.Sections {
		t := s.Type
		if t == elf.SHT_NULL {
			t = elf.SHT_PROGBITS
		}
		index[s.Name] = len(headers)
		headers = append(headers, shdr{
			name: shstr.add(s.Name), typ: t, flags: s.Flags, addr: s.Addr,
			size: uint64(len(s.Data)), align: 8, data: s.Data,
		})
	}
	if len(img.Symbols) > 0 {
		var str strtab
		str.add("")
		syms := make([]byte, symSize) // null symbol
		for _, sym := range img.Symbols {
			e := make([]byte, symSize)
			order.PutUint32(e[0:], str.add(sym.Name))
			e[4] = byte(elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC))
			order.PutUint16(e[6:], uint16(index[sym.Section]))
			order.PutUint64(e[8:], sym.Value)
			order.PutUint64(e[16:], sym.Size)
			syms = append(syms, e...)
		}
		strIdx := len(headers) + 1
		headers = append(headers,
			shdr{name: shstr.add(".symtab"), typ: elf.SHT_SYMTAB, link: uint32(strIdx),
				align: 8, entsize: symSize, data: syms, size: uint64(len(syms))},
			shdr{name: shstr.add(".strtab"), typ: elf.SHT_STRTAB, align: 1,
				data: str.bytes(), size: uint64(len(str.bytes()))},
		)
	}
	shstrIdx := len(headers)
	shstrName := shstr.add(".shstrtab")
	shstrData := shstr.bytes()
	headers = append(headers, shdr{name: shstrName, typ: elf.SHT_STRTAB, align: 1,
		data: shstrData, size: uint64(len(shstrData))})

	var loads []int
	if img.Load {
		for i, h := range headers {
			if h.flags&elf.SHF_ALLOC != 0 {
				loads = append(loads, i)
			}
		}
	}

	// Lay out: ehdr, phdrs, section data, section headers.
	off := uint64(ehdrSize + phdrSize*len(loads))
	for i := range headers {
		if i == 0 {
			continue
		}
		off = align8(off)
		headers[i].off = off
		off += uint64(len(headers[i].data))
	}
	shoff := align8(off)

	out := make([]byte, shoff+uint64(shdrSize*len(headers)))
	copy(out, elf.ELFMAG)
	out[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	if order == binary.BigEndian {
		out[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	} else {
		out[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	}
	out[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	order.PutUint16(out[16:], uint16(typ))
	order.PutUint16(out[18:], uint16(machine))
	order.PutUint32(out[20:], uint32(elf.EV_CURRENT))
	if len(loads) > 0 {
		order.PutUint64(out[32:], ehdrSize)
	}
	order.PutUint64(out[40:], shoff)
	order.PutUint16(out[52:], ehdrSize)
	order.PutUint16(out[54:], phdrSize)
	order.PutUint16(out[56:], uint16(len(loads)))
	order.PutUint16(out[58:], shdrSize)
	order.PutUint16(out[60:], uint16(len(headers)))
	order.PutUint16(out[62:], uint16(shstrIdx))

	for i, hi := range loads {
		h := headers[hi]
		p := out[ehdrSize+phdrSize*i:]
		flags := elf.PF_R
		if h.flags&elf.SHF_EXECINSTR != 0 {
			flags |= elf.PF_X
		}
		order.PutUint32(p[0:], uint32(elf.PT_LOAD))
		order.PutUint32(p[4:], uint32(flags))
		order.PutUint64(p[8:], h.off)
		order.PutUint64(p[16:], h.addr)
		order.PutUint64(p[24:], h.addr)
		order.PutUint64(p[32:], h.size)
		order.PutUint64(p[40:], h.size)
		order.PutUint64(p[48:], 8)
	}

	for i, h := range headers {
		copy(out[h.off:], h.data)
		b := out[shoff+uint64(shdrSize*i):]
		order.PutUint32(b[0:], h.name)
		order.PutUint32(b[4:], uint32(h.typ))
		order.PutUint64(b[8:], uint64(h.flags))
		order.PutUint64(b[16:], h.addr)
		order.PutUint64(b[24:], h.off)
		order.PutUint64(b[32:], h.size)
		order.PutUint32(b[40:], h.link)
		order.PutUint64(b[48:], h.align)
		order.PutUint64(b[56:], h.entsize)
	}
	return out
}

// WriteFile writes the image into a temporary directory and returns its
// path.
func (img Image) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.elf")
	if err := os.WriteFile(path, img.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Open parses the image with debug/elf.
func (img Image) Open(t testing.TB) *elf.File {
	t.Helper()
	f, err := elf.NewFile(bytes.NewReader(img.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }
