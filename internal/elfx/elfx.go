// Package elfx provides the ELF lookups needed to read stack maps: named
// sections, function symbols, and code bytes at a virtual address.
package elfx

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	ErrNotELF    = errors.New("elfx: not an ELF file")
	ErrNoSection = errors.New("elfx: section not found")
	ErrNoSegment = errors.New("elfx: no segment or code section covers address")
)

// File wraps a debug/elf.File.
type File struct {
	ELF    *elf.File
	closer io.Closer
	size   int64

	funcs []Symbol // sorted by address, built on first use
}

// Symbol is a function symbol.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

// Open opens an ELF file of any class, machine or type.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	return &File{ELF: ef, closer: f, size: info.Size()}, nil
}

// Wrap adapts an already opened elf.File. Close on the result does not
// close f.
func Wrap(f *elf.File) *File {
	return &File{ELF: f}
}

// Close releases resources.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// FileSize returns the size of the underlying file, or 0 when wrapped.
func (f *File) FileSize() int64 { return f.size }

// ByteOrder returns the ELF byte order.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.ELF.ByteOrder
}

// Machine returns the ELF machine.
func (f *File) Machine() elf.Machine { return f.ELF.Machine }

// Section returns the contents of the named section.
func (f *File) Section(name string) ([]byte, error) {
	sec := f.ELF.Section(name)
	if sec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSection, name)
	}
	if sec.Type == elf.SHT_NOBITS {
		return nil, fmt.Errorf("elfx: section %s has no file data", name)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("elfx: read section %s: %w", name, err)
	}
	return data, nil
}

// SymbolAt returns the function symbol containing addr. Static symbols are
// preferred; dynamic symbols are used when the file is stripped. A
// zero-sized symbol only contains its own address.
func (f *File) SymbolAt(addr uint64) (Symbol, bool) {
	if f.funcs == nil {
		f.funcs = f.loadFuncSyms()
	}
	i := sort.Search(len(f.funcs), func(i int) bool { return f.funcs[i].Addr > addr }) - 1
	if i < 0 {
		return Symbol{}, false
	}
	s := f.funcs[i]
	if addr == s.Addr || addr < s.Addr+s.Size {
		return s, true
	}
	return Symbol{}, false
}

func (f *File) loadFuncSyms() []Symbol {
	syms, err := f.ELF.Symbols()
	if err != nil || len(syms) == 0 {
		syms, _ = f.ELF.DynamicSymbols()
	}
	out := []Symbol{}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Name == "" {
			continue
		}
		out = append(out, Symbol{Name: s.Name, Addr: s.Value, Size: s.Size})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// ReadBytesAtVA reads up to n bytes starting at the given virtual address.
// PT_LOAD segments are consulted first; files without program headers
// (relocatable objects) fall back to executable sections.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD || va < p.Vaddr || va >= p.Vaddr+p.Filesz {
			continue
		}
		return readClamped(p, va-p.Vaddr, p.Filesz, n)
	}
	for _, s := range f.ELF.Sections {
		if s.Flags&elf.SHF_EXECINSTR == 0 || s.Type == elf.SHT_NOBITS {
			continue
		}
		if va >= s.Addr && va < s.Addr+s.Size {
			return readClamped(s, va-s.Addr, s.Size, n)
		}
	}
	return nil, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

func readClamped(r io.ReaderAt, off, size uint64, n int) ([]byte, error) {
	if avail := size - off; uint64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf[:got], nil
}
