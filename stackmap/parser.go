package stackmap

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"stackmaps/internal/elfx"
	"stackmaps/internal/smfmt"
)

// Parser owns a stack map section and hands out iterators over it.
//
// The section bytes are never written. Iterators from one Parser are
// independent of each other and may be driven from different goroutines as
// long as the caller keeps the byte slice passed to New unmodified.
type Parser struct {
	data   []byte
	order  binary.ByteOrder
	header Header
}

// New validates the header of a raw stack map section. order is the byte
// order of the target that produced it.
func New(data []byte, order binary.ByteOrder) (*Parser, error) {
	h, err := readHeader(smfmt.NewStream(data, order))
	if err != nil {
		return nil, err
	}
	return &Parser{data: data, order: order, header: h}, nil
}

// Open reads the stack map section from the ELF file at path.
func Open(path string) (*Parser, error) {
	ef, err := elfx.Open(path)
	if err != nil {
		return nil, err
	}
	defer ef.Close()
	return fromFile(ef)
}

// FromELF reads the stack map section from an already opened ELF file.
func FromELF(f *elf.File) (*Parser, error) {
	return fromFile(elfx.Wrap(f))
}

func fromFile(ef *elfx.File) (*Parser, error) {
	data, err := ef.Section(SectionName)
	if err != nil {
		if errors.Is(err, elfx.ErrNoSection) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}
	p, err := New(data, ef.ByteOrder())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SectionName, err)
	}
	return p, nil
}

// Header returns the validated section header.
func (p *Parser) Header() Header { return p.header }

// NumFunctions returns the number of function records.
func (p *Parser) NumFunctions() uint32 { return p.header.NumFunctions }

// NumConstants returns the number of large constants.
func (p *Parser) NumConstants() uint32 { return p.header.NumConstants }

// NumRecords returns the number of stack map records.
func (p *Parser) NumRecords() uint32 { return p.header.NumRecords }

// Size returns the section size in bytes.
func (p *Parser) Size() int { return len(p.data) }

// ByteOrder returns the byte order the section is decoded with.
func (p *Parser) ByteOrder() binary.ByteOrder { return p.order }

// Functions returns a new iterator over the function records.
func (p *Parser) Functions() *FuncIter {
	return &FuncIter{c: newCursor(p.data, p.order, headerSize, p.header.NumFunctions)}
}

// Constants returns a new iterator over the large constant pool.
func (p *Parser) Constants() *ConstIter {
	start := headerSize + int64(p.header.NumFunctions)*functionEntrySize
	return &ConstIter{c: newCursor(p.data, p.order, start, p.header.NumConstants)}
}

// Records returns a new iterator over the stack map records.
func (p *Parser) Records() *RecordIter {
	return &RecordIter{c: newCursor(p.data, p.order, p.header.recordsOffset(), p.header.NumRecords)}
}
