package stackmap

import (
	"encoding/binary"
)

// Test encoders for the wire format. Field names mirror the layout in the
// package documentation.

type wireLoc struct {
	kind       uint8
	reserved8  uint8
	size       uint16
	reg        uint16
	reserved16 uint16
	offset     uint32
}

type wireRecord struct {
	id       uint64
	offset   uint32
	flags    uint16
	locs     []wireLoc
	liveOuts int
}

type wireFunc struct {
	addr    uint64
	stack   uint64
	records uint64
}

type wireSection struct {
	order      binary.ByteOrder
	version    uint8
	reserved8  uint8
	reserved16 uint16
	funcs      []wireFunc
	consts     []uint64
	recs       []wireRecord
	// numRecords overrides len(recs) in the header when non-zero.
	numRecords uint32
}

type encoder struct {
	order binary.ByteOrder
	buf   []byte
}

func (e *encoder) u8(v uint8) { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16) {
	var b [2]byte
	e.order.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}
func (e *encoder) u32(v uint32) {
	var b [4]byte
	e.order.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}
func (e *encoder) u64(v uint64) {
	var b [8]byte
	e.order.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}
func (e *encoder) align8() {
	for len(e.buf)%8 != 0 {
		e.buf = append(e.buf, 0)
	}
}

func (s wireSection) bytes() []byte {
	order := s.order
	if order == nil {
		order = binary.LittleEndian
	}
	version := s.version
	if version == 0 {
		version = Version
	}
	numRecords := s.numRecords
	if numRecords == 0 {
		numRecords = uint32(len(s.recs))
	}

	e := &encoder{order: order}
	e.u8(version)
	e.u8(s.reserved8)
	e.u16(s.reserved16)
	e.u32(uint32(len(s.funcs)))
	e.u32(uint32(len(s.consts)))
	e.u32(numRecords)
	for _, f := range s.funcs {
		e.u64(f.addr)
		e.u64(f.stack)
		e.u64(f.records)
	}
	for _, c := range s.consts {
		e.u64(c)
	}
	for _, r := range s.recs {
		e.u64(r.id)
		e.u32(r.offset)
		e.u16(r.flags)
		e.u16(uint16(len(r.locs)))
		for _, l := range r.locs {
			e.u8(l.kind)
			e.u8(l.reserved8)
			e.u16(l.size)
			e.u16(l.reg)
			e.u16(l.reserved16)
			e.u32(l.offset)
		}
		e.align8()
		e.u16(0)
		e.u16(uint16(r.liveOuts))
		for i := 0; i < r.liveOuts; i++ {
			e.u16(uint16(i))
			e.u8(0)
			e.u8(8)
		}
		e.align8()
	}
	return e.buf
}

// goldenSection is one function {0x1000, 32} with one record {7, 16} holding a
// single Direct location {size 8, R#6, -24}.
//
//	0x00 header
//	0x10 function
//	0x28 record: id, offset, flags, count
//	0x38 location (reserved at 0x39 and 0x3e-0x3f)
//	0x44 pad to 0x48, 2-byte pad, live-out count
//	0x4c pad to 0x50
func goldenSection() wireSection {
	return wireSection{
		funcs: []wireFunc{{addr: 0x1000, stack: 32, records: 1}},
		recs: []wireRecord{{
			id:     7,
			offset: 16,
			locs:   []wireLoc{{kind: uint8(Direct), size: 8, reg: 6, offset: uint32(0xffffffe8)}},
		}},
	}
}
