// Package smfmt implements the byte cursor used to walk LLVM stack map data.
//
// All multi-byte reads use the byte order of the target that produced the
// section, which is supplied by the caller (normally the ELF header's).
package smfmt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a read or seek would run past the end of
// the section.
var ErrTruncated = errors.New("smfmt: unexpected end of section")

// ErrNegativeSeek is returned when a backward skip would move before the
// start of the section.
var ErrNegativeSeek = errors.New("smfmt: seek before start of section")

// Stream is a forward cursor over an immutable byte slice.
type Stream struct {
	data  []byte
	order binary.ByteOrder
	pos   int
}

// NewStream creates a stream positioned at the start of data.
func NewStream(data []byte, order binary.ByteOrder) *Stream {
	return &Stream{data: data, order: order}
}

// NewStreamAt creates a stream positioned at offset within data.
func NewStreamAt(data []byte, order binary.ByteOrder, offset int) (*Stream, error) {
	s := NewStream(data, order)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	return s, nil
}

// Position returns the current read position relative to the start of the
// section.
func (s *Stream) Position() int { return s.pos }

// Len returns the total length of the underlying section.
func (s *Stream) Len() int { return len(s.data) }

// Remaining returns bytes left to read.
func (s *Stream) Remaining() int { return len(s.data) - s.pos }

// Seek moves to an absolute position. Seeking to exactly len(data) is
// allowed; the next read will fail.
func (s *Stream) Seek(pos int) error {
	if pos < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSeek, pos)
	}
	if pos > len(s.data) {
		return fmt.Errorf("%w: seek to 0x%x, section is 0x%x bytes", ErrTruncated, pos, len(s.data))
	}
	s.pos = pos
	return nil
}

func (s *Stream) need(n int) error {
	if s.pos+n > len(s.data) {
		return fmt.Errorf("%w: need %d bytes at 0x%x, have %d", ErrTruncated, n, s.pos, s.Remaining())
	}
	return nil
}

// ReadUint8 reads a single byte.
func (s *Stream) ReadUint8() (uint8, error) {
	if err := s.need(1); err != nil {
		return 0, err
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// ReadUint16 reads a uint16.
func (s *Stream) ReadUint16() (uint16, error) {
	if err := s.need(2); err != nil {
		return 0, err
	}
	v := s.order.Uint16(s.data[s.pos:])
	s.pos += 2
	return v, nil
}

// ReadUint32 reads a uint32.
func (s *Stream) ReadUint32() (uint32, error) {
	if err := s.need(4); err != nil {
		return 0, err
	}
	v := s.order.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// ReadUint64 reads a uint64.
func (s *Stream) ReadUint64() (uint64, error) {
	if err := s.need(8); err != nil {
		return 0, err
	}
	v := s.order.Uint64(s.data[s.pos:])
	s.pos += 8
	return v, nil
}

// ReadInt32 reads an int32.
func (s *Stream) ReadInt32() (int32, error) {
	v, err := s.ReadUint32()
	return int32(v), err
}

// Skip moves the position by n bytes, backwards if n is negative.
func (s *Stream) Skip(n int) error {
	return s.Seek(s.pos + n)
}

// Align8 advances the position to the next 8-byte boundary. It is a no-op
// when already aligned.
func (s *Stream) Align8() error {
	return s.Skip((8 - s.pos%8) % 8)
}
