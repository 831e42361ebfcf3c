package stackmap

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"

	"stackmaps/internal/smfmt"
)

type iterState int

const (
	notStarted iterState = iota
	inProgress
	exhausted
	failed
)

// cursor is the lazily created position shared by every iterator kind.
// Creating it is deferred to the first Next so that constructing an
// iterator cannot fail.
type cursor struct {
	data      []byte
	order     binary.ByteOrder
	start     int64
	remaining uint32
	index     int
	state     iterState
	s         *smfmt.Stream
	err       error
}

func newCursor(data []byte, order binary.ByteOrder, start int64, count uint32) cursor {
	return cursor{data: data, order: order, start: start, remaining: count}
}

// advance reports whether another item should be decoded. When it returns
// false, err is io.EOF or the terminal error.
func (c *cursor) advance() (bool, error) {
	switch c.state {
	case exhausted:
		return false, io.EOF
	case failed:
		return false, c.err
	}
	if c.remaining == 0 {
		c.state = exhausted
		return false, io.EOF
	}
	if c.state == notStarted {
		if c.start > int64(len(c.data)) {
			return false, c.fail(fmt.Errorf("%w: table starts at 0x%x, section is 0x%x bytes",
				ErrTruncated, c.start, len(c.data)))
		}
		s, err := smfmt.NewStreamAt(c.data, c.order, int(c.start))
		if err != nil {
			return false, c.fail(err)
		}
		c.s = s
		c.state = inProgress
	}
	return true, nil
}

func (c *cursor) fail(err error) error {
	c.state = failed
	c.err = err
	return err
}

func (c *cursor) done() {
	c.remaining--
	c.index++
}

// FuncIter iterates over the function stack size records.
//
// Next returns io.EOF after the last record. Once Next returns any other
// error the iterator is terminal: every later call returns that same error
// and the caller must stop consuming.
type FuncIter struct {
	c cursor
}

// Next decodes the next function record.
func (it *FuncIter) Next() (Function, error) {
	if ok, err := it.c.advance(); !ok {
		return Function{}, err
	}
	s := it.c.s
	off := s.Position()
	f, err := decodeFunction(s)
	if err != nil {
		return Function{}, it.c.fail(fmt.Errorf("stackmap: function %d at 0x%x: %w", it.c.index, off, err))
	}
	it.c.done()
	return f, nil
}

func decodeFunction(s *smfmt.Stream) (Function, error) {
	var f Function
	var err error
	if f.Address, err = s.ReadUint64(); err != nil {
		return f, err
	}
	if f.StackSize, err = s.ReadUint64(); err != nil {
		return f, err
	}
	if f.records, err = s.ReadUint64(); err != nil {
		return f, err
	}
	return f, nil
}

// All returns a sequence over the remaining functions. It stops after
// yielding the first error.
func (it *FuncIter) All() iter.Seq2[Function, error] {
	return func(yield func(Function, error) bool) {
		for {
			f, err := it.Next()
			if err == io.EOF {
				return
			}
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// RecordIter iterates over stack map records in wire order.
//
// Next returns io.EOF after the last record. Once Next returns any other
// error the iterator is terminal: every later call returns that same error
// and the caller must stop consuming. A failed record is never partially
// returned.
type RecordIter struct {
	c cursor
}

// Next decodes the next stack map record.
func (it *RecordIter) Next() (Record, error) {
	if ok, err := it.c.advance(); !ok {
		return Record{}, err
	}
	s := it.c.s
	off := s.Position()
	r, err := decodeRecord(s)
	if err != nil {
		return Record{}, it.c.fail(fmt.Errorf("stackmap: record %d at 0x%x: %w", it.c.index, off, err))
	}
	it.c.done()
	return r, nil
}

// Offset returns the section offset the next record will be read from, or
// the table start if iteration has not begun.
func (it *RecordIter) Offset() int {
	if it.c.s == nil {
		return int(it.c.start)
	}
	return it.c.s.Position()
}

func decodeRecord(s *smfmt.Stream) (Record, error) {
	var r Record
	var err error
	if r.ID, err = s.ReadUint64(); err != nil {
		return r, err
	}
	if r.InstructionOffset, err = s.ReadUint32(); err != nil {
		return r, err
	}
	// Record flags.
	if err := s.Skip(2); err != nil {
		return r, err
	}
	numLocs, err := s.ReadUint16()
	if err != nil {
		return r, err
	}
	r.Locations = make([]Location, 0, numLocs)
	for i := 0; i < int(numLocs); i++ {
		loc, err := decodeLocation(s)
		if err != nil {
			return Record{}, fmt.Errorf("location %d: %w", i, err)
		}
		r.Locations = append(r.Locations, loc)
	}

	// The fixed 2-byte pad follows the alignment even when no padding was
	// needed.
	if err := s.Align8(); err != nil {
		return Record{}, err
	}
	if err := s.Skip(2); err != nil {
		return Record{}, err
	}
	numLiveOuts, err := s.ReadUint16()
	if err != nil {
		return Record{}, err
	}
	if err := s.Skip(int(numLiveOuts) * liveOutEntrySize); err != nil {
		return Record{}, fmt.Errorf("live-outs: %w", err)
	}
	if err := s.Align8(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// All returns a sequence over the remaining records. It stops after
// yielding the first error.
func (it *RecordIter) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			r, err := it.Next()
			if err == io.EOF {
				return
			}
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

// ConstIter iterates over the large constant pool.
type ConstIter struct {
	c cursor
}

// Next returns the next constant, io.EOF after the last one, or a terminal
// error.
func (it *ConstIter) Next() (uint64, error) {
	if ok, err := it.c.advance(); !ok {
		return 0, err
	}
	off := it.c.s.Position()
	v, err := it.c.s.ReadUint64()
	if err != nil {
		return 0, it.c.fail(fmt.Errorf("stackmap: constant %d at 0x%x: %w", it.c.index, off, err))
	}
	it.c.done()
	return v, nil
}

// All returns a sequence over the remaining constants. It stops after
// yielding the first error.
func (it *ConstIter) All() iter.Seq2[uint64, error] {
	return func(yield func(uint64, error) bool) {
		for {
			v, err := it.Next()
			if err == io.EOF {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}
