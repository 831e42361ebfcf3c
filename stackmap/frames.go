package stackmap

import (
	"fmt"
	"io"
	"iter"
)

// Frame is a function together with the safepoint records that belong to
// it.
type Frame struct {
	Function Function `json:"function"`
	Records  []Record `json:"records"`
}

// Frames pairs each function with its records. The format does not link
// records to functions directly; LLVM emits them grouped in function order
// and each function record carries the size of its group.
//
// The sequence stops after yielding the first error. If the per-function
// counts do not add up to NumRecords, the final item is ErrRecordCount.
func (p *Parser) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		funcs := p.Functions()
		recs := p.Records()
		var total uint64
		for {
			f, err := funcs.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				yield(Frame{}, err)
				return
			}
			total += f.records
			if total > uint64(p.header.NumRecords) {
				yield(Frame{}, fmt.Errorf("%w: function 0x%x claims records up to %d, header has %d",
					ErrRecordCount, f.Address, total, p.header.NumRecords))
				return
			}
			fr := Frame{Function: f, Records: []Record{}}
			for i := uint64(0); i < f.records; i++ {
				r, err := recs.Next()
				if err != nil {
					yield(Frame{}, err)
					return
				}
				fr.Records = append(fr.Records, r)
			}
			if !yield(fr, nil) {
				return
			}
		}
		if total != uint64(p.header.NumRecords) {
			yield(Frame{}, fmt.Errorf("%w: functions account for %d records, header has %d",
				ErrRecordCount, total, p.header.NumRecords))
		}
	}
}
