package stackmap

import (
	"fmt"

	"stackmaps/internal/smfmt"
)

// readHeader validates the fixed header prefix and reads the table sizes.
// s must be positioned at the start of the section.
func readHeader(s *smfmt.Stream) (Header, error) {
	var h Header

	version, err := s.ReadUint8()
	if err != nil {
		return h, fmt.Errorf("stackmap: header: %w", err)
	}
	if version != Version {
		return h, &VersionError{Want: Version, Got: version}
	}

	b1, err := s.ReadUint8()
	if err != nil {
		return h, fmt.Errorf("stackmap: header: %w", err)
	}
	if b1 != 0 {
		return h, fmt.Errorf("%w: expected 0 in byte 1, got 0x%x", ErrMalformedHeader, b1)
	}
	b23, err := s.ReadUint16()
	if err != nil {
		return h, fmt.Errorf("stackmap: header: %w", err)
	}
	if b23 != 0 {
		return h, fmt.Errorf("%w: expected 0 in bytes 2-3, got 0x%x", ErrMalformedHeader, b23)
	}

	for _, p := range []*uint32{&h.NumFunctions, &h.NumConstants, &h.NumRecords} {
		if *p, err = s.ReadUint32(); err != nil {
			return h, fmt.Errorf("stackmap: header: %w", err)
		}
	}
	return h, nil
}

// recordsOffset returns the section offset of the first stack map record.
func (h Header) recordsOffset() int64 {
	return headerSize +
		int64(h.NumFunctions)*functionEntrySize +
		int64(h.NumConstants)*constantEntrySize
}
