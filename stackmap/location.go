package stackmap

import (
	"fmt"

	"stackmaps/internal/smfmt"
)

// decodeLocation reads one 12-byte location entry.
func decodeLocation(s *smfmt.Stream) (Location, error) {
	var loc Location
	start := s.Position()

	raw, err := s.ReadUint8()
	if err != nil {
		return loc, err
	}
	kind, ok := kindFromByte(raw)
	if !ok {
		return loc, fmt.Errorf("%w 0x%x at 0x%x", ErrUnknownLocationKind, raw, start)
	}
	loc.Kind = kind

	reserved8, err := s.ReadUint8()
	if err != nil {
		return loc, err
	}
	if reserved8 != 0 {
		return loc, fmt.Errorf("%w: reserved byte at 0x%x is 0x%x", ErrMalformedLocation, start+1, reserved8)
	}
	if loc.Size, err = s.ReadUint16(); err != nil {
		return loc, err
	}
	if loc.DwarfReg, err = s.ReadUint16(); err != nil {
		return loc, err
	}
	reserved16, err := s.ReadUint16()
	if err != nil {
		return loc, err
	}
	if reserved16 != 0 {
		return loc, fmt.Errorf("%w: reserved field at 0x%x is 0x%x", ErrMalformedLocation, start+6, reserved16)
	}

	if kind == Constant {
		v, err := s.ReadUint32()
		if err != nil {
			return loc, err
		}
		loc.Offset = UnsignedOffset(v)
	} else {
		v, err := s.ReadInt32()
		if err != nil {
			return loc, err
		}
		loc.Offset = SignedOffset(v)
	}
	return loc, nil
}
