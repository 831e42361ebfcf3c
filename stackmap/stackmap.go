// Package stackmap decodes the LLVM stack map section (.llvm_stackmaps)
// emitted for stackmap, patchpoint and statepoint intrinsics.
//
// Section layout (version 3, target byte order):
//
//	Header {
//	  uint8  Version
//	  uint8  Reserved (0)
//	  uint16 Reserved (0)
//	}
//	uint32 NumFunctions
//	uint32 NumConstants
//	uint32 NumRecords
//	StkSizeRecord[NumFunctions] {
//	  uint64 Function Address
//	  uint64 Stack Size
//	  uint64 Record Count
//	}
//	Constants[NumConstants] {
//	  uint64 LargeConstant
//	}
//	StkMapRecord[NumRecords] {
//	  uint64 PatchPoint ID
//	  uint32 Instruction Offset
//	  uint16 Reserved (record flags)
//	  uint16 NumLocations
//	  Location[NumLocations] {
//	    uint8  Register | Direct | Indirect | Constant | ConstantIndex
//	    uint8  Reserved (0)
//	    uint16 Location Size
//	    uint16 Dwarf RegNum
//	    uint16 Reserved (0)
//	    int32  Offset or SmallConstant
//	  }
//	  uint32 Padding (only if required to align to 8 byte)
//	  uint16 Padding
//	  uint16 NumLiveOuts
//	  LiveOuts[NumLiveOuts] {
//	    uint16 Dwarf RegNum
//	    uint8  Reserved
//	    uint8  Size in Bytes
//	  }
//	  uint32 Padding (only if required to align to 8 byte)
//	}
//
// Records are decoded lazily and in wire order. Iterators never
// materialize the whole section.
package stackmap

import (
	"fmt"
	"strconv"
)

// SectionName is the ELF section holding stack maps.
const SectionName = ".llvm_stackmaps"

// Version is the only stack map format version this package decodes.
const Version uint8 = 3

// Wire sizes in bytes.
const (
	headerSize        = 16
	functionEntrySize = 24
	constantEntrySize = 8
	locationEntrySize = 12
	liveOutEntrySize  = 4
)

// Header holds the table sizes from the section header.
type Header struct {
	NumFunctions uint32 `json:"num_functions"`
	NumConstants uint32 `json:"num_constants"`
	NumRecords   uint32 `json:"num_records"`
}

// Function is a stack size record for one function containing safepoints.
type Function struct {
	Address   uint64 `json:"address"`
	StackSize uint64 `json:"stack_size"`

	records uint64
}

// RecordCount is the number of records the function claims. Records are
// not linked to functions on the wire; use Parser.Frames to pair them.
func (f Function) RecordCount() uint64 { return f.records }

// Record is a single stack map record describing one safepoint.
type Record struct {
	// ID is the compiler-assigned patchpoint ID. Not unique or ordered.
	ID uint64 `json:"id"`
	// InstructionOffset is relative to the start of the owning function.
	InstructionOffset uint32     `json:"instruction_offset"`
	Locations         []Location `json:"locations"`
}

// Kind is the storage class of a live value.
type Kind uint8

const (
	Register      Kind = 0x1
	Direct        Kind = 0x2
	Indirect      Kind = 0x3
	Constant      Kind = 0x4
	ConstantIndex Kind = 0x5
)

func (k Kind) String() string {
	switch k {
	case Register:
		return "Register"
	case Direct:
		return "Direct"
	case Indirect:
		return "Indirect"
	case Constant:
		return "Constant"
	case ConstantIndex:
		return "ConstantIndex"
	default:
		return fmt.Sprintf("Kind(0x%x)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func kindFromByte(b uint8) (Kind, bool) {
	k := Kind(b)
	switch k {
	case Register, Direct, Indirect, Constant, ConstantIndex:
		return k, true
	}
	return 0, false
}

// Offset is the 4-byte offset field of a location. Its concrete type is
// UnsignedOffset when the location kind is Constant and SignedOffset for
// every other kind; callers must switch on it before using the value.
type Offset interface {
	fmt.Stringer
	isOffset()
}

// SignedOffset is a byte displacement, used by all kinds except Constant.
type SignedOffset int32

// UnsignedOffset is a literal small constant, used by Constant locations.
// Producers emit values here that do not fit in an int32.
type UnsignedOffset uint32

func (SignedOffset) isOffset()   {}
func (UnsignedOffset) isOffset() {}

func (o SignedOffset) String() string   { return strconv.FormatInt(int64(o), 10) }
func (o UnsignedOffset) String() string { return strconv.FormatUint(uint64(o), 10) }

// Location says where a live value resides at a safepoint.
type Location struct {
	Kind     Kind   `json:"kind"`
	Size     uint16 `json:"size"`
	DwarfReg uint16 `json:"dwarf_reg"`
	Offset   Offset `json:"offset"`
}

// String formats the location the way llvm-readobj -stackmap does.
func (l Location) String() string {
	switch l.Kind {
	case Register:
		return fmt.Sprintf("Register R#%d", l.DwarfReg)
	case Direct:
		return fmt.Sprintf("Direct R#%d + %s", l.DwarfReg, l.Offset)
	case Indirect:
		return fmt.Sprintf("Indirect [R#%d + %s]", l.DwarfReg, l.Offset)
	case Constant:
		return fmt.Sprintf("Constant %s", l.Offset)
	case ConstantIndex:
		return fmt.Sprintf("ConstantIndex #%s", l.Offset)
	}
	return l.Kind.String()
}
