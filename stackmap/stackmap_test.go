package stackmap

import (
	"encoding/json"
	"testing"
)

func TestLocationString(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{Location{Kind: Register, Size: 8, DwarfReg: 3, Offset: SignedOffset(0)}, "Register R#3"},
		{Location{Kind: Direct, Size: 8, DwarfReg: 6, Offset: SignedOffset(-24)}, "Direct R#6 + -24"},
		{Location{Kind: Indirect, Size: 8, DwarfReg: 7, Offset: SignedOffset(16)}, "Indirect [R#7 + 16]"},
		{Location{Kind: Constant, Size: 8, Offset: UnsignedOffset(4294967295)}, "Constant 4294967295"},
		{Location{Kind: ConstantIndex, Size: 8, Offset: SignedOffset(2)}, "ConstantIndex #2"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if got := Kind(9).String(); got != "Kind(0x9)" {
		t.Errorf("Kind(9) = %q", got)
	}
	for b := uint8(1); b <= 5; b++ {
		if _, ok := kindFromByte(b); !ok {
			t.Errorf("kindFromByte(%d) rejected", b)
		}
	}
	for _, b := range []uint8{0, 6, 0x80} {
		if _, ok := kindFromByte(b); ok {
			t.Errorf("kindFromByte(%d) accepted", b)
		}
	}
}

func TestRecordJSON(t *testing.T) {
	r := Record{
		ID:                7,
		InstructionOffset: 16,
		Locations: []Location{
			{Kind: Direct, Size: 8, DwarfReg: 6, Offset: SignedOffset(-24)},
			{Kind: Constant, Size: 4, Offset: UnsignedOffset(4294967295)},
		},
	}
	got, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":7,"instruction_offset":16,"locations":[` +
		`{"kind":"Direct","size":8,"dwarf_reg":6,"offset":-24},` +
		`{"kind":"Constant","size":4,"dwarf_reg":0,"offset":4294967295}]}`
	if string(got) != want {
		t.Errorf("json = %s\nwant  %s", got, want)
	}
}
