package stackmap

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"testing"

	"stackmaps/internal/elftest"
	"stackmaps/internal/elfx"
)

func TestFrames(t *testing.T) {
	sec := wireSection{
		funcs: []wireFunc{
			{addr: 0x1000, stack: 16, records: 2},
			{addr: 0x2000, stack: 8, records: 0},
			{addr: 0x3000, stack: 32, records: 1},
		},
		recs: []wireRecord{{id: 1, offset: 4}, {id: 2, offset: 12}, {id: 3, offset: 8}},
	}
	p := mustNew(t, sec.bytes())

	var frames []Frame
	for fr, err := range p.Frames() {
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, fr)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	wantIDs := [][]uint64{{1, 2}, {}, {3}}
	for i, fr := range frames {
		if fr.Function.Address != sec.funcs[i].addr {
			t.Errorf("frame %d address = 0x%x", i, fr.Function.Address)
		}
		if len(fr.Records) != len(wantIDs[i]) {
			t.Errorf("frame %d has %d records, want %d", i, len(fr.Records), len(wantIDs[i]))
			continue
		}
		for j, r := range fr.Records {
			if r.ID != wantIDs[i][j] {
				t.Errorf("frame %d record %d id = %d, want %d", i, j, r.ID, wantIDs[i][j])
			}
		}
	}
}

func TestFramesRecordCountMismatch(t *testing.T) {
	tests := []struct {
		name  string
		funcs []wireFunc
	}{
		{"too many", []wireFunc{{addr: 0x1000, records: 3}}},
		{"too few", []wireFunc{{addr: 0x1000, records: 1}}},
	}
	for _, tt := range tests {
		sec := wireSection{
			funcs: tt.funcs,
			recs:  []wireRecord{{id: 1}, {id: 2}},
		}
		var last error
		for _, err := range mustNew(t, sec.bytes()).Frames() {
			last = err
		}
		if !errors.Is(last, ErrRecordCount) {
			t.Errorf("%s: final item = %v, want ErrRecordCount", tt.name, last)
		}
	}
}

func TestFramesPropagatesRecordError(t *testing.T) {
	sec := goldenSection()
	sec.recs[0].locs[0].kind = 9
	var errs []error
	for _, err := range mustNew(t, sec.bytes()).Frames() {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnknownLocationKind) {
		t.Errorf("got %v, want a single ErrUnknownLocationKind", errs)
	}
}

func stackmapImage(section []byte, order binary.ByteOrder) elftest.Image {
	return elftest.Image{
		Order: order,
		Sections: []elftest.Section{
			{Name: ".text", Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x1000, Data: make([]byte, 64)},
			{Name: SectionName, Flags: elf.SHF_ALLOC, Addr: 0x2000, Data: section},
		},
	}
}

func TestOpen(t *testing.T) {
	path := stackmapImage(goldenSection().bytes(), binary.LittleEndian).WriteFile(t)
	p, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	recs := collectRecords(t, p.Records())
	if len(recs) != 1 || recs[0].ID != 7 {
		t.Errorf("records = %+v", recs)
	}
}

func TestFromELFUsesFileByteOrder(t *testing.T) {
	sec := goldenSection()
	sec.order = binary.BigEndian
	f := stackmapImage(sec.bytes(), binary.BigEndian).Open(t)

	p, err := FromELF(f)
	if err != nil {
		t.Fatal(err)
	}
	if p.ByteOrder() != binary.BigEndian {
		t.Errorf("byte order = %v", p.ByteOrder())
	}
	recs := collectRecords(t, p.Records())
	if len(recs) != 1 || recs[0].InstructionOffset != 16 {
		t.Errorf("records = %+v", recs)
	}
}

func TestOpenErrors(t *testing.T) {
	img := elftest.Image{Sections: []elftest.Section{{Name: ".text", Data: []byte{0xc3}}}}
	if _, err := Open(img.WriteFile(t)); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("missing section: got %v, want ErrSectionNotFound", err)
	}

	bad := goldenSection().bytes()
	bad[0] = 1
	_, err := Open(stackmapImage(bad, binary.LittleEndian).WriteFile(t))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("bad version: got %v, want ErrUnsupportedVersion", err)
	}

	notELF := elftest.Image{}.WriteFile(t)
	if err := os.Truncate(notELF, 8); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(notELF); !errors.Is(err, elfx.ErrNotELF) {
		t.Errorf("not ELF: got %v, want elfx.ErrNotELF", err)
	}
}
