package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stackmaps/internal/elftest"
	"stackmaps/stackmap"
)

// main:
//
//	0x401000: push %rbp
//	0x401001: test %edi,%edi
//	0x401003: je 0x40100b
//	0x401005: call gc_poll       ; returns to 0x40100a (sm 7)
//	0x40100a: ret
//	0x40100b: xor %eax,%eax
//	0x40100d: ret
//	0x40100e: nop; nop
//
// gc_poll:
//
//	0x401010: ret
var text = []byte{
	0x55, 0x85, 0xff, 0x74, 0x06, 0xe8, 0x06, 0, 0, 0, 0xc3, 0x31, 0xc0, 0xc3, 0x90, 0x90,
	0xc3,
}

// section encodes one function with a single record at offset 10 holding a
// register and a constant pool reference.
func section() []byte {
	le := binary.LittleEndian
	var b []byte
	b = append(b, 3, 0, 0, 0)
	b = le.AppendUint32(b, 1) // functions
	b = le.AppendUint32(b, 1) // constants
	b = le.AppendUint32(b, 1) // records

	b = le.AppendUint64(b, 0x401000)
	b = le.AppendUint64(b, 16)
	b = le.AppendUint64(b, 1)

	b = le.AppendUint64(b, 42)

	b = le.AppendUint64(b, 7)  // id
	b = le.AppendUint32(b, 10) // instruction offset
	b = le.AppendUint16(b, 0)  // flags
	b = le.AppendUint16(b, 2)  // locations

	b = append(b, byte(stackmap.Register), 0)
	b = le.AppendUint16(b, 8)
	b = le.AppendUint16(b, 3)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint32(b, 0)

	b = append(b, byte(stackmap.ConstantIndex), 0)
	b = le.AppendUint16(b, 8)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint32(b, 0)

	b = le.AppendUint16(b, 0) // padding
	b = le.AppendUint16(b, 0) // live-outs
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

func writeSample(t *testing.T) string {
	t.Helper()
	img := elftest.Image{
		Load: true,
		Sections: []elftest.Section{
			{Name: ".text", Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x401000, Data: text},
			{Name: stackmap.SectionName, Flags: elf.SHF_ALLOC, Addr: 0x402000, Data: section()},
		},
		Symbols: []elftest.Symbol{
			{Name: "main", Section: ".text", Value: 0x401000, Size: 16},
			{Name: "gc_poll", Section: ".text", Value: 0x401010, Size: 1},
		},
	}
	return img.WriteFile(t)
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func TestScan(t *testing.T) {
	path := writeSample(t)
	buf := captureStdout(t)
	if err := cmdScan([]string{"--bin", path}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{".llvm_stackmaps: 96 bytes", "Functions: 1", "Records:   1 (1 decoded, 2 locations)"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf)
		}
	}
	if strings.Contains(buf.String(), "Invalid") {
		t.Errorf("valid section reported invalid:\n%s", buf)
	}

	buf.Reset()
	if err := cmdScan([]string{"--bin", path, "--json"}); err != nil {
		t.Fatal(err)
	}
	var info scanInfo
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if !info.Valid || info.Machine != "EM_X86_64" || info.Header.NumRecords != 1 {
		t.Errorf("scan info = %+v", info)
	}
}

func TestDump(t *testing.T) {
	path := writeSample(t)
	buf := captureStdout(t)
	if err := cmdDump([]string{"--bin", path, "--disasm"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"LLVM StackMap Version: 3",
		"  #1: 42",
		"Function main (address: 0x401000, stack size: 16, callsite record count: 1)",
		"Record ID: 7, instruction offset: 10 (pc 0x40100a)",
		"#1: Register R#3, size: 8",
		"#2: ConstantIndex #0 (42), size: 8",
		"; gc_poll",
		"; sm 7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDumpJSON(t *testing.T) {
	path := writeSample(t)
	buf := captureStdout(t)
	if err := cmdDump([]string{"--bin", path, "--json"}); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Functions []struct {
			Name    string `json:"name"`
			Records []struct {
				PC   string `json:"pc"`
				ID   uint64 `json:"id"`
				Call string `json:"call"`
			} `json:"records"`
		} `json:"functions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Functions) != 1 || out.Functions[0].Name != "main" {
		t.Fatalf("functions = %+v", out.Functions)
	}
	r := out.Functions[0].Records
	if len(r) != 1 || r[0].ID != 7 || r[0].PC != "0x40100a" || r[0].Call != "" {
		t.Errorf("records = %+v", r)
	}
}

func TestExport(t *testing.T) {
	path := writeSample(t)
	dir := t.TempDir()
	if err := cmdExport([]string{"--bin", path, "--out", dir, "--graph", "--asm", "--html"}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"stackmaps.json", "records.jsonl", "callgraph.dot", "cfg/main.dot", "asm/main.txt", "index.html"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	asm, err := os.ReadFile(filepath.Join(dir, "asm", "main.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(asm), "; sm 7") {
		t.Errorf("asm does not mark the safepoint:\n%s", asm)
	}

	dot, err := os.ReadFile(filepath.Join(dir, "callgraph.dot"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(dot), "gc_poll") {
		t.Errorf("call graph does not reach gc_poll:\n%s", dot)
	}
}

func TestMissingFlags(t *testing.T) {
	if err := cmdScan(nil); err == nil {
		t.Error("scan without --bin succeeded")
	}
	if err := cmdExport([]string{"--bin", "x"}); err == nil {
		t.Error("export without --out succeeded")
	}
}

func TestNoSection(t *testing.T) {
	img := elftest.Image{Sections: []elftest.Section{{Name: ".text", Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Data: []byte{0xc3}}}}
	captureStdout(t)
	err := cmdDump([]string{"--bin", img.WriteFile(t)})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("got %v, want section not found", err)
	}
}
