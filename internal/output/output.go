// Package output writes decoded stack maps to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stackmaps/internal/disasm"
	"stackmaps/stackmap"
)

// SectionInfo is the content of stackmaps.json.
type SectionInfo struct {
	Path        string          `json:"path"`
	Machine     string          `json:"machine"`
	ByteOrder   string          `json:"byte_order"`
	SectionSize int             `json:"section_size"`
	Version     uint8           `json:"version"`
	Header      stackmap.Header `json:"header"`
	Functions   []FunctionEntry `json:"functions"`
	Constants   []uint64        `json:"constants"`
}

// FunctionEntry is a function record with its symbol and record count.
type FunctionEntry struct {
	stackmap.Function
	Name    string `json:"name,omitempty"`
	Records uint64 `json:"record_count"`
}

// RecordEntry is one line in records.jsonl.
type RecordEntry struct {
	Function string `json:"function"`
	PC       string `json:"pc"`
	stackmap.Record
}

// WriteSectionJSON writes section metadata to stackmaps.json.
func WriteSectionJSON(dir string, info *SectionInfo) error {
	return writeJSON(filepath.Join(dir, "stackmaps.json"), info)
}

// WriteRecordsJSONL writes one record per line to records.jsonl.
func WriteRecordsJSONL(dir string, recs []RecordEntry) error {
	path := filepath.Join(dir, "records.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("output: encode %s: %w", path, err)
		}
	}
	return f.Close()
}

// WriteASM writes instructions to asm/<name>.txt. comments maps an
// instruction address to its annotation.
func WriteASM(dir, name string, insts []disasm.Inst, comments map[uint64]string) error {
	path := filepath.Join(dir, "asm", name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir asm: %w", err)
	}
	var b strings.Builder
	for _, inst := range insts {
		b.WriteString(disasm.Format(inst, comments[inst.Addr]))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// WriteDOT writes a Graphviz document to <name>.dot under dir. name may
// contain path separators.
func WriteDOT(dir, name, dot string) error {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, []byte(dot), 0644)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
