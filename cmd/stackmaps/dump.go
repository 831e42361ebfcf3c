package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"stackmaps/internal/disasm"
	"stackmaps/stackmap"
)

type dumpFunc struct {
	Name        string       `json:"name"`
	Address     uint64       `json:"address"`
	StackSize   uint64       `json:"stack_size"`
	RecordCount uint64       `json:"record_count"`
	Records     []dumpRecord `json:"records"`
}

type dumpRecord struct {
	PC string `json:"pc"`
	stackmap.Record
	Call      string `json:"call,omitempty"`
	Safepoint string `json:"safepoint,omitempty"`
}

type dumpOutput struct {
	Version   uint8           `json:"version"`
	Header    stackmap.Header `json:"header"`
	Constants []uint64        `json:"constants"`
	Functions []dumpFunc      `json:"functions"`
}

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	bin := fs.String("bin", "", "path to ELF file")
	jsonOut := fs.Bool("json", false, "output as JSON")
	withDisasm := fs.Bool("disasm", false, "decode the call and instruction at each safepoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *bin == "" {
		return fmt.Errorf("--bin is required")
	}

	im, err := openImage(*bin)
	if err != nil {
		return err
	}
	defer im.Close()

	consts, err := im.constants()
	if err != nil {
		return err
	}
	frames, err := im.frames()
	if err != nil {
		return err
	}

	out := dumpOutput{
		Version:   stackmap.Version,
		Header:    im.sm.Header(),
		Constants: consts,
		Functions: []dumpFunc{},
	}
	for _, fr := range frames {
		df := dumpFunc{
			Name:        im.funcName(fr.Function.Address),
			Address:     fr.Function.Address,
			StackSize:   fr.Function.StackSize,
			RecordCount: fr.Function.RecordCount(),
			Records:     []dumpRecord{},
		}
		for _, r := range fr.Records {
			pc := fr.Function.Address + uint64(r.InstructionOffset)
			dr := dumpRecord{PC: fmt.Sprintf("0x%x", pc), Record: r}
			if *withDisasm {
				if call, ok := im.callBefore(fr.Function.Address, pc); ok {
					dr.Call = disasm.Format(call, im.calleeName(call))
				}
				if inst, ok := im.instAt(pc); ok {
					dr.Safepoint = disasm.Format(inst, fmt.Sprintf("sm %d", r.ID))
				}
			}
			df.Records = append(df.Records, dr)
		}
		out.Functions = append(out.Functions, df)
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printDump(stdout, &out)
	return nil
}

// printDump renders out in the layout of llvm-readobj --stackmap, with
// records nested under their function.
func printDump(w io.Writer, out *dumpOutput) {
	fmt.Fprintf(w, "LLVM StackMap Version: %d\n", out.Version)
	fmt.Fprintf(w, "Num Functions: %d\n", out.Header.NumFunctions)
	fmt.Fprintf(w, "Num Constants: %d\n", out.Header.NumConstants)
	for i, c := range out.Constants {
		fmt.Fprintf(w, "  #%d: %d\n", i+1, c)
	}
	fmt.Fprintf(w, "Num Records: %d\n", out.Header.NumRecords)

	for _, f := range out.Functions {
		fmt.Fprintf(w, "\nFunction %s (address: 0x%x, stack size: %d, callsite record count: %d)\n",
			f.Name, f.Address, f.StackSize, f.RecordCount)
		for _, r := range f.Records {
			fmt.Fprintf(w, "  Record ID: %d, instruction offset: %d (pc %s)\n", r.ID, r.InstructionOffset, r.PC)
			fmt.Fprintf(w, "    %d locations:\n", len(r.Locations))
			for j, loc := range r.Locations {
				fmt.Fprintf(w, "      #%d: %s, size: %d\n", j+1, locationText(loc, out.Constants), loc.Size)
			}
			if r.Call != "" {
				fmt.Fprintf(w, "    call:      %s\n", r.Call)
			}
			if r.Safepoint != "" {
				fmt.Fprintf(w, "    safepoint: %s\n", r.Safepoint)
			}
		}
	}
}

// locationText resolves constant pool references to their value.
func locationText(loc stackmap.Location, consts []uint64) string {
	if loc.Kind == stackmap.ConstantIndex {
		if idx, ok := loc.Offset.(stackmap.SignedOffset); ok && idx >= 0 && int(idx) < len(consts) {
			return fmt.Sprintf("%s (%d)", loc, consts[idx])
		}
	}
	return loc.String()
}
