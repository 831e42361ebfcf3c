package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"stackmaps/stackmap"
)

type scanInfo struct {
	Path        string          `json:"path"`
	Class       string          `json:"class"`
	Machine     string          `json:"machine"`
	Type        string          `json:"type"`
	ByteOrder   string          `json:"byte_order"`
	FileSize    int64           `json:"file_size"`
	SectionSize int             `json:"section_size"`
	Version     uint8           `json:"version"`
	Header      stackmap.Header `json:"header"`
	Locations   int             `json:"locations"`
	Valid       bool            `json:"valid"`
	Error       string          `json:"error,omitempty"`
}

func cmdScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	bin := fs.String("bin", "", "path to ELF file")
	jsonOut := fs.Bool("json", false, "output as JSON")

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

	h := im.ef.ELF.FileHeader
	info := scanInfo{
		Path:        *bin,
		Class:       h.Class.String(),
		Machine:     h.Machine.String(),
		Type:        h.Type.String(),
		ByteOrder:   fmt.Sprint(h.ByteOrder),
		FileSize:    im.ef.FileSize(),
		SectionSize: im.sm.Size(),
		Version:     stackmap.Version,
		Header:      im.sm.Header(),
		Valid:       true,
	}

	fmt.Fprintf(os.Stderr, "ELF: %s %s %s, %d bytes\n", info.Class, info.Machine, info.Type, info.FileSize)

	// Walk every table so a scan also validates the section body.
	var records int
	_, err = im.constants()
	if err == nil {
		var frames []stackmap.Frame
		frames, err = im.frames()
		for _, fr := range frames {
			records += len(fr.Records)
			for _, r := range fr.Records {
				info.Locations += len(r.Locations)
			}
		}
	}
	if err != nil {
		info.Valid = false
		info.Error = err.Error()
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(stdout, "%s: %d bytes (%s)\n", stackmap.SectionName, info.SectionSize, info.ByteOrder)
	fmt.Fprintf(stdout, "  Version:   %d\n", info.Version)
	fmt.Fprintf(stdout, "  Functions: %d\n", info.Header.NumFunctions)
	fmt.Fprintf(stdout, "  Constants: %d\n", info.Header.NumConstants)
	fmt.Fprintf(stdout, "  Records:   %d (%d decoded, %d locations)\n", info.Header.NumRecords, records, info.Locations)
	if !info.Valid {
		fmt.Fprintf(stdout, "  Invalid:   %s\n", info.Error)
	}
	return nil
}
